package implementation

import (
	"context"
	"errors"
	"time"

	"windback-be/internal/entity"
	"windback-be/internal/mapper"
	"windback-be/internal/model"
	"windback-be/internal/repository/contract"
	"windback-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ChurnEventRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChurnMapper
}

func NewChurnEventRepository(db *gorm.DB) contract.ChurnEventRepository {
	return &ChurnEventRepositoryImpl{
		db:     db,
		mapper: mapper.NewChurnMapper(),
	}
}

func (r *ChurnEventRepositoryImpl) CreateIfAbsent(ctx context.Context, event *entity.ChurnEvent) (bool, error) {
	m := r.mapper.EventToModel(event)
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Omit("Variants").
		Create(m)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	*event = *r.mapper.EventToEntity(m)
	return true, nil
}

func (r *ChurnEventRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ChurnEvent, error) {
	var m model.ChurnEvent
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.EventToEntity(&m), nil
}

func (r *ChurnEventRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChurnEvent, error) {
	var models []*model.ChurnEvent
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	events := make([]*entity.ChurnEvent, 0, len(models))
	for _, m := range models {
		events = append(events, r.mapper.EventToEntity(m))
	}
	return events, nil
}

func (r *ChurnEventRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := applySpecifications(r.db.WithContext(ctx).Model(&model.ChurnEvent{}), specs...)
	err := query.Count(&count).Error
	return count, err
}

func (r *ChurnEventRepositoryImpl) TransitionStatus(ctx context.Context, id uuid.UUID, from []entity.ChurnEventStatus, to entity.ChurnEventStatus, at time.Time) (bool, error) {
	fromValues := make([]string, 0, len(from))
	for _, s := range from {
		fromValues = append(fromValues, string(s))
	}

	updates := map[string]interface{}{
		"status":     string(to),
		"updated_at": at,
	}
	switch to {
	case entity.ChurnEventStatusRecovered:
		updates["recovered_at"] = at
		updates["send_claimed_at"] = nil
	case entity.ChurnEventStatusLost:
		updates["lost_at"] = at
		updates["send_claimed_at"] = nil
	case entity.ChurnEventStatusEmailSent:
		updates["send_claimed_at"] = nil
	}

	res := r.db.WithContext(ctx).
		Model(&model.ChurnEvent{}).
		Where("id = ? AND status IN ?", id, fromValues).
		Updates(updates)
	return res.RowsAffected == 1, res.Error
}

func (r *ChurnEventRepositoryImpl) ClaimSend(ctx context.Context, id uuid.UUID, now time.Time, staleBefore time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.ChurnEvent{}).
		Where("id = ? AND status = ?", id, string(entity.ChurnEventStatusVariantsGenerated)).
		Where("send_claimed_at IS NULL OR send_claimed_at < ?", staleBefore).
		Update("send_claimed_at", now)
	return res.RowsAffected == 1, res.Error
}

func (r *ChurnEventRepositoryImpl) ReleaseSendClaim(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&model.ChurnEvent{}).
		Where("id = ?", id).
		Update("send_claimed_at", nil).Error
}
