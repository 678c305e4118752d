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
)

type RecoveryVariantRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChurnMapper
}

func NewRecoveryVariantRepository(db *gorm.DB) contract.RecoveryVariantRepository {
	return &RecoveryVariantRepositoryImpl{
		db:     db,
		mapper: mapper.NewChurnMapper(),
	}
}

func (r *RecoveryVariantRepositoryImpl) CreateBatch(ctx context.Context, variants []*entity.RecoveryVariant) error {
	if len(variants) == 0 {
		return nil
	}
	models := make([]*model.RecoveryVariant, 0, len(variants))
	for _, v := range variants {
		models = append(models, r.mapper.VariantToModel(v))
	}
	if err := r.db.WithContext(ctx).Create(&models).Error; err != nil {
		return err
	}
	for i, m := range models {
		*variants[i] = *r.mapper.VariantToEntity(m)
	}
	return nil
}

func (r *RecoveryVariantRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.RecoveryVariant, error) {
	var m model.RecoveryVariant
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.VariantToEntity(&m), nil
}

func (r *RecoveryVariantRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.RecoveryVariant, error) {
	var models []*model.RecoveryVariant
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	variants := make([]*entity.RecoveryVariant, 0, len(models))
	for _, m := range models {
		variants = append(variants, r.mapper.VariantToEntity(m))
	}
	return variants, nil
}

func (r *RecoveryVariantRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := applySpecifications(r.db.WithContext(ctx).Model(&model.RecoveryVariant{}), specs...)
	err := query.Count(&count).Error
	return count, err
}

func (r *RecoveryVariantRepositoryImpl) ClaimSend(ctx context.Context, id uuid.UUID, now time.Time, staleBefore time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.RecoveryVariant{}).
		Where("id = ? AND sent_at IS NULL", id).
		Where("send_claimed_at IS NULL OR send_claimed_at < ?", staleBefore).
		Update("send_claimed_at", now)
	return res.RowsAffected == 1, res.Error
}

func (r *RecoveryVariantRepositoryImpl) ReleaseClaim(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&model.RecoveryVariant{}).
		Where("id = ? AND sent_at IS NULL", id).
		Update("send_claimed_at", nil).Error
}

func (r *RecoveryVariantRepositoryImpl) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.RecoveryVariant{}).
		Where("id = ? AND sent_at IS NULL", id).
		Updates(map[string]interface{}{
			"sent_at":         at,
			"send_claimed_at": nil,
		})
	return res.RowsAffected == 1, res.Error
}

func (r *RecoveryVariantRepositoryImpl) UpdateContent(ctx context.Context, id uuid.UUID, subject, body string, staleBefore time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.RecoveryVariant{}).
		Where("id = ? AND sent_at IS NULL", id).
		Where("send_claimed_at IS NULL OR send_claimed_at < ?", staleBefore).
		Updates(map[string]interface{}{
			"subject": subject,
			"body":    body,
		})
	return res.RowsAffected == 1, res.Error
}

func (r *RecoveryVariantRepositoryImpl) MarkOpened(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.RecoveryVariant{}).
		Where("id = ? AND sent_at IS NOT NULL AND opened_at IS NULL", id).
		Update("opened_at", at)
	return res.RowsAffected == 1, res.Error
}

// MarkClicked also stamps opened_at when the open pixel never fired.
func (r *RecoveryVariantRepositoryImpl) MarkClicked(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.RecoveryVariant{}).
		Where("id = ? AND sent_at IS NOT NULL AND clicked_at IS NULL", id).
		Updates(map[string]interface{}{
			"clicked_at": at,
			"opened_at":  gorm.Expr("COALESCE(opened_at, ?)", at),
		})
	return res.RowsAffected == 1, res.Error
}
