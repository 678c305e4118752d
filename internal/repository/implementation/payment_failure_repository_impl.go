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
	"windback-be/pkg/dunning"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PaymentFailureRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.PaymentFailureMapper
}

func NewPaymentFailureRepository(db *gorm.DB) contract.PaymentFailureRepository {
	return &PaymentFailureRepositoryImpl{
		db:     db,
		mapper: mapper.NewPaymentFailureMapper(),
	}
}

func (r *PaymentFailureRepositoryImpl) CreateIfAbsent(ctx context.Context, failure *entity.PaymentFailure) (bool, error) {
	m := r.mapper.ToModel(failure)
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Omit("Emails").
		Create(m)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	*failure = *r.mapper.ToEntity(m)
	return true, nil
}

func (r *PaymentFailureRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.PaymentFailure, error) {
	var m model.PaymentFailure
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *PaymentFailureRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.PaymentFailure, error) {
	var models []*model.PaymentFailure
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	failures := make([]*entity.PaymentFailure, 0, len(models))
	for _, m := range models {
		failures = append(failures, r.mapper.ToEntity(m))
	}
	return failures, nil
}

const claimDueSQL = `
UPDATE payment_failures
SET next_retry_at = ?, claim_token = ?, updated_at = ?
WHERE id IN (
	SELECT id FROM payment_failures
	WHERE status = ? AND next_retry_at <= ?
	ORDER BY next_retry_at ASC
	LIMIT ?
	FOR UPDATE SKIP LOCKED
)
RETURNING *`

func (r *PaymentFailureRepositoryImpl) ClaimDue(ctx context.Context, now time.Time, leaseUntil time.Time, token string, limit int) ([]*entity.PaymentFailure, error) {
	var models []*model.PaymentFailure
	err := r.db.WithContext(ctx).
		Raw(claimDueSQL, leaseUntil, token, now, string(entity.PaymentFailureStatusFailing), now, limit).
		Scan(&models).Error
	if err != nil {
		return nil, err
	}
	failures := make([]*entity.PaymentFailure, 0, len(models))
	for _, m := range models {
		failures = append(failures, r.mapper.ToEntity(m))
	}
	return failures, nil
}

func (r *PaymentFailureRepositoryImpl) Advance(ctx context.Context, id uuid.UUID, token string, expectedRetryCount int, step dunning.Step, now time.Time) (bool, error) {
	updates := map[string]interface{}{
		"retry_count": step.RetryCount,
		"claim_token": nil,
		"updated_at":  now,
	}
	if step.Abandoned {
		updates["status"] = string(entity.PaymentFailureStatusAbandoned)
		updates["abandoned_at"] = now
		updates["next_retry_at"] = nil
	} else {
		updates["next_retry_at"] = step.NextRetryAt
	}

	res := r.db.WithContext(ctx).
		Model(&model.PaymentFailure{}).
		Where("id = ? AND status = ? AND claim_token = ? AND retry_count = ?",
			id, string(entity.PaymentFailureStatusFailing), token, expectedRetryCount).
		Updates(updates)
	return res.RowsAffected == 1, res.Error
}

func (r *PaymentFailureRepositoryImpl) ReleaseClaim(ctx context.Context, id uuid.UUID, token string, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.PaymentFailure{}).
		Where("id = ? AND status = ? AND claim_token = ?", id, string(entity.PaymentFailureStatusFailing), token).
		Updates(map[string]interface{}{
			"next_retry_at": now,
			"claim_token":   nil,
		}).Error
}

func (r *PaymentFailureRepositoryImpl) MarkRecovered(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.PaymentFailure{}).
		Where("id = ? AND status IN ?", id, []string{
			string(entity.PaymentFailureStatusFailing),
			string(entity.PaymentFailureStatusAbandoned),
		}).
		Updates(map[string]interface{}{
			"status":        string(entity.PaymentFailureStatusRecovered),
			"recovered_at":  now,
			"next_retry_at": nil,
			"claim_token":   nil,
		})
	return res.RowsAffected == 1, res.Error
}

type DunningEmailRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.PaymentFailureMapper
}

func NewDunningEmailRepository(db *gorm.DB) contract.DunningEmailRepository {
	return &DunningEmailRepositoryImpl{
		db:     db,
		mapper: mapper.NewPaymentFailureMapper(),
	}
}

func (r *DunningEmailRepositoryImpl) Create(ctx context.Context, email *entity.DunningEmail) error {
	m := r.mapper.EmailToModel(email)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*email = *r.mapper.EmailToEntity(m)
	return nil
}

func (r *DunningEmailRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.DunningEmail, error) {
	var models []*model.DunningEmail
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	emails := make([]*entity.DunningEmail, 0, len(models))
	for _, m := range models {
		emails = append(emails, r.mapper.EmailToEntity(m))
	}
	return emails, nil
}

type DunningConfigRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.PaymentFailureMapper
}

func NewDunningConfigRepository(db *gorm.DB) contract.DunningConfigRepository {
	return &DunningConfigRepositoryImpl{
		db:     db,
		mapper: mapper.NewPaymentFailureMapper(),
	}
}

func (r *DunningConfigRepositoryImpl) FindByProject(ctx context.Context, projectId uuid.UUID) (*entity.DunningConfig, error) {
	var m model.DunningConfig
	if err := r.db.WithContext(ctx).Where("project_id = ?", projectId).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ConfigToEntity(&m), nil
}

func (r *DunningConfigRepositoryImpl) Upsert(ctx context.Context, config *entity.DunningConfig) error {
	m := r.mapper.ConfigToModel(config)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "project_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"max_retries", "retry_interval_hours", "tone_sequence", "custom_from_name", "updated_at"}),
		}).
		Create(m).Error
	if err != nil {
		return err
	}
	*config = *r.mapper.ConfigToEntity(m)
	return nil
}
