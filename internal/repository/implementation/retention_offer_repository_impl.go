package implementation

import (
	"context"
	"errors"

	"windback-be/internal/entity"
	"windback-be/internal/mapper"
	"windback-be/internal/model"
	"windback-be/internal/repository/contract"
	"windback-be/internal/repository/specification"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RetentionOfferRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ProjectMapper
}

func NewRetentionOfferRepository(db *gorm.DB) contract.RetentionOfferRepository {
	return &RetentionOfferRepositoryImpl{
		db:     db,
		mapper: mapper.NewProjectMapper(),
	}
}

func (r *RetentionOfferRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.RetentionOffer, error) {
	var m model.RetentionOffer
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.OfferToEntity(&m), nil
}

func (r *RetentionOfferRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.RetentionOffer, error) {
	var models []*model.RetentionOffer
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	offers := make([]*entity.RetentionOffer, 0, len(models))
	for _, m := range models {
		offers = append(offers, r.mapper.OfferToEntity(m))
	}
	return offers, nil
}

func (r *RetentionOfferRepositoryImpl) Upsert(ctx context.Context, offer *entity.RetentionOffer) error {
	m := r.mapper.OfferToModel(offer)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "project_id"}, {Name: "cancel_reason"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"offer_type", "title", "description", "cta_text",
				"discount_percent", "pause_days", "is_active", "updated_at",
			}),
		}).
		Create(m).Error
	if err != nil {
		return err
	}
	*offer = *r.mapper.OfferToEntity(m)
	return nil
}
