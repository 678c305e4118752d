package implementation

import (
	"context"
	"errors"

	"windback-be/internal/entity"
	"windback-be/internal/mapper"
	"windback-be/internal/model"
	"windback-be/internal/repository/contract"
	"windback-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RecoveryTemplateRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChurnMapper
}

func NewRecoveryTemplateRepository(db *gorm.DB) contract.RecoveryTemplateRepository {
	return &RecoveryTemplateRepositoryImpl{
		db:     db,
		mapper: mapper.NewChurnMapper(),
	}
}

func (r *RecoveryTemplateRepositoryImpl) Create(ctx context.Context, template *entity.RecoveryTemplate) error {
	m := r.mapper.TemplateToModel(template)
	// Select("*") so an explicit is_active=false is written.
	if err := r.db.WithContext(ctx).Select("*").Create(m).Error; err != nil {
		return translate(err)
	}
	*template = *r.mapper.TemplateToEntity(m)
	return nil
}

func (r *RecoveryTemplateRepositoryImpl) Update(ctx context.Context, template *entity.RecoveryTemplate) error {
	m := r.mapper.TemplateToModel(template)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return translate(err)
	}
	*template = *r.mapper.TemplateToEntity(m)
	return nil
}

func (r *RecoveryTemplateRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.RecoveryTemplate{}, "id = ?", id).Error
}

func (r *RecoveryTemplateRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.RecoveryTemplate, error) {
	var m model.RecoveryTemplate
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.TemplateToEntity(&m), nil
}

func (r *RecoveryTemplateRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.RecoveryTemplate, error) {
	var models []*model.RecoveryTemplate
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	templates := make([]*entity.RecoveryTemplate, 0, len(models))
	for _, m := range models {
		templates = append(templates, r.mapper.TemplateToEntity(m))
	}
	return templates, nil
}

func (r *RecoveryTemplateRepositoryImpl) DeactivateOthers(ctx context.Context, projectId uuid.UUID, cancelReason string, exceptId uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&model.RecoveryTemplate{}).
		Where("project_id = ? AND cancel_reason = ? AND id <> ? AND is_active", projectId, cancelReason, exceptId).
		Update("is_active", false).Error
}
