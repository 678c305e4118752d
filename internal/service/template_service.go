package service

import (
	"context"
	"errors"
	"strings"

	"windback-be/internal/dto"
	"windback-be/internal/entity"
	"windback-be/internal/pkg/apperror"
	"windback-be/internal/repository/contract"
	"windback-be/internal/repository/specification"
	"windback-be/internal/repository/unitofwork"
	"windback-be/pkg/recovery"

	"github.com/google/uuid"
)

type ITemplateService interface {
	List(ctx context.Context, projectId uuid.UUID) ([]*dto.TemplateResponse, error)
	Create(ctx context.Context, projectId uuid.UUID, req *dto.TemplateRequest) (*dto.TemplateResponse, error)
	Update(ctx context.Context, projectId uuid.UUID, id uuid.UUID, req *dto.TemplateRequest) (*dto.TemplateResponse, error)
	Delete(ctx context.Context, projectId uuid.UUID, id uuid.UUID) error
}

type templateService struct {
	uowFactory unitofwork.RepositoryFactory
}

func NewTemplateService(uowFactory unitofwork.RepositoryFactory) ITemplateService {
	return &templateService{uowFactory: uowFactory}
}

func parseTemplateReason(raw string) (recovery.CancelReason, error) {
	reason := recovery.CancelReason(strings.ToLower(strings.TrimSpace(raw)))
	if !reason.IsValid() {
		return "", apperror.Validation("unknown cancel reason %q", raw)
	}
	return reason, nil
}

func (s *templateService) List(ctx context.Context, projectId uuid.UUID) ([]*dto.TemplateResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	templates, err := uow.RecoveryTemplateRepository().FindAll(ctx,
		specification.ByProjectID{ProjectID: projectId},
		specification.OrderBy{Field: "cancel_reason"},
		specification.OrderBy{Field: "created_at"},
	)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.TemplateResponse, 0, len(templates))
	for _, t := range templates {
		res = append(res, toTemplateResponse(t))
	}
	return res, nil
}

func (s *templateService) Create(ctx context.Context, projectId uuid.UUID, req *dto.TemplateRequest) (*dto.TemplateResponse, error) {
	reason, err := parseTemplateReason(req.CancelReason)
	if err != nil {
		return nil, err
	}

	tpl := &entity.RecoveryTemplate{
		Id:           uuid.New(),
		ProjectId:    projectId,
		CancelReason: string(reason),
		Name:         req.Name,
		Subject:      req.Subject,
		Body:         req.Body,
		IsActive:     req.IsActive,
	}

	if err := s.save(ctx, tpl, true); err != nil {
		return nil, err
	}
	return toTemplateResponse(tpl), nil
}

func (s *templateService) Update(ctx context.Context, projectId uuid.UUID, id uuid.UUID, req *dto.TemplateRequest) (*dto.TemplateResponse, error) {
	reason, err := parseTemplateReason(req.CancelReason)
	if err != nil {
		return nil, err
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	tpl, err := uow.RecoveryTemplateRepository().FindOne(ctx,
		specification.ByID{ID: id},
		specification.ByProjectID{ProjectID: projectId},
	)
	if err != nil {
		return nil, err
	}
	if tpl == nil {
		return nil, apperror.NotFound("template not found")
	}

	tpl.CancelReason = string(reason)
	tpl.Name = req.Name
	tpl.Subject = req.Subject
	tpl.Body = req.Body
	tpl.IsActive = req.IsActive

	if err := s.save(ctx, tpl, false); err != nil {
		return nil, err
	}
	return toTemplateResponse(tpl), nil
}

// save writes the template and, when it is active, deactivates every other
// active template for the same reason in the same transaction.
func (s *templateService) save(ctx context.Context, tpl *entity.RecoveryTemplate, create bool) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if tpl.IsActive {
		if err := uow.RecoveryTemplateRepository().DeactivateOthers(ctx, tpl.ProjectId, tpl.CancelReason, tpl.Id); err != nil {
			return err
		}
	}

	var err error
	if create {
		err = uow.RecoveryTemplateRepository().Create(ctx, tpl)
	} else {
		err = uow.RecoveryTemplateRepository().Update(ctx, tpl)
	}
	if errors.Is(err, contract.ErrDuplicateKey) {
		return apperror.Conflict("another active template for %q was saved concurrently", tpl.CancelReason)
	}
	if err != nil {
		return err
	}

	return uow.Commit()
}

func (s *templateService) Delete(ctx context.Context, projectId uuid.UUID, id uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	tpl, err := uow.RecoveryTemplateRepository().FindOne(ctx,
		specification.ByID{ID: id},
		specification.ByProjectID{ProjectID: projectId},
	)
	if err != nil {
		return err
	}
	if tpl == nil {
		return apperror.NotFound("template not found")
	}
	return uow.RecoveryTemplateRepository().Delete(ctx, id)
}

func toTemplateResponse(t *entity.RecoveryTemplate) *dto.TemplateResponse {
	return &dto.TemplateResponse{
		Id:           t.Id,
		CancelReason: t.CancelReason,
		Name:         t.Name,
		Subject:      t.Subject,
		Body:         t.Body,
		IsActive:     t.IsActive,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}
