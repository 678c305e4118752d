package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"windback-be/internal/dto"
	"windback-be/internal/entity"
	"windback-be/internal/pkg/apperror"
	"windback-be/internal/repository/contract"
	"windback-be/internal/repository/specification"
	"windback-be/internal/repository/unitofwork"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/patrickmn/go-cache"
)

const projectCacheTTL = time.Minute

type IProjectService interface {
	Create(ctx context.Context, req *dto.CreateProjectRequest) (*dto.CreateProjectResponse, error)
	// Resolve loads a project by slug for operator routes.
	Resolve(ctx context.Context, slug string) (*entity.Project, error)
	// ResolveByPublicKey loads a project for webhook and public routes.
	ResolveByPublicKey(ctx context.Context, publicKey string) (*entity.Project, error)
	Get(ctx context.Context, slug string) (*dto.ProjectResponse, error)
	UpdateSettings(ctx context.Context, slug string, req *dto.UpdateProjectSettingsRequest) (*dto.ProjectResponse, error)
}

type projectService struct {
	uowFactory unitofwork.RepositoryFactory
	cache      *cache.Cache
}

func NewProjectService(uowFactory unitofwork.RepositoryFactory) IProjectService {
	return &projectService{
		uowFactory: uowFactory,
		cache:      cache.New(projectCacheTTL, 5*time.Minute),
	}
}

// randomToken returns 32 hex characters from a v4 uuid.
func randomToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (s *projectService) Create(ctx context.Context, req *dto.CreateProjectRequest) (*dto.CreateProjectResponse, error) {
	base := slug.Make(req.Name)
	if base == "" {
		return nil, apperror.Validation("project name must contain letters or digits")
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)

	projectSlug := base
	for i := 0; ; i++ {
		existing, err := uow.ProjectRepository().FindOne(ctx, specification.Filter("slug", projectSlug))
		if err != nil {
			return nil, err
		}
		if existing == nil {
			break
		}
		projectSlug = base + "-" + randomToken()[:6]
		if i > 5 {
			return nil, apperror.Conflict("could not allocate a slug for %q", req.Name)
		}
	}

	project := &entity.Project{
		Id:                     uuid.New(),
		Slug:                   projectSlug,
		Name:                   req.Name,
		PublicKey:              "pk_" + randomToken(),
		WebhookSecret:          "whsec_" + randomToken() + randomToken(),
		AutoSend:               req.AutoSend,
		FromName:               req.FromName,
		FromEmail:              req.FromEmail,
		NotifyChurnCreated:     true,
		NotifyChurnRecovered:   true,
		NotifyPaymentFailed:    true,
		NotifyPaymentRecovered: true,
	}
	if err := uow.ProjectRepository().Create(ctx, project); err != nil {
		if errors.Is(err, contract.ErrDuplicateKey) {
			return nil, apperror.Conflict("project slug %q is taken", projectSlug)
		}
		return nil, err
	}

	return &dto.CreateProjectResponse{
		ProjectResponse: *toProjectResponse(project),
		WebhookSecret:   project.WebhookSecret,
	}, nil
}

func (s *projectService) Resolve(ctx context.Context, projectSlug string) (*entity.Project, error) {
	return s.lookup(ctx, "slug:"+projectSlug, specification.Filter("slug", projectSlug))
}

func (s *projectService) ResolveByPublicKey(ctx context.Context, publicKey string) (*entity.Project, error) {
	return s.lookup(ctx, "pk:"+publicKey, specification.Filter("public_key", publicKey))
}

func (s *projectService) lookup(ctx context.Context, key string, spec specification.Specification) (*entity.Project, error) {
	if cached, ok := s.cache.Get(key); ok {
		return cached.(*entity.Project), nil
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	project, err := uow.ProjectRepository().FindOne(ctx, spec)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, apperror.NotFound("project not found")
	}

	s.cache.SetDefault(key, project)
	return project, nil
}

func (s *projectService) Get(ctx context.Context, projectSlug string) (*dto.ProjectResponse, error) {
	project, err := s.Resolve(ctx, projectSlug)
	if err != nil {
		return nil, err
	}
	return toProjectResponse(project), nil
}

func (s *projectService) UpdateSettings(ctx context.Context, projectSlug string, req *dto.UpdateProjectSettingsRequest) (*dto.ProjectResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	project, err := uow.ProjectRepository().FindOne(ctx, specification.Filter("slug", projectSlug))
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, apperror.NotFound("project not found")
	}

	applyString := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	applyBool := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}
	applyBool(&project.AutoSend, req.AutoSend)
	applyString(&project.FromName, req.FromName)
	applyString(&project.FromEmail, req.FromEmail)
	applyString(&project.SlackWebhookURL, req.SlackWebhookURL)
	applyString(&project.CustomWebhookURL, req.CustomWebhookURL)
	applyString(&project.CustomWebhookSecret, req.CustomWebhookSecret)
	applyBool(&project.NotifyChurnCreated, req.NotifyChurnCreated)
	applyBool(&project.NotifyChurnRecovered, req.NotifyChurnRecovered)
	applyBool(&project.NotifyPaymentFailed, req.NotifyPaymentFailed)
	applyBool(&project.NotifyPaymentRecovered, req.NotifyPaymentRecovered)

	if err := uow.ProjectRepository().Update(ctx, project); err != nil {
		return nil, err
	}

	s.cache.Delete("slug:" + project.Slug)
	s.cache.Delete("pk:" + project.PublicKey)
	return toProjectResponse(project), nil
}

func toProjectResponse(p *entity.Project) *dto.ProjectResponse {
	return &dto.ProjectResponse{
		Id:                     p.Id,
		Slug:                   p.Slug,
		Name:                   p.Name,
		PublicKey:              p.PublicKey,
		AutoSend:               p.AutoSend,
		FromName:               p.FromName,
		FromEmail:              p.FromEmail,
		SlackWebhookURL:        p.SlackWebhookURL,
		CustomWebhookURL:       p.CustomWebhookURL,
		NotifyChurnCreated:     p.NotifyChurnCreated,
		NotifyChurnRecovered:   p.NotifyChurnRecovered,
		NotifyPaymentFailed:    p.NotifyPaymentFailed,
		NotifyPaymentRecovered: p.NotifyPaymentRecovered,
		CreatedAt:              p.CreatedAt,
	}
}
