package service

import (
	"context"
	"strings"

	"windback-be/internal/dto"
	"windback-be/internal/entity"
	"windback-be/internal/pkg/apperror"
	"windback-be/internal/repository/specification"
	"windback-be/internal/repository/unitofwork"
	"windback-be/pkg/recovery"

	"github.com/google/uuid"
)

const maxPauseDays = 365

type IRetentionService interface {
	// Resolve returns the active offer for the base cancel reason, or nil when
	// that reason has none. Unknown reasons resolve as "other".
	Resolve(ctx context.Context, projectId uuid.UUID, cancelReason string) (*entity.RetentionOffer, error)
	ResolvePublic(ctx context.Context, projectId uuid.UUID, cancelReason string) (*dto.PublicRetentionOfferResponse, error)
	List(ctx context.Context, projectId uuid.UUID) ([]*dto.RetentionOfferResponse, error)
	Upsert(ctx context.Context, projectId uuid.UUID, cancelReason string, req *dto.RetentionOfferRequest) (*dto.RetentionOfferResponse, error)
}

type retentionService struct {
	uowFactory unitofwork.RepositoryFactory
}

func NewRetentionService(uowFactory unitofwork.RepositoryFactory) IRetentionService {
	return &retentionService{uowFactory: uowFactory}
}

func (s *retentionService) Resolve(ctx context.Context, projectId uuid.UUID, cancelReason string) (*entity.RetentionOffer, error) {
	reason, _ := recovery.ParseCancelReason(cancelReason)

	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.RetentionOfferRepository().FindOne(ctx,
		specification.ByProjectID{ProjectID: projectId},
		specification.Filter("cancel_reason", string(reason)),
		specification.Filter("is_active", true),
	)
}

func (s *retentionService) ResolvePublic(ctx context.Context, projectId uuid.UUID, cancelReason string) (*dto.PublicRetentionOfferResponse, error) {
	offer, err := s.Resolve(ctx, projectId, cancelReason)
	if err != nil {
		return nil, err
	}
	if offer == nil {
		return nil, apperror.NotFound("no retention offer for this reason")
	}
	return &dto.PublicRetentionOfferResponse{
		CancelReason:    offer.CancelReason,
		OfferType:       string(offer.OfferType),
		Title:           offer.Title,
		Description:     offer.Description,
		CtaText:         offer.CtaText,
		DiscountPercent: offer.DiscountPercent,
		PauseDays:       offer.PauseDays,
	}, nil
}

func (s *retentionService) List(ctx context.Context, projectId uuid.UUID) ([]*dto.RetentionOfferResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	offers, err := uow.RetentionOfferRepository().FindAll(ctx,
		specification.ByProjectID{ProjectID: projectId},
		specification.OrderBy{Field: "cancel_reason"},
	)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.RetentionOfferResponse, 0, len(offers))
	for _, o := range offers {
		res = append(res, toRetentionOfferResponse(o))
	}
	return res, nil
}

func (s *retentionService) Upsert(ctx context.Context, projectId uuid.UUID, cancelReason string, req *dto.RetentionOfferRequest) (*dto.RetentionOfferResponse, error) {
	reason := recovery.CancelReason(strings.ToLower(strings.TrimSpace(cancelReason)))
	if !reason.IsValid() {
		return nil, apperror.Validation("unknown cancel reason %q", cancelReason)
	}
	offerType := entity.OfferType(req.OfferType)
	if !offerType.IsValid() {
		return nil, apperror.Validation("unknown offer type %q", req.OfferType)
	}

	offer := &entity.RetentionOffer{
		Id:           uuid.New(),
		ProjectId:    projectId,
		CancelReason: string(reason),
		OfferType:    offerType,
		Title:        req.Title,
		Description:  req.Description,
		CtaText:      req.CtaText,
		IsActive:     true,
	}
	if req.IsActive != nil {
		offer.IsActive = *req.IsActive
	}

	switch offerType {
	case entity.OfferTypeDiscount:
		if req.DiscountPercent == nil || *req.DiscountPercent < 1 || *req.DiscountPercent > 100 {
			return nil, apperror.Validation("discount offers need discount_percent between 1 and 100")
		}
		offer.DiscountPercent = req.DiscountPercent
	case entity.OfferTypePause:
		if req.PauseDays == nil || *req.PauseDays < 1 || *req.PauseDays > maxPauseDays {
			return nil, apperror.Validation("pause offers need pause_days between 1 and %d", maxPauseDays)
		}
		offer.PauseDays = req.PauseDays
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.RetentionOfferRepository().Upsert(ctx, offer); err != nil {
		return nil, err
	}

	// Re-read: on conflict the stored row keeps its original id.
	saved, err := uow.RetentionOfferRepository().FindOne(ctx,
		specification.ByProjectID{ProjectID: projectId},
		specification.Filter("cancel_reason", string(reason)),
	)
	if err != nil {
		return nil, err
	}
	if saved == nil {
		return nil, apperror.NotFound("retention offer not found after save")
	}
	return toRetentionOfferResponse(saved), nil
}

func toRetentionOfferResponse(o *entity.RetentionOffer) *dto.RetentionOfferResponse {
	return &dto.RetentionOfferResponse{
		Id:              o.Id,
		CancelReason:    o.CancelReason,
		OfferType:       string(o.OfferType),
		Title:           o.Title,
		Description:     o.Description,
		CtaText:         o.CtaText,
		DiscountPercent: o.DiscountPercent,
		PauseDays:       o.PauseDays,
		IsActive:        o.IsActive,
		UpdatedAt:       o.UpdatedAt,
	}
}
