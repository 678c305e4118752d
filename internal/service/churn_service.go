package service

import (
	"context"
	"time"

	"windback-be/internal/dto"
	"windback-be/internal/entity"
	"windback-be/internal/pkg/apperror"
	"windback-be/internal/pkg/logger"
	"windback-be/internal/repository/specification"
	"windback-be/internal/repository/unitofwork"
	"windback-be/pkg/normalizer"

	"github.com/google/uuid"
)

const defaultListLimit = 50

type IChurnService interface {
	// RecordChurn stores a normalized cancellation. The bool reports whether a
	// new event was created; replays return the stored event.
	RecordChurn(ctx context.Context, project *entity.Project, ev *normalizer.Event) (*entity.ChurnEvent, bool, error)
	List(ctx context.Context, projectId uuid.UUID, req *dto.ListChurnEventsRequest) ([]*dto.ChurnEventResponse, error)
	Get(ctx context.Context, projectId uuid.UUID, id uuid.UUID) (*dto.ChurnEventResponse, error)
	MarkRecovered(ctx context.Context, projectId uuid.UUID, id uuid.UUID) (*dto.ChurnEventResponse, error)
	MarkLost(ctx context.Context, projectId uuid.UUID, id uuid.UUID) (*dto.ChurnEventResponse, error)
	// MarkRecoveredByCustomer closes every open event of a customer that resubscribed.
	MarkRecoveredByCustomer(ctx context.Context, projectId uuid.UUID, provider, customerId string) (int, error)
}

type churnService struct {
	uowFactory          unitofwork.RepositoryFactory
	publisherService    IPublisherService
	notificationService INotificationService
	logger              logger.ILogger
}

func NewChurnService(
	uowFactory unitofwork.RepositoryFactory,
	publisherService IPublisherService,
	notificationService INotificationService,
	log logger.ILogger,
) IChurnService {
	return &churnService{
		uowFactory:          uowFactory,
		publisherService:    publisherService,
		notificationService: notificationService,
		logger:              log,
	}
}

func (s *churnService) RecordChurn(ctx context.Context, project *entity.Project, ev *normalizer.Event) (*entity.ChurnEvent, bool, error) {
	subscriptionId := ev.SubscriptionID
	if subscriptionId == "" {
		subscriptionId = ev.CustomerID
	}
	if subscriptionId == "" {
		return nil, false, apperror.Validation("churn event has neither subscription nor customer id")
	}

	event := &entity.ChurnEvent{
		Id:                     uuid.New(),
		ProjectId:              project.Id,
		Provider:               string(ev.Provider),
		ProviderCustomerId:     ev.CustomerID,
		ProviderSubscriptionId: subscriptionId,
		EventType:              ev.ProviderEventType,
		CustomerEmail:          ev.CustomerEmail,
		CustomerName:           ev.CustomerName,
		PlanName:               ev.PlanName,
		MrrCents:               ev.MRRCents,
		Currency:               ev.Currency,
		TenureDays:             ev.TenureDays,
		LastActiveAt:           ev.LastActiveAt,
		CancelReason:           ev.CancelReason,
		CancelReasonText:       ev.CancelReasonText,
		Metadata:               ev.Metadata,
		Status:                 entity.ChurnEventStatusNew,
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	created, err := uow.ChurnEventRepository().CreateIfAbsent(ctx, event)
	if err != nil {
		return nil, false, err
	}

	if !created {
		existing, err := uow.ChurnEventRepository().FindOne(ctx,
			specification.ByProjectID{ProjectID: project.Id},
			specification.Filter("provider", event.Provider),
			specification.Filter("provider_subscription_id", event.ProviderSubscriptionId),
			specification.Filter("event_type", event.EventType),
		)
		if err != nil {
			return nil, false, err
		}
		if existing == nil {
			return nil, false, apperror.Conflict("churn event vanished after duplicate insert")
		}
		return existing, false, nil
	}

	s.logger.Info("CHURN", "Churn event recorded", map[string]interface{}{
		"project_id":     project.Id.String(),
		"churn_event_id": event.Id.String(),
		"provider":       event.Provider,
		"cancel_reason":  event.CancelReason,
	})

	s.notificationService.Notify(ctx, project.Id, entity.NotificationChurnCreated, churnPayload(event))

	if event.CustomerEmail == "" {
		// Nothing could be sent; operators can generate once an address is known.
		s.logger.Warn("CHURN", "Skipping variant generation for event without customer email", map[string]interface{}{
			"churn_event_id": event.Id.String(),
			"provider":       event.Provider,
		})
		return event, true, nil
	}

	job := dto.GenerateJobMessage{ProjectId: project.Id, ChurnEventId: event.Id}
	if err := s.publisherService.Publish(context.WithoutCancel(ctx), TopicGenerateVariants, job); err != nil {
		// Operators can still trigger generation by hand.
		s.logger.Error("CHURN", "Failed to queue variant generation", map[string]interface{}{
			"churn_event_id": event.Id.String(),
			"error":          err.Error(),
		})
	}

	return event, true, nil
}

func (s *churnService) List(ctx context.Context, projectId uuid.UUID, req *dto.ListChurnEventsRequest) ([]*dto.ChurnEventResponse, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	specs := []specification.Specification{
		specification.ByProjectID{ProjectID: projectId},
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: limit, Offset: req.Offset},
	}
	if req.Status != "" {
		specs = append(specs, specification.Filter("status", req.Status))
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	events, err := uow.ChurnEventRepository().FindAll(ctx, specs...)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.ChurnEventResponse, 0, len(events))
	for _, e := range events {
		res = append(res, toChurnEventResponse(e))
	}
	return res, nil
}

func (s *churnService) Get(ctx context.Context, projectId uuid.UUID, id uuid.UUID) (*dto.ChurnEventResponse, error) {
	event, err := s.load(ctx, projectId, id, true)
	if err != nil {
		return nil, err
	}
	return toChurnEventResponse(event), nil
}

func (s *churnService) load(ctx context.Context, projectId uuid.UUID, id uuid.UUID, withVariants bool) (*entity.ChurnEvent, error) {
	specs := []specification.Specification{
		specification.ByID{ID: id},
		specification.ByProjectID{ProjectID: projectId},
	}
	if withVariants {
		specs = append(specs, specification.WithVariants{})
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	event, err := uow.ChurnEventRepository().FindOne(ctx, specs...)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, apperror.NotFound("churn event not found")
	}
	return event, nil
}

func (s *churnService) MarkRecovered(ctx context.Context, projectId uuid.UUID, id uuid.UUID) (*dto.ChurnEventResponse, error) {
	return s.close(ctx, projectId, id, entity.ChurnEventStatusRecovered)
}

func (s *churnService) MarkLost(ctx context.Context, projectId uuid.UUID, id uuid.UUID) (*dto.ChurnEventResponse, error) {
	return s.close(ctx, projectId, id, entity.ChurnEventStatusLost)
}

// close moves an open event to a terminal status. Repeating the same terminal
// status is a no-op; switching between terminal statuses is a conflict.
func (s *churnService) close(ctx context.Context, projectId uuid.UUID, id uuid.UUID, to entity.ChurnEventStatus) (*dto.ChurnEventResponse, error) {
	event, err := s.load(ctx, projectId, id, false)
	if err != nil {
		return nil, err
	}

	if !event.Status.IsTerminal() {
		uow := s.uowFactory.NewUnitOfWork(ctx)
		ok, err := uow.ChurnEventRepository().TransitionStatus(ctx, id, entity.OpenChurnStatuses(), to, time.Now().UTC())
		if err != nil {
			return nil, err
		}
		if ok && to == entity.ChurnEventStatusRecovered {
			s.notificationService.Notify(ctx, projectId, entity.NotificationChurnRecovered, churnPayload(event))
		}
	}

	event, err = s.load(ctx, projectId, id, true)
	if err != nil {
		return nil, err
	}
	if event.Status != to {
		return nil, apperror.Conflict("churn event is already %s", event.Status)
	}
	return toChurnEventResponse(event), nil
}

func (s *churnService) MarkRecoveredByCustomer(ctx context.Context, projectId uuid.UUID, provider, customerId string) (int, error) {
	if customerId == "" {
		return 0, nil
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	open := make([]string, 0, 4)
	for _, st := range entity.OpenChurnStatuses() {
		open = append(open, string(st))
	}
	events, err := uow.ChurnEventRepository().FindAll(ctx,
		specification.ByProjectID{ProjectID: projectId},
		specification.Filter("provider", provider),
		specification.Filter("provider_customer_id", customerId),
		specification.FieldIn{Field: "status", Values: open},
	)
	if err != nil {
		return 0, err
	}

	recovered := 0
	now := time.Now().UTC()
	for _, e := range events {
		ok, err := uow.ChurnEventRepository().TransitionStatus(ctx, e.Id, entity.OpenChurnStatuses(), entity.ChurnEventStatusRecovered, now)
		if err != nil {
			return recovered, err
		}
		if ok {
			recovered++
			s.notificationService.Notify(ctx, projectId, entity.NotificationChurnRecovered, churnPayload(e))
		}
	}
	return recovered, nil
}

func churnPayload(e *entity.ChurnEvent) map[string]interface{} {
	return map[string]interface{}{
		"churn_event_id": e.Id.String(),
		"customer_email": e.CustomerEmail,
		"customer_name":  e.CustomerName,
		"plan_name":      e.PlanName,
		"mrr_cents":      e.MrrCents,
		"currency":       e.Currency,
		"cancel_reason":  e.CancelReason,
	}
}

func toChurnEventResponse(e *entity.ChurnEvent) *dto.ChurnEventResponse {
	res := &dto.ChurnEventResponse{
		Id:                     e.Id,
		Provider:               e.Provider,
		ProviderCustomerId:     e.ProviderCustomerId,
		ProviderSubscriptionId: e.ProviderSubscriptionId,
		EventType:              e.EventType,
		CustomerEmail:          e.CustomerEmail,
		CustomerName:           e.CustomerName,
		PlanName:               e.PlanName,
		MrrCents:               e.MrrCents,
		Currency:               e.Currency,
		TenureDays:             e.TenureDays,
		LastActiveAt:           e.LastActiveAt,
		CancelReason:           e.CancelReason,
		CancelReasonText:       e.CancelReasonText,
		Metadata:               e.Metadata,
		Status:                 string(e.Status),
		RecoveredAt:            e.RecoveredAt,
		LostAt:                 e.LostAt,
		CreatedAt:              e.CreatedAt,
		UpdatedAt:              e.UpdatedAt,
	}
	for _, v := range e.Variants {
		res.Variants = append(res.Variants, toVariantResponse(v))
	}
	return res
}

func toVariantResponse(v *entity.RecoveryVariant) *dto.VariantResponse {
	return &dto.VariantResponse{
		Id:            v.Id,
		ChurnEventId:  v.ChurnEventId,
		Strategy:      v.Strategy,
		Subject:       v.Subject,
		Body:          v.Body,
		CouponCode:    v.CouponCode,
		CouponPercent: v.CouponPercent,
		Position:      v.Position,
		SentAt:        v.SentAt,
		OpenedAt:      v.OpenedAt,
		ClickedAt:     v.ClickedAt,
	}
}
