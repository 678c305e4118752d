package service

import (
	"context"
	"time"

	"windback-be/internal/dto"
	"windback-be/internal/entity"
	"windback-be/internal/pkg/apperror"
	"windback-be/internal/pkg/logger"
	"windback-be/internal/pkg/mailer"
	"windback-be/internal/repository/specification"
	"windback-be/internal/repository/unitofwork"
	"windback-be/pkg/recovery"

	"github.com/google/uuid"
)

// ISendPolicy owns every write to a variant after generation: sending,
// editing and engagement tracking.
type ISendPolicy interface {
	// Send emails one variant. Sending an already sent variant returns its
	// original timestamp without emailing again.
	Send(ctx context.Context, project *entity.Project, eventId uuid.UUID, variantId uuid.UUID) (*dto.SendVariantResponse, error)
	// AutoSend sends the variant matching the event's cancel reason.
	AutoSend(ctx context.Context, project *entity.Project, eventId uuid.UUID) (*dto.SendVariantResponse, error)
	UpdateVariant(ctx context.Context, projectId uuid.UUID, eventId uuid.UUID, variantId uuid.UUID, req *dto.UpdateVariantRequest) (*dto.VariantResponse, error)
	TrackOpen(ctx context.Context, variantId uuid.UUID) (*dto.TrackResponse, error)
	TrackClick(ctx context.Context, variantId uuid.UUID) (*dto.TrackResponse, error)
}

type sendPolicy struct {
	uowFactory unitofwork.RepositoryFactory
	mailer     mailer.IMailer
	claimLease time.Duration
	logger     logger.ILogger
	now        func() time.Time
}

func NewSendPolicy(
	uowFactory unitofwork.RepositoryFactory,
	mailer mailer.IMailer,
	claimLease time.Duration,
	log logger.ILogger,
) ISendPolicy {
	return &sendPolicy{
		uowFactory: uowFactory,
		mailer:     mailer,
		claimLease: claimLease,
		logger:     log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (p *sendPolicy) loadEvent(ctx context.Context, uow unitofwork.UnitOfWork, projectId, eventId uuid.UUID, withVariants bool) (*entity.ChurnEvent, error) {
	specs := []specification.Specification{
		specification.ByID{ID: eventId},
		specification.ByProjectID{ProjectID: projectId},
	}
	if withVariants {
		specs = append(specs, specification.WithVariants{})
	}
	event, err := uow.ChurnEventRepository().FindOne(ctx, specs...)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, apperror.NotFound("churn event not found")
	}
	return event, nil
}

func (p *sendPolicy) loadVariant(ctx context.Context, uow unitofwork.UnitOfWork, eventId, variantId uuid.UUID) (*entity.RecoveryVariant, error) {
	variant, err := uow.RecoveryVariantRepository().FindOne(ctx,
		specification.ByID{ID: variantId},
		specification.ByChurnEventID{ChurnEventID: eventId},
	)
	if err != nil {
		return nil, err
	}
	if variant == nil {
		return nil, apperror.NotFound("variant not found")
	}
	return variant, nil
}

func alreadySent(v *entity.RecoveryVariant) *dto.SendVariantResponse {
	return &dto.SendVariantResponse{VariantId: v.Id, SentAt: *v.SentAt, AlreadySent: true}
}

func (p *sendPolicy) Send(ctx context.Context, project *entity.Project, eventId uuid.UUID, variantId uuid.UUID) (*dto.SendVariantResponse, error) {
	uow := p.uowFactory.NewUnitOfWork(ctx)

	event, err := p.loadEvent(ctx, uow, project.Id, eventId, false)
	if err != nil {
		return nil, err
	}
	variant, err := p.loadVariant(ctx, uow, eventId, variantId)
	if err != nil {
		return nil, err
	}
	if variant.IsSent() {
		return alreadySent(variant), nil
	}
	if !event.Status.CanSend() {
		return nil, apperror.Conflict("churn event is %s", event.Status)
	}
	if event.CustomerEmail == "" {
		return nil, apperror.Validation("churn event has no customer email")
	}

	now := p.now()
	staleBefore := now.Add(-p.claimLease)

	eventClaimed := false
	if project.AutoSend {
		sent, err := uow.RecoveryVariantRepository().Count(ctx,
			specification.ByChurnEventID{ChurnEventID: eventId},
			specification.NotNull{Field: "sent_at"},
		)
		if err != nil {
			return nil, err
		}
		if sent > 0 {
			return nil, apperror.Conflict("another variant of this churn event was already sent")
		}
		ok, err := uow.ChurnEventRepository().ClaimSend(ctx, eventId, now, staleBefore)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apperror.Conflict("another send for this churn event is in progress")
		}
		eventClaimed = true
	}

	release := func() {
		if err := uow.RecoveryVariantRepository().ReleaseClaim(ctx, variantId); err != nil {
			p.logger.Warn("SEND", "Failed to release variant claim", map[string]interface{}{"variant_id": variantId.String(), "error": err.Error()})
		}
		if eventClaimed {
			if err := uow.ChurnEventRepository().ReleaseSendClaim(ctx, eventId); err != nil {
				p.logger.Warn("SEND", "Failed to release event claim", map[string]interface{}{"churn_event_id": eventId.String(), "error": err.Error()})
			}
		}
	}

	ok, err := uow.RecoveryVariantRepository().ClaimSend(ctx, variantId, now, staleBefore)
	if err != nil {
		return nil, err
	}
	if !ok {
		if eventClaimed {
			if err := uow.ChurnEventRepository().ReleaseSendClaim(ctx, eventId); err != nil {
				p.logger.Warn("SEND", "Failed to release event claim", map[string]interface{}{"churn_event_id": eventId.String(), "error": err.Error()})
			}
		}
		current, err := p.loadVariant(ctx, uow, eventId, variantId)
		if err != nil {
			return nil, err
		}
		if current.IsSent() {
			return alreadySent(current), nil
		}
		return nil, apperror.Conflict("variant send is already in progress")
	}

	err = p.mailer.Send(ctx, mailer.Message{
		To:             event.CustomerEmail,
		ToName:         event.CustomerName,
		FromName:       project.FromName,
		FromEmail:      project.FromEmail,
		Subject:        variant.Subject,
		HTMLBody:       variant.Body,
		IdempotencyKey: "variant:" + variantId.String(),
	})
	if err != nil {
		release()
		return nil, apperror.Delivery(err)
	}

	sentAt := p.now()
	if err := p.recordSent(ctx, eventId, variantId, sentAt); err != nil {
		// The email is out; keep the claims so a retry cannot send it twice
		// before the lease expires.
		p.logger.Error("SEND", "Email sent but not recorded", map[string]interface{}{
			"variant_id": variantId.String(),
			"error":      err.Error(),
		})
		return nil, err
	}

	p.logger.Info("SEND", "Variant sent", map[string]interface{}{
		"project_id":     project.Id.String(),
		"churn_event_id": eventId.String(),
		"variant_id":     variantId.String(),
		"strategy":       variant.Strategy,
	})
	return &dto.SendVariantResponse{VariantId: variantId, SentAt: sentAt}, nil
}

func (p *sendPolicy) recordSent(ctx context.Context, eventId, variantId uuid.UUID, at time.Time) error {
	uow := p.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	ok, err := uow.RecoveryVariantRepository().MarkSent(ctx, variantId, at)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.Conflict("variant was already marked sent")
	}
	// A terminal event stays terminal; the variant is still recorded as sent.
	if _, err := uow.ChurnEventRepository().TransitionStatus(ctx, eventId,
		[]entity.ChurnEventStatus{entity.ChurnEventStatusVariantsGenerated, entity.ChurnEventStatusEmailSent},
		entity.ChurnEventStatusEmailSent, at,
	); err != nil {
		return err
	}
	return uow.Commit()
}

func (p *sendPolicy) AutoSend(ctx context.Context, project *entity.Project, eventId uuid.UUID) (*dto.SendVariantResponse, error) {
	uow := p.uowFactory.NewUnitOfWork(ctx)
	event, err := p.loadEvent(ctx, uow, project.Id, eventId, true)
	if err != nil {
		return nil, err
	}
	if len(event.Variants) == 0 {
		return nil, apperror.NotFound("churn event has no variants")
	}

	want := string(recovery.SelectStrategy(event.CancelReason))
	// Variants come ordered by position; the first is the fallback.
	chosen := event.Variants[0]
	for _, v := range event.Variants {
		if v.Strategy == want {
			chosen = v
			break
		}
	}
	return p.Send(ctx, project, eventId, chosen.Id)
}

func (p *sendPolicy) UpdateVariant(ctx context.Context, projectId uuid.UUID, eventId uuid.UUID, variantId uuid.UUID, req *dto.UpdateVariantRequest) (*dto.VariantResponse, error) {
	uow := p.uowFactory.NewUnitOfWork(ctx)
	if _, err := p.loadEvent(ctx, uow, projectId, eventId, false); err != nil {
		return nil, err
	}
	variant, err := p.loadVariant(ctx, uow, eventId, variantId)
	if err != nil {
		return nil, err
	}
	if variant.IsSent() {
		return nil, apperror.Conflict("variant was already sent and can no longer be edited")
	}

	ok, err := uow.RecoveryVariantRepository().UpdateContent(ctx, variantId, req.Subject, req.Body, p.now().Add(-p.claimLease))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.Conflict("variant is being sent and can no longer be edited")
	}

	variant, err = p.loadVariant(ctx, uow, eventId, variantId)
	if err != nil {
		return nil, err
	}
	return toVariantResponse(variant), nil
}

func (p *sendPolicy) TrackOpen(ctx context.Context, variantId uuid.UUID) (*dto.TrackResponse, error) {
	return p.track(ctx, variantId, func(uow unitofwork.UnitOfWork, at time.Time) (bool, error) {
		return uow.RecoveryVariantRepository().MarkOpened(ctx, variantId, at)
	})
}

func (p *sendPolicy) TrackClick(ctx context.Context, variantId uuid.UUID) (*dto.TrackResponse, error) {
	return p.track(ctx, variantId, func(uow unitofwork.UnitOfWork, at time.Time) (bool, error) {
		return uow.RecoveryVariantRepository().MarkClicked(ctx, variantId, at)
	})
}

// track records engagement on a sent variant. Repeats keep the first timestamp.
func (p *sendPolicy) track(ctx context.Context, variantId uuid.UUID, mark func(unitofwork.UnitOfWork, time.Time) (bool, error)) (*dto.TrackResponse, error) {
	uow := p.uowFactory.NewUnitOfWork(ctx)
	variant, err := uow.RecoveryVariantRepository().FindOne(ctx, specification.ByID{ID: variantId})
	if err != nil {
		return nil, err
	}
	if variant == nil {
		return nil, apperror.NotFound("variant not found")
	}
	if !variant.IsSent() {
		return nil, apperror.Conflict("variant has not been sent")
	}

	recorded, err := mark(uow, p.now())
	if err != nil {
		return nil, err
	}
	return &dto.TrackResponse{Recorded: recorded}, nil
}
