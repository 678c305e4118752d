package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"windback-be/internal/dto"
	"windback-be/internal/entity"
	"windback-be/internal/pkg/apperror"
	"windback-be/internal/pkg/logger"
	"windback-be/internal/repository/contract"
	"windback-be/pkg/normalizer"
)

type IWebhookService interface {
	// Ingest verifies, normalizes and applies one provider delivery.
	Ingest(ctx context.Context, provider, publicKey string, body []byte, header func(string) string) (*dto.WebhookResponse, error)
}

type webhookService struct {
	registry       *normalizer.Registry
	replayGuard    contract.ReplayGuard
	replayTTL      time.Duration
	projectService IProjectService
	churnService   IChurnService
	dunningService IDunningService
	logger         logger.ILogger
}

func NewWebhookService(
	registry *normalizer.Registry,
	replayGuard contract.ReplayGuard,
	replayTTL time.Duration,
	projectService IProjectService,
	churnService IChurnService,
	dunningService IDunningService,
	log logger.ILogger,
) IWebhookService {
	return &webhookService{
		registry:       registry,
		replayGuard:    replayGuard,
		replayTTL:      replayTTL,
		projectService: projectService,
		churnService:   churnService,
		dunningService: dunningService,
		logger:         log,
	}
}

func (s *webhookService) Ingest(ctx context.Context, provider, publicKey string, body []byte, header func(string) string) (*dto.WebhookResponse, error) {
	n, err := s.registry.Get(provider)
	if err != nil {
		return nil, apperror.NotFound("unknown provider %q", provider)
	}
	project, err := s.projectService.ResolveByPublicKey(ctx, publicKey)
	if err != nil {
		return nil, err
	}

	ev, err := n.Normalize(normalizer.Request{
		Body:   body,
		Header: header,
		Secret: project.WebhookSecret,
		Now:    time.Now(),
	})
	if err != nil {
		switch {
		case errors.Is(err, normalizer.ErrSignature):
			s.logger.Warn("WEBHOOK", "Rejected webhook with invalid signature", map[string]interface{}{
				"security_event": true,
				"provider":       provider,
				"project_id":     project.Id.String(),
				"error":          err.Error(),
			})
			return nil, apperror.Signature(err)
		case errors.Is(err, normalizer.ErrInvalidPayload):
			return nil, apperror.Validation("%s", err.Error())
		}
		return nil, err
	}

	res := &dto.WebhookResponse{Kind: string(ev.Kind), EventType: ev.ProviderEventType}
	if ev.Kind == normalizer.KindIgnored {
		res.Status = dto.WebhookStatusIgnored
		return res, nil
	}

	replayKey := ""
	if ev.DeliveryID != "" && s.replayGuard != nil {
		key := fmt.Sprintf("%s:%s:%s", ev.Provider, project.Id, ev.DeliveryID)
		first, err := s.replayGuard.Claim(ctx, key, s.replayTTL)
		if err != nil {
			// Row-level idempotency still holds without the guard.
			s.logger.Warn("WEBHOOK", "Replay guard unavailable", map[string]interface{}{"error": err.Error()})
		} else if !first {
			res.Status = dto.WebhookStatusDuplicate
			return res, nil
		} else {
			replayKey = key
		}
	}

	if ev.Kind == normalizer.KindChurn || ev.Kind == normalizer.KindPaymentFailed {
		if _, err := s.registry.Enrich(ctx, ev); err != nil {
			s.logger.Warn("WEBHOOK", "Customer lookup failed", map[string]interface{}{
				"provider":    string(ev.Provider),
				"customer_id": ev.CustomerID,
				"error":       err.Error(),
			})
		}
	}

	if err := s.apply(ctx, project, ev, res); err != nil {
		if replayKey != "" {
			if ferr := s.replayGuard.Forget(context.WithoutCancel(ctx), replayKey); ferr != nil {
				s.logger.Warn("WEBHOOK", "Failed to forget delivery", map[string]interface{}{"error": ferr.Error()})
			}
		}
		return nil, err
	}

	s.logger.Info("WEBHOOK", "Webhook processed", map[string]interface{}{
		"provider":    string(ev.Provider),
		"project_id":  project.Id.String(),
		"kind":        string(ev.Kind),
		"event_type":  ev.ProviderEventType,
		"delivery_id": ev.DeliveryID,
		"status":      res.Status,
	})
	return res, nil
}

func (s *webhookService) apply(ctx context.Context, project *entity.Project, ev *normalizer.Event, res *dto.WebhookResponse) error {
	res.Status = dto.WebhookStatusProcessed

	switch ev.Kind {
	case normalizer.KindChurn:
		event, created, err := s.churnService.RecordChurn(ctx, project, ev)
		if err != nil {
			return err
		}
		res.ChurnEventId = &event.Id
		if !created {
			res.Status = dto.WebhookStatusDuplicate
		}

	case normalizer.KindPaymentFailed:
		failure, created, err := s.dunningService.RecordFailure(ctx, project, ev)
		if err != nil {
			return err
		}
		res.PaymentFailureId = &failure.Id
		if !created {
			res.Status = dto.WebhookStatusDuplicate
		}

	case normalizer.KindPaymentSucceeded:
		failure, recovered, err := s.dunningService.MarkRecoveredByInvoice(ctx, project.Id, string(ev.Provider), ev.InvoiceID)
		if err != nil {
			return err
		}
		if failure != nil {
			res.PaymentFailureId = &failure.Id
		}
		if !recovered {
			res.Status = dto.WebhookStatusIgnored
		}

	case normalizer.KindResubscribed:
		count, err := s.churnService.MarkRecoveredByCustomer(ctx, project.Id, string(ev.Provider), ev.CustomerID)
		if err != nil {
			return err
		}
		if count == 0 {
			res.Status = dto.WebhookStatusIgnored
		}

	default:
		res.Status = dto.WebhookStatusIgnored
	}
	return nil
}
