package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"windback-be/internal/dto"
	"windback-be/internal/entity"
	"windback-be/internal/pkg/apperror"
	"windback-be/internal/pkg/logger"
	"windback-be/internal/pkg/notifier"
	"windback-be/internal/repository/specification"
	"windback-be/internal/repository/unitofwork"
	"windback-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

const notificationRetryBackoff = 2 * time.Second

// EventPublisher forwards lifecycle events to an external bus.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type INotificationService interface {
	// Notify queues a notification. It never fails the caller.
	Notify(ctx context.Context, projectId uuid.UUID, kind entity.NotificationKind, payload map[string]interface{})
	// Deliver sends one notification to every enabled channel of the project.
	Deliver(ctx context.Context, msg dto.NotificationMessage) error
	Consume(ctx context.Context) error
}

type notificationService struct {
	uowFactory  unitofwork.RepositoryFactory
	publisher   IPublisherService
	subscriber  message.Subscriber
	events      EventPublisher
	client      *http.Client
	backoff     time.Duration
	logger      logger.ILogger
	deliveryLog logger.ILogger
}

// NewNotificationService wires the dispatcher. events may be nil when no
// external bus is configured.
func NewNotificationService(
	uowFactory unitofwork.RepositoryFactory,
	publisher IPublisherService,
	subscriber message.Subscriber,
	events EventPublisher,
	client *http.Client,
	log logger.ILogger,
	deliveryLog logger.ILogger,
) INotificationService {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &notificationService{
		uowFactory:  uowFactory,
		publisher:   publisher,
		subscriber:  subscriber,
		events:      events,
		client:      client,
		backoff:     notificationRetryBackoff,
		logger:      log,
		deliveryLog: deliveryLog,
	}
}

func (s *notificationService) Notify(ctx context.Context, projectId uuid.UUID, kind entity.NotificationKind, payload map[string]interface{}) {
	msg := dto.NotificationMessage{
		ProjectId:  projectId,
		Kind:       string(kind),
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
	if err := s.publisher.Publish(context.WithoutCancel(ctx), TopicNotifications, msg); err != nil {
		s.logger.Error("NOTIFICATION", "Failed to queue notification", map[string]interface{}{
			"project_id": projectId.String(),
			"kind":       string(kind),
			"error":      err.Error(),
		})
	}
}

func (s *notificationService) Consume(ctx context.Context) error {
	messages, err := s.subscriber.Subscribe(ctx, TopicNotifications)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			var payload dto.NotificationMessage
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				s.logger.Error("NOTIFICATION", "Dropping malformed notification", map[string]interface{}{"error": err.Error()})
				msg.Ack()
				continue
			}
			// Delivery failures are logged, never redelivered.
			_ = s.Deliver(ctx, payload)
			msg.Ack()
		}
	}()

	return nil
}

func (s *notificationService) Deliver(ctx context.Context, msg dto.NotificationMessage) error {
	kind := entity.NotificationKind(msg.Kind)
	if !kind.IsValid() {
		return apperror.Validation("unknown notification kind %q", msg.Kind)
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	project, err := uow.ProjectRepository().FindOne(ctx, specification.ByID{ID: msg.ProjectId})
	if err != nil {
		return err
	}
	if project == nil {
		return apperror.NotFound("project %s not found", msg.ProjectId)
	}

	n := notifier.Notification{
		ProjectId:  project.Id.String(),
		Kind:       msg.Kind,
		OccurredAt: msg.OccurredAt,
		Payload:    msg.Payload,
	}

	var errs []error
	if project.Notifies(kind) {
		for _, ch := range s.channels(project) {
			if err := notifier.DeliverWithRetry(ctx, ch, n, s.backoff); err != nil {
				failure := apperror.Notification(err)
				errs = append(errs, failure)
				s.deliveryLog.Error("NOTIFICATION", "Delivery failed", map[string]interface{}{
					"project_id": n.ProjectId,
					"kind":       n.Kind,
					"channel":    ch.Name(),
					"error":      failure.Error(),
				})
				continue
			}
			s.deliveryLog.Info("NOTIFICATION", "Delivered", map[string]interface{}{
				"project_id": n.ProjectId,
				"kind":       n.Kind,
				"channel":    ch.Name(),
			})
		}
	}

	if s.events != nil {
		if err := s.events.Publish(ctx, events.NewLifecycle(msg.Kind, msg.ProjectId, msg.Payload, msg.OccurredAt)); err != nil {
			s.logger.Warn("NOTIFICATION", "Failed to forward event to NATS", map[string]interface{}{
				"kind":  msg.Kind,
				"error": err.Error(),
			})
		}
	}

	return errors.Join(errs...)
}

func (s *notificationService) channels(project *entity.Project) []notifier.Channel {
	var out []notifier.Channel
	if project.SlackWebhookURL != "" {
		out = append(out, notifier.NewSlackChannel(project.SlackWebhookURL, s.client))
	}
	if project.CustomWebhookURL != "" {
		out = append(out, notifier.NewWebhookChannel(project.CustomWebhookURL, project.CustomWebhookSecret, s.client))
	}
	return out
}
