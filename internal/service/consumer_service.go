package service

import (
	"context"
	"encoding/json"
	"errors"

	"windback-be/internal/dto"
	"windback-be/internal/pkg/apperror"
	"windback-be/internal/pkg/logger"
	"windback-be/internal/repository/specification"
	"windback-be/internal/repository/unitofwork"

	"github.com/ThreeDotsLabs/watermill/message"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService runs background variant generation for new churn events.
type consumerService struct {
	subscriber message.Subscriber
	uowFactory unitofwork.RepositoryFactory
	generator  IVariantGenerator
	logger     logger.ILogger
}

func NewConsumerService(
	subscriber message.Subscriber,
	uowFactory unitofwork.RepositoryFactory,
	generator IVariantGenerator,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		subscriber: subscriber,
		uowFactory: uowFactory,
		generator:  generator,
		logger:     log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, TopicGenerateVariants)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

// processMessage always acks: a failed generation leaves the event in new,
// where an operator can retry it.
func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	var payload dto.GenerateJobMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("CONSUMER", "Failed to unmarshal generation job", map[string]interface{}{"error": err.Error()})
		return
	}

	uow := cs.uowFactory.NewUnitOfWork(ctx)
	project, err := uow.ProjectRepository().FindOne(ctx, specification.ByID{ID: payload.ProjectId})
	if err != nil || project == nil {
		cs.logger.Error("CONSUMER", "Project for generation job not found", map[string]interface{}{
			"project_id": payload.ProjectId.String(),
		})
		return
	}

	if _, err := cs.generator.Generate(ctx, project, payload.ChurnEventId); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			cs.logger.Debug("CONSUMER", "Generation already handled", map[string]interface{}{
				"churn_event_id": payload.ChurnEventId.String(),
			})
			return
		}
		cs.logger.Error("CONSUMER", "Background generation failed", map[string]interface{}{
			"churn_event_id": payload.ChurnEventId.String(),
			"error":          err.Error(),
		})
	}
}
