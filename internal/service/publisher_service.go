package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

const (
	TopicGenerateVariants = "windback.generate"
	TopicNotifications    = "windback.notifications"
)

type IPublisherService interface {
	Publish(ctx context.Context, topic string, payload interface{}) error
}

type publisherService struct {
	publisher message.Publisher
}

func NewPublisherService(publisher message.Publisher) IPublisherService {
	return &publisherService{publisher: publisher}
}

func (p *publisherService) Publish(ctx context.Context, topic string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", topic, err)
	}

	msg := message.NewMessage(watermill.NewUUID(), body)
	msg.SetContext(ctx)
	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish %s message: %w", topic, err)
	}
	return nil
}
