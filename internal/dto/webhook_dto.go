package dto

import "github.com/google/uuid"

const (
	WebhookStatusProcessed = "processed"
	WebhookStatusDuplicate = "duplicate"
	WebhookStatusIgnored   = "ignored"
)

type WebhookResponse struct {
	Status           string     `json:"status"`
	Kind             string     `json:"kind"`
	EventType        string     `json:"event_type"`
	ChurnEventId     *uuid.UUID `json:"churn_event_id,omitempty"`
	PaymentFailureId *uuid.UUID `json:"payment_failure_id,omitempty"`
}
