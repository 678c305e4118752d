package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateProjectRequest struct {
	Name      string `json:"name" validate:"required,max=255"`
	FromName  string `json:"from_name" validate:"omitempty,max=255"`
	FromEmail string `json:"from_email" validate:"omitempty,email"`
	AutoSend  bool   `json:"auto_send"`
}

// CreateProjectResponse is the only place the webhook secret is returned.
type CreateProjectResponse struct {
	ProjectResponse
	WebhookSecret string `json:"webhook_secret"`
}

type UpdateProjectSettingsRequest struct {
	AutoSend               *bool   `json:"auto_send"`
	FromName               *string `json:"from_name" validate:"omitempty,max=255"`
	FromEmail              *string `json:"from_email" validate:"omitempty,email"`
	SlackWebhookURL        *string `json:"slack_webhook_url" validate:"omitempty,url"`
	CustomWebhookURL       *string `json:"custom_webhook_url" validate:"omitempty,url"`
	CustomWebhookSecret    *string `json:"custom_webhook_secret" validate:"omitempty,max=255"`
	NotifyChurnCreated     *bool   `json:"notify_churn_created"`
	NotifyChurnRecovered   *bool   `json:"notify_churn_recovered"`
	NotifyPaymentFailed    *bool   `json:"notify_payment_failed"`
	NotifyPaymentRecovered *bool   `json:"notify_payment_recovered"`
}

type ProjectResponse struct {
	Id                     uuid.UUID `json:"id"`
	Slug                   string    `json:"slug"`
	Name                   string    `json:"name"`
	PublicKey              string    `json:"public_key"`
	AutoSend               bool      `json:"auto_send"`
	FromName               string    `json:"from_name"`
	FromEmail              string    `json:"from_email"`
	SlackWebhookURL        string    `json:"slack_webhook_url"`
	CustomWebhookURL       string    `json:"custom_webhook_url"`
	NotifyChurnCreated     bool      `json:"notify_churn_created"`
	NotifyChurnRecovered   bool      `json:"notify_churn_recovered"`
	NotifyPaymentFailed    bool      `json:"notify_payment_failed"`
	NotifyPaymentRecovered bool      `json:"notify_payment_recovered"`
	CreatedAt              time.Time `json:"created_at"`
}
