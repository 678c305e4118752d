package dto

import (
	"time"

	"github.com/google/uuid"
)

type ListPaymentFailuresRequest struct {
	Status string `query:"status" validate:"omitempty,oneof=failing recovered abandoned"`
	Limit  int    `query:"limit" validate:"omitempty,min=1,max=200"`
	Offset int    `query:"offset" validate:"omitempty,min=0"`
}

type PaymentFailureResponse struct {
	Id                 uuid.UUID               `json:"id"`
	Provider           string                  `json:"provider"`
	ProviderInvoiceId  string                  `json:"provider_invoice_id"`
	ProviderCustomerId string                  `json:"provider_customer_id"`
	CustomerEmail      string                  `json:"customer_email"`
	CustomerName       string                  `json:"customer_name"`
	AmountCents        int64                   `json:"amount_cents"`
	Currency           string                  `json:"currency"`
	FailureReason      string                  `json:"failure_reason"`
	Status             string                  `json:"status"`
	RetryCount         int                     `json:"retry_count"`
	MaxRetries         int                     `json:"max_retries"`
	NextRetryAt        *time.Time              `json:"next_retry_at"`
	RecoveredAt        *time.Time              `json:"recovered_at"`
	AbandonedAt        *time.Time              `json:"abandoned_at"`
	CreatedAt          time.Time               `json:"created_at"`
	Emails             []*DunningEmailResponse `json:"emails,omitempty"`
}

type DunningEmailResponse struct {
	Id          uuid.UUID `json:"id"`
	RetryNumber int       `json:"retry_number"`
	Tone        string    `json:"tone"`
	Subject     string    `json:"subject"`
	SentAt      time.Time `json:"sent_at"`
}

type DunningConfigRequest struct {
	MaxRetries         int      `json:"max_retries" validate:"required"`
	RetryIntervalHours int      `json:"retry_interval_hours" validate:"required"`
	ToneSequence       []string `json:"tone_sequence" validate:"required,min=1"`
	CustomFromName     *string  `json:"custom_from_name" validate:"omitempty,max=255"`
}

type DunningConfigResponse struct {
	MaxRetries         int      `json:"max_retries"`
	RetryIntervalHours int      `json:"retry_interval_hours"`
	ToneSequence       []string `json:"tone_sequence"`
	CustomFromName     *string  `json:"custom_from_name"`
	IsDefault          bool     `json:"is_default"`
}
