package entity

import (
	"time"

	"github.com/google/uuid"
)

type PaymentFailureStatus string

const (
	PaymentFailureStatusFailing   PaymentFailureStatus = "failing"
	PaymentFailureStatusRecovered PaymentFailureStatus = "recovered"
	PaymentFailureStatusAbandoned PaymentFailureStatus = "abandoned"
)

func (s PaymentFailureStatus) IsValid() bool {
	switch s {
	case PaymentFailureStatusFailing, PaymentFailureStatusRecovered, PaymentFailureStatusAbandoned:
		return true
	}
	return false
}

// PaymentFailure tracks dunning for one unpaid invoice.
// While failing, NextRetryAt is set; otherwise it is nil and no more emails go out.
type PaymentFailure struct {
	Id                 uuid.UUID
	ProjectId          uuid.UUID
	Provider           string
	ProviderInvoiceId  string
	ProviderCustomerId string
	CustomerEmail      string
	CustomerName       string
	AmountCents        int64
	Currency           string
	FailureReason      string
	Status             PaymentFailureStatus
	RetryCount         int
	MaxRetries         int
	NextRetryAt        *time.Time
	ClaimToken         *string
	RecoveredAt        *time.Time
	AbandonedAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time

	Emails []*DunningEmail
}

type DunningEmail struct {
	Id               uuid.UUID
	PaymentFailureId uuid.UUID
	RetryNumber      int
	Tone             string
	Subject          string
	Body             string
	SentAt           time.Time
	CreatedAt        time.Time
}

// DunningConfig is a project's saved dunning policy.
type DunningConfig struct {
	Id                 uuid.UUID
	ProjectId          uuid.UUID
	MaxRetries         int
	RetryIntervalHours int
	ToneSequence       []string
	CustomFromName     *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
