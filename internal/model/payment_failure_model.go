package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type PaymentFailure struct {
	Id                 uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProjectId          uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_payment_failures_idempotency,priority:1"`
	Provider           string    `gorm:"type:varchar(32);not null;uniqueIndex:idx_payment_failures_idempotency,priority:2"`
	ProviderInvoiceId  string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_payment_failures_idempotency,priority:3"`
	ProviderCustomerId string    `gorm:"type:varchar(255)"`
	CustomerEmail      string    `gorm:"type:varchar(255)"`
	CustomerName       string    `gorm:"type:varchar(255)"`
	AmountCents        int64     `gorm:"default:0"`
	Currency           string    `gorm:"type:varchar(8)"`
	FailureReason      string    `gorm:"type:text"`
	Status             string    `gorm:"type:varchar(32);not null;default:'failing';index:idx_payment_failures_due,priority:1"`
	RetryCount         int       `gorm:"not null;default:0"`
	MaxRetries         int       `gorm:"not null;default:4"`
	NextRetryAt        *time.Time `gorm:"index:idx_payment_failures_due,priority:2"`
	ClaimToken         *string    `gorm:"type:varchar(64)"`
	RecoveredAt        *time.Time
	AbandonedAt        *time.Time
	CreatedAt          time.Time `gorm:"autoCreateTime"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime"`

	Emails []DunningEmail `gorm:"foreignKey:PaymentFailureId"`
}

func (PaymentFailure) TableName() string {
	return "payment_failures"
}

type DunningEmail struct {
	Id               uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	PaymentFailureId uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_dunning_emails_retry,priority:1"`
	RetryNumber      int       `gorm:"not null;uniqueIndex:idx_dunning_emails_retry,priority:2"`
	Tone             string    `gorm:"type:varchar(50);not null"`
	Subject          string    `gorm:"type:text;not null"`
	Body             string    `gorm:"type:text;not null"`
	SentAt           time.Time `gorm:"not null"`
	CreatedAt        time.Time `gorm:"autoCreateTime"`
}

func (DunningEmail) TableName() string {
	return "dunning_emails"
}

type DunningConfig struct {
	Id                 uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProjectId          uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex"`
	MaxRetries         int            `gorm:"not null;default:4"`
	RetryIntervalHours int            `gorm:"not null;default:72"`
	ToneSequence       datatypes.JSON `gorm:"type:jsonb;not null"`
	CustomFromName     *string        `gorm:"type:varchar(255)"`
	CreatedAt          time.Time      `gorm:"autoCreateTime"`
	UpdatedAt          time.Time      `gorm:"autoUpdateTime"`
}

func (DunningConfig) TableName() string {
	return "dunning_configs"
}
