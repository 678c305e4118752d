package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ChurnEvent GORM model. The composite unique index is the webhook idempotency key.
type ChurnEvent struct {
	Id                     uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProjectId              uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_churn_events_idempotency,priority:1;index:idx_churn_events_customer,priority:1"`
	Provider               string    `gorm:"type:varchar(32);not null;uniqueIndex:idx_churn_events_idempotency,priority:2;index:idx_churn_events_customer,priority:2"`
	ProviderSubscriptionId string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_churn_events_idempotency,priority:3"`
	EventType              string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_churn_events_idempotency,priority:4"`
	ProviderCustomerId     string    `gorm:"type:varchar(255);not null;index:idx_churn_events_customer,priority:3"`

	CustomerEmail string `gorm:"type:varchar(255)"`
	CustomerName  string `gorm:"type:varchar(255)"`
	PlanName      string `gorm:"type:varchar(255)"`
	MrrCents      int64  `gorm:"default:0"`
	Currency      string `gorm:"type:varchar(8)"`
	TenureDays    int    `gorm:"default:0"`
	LastActiveAt  *time.Time

	CancelReason     string         `gorm:"type:text"`
	CancelReasonText string         `gorm:"type:text"`
	Metadata         datatypes.JSON `gorm:"type:jsonb"`

	Status        string `gorm:"type:varchar(32);not null;default:'new';index"`
	SendClaimedAt *time.Time
	RecoveredAt   *time.Time
	LostAt        *time.Time
	CreatedAt     time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`

	Variants []RecoveryVariant `gorm:"foreignKey:ChurnEventId"`
}

func (ChurnEvent) TableName() string {
	return "churn_events"
}

type RecoveryVariant struct {
	Id            uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ChurnEventId  uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_recovery_variants_position,priority:1"`
	Strategy      string    `gorm:"type:varchar(50);not null"`
	Subject       string    `gorm:"type:text;not null"`
	Body          string    `gorm:"type:text;not null"`
	CouponCode    *string   `gorm:"type:varchar(64)"`
	CouponPercent *int
	Position      int `gorm:"not null;uniqueIndex:idx_recovery_variants_position,priority:2"`
	SendClaimedAt *time.Time
	SentAt        *time.Time
	OpenedAt      *time.Time
	ClickedAt     *time.Time
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

func (RecoveryVariant) TableName() string {
	return "recovery_variants"
}

// RecoveryTemplate GORM model. A partial unique index on (project_id, cancel_reason)
// WHERE is_active is created by Migrate.
type RecoveryTemplate struct {
	Id           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProjectId    uuid.UUID `gorm:"type:uuid;not null;index"`
	CancelReason string    `gorm:"type:varchar(50);not null"`
	Name         string    `gorm:"type:varchar(255);not null"`
	Subject      string    `gorm:"type:text;not null"`
	Body         string    `gorm:"type:text;not null"`
	IsActive     bool      `gorm:"default:false"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

func (RecoveryTemplate) TableName() string {
	return "recovery_templates"
}
