package entity

import (
	"time"

	"github.com/google/uuid"
)

// RecoveryVariant is one candidate win-back email for a churn event.
// Engagement only moves forward: opened implies sent, clicked implies opened.
type RecoveryVariant struct {
	Id            uuid.UUID
	ChurnEventId  uuid.UUID
	Strategy      string
	Subject       string
	Body          string
	CouponCode    *string
	CouponPercent *int
	Position      int
	SendClaimedAt *time.Time
	SentAt        *time.Time
	OpenedAt      *time.Time
	ClickedAt     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (v *RecoveryVariant) IsSent() bool {
	return v.SentAt != nil
}

// RecoveryTemplate overrides AI generation for one cancel reason.
type RecoveryTemplate struct {
	Id           uuid.UUID
	ProjectId    uuid.UUID
	CancelReason string
	Name         string
	Subject      string
	Body         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
