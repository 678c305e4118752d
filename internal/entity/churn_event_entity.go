package entity

import (
	"time"

	"github.com/google/uuid"
)

type ChurnEventStatus string

const (
	ChurnEventStatusNew               ChurnEventStatus = "new"
	ChurnEventStatusProcessing        ChurnEventStatus = "processing"
	ChurnEventStatusVariantsGenerated ChurnEventStatus = "variants_generated"
	ChurnEventStatusEmailSent         ChurnEventStatus = "email_sent"
	ChurnEventStatusRecovered         ChurnEventStatus = "recovered"
	ChurnEventStatusLost              ChurnEventStatus = "lost"
)

func (s ChurnEventStatus) IsValid() bool {
	switch s {
	case ChurnEventStatusNew, ChurnEventStatusProcessing, ChurnEventStatusVariantsGenerated,
		ChurnEventStatusEmailSent, ChurnEventStatusRecovered, ChurnEventStatusLost:
		return true
	}
	return false
}

func (s ChurnEventStatus) IsTerminal() bool {
	return s == ChurnEventStatusRecovered || s == ChurnEventStatusLost
}

// CanSend reports whether a variant of an event in this status may be emailed.
func (s ChurnEventStatus) CanSend() bool {
	return s == ChurnEventStatusVariantsGenerated || s == ChurnEventStatusEmailSent
}

// OpenChurnStatuses are the non-terminal statuses.
func OpenChurnStatuses() []ChurnEventStatus {
	return []ChurnEventStatus{
		ChurnEventStatusNew,
		ChurnEventStatusProcessing,
		ChurnEventStatusVariantsGenerated,
		ChurnEventStatusEmailSent,
	}
}

type ChurnEvent struct {
	Id                     uuid.UUID
	ProjectId              uuid.UUID
	Provider               string
	ProviderCustomerId     string
	ProviderSubscriptionId string
	EventType              string

	CustomerEmail string
	CustomerName  string
	PlanName      string
	MrrCents      int64
	Currency      string
	TenureDays    int
	LastActiveAt  *time.Time

	CancelReason     string
	CancelReasonText string
	Metadata         map[string]interface{}

	Status        ChurnEventStatus
	SendClaimedAt *time.Time
	RecoveredAt   *time.Time
	LostAt        *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Variants []*RecoveryVariant
}
