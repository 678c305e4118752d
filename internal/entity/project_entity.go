package entity

import (
	"time"

	"github.com/google/uuid"
)

// Project is a merchant workspace. Every other entity is scoped to one.
type Project struct {
	Id            uuid.UUID
	Slug          string
	Name          string
	PublicKey     string
	WebhookSecret string
	AutoSend      bool
	FromName      string
	FromEmail     string

	SlackWebhookURL     string
	CustomWebhookURL    string
	CustomWebhookSecret string

	NotifyChurnCreated     bool
	NotifyChurnRecovered   bool
	NotifyPaymentFailed    bool
	NotifyPaymentRecovered bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Notifies reports whether the project opted into a notification kind.
func (p *Project) Notifies(kind NotificationKind) bool {
	switch kind {
	case NotificationChurnCreated:
		return p.NotifyChurnCreated
	case NotificationChurnRecovered:
		return p.NotifyChurnRecovered
	case NotificationPaymentFailed:
		return p.NotifyPaymentFailed
	case NotificationPaymentRecovered:
		return p.NotifyPaymentRecovered
	}
	return false
}

type NotificationKind string

const (
	NotificationChurnCreated     NotificationKind = "churn_created"
	NotificationChurnRecovered   NotificationKind = "churn_recovered"
	NotificationPaymentFailed    NotificationKind = "payment_failed"
	NotificationPaymentRecovered NotificationKind = "payment_recovered"
)

func (k NotificationKind) IsValid() bool {
	switch k {
	case NotificationChurnCreated, NotificationChurnRecovered, NotificationPaymentFailed, NotificationPaymentRecovered:
		return true
	}
	return false
}
