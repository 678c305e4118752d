package dto

import (
	"time"

	"github.com/google/uuid"
)

type ListChurnEventsRequest struct {
	Status string `query:"status" validate:"omitempty,oneof=new processing variants_generated email_sent recovered lost"`
	Limit  int    `query:"limit" validate:"omitempty,min=1,max=200"`
	Offset int    `query:"offset" validate:"omitempty,min=0"`
}

type ChurnEventResponse struct {
	Id                     uuid.UUID              `json:"id"`
	Provider               string                 `json:"provider"`
	ProviderCustomerId     string                 `json:"provider_customer_id"`
	ProviderSubscriptionId string                 `json:"provider_subscription_id"`
	EventType              string                 `json:"event_type"`
	CustomerEmail          string                 `json:"customer_email"`
	CustomerName           string                 `json:"customer_name"`
	PlanName               string                 `json:"plan_name"`
	MrrCents               int64                  `json:"mrr_cents"`
	Currency               string                 `json:"currency"`
	TenureDays             int                    `json:"tenure_days"`
	LastActiveAt           *time.Time             `json:"last_active_at"`
	CancelReason           string                 `json:"cancel_reason"`
	CancelReasonText       string                 `json:"cancel_reason_text"`
	Metadata               map[string]interface{} `json:"metadata"`
	Status                 string                 `json:"status"`
	RecoveredAt            *time.Time             `json:"recovered_at"`
	LostAt                 *time.Time             `json:"lost_at"`
	CreatedAt              time.Time              `json:"created_at"`
	UpdatedAt              time.Time              `json:"updated_at"`
	Variants               []*VariantResponse     `json:"variants,omitempty"`
}

type VariantResponse struct {
	Id            uuid.UUID  `json:"id"`
	ChurnEventId  uuid.UUID  `json:"churn_event_id"`
	Strategy      string     `json:"strategy"`
	Subject       string     `json:"subject"`
	Body          string     `json:"body"`
	CouponCode    *string    `json:"coupon_code"`
	CouponPercent *int       `json:"coupon_percent"`
	Position      int        `json:"position"`
	SentAt        *time.Time `json:"sent_at"`
	OpenedAt      *time.Time `json:"opened_at"`
	ClickedAt     *time.Time `json:"clicked_at"`
}

type GenerateVariantsResponse struct {
	ChurnEventId uuid.UUID          `json:"churn_event_id"`
	Status       string             `json:"status"`
	Source       string             `json:"source"` // "template" or "ai"
	Variants     []*VariantResponse `json:"variants"`
}

type UpdateVariantRequest struct {
	Subject string `json:"subject" validate:"required,max=255"`
	Body    string `json:"body" validate:"required"`
}

type SendVariantResponse struct {
	VariantId   uuid.UUID `json:"variant_id"`
	SentAt      time.Time `json:"sent_at"`
	AlreadySent bool      `json:"already_sent"`
}

type TrackResponse struct {
	Recorded bool `json:"recorded"`
}

type TemplateRequest struct {
	CancelReason string `json:"cancel_reason" validate:"required"`
	Name         string `json:"name" validate:"required,max=255"`
	Subject      string `json:"subject" validate:"required,max=255"`
	Body         string `json:"body" validate:"required"`
	IsActive     bool   `json:"is_active"`
}

type TemplateResponse struct {
	Id           uuid.UUID `json:"id"`
	CancelReason string    `json:"cancel_reason"`
	Name         string    `json:"name"`
	Subject      string    `json:"subject"`
	Body         string    `json:"body"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// GenerateJobMessage is published for background variant generation.
type GenerateJobMessage struct {
	ProjectId    uuid.UUID `json:"project_id"`
	ChurnEventId uuid.UUID `json:"churn_event_id"`
}
