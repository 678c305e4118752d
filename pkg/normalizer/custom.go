package normalizer

import (
	"encoding/json"
	"strings"
	"time"

	"windback-be/pkg/recovery"
	"windback-be/pkg/signature"
)

const (
	CustomSignatureHeader = "X-Windback-Signature"
	CustomDeliveryHeader  = "X-Windback-Delivery"

	CustomEventSubscriptionCanceled    = "subscription.canceled"
	CustomEventPaymentFailed           = "payment.failed"
	CustomEventPaymentSucceeded        = "payment.succeeded"
	CustomEventSubscriptionReactivated = "subscription.reactivated"
)

type customPayload struct {
	EventType      string                 `json:"event_type"`
	CustomerID     string                 `json:"customer_id"`
	CustomerEmail  string                 `json:"customer_email"`
	CustomerName   string                 `json:"customer_name"`
	SubscriptionID string                 `json:"subscription_id"`
	InvoiceID      string                 `json:"invoice_id"`
	PlanName       string                 `json:"plan_name"`
	MRR            int64                  `json:"mrr"`
	Amount         int64                  `json:"amount"`
	Currency       string                 `json:"currency"`
	Reason         string                 `json:"reason"`
	ReasonText     string                 `json:"reason_text"`
	FailureReason  string                 `json:"failure_reason"`
	TenureDays     int                    `json:"tenure_days"`
	LastActiveAt   *time.Time             `json:"last_active_at"`
	CanceledAt     *time.Time             `json:"canceled_at"`
	Metadata       map[string]interface{} `json:"metadata"`
}

type customNormalizer struct{}

func NewCustomNormalizer() Normalizer {
	return &customNormalizer{}
}

func (n *customNormalizer) Provider() Provider { return ProviderCustom }

func (n *customNormalizer) Normalize(req Request) (*Event, error) {
	if err := signature.VerifyCustom(req.Body, req.header(CustomSignatureHeader), req.Secret); err != nil {
		return nil, signatureError(err)
	}

	var p customPayload
	if err := json.Unmarshal(req.Body, &p); err != nil {
		return nil, payloadError("decode body: %v", err)
	}
	if p.EventType == "" {
		return nil, payloadError("event_type is required")
	}
	if p.CustomerID == "" && p.CustomerEmail == "" {
		return nil, payloadError("customer_id or customer_email is required")
	}

	ev := &Event{
		Provider:          ProviderCustom,
		ProviderEventType: p.EventType,
		DeliveryID:        req.header(CustomDeliveryHeader),
		CustomerID:        firstNonEmpty(p.CustomerID, p.CustomerEmail),
		CustomerEmail:     strings.TrimSpace(p.CustomerEmail),
		CustomerName:      strings.TrimSpace(p.CustomerName),
		SubscriptionID:    p.SubscriptionID,
		InvoiceID:         p.InvoiceID,
		PlanName:          p.PlanName,
		MRRCents:          p.MRR,
		AmountCents:       p.Amount,
		Currency:          strings.ToLower(firstNonEmpty(p.Currency, "usd")),
		TenureDays:        p.TenureDays,
		LastActiveAt:      p.LastActiveAt,
		CanceledAt:        p.CanceledAt,
		FailureReason:     p.FailureReason,
		Metadata:          p.Metadata,
	}

	switch p.EventType {
	case CustomEventSubscriptionCanceled:
		ev.Kind = KindChurn
		if ev.SubscriptionID == "" {
			ev.SubscriptionID = ev.CustomerID
		}
		base, text := cancelReason(p.Reason, p.ReasonText)
		ev.CancelReasonText = text
		ev.CancelReason = recovery.FormatCancelReason(base, ev.CancelReasonText)
		if ev.MRRCents < 0 {
			return nil, payloadError("mrr must not be negative")
		}
	case CustomEventPaymentFailed, CustomEventPaymentSucceeded:
		if p.InvoiceID == "" {
			return nil, payloadError("invoice_id is required for %s", p.EventType)
		}
		if p.Amount < 0 {
			return nil, payloadError("amount must not be negative")
		}
		ev.Kind = KindPaymentFailed
		if p.EventType == CustomEventPaymentSucceeded {
			ev.Kind = KindPaymentSucceeded
		}
	case CustomEventSubscriptionReactivated:
		ev.Kind = KindResubscribed
	default:
		ev.Kind = KindIgnored
	}

	return ev, nil
}
