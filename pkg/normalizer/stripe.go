package normalizer

import (
	"encoding/json"
	"strings"
	"time"

	"windback-be/pkg/recovery"
	"windback-be/pkg/signature"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"
)

const StripeSignatureHeader = "Stripe-Signature"

type stripeNormalizer struct {
	tolerance time.Duration
}

func NewStripeNormalizer(tolerance time.Duration) Normalizer {
	return &stripeNormalizer{tolerance: tolerance}
}

func (n *stripeNormalizer) Provider() Provider { return ProviderStripe }

// Raw object shapes, decoded locally so API version drift in stripe-go types does not break parsing.
type stripePrice struct {
	Nickname   string `json:"nickname"`
	UnitAmount int64  `json:"unit_amount"`
	Currency   string `json:"currency"`
	Recurring  *struct {
		Interval      string `json:"interval"`
		IntervalCount int64  `json:"interval_count"`
	} `json:"recurring"`
	Product interface{} `json:"product"`
}

type stripeSubscription struct {
	ID                  string            `json:"id"`
	Customer            string            `json:"customer"`
	Currency            string            `json:"currency"`
	Created             int64             `json:"created"`
	StartDate           int64             `json:"start_date"`
	CanceledAt          int64             `json:"canceled_at"`
	EndedAt             int64             `json:"ended_at"`
	Metadata            map[string]string `json:"metadata"`
	CancellationDetails struct {
		Comment  string `json:"comment"`
		Feedback string `json:"feedback"`
		Reason   string `json:"reason"`
	} `json:"cancellation_details"`
	Items struct {
		Data []struct {
			Quantity int64       `json:"quantity"`
			Price    stripePrice `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

type stripeInvoice struct {
	ID                    string            `json:"id"`
	Customer              string            `json:"customer"`
	CustomerEmail         string            `json:"customer_email"`
	CustomerName          string            `json:"customer_name"`
	Subscription          string            `json:"subscription"`
	AmountDue             int64             `json:"amount_due"`
	AmountPaid            int64             `json:"amount_paid"`
	Currency              string            `json:"currency"`
	AttemptCount          int64             `json:"attempt_count"`
	Metadata              map[string]string `json:"metadata"`
	LastFinalizationError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_finalization_error"`
	// Newer API versions move the subscription under parent.
	Parent *struct {
		SubscriptionDetails *struct {
			Subscription string `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

func (inv stripeInvoice) subscriptionID() string {
	if inv.Subscription != "" {
		return inv.Subscription
	}
	if inv.Parent != nil && inv.Parent.SubscriptionDetails != nil {
		return inv.Parent.SubscriptionDetails.Subscription
	}
	return ""
}

func (n *stripeNormalizer) Normalize(req Request) (*Event, error) {
	header := req.header(StripeSignatureHeader)
	if req.Secret == "" {
		return nil, signatureError(signature.ErrSecretNotConfigured)
	}
	if header == "" {
		return nil, signatureError(signature.ErrMissingSignature)
	}

	event, err := webhook.ConstructEventWithOptions(req.Body, header, req.Secret, webhook.ConstructEventOptions{
		Tolerance:                n.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, signatureError(err)
	}
	if event.Data == nil {
		return nil, payloadError("event %s has no data", event.ID)
	}

	switch event.Type {
	case stripe.EventTypeCustomerSubscriptionDeleted:
		var sub stripeSubscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, payloadError("decode subscription: %v", err)
		}
		return n.churn(event, sub), nil

	case stripe.EventTypeCustomerSubscriptionCreated:
		var sub stripeSubscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, payloadError("decode subscription: %v", err)
		}
		return &Event{
			Provider:          ProviderStripe,
			Kind:              KindResubscribed,
			ProviderEventType: string(event.Type),
			DeliveryID:        event.ID,
			CustomerID:        sub.Customer,
			CustomerEmail:     sub.Metadata["email"],
			SubscriptionID:    sub.ID,
		}, nil

	case stripe.EventTypeInvoicePaymentFailed:
		var inv stripeInvoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return nil, payloadError("decode invoice: %v", err)
		}
		ev := n.invoice(event, inv, KindPaymentFailed)
		ev.AmountCents = inv.AmountDue
		ev.FailureReason = firstNonEmpty(inv.Metadata["failure_reason"], "payment_failed")
		if inv.LastFinalizationError != nil {
			ev.FailureReason = firstNonEmpty(inv.LastFinalizationError.Code, inv.LastFinalizationError.Message, ev.FailureReason)
		}
		return ev, nil

	case stripe.EventTypeInvoicePaid, stripe.EventTypeInvoicePaymentSucceeded:
		var inv stripeInvoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return nil, payloadError("decode invoice: %v", err)
		}
		ev := n.invoice(event, inv, KindPaymentSucceeded)
		ev.AmountCents = inv.AmountPaid
		return ev, nil
	}

	return ignored(ProviderStripe, string(event.Type), event.ID), nil
}

func (n *stripeNormalizer) churn(event stripe.Event, sub stripeSubscription) *Event {
	ev := &Event{
		Provider:          ProviderStripe,
		Kind:              KindChurn,
		ProviderEventType: string(event.Type),
		DeliveryID:        event.ID,
		CustomerID:        sub.Customer,
		CustomerEmail:     firstNonEmpty(sub.Metadata["email"], sub.Metadata["customer_email"]),
		CustomerName:      firstNonEmpty(sub.Metadata["name"], sub.Metadata["customer_name"]),
		SubscriptionID:    sub.ID,
		Currency:          strings.ToLower(sub.Currency),
		Metadata:          stringMap(sub.Metadata),
	}

	for _, item := range sub.Items.Data {
		qty := item.Quantity
		if qty <= 0 {
			qty = 1
		}
		interval, count := "month", int64(1)
		if item.Price.Recurring != nil {
			interval, count = item.Price.Recurring.Interval, item.Price.Recurring.IntervalCount
		}
		ev.MRRCents += monthlyCents(item.Price.UnitAmount*qty, interval, count)
		if ev.PlanName == "" {
			ev.PlanName = item.Price.Nickname
		}
		if ev.Currency == "" {
			ev.Currency = strings.ToLower(item.Price.Currency)
		}
	}
	if ev.PlanName == "" {
		ev.PlanName = sub.Metadata["plan_name"]
	}

	start := unixPtr(sub.StartDate)
	if start == nil {
		start = unixPtr(sub.Created)
	}
	ev.CanceledAt = unixPtr(sub.CanceledAt)
	end := unixPtr(sub.EndedAt)
	if end == nil {
		end = ev.CanceledAt
	}
	ev.TenureDays = tenureDays(start, end)

	base := stripeFeedbackReason(sub.CancellationDetails.Feedback)
	text := strings.TrimSpace(sub.CancellationDetails.Comment)
	if r := sub.Metadata["cancel_reason"]; r != "" {
		base, text = cancelReason(r, text)
	}
	ev.CancelReasonText = text
	ev.CancelReason = recovery.FormatCancelReason(base, ev.CancelReasonText)
	return ev
}

func (n *stripeNormalizer) invoice(event stripe.Event, inv stripeInvoice, kind Kind) *Event {
	return &Event{
		Provider:          ProviderStripe,
		Kind:              kind,
		ProviderEventType: string(event.Type),
		DeliveryID:        event.ID,
		CustomerID:        inv.Customer,
		CustomerEmail:     inv.CustomerEmail,
		CustomerName:      inv.CustomerName,
		SubscriptionID:    inv.subscriptionID(),
		InvoiceID:         inv.ID,
		Currency:          strings.ToLower(inv.Currency),
		Metadata:          stringMap(inv.Metadata),
	}
}

// stripeFeedbackReason maps Stripe's cancellation_details.feedback values.
func stripeFeedbackReason(feedback string) recovery.CancelReason {
	switch feedback {
	case "too_expensive":
		return recovery.ReasonTooExpensive
	case "missing_features":
		return recovery.ReasonMissingFeatures
	case "unused":
		return recovery.ReasonNotUsingEnough
	case "switched_service":
		return recovery.ReasonSwitchingCompetitor
	case "low_quality":
		return recovery.ReasonTechnicalIssues
	case "customer_service":
		return recovery.ReasonPoorSupport
	case "too_complex":
		return recovery.ReasonTooComplicated
	}
	return recovery.ReasonOther
}
