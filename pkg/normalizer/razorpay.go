package normalizer

import (
	"encoding/json"
	"strings"

	"windback-be/pkg/recovery"
	"windback-be/pkg/signature"
)

const (
	RazorpaySignatureHeader = "X-Razorpay-Signature"
	RazorpayEventIDHeader   = "X-Razorpay-Event-Id"
)

type razorpayEnvelope struct {
	Event     string `json:"event"`
	CreatedAt int64  `json:"created_at"`
	Payload   struct {
		Subscription *struct {
			Entity razorpaySubscription `json:"entity"`
		} `json:"subscription"`
		Payment *struct {
			Entity razorpayPayment `json:"entity"`
		} `json:"payment"`
		Invoice *struct {
			Entity razorpayInvoice `json:"entity"`
		} `json:"invoice"`
	} `json:"payload"`
}

type razorpaySubscription struct {
	ID         string            `json:"id"`
	CustomerID string            `json:"customer_id"`
	PlanID     string            `json:"plan_id"`
	Quantity   int64             `json:"quantity"`
	StartAt    int64             `json:"start_at"`
	EndedAt    int64             `json:"ended_at"`
	CreatedAt  int64             `json:"created_at"`
	Notes      map[string]string `json:"notes"`
}

type razorpayPayment struct {
	ID               string            `json:"id"`
	Amount           int64             `json:"amount"`
	Currency         string            `json:"currency"`
	Email            string            `json:"email"`
	CustomerID       string            `json:"customer_id"`
	InvoiceID        string            `json:"invoice_id"`
	OrderID          string            `json:"order_id"`
	ErrorCode        string            `json:"error_code"`
	ErrorReason      string            `json:"error_reason"`
	ErrorDescription string            `json:"error_description"`
	Notes            map[string]string `json:"notes"`
}

type razorpayInvoice struct {
	ID              string `json:"id"`
	CustomerID      string `json:"customer_id"`
	SubscriptionID  string `json:"subscription_id"`
	AmountPaid      int64  `json:"amount_paid"`
	Currency        string `json:"currency"`
	CustomerDetails struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"customer_details"`
}

type razorpayNormalizer struct{}

func NewRazorpayNormalizer() Normalizer {
	return &razorpayNormalizer{}
}

func (n *razorpayNormalizer) Provider() Provider { return ProviderRazorpay }

func (n *razorpayNormalizer) Normalize(req Request) (*Event, error) {
	if err := signature.VerifyRazorpay(req.Body, req.header(RazorpaySignatureHeader), req.Secret); err != nil {
		return nil, signatureError(err)
	}

	var env razorpayEnvelope
	if err := json.Unmarshal(req.Body, &env); err != nil {
		return nil, payloadError("decode body: %v", err)
	}
	deliveryID := req.header(RazorpayEventIDHeader)

	switch env.Event {
	case "subscription.cancelled":
		if env.Payload.Subscription == nil {
			return nil, payloadError("subscription entity missing")
		}
		sub := env.Payload.Subscription.Entity
		base, text := cancelReason(sub.Notes["cancel_reason"], sub.Notes["cancel_reason_text"])
		start := unixPtr(firstPositive(sub.StartAt, sub.CreatedAt))
		end := unixPtr(firstPositive(sub.EndedAt, env.CreatedAt))
		return &Event{
			Provider:          ProviderRazorpay,
			Kind:              KindChurn,
			ProviderEventType: env.Event,
			DeliveryID:        deliveryID,
			CustomerID:        sub.CustomerID,
			CustomerEmail:     sub.Notes["email"],
			CustomerName:      sub.Notes["name"],
			SubscriptionID:    sub.ID,
			PlanName:          firstNonEmpty(sub.Notes["plan_name"], sub.PlanID),
			Currency:          "inr",
			CanceledAt:        end,
			TenureDays:        tenureDays(start, end),
			CancelReason:      recovery.FormatCancelReason(base, text),
			CancelReasonText:  text,
			Metadata:          stringMap(sub.Notes),
		}, nil

	case "payment.failed":
		if env.Payload.Payment == nil {
			return nil, payloadError("payment entity missing")
		}
		p := env.Payload.Payment.Entity
		return &Event{
			Provider:          ProviderRazorpay,
			Kind:              KindPaymentFailed,
			ProviderEventType: env.Event,
			DeliveryID:        deliveryID,
			CustomerID:        firstNonEmpty(p.CustomerID, p.Email),
			CustomerEmail:     p.Email,
			CustomerName:      p.Notes["name"],
			InvoiceID:         firstNonEmpty(p.InvoiceID, p.OrderID, p.ID),
			AmountCents:       p.Amount,
			Currency:          strings.ToLower(p.Currency),
			FailureReason:     firstNonEmpty(p.ErrorReason, p.ErrorCode, p.ErrorDescription),
			Metadata:          stringMap(p.Notes),
		}, nil

	case "invoice.paid":
		if env.Payload.Invoice == nil {
			return nil, payloadError("invoice entity missing")
		}
		inv := env.Payload.Invoice.Entity
		return &Event{
			Provider:          ProviderRazorpay,
			Kind:              KindPaymentSucceeded,
			ProviderEventType: env.Event,
			DeliveryID:        deliveryID,
			CustomerID:        inv.CustomerID,
			CustomerEmail:     inv.CustomerDetails.Email,
			CustomerName:      inv.CustomerDetails.Name,
			SubscriptionID:    inv.SubscriptionID,
			InvoiceID:         inv.ID,
			AmountCents:       inv.AmountPaid,
			Currency:          strings.ToLower(inv.Currency),
		}, nil

	case "payment.captured":
		if env.Payload.Payment == nil {
			return nil, payloadError("payment entity missing")
		}
		p := env.Payload.Payment.Entity
		return &Event{
			Provider:          ProviderRazorpay,
			Kind:              KindPaymentSucceeded,
			ProviderEventType: env.Event,
			DeliveryID:        deliveryID,
			CustomerID:        firstNonEmpty(p.CustomerID, p.Email),
			CustomerEmail:     p.Email,
			InvoiceID:         firstNonEmpty(p.InvoiceID, p.OrderID, p.ID),
			AmountCents:       p.Amount,
			Currency:          strings.ToLower(p.Currency),
		}, nil

	case "subscription.activated", "subscription.resumed":
		if env.Payload.Subscription == nil {
			return ignored(ProviderRazorpay, env.Event, deliveryID), nil
		}
		sub := env.Payload.Subscription.Entity
		return &Event{
			Provider:          ProviderRazorpay,
			Kind:              KindResubscribed,
			ProviderEventType: env.Event,
			DeliveryID:        deliveryID,
			CustomerID:        sub.CustomerID,
			CustomerEmail:     sub.Notes["email"],
			SubscriptionID:    sub.ID,
		}, nil
	}

	return ignored(ProviderRazorpay, env.Event, deliveryID), nil
}

func firstPositive(values ...int64) int64 {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
