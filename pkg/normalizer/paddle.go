package normalizer

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"windback-be/pkg/recovery"
	"windback-be/pkg/signature"
)

const PaddleSignatureHeader = "Paddle-Signature"

type paddleEnvelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt *time.Time      `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

type paddleSubscription struct {
	ID           string            `json:"id"`
	CustomerID   string            `json:"customer_id"`
	CurrencyCode string            `json:"currency_code"`
	CreatedAt    *time.Time        `json:"created_at"`
	StartedAt    *time.Time        `json:"started_at"`
	CanceledAt   *time.Time        `json:"canceled_at"`
	CustomData   paddleCustomData  `json:"custom_data"`
	Items        []struct {
		Quantity int64 `json:"quantity"`
		Price    struct {
			Name         string `json:"name"`
			Description  string `json:"description"`
			BillingCycle *struct {
				Interval  string `json:"interval"`
				Frequency int64  `json:"frequency"`
			} `json:"billing_cycle"`
			UnitPrice struct {
				Amount string `json:"amount"`
			} `json:"unit_price"`
		} `json:"price"`
	} `json:"items"`
}

type paddleTransaction struct {
	ID             string            `json:"id"`
	CustomerID     string            `json:"customer_id"`
	SubscriptionID string            `json:"subscription_id"`
	InvoiceID      string            `json:"invoice_id"`
	CurrencyCode   string            `json:"currency_code"`
	CustomData     paddleCustomData  `json:"custom_data"`
	Details        struct {
		Totals struct {
			GrandTotal string `json:"grand_total"`
		} `json:"totals"`
	} `json:"details"`
	Payments []struct {
		Status    string `json:"status"`
		ErrorCode string `json:"error_code"`
	} `json:"payments"`
}

// paddleCustomData holds arbitrary values the merchant attached at checkout.
type paddleCustomData map[string]interface{}

func (d paddleCustomData) get(key string) string {
	if v, ok := d[key].(string); ok {
		return v
	}
	return ""
}

type paddleNormalizer struct {
	tolerance time.Duration
}

func NewPaddleNormalizer(tolerance time.Duration) Normalizer {
	return &paddleNormalizer{tolerance: tolerance}
}

func (n *paddleNormalizer) Provider() Provider { return ProviderPaddle }

func (n *paddleNormalizer) Normalize(req Request) (*Event, error) {
	if err := signature.VerifyPaddle(req.Body, req.header(PaddleSignatureHeader), req.Secret, req.now(), n.tolerance); err != nil {
		return nil, signatureError(err)
	}

	var env paddleEnvelope
	if err := json.Unmarshal(req.Body, &env); err != nil {
		return nil, payloadError("decode body: %v", err)
	}

	switch env.EventType {
	case "subscription.canceled":
		var sub paddleSubscription
		if err := json.Unmarshal(env.Data, &sub); err != nil {
			return nil, payloadError("decode subscription: %v", err)
		}
		return n.churn(env, sub), nil

	case "subscription.resumed", "subscription.activated":
		var sub paddleSubscription
		if err := json.Unmarshal(env.Data, &sub); err != nil {
			return nil, payloadError("decode subscription: %v", err)
		}
		return &Event{
			Provider:          ProviderPaddle,
			Kind:              KindResubscribed,
			ProviderEventType: env.EventType,
			DeliveryID:        env.EventID,
			CustomerID:        sub.CustomerID,
			CustomerEmail:     sub.CustomData.get("email"),
			SubscriptionID:    sub.ID,
		}, nil

	case "transaction.payment_failed", "transaction.completed", "transaction.paid":
		var txn paddleTransaction
		if err := json.Unmarshal(env.Data, &txn); err != nil {
			return nil, payloadError("decode transaction: %v", err)
		}
		amount, _ := strconv.ParseInt(txn.Details.Totals.GrandTotal, 10, 64)
		ev := &Event{
			Provider:          ProviderPaddle,
			Kind:              KindPaymentSucceeded,
			ProviderEventType: env.EventType,
			DeliveryID:        env.EventID,
			CustomerID:        txn.CustomerID,
			CustomerEmail:     txn.CustomData.get("email"),
			CustomerName:      txn.CustomData.get("name"),
			SubscriptionID:    txn.SubscriptionID,
			InvoiceID:         firstNonEmpty(txn.InvoiceID, txn.ID),
			AmountCents:       amount,
			Currency:          strings.ToLower(txn.CurrencyCode),
			Metadata:          map[string]interface{}(txn.CustomData),
		}
		if env.EventType == "transaction.payment_failed" {
			ev.Kind = KindPaymentFailed
			ev.FailureReason = "payment_failed"
			for _, p := range txn.Payments {
				if p.ErrorCode != "" {
					ev.FailureReason = p.ErrorCode
				}
			}
		}
		return ev, nil
	}

	return ignored(ProviderPaddle, env.EventType, env.EventID), nil
}

func (n *paddleNormalizer) churn(env paddleEnvelope, sub paddleSubscription) *Event {
	ev := &Event{
		Provider:          ProviderPaddle,
		Kind:              KindChurn,
		ProviderEventType: env.EventType,
		DeliveryID:        env.EventID,
		CustomerID:        sub.CustomerID,
		CustomerEmail:     sub.CustomData.get("email"),
		CustomerName:      sub.CustomData.get("name"),
		SubscriptionID:    sub.ID,
		Currency:          strings.ToLower(sub.CurrencyCode),
		Metadata:          map[string]interface{}(sub.CustomData),
	}

	for _, item := range sub.Items {
		qty := item.Quantity
		if qty <= 0 {
			qty = 1
		}
		unit, _ := strconv.ParseInt(item.Price.UnitPrice.Amount, 10, 64)
		interval, freq := "month", int64(1)
		if item.Price.BillingCycle != nil {
			interval, freq = item.Price.BillingCycle.Interval, item.Price.BillingCycle.Frequency
		}
		ev.MRRCents += monthlyCents(unit*qty, interval, freq)
		if ev.PlanName == "" {
			ev.PlanName = firstNonEmpty(item.Price.Name, item.Price.Description)
		}
	}

	start := sub.StartedAt
	if start == nil {
		start = sub.CreatedAt
	}
	ev.CanceledAt = sub.CanceledAt
	if ev.CanceledAt == nil {
		ev.CanceledAt = env.OccurredAt
	}
	ev.TenureDays = tenureDays(start, ev.CanceledAt)

	base, text := cancelReason(sub.CustomData.get("cancel_reason"), sub.CustomData.get("cancel_reason_text"))
	ev.CancelReasonText = text
	ev.CancelReason = recovery.FormatCancelReason(base, ev.CancelReasonText)
	return ev
}
