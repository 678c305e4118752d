package normalizer

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"windback-be/pkg/recovery"
)

// Provider identifies a billing provider that delivers webhooks.
type Provider string

const (
	ProviderStripe   Provider = "stripe"
	ProviderRazorpay Provider = "razorpay"
	ProviderPaddle   Provider = "paddle"
	ProviderCustom   Provider = "custom"
)

// Kind is what a webhook means for recovery, independent of the provider.
type Kind string

const (
	KindChurn            Kind = "churn"
	KindPaymentFailed    Kind = "payment_failed"
	KindPaymentSucceeded Kind = "payment_succeeded"
	KindResubscribed     Kind = "resubscribed"
	KindIgnored          Kind = "ignored"
)

var (
	ErrUnknownProvider = errors.New("unknown provider")
	ErrSignature       = errors.New("webhook signature verification failed")
	ErrInvalidPayload  = errors.New("invalid webhook payload")
)

// Request is a raw webhook delivery. Header looks up a request header by name.
type Request struct {
	Body   []byte
	Header func(key string) string
	Secret string
	Now    time.Time
}

func (r Request) header(key string) string {
	if r.Header == nil {
		return ""
	}
	return strings.TrimSpace(r.Header(key))
}

func (r Request) now() time.Time {
	if r.Now.IsZero() {
		return time.Now()
	}
	return r.Now
}

// Event is the provider-neutral form of a verified webhook.
type Event struct {
	Provider          Provider
	Kind              Kind
	ProviderEventType string
	DeliveryID        string

	CustomerID     string
	CustomerEmail  string
	CustomerName   string
	SubscriptionID string
	InvoiceID      string

	PlanName     string
	MRRCents     int64
	AmountCents  int64
	Currency     string
	TenureDays   int
	LastActiveAt *time.Time
	CanceledAt   *time.Time

	// CancelReason is the stored form: base reason, optionally ": free text".
	CancelReason     string
	CancelReasonText string
	FailureReason    string

	Metadata map[string]interface{}
}

// Normalizer verifies and translates one provider's webhooks.
type Normalizer interface {
	Provider() Provider
	Normalize(req Request) (*Event, error)
}

type Registry struct {
	byProvider  map[Provider]Normalizer
	directories map[Provider]CustomerDirectory
}

func NewRegistry(normalizers ...Normalizer) *Registry {
	r := &Registry{byProvider: make(map[Provider]Normalizer, len(normalizers))}
	for _, n := range normalizers {
		r.byProvider[n.Provider()] = n
	}
	return r
}

// DefaultRegistry wires the four supported providers.
func DefaultRegistry(tolerance time.Duration) *Registry {
	return NewRegistry(
		NewStripeNormalizer(tolerance),
		NewRazorpayNormalizer(),
		NewPaddleNormalizer(tolerance),
		NewCustomNormalizer(),
	)
}

func (r *Registry) Get(provider string) (Normalizer, error) {
	n, ok := r.byProvider[Provider(strings.ToLower(provider))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	return n, nil
}

func signatureError(err error) error {
	return fmt.Errorf("%w: %w", ErrSignature, err)
}

func payloadError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidPayload, fmt.Sprintf(format, args...))
}

func ignored(provider Provider, eventType, deliveryID string) *Event {
	return &Event{Provider: provider, Kind: KindIgnored, ProviderEventType: eventType, DeliveryID: deliveryID}
}

func unixPtr(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}

func tenureDays(start, end *time.Time) int {
	if start == nil || end == nil || end.Before(*start) {
		return 0
	}
	return int(end.Sub(*start).Hours() / 24)
}

// cancelReason parses a "reason: free text" value. An explicit text field wins
// over the text embedded in the reason.
func cancelReason(raw, explicitText string) (recovery.CancelReason, string) {
	base, embedded := recovery.ParseCancelReason(raw)
	return base, firstNonEmpty(explicitText, embedded)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// monthlyCents converts a recurring price into monthly minor units.
func monthlyCents(amount int64, interval string, count int64) int64 {
	if count <= 0 {
		count = 1
	}
	switch strings.ToLower(interval) {
	case "year", "yearly":
		return amount / (12 * count)
	case "week", "weekly":
		return amount * 52 / (12 * count)
	case "day", "daily":
		return amount * 365 / (12 * count)
	}
	return amount / count
}

func stringMap(m map[string]string) map[string]interface{} {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
