package normalizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"
)

// CustomerDirectory looks up contact details a provider leaves out of its
// webhook payloads.
type CustomerDirectory interface {
	Provider() Provider
	Lookup(ctx context.Context, customerID string) (email, name string, err error)
}

// WithDirectory registers a directory consulted by Enrich.
func (r *Registry) WithDirectory(d CustomerDirectory) *Registry {
	if r.directories == nil {
		r.directories = map[Provider]CustomerDirectory{}
	}
	r.directories[d.Provider()] = d
	return r
}

// Enrich fills a missing customer email or name from the provider's directory.
// It reports whether anything changed. Events without a customer id, or from
// providers without a directory, are left alone.
func (r *Registry) Enrich(ctx context.Context, ev *Event) (bool, error) {
	if ev == nil || ev.CustomerEmail != "" || ev.CustomerID == "" {
		return false, nil
	}
	d, ok := r.directories[ev.Provider]
	if !ok {
		return false, nil
	}

	email, name, err := d.Lookup(ctx, ev.CustomerID)
	if err != nil {
		return false, fmt.Errorf("lookup %s customer %s: %w", ev.Provider, ev.CustomerID, err)
	}
	ev.CustomerEmail = strings.TrimSpace(email)
	if ev.CustomerName == "" {
		ev.CustomerName = strings.TrimSpace(name)
	}
	return ev.CustomerEmail != "", nil
}

type stripeDirectory struct {
	client *stripe.Client
}

// NewStripeDirectory reads customers through the Stripe API with a restricted
// or secret key. Pass nil backends for the live API.
func NewStripeDirectory(secretKey string, backends *stripe.Backends) CustomerDirectory {
	var opts []stripe.ClientOption
	if backends != nil {
		opts = append(opts, stripe.WithBackends(backends))
	}
	return &stripeDirectory{client: stripe.NewClient(secretKey, opts...)}
}

func (d *stripeDirectory) Provider() Provider { return ProviderStripe }

func (d *stripeDirectory) Lookup(ctx context.Context, customerID string) (string, string, error) {
	c, err := d.client.V1Customers.Retrieve(ctx, customerID, nil)
	if err != nil {
		return "", "", err
	}
	if c.Deleted {
		return "", "", nil
	}
	return c.Email, c.Name, nil
}
