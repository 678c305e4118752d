package normalizer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stripe/stripe-go/v84"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stripeAPI(t *testing.T, handler http.HandlerFunc) *stripe.Backends {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return stripe.NewBackendsWithConfig(&stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		HTTPClient:        srv.Client(),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
}

func TestStripeDirectoryEnrich(t *testing.T) {
	backends := stripeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/customers/cus_1":
			_, _ = w.Write([]byte(`{"id":"cus_1","object":"customer","email":"jane@example.com","name":"Jane"}`))
		case "/v1/customers/cus_gone":
			_, _ = w.Write([]byte(`{"id":"cus_gone","object":"customer","deleted":true}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"No such customer"}}`))
		}
	})
	r := DefaultRegistry(0).WithDirectory(NewStripeDirectory("sk_test_123", backends))
	ctx := context.Background()

	tests := []struct {
		name        string
		ev          *Event
		wantChanged bool
		wantErr     bool
		wantEmail   string
		wantName    string
	}{
		{
			name:        "fills missing email and name",
			ev:          &Event{Provider: ProviderStripe, CustomerID: "cus_1"},
			wantChanged: true,
			wantEmail:   "jane@example.com",
			wantName:    "Jane",
		},
		{
			name:        "keeps a name from the payload",
			ev:          &Event{Provider: ProviderStripe, CustomerID: "cus_1", CustomerName: "J. Doe"},
			wantChanged: true,
			wantEmail:   "jane@example.com",
			wantName:    "J. Doe",
		},
		{
			name:      "email already present",
			ev:        &Event{Provider: ProviderStripe, CustomerID: "cus_x", CustomerEmail: "a@b.co"},
			wantEmail: "a@b.co",
		},
		{
			name: "deleted customer",
			ev:   &Event{Provider: ProviderStripe, CustomerID: "cus_gone"},
		},
		{
			name:    "unknown customer",
			ev:      &Event{Provider: ProviderStripe, CustomerID: "cus_missing"},
			wantErr: true,
		},
		{
			name: "provider without directory",
			ev:   &Event{Provider: ProviderPaddle, CustomerID: "ctm_1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changed, err := r.Enrich(ctx, tt.ev)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Empty(t, tt.ev.CustomerEmail)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantChanged, changed)
			assert.Equal(t, tt.wantEmail, tt.ev.CustomerEmail)
			assert.Equal(t, tt.wantName, tt.ev.CustomerName)
		})
	}
}
