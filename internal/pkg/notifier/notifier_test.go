package notifier

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"windback-be/pkg/signature"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() Notification {
	return Notification{
		ProjectId:  "p-1",
		Kind:       "churn_created",
		OccurredAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Payload: map[string]interface{}{
			"customer_email": "ana@example.com",
			"cancel_reason":  "too_expensive",
		},
	}
}

func TestWebhookChannelSignsBody(t *testing.T) {
	var gotSig, gotEvent string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(SignatureHeader)
		gotEvent = r.Header.Get(EventHeader)
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ch := NewWebhookChannel(srv.URL, "whsec", srv.Client())
	require.NoError(t, ch.Deliver(context.Background(), sample()))

	assert.Equal(t, "churn_created", gotEvent)
	assert.NoError(t, signature.VerifyCustom(gotBody, gotSig, "whsec"))

	var decoded Notification
	require.NoError(t, json.Unmarshal(gotBody, &decoded))
	assert.Equal(t, "p-1", decoded.ProjectId)
}

func TestSlackChannelPostsText(t *testing.T) {
	var payload map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&payload)
	}))
	defer srv.Close()

	require.NoError(t, NewSlackChannel(srv.URL, srv.Client()).Deliver(context.Background(), sample()))
	assert.Contains(t, payload["text"], "ana@example.com")
	assert.Contains(t, payload["text"], "too_expensive")
}

func TestDeliverWithRetryStopsAfterSecondAttempt(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := DeliverWithRetry(context.Background(), NewSlackChannel(srv.URL, srv.Client()), sample(), time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestDeliverWithRetryRecovers(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := DeliverWithRetry(context.Background(), NewSlackChannel(srv.URL, srv.Client()), sample(), time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}
