package service

import (
	"context"
	"encoding/json"
	"testing"

	"windback-be/internal/dto"
	"windback-be/internal/entity"
	"windback-be/internal/pkg/apperror"
	"windback-be/pkg/normalizer"
	"windback-be/pkg/signature"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) deliver(t *testing.T, delivery string, payload map[string]interface{}) (*dto.WebhookResponse, error) {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return e.deliverRaw(body, signature.Sign(e.projectDTO.WebhookSecret, body), delivery)
}

func (e *testEnv) deliverRaw(body []byte, sig, delivery string) (*dto.WebhookResponse, error) {
	headers := map[string]string{
		normalizer.CustomSignatureHeader: sig,
		normalizer.CustomDeliveryHeader:  delivery,
	}
	return e.webhooks.Ingest(context.Background(), "custom", e.projectDTO.PublicKey, body, func(k string) string {
		return headers[k]
	})
}

func cancellation(sub string) map[string]interface{} {
	return map[string]interface{}{
		"event_type":      normalizer.CustomEventSubscriptionCanceled,
		"customer_id":     "cus_42",
		"customer_email":  "sam@example.com",
		"customer_name":   "Sam",
		"subscription_id": sub,
		"plan_name":       "Team",
		"mrr":             9900,
		"reason":          "too_expensive",
		"reason_text":     "budget cuts",
		"tenure_days":     400,
	}
}

func TestWebhookRecordsChurn(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.deliver(t, "evt_1", cancellation("sub_1"))
	require.NoError(t, err)
	assert.Equal(t, dto.WebhookStatusProcessed, res.Status)
	assert.Equal(t, string(normalizer.KindChurn), res.Kind)
	require.NotNil(t, res.ChurnEventId)

	event, err := env.churn.Get(context.Background(), env.project.Id, *res.ChurnEventId)
	require.NoError(t, err)
	assert.Equal(t, string(entity.ChurnEventStatusNew), event.Status)
	assert.Equal(t, "sam@example.com", event.CustomerEmail)
	assert.Equal(t, "too_expensive: budget cuts", event.CancelReason)

	assert.Equal(t, 1, env.publisher.count(TopicGenerateVariants))
	assert.Equal(t, []entity.NotificationKind{entity.NotificationChurnCreated}, env.notifier.kinds())
}

func TestWebhookDuplicateDelivery(t *testing.T) {
	env := newTestEnv(t)

	first, err := env.deliver(t, "evt_1", cancellation("sub_1"))
	require.NoError(t, err)

	res, err := env.deliver(t, "evt_1", cancellation("sub_1"))
	require.NoError(t, err)
	assert.Equal(t, dto.WebhookStatusDuplicate, res.Status)

	// A new delivery id for the same cancellation is caught by the row key.
	res, err = env.deliver(t, "evt_2", cancellation("sub_1"))
	require.NoError(t, err)
	assert.Equal(t, dto.WebhookStatusDuplicate, res.Status)
	assert.Equal(t, first.ChurnEventId, res.ChurnEventId)

	assert.Equal(t, 1, env.publisher.count(TopicGenerateVariants))
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	env := newTestEnv(t)
	body, _ := json.Marshal(cancellation("sub_1"))

	tests := []struct {
		name string
		sig  string
	}{
		{"missing", ""},
		{"wrong secret", signature.Sign("whsec_other", body)},
		{"garbage", "sha256=zz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.deliverRaw(body, tt.sig, "evt_1")
			assert.ErrorIs(t, err, apperror.ErrSignature)
			assert.ErrorIs(t, err, normalizer.ErrSignature)
		})
	}

	events, err := env.churn.List(context.Background(), env.project.Id, &dto.ListChurnEventsRequest{})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestWebhookUnknownProviderAndProject(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.webhooks.Ingest(context.Background(), "chargebee", env.projectDTO.PublicKey, []byte(`{}`), nil)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = env.webhooks.Ingest(context.Background(), "custom", "pk_missing", []byte(`{}`), nil)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestWebhookInvalidPayload(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.deliver(t, "evt_1", map[string]interface{}{"customer_id": "cus_1"})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	res, err := env.deliver(t, "evt_2", map[string]interface{}{"event_type": "customer.updated", "customer_id": "cus_1"})
	require.NoError(t, err)
	assert.Equal(t, dto.WebhookStatusIgnored, res.Status)
}

func TestWebhookPaymentFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	failed := map[string]interface{}{
		"event_type":     normalizer.CustomEventPaymentFailed,
		"customer_id":    "cus_42",
		"customer_email": "sam@example.com",
		"invoice_id":     "in_9",
		"amount":         2500,
		"currency":       "EUR",
		"failure_reason": "insufficient_funds",
	}
	res, err := env.deliver(t, "evt_1", failed)
	require.NoError(t, err)
	assert.Equal(t, dto.WebhookStatusProcessed, res.Status)
	require.NotNil(t, res.PaymentFailureId)

	got, err := env.dunning.Get(ctx, env.project.Id, *res.PaymentFailureId)
	require.NoError(t, err)
	assert.Equal(t, "eur", got.Currency)
	assert.Equal(t, int64(2500), got.AmountCents)
	assert.Equal(t, string(entity.PaymentFailureStatusFailing), got.Status)

	succeeded := map[string]interface{}{
		"event_type":  normalizer.CustomEventPaymentSucceeded,
		"customer_id": "cus_42",
		"invoice_id":  "in_9",
		"amount":      2500,
	}
	res, err = env.deliver(t, "evt_2", succeeded)
	require.NoError(t, err)
	assert.Equal(t, dto.WebhookStatusProcessed, res.Status)

	got, err = env.dunning.Get(ctx, env.project.Id, got.Id)
	require.NoError(t, err)
	assert.Equal(t, string(entity.PaymentFailureStatusRecovered), got.Status)

	succeeded["invoice_id"] = "in_unknown"
	res, err = env.deliver(t, "evt_3", succeeded)
	require.NoError(t, err)
	assert.Equal(t, dto.WebhookStatusIgnored, res.Status)
}

func TestWebhookReactivationRecoversChurn(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.deliver(t, "evt_1", cancellation("sub_1"))
	require.NoError(t, err)

	reactivated := map[string]interface{}{
		"event_type":  normalizer.CustomEventSubscriptionReactivated,
		"customer_id": "cus_42",
	}
	again, err := env.deliver(t, "evt_2", reactivated)
	require.NoError(t, err)
	assert.Equal(t, dto.WebhookStatusProcessed, again.Status)

	event, err := env.churn.Get(ctx, env.project.Id, *res.ChurnEventId)
	require.NoError(t, err)
	assert.Equal(t, string(entity.ChurnEventStatusRecovered), event.Status)
	assert.NotNil(t, event.RecoveredAt)
	assert.Contains(t, env.notifier.kinds(), entity.NotificationChurnRecovered)

	// Nothing left to recover.
	again, err = env.deliver(t, "evt_3", reactivated)
	require.NoError(t, err)
	assert.Equal(t, dto.WebhookStatusIgnored, again.Status)
}

func TestWebhookChurnWithoutEmail(t *testing.T) {
	tests := []struct {
		name      string
		known     bool
		lookupErr error
		wantEmail string
		wantJobs  int
	}{
		{"filled from directory", true, nil, "kim@example.com", 1},
		{"unknown customer", false, nil, "", 0},
		{"lookup fails", true, assert.AnError, "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			if tt.known {
				env.directory.customers["cus_42"] = [2]string{"kim@example.com", "Kim"}
			}
			env.directory.err = tt.lookupErr

			payload := cancellation("sub_1")
			delete(payload, "customer_email")
			delete(payload, "customer_name")

			res, err := env.deliver(t, "evt_1", payload)
			require.NoError(t, err)
			assert.Equal(t, dto.WebhookStatusProcessed, res.Status)
			require.NotNil(t, res.ChurnEventId)
			assert.Equal(t, 1, env.directory.lookups)

			event, err := env.churn.Get(context.Background(), env.project.Id, *res.ChurnEventId)
			require.NoError(t, err)
			assert.Equal(t, tt.wantEmail, event.CustomerEmail)
			assert.Equal(t, tt.wantJobs, env.publisher.count(TopicGenerateVariants))
		})
	}
}

func TestWebhookSkipsLookupWhenEmailPresent(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.deliver(t, "evt_1", cancellation("sub_1"))
	require.NoError(t, err)
	assert.Zero(t, env.directory.lookups)
}
