package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"windback-be/internal/bootstrap"
	"windback-be/internal/config"
	"windback-be/internal/dto"
	"windback-be/internal/pkg/serverutils"
	"windback-be/pkg/normalizer"
	"windback-be/pkg/signature"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJwtSecret = "test-secret"

type envelope struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type harness struct {
	t     *testing.T
	app   *fiber.App
	token string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		App: config.AppConfig{
			Port:                "0",
			BaseURL:             "http://localhost",
			Environment:         "test",
			LogFilePath:         filepath.Join(dir, "app.log"),
			NotificationLogPath: filepath.Join(dir, "notification.log"),
			CorsAllowedOrigins:  "*",
			JwtSecret:           testJwtSecret,
			Storage:             "memory",
		},
		Ai: config.AIConfig{
			LLMProvider:   "ollama",
			LLMModel:      "llama3",
			OllamaBaseURL: "http://127.0.0.1:1",
			Concurrency:   3,
			Timeout:       time.Second,
		},
		Dunning: config.DunningConfig{
			TickInterval: time.Hour,
			ClaimLease:   10 * time.Minute,
			BatchSize:    10,
			PoolSize:     2,
		},
		Webhook: config.WebhookConfig{
			ReplayTTL:          time.Hour,
			SignatureTolerance: 5 * time.Minute,
		},
		Send: config.SendConfig{ClaimLease: time.Minute},
	}

	container := bootstrap.NewContainer(nil, cfg)
	t.Cleanup(container.Close)

	token, err := serverutils.IssueToken(testJwtSecret, "operator@test")
	require.NoError(t, err)

	return &harness{t: t, app: New(cfg, container).GetApp(), token: token}
}

func (h *harness) do(method, path string, body []byte, headers map[string]string) (int, envelope) {
	h.t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := h.app.Test(req, -1)
	require.NoError(h.t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)
	var env envelope
	require.NoError(h.t, json.Unmarshal(raw, &env), string(raw))
	return resp.StatusCode, env
}

func (h *harness) operator(method, path string, payload interface{}) (int, envelope) {
	h.t.Helper()
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		require.NoError(h.t, err)
	}
	return h.do(method, path, body, map[string]string{"Authorization": "Bearer " + h.token})
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func (h *harness) createProject() dto.CreateProjectResponse {
	status, env := h.operator(http.MethodPost, "/api/projects", dto.CreateProjectRequest{
		Name:      "Acme",
		FromName:  "Acme Team",
		FromEmail: "team@acme.test",
	})
	require.Equal(h.t, http.StatusCreated, status, env.Message)
	return decode[dto.CreateProjectResponse](h.t, env)
}

func (h *harness) webhook(project dto.CreateProjectResponse, delivery string, payload map[string]interface{}) (int, envelope) {
	h.t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(h.t, err)
	return h.do(http.MethodPost, "/webhooks/custom/"+project.PublicKey, body, map[string]string{
		normalizer.CustomSignatureHeader: signature.Sign(project.WebhookSecret, body),
		normalizer.CustomDeliveryHeader:  delivery,
	})
}

func TestOperatorRoutesRequireToken(t *testing.T) {
	h := newHarness(t)

	status, env := h.do(http.MethodGet, "/api/projects/acme", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.False(t, env.Success)

	status, _ = h.do(http.MethodGet, "/api/projects/acme", nil, map[string]string{"Authorization": "Bearer nope"})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestCreateProjectValidation(t *testing.T) {
	h := newHarness(t)

	status, env := h.operator(http.MethodPost, "/api/projects", map[string]string{"from_email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, env.Message, "Name")
}

func TestRecoveryFlowOverHTTP(t *testing.T) {
	h := newHarness(t)
	project := h.createProject()
	base := "/api/projects/" + project.Slug

	// Templates avoid the model, so generation is deterministic.
	status, env := h.operator(http.MethodPost, base+"/templates", dto.TemplateRequest{
		CancelReason: "too_expensive",
		Name:         "Price objection",
		Subject:      "{{customer_name}}, about the price",
		Body:         "<p>We hear you about {{plan_name}}.</p>",
		IsActive:     true,
	})
	require.Equal(t, http.StatusCreated, status, env.Message)

	status, env = h.webhook(project, "evt_1", map[string]interface{}{
		"event_type":      "subscription.canceled",
		"customer_id":     "cus_1",
		"customer_email":  "kim@example.com",
		"customer_name":   "Kim",
		"subscription_id": "sub_1",
		"plan_name":       "Growth",
		"mrr":             2900,
		"reason":          "too_expensive",
	})
	require.Equal(t, http.StatusOK, status, env.Message)
	hook := decode[dto.WebhookResponse](t, env)
	assert.Equal(t, dto.WebhookStatusProcessed, hook.Status)
	require.NotNil(t, hook.ChurnEventId)
	eventPath := base + "/churn-events/" + hook.ChurnEventId.String()

	status, env = h.operator(http.MethodPost, eventPath+"/generate", nil)
	require.Equal(t, http.StatusOK, status, env.Message)
	generated := decode[dto.GenerateVariantsResponse](t, env)
	require.Len(t, generated.Variants, 1)
	assert.Equal(t, "template", generated.Source)
	assert.Equal(t, "Kim, about the price", generated.Variants[0].Subject)

	status, _ = h.operator(http.MethodPost, eventPath+"/generate", nil)
	assert.Equal(t, http.StatusConflict, status)

	variantPath := eventPath + "/variants/" + generated.Variants[0].Id.String()
	status, env = h.operator(http.MethodPatch, variantPath, dto.UpdateVariantRequest{Subject: "Kim, a better price", Body: "<p>20% off</p>"})
	require.Equal(t, http.StatusOK, status, env.Message)

	status, env = h.operator(http.MethodPost, variantPath+"/send", nil)
	require.Equal(t, http.StatusOK, status, env.Message)
	assert.False(t, decode[dto.SendVariantResponse](t, env).AlreadySent)

	status, env = h.operator(http.MethodPost, variantPath+"/send", nil)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, decode[dto.SendVariantResponse](t, env).AlreadySent)

	status, _ = h.operator(http.MethodPatch, variantPath, dto.UpdateVariantRequest{Subject: "late", Body: "late"})
	assert.Equal(t, http.StatusConflict, status)

	status, env = h.do(http.MethodPost, "/api/track/variants/"+generated.Variants[0].Id.String()+"/open", nil, nil)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, decode[dto.TrackResponse](t, env).Recorded)

	status, env = h.operator(http.MethodPost, eventPath+"/recovered", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "recovered", decode[dto.ChurnEventResponse](t, env).Status)

	status, _ = h.operator(http.MethodPost, eventPath+"/lost", nil)
	assert.Equal(t, http.StatusConflict, status)
}

func TestWebhookErrorsOverHTTP(t *testing.T) {
	h := newHarness(t)
	project := h.createProject()

	body := []byte(`{"event_type":"subscription.canceled","customer_id":"cus_1"}`)
	status, env := h.do(http.MethodPost, "/webhooks/custom/"+project.PublicKey, body, map[string]string{
		normalizer.CustomSignatureHeader: signature.Sign("wrong", body),
	})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "invalid webhook signature", env.Message)

	status, _ = h.do(http.MethodPost, "/webhooks/chargebee/"+project.PublicKey, body, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = h.webhook(project, "evt_1", map[string]interface{}{"customer_id": "cus_1"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestDunningAndRetentionOverHTTP(t *testing.T) {
	h := newHarness(t)
	project := h.createProject()
	base := "/api/projects/" + project.Slug

	status, env := h.operator(http.MethodGet, base+"/dunning-config", nil)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, decode[dto.DunningConfigResponse](t, env).IsDefault)

	status, _ = h.operator(http.MethodPut, base+"/dunning-config", dto.DunningConfigRequest{
		MaxRetries: 20, RetryIntervalHours: 24, ToneSequence: []string{"urgency"},
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = h.operator(http.MethodPut, base+"/dunning-config", dto.DunningConfigRequest{
		MaxRetries: 2, RetryIntervalHours: 24, ToneSequence: []string{"gentle_reminder", "final_warning"},
	})
	require.Equal(t, http.StatusOK, status, env.Message)

	status, env = h.webhook(project, "evt_pf", map[string]interface{}{
		"event_type":     "payment.failed",
		"customer_id":    "cus_2",
		"customer_email": "lee@example.com",
		"invoice_id":     "in_1",
		"amount":         1500,
	})
	require.Equal(t, http.StatusOK, status, env.Message)
	hook := decode[dto.WebhookResponse](t, env)
	require.NotNil(t, hook.PaymentFailureId)

	status, env = h.operator(http.MethodGet, base+"/payment-failures?status=failing", nil)
	require.Equal(t, http.StatusOK, status)
	failures := decode[[]dto.PaymentFailureResponse](t, env)
	require.Len(t, failures, 1)
	assert.Equal(t, 2, failures[0].MaxRetries)

	status, env = h.operator(http.MethodPost, base+"/payment-failures/"+hook.PaymentFailureId.String()+"/recovered", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "recovered", decode[dto.PaymentFailureResponse](t, env).Status)

	status, _ = h.do(http.MethodGet, "/api/public/"+project.PublicKey+"/retention-offer?reason=too_expensive", nil, nil)
	assert.Equal(t, http.StatusNotFound, status)

	percent := 25
	status, env = h.operator(http.MethodPut, base+"/retention-offers/too_expensive", dto.RetentionOfferRequest{
		OfferType:       "discount",
		Title:           "25% off for 3 months",
		DiscountPercent: &percent,
	})
	require.Equal(t, http.StatusOK, status, env.Message)

	status, env = h.do(http.MethodGet, "/api/public/"+project.PublicKey+"/retention-offer?reason=too_expensive", nil, nil)
	require.Equal(t, http.StatusOK, status)
	offer := decode[dto.PublicRetentionOfferResponse](t, env)
	assert.Equal(t, "discount", offer.OfferType)
	require.NotNil(t, offer.DiscountPercent)
	assert.Equal(t, 25, *offer.DiscountPercent)
}
