package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("APP_PORT", "8080")
	t.Setenv("GO_ENV", "production")
	t.Setenv("APP_STORAGE", "memory")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("LLM_TEMPERATURE", "0.2")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("DUNNING_TICK_INTERVAL", "90s")
	t.Setenv("LLM_MAX_TOKENS", "600")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")

	cfg := Load()

	assert.Equal(t, "8080", cfg.App.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "memory", cfg.App.Storage)
	assert.Equal(t, 2525, cfg.SMTP.Port)
	assert.InDelta(t, 0.2, cfg.Ai.Temperature, 1e-9)
	assert.True(t, cfg.App.OtelEnabled)
	assert.Equal(t, 90*time.Second, cfg.Dunning.TickInterval)
	assert.Equal(t, 600, cfg.Ai.MaxTokens)
	assert.Equal(t, "sk_test_123", cfg.Webhook.StripeSecretKey)
}

func TestLoadFallsBackOnMalformedValues(t *testing.T) {
	t.Setenv("SMTP_PORT", "smtp")
	t.Setenv("DUNNING_TICK_INTERVAL", "often")
	t.Setenv("OTEL_ENABLED", "maybe")

	cfg := Load()

	assert.Equal(t, 587, cfg.SMTP.Port)
	assert.Equal(t, 5*time.Minute, cfg.Dunning.TickInterval)
	assert.False(t, cfg.App.OtelEnabled)
	assert.Equal(t, 72*time.Hour, cfg.Webhook.ReplayTTL)
}
