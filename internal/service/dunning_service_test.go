package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"windback-be/internal/dto"
	"windback-be/internal/entity"
	"windback-be/internal/pkg/apperror"
	"windback-be/pkg/dunning"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func saveConfig(t *testing.T, env *testEnv, maxRetries, intervalHours int) {
	t.Helper()
	_, err := env.dunning.UpdateConfig(context.Background(), env.project.Id, &dto.DunningConfigRequest{
		MaxRetries:         maxRetries,
		RetryIntervalHours: intervalHours,
		ToneSequence:       []string{"gentle_reminder", "urgency", "final_warning"},
	})
	require.NoError(t, err)
}

func TestDunningRunsToAbandonment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	saveConfig(t, env, 3, 72)

	failure, created, err := env.dunning.RecordFailure(ctx, env.project, paymentFailedEvent("in_1"))
	require.NoError(t, err)
	require.True(t, created)
	assert.Equal(t, 3, failure.MaxRetries)

	for tick := 1; tick <= 3; tick++ {
		claimed, err := env.scheduler.Tick(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, claimed, "tick %d", tick)

		// Nothing else is due until the interval passes.
		claimed, err = env.scheduler.Tick(ctx)
		require.NoError(t, err)
		assert.Zero(t, claimed)

		env.clock.Advance(72 * time.Hour)
	}

	got, err := env.dunning.Get(ctx, env.project.Id, failure.Id)
	require.NoError(t, err)
	assert.Equal(t, string(entity.PaymentFailureStatusAbandoned), got.Status)
	assert.Equal(t, 3, got.RetryCount)
	assert.Nil(t, got.NextRetryAt)
	assert.NotNil(t, got.AbandonedAt)

	require.Len(t, got.Emails, 3)
	tones := []string{"gentle_reminder", "urgency", "final_warning"}
	for i, e := range got.Emails {
		assert.Equal(t, i+1, e.RetryNumber)
		assert.Equal(t, tones[i], e.Tone)
	}

	claimed, err := env.scheduler.Tick(ctx)
	require.NoError(t, err)
	assert.Zero(t, claimed)
	assert.Len(t, env.mailer.messages(), 3)
}

func TestDunningStopsOnRecovery(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	saveConfig(t, env, 3, 24)

	failure, _, err := env.dunning.RecordFailure(ctx, env.project, paymentFailedEvent("in_1"))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := env.scheduler.Tick(ctx)
		require.NoError(t, err)
		env.clock.Advance(24 * time.Hour)
	}

	_, recovered, err := env.dunning.MarkRecoveredByInvoice(ctx, env.project.Id, failure.Provider, "in_1")
	require.NoError(t, err)
	assert.True(t, recovered)

	claimed, err := env.scheduler.Tick(ctx)
	require.NoError(t, err)
	assert.Zero(t, claimed)

	got, err := env.dunning.Get(ctx, env.project.Id, failure.Id)
	require.NoError(t, err)
	assert.Equal(t, string(entity.PaymentFailureStatusRecovered), got.Status)
	assert.Equal(t, 2, got.RetryCount)
	assert.Nil(t, got.NextRetryAt)
	assert.Len(t, got.Emails, 2)
	assert.Contains(t, env.notifier.kinds(), entity.NotificationPaymentRecovered)

	_, recovered, err = env.dunning.MarkRecoveredByInvoice(ctx, env.project.Id, failure.Provider, "in_1")
	require.NoError(t, err)
	assert.False(t, recovered, "second success is a no-op")
}

func TestDunningDeliveryFailureKeepsRetryCount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	failure, _, err := env.dunning.RecordFailure(ctx, env.project, paymentFailedEvent("in_1"))
	require.NoError(t, err)

	env.mailer.setFail(errors.New("smtp down"))
	claimed, err := env.scheduler.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, claimed)

	got, err := env.dunning.Get(ctx, env.project.Id, failure.Id)
	require.NoError(t, err)
	assert.Equal(t, 0, got.RetryCount)
	assert.Equal(t, string(entity.PaymentFailureStatusFailing), got.Status)
	assert.Empty(t, got.Emails)

	env.mailer.setFail(nil)
	claimed, err = env.scheduler.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, claimed, "released claim is due again")

	got, err = env.dunning.Get(ctx, env.project.Id, failure.Id)
	require.NoError(t, err)
	assert.Equal(t, 1, got.RetryCount)
	require.Len(t, got.Emails, 1)
	assert.Equal(t, 1, got.Emails[0].RetryNumber)
}

func TestConcurrentTicksSendOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, inv := range []string{"in_1", "in_2", "in_3", "in_4"} {
		_, _, err := env.dunning.RecordFailure(ctx, env.project, paymentFailedEvent(inv))
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.scheduler.Tick(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	msgs := env.mailer.messages()
	assert.Len(t, msgs, 4)
	keys := map[string]bool{}
	for _, m := range msgs {
		assert.False(t, keys[m.IdempotencyKey], "duplicate send %s", m.IdempotencyKey)
		keys[m.IdempotencyKey] = true
	}
}

func TestRecordFailureIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, created, err := env.dunning.RecordFailure(ctx, env.project, paymentFailedEvent("in_1"))
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := env.dunning.RecordFailure(ctx, env.project, paymentFailedEvent("in_1"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.Id, second.Id)

	assert.Equal(t, []entity.NotificationKind{entity.NotificationPaymentFailed}, env.notifier.kinds())
}

func TestRecordFailureWithoutEmailIsNeverScheduled(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := paymentFailedEvent("in_1")
	ev.CustomerEmail = ""

	failure, _, err := env.dunning.RecordFailure(ctx, env.project, ev)
	require.NoError(t, err)
	assert.Nil(t, failure.NextRetryAt)

	claimed, err := env.scheduler.Tick(ctx)
	require.NoError(t, err)
	assert.Zero(t, claimed)
}

func TestOperatorCanRecoverAbandonedFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	saveConfig(t, env, 1, 12)

	failure, _, err := env.dunning.RecordFailure(ctx, env.project, paymentFailedEvent("in_1"))
	require.NoError(t, err)
	_, err = env.scheduler.Tick(ctx)
	require.NoError(t, err)

	got, err := env.dunning.MarkRecovered(ctx, env.project.Id, failure.Id)
	require.NoError(t, err)
	assert.Equal(t, string(entity.PaymentFailureStatusRecovered), got.Status)
	assert.Len(t, got.Emails, 1)

	again, err := env.dunning.MarkRecovered(ctx, env.project.Id, failure.Id)
	require.NoError(t, err)
	assert.Equal(t, got.RecoveredAt, again.RecoveredAt)
}

func TestDunningConfig(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cfg, err := env.dunning.GetConfig(ctx, env.project.Id)
	require.NoError(t, err)
	assert.True(t, cfg.IsDefault)
	assert.Equal(t, dunning.DefaultMaxRetries, cfg.MaxRetries)
	assert.Len(t, cfg.ToneSequence, 4)

	tests := []struct {
		name string
		req  dto.DunningConfigRequest
	}{
		{"too many retries", dto.DunningConfigRequest{MaxRetries: 11, RetryIntervalHours: 24, ToneSequence: []string{"urgency"}}},
		{"interval too short", dto.DunningConfigRequest{MaxRetries: 3, RetryIntervalHours: 6, ToneSequence: []string{"urgency"}}},
		{"unknown tone", dto.DunningConfigRequest{MaxRetries: 3, RetryIntervalHours: 24, ToneSequence: []string{"angry"}}},
		{"empty tones", dto.DunningConfigRequest{MaxRetries: 3, RetryIntervalHours: 24}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.dunning.UpdateConfig(ctx, env.project.Id, &tt.req)
			assert.ErrorIs(t, err, apperror.ErrValidation)
		})
	}

	name := "Billing team"
	saved, err := env.dunning.UpdateConfig(ctx, env.project.Id, &dto.DunningConfigRequest{
		MaxRetries:         5,
		RetryIntervalHours: 48,
		ToneSequence:       []string{"help_offer"},
		CustomFromName:     &name,
	})
	require.NoError(t, err)
	assert.False(t, saved.IsDefault)

	cfg, err = env.dunning.GetConfig(ctx, env.project.Id)
	require.NoError(t, err)
	assert.False(t, cfg.IsDefault)
	assert.Equal(t, 5, cfg.MaxRetries)
	require.NotNil(t, cfg.CustomFromName)
	assert.Equal(t, "Billing team", *cfg.CustomFromName)

	_, _, err = env.dunning.RecordFailure(ctx, env.project, paymentFailedEvent("in_1"))
	require.NoError(t, err)
	_, err = env.scheduler.Tick(ctx)
	require.NoError(t, err)
	msgs := env.mailer.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "Billing team", msgs[0].FromName)
	assert.Equal(t, "Need a hand updating your payment?", msgs[0].Subject)
}
