package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"windback-be/internal/dto"
	"windback-be/internal/entity"
	"windback-be/internal/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	event, gen := env.generated(t, "sub_1", "poor_support")
	variant := gen.Variants[2]

	first, err := env.sender.Send(ctx, env.project, event.Id, variant.Id)
	require.NoError(t, err)
	assert.False(t, first.AlreadySent)

	second, err := env.sender.Send(ctx, env.project, event.Id, variant.Id)
	require.NoError(t, err)
	assert.True(t, second.AlreadySent)
	assert.True(t, first.SentAt.Equal(second.SentAt))

	msgs := env.mailer.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "variant:"+variant.Id.String(), msgs[0].IdempotencyKey)
	assert.Equal(t, "Acme", msgs[0].FromName)
	assert.Equal(t, "hello@acme.test", msgs[0].FromEmail)

	stored, err := env.churn.Get(ctx, env.project.Id, event.Id)
	require.NoError(t, err)
	assert.Equal(t, string(entity.ChurnEventStatusEmailSent), stored.Status)
}

func TestManualModeAllowsSeveralVariants(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	event, gen := env.generated(t, "sub_1", "other")

	_, err := env.sender.Send(ctx, env.project, event.Id, gen.Variants[0].Id)
	require.NoError(t, err)
	_, err = env.sender.Send(ctx, env.project, event.Id, gen.Variants[1].Id)
	require.NoError(t, err)
	assert.Len(t, env.mailer.messages(), 2)
}

func TestAutoSendModeSendsOnlyOneVariant(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	event, gen := env.generated(t, "sub_1", "other")
	env.setAutoSend(t, true)

	_, err := env.sender.Send(ctx, env.project, event.Id, gen.Variants[0].Id)
	require.NoError(t, err)

	_, err = env.sender.Send(ctx, env.project, event.Id, gen.Variants[1].Id)
	assert.ErrorIs(t, err, apperror.ErrConflict)
	assert.Len(t, env.mailer.messages(), 1)
}

func TestAutoSendReleasesEventClaimWhenVariantIsBusy(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	event, gen := env.generated(t, "sub_1", "other")
	env.setAutoSend(t, true)
	variantId := gen.Variants[0].Id

	uow := env.factory.NewUnitOfWork(ctx)
	now := time.Now().UTC()
	claimed, err := uow.RecoveryVariantRepository().ClaimSend(ctx, variantId, now, now.Add(-time.Hour))
	require.NoError(t, err)
	require.True(t, claimed)

	_, err = env.sender.Send(ctx, env.project, event.Id, variantId)
	require.ErrorIs(t, err, apperror.ErrConflict)
	assert.Contains(t, err.Error(), "variant send is already in progress")

	// The event lease taken before the variant claim failed must be free again.
	require.NoError(t, uow.RecoveryVariantRepository().ReleaseClaim(ctx, variantId))
	res, err := env.sender.Send(ctx, env.project, event.Id, variantId)
	require.NoError(t, err)
	assert.False(t, res.AlreadySent)
	assert.Len(t, env.mailer.messages(), 1)
}

func TestSendToClosedEventIsConflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	event, gen := env.generated(t, "sub_1", "other")

	_, err := env.churn.MarkRecovered(ctx, env.project.Id, event.Id)
	require.NoError(t, err)

	_, err = env.sender.Send(ctx, env.project, event.Id, gen.Variants[0].Id)
	assert.ErrorIs(t, err, apperror.ErrConflict)
	assert.Empty(t, env.mailer.messages())
}

func TestSendDeliveryFailureCanBeRetried(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	event, gen := env.generated(t, "sub_1", "other")
	variant := gen.Variants[0]

	env.mailer.setFail(errors.New("smtp down"))
	_, err := env.sender.Send(ctx, env.project, event.Id, variant.Id)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrDelivery)

	stored, err := env.churn.Get(ctx, env.project.Id, event.Id)
	require.NoError(t, err)
	assert.Equal(t, string(entity.ChurnEventStatusVariantsGenerated), stored.Status)
	assert.Nil(t, stored.Variants[0].SentAt)

	env.mailer.setFail(nil)
	res, err := env.sender.Send(ctx, env.project, event.Id, variant.Id)
	require.NoError(t, err)
	assert.False(t, res.AlreadySent)
}

func TestSendUnknownVariantIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	event, _ := env.generated(t, "sub_1", "other")
	other, gen := env.generated(t, "sub_2", "other")
	require.NotEqual(t, event.Id, other.Id)

	_, err := env.sender.Send(context.Background(), env.project, event.Id, gen.Variants[0].Id)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestUpdateVariantOnlyBeforeSend(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	event, gen := env.generated(t, "sub_1", "other")
	variant := gen.Variants[0]

	updated, err := env.sender.UpdateVariant(ctx, env.project.Id, event.Id, variant.Id, &dto.UpdateVariantRequest{
		Subject: "Edited subject",
		Body:    "<p>Edited</p>",
	})
	require.NoError(t, err)
	assert.Equal(t, "Edited subject", updated.Subject)

	_, err = env.sender.Send(ctx, env.project, event.Id, variant.Id)
	require.NoError(t, err)
	assert.Equal(t, "Edited subject", env.mailer.messages()[0].Subject)

	_, err = env.sender.UpdateVariant(ctx, env.project.Id, event.Id, variant.Id, &dto.UpdateVariantRequest{
		Subject: "Too late",
		Body:    "<p>x</p>",
	})
	assert.ErrorIs(t, err, apperror.ErrConflict)
}

func TestTrackingIsMonotonic(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	event, gen := env.generated(t, "sub_1", "other")
	variant := gen.Variants[0]

	_, err := env.sender.TrackOpen(ctx, variant.Id)
	assert.ErrorIs(t, err, apperror.ErrConflict, "unsent variants cannot be opened")

	_, err = env.sender.Send(ctx, env.project, event.Id, variant.Id)
	require.NoError(t, err)

	res, err := env.sender.TrackClick(ctx, variant.Id)
	require.NoError(t, err)
	assert.True(t, res.Recorded)

	res, err = env.sender.TrackOpen(ctx, variant.Id)
	require.NoError(t, err)
	assert.False(t, res.Recorded, "click already implied the open")

	stored, err := env.churn.Get(ctx, env.project.Id, event.Id)
	require.NoError(t, err)
	v := stored.Variants[0]
	require.NotNil(t, v.SentAt)
	require.NotNil(t, v.OpenedAt)
	require.NotNil(t, v.ClickedAt)
	assert.False(t, v.OpenedAt.Before(*v.SentAt))
}
