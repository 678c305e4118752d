package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"windback-be/internal/dto"
	"windback-be/internal/entity"
	"windback-be/internal/pkg/apperror"
	"windback-be/internal/pkg/logger"
	"windback-be/internal/repository/specification"
	"windback-be/pkg/recovery"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateProducesOneVariantPerStrategy(t *testing.T) {
	env := newTestEnv(t)
	event, res := env.generated(t, "sub_1", "too_expensive: budget cuts")

	assert.Equal(t, SourceAI, res.Source)
	assert.Equal(t, string(entity.ChurnEventStatusVariantsGenerated), res.Status)
	require.Len(t, res.Variants, recovery.VariantCount)

	seen := map[string]bool{}
	for i, v := range res.Variants {
		assert.Equal(t, i, v.Position)
		assert.False(t, seen[v.Strategy], "duplicate strategy %s", v.Strategy)
		seen[v.Strategy] = true
		assert.NotEmpty(t, v.Subject)
		if v.Strategy == string(recovery.StrategyDiscount) {
			require.NotNil(t, v.CouponCode)
			assert.True(t, strings.HasPrefix(*v.CouponCode, couponPrefix))
			require.NotNil(t, v.CouponPercent)
			assert.Equal(t, defaultCouponPercent, *v.CouponPercent)
		} else {
			assert.Nil(t, v.CouponCode)
		}
	}

	stored, err := env.churn.Get(context.Background(), env.project.Id, event.Id)
	require.NoError(t, err)
	assert.Equal(t, string(entity.ChurnEventStatusVariantsGenerated), stored.Status)
	assert.Len(t, stored.Variants, recovery.VariantCount)
}

func TestGenerateIsAtMostOnce(t *testing.T) {
	env := newTestEnv(t)
	event, _ := env.generated(t, "sub_1", "missing_features")
	calls := env.llm.calls.Load()

	_, err := env.generator.Generate(context.Background(), env.project, event.Id)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrAlreadyGenerated)
	assert.Equal(t, calls, env.llm.calls.Load())

	uow := env.factory.NewUnitOfWork(context.Background())
	count, err := uow.RecoveryVariantRepository().Count(context.Background(), specification.ByChurnEventID{ChurnEventID: event.Id})
	require.NoError(t, err)
	assert.Equal(t, int64(recovery.VariantCount), count)
}

func TestGenerateConcurrentCallsProduceOneSet(t *testing.T) {
	env := newTestEnv(t)
	event := env.recordChurn(t, "sub_1", "too_expensive")

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.generator.Generate(context.Background(), env.project, event.Id)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, apperror.ErrAlreadyGenerated)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, int32(recovery.VariantCount), env.llm.calls.Load())

	uow := env.factory.NewUnitOfWork(context.Background())
	count, err := uow.RecoveryVariantRepository().Count(context.Background(), specification.ByChurnEventID{ChurnEventID: event.Id})
	require.NoError(t, err)
	assert.Equal(t, int64(recovery.VariantCount), count)
}

func TestGeneratePassesModelOptions(t *testing.T) {
	tests := []struct {
		name      string
		maxTokens int
	}{
		{"provider default", 0},
		{"configured limit", 600},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.generator = NewVariantGenerator(env.factory, env.llm, env.retention, env.sender, GeneratorConfig{
				Concurrency: 1,
				Temperature: 0.4,
				MaxTokens:   tt.maxTokens,
				Timeout:     5 * time.Second,
			}, logger.NewNopLogger())

			env.generated(t, "sub_1", "other")

			opts := env.llm.lastOptions()
			assert.True(t, opts.JSON)
			assert.InDelta(t, 0.4, opts.Temperature, 1e-9)
			assert.Equal(t, tt.maxTokens, opts.MaxTokens)
		})
	}
}

func TestGenerateUsesActiveTemplate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.templates.Create(ctx, env.project.Id, &dto.TemplateRequest{
		CancelReason: "too_expensive",
		Name:         "Price objection",
		Subject:      "{{customer_name}}, a better price",
		Body:         "Hi {{customer_name}}, your {{plan_name}} plan ({{cancel_reason}})",
		IsActive:     true,
	})
	require.NoError(t, err)

	_, res := env.generated(t, "sub_1", "too_expensive: found something cheaper")

	assert.Equal(t, SourceTemplate, res.Source)
	require.Len(t, res.Variants, 1)
	assert.Equal(t, string(recovery.StrategyDiscount), res.Variants[0].Strategy)
	assert.Equal(t, "Jane, a better price", res.Variants[0].Subject)
	assert.Equal(t, "Hi Jane, your Pro plan (Too expensive)", res.Variants[0].Body)
	assert.Zero(t, env.llm.calls.Load())
}

func TestGenerateIgnoresInactiveTemplateAndOtherReasons(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.templates.Create(ctx, env.project.Id, &dto.TemplateRequest{
		CancelReason: "too_expensive", Name: "draft", Subject: "s", Body: "b", IsActive: false,
	})
	require.NoError(t, err)
	_, err = env.templates.Create(ctx, env.project.Id, &dto.TemplateRequest{
		CancelReason: "poor_support", Name: "support", Subject: "s", Body: "b", IsActive: true,
	})
	require.NoError(t, err)

	_, res := env.generated(t, "sub_1", "too_expensive")
	assert.Equal(t, SourceAI, res.Source)
	assert.Len(t, res.Variants, recovery.VariantCount)
}

func TestGenerateFailureReturnsEventToNew(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	event := env.recordChurn(t, "sub_1", "other")

	env.llm.fail.Store(true)
	_, err := env.generator.Generate(ctx, env.project, event.Id)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrGeneration)

	stored, err := env.churn.Get(ctx, env.project.Id, event.Id)
	require.NoError(t, err)
	assert.Equal(t, string(entity.ChurnEventStatusNew), stored.Status)
	assert.Empty(t, stored.Variants)

	env.llm.fail.Store(false)
	res, err := env.generator.Generate(ctx, env.project, event.Id)
	require.NoError(t, err)
	assert.Len(t, res.Variants, recovery.VariantCount)
}

func TestGenerateRejectsMalformedModelOutput(t *testing.T) {
	env := newTestEnv(t)
	env.llm.reply = func(string) string { return "Sure! Here is your email." }
	event := env.recordChurn(t, "sub_1", "other")

	_, err := env.generator.Generate(context.Background(), env.project, event.Id)
	assert.ErrorIs(t, err, apperror.ErrGeneration)
}

func TestGenerateOnClosedEventIsConflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	event := env.recordChurn(t, "sub_1", "other")

	_, err := env.churn.MarkLost(ctx, env.project.Id, event.Id)
	require.NoError(t, err)

	_, err = env.generator.Generate(ctx, env.project, event.Id)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrConflict)
	assert.NotErrorIs(t, err, apperror.ErrAlreadyGenerated)
}

func TestGenerateUsesRetentionDiscount(t *testing.T) {
	env := newTestEnv(t)
	percent := 35
	_, err := env.retention.Upsert(context.Background(), env.project.Id, "too_expensive", &dto.RetentionOfferRequest{
		OfferType:       "discount",
		Title:           "35% off",
		DiscountPercent: &percent,
	})
	require.NoError(t, err)

	_, res := env.generated(t, "sub_1", "not_using_enough")
	for _, v := range res.Variants {
		if v.Strategy == string(recovery.StrategyDiscount) {
			require.NotNil(t, v.CouponPercent)
			assert.Equal(t, 35, *v.CouponPercent)
			return
		}
	}
	t.Fatal("no discount variant generated")
}

func TestGenerateAutoSendsPrimaryStrategy(t *testing.T) {
	env := newTestEnv(t)
	env.setAutoSend(t, true)

	event, res := env.generated(t, "sub_1", "dont_need_anymore")
	assert.Equal(t, string(entity.ChurnEventStatusEmailSent), res.Status)

	msgs := env.mailer.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "jane@example.com", msgs[0].To)
	assert.Equal(t, recovery.StrategyPauseOption.Label(), msgs[0].Subject)

	stored, err := env.churn.Get(context.Background(), env.project.Id, event.Id)
	require.NoError(t, err)
	assert.Equal(t, string(entity.ChurnEventStatusEmailSent), stored.Status)
}

func TestParseGeneratedEmail(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		subject string
		wantErr bool
	}{
		{"plain", `{"subject":"Hi","body":"<p>x</p>"}`, "Hi", false},
		{"fenced", "```json\n{\"subject\":\" Hi \",\"body\":\"b\"}\n```", "Hi", false},
		{"chatter", `Here you go: {"subject":"Hi","body":"b"} Enjoy!`, "Hi", false},
		{"no json", "nothing here", "", true},
		{"missing body", `{"subject":"Hi"}`, "", true},
		{"broken", `{"subject":`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			email, err := parseGeneratedEmail(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.subject, email.Subject)
		})
	}
}
