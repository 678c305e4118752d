package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"windback-be/internal/constant"
	"windback-be/internal/dto"
	"windback-be/internal/entity"
	"windback-be/internal/pkg/apperror"
	"windback-be/internal/pkg/logger"
	"windback-be/internal/repository/specification"
	"windback-be/internal/repository/unitofwork"
	"windback-be/internal/tracer"
	"windback-be/pkg/dunning"
	"windback-be/pkg/llm"
	"windback-be/pkg/recovery"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

const (
	defaultCouponPercent = 20
	couponPrefix         = "WINBACK-"

	SourceTemplate = "template"
	SourceAI       = "ai"
)

type GeneratorConfig struct {
	Concurrency int
	Temperature float64
	MaxTokens   int // 0 keeps the provider default
	Timeout     time.Duration
}

type IVariantGenerator interface {
	// Generate produces the variants of a new churn event exactly once.
	Generate(ctx context.Context, project *entity.Project, eventId uuid.UUID) (*dto.GenerateVariantsResponse, error)
}

type variantGenerator struct {
	uowFactory       unitofwork.RepositoryFactory
	llmProvider      llm.LLMProvider
	retentionService IRetentionService
	sendPolicy       ISendPolicy
	cfg              GeneratorConfig
	logger           logger.ILogger
}

func NewVariantGenerator(
	uowFactory unitofwork.RepositoryFactory,
	llmProvider llm.LLMProvider,
	retentionService IRetentionService,
	sendPolicy ISendPolicy,
	cfg GeneratorConfig,
	log logger.ILogger,
) IVariantGenerator {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &variantGenerator{
		uowFactory:       uowFactory,
		llmProvider:      llmProvider,
		retentionService: retentionService,
		sendPolicy:       sendPolicy,
		cfg:              cfg,
		logger:           log,
	}
}

func (g *variantGenerator) Generate(ctx context.Context, project *entity.Project, eventId uuid.UUID) (*dto.GenerateVariantsResponse, error) {
	ctx, span := otel.Tracer(tracer.Instrumentation).Start(ctx, "variants.generate")
	defer span.End()
	span.SetAttributes(attribute.String("churn_event_id", eventId.String()))

	uow := g.uowFactory.NewUnitOfWork(ctx)
	event, err := uow.ChurnEventRepository().FindOne(ctx,
		specification.ByID{ID: eventId},
		specification.ByProjectID{ProjectID: project.Id},
	)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, apperror.NotFound("churn event not found")
	}

	started, err := uow.ChurnEventRepository().TransitionStatus(ctx, eventId,
		[]entity.ChurnEventStatus{entity.ChurnEventStatusNew},
		entity.ChurnEventStatusProcessing, time.Now().UTC(),
	)
	if err != nil {
		return nil, err
	}
	if !started {
		current, err := uow.ChurnEventRepository().FindOne(ctx, specification.ByID{ID: eventId})
		if err != nil {
			return nil, err
		}
		if current != nil && current.Status.IsTerminal() {
			return nil, apperror.Conflict("churn event is already %s", current.Status)
		}
		return nil, apperror.AlreadyGenerated()
	}

	variants, source, err := g.build(ctx, project, event)
	if err == nil {
		err = g.persist(ctx, eventId, variants)
	}
	if err != nil {
		g.reset(ctx, eventId)
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		g.logger.Error("GENERATOR", "Variant generation failed", map[string]interface{}{
			"churn_event_id": eventId.String(),
			"error":          err.Error(),
		})
		return nil, apperror.Generation(err)
	}

	span.SetAttributes(attribute.String("source", source), attribute.Int("variants", len(variants)))
	g.logger.Info("GENERATOR", "Variants generated", map[string]interface{}{
		"churn_event_id": eventId.String(),
		"source":         source,
		"count":          len(variants),
	})

	status := entity.ChurnEventStatusVariantsGenerated
	if project.AutoSend {
		if _, err := g.sendPolicy.AutoSend(ctx, project, eventId); err != nil {
			g.logger.Warn("GENERATOR", "Auto-send failed", map[string]interface{}{
				"churn_event_id": eventId.String(),
				"error":          err.Error(),
			})
		} else {
			status = entity.ChurnEventStatusEmailSent
		}
	}

	res := &dto.GenerateVariantsResponse{
		ChurnEventId: eventId,
		Status:       string(status),
		Source:       source,
		Variants:     make([]*dto.VariantResponse, 0, len(variants)),
	}
	for _, v := range variants {
		res.Variants = append(res.Variants, toVariantResponse(v))
	}
	return res, nil
}

func (g *variantGenerator) persist(ctx context.Context, eventId uuid.UUID, variants []*entity.RecoveryVariant) error {
	uow := g.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.RecoveryVariantRepository().CreateBatch(ctx, variants); err != nil {
		return err
	}
	ok, err := uow.ChurnEventRepository().TransitionStatus(ctx, eventId,
		[]entity.ChurnEventStatus{entity.ChurnEventStatusProcessing},
		entity.ChurnEventStatusVariantsGenerated, time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("churn event left processing during generation")
	}
	return uow.Commit()
}

// reset puts a failed event back to new so generation can be retried.
func (g *variantGenerator) reset(ctx context.Context, eventId uuid.UUID) {
	ctx = context.WithoutCancel(ctx)
	uow := g.uowFactory.NewUnitOfWork(ctx)
	if _, err := uow.ChurnEventRepository().TransitionStatus(ctx, eventId,
		[]entity.ChurnEventStatus{entity.ChurnEventStatusProcessing},
		entity.ChurnEventStatusNew, time.Now().UTC(),
	); err != nil {
		g.logger.Error("GENERATOR", "Failed to reset churn event", map[string]interface{}{
			"churn_event_id": eventId.String(),
			"error":          err.Error(),
		})
	}
}

func (g *variantGenerator) build(ctx context.Context, project *entity.Project, event *entity.ChurnEvent) ([]*entity.RecoveryVariant, string, error) {
	reason, _ := recovery.ParseCancelReason(event.CancelReason)

	uow := g.uowFactory.NewUnitOfWork(ctx)
	tpl, err := uow.RecoveryTemplateRepository().FindOne(ctx,
		specification.ByProjectID{ProjectID: project.Id},
		specification.Filter("cancel_reason", string(reason)),
		specification.Filter("is_active", true),
	)
	if err != nil {
		return nil, "", err
	}
	if tpl != nil {
		return []*entity.RecoveryVariant{fromTemplate(tpl, event, reason)}, SourceTemplate, nil
	}

	variants, err := g.generateAll(ctx, project, event)
	if err != nil {
		return nil, "", err
	}
	return variants, SourceAI, nil
}

func fromTemplate(tpl *entity.RecoveryTemplate, event *entity.ChurnEvent, reason recovery.CancelReason) *entity.RecoveryVariant {
	data := recovery.TemplateData{
		CustomerName:  event.CustomerName,
		CustomerEmail: event.CustomerEmail,
		PlanName:      event.PlanName,
		CancelReason:  event.CancelReason,
	}
	return &entity.RecoveryVariant{
		Id:           uuid.New(),
		ChurnEventId: event.Id,
		Strategy:     string(recovery.StrategyFor(reason)),
		Subject:      recovery.RenderTemplate(tpl.Subject, data),
		Body:         recovery.RenderHTML(tpl.Body, data),
		Position:     0,
	}
}

// offers holds the retention terms woven into the discount and pause copy.
type offers struct {
	couponCode    string
	couponPercent int
	pauseDays     int
}

func (g *variantGenerator) resolveOffers(ctx context.Context, projectId uuid.UUID, cancelReason string) (offers, error) {
	out := offers{
		couponCode:    couponPrefix + strings.ToUpper(randomToken()[:6]),
		couponPercent: defaultCouponPercent,
	}

	matched, err := g.retentionService.Resolve(ctx, projectId, cancelReason)
	if err != nil {
		return out, err
	}

	uow := g.uowFactory.NewUnitOfWork(ctx)
	pick := func(t entity.OfferType) (*entity.RetentionOffer, error) {
		if matched != nil && matched.OfferType == t {
			return matched, nil
		}
		return uow.RetentionOfferRepository().FindOne(ctx,
			specification.ByProjectID{ProjectID: projectId},
			specification.Filter("offer_type", string(t)),
			specification.Filter("is_active", true),
		)
	}

	discount, err := pick(entity.OfferTypeDiscount)
	if err != nil {
		return out, err
	}
	if discount != nil && discount.DiscountPercent != nil {
		out.couponPercent = *discount.DiscountPercent
	}

	pause, err := pick(entity.OfferTypePause)
	if err != nil {
		return out, err
	}
	if pause != nil && pause.PauseDays != nil {
		out.pauseDays = *pause.PauseDays
	}
	return out, nil
}

func (g *variantGenerator) generateAll(ctx context.Context, project *entity.Project, event *entity.ChurnEvent) ([]*entity.RecoveryVariant, error) {
	terms, err := g.resolveOffers(ctx, project.Id, event.CancelReason)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	strategies := recovery.AllStrategies()
	variants := make([]*entity.RecoveryVariant, len(strategies))

	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.Concurrency)
	for i, strategy := range strategies {
		eg.Go(func() error {
			v, err := g.generateOne(egctx, project, event, strategy, terms)
			if err != nil {
				return fmt.Errorf("%s: %w", strategy, err)
			}
			v.Position = i
			variants[i] = v
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return variants, nil
}

func (g *variantGenerator) generateOne(ctx context.Context, project *entity.Project, event *entity.ChurnEvent, strategy recovery.Strategy, terms offers) (*entity.RecoveryVariant, error) {
	v := &entity.RecoveryVariant{
		Id:           uuid.New(),
		ChurnEventId: event.Id,
		Strategy:     string(strategy),
	}

	offerLine := ""
	switch strategy {
	case recovery.StrategyDiscount:
		code, percent := terms.couponCode, terms.couponPercent
		v.CouponCode = &code
		v.CouponPercent = &percent
		offerLine = fmt.Sprintf("Offer: %d%% off with coupon code %s. Mention the code exactly.", percent, code)
	case recovery.StrategyPauseOption:
		if terms.pauseDays > 0 {
			offerLine = fmt.Sprintf("Offer: pause the subscription for up to %d days.", terms.pauseDays)
		}
	}

	reason, text := recovery.ParseCancelReason(event.CancelReason)
	if text == "" {
		text = event.CancelReasonText
	}
	prompt := fmt.Sprintf(constant.RecoveryVariantPrompt,
		strategy.Label(),
		strategy.Brief(),
		orDefault(event.CustomerName, "unknown"),
		orDefault(event.PlanName, "unknown"),
		dunning.FormatAmount(event.MrrCents, orDefault(event.Currency, "usd")),
		event.TenureDays,
		reason.Label(),
		orDefault(text, "not given"),
		orDefault(project.FromName, project.Name),
		offerLine,
	)

	opts := []llm.Option{llm.WithJSON(), llm.WithTemperature(g.cfg.Temperature)}
	if g.cfg.MaxTokens > 0 {
		opts = append(opts, llm.WithMaxTokens(g.cfg.MaxTokens))
	}
	raw, err := g.llmProvider.Chat(ctx, []llm.Message{
		{Role: "system", Content: constant.RecoverySystemPrompt},
		{Role: "user", Content: prompt},
	}, opts...)
	if err != nil {
		return nil, err
	}

	email, err := parseGeneratedEmail(raw)
	if err != nil {
		return nil, err
	}
	v.Subject = email.Subject
	v.Body = email.Body
	return v, nil
}

type generatedEmail struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// parseGeneratedEmail extracts the JSON object from a model reply, tolerating
// code fences and chatter around it.
func parseGeneratedEmail(raw string) (*generatedEmail, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return nil, errors.New("model reply contains no JSON object")
	}

	var email generatedEmail
	if err := json.Unmarshal([]byte(raw[start:end+1]), &email); err != nil {
		return nil, fmt.Errorf("decode model reply: %w", err)
	}
	email.Subject = strings.TrimSpace(email.Subject)
	email.Body = strings.TrimSpace(email.Body)
	if email.Subject == "" || email.Body == "" {
		return nil, errors.New("model reply is missing subject or body")
	}
	return &email, nil
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
