package service

import (
	"context"
	"fmt"
	"time"

	"windback-be/internal/dto"
	"windback-be/internal/entity"
	"windback-be/internal/pkg/apperror"
	"windback-be/internal/pkg/logger"
	"windback-be/internal/pkg/mailer"
	"windback-be/internal/repository/specification"
	"windback-be/internal/repository/unitofwork"
	"windback-be/pkg/dunning"
	"windback-be/pkg/normalizer"

	"github.com/google/uuid"
)

type IDunningService interface {
	// RecordFailure opens dunning for an unpaid invoice. The first email is due
	// immediately. Replays return the stored failure.
	RecordFailure(ctx context.Context, project *entity.Project, ev *normalizer.Event) (*entity.PaymentFailure, bool, error)
	// MarkRecoveredByInvoice stops dunning when the provider reports payment.
	// It reports false when the invoice is unknown or already recovered.
	MarkRecoveredByInvoice(ctx context.Context, projectId uuid.UUID, provider, invoiceId string) (*entity.PaymentFailure, bool, error)
	MarkRecovered(ctx context.Context, projectId uuid.UUID, id uuid.UUID) (*dto.PaymentFailureResponse, error)
	List(ctx context.Context, projectId uuid.UUID, req *dto.ListPaymentFailuresRequest) ([]*dto.PaymentFailureResponse, error)
	Get(ctx context.Context, projectId uuid.UUID, id uuid.UUID) (*dto.PaymentFailureResponse, error)
	GetConfig(ctx context.Context, projectId uuid.UUID) (*dto.DunningConfigResponse, error)
	UpdateConfig(ctx context.Context, projectId uuid.UUID, req *dto.DunningConfigRequest) (*dto.DunningConfigResponse, error)
	// ProcessFailure sends the next email of a claimed failure and advances it.
	ProcessFailure(ctx context.Context, failure *entity.PaymentFailure, token string) error
}

type dunningService struct {
	uowFactory          unitofwork.RepositoryFactory
	mailer              mailer.IMailer
	notificationService INotificationService
	logger              logger.ILogger
	now                 func() time.Time
}

func NewDunningService(
	uowFactory unitofwork.RepositoryFactory,
	mailer mailer.IMailer,
	notificationService INotificationService,
	log logger.ILogger,
	now func() time.Time,
) IDunningService {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &dunningService{
		uowFactory:          uowFactory,
		mailer:              mailer,
		notificationService: notificationService,
		logger:              log,
		now:                 now,
	}
}

// effectiveConfig returns the saved policy or the default one.
func effectiveConfig(ctx context.Context, uow unitofwork.UnitOfWork, projectId uuid.UUID) (dunning.Config, bool, error) {
	saved, err := uow.DunningConfigRepository().FindByProject(ctx, projectId)
	if err != nil {
		return dunning.Config{}, false, err
	}
	if saved == nil {
		return dunning.DefaultConfig(), true, nil
	}

	cfg := dunning.Config{
		MaxRetries:         saved.MaxRetries,
		RetryIntervalHours: saved.RetryIntervalHours,
	}
	for _, t := range saved.ToneSequence {
		cfg.ToneSequence = append(cfg.ToneSequence, dunning.Tone(t))
	}
	if saved.CustomFromName != nil {
		cfg.CustomFromName = *saved.CustomFromName
	}
	return cfg, false, nil
}

func (s *dunningService) RecordFailure(ctx context.Context, project *entity.Project, ev *normalizer.Event) (*entity.PaymentFailure, bool, error) {
	if ev.InvoiceID == "" {
		return nil, false, apperror.Validation("payment failure has no invoice id")
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	cfg, _, err := effectiveConfig(ctx, uow, project.Id)
	if err != nil {
		return nil, false, err
	}

	now := s.now()
	failure := &entity.PaymentFailure{
		Id:                 uuid.New(),
		ProjectId:          project.Id,
		Provider:           string(ev.Provider),
		ProviderInvoiceId:  ev.InvoiceID,
		ProviderCustomerId: ev.CustomerID,
		CustomerEmail:      ev.CustomerEmail,
		CustomerName:       ev.CustomerName,
		AmountCents:        ev.AmountCents,
		Currency:           ev.Currency,
		FailureReason:      ev.FailureReason,
		Status:             entity.PaymentFailureStatusFailing,
		MaxRetries:         cfg.MaxRetries,
	}
	// Without an address nothing can be sent; the failure waits for recovery.
	if failure.CustomerEmail != "" {
		failure.NextRetryAt = &now
	}

	created, err := uow.PaymentFailureRepository().CreateIfAbsent(ctx, failure)
	if err != nil {
		return nil, false, err
	}
	if !created {
		existing, err := s.findByInvoice(ctx, uow, project.Id, failure.Provider, failure.ProviderInvoiceId)
		if err != nil {
			return nil, false, err
		}
		if existing == nil {
			return nil, false, apperror.Conflict("payment failure vanished after duplicate insert")
		}
		return existing, false, nil
	}

	s.logger.Info("DUNNING", "Payment failure recorded", map[string]interface{}{
		"project_id":         project.Id.String(),
		"payment_failure_id": failure.Id.String(),
		"invoice_id":         failure.ProviderInvoiceId,
		"max_retries":        failure.MaxRetries,
	})
	s.notificationService.Notify(ctx, project.Id, entity.NotificationPaymentFailed, failurePayload(failure))
	return failure, true, nil
}

func (s *dunningService) findByInvoice(ctx context.Context, uow unitofwork.UnitOfWork, projectId uuid.UUID, provider, invoiceId string) (*entity.PaymentFailure, error) {
	return uow.PaymentFailureRepository().FindOne(ctx,
		specification.ByProjectID{ProjectID: projectId},
		specification.Filter("provider", provider),
		specification.Filter("provider_invoice_id", invoiceId),
	)
}

func (s *dunningService) MarkRecoveredByInvoice(ctx context.Context, projectId uuid.UUID, provider, invoiceId string) (*entity.PaymentFailure, bool, error) {
	if invoiceId == "" {
		return nil, false, nil
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	failure, err := s.findByInvoice(ctx, uow, projectId, provider, invoiceId)
	if err != nil || failure == nil {
		return nil, false, err
	}

	ok, err := s.recover(ctx, uow, failure)
	return failure, ok, err
}

func (s *dunningService) recover(ctx context.Context, uow unitofwork.UnitOfWork, failure *entity.PaymentFailure) (bool, error) {
	ok, err := uow.PaymentFailureRepository().MarkRecovered(ctx, failure.Id, s.now())
	if err != nil || !ok {
		return false, err
	}

	s.logger.Info("DUNNING", "Payment recovered", map[string]interface{}{
		"payment_failure_id": failure.Id.String(),
		"retry_count":        failure.RetryCount,
	})
	s.notificationService.Notify(ctx, failure.ProjectId, entity.NotificationPaymentRecovered, failurePayload(failure))
	return true, nil
}

func (s *dunningService) MarkRecovered(ctx context.Context, projectId uuid.UUID, id uuid.UUID) (*dto.PaymentFailureResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	failure, err := s.load(ctx, uow, projectId, id)
	if err != nil {
		return nil, err
	}
	if failure.Status != entity.PaymentFailureStatusRecovered {
		if _, err := s.recover(ctx, uow, failure); err != nil {
			return nil, err
		}
	}
	return s.Get(ctx, projectId, id)
}

func (s *dunningService) load(ctx context.Context, uow unitofwork.UnitOfWork, projectId, id uuid.UUID, extra ...specification.Specification) (*entity.PaymentFailure, error) {
	specs := append([]specification.Specification{
		specification.ByID{ID: id},
		specification.ByProjectID{ProjectID: projectId},
	}, extra...)
	failure, err := uow.PaymentFailureRepository().FindOne(ctx, specs...)
	if err != nil {
		return nil, err
	}
	if failure == nil {
		return nil, apperror.NotFound("payment failure not found")
	}
	return failure, nil
}

func (s *dunningService) List(ctx context.Context, projectId uuid.UUID, req *dto.ListPaymentFailuresRequest) ([]*dto.PaymentFailureResponse, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	specs := []specification.Specification{
		specification.ByProjectID{ProjectID: projectId},
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: limit, Offset: req.Offset},
	}
	if req.Status != "" {
		specs = append(specs, specification.Filter("status", req.Status))
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	failures, err := uow.PaymentFailureRepository().FindAll(ctx, specs...)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.PaymentFailureResponse, 0, len(failures))
	for _, f := range failures {
		res = append(res, toPaymentFailureResponse(f))
	}
	return res, nil
}

func (s *dunningService) Get(ctx context.Context, projectId uuid.UUID, id uuid.UUID) (*dto.PaymentFailureResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	failure, err := s.load(ctx, uow, projectId, id, specification.WithDunningEmails{})
	if err != nil {
		return nil, err
	}
	return toPaymentFailureResponse(failure), nil
}

func (s *dunningService) GetConfig(ctx context.Context, projectId uuid.UUID) (*dto.DunningConfigResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	cfg, isDefault, err := effectiveConfig(ctx, uow, projectId)
	if err != nil {
		return nil, err
	}
	return toDunningConfigResponse(cfg, isDefault), nil
}

func (s *dunningService) UpdateConfig(ctx context.Context, projectId uuid.UUID, req *dto.DunningConfigRequest) (*dto.DunningConfigResponse, error) {
	cfg := dunning.Config{
		MaxRetries:         req.MaxRetries,
		RetryIntervalHours: req.RetryIntervalHours,
	}
	for _, t := range req.ToneSequence {
		cfg.ToneSequence = append(cfg.ToneSequence, dunning.Tone(t))
	}
	if req.CustomFromName != nil {
		cfg.CustomFromName = *req.CustomFromName
	}
	if err := cfg.Validate(); err != nil {
		return nil, apperror.Validation("%s", err.Error())
	}

	saved := &entity.DunningConfig{
		Id:                 uuid.New(),
		ProjectId:          projectId,
		MaxRetries:         cfg.MaxRetries,
		RetryIntervalHours: cfg.RetryIntervalHours,
		ToneSequence:       req.ToneSequence,
	}
	if cfg.CustomFromName != "" {
		name := cfg.CustomFromName
		saved.CustomFromName = &name
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.DunningConfigRepository().Upsert(ctx, saved); err != nil {
		return nil, err
	}
	return toDunningConfigResponse(cfg, false), nil
}

func (s *dunningService) ProcessFailure(ctx context.Context, failure *entity.PaymentFailure, token string) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	release := func(cause error) error {
		if err := uow.PaymentFailureRepository().ReleaseClaim(ctx, failure.Id, token, s.now()); err != nil {
			s.logger.Error("DUNNING", "Failed to release claim", map[string]interface{}{
				"payment_failure_id": failure.Id.String(),
				"error":              err.Error(),
			})
		}
		return cause
	}

	project, err := uow.ProjectRepository().FindOne(ctx, specification.ByID{ID: failure.ProjectId})
	if err != nil {
		return release(err)
	}
	if project == nil {
		return release(apperror.NotFound("project %s not found", failure.ProjectId))
	}
	cfg, _, err := effectiveConfig(ctx, uow, failure.ProjectId)
	if err != nil {
		return release(err)
	}

	retryNumber := failure.RetryCount + 1
	tone := dunning.ToneFor(cfg.ToneSequence, failure.RetryCount)
	fromName := cfg.CustomFromName
	if fromName == "" {
		fromName = orDefault(project.FromName, project.Name)
	}
	subject, body := dunning.RenderEmail(tone, dunning.EmailData{
		CustomerName:  failure.CustomerName,
		AmountCents:   failure.AmountCents,
		Currency:      failure.Currency,
		FailureReason: failure.FailureReason,
		FromName:      fromName,
		RetryNumber:   retryNumber,
		MaxRetries:    failure.MaxRetries,
	})

	err = s.mailer.Send(ctx, mailer.Message{
		To:             failure.CustomerEmail,
		ToName:         failure.CustomerName,
		FromName:       fromName,
		FromEmail:      project.FromEmail,
		Subject:        subject,
		HTMLBody:       body,
		IdempotencyKey: fmt.Sprintf("dunning:%s:%d", failure.Id, retryNumber),
	})
	if err != nil {
		return release(apperror.Delivery(err))
	}

	now := s.now()
	step := dunning.Advance(failure.RetryCount, failure.MaxRetries, cfg.Interval(), now)
	if err := s.recordEmail(ctx, failure, token, step, &entity.DunningEmail{
		Id:               uuid.New(),
		PaymentFailureId: failure.Id,
		RetryNumber:      retryNumber,
		Tone:             string(tone),
		Subject:          subject,
		Body:             body,
		SentAt:           now,
	}, now); err != nil {
		return err
	}

	s.logger.Info("DUNNING", "Dunning email sent", map[string]interface{}{
		"payment_failure_id": failure.Id.String(),
		"retry_number":       retryNumber,
		"tone":               string(tone),
		"abandoned":          step.Abandoned,
	})
	return nil
}

func (s *dunningService) recordEmail(ctx context.Context, failure *entity.PaymentFailure, token string, step dunning.Step, email *entity.DunningEmail, now time.Time) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	ok, err := uow.PaymentFailureRepository().Advance(ctx, failure.Id, token, failure.RetryCount, step, now)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.Conflict("payment failure changed while its email was being sent")
	}
	if err := uow.DunningEmailRepository().Create(ctx, email); err != nil {
		return err
	}
	return uow.Commit()
}

func failurePayload(f *entity.PaymentFailure) map[string]interface{} {
	return map[string]interface{}{
		"payment_failure_id": f.Id.String(),
		"customer_email":     f.CustomerEmail,
		"customer_name":      f.CustomerName,
		"invoice_id":         f.ProviderInvoiceId,
		"amount":             dunning.FormatAmount(f.AmountCents, f.Currency),
		"amount_cents":       f.AmountCents,
		"currency":           f.Currency,
	}
}

func toPaymentFailureResponse(f *entity.PaymentFailure) *dto.PaymentFailureResponse {
	res := &dto.PaymentFailureResponse{
		Id:                 f.Id,
		Provider:           f.Provider,
		ProviderInvoiceId:  f.ProviderInvoiceId,
		ProviderCustomerId: f.ProviderCustomerId,
		CustomerEmail:      f.CustomerEmail,
		CustomerName:       f.CustomerName,
		AmountCents:        f.AmountCents,
		Currency:           f.Currency,
		FailureReason:      f.FailureReason,
		Status:             string(f.Status),
		RetryCount:         f.RetryCount,
		MaxRetries:         f.MaxRetries,
		NextRetryAt:        f.NextRetryAt,
		RecoveredAt:        f.RecoveredAt,
		AbandonedAt:        f.AbandonedAt,
		CreatedAt:          f.CreatedAt,
	}
	for _, e := range f.Emails {
		res.Emails = append(res.Emails, &dto.DunningEmailResponse{
			Id:          e.Id,
			RetryNumber: e.RetryNumber,
			Tone:        e.Tone,
			Subject:     e.Subject,
			SentAt:      e.SentAt,
		})
	}
	return res
}

func toDunningConfigResponse(cfg dunning.Config, isDefault bool) *dto.DunningConfigResponse {
	res := &dto.DunningConfigResponse{
		MaxRetries:         cfg.MaxRetries,
		RetryIntervalHours: cfg.RetryIntervalHours,
		ToneSequence:       make([]string, 0, len(cfg.ToneSequence)),
		IsDefault:          isDefault,
	}
	for _, t := range cfg.ToneSequence {
		res.ToneSequence = append(res.ToneSequence, string(t))
	}
	if cfg.CustomFromName != "" {
		name := cfg.CustomFromName
		res.CustomFromName = &name
	}
	return res
}
