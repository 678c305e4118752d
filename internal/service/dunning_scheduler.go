package service

import (
	"context"
	"sync"
	"time"

	"windback-be/internal/pkg/logger"
	"windback-be/internal/repository/unitofwork"
	"windback-be/internal/tracer"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

type SchedulerConfig struct {
	TickInterval time.Duration
	ClaimLease   time.Duration
	BatchSize    int
	PoolSize     int
}

type IDunningScheduler interface {
	// Start runs a tick immediately and then on every interval until Stop.
	Start(ctx context.Context)
	Stop()
	// Tick claims due failures and processes them. It returns how many were claimed.
	Tick(ctx context.Context) (int, error)
}

type dunningScheduler struct {
	uowFactory     unitofwork.RepositoryFactory
	dunningService IDunningService
	cfg            SchedulerConfig
	logger         logger.ILogger
	now            func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewDunningScheduler(
	uowFactory unitofwork.RepositoryFactory,
	dunningService IDunningService,
	cfg SchedulerConfig,
	log logger.ILogger,
	now func() time.Time,
) IDunningScheduler {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 5 * time.Minute
	}
	if cfg.ClaimLease <= 0 {
		cfg.ClaimLease = 10 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 1
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &dunningScheduler{
		uowFactory:     uowFactory,
		dunningService: dunningService,
		cfg:            cfg,
		logger:         log,
		now:            now,
	}
}

func (s *dunningScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.cfg.TickInterval)
		defer ticker.Stop()

		s.logger.Info("DUNNING", "Scheduler started", map[string]interface{}{
			"interval":   s.cfg.TickInterval.String(),
			"batch_size": s.cfg.BatchSize,
			"pool_size":  s.cfg.PoolSize,
		})
		for {
			if _, err := s.Tick(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("DUNNING", "Tick failed", map[string]interface{}{"error": err.Error()})
			}
			select {
			case <-ctx.Done():
				s.logger.Info("DUNNING", "Scheduler stopped", nil)
				return
			case <-ticker.C:
			}
		}
	}()
}

func (s *dunningScheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *dunningScheduler) Tick(ctx context.Context) (int, error) {
	ctx, span := otel.Tracer(tracer.Instrumentation).Start(ctx, "dunning.tick")
	defer span.End()

	now := s.now()
	token := uuid.NewString()

	uow := s.uowFactory.NewUnitOfWork(ctx)
	claimed, err := uow.PaymentFailureRepository().ClaimDue(ctx, now, now.Add(s.cfg.ClaimLease), token, s.cfg.BatchSize)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	span.SetAttributes(attribute.Int("claimed", len(claimed)))
	if len(claimed) == 0 {
		return 0, nil
	}

	var (
		failedMu sync.Mutex
		failed   int
	)
	eg := new(errgroup.Group)
	eg.SetLimit(s.cfg.PoolSize)
	for _, failure := range claimed {
		eg.Go(func() error {
			if err := s.dunningService.ProcessFailure(ctx, failure, token); err != nil {
				failedMu.Lock()
				failed++
				failedMu.Unlock()
				s.logger.Warn("DUNNING", "Failed to process payment failure", map[string]interface{}{
					"payment_failure_id": failure.Id.String(),
					"error":              err.Error(),
				})
			}
			// One failure never stops the batch.
			return nil
		})
	}
	_ = eg.Wait()

	span.SetAttributes(attribute.Int("failed", failed))
	s.logger.Info("DUNNING", "Tick finished", map[string]interface{}{
		"claimed": len(claimed),
		"failed":  failed,
	})
	return len(claimed), nil
}
