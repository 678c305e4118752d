package memory

import (
	"context"
	"sort"
	"time"

	"windback-be/internal/entity"
	"windback-be/internal/repository/specification"
	"windback-be/pkg/dunning"

	"github.com/google/uuid"
)

type paymentFailureRepository struct {
	u *UnitOfWork
}

func failureColumns(f *entity.PaymentFailure) row {
	return row{
		"id":                   f.Id,
		"project_id":           f.ProjectId,
		"provider":             f.Provider,
		"provider_invoice_id":  f.ProviderInvoiceId,
		"provider_customer_id": f.ProviderCustomerId,
		"customer_email":       f.CustomerEmail,
		"status":               string(f.Status),
		"retry_count":          f.RetryCount,
		"next_retry_at":        timeOrNil(f.NextRetryAt),
		"claim_token":          stringOrNil(f.ClaimToken),
		"created_at":           f.CreatedAt,
		"updated_at":           f.UpdatedAt,
	}
}

func (r *paymentFailureRepository) CreateIfAbsent(ctx context.Context, failure *entity.PaymentFailure) (bool, error) {
	created := false
	err := r.u.run(func(t *tables) error {
		for _, f := range t.failures {
			if f.ProjectId == failure.ProjectId &&
				f.Provider == failure.Provider &&
				f.ProviderInvoiceId == failure.ProviderInvoiceId {
				return nil
			}
		}
		if failure.Id == uuid.Nil {
			failure.Id = uuid.New()
		}
		if failure.Status == "" {
			failure.Status = entity.PaymentFailureStatusFailing
		}
		now := r.u.store.now()
		failure.CreatedAt, failure.UpdatedAt = now, now
		stored := *failure
		stored.Emails = nil
		t.failures[failure.Id] = stored
		created = true
		return nil
	})
	return created, err
}

func (r *paymentFailureRepository) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.PaymentFailure, error) {
	all, err := r.FindAll(ctx, specs...)
	if err != nil || len(all) == 0 {
		return nil, err
	}
	return all[0], nil
}

func (r *paymentFailureRepository) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.PaymentFailure, error) {
	var out []*entity.PaymentFailure
	err := r.u.run(func(t *tables) error {
		rows, err := query(values(t.failures), failureColumns, specs...)
		if err != nil {
			return err
		}
		preload := hasSpec[specification.WithDunningEmails](specs)
		for i := range rows {
			f := rows[i]
			if preload {
				emails, err := query(values(t.emails), emailColumns,
					specification.ByPaymentFailureID{PaymentFailureID: f.Id},
					specification.OrderBy{Field: "retry_number"},
				)
				if err != nil {
					return err
				}
				for j := range emails {
					f.Emails = append(f.Emails, &emails[j])
				}
			}
			out = append(out, &f)
		}
		return nil
	})
	return out, err
}

func (r *paymentFailureRepository) ClaimDue(ctx context.Context, now time.Time, leaseUntil time.Time, token string, limit int) ([]*entity.PaymentFailure, error) {
	var out []*entity.PaymentFailure
	err := r.u.run(func(t *tables) error {
		var due []entity.PaymentFailure
		for _, f := range t.failures {
			if f.Status == entity.PaymentFailureStatusFailing && f.NextRetryAt != nil && !f.NextRetryAt.After(now) {
				due = append(due, f)
			}
		}
		sort.Slice(due, func(i, j int) bool { return due[i].NextRetryAt.Before(*due[j].NextRetryAt) })
		if limit > 0 && len(due) > limit {
			due = due[:limit]
		}
		for _, f := range due {
			lease := leaseUntil
			claim := token
			f.NextRetryAt = &lease
			f.ClaimToken = &claim
			f.UpdatedAt = now
			t.failures[f.Id] = f
			claimed := f
			out = append(out, &claimed)
		}
		return nil
	})
	return out, err
}

func (r *paymentFailureRepository) Advance(ctx context.Context, id uuid.UUID, token string, expectedRetryCount int, step dunning.Step, now time.Time) (bool, error) {
	ok := false
	err := r.u.run(func(t *tables) error {
		f, found := t.failures[id]
		if !found || f.Status != entity.PaymentFailureStatusFailing ||
			f.ClaimToken == nil || *f.ClaimToken != token || f.RetryCount != expectedRetryCount {
			return nil
		}
		f.RetryCount = step.RetryCount
		f.ClaimToken = nil
		f.UpdatedAt = now
		if step.Abandoned {
			f.Status = entity.PaymentFailureStatusAbandoned
			f.AbandonedAt = &now
			f.NextRetryAt = nil
		} else {
			f.NextRetryAt = step.NextRetryAt
		}
		t.failures[id] = f
		ok = true
		return nil
	})
	return ok, err
}

func (r *paymentFailureRepository) ReleaseClaim(ctx context.Context, id uuid.UUID, token string, now time.Time) error {
	return r.u.run(func(t *tables) error {
		f, found := t.failures[id]
		if !found || f.Status != entity.PaymentFailureStatusFailing || f.ClaimToken == nil || *f.ClaimToken != token {
			return nil
		}
		f.NextRetryAt = &now
		f.ClaimToken = nil
		t.failures[id] = f
		return nil
	})
}

func (r *paymentFailureRepository) MarkRecovered(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	ok := false
	err := r.u.run(func(t *tables) error {
		f, found := t.failures[id]
		if !found {
			return nil
		}
		if f.Status != entity.PaymentFailureStatusFailing && f.Status != entity.PaymentFailureStatusAbandoned {
			return nil
		}
		f.Status = entity.PaymentFailureStatusRecovered
		f.RecoveredAt = &now
		f.NextRetryAt = nil
		f.ClaimToken = nil
		f.UpdatedAt = now
		t.failures[id] = f
		ok = true
		return nil
	})
	return ok, err
}

type dunningEmailRepository struct {
	u *UnitOfWork
}

func emailColumns(e *entity.DunningEmail) row {
	return row{
		"id":                 e.Id,
		"payment_failure_id": e.PaymentFailureId,
		"retry_number":       e.RetryNumber,
		"tone":               e.Tone,
		"sent_at":            e.SentAt,
		"created_at":         e.CreatedAt,
	}
}

func (r *dunningEmailRepository) Create(ctx context.Context, email *entity.DunningEmail) error {
	return r.u.run(func(t *tables) error {
		for _, e := range t.emails {
			if e.PaymentFailureId == email.PaymentFailureId && e.RetryNumber == email.RetryNumber {
				return ErrDuplicateKey
			}
		}
		if email.Id == uuid.Nil {
			email.Id = uuid.New()
		}
		email.CreatedAt = r.u.store.now()
		t.emails[email.Id] = *email
		return nil
	})
}

func (r *dunningEmailRepository) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.DunningEmail, error) {
	var out []*entity.DunningEmail
	err := r.u.run(func(t *tables) error {
		rows, err := query(values(t.emails), emailColumns, specs...)
		if err != nil {
			return err
		}
		for i := range rows {
			out = append(out, &rows[i])
		}
		return nil
	})
	return out, err
}

type dunningConfigRepository struct {
	u *UnitOfWork
}

func (r *dunningConfigRepository) FindByProject(ctx context.Context, projectId uuid.UUID) (*entity.DunningConfig, error) {
	var out *entity.DunningConfig
	err := r.u.run(func(t *tables) error {
		if c, ok := t.configs[projectId]; ok {
			c.ToneSequence = append([]string(nil), c.ToneSequence...)
			out = &c
		}
		return nil
	})
	return out, err
}

func (r *dunningConfigRepository) Upsert(ctx context.Context, config *entity.DunningConfig) error {
	return r.u.run(func(t *tables) error {
		now := r.u.store.now()
		if existing, ok := t.configs[config.ProjectId]; ok {
			config.Id = existing.Id
			config.CreatedAt = existing.CreatedAt
		} else {
			if config.Id == uuid.Nil {
				config.Id = uuid.New()
			}
			config.CreatedAt = now
		}
		config.UpdatedAt = now
		stored := *config
		stored.ToneSequence = append([]string(nil), config.ToneSequence...)
		t.configs[config.ProjectId] = stored
		return nil
	})
}
