package memory

import (
	"context"
	"time"

	"windback-be/internal/entity"
	"windback-be/internal/repository/specification"

	"github.com/google/uuid"
)

type churnEventRepository struct {
	u *UnitOfWork
}

func churnEventColumns(e *entity.ChurnEvent) row {
	return row{
		"id":                       e.Id,
		"project_id":               e.ProjectId,
		"provider":                 e.Provider,
		"provider_customer_id":     e.ProviderCustomerId,
		"provider_subscription_id": e.ProviderSubscriptionId,
		"event_type":               e.EventType,
		"customer_email":           e.CustomerEmail,
		"status":                   string(e.Status),
		"mrr_cents":                e.MrrCents,
		"recovered_at":             timeOrNil(e.RecoveredAt),
		"lost_at":                  timeOrNil(e.LostAt),
		"created_at":               e.CreatedAt,
		"updated_at":               e.UpdatedAt,
	}
}

func (r *churnEventRepository) CreateIfAbsent(ctx context.Context, event *entity.ChurnEvent) (bool, error) {
	created := false
	err := r.u.run(func(t *tables) error {
		for _, e := range t.churnEvents {
			if e.ProjectId == event.ProjectId &&
				e.Provider == event.Provider &&
				e.ProviderSubscriptionId == event.ProviderSubscriptionId &&
				e.EventType == event.EventType {
				return nil
			}
		}
		if event.Id == uuid.Nil {
			event.Id = uuid.New()
		}
		if _, ok := t.churnEvents[event.Id]; ok {
			return ErrDuplicateKey
		}
		if event.Status == "" {
			event.Status = entity.ChurnEventStatusNew
		}
		now := r.u.store.now()
		event.CreatedAt, event.UpdatedAt = now, now
		stored := *event
		stored.Variants = nil
		t.churnEvents[event.Id] = stored
		created = true
		return nil
	})
	return created, err
}

func (r *churnEventRepository) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ChurnEvent, error) {
	all, err := r.FindAll(ctx, specs...)
	if err != nil || len(all) == 0 {
		return nil, err
	}
	return all[0], nil
}

func (r *churnEventRepository) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChurnEvent, error) {
	var out []*entity.ChurnEvent
	err := r.u.run(func(t *tables) error {
		rows, err := query(values(t.churnEvents), churnEventColumns, specs...)
		if err != nil {
			return err
		}
		preload := hasSpec[specification.WithVariants](specs)
		for i := range rows {
			e := rows[i]
			if preload {
				variants, err := query(values(t.variants), variantColumns,
					specification.ByChurnEventID{ChurnEventID: e.Id},
					specification.OrderBy{Field: "position"},
				)
				if err != nil {
					return err
				}
				for j := range variants {
					e.Variants = append(e.Variants, &variants[j])
				}
			}
			out = append(out, &e)
		}
		return nil
	})
	return out, err
}

func (r *churnEventRepository) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	err := r.u.run(func(t *tables) error {
		rows, err := query(values(t.churnEvents), churnEventColumns, specs...)
		count = int64(len(rows))
		return err
	})
	return count, err
}

func (r *churnEventRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from []entity.ChurnEventStatus, to entity.ChurnEventStatus, at time.Time) (bool, error) {
	ok := false
	err := r.u.run(func(t *tables) error {
		e, found := t.churnEvents[id]
		if !found {
			return nil
		}
		allowed := false
		for _, s := range from {
			if e.Status == s {
				allowed = true
				break
			}
		}
		if !allowed {
			return nil
		}
		e.Status = to
		e.UpdatedAt = at
		switch to {
		case entity.ChurnEventStatusRecovered:
			e.RecoveredAt = &at
			e.SendClaimedAt = nil
		case entity.ChurnEventStatusLost:
			e.LostAt = &at
			e.SendClaimedAt = nil
		case entity.ChurnEventStatusEmailSent:
			e.SendClaimedAt = nil
		}
		t.churnEvents[id] = e
		ok = true
		return nil
	})
	return ok, err
}

func (r *churnEventRepository) ClaimSend(ctx context.Context, id uuid.UUID, now time.Time, staleBefore time.Time) (bool, error) {
	ok := false
	err := r.u.run(func(t *tables) error {
		e, found := t.churnEvents[id]
		if !found || e.Status != entity.ChurnEventStatusVariantsGenerated {
			return nil
		}
		if e.SendClaimedAt != nil && !e.SendClaimedAt.Before(staleBefore) {
			return nil
		}
		e.SendClaimedAt = &now
		t.churnEvents[id] = e
		ok = true
		return nil
	})
	return ok, err
}

func (r *churnEventRepository) ReleaseSendClaim(ctx context.Context, id uuid.UUID) error {
	return r.u.run(func(t *tables) error {
		if e, found := t.churnEvents[id]; found {
			e.SendClaimedAt = nil
			t.churnEvents[id] = e
		}
		return nil
	})
}

type recoveryVariantRepository struct {
	u *UnitOfWork
}

func variantColumns(v *entity.RecoveryVariant) row {
	return row{
		"id":              v.Id,
		"churn_event_id":  v.ChurnEventId,
		"strategy":        v.Strategy,
		"position":        v.Position,
		"send_claimed_at": timeOrNil(v.SendClaimedAt),
		"sent_at":         timeOrNil(v.SentAt),
		"opened_at":       timeOrNil(v.OpenedAt),
		"clicked_at":      timeOrNil(v.ClickedAt),
		"coupon_code":     stringOrNil(v.CouponCode),
		"created_at":      v.CreatedAt,
	}
}

func (r *recoveryVariantRepository) CreateBatch(ctx context.Context, variants []*entity.RecoveryVariant) error {
	return r.u.run(func(t *tables) error {
		for i, v := range variants {
			for _, existing := range t.variants {
				if existing.ChurnEventId == v.ChurnEventId && existing.Position == v.Position {
					return ErrDuplicateKey
				}
			}
			for _, other := range variants[:i] {
				if other.ChurnEventId == v.ChurnEventId && other.Position == v.Position {
					return ErrDuplicateKey
				}
			}
		}
		now := r.u.store.now()
		for _, v := range variants {
			if v.Id == uuid.Nil {
				v.Id = uuid.New()
			}
			v.CreatedAt, v.UpdatedAt = now, now
			t.variants[v.Id] = *v
		}
		return nil
	})
}

func (r *recoveryVariantRepository) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.RecoveryVariant, error) {
	all, err := r.FindAll(ctx, specs...)
	if err != nil || len(all) == 0 {
		return nil, err
	}
	return all[0], nil
}

func (r *recoveryVariantRepository) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.RecoveryVariant, error) {
	var out []*entity.RecoveryVariant
	err := r.u.run(func(t *tables) error {
		rows, err := query(values(t.variants), variantColumns, specs...)
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

func (r *recoveryVariantRepository) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	err := r.u.run(func(t *tables) error {
		rows, err := query(values(t.variants), variantColumns, specs...)
		count = int64(len(rows))
		return err
	})
	return count, err
}

// update applies fn to the variant when cond holds.
func (r *recoveryVariantRepository) update(id uuid.UUID, cond func(v *entity.RecoveryVariant) bool, fn func(v *entity.RecoveryVariant)) (bool, error) {
	ok := false
	err := r.u.run(func(t *tables) error {
		v, found := t.variants[id]
		if !found || !cond(&v) {
			return nil
		}
		fn(&v)
		v.UpdatedAt = r.u.store.now()
		t.variants[id] = v
		ok = true
		return nil
	})
	return ok, err
}

func (r *recoveryVariantRepository) ClaimSend(ctx context.Context, id uuid.UUID, now time.Time, staleBefore time.Time) (bool, error) {
	return r.update(id,
		func(v *entity.RecoveryVariant) bool {
			return v.SentAt == nil && (v.SendClaimedAt == nil || v.SendClaimedAt.Before(staleBefore))
		},
		func(v *entity.RecoveryVariant) { v.SendClaimedAt = &now },
	)
}

func (r *recoveryVariantRepository) ReleaseClaim(ctx context.Context, id uuid.UUID) error {
	_, err := r.update(id,
		func(v *entity.RecoveryVariant) bool { return v.SentAt == nil },
		func(v *entity.RecoveryVariant) { v.SendClaimedAt = nil },
	)
	return err
}

func (r *recoveryVariantRepository) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return r.update(id,
		func(v *entity.RecoveryVariant) bool { return v.SentAt == nil },
		func(v *entity.RecoveryVariant) {
			v.SentAt = &at
			v.SendClaimedAt = nil
		},
	)
}

func (r *recoveryVariantRepository) UpdateContent(ctx context.Context, id uuid.UUID, subject, body string, staleBefore time.Time) (bool, error) {
	return r.update(id,
		func(v *entity.RecoveryVariant) bool {
			return v.SentAt == nil && (v.SendClaimedAt == nil || v.SendClaimedAt.Before(staleBefore))
		},
		func(v *entity.RecoveryVariant) {
			v.Subject = subject
			v.Body = body
		},
	)
}

func (r *recoveryVariantRepository) MarkOpened(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return r.update(id,
		func(v *entity.RecoveryVariant) bool { return v.SentAt != nil && v.OpenedAt == nil },
		func(v *entity.RecoveryVariant) { v.OpenedAt = &at },
	)
}

func (r *recoveryVariantRepository) MarkClicked(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return r.update(id,
		func(v *entity.RecoveryVariant) bool { return v.SentAt != nil && v.ClickedAt == nil },
		func(v *entity.RecoveryVariant) {
			v.ClickedAt = &at
			if v.OpenedAt == nil {
				v.OpenedAt = &at
			}
		},
	)
}

type recoveryTemplateRepository struct {
	u *UnitOfWork
}

func templateColumns(tpl *entity.RecoveryTemplate) row {
	return row{
		"id":            tpl.Id,
		"project_id":    tpl.ProjectId,
		"cancel_reason": tpl.CancelReason,
		"name":          tpl.Name,
		"is_active":     tpl.IsActive,
		"created_at":    tpl.CreatedAt,
		"updated_at":    tpl.UpdatedAt,
	}
}

// activeConflict mirrors the partial unique index on active templates.
func activeConflict(t *tables, tpl *entity.RecoveryTemplate) bool {
	if !tpl.IsActive {
		return false
	}
	for _, other := range t.templates {
		if other.Id != tpl.Id && other.IsActive &&
			other.ProjectId == tpl.ProjectId && other.CancelReason == tpl.CancelReason {
			return true
		}
	}
	return false
}

func (r *recoveryTemplateRepository) Create(ctx context.Context, template *entity.RecoveryTemplate) error {
	return r.u.run(func(t *tables) error {
		if template.Id == uuid.Nil {
			template.Id = uuid.New()
		}
		if _, ok := t.templates[template.Id]; ok || activeConflict(t, template) {
			return ErrDuplicateKey
		}
		now := r.u.store.now()
		template.CreatedAt, template.UpdatedAt = now, now
		t.templates[template.Id] = *template
		return nil
	})
}

func (r *recoveryTemplateRepository) Update(ctx context.Context, template *entity.RecoveryTemplate) error {
	return r.u.run(func(t *tables) error {
		if activeConflict(t, template) {
			return ErrDuplicateKey
		}
		template.UpdatedAt = r.u.store.now()
		t.templates[template.Id] = *template
		return nil
	})
}

func (r *recoveryTemplateRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.u.run(func(t *tables) error {
		delete(t.templates, id)
		return nil
	})
}

func (r *recoveryTemplateRepository) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.RecoveryTemplate, error) {
	all, err := r.FindAll(ctx, specs...)
	if err != nil || len(all) == 0 {
		return nil, err
	}
	return all[0], nil
}

func (r *recoveryTemplateRepository) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.RecoveryTemplate, error) {
	var out []*entity.RecoveryTemplate
	err := r.u.run(func(t *tables) error {
		rows, err := query(values(t.templates), templateColumns, specs...)
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

func (r *recoveryTemplateRepository) DeactivateOthers(ctx context.Context, projectId uuid.UUID, cancelReason string, exceptId uuid.UUID) error {
	return r.u.run(func(t *tables) error {
		now := r.u.store.now()
		for id, tpl := range t.templates {
			if id != exceptId && tpl.IsActive && tpl.ProjectId == projectId && tpl.CancelReason == cancelReason {
				tpl.IsActive = false
				tpl.UpdatedAt = now
				t.templates[id] = tpl
			}
		}
		return nil
	})
}
