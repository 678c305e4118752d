package memory

import (
	"context"

	"windback-be/internal/entity"
	"windback-be/internal/repository/specification"

	"github.com/google/uuid"
)

type projectRepository struct {
	u *UnitOfWork
}

func projectColumns(p *entity.Project) row {
	return row{
		"id":         p.Id,
		"slug":       p.Slug,
		"name":       p.Name,
		"public_key": p.PublicKey,
		"created_at": p.CreatedAt,
	}
}

func (r *projectRepository) Create(ctx context.Context, project *entity.Project) error {
	return r.u.run(func(t *tables) error {
		if project.Id == uuid.Nil {
			project.Id = uuid.New()
		}
		for _, p := range t.projects {
			if p.Id == project.Id || p.Slug == project.Slug || p.PublicKey == project.PublicKey {
				return ErrDuplicateKey
			}
		}
		now := r.u.store.now()
		project.CreatedAt, project.UpdatedAt = now, now
		t.projects[project.Id] = *project
		return nil
	})
}

func (r *projectRepository) Update(ctx context.Context, project *entity.Project) error {
	return r.u.run(func(t *tables) error {
		for _, p := range t.projects {
			if p.Id != project.Id && (p.Slug == project.Slug || p.PublicKey == project.PublicKey) {
				return ErrDuplicateKey
			}
		}
		project.UpdatedAt = r.u.store.now()
		t.projects[project.Id] = *project
		return nil
	})
}

func (r *projectRepository) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Project, error) {
	all, err := r.FindAll(ctx, specs...)
	if err != nil || len(all) == 0 {
		return nil, err
	}
	return all[0], nil
}

func (r *projectRepository) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Project, error) {
	var out []*entity.Project
	err := r.u.run(func(t *tables) error {
		rows, err := query(values(t.projects), projectColumns, specs...)
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

type retentionOfferRepository struct {
	u *UnitOfWork
}

func offerColumns(o *entity.RetentionOffer) row {
	return row{
		"id":            o.Id,
		"project_id":    o.ProjectId,
		"cancel_reason": o.CancelReason,
		"offer_type":    string(o.OfferType),
		"is_active":     o.IsActive,
		"created_at":    o.CreatedAt,
	}
}

func (r *retentionOfferRepository) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.RetentionOffer, error) {
	all, err := r.FindAll(ctx, specs...)
	if err != nil || len(all) == 0 {
		return nil, err
	}
	return all[0], nil
}

func (r *retentionOfferRepository) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.RetentionOffer, error) {
	var out []*entity.RetentionOffer
	err := r.u.run(func(t *tables) error {
		rows, err := query(values(t.offers), offerColumns, specs...)
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

func (r *retentionOfferRepository) Upsert(ctx context.Context, offer *entity.RetentionOffer) error {
	return r.u.run(func(t *tables) error {
		now := r.u.store.now()
		for id, existing := range t.offers {
			if existing.ProjectId == offer.ProjectId && existing.CancelReason == offer.CancelReason {
				offer.Id = id
				offer.CreatedAt = existing.CreatedAt
				offer.UpdatedAt = now
				t.offers[id] = *offer
				return nil
			}
		}
		if offer.Id == uuid.Nil {
			offer.Id = uuid.New()
		}
		offer.CreatedAt, offer.UpdatedAt = now, now
		t.offers[offer.Id] = *offer
		return nil
	})
}
