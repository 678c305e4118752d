package contract

import (
	"context"

	"windback-be/internal/entity"
	"windback-be/internal/repository/specification"
)

type RetentionOfferRepository interface {
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.RetentionOffer, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.RetentionOffer, error)
	// Upsert writes the offer keyed by (project_id, cancel_reason).
	Upsert(ctx context.Context, offer *entity.RetentionOffer) error
}
