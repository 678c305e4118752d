package contract

import (
	"context"
	"time"

	"windback-be/internal/entity"
	"windback-be/internal/repository/specification"
	"windback-be/pkg/dunning"

	"github.com/google/uuid"
)

type PaymentFailureRepository interface {
	CreateIfAbsent(ctx context.Context, failure *entity.PaymentFailure) (bool, error)
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.PaymentFailure, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.PaymentFailure, error)

	// ClaimDue leases up to limit failing rows with next_retry_at <= now by moving
	// next_retry_at to leaseUntil and stamping token.
	ClaimDue(ctx context.Context, now time.Time, leaseUntil time.Time, token string, limit int) ([]*entity.PaymentFailure, error)

	// Advance applies a dunning step while the row is failing, still holds token and
	// still has the expected retry count.
	Advance(ctx context.Context, id uuid.UUID, token string, expectedRetryCount int, step dunning.Step, now time.Time) (bool, error)

	// ReleaseClaim makes a claimed row due again without touching its retry count.
	ReleaseClaim(ctx context.Context, id uuid.UUID, token string, now time.Time) error

	// MarkRecovered moves a failing or abandoned row to recovered.
	MarkRecovered(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
}

type DunningEmailRepository interface {
	Create(ctx context.Context, email *entity.DunningEmail) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.DunningEmail, error)
}

type DunningConfigRepository interface {
	// FindByProject returns nil when the project has no saved config.
	FindByProject(ctx context.Context, projectId uuid.UUID) (*entity.DunningConfig, error)
	Upsert(ctx context.Context, config *entity.DunningConfig) error
}
