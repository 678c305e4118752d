package contract

import (
	"context"
	"time"

	"windback-be/internal/entity"
	"windback-be/internal/repository/specification"

	"github.com/google/uuid"
)

type ChurnEventRepository interface {
	// CreateIfAbsent inserts the event unless its idempotency key already exists.
	// It reports whether a row was inserted.
	CreateIfAbsent(ctx context.Context, event *entity.ChurnEvent) (bool, error)
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ChurnEvent, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChurnEvent, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)

	// TransitionStatus moves the event to `to` only while its status is one of `from`.
	// Terminal statuses stamp recovered_at/lost_at; email_sent clears the send claim.
	TransitionStatus(ctx context.Context, id uuid.UUID, from []entity.ChurnEventStatus, to entity.ChurnEventStatus, at time.Time) (bool, error)

	// ClaimSend takes the auto-send lease when no unexpired lease exists.
	ClaimSend(ctx context.Context, id uuid.UUID, now time.Time, staleBefore time.Time) (bool, error)
	ReleaseSendClaim(ctx context.Context, id uuid.UUID) error
}

type RecoveryVariantRepository interface {
	CreateBatch(ctx context.Context, variants []*entity.RecoveryVariant) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.RecoveryVariant, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.RecoveryVariant, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)

	// ClaimSend leases an unsent variant for delivery.
	ClaimSend(ctx context.Context, id uuid.UUID, now time.Time, staleBefore time.Time) (bool, error)
	ReleaseClaim(ctx context.Context, id uuid.UUID) error
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)

	// UpdateContent rewrites subject and body of a variant that is neither sent nor
	// held by a live send claim.
	UpdateContent(ctx context.Context, id uuid.UUID, subject, body string, staleBefore time.Time) (bool, error)
	MarkOpened(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	MarkClicked(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}

type RecoveryTemplateRepository interface {
	Create(ctx context.Context, template *entity.RecoveryTemplate) error
	Update(ctx context.Context, template *entity.RecoveryTemplate) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.RecoveryTemplate, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.RecoveryTemplate, error)
	DeactivateOthers(ctx context.Context, projectId uuid.UUID, cancelReason string, exceptId uuid.UUID) error
}
