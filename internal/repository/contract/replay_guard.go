package contract

import (
	"context"
	"time"
)

// ReplayGuard remembers provider delivery ids for a bounded window.
type ReplayGuard interface {
	// Claim records key and reports whether it was not seen before.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Forget drops key so a failed delivery can be retried by the provider.
	Forget(ctx context.Context, key string) error
}
