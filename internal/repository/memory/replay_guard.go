package memory

import (
	"context"
	"time"

	"windback-be/internal/repository/contract"

	"github.com/patrickmn/go-cache"
)

type ReplayGuard struct {
	cache *cache.Cache
}

func NewReplayGuard() contract.ReplayGuard {
	// Entries carry their own TTL; expired ones are purged every 10 minutes.
	c := cache.New(24*time.Hour, 10*time.Minute)
	return &ReplayGuard{
		cache: c,
	}
}

func (g *ReplayGuard) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	// Add fails when the key is present and unexpired.
	if err := g.cache.Add(key, struct{}{}, ttl); err != nil {
		return false, nil
	}
	return true, nil
}

func (g *ReplayGuard) Forget(ctx context.Context, key string) error {
	g.cache.Delete(key)
	return nil
}
