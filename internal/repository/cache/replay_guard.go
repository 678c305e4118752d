package cache

import (
	"context"
	"time"

	"windback-be/internal/repository/contract"

	"github.com/redis/go-redis/v9"
)

const replayKeyPrefix = "windback:webhook:delivery:"

type RedisReplayGuard struct {
	client *redis.Client
}

func NewRedisReplayGuard(client *redis.Client) contract.ReplayGuard {
	return &RedisReplayGuard{client: client}
}

func (g *RedisReplayGuard) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return g.client.SetNX(ctx, replayKeyPrefix+key, 1, ttl).Result()
}

func (g *RedisReplayGuard) Forget(ctx context.Context, key string) error {
	return g.client.Del(ctx, replayKeyPrefix+key).Err()
}
