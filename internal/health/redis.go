package health

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisChecker reports whether the rate limit store is reachable.
type RedisChecker struct {
	client *redis.Client
}

// NewRedisChecker creates a Redis health checker.
func NewRedisChecker(client *redis.Client) *RedisChecker {
	return &RedisChecker{client: client}
}

// HealthCheck sends a PING. The caller's context bounds the wait.
func (r *RedisChecker) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
