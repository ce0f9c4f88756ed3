package health

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisChecker pings the Redis behind the job registry. New connection pool
// timeouts since the previous check report the registry as degraded.
type RedisChecker struct {
	client *redis.Client

	mu       sync.Mutex
	timeouts uint32
}

// NewRedisChecker creates a checker for client.
func NewRedisChecker(client *redis.Client) *RedisChecker {
	return &RedisChecker{client: client, timeouts: client.PoolStats().Timeouts}
}

// Name returns the name of the checker.
func (r *RedisChecker) Name() string {
	return "redis"
}

// Check pings Redis and compares the pool timeout counter.
func (r *RedisChecker) Check(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}

	now := r.client.PoolStats().Timeouts
	r.mu.Lock()
	prev := r.timeouts
	r.timeouts = now
	r.mu.Unlock()
	if now > prev {
		return Degraded("%d connection pool timeouts since last check", now-prev)
	}
	return nil
}

// Details reports the connection pool counters.
func (r *RedisChecker) Details() map[string]interface{} {
	s := r.client.PoolStats()
	return map[string]interface{}{
		"hits":        s.Hits,
		"misses":      s.Misses,
		"timeouts":    s.Timeouts,
		"total_conns": s.TotalConns,
		"idle_conns":  s.IdleConns,
		"stale_conns": s.StaleConns,
	}
}
