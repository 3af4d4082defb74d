package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/developia-II/slang-translator-backend/internal/config"
	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// Quota counts submissions per user per UTC day.
type Quota interface {
	// Allow consumes one unit and reports whether the user is still within the limit.
	Allow(ctx context.Context, userID string, now time.Time) (bool, error)
}

const quotaWindow = 25 * time.Hour

func quotaKey(userID string, now time.Time) string {
	return fmt.Sprintf("slang:submit:%s:%s", userID, now.UTC().Format("20060102"))
}

// RedisQuota shares the counter across server instances.
type RedisQuota struct {
	rdb   redis.Cmdable
	limit int
}

func NewRedisQuota(rdb redis.Cmdable, limit int) *RedisQuota {
	return &RedisQuota{rdb: rdb, limit: limit}
}

func (q *RedisQuota) Allow(ctx context.Context, userID string, now time.Time) (bool, error) {
	key := quotaKey(userID, now)
	n, err := q.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("quota incr: %w", err)
	}
	if n == 1 {
		if err := q.rdb.Expire(ctx, key, quotaWindow).Err(); err != nil {
			log.Printf("quota: expire failed key=%s err=%v", key, err)
		}
	}
	return n <= int64(q.limit), nil
}

// MemoryQuota is the single-instance fallback when Redis is not configured.
type MemoryQuota struct {
	counts *gocache.Cache
	limit  int
}

func NewMemoryQuota(limit int) *MemoryQuota {
	return &MemoryQuota{counts: gocache.New(quotaWindow, time.Hour), limit: limit}
}

func (q *MemoryQuota) Allow(_ context.Context, userID string, now time.Time) (bool, error) {
	key := quotaKey(userID, now)
	_ = q.counts.Add(key, 0, quotaWindow)
	n, err := q.counts.IncrementInt(key, 1)
	if err != nil {
		return false, fmt.Errorf("quota incr: %w", err)
	}
	return n <= q.limit, nil
}

func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// NewQuota prefers Redis and falls back to process memory when it is unset or down.
func NewQuota(ctx context.Context, cfg config.RedisConfig, limit int) (Quota, func() error) {
	if cfg.Addr == "" {
		log.Println("quota: REDIS_ADDR not set, using in-memory counters")
		return NewMemoryQuota(limit), func() error { return nil }
	}
	rdb := NewRedisClient(cfg)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Printf("quota: redis unreachable (%v), using in-memory counters", err)
		_ = rdb.Close()
		return NewMemoryQuota(limit), func() error { return nil }
	}
	return NewRedisQuota(rdb, limit), rdb.Close
}
