package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru"
)

// Limiter admits at most a fixed number of hits per key and window.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type Config struct {
	Max       int
	Window    time.Duration
	KeyPrefix string
	// MaxKeys bounds the in-memory limiter; ignored by Redis.
	MaxKeys int
}

// New returns a Redis backed limiter when client is set and an in-process
// LRU limiter otherwise.
func New(client *redis.Client, cfg Config) (Limiter, error) {
	if client != nil {
		return NewRedisLimiter(client, cfg), nil
	}
	return NewMemoryLimiter(cfg)
}

// Key identifies the embed caller: one bucket per token and client address.
func Key(token, clientIP string) string {
	return token + ":" + clientIP
}

type RedisLimiter struct {
	client *redis.Client
	max    int64
	window time.Duration
	prefix string
}

func NewRedisLimiter(client *redis.Client, cfg Config) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		max:    int64(cfg.Max),
		window: cfg.Window,
		prefix: cfg.KeyPrefix,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := l.prefix + key

	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		ttl = pipe.PTTL(ctx, redisKey)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("rate limit %s: %w", redisKey, err)
	}

	// A key without expiry was either just created or lost its TTL.
	if ttl.Val() < 0 {
		if err := l.client.PExpire(ctx, redisKey, l.window).Err(); err != nil {
			return false, fmt.Errorf("rate limit expire %s: %w", redisKey, err)
		}
	}

	return incr.Val() <= l.max, nil
}

type MemoryLimiter struct {
	mu     sync.Mutex
	cache  *lru.Cache
	max    int
	window time.Duration
	now    func() time.Time
}

type windowEntry struct {
	start time.Time
	count int
}

func NewMemoryLimiter(cfg Config) (*MemoryLimiter, error) {
	size := cfg.MaxKeys
	if size <= 0 {
		size = 10000
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &MemoryLimiter{
		cache:  cache,
		max:    cfg.Max,
		window: cfg.Window,
		now:    time.Now,
	}, nil
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	entry := windowEntry{start: now}
	if v, ok := l.cache.Get(key); ok {
		existing := v.(windowEntry)
		if now.Sub(existing.start) < l.window {
			entry = existing
		}
	}

	entry.count++
	l.cache.Add(key, entry)
	return entry.count <= l.max, nil
}
