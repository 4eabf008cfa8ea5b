// Package rate limita operaciones caras (discovery a demanda) con ventanas
// fijas, en memoria o compartidas vía Redis entre instancias.
package rate

import (
	"context"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	rdb "github.com/redis/go-redis/v9"
)

type Result struct {
	Allowed     bool
	Remaining   int64
	RetryAfter  time.Duration
	CurrentHits int64
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

func windowKey(prefix, key string, window time.Duration, now time.Time) string {
	start := now.UTC().Truncate(window)
	return fmt.Sprintf("%s%s:%d", prefix, strings.ReplaceAll(key, " ", "_"), start.Unix())
}

func result(hits, max int64, window time.Duration, now time.Time) Result {
	res := Result{Allowed: hits <= max, CurrentHits: hits, Remaining: max - hits}
	if res.Remaining < 0 {
		res.Remaining = 0
	}
	if !res.Allowed {
		res.RetryAfter = now.UTC().Truncate(window).Add(window).Sub(now.UTC())
	}
	return res
}

// RedisLimiter: fixed window (INCR + EXPIRE), compartido entre instancias.
type RedisLimiter struct {
	Client *rdb.Client
	Prefix string
	Max    int64
	Window time.Duration
	now    func() time.Time
}

func NewRedisLimiter(client *rdb.Client, prefix string, max int, window time.Duration) *RedisLimiter {
	if prefix == "" {
		prefix = "rl:"
	}
	return &RedisLimiter{Client: client, Prefix: prefix, Max: int64(max), Window: window, now: time.Now}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	now := l.now()
	k := windowKey(l.Prefix, key, l.Window, now)

	hits, err := l.Client.Incr(ctx, k).Result()
	if err != nil {
		return Result{}, err
	}
	// primer hit de la ventana: fijar expiración
	if hits == 1 {
		_ = l.Client.Expire(ctx, k, l.Window).Err()
	}
	return result(hits, l.Max, l.Window, now), nil
}

// MemoryLimiter: misma ventana fija, local al proceso.
type MemoryLimiter struct {
	c      *gocache.Cache
	max    int64
	window time.Duration
	now    func() time.Time
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		c:      gocache.New(window, 2*window),
		max:    int64(max),
		window: window,
		now:    time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	now := l.now()
	k := windowKey("", key, l.window, now)
	// Add falla si ya existe: en ese caso solo incrementamos
	_ = l.c.Add(k, int64(0), l.window)
	hits, err := l.c.IncrementInt64(k, 1)
	if err != nil {
		return Result{}, err
	}
	return result(hits, l.max, l.window, now), nil
}
