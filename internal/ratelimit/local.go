package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LocalBucket keeps one in-process limiter per key. Limits are per replica.
type LocalBucket struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	now      func() time.Time
}

func NewLocalBucket() *LocalBucket {
	return &LocalBucket{
		limiters: make(map[string]*rate.Limiter),
		now:      time.Now,
	}
}

func (b *LocalBucket) Allow(_ context.Context, key string, r float64, burst int) (Result, error) {
	if key == "" || r <= 0 || burst <= 0 {
		return Result{}, ErrInvalidLimit
	}

	b.mu.Lock()
	limiter, ok := b.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(r), burst)
		b.limiters[key] = limiter
	}
	b.mu.Unlock()

	now := b.now()
	allowed := limiter.AllowN(now, 1)
	remaining := limiter.TokensAt(now)
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:    allowed,
		Limit:      burst,
		Remaining:  int(remaining),
		RetryAfter: retryAfter(allowed, remaining, r),
	}, nil
}
