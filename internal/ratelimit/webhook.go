package ratelimit

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/invoicerecovery/internal/config"
	"go.uber.org/zap"
)

const keyWebhookOrg = "webhooks:org:%d"

type bucket interface {
	Allow(ctx context.Context, key string, rate float64, burst int) (Result, error)
}

// WebhookLimiter throttles inbound provider callbacks per organization.
type WebhookLimiter struct {
	bucket bucket
	rate   float64
	burst  int
}

// NewWebhookLimiter returns nil when webhook limiting is disabled.
func NewWebhookLimiter(cfg config.Config, client redis.UniversalClient, log *zap.Logger) *WebhookLimiter {
	limits := cfg.Webhooks
	if limits.RatePerSecond <= 0 || limits.Burst <= 0 {
		return nil
	}

	var b bucket
	if client != nil {
		b = NewTokenBucket(client)
	} else {
		if log != nil {
			log.Warn("ratelimit.redis.disabled", zap.String("fallback", "local"))
		}
		b = NewLocalBucket()
	}
	return newWebhookLimiter(b, limits.RatePerSecond, limits.Burst)
}

func newWebhookLimiter(b bucket, rate float64, burst int) *WebhookLimiter {
	return &WebhookLimiter{bucket: b, rate: rate, burst: burst}
}

func (l *WebhookLimiter) Allow(ctx context.Context, orgID snowflake.ID) (Result, error) {
	if l == nil {
		return Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyWebhookOrg, int64(orgID)), l.rate, l.burst)
}
