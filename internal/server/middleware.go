package server

import (
	"crypto/subtle"
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const orgIDKey = "org_id"

// RequireOrg parses the org_id path parameter and stores it on the context.
func (s *Server) RequireOrg() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID, err := parseRequiredID(c.Param("org_id"))
		if err != nil {
			AbortWithError(c, newValidationError("organization", "invalid_organization", "invalid organization id"))
			return
		}
		c.Set(orgIDKey, orgID)
		c.Next()
	}
}

// RequireInternalToken guards cron-facing endpoints with a shared bearer token.
func (s *Server) RequireInternalToken() gin.HandlerFunc {
	expected := strings.TrimSpace(s.cfg.InternalToken)
	return func(c *gin.Context) {
		if expected == "" {
			c.Next()
			return
		}
		got := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
		if subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Next()
	}
}

// RateLimitWebhooks admits provider callbacks per organization. Limiter failures let the request through.
func (s *Server) RateLimitWebhooks() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil {
			c.Next()
			return
		}

		orgID := orgIDFromContext(c)
		res, err := s.limiter.Allow(c.Request.Context(), orgID)
		if err != nil {
			s.log.Warn("webhook.ratelimit.failed", zap.String("org_id", orgID.String()), zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		if !res.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}
