package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/tuntasinaja/tuntasinaja/pkg/errors"
	"github.com/tuntasinaja/tuntasinaja/pkg/logger"
	"github.com/tuntasinaja/tuntasinaja/pkg/response"
)

// RateLimitOptions describes one fixed window. Scope separates the counters of
// different route groups that share a store.
type RateLimitOptions struct {
	Scope  string
	Max    int
	Window time.Duration
}

// RateLimit limits requests per caller within a fixed window. Authenticated
// callers are keyed by user id, everyone else by client IP. Store failures let
// the request through.
func RateLimit(store RateStore, opts RateLimitOptions) gin.HandlerFunc {
	log := logger.WithModule("ratelimit")

	return func(c *gin.Context) {
		if store == nil || opts.Max <= 0 || opts.Window <= 0 {
			c.Next()
			return
		}

		key := "ratelimit:" + opts.Scope + ":" + rateKey(c)
		count, ttl, err := store.Increment(c.Request.Context(), key, opts.Window)
		if err != nil {
			log.Warn("rate limit store failed", zap.String("scope", opts.Scope), zap.Error(err))
			c.Next()
			return
		}

		remaining := opts.Max - count
		if remaining < 0 {
			remaining = 0
		}
		resetIn := int(ttl.Round(time.Second).Seconds())
		if resetIn < 0 {
			resetIn = 0
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(opts.Max))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(resetIn))

		if count > opts.Max {
			c.Header("Retry-After", strconv.Itoa(resetIn))
			response.Abort(c, apperrors.ErrRateLimit)
			return
		}

		c.Next()
	}
}

func rateKey(c *gin.Context) string {
	if userID := c.GetString(CtxUserIDKey); userID != "" {
		return "user:" + userID
	}
	return "ip:" + c.ClientIP()
}
