package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/byterank/byterank/pkg/errors"
	"github.com/byterank/byterank/pkg/logger"
	"github.com/byterank/byterank/pkg/response"
)

// RateLimitConfig bounds the number of requests per key within a fixed window.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// RateLimit limits requests per (client, route) within a fixed window. Keys
// use the authenticated profile when present and the client IP otherwise.
// Store failures let the request through.
func RateLimit(store RateStore, cfg RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store == nil || cfg.Requests <= 0 || cfg.Window <= 0 {
			c.Next()
			return
		}

		client := c.GetString(CtxProfileIDKey)
		if client == "" {
			client = c.ClientIP()
		}
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		count, ttl, err := store.Increment(c.Request.Context(), client+"|"+c.Request.Method+" "+route, cfg.Window)
		if err != nil {
			logger.WithModule("ratelimit").Warn("rate store unavailable", zap.Error(err))
			c.Next()
			return
		}

		remaining := cfg.Requests - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.Requests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(int(ttl.Round(time.Second).Seconds())))

		if count > cfg.Requests {
			c.Header("Retry-After", strconv.Itoa(int(ttl.Round(time.Second).Seconds())))
			response.Error(c, errors.ErrRateLimit)
			c.Abort()
			return
		}

		c.Next()
	}
}
