package app

import (
	"strings"

	"github.com/samber/lo"

	"github.com/byterank/byterank/internal/middleware"
)

const (
	defaultRateLimitRequests = 100
)

// MiddlewareConfig converts CORSConfig into the middleware representation.
// Blank origins are dropped.
func (c CORSConfig) MiddlewareConfig() middleware.CORSConfig {
	origins := lo.FilterMap(c.AllowedOrigins, func(origin string, _ int) (string, bool) {
		origin = strings.TrimSpace(origin)
		return origin, origin != ""
	})
	return middleware.CORSConfig{
		AllowedOrigins: origins,
		MaxAge:         c.MaxAge,
	}
}

// MiddlewareConfig converts RateLimitConfig into the middleware representation.
func (c RateLimitConfig) MiddlewareConfig() middleware.RateLimitConfig {
	requests := c.Requests
	if requests <= 0 {
		requests = defaultRateLimitRequests
	}
	return middleware.RateLimitConfig{
		Requests: requests,
		Window:   c.Window,
	}
}
