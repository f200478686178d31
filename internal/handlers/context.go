package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/byterank/byterank/internal/middleware"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// currentProfileID returns the authenticated profile, or "" outside the auth middleware.
func currentProfileID(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(middleware.CtxProfileIDKey)
}
