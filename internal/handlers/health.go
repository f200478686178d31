package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/byterank/byterank/internal/monitoring"
	"github.com/byterank/byterank/pkg/response"
)

const healthTimeout = 5 * time.Second

// Health evaluates the readiness probes. Degraded dependencies still answer
// 200; any probe reporting down turns the response into a 503.
func Health(readiness *monitoring.Readiness) gin.HandlerFunc {
	return func(c *gin.Context) {
		if readiness == nil {
			readiness = monitoring.NewReadiness()
		}

		ctx, cancel := context.WithTimeout(requestContext(c), healthTimeout)
		defer cancel()

		report := readiness.Evaluate(ctx)
		if !report.Healthy() {
			c.JSON(http.StatusServiceUnavailable, response.Response{Success: false, Data: report})
			return
		}
		response.Success(c, http.StatusOK, report)
	}
}
