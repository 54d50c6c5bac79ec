package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/benzaiten/metrics-gate/pkg/logger"
)

// HealthChecker is anything with a dependency health probe.
type HealthChecker interface {
	HealthCheck(ctx context.Context) (map[string]interface{}, error)
}

// HealthHandler serves liveness and readiness.
type HealthHandler struct {
	checkers map[string]HealthChecker
	logger   logger.Logger
}

// NewHealthHandler creates the handler over named dependency checkers.
func NewHealthHandler(checkers map[string]HealthChecker, log logger.Logger) *HealthHandler {
	return &HealthHandler{checkers: checkers, logger: log.WithComponent("health")}
}

// Live reports process liveness. It never touches dependencies.
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready probes every dependency and reports 503 if any is down.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx := c.Request.Context()
	status := http.StatusOK
	details := make(map[string]interface{}, len(h.checkers))

	for name, checker := range h.checkers {
		info, err := checker.HealthCheck(ctx)
		if err != nil {
			h.logger.Warn(ctx, "dependency unhealthy", logger.Fields{
				"dependency": name,
				"error":      err.Error(),
			})
			details[name] = gin.H{"status": "unhealthy", "error": err.Error()}
			status = http.StatusServiceUnavailable
			continue
		}
		details[name] = info
	}

	body := gin.H{"status": "ok", "dependencies": details}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	c.JSON(status, body)
}
