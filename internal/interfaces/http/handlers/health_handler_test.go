package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benzaiten/metrics-gate/pkg/logger"
)

type staticChecker struct {
	info map[string]interface{}
	err  error
}

func (c staticChecker) HealthCheck(context.Context) (map[string]interface{}, error) {
	return c.info, c.err
}

func healthEngine(checkers map[string]HealthChecker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHealthHandler(checkers, logger.NewNoopLogger())
	engine := gin.New()
	engine.GET("/health/live", h.Live)
	engine.GET("/health/ready", h.Ready)
	return engine
}

func TestLive(t *testing.T) {
	engine := healthEngine(nil)

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, 200, rec.Code)
}

func TestReadyHealthy(t *testing.T) {
	engine := healthEngine(map[string]HealthChecker{
		"postgres": staticChecker{info: map[string]interface{}{"status": "healthy"}},
	})

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, 200, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestReadyDegraded(t *testing.T) {
	engine := healthEngine(map[string]HealthChecker{
		"postgres": staticChecker{err: errors.New("connection refused")},
	})

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, 503, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body["status"])
}
