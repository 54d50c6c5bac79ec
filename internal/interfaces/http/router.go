// Package http wires the gin engine, middleware chain and routes, and owns
// the HTTP server lifecycle.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/benzaiten/metrics-gate/internal/config"
	"github.com/benzaiten/metrics-gate/internal/interfaces/http/handlers"
	"github.com/benzaiten/metrics-gate/internal/interfaces/http/middleware"
	"github.com/benzaiten/metrics-gate/pkg/logger"
)

// Router owns the gin engine and the HTTP server.
type Router struct {
	engine        *gin.Engine
	config        *config.Config
	logger        logger.Logger
	ingestHandler *handlers.IngestHandler
	healthHandler *handlers.HealthHandler
	server        *http.Server
}

// NewRouter creates the router. Call SetupRoutes before Run.
func NewRouter(
	cfg *config.Config,
	log logger.Logger,
	ingestHandler *handlers.IngestHandler,
	healthHandler *handlers.HealthHandler,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	return &Router{
		engine:        gin.New(),
		config:        cfg,
		logger:        log.WithComponent("router"),
		ingestHandler: ingestHandler,
		healthHandler: healthHandler,
	}
}

// SetupRoutes installs the middleware chain and the route table. The ingest
// resource is registered for every method so non-PUT calls reach the
// validator and get the canonical 405 instead of gin's default.
func (r *Router) SetupRoutes() {
	r.engine.Use(middleware.Recovery(r.logger))
	r.engine.Use(middleware.RequestID())
	r.engine.Use(middleware.Logger(r.logger))

	r.engine.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"PUT", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "X-Bztn-Key", "X-Bztn-Sign", "X-Request-ID"},
		MaxAge:       12 * time.Hour,
	}))

	r.engine.GET("/health/live", r.healthHandler.Live)
	r.engine.GET("/health/ready", r.healthHandler.Ready)
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	resource := "/" + r.config.Ingest.Resource
	r.engine.Any(resource, r.ingestHandler.Handle)

	if r.config.Server.EnablePprof {
		pprof.Register(r.engine)
	}
}

// Engine exposes the gin engine for tests.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// Run starts the HTTP server and blocks until it stops.
func (r *Router) Run() error {
	r.server = &http.Server{
		Addr:         r.config.Server.Addr(),
		Handler:      r.engine,
		ReadTimeout:  time.Duration(r.config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(r.config.Server.WriteTimeout) * time.Second,
	}

	r.logger.Info(context.Background(), "http server listening", logger.Fields{
		"addr": r.server.Addr,
	})
	if err := r.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (r *Router) Shutdown(ctx context.Context) error {
	if r.server == nil {
		return nil
	}
	r.logger.Info(ctx, "http server shutting down")
	return r.server.Shutdown(ctx)
}
