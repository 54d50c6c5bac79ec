// Command server runs the Benzaiten metrics gate: an HTTP front door that
// authorizes metric batches against a key-record store and hands accepted
// metrics to Kafka.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/benzaiten/metrics-gate/internal/application"
	"github.com/benzaiten/metrics-gate/internal/config"
	"github.com/benzaiten/metrics-gate/internal/domain/repository"
	"github.com/benzaiten/metrics-gate/internal/domain/service"
	"github.com/benzaiten/metrics-gate/internal/infrastructure/cache"
	"github.com/benzaiten/metrics-gate/internal/infrastructure/monitoring"
	"github.com/benzaiten/metrics-gate/internal/infrastructure/persistence/postgres"
	redisstore "github.com/benzaiten/metrics-gate/internal/infrastructure/persistence/redis"
	"github.com/benzaiten/metrics-gate/internal/infrastructure/queue"
	httpiface "github.com/benzaiten/metrics-gate/internal/interfaces/http"
	"github.com/benzaiten/metrics-gate/internal/interfaces/http/handlers"
	"github.com/benzaiten/metrics-gate/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "directory holding config.yaml")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.NewZapLogger(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	config.Watch(*configPath, func(updated *config.Config) {
		logger.SetLevel(updated.Log.Level)
		log.Info(ctx, "config reloaded", logger.Fields{"log_level": updated.Log.Level})
	})

	shutdownTracing, err := monitoring.InitTracer(&cfg.Tracing, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	db, err := postgres.NewDBConnection(ctx, &cfg.Database, log)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)

	var store repository.KeyRecordStore = postgres.NewKeyRecordRepository(db.DB(), metrics, log)
	checkers := map[string]handlers.HealthChecker{"postgres": db}

	if cfg.Redis.Enabled {
		client, err := redisstore.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer client.Close()
		store = redisstore.NewKeyRecordCache(store, client,
			time.Duration(cfg.Redis.TTLSeconds)*time.Second, log)
	}
	if cfg.Cache.Enabled {
		store = cache.NewLocalKeyRecordCache(store,
			time.Duration(cfg.Cache.TTLSeconds)*time.Second,
			time.Duration(cfg.Cache.CleanupInterval)*time.Second)
	}

	sink := queue.NewKafkaSink(&cfg.Kafka, log)
	defer sink.Close()

	validator := application.NewValidator(application.ValidatorConfig{
		Resource:     cfg.Ingest.Resource,
		MaxBodyBytes: cfg.Ingest.MaxBodyBytes,
	}, log)
	authorizer := service.NewAuthorizer(store, log)
	ingest := application.NewIngestService(validator, authorizer, sink, log)

	ingestHandler := handlers.NewIngestHandler(ingest, metrics, log, cfg.Ingest.MaxBodyBytes)
	healthHandler := handlers.NewHealthHandler(checkers, log)

	router := httpiface.NewRouter(cfg, log, ingestHandler, healthHandler)
	router.SetupRoutes()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(router.Run)
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := router.Shutdown(shutdownCtx); err != nil {
			log.Error(shutdownCtx, "http shutdown failed", err)
		}
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Error(shutdownCtx, "tracing shutdown failed", err)
		}
		return nil
	})

	log.Info(ctx, "metrics gate started", logger.Fields{
		"addr":     cfg.Server.Addr(),
		"resource": cfg.Ingest.Resource,
	})
	return g.Wait()
}
