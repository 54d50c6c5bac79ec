// Package postgres implements the key-record store over PostgreSQL.
package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/benzaiten/metrics-gate/internal/config"
	"github.com/benzaiten/metrics-gate/pkg/logger"
)

// DBConnection manages the PostgreSQL connection pool lifecycle.
type DBConnection struct {
	db     *gorm.DB
	config *config.DatabaseConfig
	logger logger.Logger
}

// NewDBConnection opens the database, configures the pool and verifies
// connectivity with an initial ping.
func NewDBConnection(ctx context.Context, cfg *config.DatabaseConfig, log logger.Logger) (*DBConnection, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil database config")
	}

	log = log.WithComponent("postgres")
	log.Info(ctx, "opening postgres connection", logger.Fields{
		"host":     cfg.Host,
		"port":     cfg.Port,
		"database": cfg.Database,
	})

	db, err := gorm.Open(postgres.Open(cfg.GetDSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("unwrap sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxConns)
	sqlDB.SetMaxIdleConns(cfg.MinConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxConnLifetime) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.MaxConnIdleTime) * time.Minute)

	conn := &DBConnection{db: db, config: cfg, logger: log}
	if err := conn.Ping(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	log.Info(ctx, "postgres connection ready")
	return conn, nil
}

// DB returns the underlying gorm handle for repository implementations.
func (c *DBConnection) DB() *gorm.DB {
	return c.db
}

// Ping verifies database connectivity.
func (c *DBConnection) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(pingCtx); err != nil {
		c.logger.Error(ctx, "database ping failed", err)
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// HealthCheck reports pool statistics for the readiness endpoint.
func (c *DBConnection) HealthCheck(ctx context.Context) (map[string]interface{}, error) {
	if err := c.Ping(ctx); err != nil {
		return nil, err
	}

	sqlDB, err := c.db.DB()
	if err != nil {
		return nil, err
	}
	stats := sqlDB.Stats()
	return map[string]interface{}{
		"status":           "healthy",
		"open_connections": stats.OpenConnections,
		"in_use":           stats.InUse,
		"idle":             stats.Idle,
		"max_open":         stats.MaxOpenConnections,
		"wait_count":       stats.WaitCount,
		"wait_duration_ms": stats.WaitDuration.Milliseconds(),
	}, nil
}

// Close shuts the pool down. Called during application shutdown.
func (c *DBConnection) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	c.logger.Info(context.Background(), "closing postgres connection")
	return sqlDB.Close()
}
