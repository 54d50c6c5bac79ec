package config

import (
	"fmt"

	"github.com/benzaiten/metrics-gate/pkg/constants"
)

// Config holds the application's configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	Log      LogConfig      `mapstructure:"log"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // in seconds
	WriteTimeout int    `mapstructure:"write_timeout"` // in seconds
	EnablePprof  bool   `mapstructure:"enable_pprof"`
}

func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxConns        int    `mapstructure:"max_conns"`
	MinConns        int    `mapstructure:"min_conns"`
	MaxConnLifetime int    `mapstructure:"max_conn_lifetime"`  // in minutes
	MaxConnIdleTime int    `mapstructure:"max_conn_idle_time"` // in minutes
}

func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

type RedisConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Address      string `mapstructure:"address"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	TTLSeconds   int    `mapstructure:"ttl_seconds"`
}

// CacheConfig tunes the in-process key-record cache sitting in front of Redis
// and the database.
type CacheConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	TTLSeconds      int  `mapstructure:"ttl_seconds"`
	CleanupInterval int  `mapstructure:"cleanup_interval"` // in seconds
}

type KafkaConfig struct {
	Brokers      []string `mapstructure:"brokers"`
	Topic        string   `mapstructure:"topic"`
	RequiredAcks int      `mapstructure:"required_acks"`
	BatchTimeout int      `mapstructure:"batch_timeout"` // in milliseconds
}

// IngestConfig bounds what the ingest endpoint accepts.
type IngestConfig struct {
	Resource     string `mapstructure:"resource"`
	MaxBodyBytes int    `mapstructure:"max_body_bytes"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
}

// Validate checks for essential configuration values.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Ingest.MaxBodyBytes <= 0 {
		return fmt.Errorf("ingest.max_body_bytes must be positive, got %d", c.Ingest.MaxBodyBytes)
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers must not be empty")
	}
	if c.Kafka.Topic == "" {
		return fmt.Errorf("kafka.topic must not be empty")
	}
	return nil
}

// SetDefaults applies defaults for everything the file or environment left
// unset.
func SetDefaults(set func(key string, value interface{})) {
	set("server.host", "0.0.0.0")
	set("server.port", 8080)
	set("server.read_timeout", 15)
	set("server.write_timeout", 15)
	set("server.enable_pprof", false)

	set("database.host", "localhost")
	set("database.port", 5432)
	set("database.user", "bztn")
	set("database.database", "bztn")
	set("database.ssl_mode", "disable")
	set("database.max_conns", 10)
	set("database.min_conns", 2)
	set("database.max_conn_lifetime", 30)
	set("database.max_conn_idle_time", 10)

	set("redis.enabled", false)
	set("redis.address", "localhost:6379")
	set("redis.db", 0)
	set("redis.pool_size", 10)
	set("redis.min_idle_conns", 2)
	set("redis.ttl_seconds", 60)

	set("cache.enabled", true)
	set("cache.ttl_seconds", 30)
	set("cache.cleanup_interval", 60)

	set("kafka.brokers", []string{"localhost:9092"})
	set("kafka.topic", "bztn-metrics")
	set("kafka.required_acks", 1)
	set("kafka.batch_timeout", 100)

	set("ingest.resource", constants.DefaultResource)
	set("ingest.max_body_bytes", constants.DefaultMaxBodyBytes)

	set("log.level", "info")
	set("log.format", "json")

	set("tracing.enabled", false)
	set("tracing.jaeger_endpoint", "http://localhost:14268/api/traces")
	set("tracing.service_name", "metrics-gate")
	set("tracing.sample_ratio", 0.1)
}
