package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

const (
	EnvLocal  = "local"
	EnvDocker = "docker"

	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// Server configures the reference inventory backend.
type Server struct {
	AppEnv          string        `env:"APP_ENV" envDefault:"local"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	GRPCAddr        string        `env:"GRPC_ADDR" envDefault:":50051"`
	MySQLDSN        string        `env:"MYSQL_DSN" envDefault:"root:root@tcp(localhost:3306)/inventory?parseTime=true"`
	KafkaBrokers    []string      `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic      string        `env:"KAFKA_TOPIC" envDefault:"inventory.movements"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`
	Tracing         Tracing
}

// Client configures the inventory service core and its collaborators.
type Client struct {
	AppEnv         string        `env:"APP_ENV" envDefault:"local"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	APIBaseURL     string        `env:"INVENTORY_API_URL" envDefault:"http://localhost:8080"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`
	CacheBackend   string        `env:"CACHE_BACKEND" envDefault:"memory"`
	CacheTTL       time.Duration `env:"CACHE_TTL" envDefault:"5m"`
	StockCacheTTL  time.Duration `env:"STOCK_CACHE_TTL" envDefault:"1m"`
	RedisAddr      string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	BatchSize      int           `env:"BATCH_SIZE" envDefault:"10"`
	BatchDelay     time.Duration `env:"BATCH_DELAY" envDefault:"100ms"`
	HistoryLimit   int           `env:"STATS_HISTORY_LIMIT" envDefault:"1000"`
	PendingMaxAge  time.Duration `env:"PENDING_MAX_AGE" envDefault:"2m"`
	Tracing        Tracing
}

type Tracing struct {
	Enabled       bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTLPEndpoint  string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	SamplingRatio float64 `env:"OTEL_SAMPLING_RATIO" envDefault:"1.0"`
}

func LoadServer() (Server, error) {
	var cfg Server
	if err := env.Parse(&cfg); err != nil {
		return Server{}, fmt.Errorf("parse server config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

func LoadClient() (Client, error) {
	var cfg Client
	if err := env.Parse(&cfg); err != nil {
		return Client{}, fmt.Errorf("parse client config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Client{}, err
	}
	return cfg, nil
}

func validateEnv(appEnv string) error {
	if appEnv != EnvLocal && appEnv != EnvDocker {
		return fmt.Errorf("invalid APP_ENV: %s (must be 'local' or 'docker')", appEnv)
	}
	return nil
}

func (c Server) Validate() error {
	if err := validateEnv(c.AppEnv); err != nil {
		return err
	}
	if c.HTTPAddr == "" {
		return errors.New("HTTP_ADDR is required")
	}
	if c.MySQLDSN == "" {
		return errors.New("MYSQL_DSN is required")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("SHUTDOWN_TIMEOUT must be positive")
	}
	return nil
}

func (c Client) Validate() error {
	if err := validateEnv(c.AppEnv); err != nil {
		return err
	}
	if c.APIBaseURL == "" {
		return errors.New("INVENTORY_API_URL is required")
	}
	if c.CacheBackend != CacheBackendMemory && c.CacheBackend != CacheBackendRedis {
		return fmt.Errorf("invalid CACHE_BACKEND: %s (must be 'memory' or 'redis')", c.CacheBackend)
	}
	if c.BatchSize <= 0 {
		return errors.New("BATCH_SIZE must be positive")
	}
	if c.CacheTTL <= 0 || c.StockCacheTTL <= 0 {
		return errors.New("CACHE_TTL and STOCK_CACHE_TTL must be positive")
	}
	if c.BatchDelay < 0 {
		return errors.New("BATCH_DELAY must not be negative")
	}
	if c.HistoryLimit <= 0 {
		return errors.New("STATS_HISTORY_LIMIT must be positive")
	}
	if c.PendingMaxAge <= 0 {
		return errors.New("PENDING_MAX_AGE must be positive")
	}
	return nil
}
