package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store backends selectable through STORE_BACKEND.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds all configuration values for the server.
type Config struct {
	Port           string   `env:"PORT" envDefault:"8080"`
	StoreBackend   string   `env:"STORE_BACKEND" envDefault:"postgres"`
	PostgresDSN    string   `env:"POSTGRES_DSN"`
	ElasticURL     string   `env:"ELASTIC_URL"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://localhost:5173"`

	SyncInterval     time.Duration `env:"SYNC_INTERVAL" envDefault:"1s"`
	SyncBatchSize    int           `env:"SYNC_BATCH_SIZE" envDefault:"200"`
	DLQRetryInterval time.Duration `env:"DLQ_RETRY_INTERVAL" envDefault:"30s"`

	SeedDemo bool `env:"SEED_DEMO" envDefault:"false"`
}

// Load reads .env (if present) and the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return Parse()
}

// Parse reads the process environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements.
func (c Config) Validate() error {
	switch c.StoreBackend {
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required for the %s backend", BackendPostgres)
		}
	case BackendMemory:
		if c.ElasticURL != "" {
			return fmt.Errorf("ELASTIC_URL requires the %s backend", BackendPostgres)
		}
	default:
		return fmt.Errorf("invalid STORE_BACKEND %q", c.StoreBackend)
	}
	if c.SyncInterval <= 0 {
		return fmt.Errorf("SYNC_INTERVAL must be positive")
	}
	if c.SyncBatchSize <= 0 {
		return fmt.Errorf("SYNC_BATCH_SIZE must be positive")
	}
	if c.DLQRetryInterval <= 0 {
		return fmt.Errorf("DLQ_RETRY_INTERVAL must be positive")
	}
	return nil
}

// SearchSyncEnabled reports whether match changes are mirrored to Elasticsearch.
func (c Config) SearchSyncEnabled() bool {
	return c.StoreBackend == BackendPostgres && c.ElasticURL != ""
}
