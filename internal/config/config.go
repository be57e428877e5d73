// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Store backends accepted in STORE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendBadger   = "badger"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Owner authentication. ADMIN_PASSWORD may be plaintext or an argon2id PHC hash.
	AdminPassword string        `env:"ADMIN_PASSWORD,required"`
	TokenSecret   string        `env:"TOKEN_SECRET,required"`
	TokenTTL      time.Duration `env:"TOKEN_TTL" envDefault:"24h"`

	// Site document. DataDir is also served under /data/.
	DataDir      string `env:"DATA_DIR" envDefault:"./public"`
	SiteDataPath string `env:"SITE_DATA_PATH" envDefault:"data/site-data.json"`

	// Base URL the static document is fetched from (e.g., https://example.com).
	// Empty means the document is read from DataDir.
	StaticFallbackURL string `env:"STATIC_FALLBACK_URL" envDefault:""`

	// Key-value store for the site cache, click counters and event logs
	StoreBackend string `env:"STORE_BACKEND" envDefault:"badger"`
	RedisURL     string `env:"REDIS_URL"`
	DatabaseURL  string `env:"DATABASE_URL"`
	BadgerPath   string `env:"BADGER_PATH" envDefault:"./badger_data"`
	SQLiteURL    string `env:"SQLITE_URL" envDefault:"file:linkbio.sqlite"`

	// Header the edge proxy sets with the visitor country (ISO 3166-1 alpha-2)
	GeoCountryHeader string `env:"GEO_COUNTRY_HEADER" envDefault:"CF-IPCountry"`

	// Optional click notifications
	NATSURL     string `env:"NATS_URL"`
	NATSSubject string `env:"NATS_SUBJECT" envDefault:"linkbio.clicks"`

	MetricsEnabled bool `env:"METRICS_ENABLED" envDefault:"true"`

	// Request body size limit in bytes for admin endpoints (default 10MB, images are base64)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"10485760"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Validate checks that the selected store backend has what it needs.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory, BackendBadger, BackendSQLite:
		return nil
	case BackendRedis:
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required for the redis store backend")
		}
		return nil
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres store backend")
		}
		return nil
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
}

// Load parses environment variables and returns a Config.
// A .env file in the working directory is loaded first when present.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
