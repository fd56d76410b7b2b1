// Package config loads application settings from environment variables,
// applies defaults and validates everything at startup.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Ingest   IngestConfig
	Catalog  CatalogConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown, including waiting for
	// in-flight ingests (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for non-ingest requests (default: 30s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"30s"`
}

// DatabaseConfig holds database connection and schema settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required).
	// DB_URL is accepted as an alternative.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"20"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// AutoMigrate applies the embedded schema migrations at startup (default: true)
	AutoMigrate bool `env:"DB_AUTO_MIGRATE" default:"true"`

	// MigrationVersion pins the schema version; 0 means latest.
	MigrationVersion uint `env:"DB_MIGRATION_VERSION" default:"0"`

	// MigrationForce forces the recorded version before migrating; 0 disables.
	MigrationForce int `env:"DB_MIGRATION_FORCE" default:"0"`
}

// IngestConfig holds template ingestion settings.
type IngestConfig struct {
	// MaxConcurrent is the number of ingests allowed to run at once (default: 4)
	MaxConcurrent int `env:"INGEST_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long a request waits for an ingest slot (default: 30s)
	MaxWaitTime time.Duration `env:"INGEST_MAX_WAIT_TIME" default:"30s"`

	// Timeout bounds a single ingest transaction (default: 2m)
	Timeout time.Duration `env:"INGEST_TIMEOUT" default:"2m"`

	// MaxBodySize caps the JSON request body in bytes (default: 16MB)
	MaxBodySize int64 `env:"INGEST_MAX_BODY_SIZE" default:"16777216"`

	// MaxLines caps the number of flat lines per template (default: 100000)
	MaxLines int `env:"INGEST_MAX_LINES" default:"100000"`
}

// CatalogConfig holds parameter type catalog settings.
type CatalogConfig struct {
	// Locking is "none" or "advisory" (default: none)
	Locking string `env:"CATALOG_LOCKING" default:"none"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// RequireAPIKey gates /api routes behind X-API-Key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`

	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
