// Package config provides centralized configuration management for the service.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Queue    QueueConfig
	Store    StoreConfig
	Database DatabaseConfig
	Events   EventsConfig
	Source   SourceConfig
	Ingest   IngestConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing a response (default: 0, batches can run long)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for non-ingest requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`

	// TrustedProxies lists CIDRs whose X-Real-IP / X-Forwarded-For headers are honored
	TrustedProxies []string `env:"SERVER_TRUSTED_PROXIES"`
}

// QueueConfig holds the record queue destination.
type QueueConfig struct {
	// URL is kafka://host:port[,host:port]/topic (required)
	URL string `env:"QUEUE_URL" required:"true"`
}

// StoreConfig selects and tunes the key-value store.
type StoreConfig struct {
	// Backend is postgres or redis (default: postgres)
	Backend string `env:"STORE_BACKEND" default:"postgres"`

	// MissingIDPolicy is skip or sentinel (default: skip)
	MissingIDPolicy string `env:"MISSING_ID_POLICY" default:"skip"`

	// SentinelKey is the key used by the sentinel policy (default: default-systemid)
	SentinelKey string `env:"SENTINEL_KEY" default:"default-systemid"`

	// RedisURL is redis://... or host:port, required for the redis backend
	RedisURL string `env:"REDIS_URL"`

	// RedisPrefix namespaces item hashes (default: gti:instrument:)
	RedisPrefix string `env:"REDIS_KEY_PREFIX" default:"gti:instrument:"`
}

// DatabaseConfig holds PostgreSQL connection settings for the postgres backend.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// EnsureSchema creates the items table on startup (default: true)
	EnsureSchema bool `env:"DB_ENSURE_SCHEMA" default:"true"`
}

// EventsConfig holds NATS settings for the event bus.
type EventsConfig struct {
	// NATSURL is the NATS server URL (default: nats://127.0.0.1:4222)
	NATSURL string `env:"NATS_URL" default:"nats://127.0.0.1:4222"`

	// Subject receives CollateralChanged events (default: collateral.changed)
	Subject string `env:"EVENT_SUBJECT" default:"collateral.changed"`

	// Stream is the JetStream stream capturing Subject (default: COLLATERAL)
	Stream string `env:"EVENT_STREAM" default:"COLLATERAL"`

	// Consume starts the logging consumer in serve mode (default: false)
	Consume bool `env:"EVENTS_CONSUME" default:"false"`
}

// SourceConfig selects where CSV files are read from.
type SourceConfig struct {
	// Backend is objectstore or dir (default: objectstore)
	Backend string `env:"SOURCE_BACKEND" default:"objectstore"`

	// Bucket is the NATS object store bucket (default: guarantee-csv)
	Bucket string `env:"SOURCE_BUCKET" default:"guarantee-csv"`

	// Dir is the local directory for the dir backend
	Dir string `env:"SOURCE_DIR"`
}

// IngestConfig tunes the pipeline.
type IngestConfig struct {
	// SinkTimeout bounds each sink dispatch (default: 10s)
	SinkTimeout time.Duration `env:"SINK_TIMEOUT" default:"10s"`

	// BatchTimeout bounds a whole batch (default: 15m)
	BatchTimeout time.Duration `env:"BATCH_TIMEOUT" default:"15m"`

	// VerifyKey is looked up in the store after every batch when set
	VerifyKey string `env:"VERIFY_KEY"`

	// AliasFile is an optional YAML alias table replacing the built-in aliases
	AliasFile string `env:"ALIAS_FILE"`
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
