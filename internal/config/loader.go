package config

import (
	"fmt"
	"net/url"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Returns an error if required values are missing or validation fails.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration and panics on error.
// Use this only in main() where early termination is desired.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// loadStruct recursively populates struct fields from environment variables.
func loadStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		// Skip unexported fields
		if !fieldVal.CanSet() {
			continue
		}

		// Recurse into nested structs
		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(fieldVal); err != nil {
				return err
			}
			continue
		}

		// Get tags
		envName := field.Tag.Get("env")
		envAlt := field.Tag.Get("envAlt")
		defaultVal := field.Tag.Get("default")
		required := field.Tag.Get("required") == "true"

		if envName == "" {
			continue
		}

		// Try primary env var, then alternate
		value := os.Getenv(envName)
		if value == "" && envAlt != "" {
			value = os.Getenv(envAlt)
		}

		// Apply default if not set
		if value == "" {
			if required {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = defaultVal
		}

		if value == "" {
			continue
		}

		// Set the field value
		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		// Handle time.Duration specially
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			// Split comma-separated values, trim whitespace
			parts := strings.Split(value, ",")
			result := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					result = append(result, p)
				}
			}
			field.Set(reflect.ValueOf(result))
		} else {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// normalize lower-cases enumerated settings so every consumer compares
// against the same spelling.
func (c *Config) normalize() {
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	c.Store.MissingIDPolicy = strings.ToLower(strings.TrimSpace(c.Store.MissingIDPolicy))
	c.Source.Backend = strings.ToLower(strings.TrimSpace(c.Source.Backend))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Queue validation
	if !strings.HasPrefix(c.Queue.URL, "kafka://") {
		errs = append(errs, fmt.Sprintf("QUEUE_URL (%q) must start with kafka://", c.Queue.URL))
	}

	// Store validation
	switch strings.ToLower(c.Store.Backend) {
	case "postgres":
		if c.Database.URL == "" {
			errs = append(errs, "DATABASE_URL is required when STORE_BACKEND is postgres")
		}
		if c.Database.MaxConns < c.Database.MinConns {
			errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
				c.Database.MaxConns, c.Database.MinConns))
		}
		if c.Database.MaxConns <= 0 {
			errs = append(errs, "DB_MAX_CONNS must be positive")
		}
		if c.Database.MinConns < 0 {
			errs = append(errs, "DB_MIN_CONNS must be non-negative")
		}
	case "redis":
		if c.Store.RedisURL == "" {
			errs = append(errs, "REDIS_URL is required when STORE_BACKEND is redis")
		}
	default:
		errs = append(errs, fmt.Sprintf("STORE_BACKEND (%q) must be one of: postgres, redis", c.Store.Backend))
	}

	switch c.Store.MissingIDPolicy {
	case "skip":
	case "sentinel":
		if c.Store.SentinelKey == "" {
			errs = append(errs, "SENTINEL_KEY must be set when MISSING_ID_POLICY is sentinel")
		}
	default:
		errs = append(errs, fmt.Sprintf("MISSING_ID_POLICY (%q) must be one of: skip, sentinel", c.Store.MissingIDPolicy))
	}

	// Events validation
	if c.Events.NATSURL == "" {
		errs = append(errs, "NATS_URL is required")
	}
	if c.Events.Subject == "" {
		errs = append(errs, "EVENT_SUBJECT is required")
	}
	if c.Events.Stream == "" {
		errs = append(errs, "EVENT_STREAM is required")
	}

	// Source validation
	switch strings.ToLower(c.Source.Backend) {
	case "objectstore":
		if c.Source.Bucket == "" {
			errs = append(errs, "SOURCE_BUCKET is required when SOURCE_BACKEND is objectstore")
		}
	case "dir":
		if c.Source.Dir == "" {
			errs = append(errs, "SOURCE_DIR is required when SOURCE_BACKEND is dir")
		}
	default:
		errs = append(errs, fmt.Sprintf("SOURCE_BACKEND (%q) must be one of: objectstore, dir", c.Source.Backend))
	}

	// Ingest validation
	if c.Ingest.SinkTimeout <= 0 {
		errs = append(errs, "SINK_TIMEOUT must be positive")
	}
	if c.Ingest.BatchTimeout <= 0 {
		errs = append(errs, "BATCH_TIMEOUT must be positive")
	}

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// Connection URLs are reduced to their host so credentials never reach logs.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port))
	b.WriteString(fmt.Sprintf("Queue: {URL: %q}, ", c.Queue.URL))
	b.WriteString(fmt.Sprintf("Store: {Backend: %q, MissingIDPolicy: %q, RedisURL: %s}, ",
		c.Store.Backend, c.Store.MissingIDPolicy, maskURL(c.Store.RedisURL)))
	b.WriteString(fmt.Sprintf("Database: {URL: %s, MaxConns: %d, MinConns: %d}, ",
		maskURL(c.Database.URL), c.Database.MaxConns, c.Database.MinConns))
	b.WriteString(fmt.Sprintf("Events: {NATSURL: %s, Subject: %q, Stream: %q, Consume: %v}, ",
		maskURL(c.Events.NATSURL), c.Events.Subject, c.Events.Stream, c.Events.Consume))
	b.WriteString(fmt.Sprintf("Source: {Backend: %q, Bucket: %q, Dir: %q}, ",
		c.Source.Backend, c.Source.Bucket, c.Source.Dir))
	b.WriteString(fmt.Sprintf("Ingest: {SinkTimeout: %s, BatchTimeout: %s, VerifyKey: %q}, ",
		c.Ingest.SinkTimeout, c.Ingest.BatchTimeout, c.Ingest.VerifyKey))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}

// maskURL keeps scheme and host of a connection URL and hides the rest.
func maskURL(raw string) string {
	if raw == "" {
		return `""`
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "[MASKED]"
	}
	return u.Scheme + "://" + u.Host + "/[MASKED]"
}
