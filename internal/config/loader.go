package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"
)

var (
	durationType = reflect.TypeOf(time.Duration(0))
	timeType     = reflect.TypeOf(time.Time{})
)

// Load builds a Config from the environment, filling unset fields from
// their default tags, and validates it.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := populate(reflect.ValueOf(cfg).Elem(), os.Getenv); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// lookup resolves a field's raw value: env, then envAlt, then default.
func lookup(tag reflect.StructTag, getenv func(string) string) (string, error) {
	name := tag.Get("env")
	if v := getenv(name); v != "" {
		return v, nil
	}
	if alt := tag.Get("envAlt"); alt != "" {
		if v := getenv(alt); v != "" {
			return v, nil
		}
	}
	if tag.Get("required") == "true" {
		return "", fmt.Errorf("required environment variable %s is not set", name)
	}
	return tag.Get("default"), nil
}

// populate walks v's exported fields, descending into nested sections.
func populate(v reflect.Value, getenv func(string) string) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf, fv := t.Field(i), v.Field(i)
		if !fv.CanSet() {
			continue
		}

		if sf.Type.Kind() == reflect.Struct && sf.Type != timeType {
			if err := populate(fv, getenv); err != nil {
				return err
			}
			continue
		}

		name := sf.Tag.Get("env")
		if name == "" {
			continue
		}
		raw, err := lookup(sf.Tag, getenv)
		if err != nil {
			return err
		}
		if raw == "" {
			continue
		}
		if err := assign(fv, raw); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", name, raw, err)
		}
	}
	return nil
}

// assign parses raw into field according to the field's type.
func assign(field reflect.Value, raw string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Int, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetUint(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice of %s", field.Type().Elem().Kind())
		}
		field.Set(reflect.ValueOf(splitList(raw)))
	default:
		return fmt.Errorf("unsupported field type %s", field.Kind())
	}
	return nil
}

// splitList splits a comma-separated list, dropping empty entries.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func oneOf(value string, allowed ...string) bool {
	return slices.Contains(allowed, strings.ToLower(value))
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	db := c.Database
	check(db.URL != "", "DATABASE_URL is required")
	check(db.MaxConns > 0, "DB_MAX_CONNS must be positive")
	check(db.MinConns >= 0, "DB_MIN_CONNS must be non-negative")
	check(db.MaxConns >= db.MinConns, "DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)", db.MaxConns, db.MinConns)
	check(db.MigrationForce >= 0, "DB_MIGRATION_FORCE must be non-negative")

	srv := c.Server
	check(srv.Port > 0 && srv.Port <= 65535, "SERVER_PORT (%d) must be 1-65535", srv.Port)
	check(srv.ReadTimeout >= 0, "SERVER_READ_TIMEOUT must be non-negative")
	check(srv.ShutdownTimeout > 0, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	check(srv.RequestTimeout > 0, "SERVER_REQUEST_TIMEOUT must be positive")

	in := c.Ingest
	check(in.MaxConcurrent > 0, "INGEST_MAX_CONCURRENT must be positive")
	check(in.MaxWaitTime > 0, "INGEST_MAX_WAIT_TIME must be positive")
	check(in.Timeout > 0, "INGEST_TIMEOUT must be positive")
	check(in.MaxBodySize > 0, "INGEST_MAX_BODY_SIZE must be positive")
	check(in.MaxLines > 0, "INGEST_MAX_LINES must be positive")

	check(oneOf(c.Catalog.Locking, "none", "advisory"),
		"CATALOG_LOCKING (%q) must be one of: none, advisory", c.Catalog.Locking)

	check(!c.Security.RequireAPIKey || len(c.Security.APIKeys) > 0,
		"REQUIRE_API_KEY is set but API_KEYS is empty")

	check(oneOf(c.Logging.Level, "debug", "info", "warn", "error"),
		"LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level)
	check(oneOf(c.Logging.Format, "text", "json"),
		"LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format)

	return errors.Join(errs...)
}

// String renders the config for logs with the database URL and API keys
// masked.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Server: {Host: %q, Port: %d}, "+
		"Database: {URL: [MASKED], MaxConns: %d, MinConns: %d, AutoMigrate: %v}, "+
		"Ingest: {MaxConcurrent: %d, Timeout: %s, MaxLines: %d}, "+
		"Catalog: {Locking: %q}, "+
		"Security: {RequireAPIKey: %v, APIKeys: %d configured}, "+
		"Logging: {Level: %q, Format: %q}}",
		c.Server.Host, c.Server.Port,
		c.Database.MaxConns, c.Database.MinConns, c.Database.AutoMigrate,
		c.Ingest.MaxConcurrent, c.Ingest.Timeout, c.Ingest.MaxLines,
		c.Catalog.Locking,
		c.Security.RequireAPIKey, len(c.Security.APIKeys),
		c.Logging.Level, c.Logging.Format,
	)
}
