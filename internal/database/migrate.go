// Package database owns the schema and applies it with golang-migrate.
package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

// MigrationLogger adapts slog to migrate.Logger.
type MigrationLogger struct {
	Logger *slog.Logger
}

// Printf logs a migrate progress line at info level.
func (l MigrationLogger) Printf(format string, v ...any) {
	l.Logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "migrate")
}

// Verbose reports whether migrate should emit per-step output.
func (l MigrationLogger) Verbose() bool {
	return l.Logger.Enabled(context.Background(), slog.LevelDebug)
}

// MigrationConfig selects the target schema version.
type MigrationConfig struct {
	Version uint // 0 migrates to the latest version
	Force   int  // non-zero forces the recorded version before migrating
}

// Migrator applies the embedded migrations to one database.
type Migrator struct {
	config MigrationConfig
	logger *slog.Logger
}

// NewMigrator returns a migrator that logs through logger.
func NewMigrator(logger *slog.Logger, config MigrationConfig) *Migrator {
	return &Migrator{config: config, logger: logger}
}

// MigrateURL converts a postgres:// connection string to the scheme the
// migrate pgx/v5 driver registers.
func MigrateURL(databaseURL string) (string, error) {
	for _, prefix := range []string{"postgres://", "postgresql://", "pgx5://"} {
		if rest, ok := strings.CutPrefix(databaseURL, prefix); ok {
			return "pgx5://" + rest, nil
		}
	}
	return "", fmt.Errorf("unsupported database url scheme in %q", redact(databaseURL))
}

// redact hides the password of a URL-style connection string.
func redact(databaseURL string) string {
	return passwordRe.ReplaceAllString(databaseURL, "$1:***@")
}

var passwordRe = regexp.MustCompile(`(//[^:/@]+):[^@]*@`)

// Migrate brings the schema at databaseURL to the configured version.
func (m *Migrator) Migrate(databaseURL string) error {
	url, err := MigrateURL(databaseURL)
	if err != nil {
		return err
	}

	src, err := iofs.New(migrationsFS, migrationsDir)
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}

	mg, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		m.logger.Error("failed to create migrate instance", "error", err)
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer func() {
		srcErr, dbErr := mg.Close()
		if srcErr != nil || dbErr != nil {
			m.logger.Warn("failed to close migrate instance", "source_error", srcErr, "db_error", dbErr)
		}
	}()

	mg.Log = MigrationLogger{Logger: m.logger}
	return m.run(mg)
}

func (m *Migrator) run(mg *migrate.Migrate) error {
	if m.config.Force != 0 {
		if err := mg.Force(m.config.Force); err != nil {
			return fmt.Errorf("force version %d: %w", m.config.Force, err)
		}
	}

	start := time.Now()
	var err error
	if m.config.Version != 0 {
		err = mg.Migrate(m.config.Version)
	} else {
		err = mg.Up()
	}

	switch {
	case err == nil:
		m.logger.Info("applied migrations", "duration", time.Since(start))
		return nil
	case errors.Is(err, migrate.ErrNoChange):
		m.logger.Info("no new migrations to apply")
		return nil
	}

	version, dirty, verr := mg.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		m.logger.Error("failed to read migration version", "error", verr)
	}
	m.logger.Error("migration failed", "error", err, "version", version, "dirty", dirty)
	return fmt.Errorf("migrate: %w", err)
}

var upFileRe = regexp.MustCompile(`^(\d+)_.*\.up\.sql$`)

// LatestVersion returns the highest version among the embedded migrations.
func LatestVersion() (uint, error) {
	return latestVersion(migrationsFS, migrationsDir)
}

func latestVersion(fsys fs.FS, dir string) (uint, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return 0, err
	}

	var versions []uint64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		match := upFileRe.FindStringSubmatch(e.Name())
		if match == nil {
			continue
		}
		v, err := strconv.ParseUint(match[1], 10, 32)
		if err != nil {
			return 0, fmt.Errorf("migration %s: %w", e.Name(), err)
		}
		versions = append(versions, v)
	}
	if len(versions) == 0 {
		return 0, errors.New("no migration files found")
	}

	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	return uint(versions[len(versions)-1]), nil
}
