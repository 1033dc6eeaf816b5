// Package migrate applies the embedded goose migrations of the ledger schema.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/pressly/goose/v3"

	"github.com/angelmondragon/chatshop/pkg/config"
)

// SourceDir is where migration files live in the repository.
const SourceDir = "pkg/migrate/migrations"

const embeddedDir = "migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// goose keeps dialect and base FS in package globals.
var gooseMu sync.Mutex

// Dialect maps a configured db driver onto the goose dialect name.
func Dialect(driver string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case config.DriverPostgres:
		return "postgres", nil
	case config.DriverSQLite, "":
		return "sqlite3", nil
	}
	return "", fmt.Errorf("unsupported db driver %q", driver)
}

func withGoose(driver string, fn func() error) error {
	dialect, err := Dialect(driver)
	if err != nil {
		return err
	}
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(embedded)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return fn()
}

// Run executes a goose command against the embedded migrations.
func Run(ctx context.Context, db *sql.DB, driver string, command string, args ...string) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	return withGoose(driver, func() error {
		if err := goose.RunContext(ctx, command, db, embeddedDir, args...); err != nil {
			return fmt.Errorf("goose %s: %w", command, err)
		}
		return nil
	})
}

// Version returns the current schema version.
func Version(ctx context.Context, db *sql.DB, driver string) (int64, error) {
	if db == nil {
		return 0, fmt.Errorf("db is required")
	}
	var version int64
	err := withGoose(driver, func() error {
		v, err := goose.GetDBVersionContext(ctx, db)
		if err != nil {
			return fmt.Errorf("get db version: %w", err)
		}
		version = v
		return nil
	})
	return version, err
}

// MigrateToVersion migrates up or down to the requested version.
func MigrateToVersion(ctx context.Context, db *sql.DB, driver string, targetVersion string) error {
	if targetVersion == "" {
		return fmt.Errorf("targetVersion is required")
	}
	target, err := strconv.ParseInt(targetVersion, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", targetVersion, err)
	}
	current, err := Version(ctx, db, driver)
	if err != nil {
		return err
	}

	return withGoose(driver, func() error {
		switch {
		case current == target:
			return nil
		case current < target:
			if err := goose.UpToContext(ctx, db, embeddedDir, target); err != nil {
				return fmt.Errorf("goose up-to %d: %w", target, err)
			}
		default:
			if err := goose.DownToContext(ctx, db, embeddedDir, target); err != nil {
				return fmt.Errorf("goose down-to %d: %w", target, err)
			}
		}
		return nil
	})
}
