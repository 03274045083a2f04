// Package datastore opens the SQL database shared by the book cache, the
// reading library and reviews, and keeps its schema migrated.
package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ErrUnknownDriver is returned by Open for drivers other than sqlite and postgres.
var ErrUnknownDriver = errors.New("unknown database driver")

const sqlitePragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"

// DB wraps *sql.DB with the dialect it was opened with.
type DB struct {
	*sql.DB
	driver string
}

// Open connects to the database, verifies the connection and applies all
// pending migrations.
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	sqlDriver, sqlDSN, err := resolveDriver(driver, dsn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(sqlDriver, sqlDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	if err := db.PingContext(ctx); err != nil {
		closeErr := db.Close()
		return nil, errors.Join(fmt.Errorf("failed to connect to database: %w", err), closeErr)
	}

	store := &DB{DB: db, driver: driver}
	if err := store.Migrate(ctx); err != nil {
		closeErr := db.Close()
		return nil, errors.Join(err, closeErr)
	}

	slog.Debug("Database ready", "driver", driver)
	return store, nil
}

// Driver returns the driver name the database was opened with.
func (d *DB) Driver() string {
	return d.driver
}

// Rebind rewrites ? placeholders into the form expected by the driver.
func (d *DB) Rebind(query string) string {
	return Rebind(d.driver, query)
}

// Rebind rewrites ? placeholders to $1, $2, ... for postgres. Queries for
// other drivers are returned unchanged.
func Rebind(driver, query string) string {
	if driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func resolveDriver(driver, dsn string) (string, string, error) {
	switch driver {
	case DriverSQLite:
		if dsn == "" {
			dsn = "bookhaven.db"
		}
		return "sqlite", withSQLitePragmas(dsn), nil
	case DriverPostgres:
		if dsn == "" {
			return "", "", fmt.Errorf("postgres requires a dsn")
		}
		return "pgx", dsn, nil
	default:
		return "", "", fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

func withSQLitePragmas(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&" + sqlitePragmas
	}
	return dsn + "?" + sqlitePragmas
}
