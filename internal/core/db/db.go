// Package db opens the SQL policy database and runs its migrations.
//
// SQLite serves single-node deployments and tests, PostgreSQL serves shared
// deployments. Both go through sqlx; queries live in embedded .sql files
// loaded by dotsql, migrations in the top-level migrations package.
package db

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// The policy table is small and written rarely; a handful of connections
// covers the API plus CLI usage.
const (
	maxOpenConns    = 8
	maxIdleConns    = 2
	connMaxIdleTime = 5 * time.Minute
	connMaxLifetime = 30 * time.Minute
)

// Driver names as registered with database/sql.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// ParseURL maps a store URL onto a driver name and data source.
// sqlite://file.db is relative (host+path), sqlite:///abs/file.db absolute.
func ParseURL(dbURL string) (driver, dataSource string, err error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid database URL: %w", err)
	}

	switch u.Scheme {
	case "sqlite":
		dataSource = u.Path
		if u.Host != "" {
			dataSource = u.Host + u.Path
		}
		if dataSource == "" {
			return "", "", fmt.Errorf("sqlite URL has no path: %s", dbURL)
		}
		// busy_timeout makes a second writer wait instead of failing with SQLITE_BUSY.
		return DriverSQLite, dataSource + "?_busy_timeout=5000", nil
	case "postgres":
		return DriverPostgres, dbURL, nil
	default:
		return "", "", fmt.Errorf("unsupported database scheme: %s (expected sqlite or postgres)", u.Scheme)
	}
}

// Open connects to the database and verifies it responds within ctx.
func Open(ctx context.Context, dbURL string) (*sqlx.DB, error) {
	driver, dataSource, err := ParseURL(dbURL)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(driver, dataSource)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxIdleTime(connMaxIdleTime)
	db.SetConnMaxLifetime(connMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
