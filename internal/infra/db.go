package infra

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteDriver = "sqlite"

// OpenSQLite opens (creating if needed) a read-write SQLite database at path.
// A single connection keeps writers serialized inside one process.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	dsn := "file:" + escapePath(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(DELETE)"
	db, err := sql.Open(sqliteDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(time.Minute)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}
	return db, nil
}

// OpenSQLiteReadOnly opens an existing database without any ability to write
// to it. A missing file yields os.ErrNotExist.
func OpenSQLiteReadOnly(ctx context.Context, path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	dsn := "file:" + escapePath(path) + "?mode=ro&_pragma=query_only(1)"
	db, err := sql.Open(sqliteDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite read-only: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect sqlite read-only: %w", err)
	}
	return db, nil
}

// QuickCheck runs SQLite's fast consistency scan against the file at path.
// A missing file, an unopenable file and any result other than a single "ok"
// row all report unhealthy; err carries the reason.
func QuickCheck(ctx context.Context, path string) (bool, error) {
	db, err := OpenSQLiteReadOnly(ctx, path)
	if err != nil {
		return false, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, "PRAGMA quick_check")
	if err != nil {
		return false, fmt.Errorf("quick_check: %w", err)
	}
	defer rows.Close()

	var results []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return false, fmt.Errorf("quick_check scan: %w", err)
		}
		results = append(results, line)
	}
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("quick_check rows: %w", err)
	}
	if len(results) != 1 || results[0] != "ok" {
		return false, fmt.Errorf("quick_check: %s", strings.Join(results, "; "))
	}
	return true, nil
}

// IsNoRows reports whether err signals an empty single-row result.
func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func escapePath(path string) string {
	return (&url.URL{Path: path}).EscapedPath()
}
