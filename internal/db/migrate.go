package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"

	"skyhero/internal/infra"
)

//go:embed migrations/*.sql
var migrations embed.FS

// goose keeps its dialect, filesystem and logger in package globals.
var gooseMu sync.Mutex

// Migrate applies pending event-store migrations. Stores created by the
// router's own tooling already have the traffic table; the migrations are
// written to adopt them unchanged.
func Migrate(ctx context.Context, db *sql.DB, logger zerolog.Logger) error {
	if db == nil {
		return errors.New("migrate: nil database")
	}
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(infra.GooseLogger{Logger: logger.Level(zerolog.WarnLevel)})
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("configure goose: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	if err := goose.UpContext(runCtx, db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Open opens the event store at path and brings its schema up to date.
func Open(ctx context.Context, path string, logger zerolog.Logger) (*sql.DB, error) {
	conn, err := infra.OpenSQLite(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, conn, logger); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}
