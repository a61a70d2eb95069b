package repo

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/rs/zerolog"

	"skyhero/internal/domain"
	"skyhero/internal/infra"
	"skyhero/internal/sqlinline"
)

// SourceRepositorySQLite reads the router-owned traffic database. Every call
// opens the file read-only and closes it afterwards, because the owning
// process may replace it at any time.
type SourceRepositorySQLite struct {
	path   string
	logger zerolog.Logger
}

// NewSourceRepository creates a reader for the volatile store at path.
func NewSourceRepository(path string, logger zerolog.Logger) *SourceRepositorySQLite {
	return &SourceRepositorySQLite{path: path, logger: logger}
}

// StreamEvents calls fn with batches of events whose timestamp is >= since.
// A missing source file yields domain.ErrSourceUnavailable.
func (r *SourceRepositorySQLite) StreamEvents(ctx context.Context, since int64, batchSize int, fn func([]domain.TrafficEvent) error) error {
	if batchSize <= 0 {
		batchSize = 1000
	}
	db, err := infra.OpenSQLiteReadOnly(ctx, r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", r.path, domain.ErrSourceUnavailable)
		}
		return fmt.Errorf("open source: %w", err)
	}
	defer db.Close()

	runner := infra.NewSQLRunner(db, r.logger)
	rows, err := runner.Query(ctx, sqlinline.QSelectSourceEventsSince, since)
	if err != nil {
		return fmt.Errorf("select source events: %w", err)
	}
	defer rows.Close()

	batch := make([]domain.TrafficEvent, 0, batchSize)
	for rows.Next() {
		var e domain.TrafficEvent
		if err := rows.Scan(&e.MAC, &e.AppName, &e.CatName, &e.Timestamp, &e.TxBytes, &e.RxBytes); err != nil {
			return fmt.Errorf("scan source event: %w", err)
		}
		batch = append(batch, e)
		if len(batch) == batchSize {
			if err := fn(batch); err != nil {
				return err
			}
			batch = make([]domain.TrafficEvent, 0, batchSize)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read source events: %w", err)
	}
	if len(batch) > 0 {
		return fn(batch)
	}
	return nil
}

var _ domain.SourceReader = (*SourceRepositorySQLite)(nil)
