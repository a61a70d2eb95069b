package infra

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

// SQLExecutor defines the contract repositories use for executing SQL.
type SQLExecutor interface {
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRow(ctx context.Context, query string, args ...any) Row
	Query(ctx context.Context, query string, args ...any) (Rows, error)
	ExecBatch(ctx context.Context, query string, argSets [][]any) (int64, error)
}

// Row is the subset of *sql.Row the repositories rely on.
type Row interface {
	Scan(dest ...any) error
}

// Rows is the subset of *sql.Rows the repositories rely on.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

var markerRegexp = regexp.MustCompile(`^--sql [0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// SQLRunner refuses unmarked statements and logs each one by its marker.
type SQLRunner struct {
	DB     *sql.DB
	Logger zerolog.Logger

	q queryer
}

func NewSQLRunner(db *sql.DB, logger zerolog.Logger) *SQLRunner {
	return &SQLRunner{DB: db, Logger: logger, q: db}
}

// InTx runs fn against a runner bound to a single transaction, committing when
// fn returns nil and rolling back otherwise.
func (r *SQLRunner) InTx(ctx context.Context, fn func(SQLExecutor) error) error {
	if r.DB == nil {
		return errors.New("sql runner: no database")
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	txRunner := &SQLRunner{DB: r.DB, Logger: r.Logger, q: tx}
	if err := fn(txRunner); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.Logger.Error().Err(rbErr).Msg("sql: rollback failed")
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *SQLRunner) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	marker, trimmed, err := extractMarker(query)
	if err != nil {
		return nil, err
	}
	r.Logger.Debug().Msgf("sql[%s] exec", marker)
	res, err := r.q.ExecContext(ctx, trimmed, args...)
	if err != nil {
		r.Logger.Error().Err(err).Msgf("sql[%s] error", marker)
		return nil, err
	}
	r.Logger.Debug().Msgf("sql[%s] ok", marker)
	return res, nil
}

// ExecBatch prepares query once and executes it for every argument set,
// returning the summed affected row count. Run it inside InTx to make the
// batch atomic.
func (r *SQLRunner) ExecBatch(ctx context.Context, query string, argSets [][]any) (int64, error) {
	marker, trimmed, err := extractMarker(query)
	if err != nil {
		return 0, err
	}
	r.Logger.Debug().Int("rows", len(argSets)).Msgf("sql[%s] exec_batch", marker)
	stmt, err := r.q.PrepareContext(ctx, trimmed)
	if err != nil {
		r.Logger.Error().Err(err).Msgf("sql[%s] error", marker)
		return 0, err
	}
	defer stmt.Close()

	var affected int64
	for _, args := range argSets {
		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			r.Logger.Error().Err(err).Msgf("sql[%s] error", marker)
			return affected, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return affected, err
		}
		affected += n
	}
	r.Logger.Debug().Int64("affected", affected).Msgf("sql[%s] ok", marker)
	return affected, nil
}

func (r *SQLRunner) QueryRow(ctx context.Context, query string, args ...any) Row {
	marker, trimmed, err := extractMarker(query)
	if err != nil {
		return errorRow{err: err}
	}
	r.Logger.Debug().Msgf("sql[%s] query_row", marker)
	row := r.q.QueryRowContext(ctx, trimmed, args...)
	return loggingRow{row: row, logger: r.Logger, marker: marker}
}

func (r *SQLRunner) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	marker, trimmed, err := extractMarker(query)
	if err != nil {
		return nil, err
	}
	r.Logger.Debug().Msgf("sql[%s] query", marker)
	rows, err := r.q.QueryContext(ctx, trimmed, args...)
	if err != nil {
		r.Logger.Error().Err(err).Msgf("sql[%s] error", marker)
		return nil, err
	}
	return loggingRows{Rows: rows, logger: r.Logger, marker: marker}, nil
}

type loggingRow struct {
	row    *sql.Row
	logger zerolog.Logger
	marker string
}

func (l loggingRow) Scan(dest ...any) error {
	err := l.row.Scan(dest...)
	if err != nil && !IsNoRows(err) {
		l.logger.Error().Err(err).Msgf("sql[%s] scan error", l.marker)
	}
	return err
}

type loggingRows struct {
	*sql.Rows
	logger zerolog.Logger
	marker string
}

func (l loggingRows) Close() error {
	l.logger.Debug().Msgf("sql[%s] rows close", l.marker)
	return l.Rows.Close()
}

type errorRow struct {
	err error
}

func (e errorRow) Scan(dest ...any) error {
	return e.err
}

func extractMarker(query string) (string, string, error) {
	trimmed := strings.TrimSpace(query)
	lines := strings.Split(trimmed, "\n")
	if len(lines) == 0 {
		return "", "", errors.New("empty query")
	}
	markerLine := strings.TrimSpace(lines[0])
	if !markerRegexp.MatchString(markerLine) {
		return "", "", errors.New("sql marker missing or invalid")
	}
	return strings.TrimSpace(strings.TrimPrefix(markerLine, "--sql ")), strings.Join(lines[1:], "\n"), nil
}

var _ SQLExecutor = (*SQLRunner)(nil)
