package repo

import (
	"context"
	"database/sql"
	"fmt"

	"skyhero/internal/domain"
	"skyhero/internal/infra"
	"skyhero/internal/sqlinline"
)

// EventRepositorySQLite implements domain.EventReader and domain.EventWriter
// over the local event store.
type EventRepositorySQLite struct {
	sql *infra.SQLRunner
}

// NewEventRepository creates a new event repository backed by SQLite.
func NewEventRepository(runner *infra.SQLRunner) *EventRepositorySQLite {
	return &EventRepositorySQLite{sql: runner}
}

// InsertIgnore inserts events in one transaction, skipping identity-key
// conflicts, and returns the number of new rows.
func (r *EventRepositorySQLite) InsertIgnore(ctx context.Context, events []domain.TrafficEvent) (int64, error) {
	if len(events) == 0 {
		return 0, nil
	}
	argSets := make([][]any, len(events))
	for i, e := range events {
		argSets[i] = []any{e.MAC, e.AppName, e.CatName, e.Timestamp, e.TxBytes, e.RxBytes}
	}
	var inserted int64
	err := r.sql.InTx(ctx, func(tx infra.SQLExecutor) error {
		n, err := tx.ExecBatch(ctx, sqlinline.QInsertTrafficIgnore, argSets)
		inserted = n
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("insert events: %w", err)
	}
	return inserted, nil
}

func (r *EventRepositorySQLite) DayTotals(ctx context.Context, from, to int64) (domain.ByteTotals, error) {
	var t domain.ByteTotals
	if err := r.sql.QueryRow(ctx, sqlinline.QSelectDayTotals, from, to).Scan(&t.DLBytes, &t.ULBytes, &t.TotalBytes); err != nil {
		return domain.ByteTotals{}, fmt.Errorf("day totals: %w", err)
	}
	return t, nil
}

func (r *EventRepositorySQLite) DeviceTotals(ctx context.Context, from, to int64) ([]domain.DeviceTotals, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QSelectDeviceTotals, from, to)
	if err != nil {
		return nil, fmt.Errorf("device totals: %w", err)
	}
	defer rows.Close()

	var out []domain.DeviceTotals
	for rows.Next() {
		var d domain.DeviceTotals
		if err := rows.Scan(&d.MAC, &d.DLBytes, &d.ULBytes, &d.TotalBytes); err != nil {
			return nil, fmt.Errorf("device totals: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *EventRepositorySQLite) DeviceAppTotals(ctx context.Context, from, to int64) ([]domain.DeviceAppTotal, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QSelectDeviceAppTotals, from, to)
	if err != nil {
		return nil, fmt.Errorf("device app totals: %w", err)
	}
	defer rows.Close()

	var out []domain.DeviceAppTotal
	for rows.Next() {
		var d domain.DeviceAppTotal
		if err := rows.Scan(&d.MAC, &d.AppName, &d.TotalBytes); err != nil {
			return nil, fmt.Errorf("device app totals: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *EventRepositorySQLite) TopApps(ctx context.Context, from, to int64, limit int) ([]domain.AppUsage, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QSelectTopApps, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("top apps: %w", err)
	}
	defer rows.Close()

	var out []domain.AppUsage
	for rows.Next() {
		var a domain.AppUsage
		if err := rows.Scan(&a.Name, &a.TotalBytes); err != nil {
			return nil, fmt.Errorf("top apps: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *EventRepositorySQLite) HourlyTotals(ctx context.Context, from, to int64) ([]domain.HourBucket, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QSelectHourlyTotals, from, from, to)
	if err != nil {
		return nil, fmt.Errorf("hourly totals: %w", err)
	}
	defer rows.Close()

	var out []domain.HourBucket
	for rows.Next() {
		var b domain.HourBucket
		if err := rows.Scan(&b.Hour, &b.TotalBytes); err != nil {
			return nil, fmt.Errorf("hourly totals: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// EarliestTimestamp returns the oldest event timestamp; ok is false for an
// empty store.
func (r *EventRepositorySQLite) EarliestTimestamp(ctx context.Context) (int64, bool, error) {
	var ts sql.NullInt64
	if err := r.sql.QueryRow(ctx, sqlinline.QSelectEarliestTimestamp).Scan(&ts); err != nil {
		return 0, false, fmt.Errorf("earliest timestamp: %w", err)
	}
	return ts.Int64, ts.Valid, nil
}

var (
	_ domain.EventReader = (*EventRepositorySQLite)(nil)
	_ domain.EventWriter = (*EventRepositorySQLite)(nil)
)
