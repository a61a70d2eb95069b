package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"skyhero/internal/domain"
	"skyhero/internal/domain/jsoncfg"
)

const dailySuffix = ".json"

// SnapshotRepository stores daily snapshots and period reports as JSON
// documents in two artifact stores.
type SnapshotRepository struct {
	daily  domain.ArtifactStore
	period domain.ArtifactStore
}

// NewSnapshotRepository wires the daily and period artifact stores.
func NewSnapshotRepository(daily, period domain.ArtifactStore) *SnapshotRepository {
	return &SnapshotRepository{daily: daily, period: period}
}

// DailyKey is the artifact key of the snapshot for date.
func DailyKey(date string) string {
	return date + dailySuffix
}

func (r *SnapshotRepository) SaveDaily(ctx context.Context, date string, snap *domain.DailySnapshot) error {
	raw, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode daily %s: %w", date, err)
	}
	if err := r.daily.Put(ctx, DailyKey(date), raw); err != nil {
		return fmt.Errorf("save daily %s: %w: %w", date, domain.ErrPersistence, err)
	}
	return nil
}

// LoadDaily returns the snapshot for date. Missing or empty documents yield
// domain.ErrNotFound; undecodable ones domain.ErrAggregation. Legacy
// documents are upgraded in memory.
func (r *SnapshotRepository) LoadDaily(ctx context.Context, date string) (*domain.DailySnapshot, error) {
	raw, err := r.daily.Get(ctx, DailyKey(date))
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("daily %s is empty: %w", date, domain.ErrNotFound)
	}
	raw, _, err = jsoncfg.UpgradeDaily(raw, date)
	if err != nil {
		return nil, fmt.Errorf("daily %s: %w: %w", date, domain.ErrAggregation, err)
	}
	var snap domain.DailySnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("daily %s: %w: %w", date, domain.ErrAggregation, err)
	}
	if snap.Date() == "" {
		return nil, fmt.Errorf("daily %s has no chart label: %w", date, domain.ErrAggregation)
	}
	return &snap, nil
}

// HasDaily reports whether a non-empty snapshot document exists for date.
func (r *SnapshotRepository) HasDaily(ctx context.Context, date string) (bool, error) {
	raw, err := r.daily.Get(ctx, DailyKey(date))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return len(raw) > 0, nil
}

// ListDaily returns the stored daily documents keyed by date.
func (r *SnapshotRepository) ListDaily(ctx context.Context) (map[string]domain.ArtifactInfo, error) {
	items, err := r.daily.List(ctx, "")
	if err != nil {
		return nil, err
	}
	out := make(map[string]domain.ArtifactInfo, len(items))
	for _, it := range items {
		if !strings.HasSuffix(it.Key, dailySuffix) {
			continue
		}
		date := strings.TrimSuffix(it.Key, dailySuffix)
		if _, err := domain.ParseDate(date, nil); err != nil {
			continue
		}
		out[date] = it
	}
	return out, nil
}

func (r *SnapshotRepository) SavePeriod(ctx context.Context, name string, report *domain.PeriodReport) error {
	raw, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report %s: %w", name, err)
	}
	if err := r.period.Put(ctx, name, raw); err != nil {
		return fmt.Errorf("save report %s: %w: %w", name, domain.ErrPersistence, err)
	}
	return nil
}

// LoadPeriod returns a cached report by artifact name.
func (r *SnapshotRepository) LoadPeriod(ctx context.Context, name string) (*domain.PeriodReport, error) {
	raw, err := r.period.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	raw, _, err = jsoncfg.UpgradePeriod(raw)
	if err != nil {
		return nil, fmt.Errorf("report %s: %w: %w", name, domain.ErrAggregation, err)
	}
	var report domain.PeriodReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, fmt.Errorf("report %s: %w: %w", name, domain.ErrAggregation, err)
	}
	return &report, nil
}

// ListPeriods returns report artifact names starting with prefix.
func (r *SnapshotRepository) ListPeriods(ctx context.Context, prefix string) ([]string, error) {
	items, err := r.period.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Key)
	}
	return out, nil
}
