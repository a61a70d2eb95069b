package rollup

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"skyhero/internal/domain"
	"skyhero/internal/report"
)

const (
	hoursPerDay = 24
	dayTopApps  = 10
)

// Store persists and reads daily snapshots.
type Store interface {
	report.DailyLoader
	SaveDaily(ctx context.Context, date string, snap *domain.DailySnapshot) error
}

// Config carries the thresholds a rollup needs.
type Config struct {
	Quota       report.QuotaConfig
	HighUsageGB float64
	Location    *time.Location
}

// Builder turns one calendar day of events into a DailySnapshot.
type Builder struct {
	events domain.EventReader
	store  Store
	names  domain.NameResolver
	cfg    Config
	logger zerolog.Logger
}

func NewBuilder(events domain.EventReader, store Store, names domain.NameResolver, cfg Config, logger zerolog.Logger) *Builder {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Builder{events: events, store: store, names: names, cfg: cfg, logger: logger}
}

// Build computes and persists the snapshot for date, replacing any earlier
// one. On a persistence failure the snapshot is returned with the error.
func (b *Builder) Build(ctx context.Context, date string) (*domain.DailySnapshot, error) {
	from, to, err := domain.DayBounds(date, b.cfg.Location)
	if err != nil {
		return nil, err
	}

	totals, err := b.events.DayTotals(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("rollup %s: %w", date, err)
	}
	devices, err := b.events.DeviceTotals(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("rollup %s: %w", date, err)
	}
	deviceApps, err := b.events.DeviceAppTotals(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("rollup %s: %w", date, err)
	}
	topApps, err := b.events.TopApps(ctx, from, to, dayTopApps)
	if err != nil {
		return nil, fmt.Errorf("rollup %s: %w", date, err)
	}
	hours, err := b.events.HourlyTotals(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("rollup %s: %w", date, err)
	}
	trailing, err := report.LoadTrailing(ctx, b.store, date, b.logger)
	if err != nil {
		return nil, err
	}

	appsByMAC := map[string][]domain.AppUsage{}
	for _, row := range deviceApps {
		appsByMAC[row.MAC] = append(appsByMAC[row.MAC], domain.AppUsage{Name: row.AppName, TotalBytes: row.TotalBytes})
	}

	snap := &domain.DailySnapshot{
		SchemaVersion: domain.SchemaVersion,
		Stats: domain.StatsBytes{
			DLBytes:      totals.DLBytes,
			ULBytes:      totals.ULBytes,
			TotalBytes:   totals.TotalBytes,
			DevicesCount: len(devices),
		},
		BarChart: domain.BarChart{
			Title:             "Daily Breakdown",
			Labels:            []string{date},
			ValuesBytes:       []int64{totals.TotalBytes},
			HourlyValuesBytes: hourly(hours),
			HourlyLabels:      hourLabels(),
		},
		Devices: make([]domain.DeviceDailyAggregate, 0, len(devices)),
		TopApps: topApps,
	}
	if snap.TopApps == nil {
		snap.TopApps = []domain.AppUsage{}
	}
	snap.Stats.QuotaGB, snap.Stats.QuotaType = report.Quota(date, date, b.cfg.Quota)

	for _, d := range devices {
		dev := domain.DeviceDailyAggregate{
			MAC:        d.MAC,
			Name:       b.names.ResolveName(ctx, d.MAC),
			DLBytes:    d.DLBytes,
			ULBytes:    d.ULBytes,
			TotalBytes: d.TotalBytes,
			TopApps:    report.FoldApps(appsByMAC[d.MAC]),
		}
		if totals.TotalBytes > 0 {
			dev.Percentage = float64(d.TotalBytes) / float64(totals.TotalBytes) * 100
		}
		dev.AvgDailyGB, dev.PeakDay = trailing.Context(d.MAC, d.TotalBytes)
		dev.RecentVsAvgPercent = report.SingleDayAnomaly(d.TotalBytes, b.cfg.HighUsageGB)
		snap.Devices = append(snap.Devices, dev)
	}
	sort.SliceStable(snap.Devices, func(i, j int) bool {
		if snap.Devices[i].TotalBytes != snap.Devices[j].TotalBytes {
			return snap.Devices[i].TotalBytes > snap.Devices[j].TotalBytes
		}
		return snap.Devices[i].MAC < snap.Devices[j].MAC
	})

	if err := b.store.SaveDaily(ctx, date, snap); err != nil {
		return snap, err
	}
	b.logger.Info().Str("date", date).Int64("total_bytes", totals.TotalBytes).Int("devices", len(snap.Devices)).Msg("rollup: daily snapshot written")
	return snap, nil
}

// hourly spreads buckets over 24 slots; out-of-range offsets, which only
// occur on DST transition days, clamp to the first or last hour.
func hourly(buckets []domain.HourBucket) []int64 {
	out := make([]int64, hoursPerDay)
	for _, b := range buckets {
		h := b.Hour
		if h < 0 {
			h = 0
		}
		if h >= hoursPerDay {
			h = hoursPerDay - 1
		}
		out[h] += b.TotalBytes
	}
	return out
}

func hourLabels() []string {
	out := make([]string, hoursPerDay)
	for h := range out {
		out[h] = fmt.Sprintf("%dh", h+1)
	}
	return out
}
