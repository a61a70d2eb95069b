package report

import (
	"context"

	"github.com/rs/zerolog"

	"skyhero/internal/domain"
)

const (
	trailingDays    = 30
	trailingMinDays = 7
)

// DailyLoader reads persisted daily snapshots.
type DailyLoader interface {
	LoadDaily(ctx context.Context, date string) (*domain.DailySnapshot, error)
}

// Trailing is the set of snapshots from the 30 days before a date. The date
// itself is excluded so rebuilding a day never reads its own output.
type Trailing struct {
	date string
	days []*domain.DailySnapshot
}

// LoadTrailing reads the snapshots for [date-30, date-1], skipping days that
// are absent or unreadable.
func LoadTrailing(ctx context.Context, loader DailyLoader, date string, logger zerolog.Logger) (*Trailing, error) {
	from, err := domain.ShiftDate(date, -trailingDays)
	if err != nil {
		return nil, err
	}
	to, err := domain.ShiftDate(date, -1)
	if err != nil {
		return nil, err
	}
	dates, err := domain.DateRange(from, to)
	if err != nil {
		return nil, err
	}
	t := &Trailing{date: date}
	for _, d := range dates {
		snap, err := loader.LoadDaily(ctx, d)
		if err != nil {
			logger.Debug().Err(err).Str("date", d).Msg("report: trailing day unavailable")
			continue
		}
		t.days = append(t.days, snap)
	}
	return t, nil
}

// Days is the number of snapshots that loaded.
func (t *Trailing) Days() int { return len(t.days) }

// Context returns the device's average daily usage and peak day over the
// trailing window. With fewer than seven loaded days, or no usage by mac in
// them, the day's own usage stands in for both.
func (t *Trailing) Context(mac string, dayBytes int64) (float64, domain.PeakDay) {
	var total int64
	var peak domain.PeakDay
	var peakBytes int64 = -1
	for _, snap := range t.days {
		dev, ok := snap.Device(mac)
		if !ok {
			continue
		}
		total += dev.TotalBytes
		if dev.TotalBytes > peakBytes {
			peakBytes = dev.TotalBytes
			peak = domain.PeakDay{Date: snap.Date(), GB: domain.BytesToGB(dev.TotalBytes)}
		}
	}
	if len(t.days) >= trailingMinDays && total > 0 {
		return domain.AvgGB(total, len(t.days)), peak
	}
	own := domain.BytesToGB(dayBytes)
	return own, domain.PeakDay{Date: t.date, GB: own}
}
