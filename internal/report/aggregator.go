package report

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"skyhero/internal/domain"
)

// NoiseFloorBytes is the period total below which a device is not reported.
const NoiseFloorBytes = 5368709

// minMonthlyDailySize filters out daily documents that carry no real data.
const minMonthlyDailySize = 500

const (
	periodTopApps = 10
	deviceTopApps = 5
)

// SnapshotStore persists daily snapshots and period reports.
type SnapshotStore interface {
	DailyLoader
	HasDaily(ctx context.Context, date string) (bool, error)
	ListDaily(ctx context.Context) (map[string]domain.ArtifactInfo, error)
	SavePeriod(ctx context.Context, name string, report *domain.PeriodReport) error
	LoadPeriod(ctx context.Context, name string) (*domain.PeriodReport, error)
	ListPeriods(ctx context.Context, prefix string) ([]string, error)
}

// DailyBuilder materializes the snapshot for one date.
type DailyBuilder interface {
	Build(ctx context.Context, date string) (*domain.DailySnapshot, error)
}

// Config carries the report thresholds.
type Config struct {
	Quota       QuotaConfig
	HighUsageGB float64
	Location    *time.Location
}

// Aggregator rolls daily snapshots up into period and monthly reports.
type Aggregator struct {
	store   SnapshotStore
	builder DailyBuilder
	cfg     Config
	logger  zerolog.Logger
	now     func() time.Time
}

func NewAggregator(store SnapshotStore, builder DailyBuilder, cfg Config, logger zerolog.Logger) *Aggregator {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Aggregator{store: store, builder: builder, cfg: cfg, logger: logger, now: time.Now}
}

// Today is the current date in the report timezone.
func (a *Aggregator) Today() string {
	return a.now().In(a.cfg.Location).Format(domain.DateLayout)
}

// EnsureDaily builds the snapshot for date when none is stored.
func (a *Aggregator) EnsureDaily(ctx context.Context, date string) error {
	ok, err := a.store.HasDaily(ctx, date)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	_, err = a.builder.Build(ctx, date)
	return err
}

// BuildPeriod aggregates the snapshots of [start, end], back-filling missing
// days first, and persists the result under name (or the range name when
// name is empty). A multi-day range without any data yields ErrNoData. When
// persisting fails the report is still returned alongside the error.
func (a *Aggregator) BuildPeriod(ctx context.Context, start, end, name string) (*domain.PeriodReport, error) {
	dates, err := domain.DateRange(start, end)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = domain.PeriodReportName(start, end)
	}

	built := 0
	for _, d := range dates {
		has, err := a.store.HasDaily(ctx, d)
		if err != nil {
			a.logger.Warn().Err(err).Str("date", d).Msg("report: cannot stat daily snapshot")
			continue
		}
		if has {
			continue
		}
		if _, err := a.builder.Build(ctx, d); err != nil {
			a.logger.Warn().Err(err).Str("date", d).Msg("report: back-fill failed")
			continue
		}
		built++
	}
	if built > 0 {
		a.logger.Info().Int("built", built).Str("start", start).Str("end", end).Msg("report: back-filled daily snapshots")
	}

	var days []*domain.DailySnapshot
	for _, d := range dates {
		snap, err := a.store.LoadDaily(ctx, d)
		if err != nil {
			a.logger.Warn().Err(err).Str("date", d).Msg("report: skipping daily snapshot")
			continue
		}
		days = append(days, snap)
	}

	var report *domain.PeriodReport
	switch {
	case len(days) > 0:
		report, err = a.aggregate(ctx, start, end, days)
		if err != nil {
			return nil, err
		}
	case start == end:
		report = a.emptyDay(start)
	default:
		return nil, fmt.Errorf("period %s to %s: %w", start, end, domain.ErrNoData)
	}

	if err := a.store.SavePeriod(ctx, name, report); err != nil {
		return report, err
	}
	a.logger.Info().Str("report", name).Int("days", len(days)).Int("devices", len(report.Devices)).Msg("report: period built")
	return report, nil
}

func (a *Aggregator) emptyDay(date string) *domain.PeriodReport {
	quota, quotaType := Quota(date, date, a.cfg.Quota)
	return &domain.PeriodReport{
		SchemaVersion: domain.SchemaVersion,
		Start:         date,
		End:           date,
		Stats:         domain.StatsBytes{QuotaGB: quota, QuotaType: quotaType},
		Devices:       []domain.DevicePeriodAggregate{},
		BarChart: domain.BarChart{
			Title:       fmt.Sprintf("Daily Traffic (%s)", date),
			Labels:      []string{date},
			ValuesBytes: []int64{0},
		},
		TopApps: []domain.AppUsage{},
	}
}

type deviceAcc struct {
	agg  domain.DevicePeriodAggregate
	apps appTotals
}

func (a *Aggregator) aggregate(ctx context.Context, start, end string, days []*domain.DailySnapshot) (*domain.PeriodReport, error) {
	report := &domain.PeriodReport{
		SchemaVersion: domain.SchemaVersion,
		Start:         start,
		End:           end,
		BarChart: domain.BarChart{
			Title:       fmt.Sprintf("Daily Traffic (%s to %s)", start, end),
			Labels:      make([]string, 0, len(days)),
			ValuesBytes: make([]int64, 0, len(days)),
		},
	}

	devices := map[string]*deviceAcc{}
	var order []string
	topApps := appTotals{}
	for _, day := range days {
		report.Stats.DLBytes += day.Stats.DLBytes
		report.Stats.ULBytes += day.Stats.ULBytes
		report.Stats.TotalBytes += day.Stats.TotalBytes
		report.BarChart.Labels = append(report.BarChart.Labels, day.Date())
		report.BarChart.ValuesBytes = append(report.BarChart.ValuesBytes, day.DayTotalBytes())

		for _, dev := range day.Devices {
			acc, ok := devices[dev.MAC]
			if !ok {
				acc = &deviceAcc{agg: domain.DevicePeriodAggregate{MAC: dev.MAC, Name: dev.Name}, apps: appTotals{}}
				devices[dev.MAC] = acc
				order = append(order, dev.MAC)
			}
			acc.agg.DLBytes += dev.DLBytes
			acc.agg.ULBytes += dev.ULBytes
			acc.agg.TotalBytes += dev.TotalBytes
			acc.agg.DailyTraffic = append(acc.agg.DailyTraffic, domain.DailyUsage{Date: day.Date(), TotalBytes: dev.TotalBytes})
			for _, app := range dev.TopApps {
				acc.apps.add(RenameApp(app.Name), app.TotalBytes)
			}
		}
		for _, app := range day.TopApps {
			topApps.add(app.Name, app.TotalBytes)
		}
	}

	var trailing *Trailing
	if len(days) == 1 {
		var err error
		trailing, err = LoadTrailing(ctx, a.store, days[0].Date(), a.logger)
		if err != nil {
			return nil, err
		}
	}

	for _, mac := range order {
		acc := devices[mac]
		dev := acc.agg
		if dev.TotalBytes < NoiseFloorBytes {
			continue
		}
		if report.Stats.TotalBytes > 0 {
			dev.Percentage = float64(dev.TotalBytes) / float64(report.Stats.TotalBytes) * 100
		}
		dev.AvgDailyGB = domain.AvgGB(dev.TotalBytes, len(days))
		dev.PeakDay = peakOf(dev.DailyTraffic)
		dev.TrendBytes = make([]int64, len(dev.DailyTraffic))
		for i, u := range dev.DailyTraffic {
			dev.TrendBytes[i] = u.TotalBytes
		}
		if len(days) == 1 {
			dev.RecentVsAvgPercent = SingleDayAnomaly(dev.TotalBytes, a.cfg.HighUsageGB)
			dev.AvgDailyGB, dev.PeakDay = trailing.Context(mac, dev.TotalBytes)
		} else {
			dev.RecentVsAvgPercent = TrendAnomaly(dev.DailyTraffic, dev.TotalBytes, len(days))
		}
		dev.TopApps = acc.apps.sorted(deviceTopApps)
		report.Devices = append(report.Devices, dev)
	}
	sort.SliceStable(report.Devices, func(i, j int) bool {
		return report.Devices[i].TotalBytes > report.Devices[j].TotalBytes
	})
	if report.Devices == nil {
		report.Devices = []domain.DevicePeriodAggregate{}
	}

	report.Stats.DevicesCount = len(report.Devices)
	report.Stats.QuotaGB, report.Stats.QuotaType = Quota(start, end, a.cfg.Quota)
	report.TopApps = topApps.sorted(periodTopApps)
	if len(days) == 1 {
		report.BarChart.HourlyValuesBytes = days[0].BarChart.HourlyValuesBytes
		report.BarChart.HourlyLabels = days[0].BarChart.HourlyLabels
	}
	return report, nil
}

// peakOf returns the first heaviest day.
func peakOf(daily []domain.DailyUsage) domain.PeakDay {
	if len(daily) == 0 {
		return domain.PeakDay{Date: "N/A"}
	}
	best := daily[0]
	for _, u := range daily[1:] {
		if u.TotalBytes > best.TotalBytes {
			best = u
		}
	}
	return domain.PeakDay{Date: best.Date, GB: domain.BytesToGB(best.TotalBytes)}
}

// BuildMonthly rebuilds one report per calendar month that has at least one
// daily snapshot with real data. Months still in progress end today.
func (a *Aggregator) BuildMonthly(ctx context.Context) error {
	daily, err := a.store.ListDaily(ctx)
	if err != nil {
		return fmt.Errorf("report: list daily snapshots: %w", err)
	}
	months := map[string]struct{}{}
	for date, info := range daily {
		if info.Size > minMonthlyDailySize {
			months[date[:7]] = struct{}{}
		}
	}
	if len(months) == 0 {
		a.logger.Info().Msg("report: no daily data, skipping monthly reports")
		return nil
	}
	keys := make([]string, 0, len(months))
	for m := range months {
		keys = append(keys, m)
	}
	sort.Strings(keys)

	today := a.Today()
	var errs []error
	for _, month := range keys {
		start := month + "-01"
		end, err := domain.MonthEnd(start)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if end > today {
			end = today
		}
		if _, err := a.BuildPeriod(ctx, start, end, domain.MonthReportName(month)); err != nil {
			if errors.Is(err, domain.ErrNoData) {
				a.logger.Info().Str("month", month).Msg("report: month has no loadable data")
				continue
			}
			errs = append(errs, fmt.Errorf("month %s: %w", month, err))
		}
	}
	a.logger.Info().Int("months", len(keys)).Msg("report: monthly reports generated")
	return errors.Join(errs...)
}

// DeviceApps returns the top applications of mac over [start, end], reading
// the cheapest artifact that covers exactly that range.
func (a *Aggregator) DeviceApps(ctx context.Context, mac, start, end string) ([]domain.AppUsage, error) {
	if start == end {
		if err := a.EnsureDaily(ctx, start); err != nil {
			return nil, err
		}
		snap, err := a.store.LoadDaily(ctx, start)
		if err != nil {
			return nil, err
		}
		if dev, ok := snap.Device(mac); ok {
			return nonNil(dev.TopApps), nil
		}
		return []domain.AppUsage{}, nil
	}

	if name, ok := a.cachedReportFor(start, end); ok {
		report, err := a.store.LoadPeriod(ctx, name)
		switch {
		case err == nil:
			return appsOf(report, mac), nil
		case !errors.Is(err, domain.ErrNotFound):
			a.logger.Warn().Err(err).Str("report", name).Msg("report: cached report unreadable, rebuilding")
		}
	}

	report, err := a.BuildPeriod(ctx, start, end, "")
	if report == nil {
		if errors.Is(err, domain.ErrNoData) {
			return []domain.AppUsage{}, nil
		}
		return nil, err
	}
	if err != nil {
		a.logger.Warn().Err(err).Msg("report: device apps report not persisted")
	}
	return appsOf(report, mac), nil
}

// cachedReportFor maps ranges the monitor keeps fresh to their report names.
func (a *Aggregator) cachedReportFor(start, end string) (string, bool) {
	today := a.Today()
	if end == today {
		if start == today[:8]+"01" {
			return domain.ReportCurrentMonth, true
		}
		if weekAgo, err := domain.ShiftDate(today, -6); err == nil && start == weekAgo {
			return domain.ReportLastSevenDay, true
		}
	}
	if strings.HasSuffix(start, "-01") {
		if monthEnd, err := domain.MonthEnd(start); err == nil && end == monthEnd {
			return domain.MonthReportName(start[:7]), true
		}
	}
	return "", false
}

func appsOf(report *domain.PeriodReport, mac string) []domain.AppUsage {
	if dev, ok := report.Device(mac); ok {
		return nonNil(dev.TopApps)
	}
	return []domain.AppUsage{}
}

func nonNil(apps []domain.AppUsage) []domain.AppUsage {
	if apps == nil {
		return []domain.AppUsage{}
	}
	return apps
}

// AvailableMonths lists the months with a monthly report, newest first.
func (a *Aggregator) AvailableMonths(ctx context.Context) ([]string, error) {
	names, err := a.store.ListPeriods(ctx, "traffic_month_")
	if err != nil {
		return nil, err
	}
	months := make([]string, 0, len(names))
	for _, n := range names {
		if m, ok := domain.MonthFromReportName(n); ok {
			months = append(months, m)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(months)))
	return months, nil
}
