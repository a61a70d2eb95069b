package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"skyhero/internal/adapter/repo"
	"skyhero/internal/backup"
	"skyhero/internal/db"
	"skyhero/internal/domain"
	"skyhero/internal/infra"
	"skyhero/internal/infra/devicename"
	"skyhero/internal/ingest"
	"skyhero/internal/metrics"
	"skyhero/internal/recovery"
	"skyhero/internal/report"
	"skyhero/internal/rollup"
	"skyhero/internal/storage"
)

// Options wires a Service.
type Options struct {
	Config      *infra.Config
	SelfHealing bool
	Names       domain.NameResolver
	Metrics     *metrics.Pipeline
	Logger      zerolog.Logger
}

// Service runs every pipeline operation. Operations that touch the event
// store are serialized, and the store is opened per operation so a restore
// can swap the file underneath.
type Service struct {
	cfg     *infra.Config
	logger  zerolog.Logger
	metrics *metrics.Pipeline
	names   domain.NameResolver

	source    domain.SourceReader
	snapshots *repo.SnapshotRepository
	state     domain.ArtifactStore
	rotator   *backup.Rotator
	manual    *backup.Manual
	guard     *recovery.Guard

	mu sync.Mutex
}

func New(opts Options) (*Service, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("pipeline: config is required")
	}
	state, err := storage.NewFileStore(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	daily, err := storage.NewFileStore(cfg.DailyDir())
	if err != nil {
		return nil, err
	}
	period, err := storage.NewFileStore(cfg.PeriodDir())
	if err != nil {
		return nil, err
	}
	names := opts.Names
	if names == nil {
		names = placeholderNames{}
	}

	rotator := backup.NewRotator(cfg.LocalDBPath, cfg.BackupsDir, cfg.BackupPrefix,
		time.Duration(cfg.BackupRetentionDays)*24*time.Hour, opts.Logger)
	audit := recovery.NewAuditLog(cfg.RestoreLogPath())

	return &Service{
		cfg:       cfg,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		names:     names,
		source:    repo.NewSourceRepository(cfg.RouterDBPath, opts.Logger),
		snapshots: repo.NewSnapshotRepository(daily, period),
		state:     state,
		rotator:   rotator,
		manual:    backup.NewManual(cfg.BaseDir, cfg.DataDir, cfg.BackupsDir, cfg.ManualBackupDir, opts.Logger),
		guard:     recovery.NewGuard(cfg.LocalDBPath, opts.SelfHealing, rotator, audit, state, opts.Logger),
	}, nil
}

// State is the artifact store rooted at the data directory.
func (s *Service) State() domain.ArtifactStore { return s.state }

// Today is the current date in the report timezone.
func (s *Service) Today() string {
	return time.Now().In(s.cfg.Location).Format(domain.DateLayout)
}

func (s *Service) withEvents(ctx context.Context, fn func(*repo.EventRepositorySQLite) error) error {
	conn, err := db.Open(ctx, s.cfg.LocalDBPath, s.logger)
	if err != nil {
		return fmt.Errorf("open event store: %w", err)
	}
	defer conn.Close()
	return fn(repo.NewEventRepository(infra.NewSQLRunner(conn, s.logger)))
}

func (s *Service) aggregator(events domain.EventReader, logger zerolog.Logger) (*rollup.Builder, *report.Aggregator) {
	quota := report.QuotaConfig{DailyGB: s.cfg.DailyQuotaGB, WeeklyGB: s.cfg.WeeklyQuotaGB, MonthlyGB: s.cfg.MonthlyQuotaGB}
	builder := rollup.NewBuilder(events, s.snapshots, s.names, rollup.Config{
		Quota:       quota,
		HighUsageGB: s.cfg.DeviceHighUsageGB,
		Location:    s.cfg.Location,
	}, logger)
	agg := report.NewAggregator(s.snapshots, builder, report.Config{
		Quota:       quota,
		HighUsageGB: s.cfg.DeviceHighUsageGB,
		Location:    s.cfg.Location,
	}, logger)
	return builder, agg
}

// Sync merges the last windowHours of router events into the local store.
func (s *Service) Sync(ctx context.Context, windowHours int) (n int64, err error) {
	defer s.observe("sync", time.Now(), &err)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sync(ctx, windowHours)
}

func (s *Service) sync(ctx context.Context, windowHours int) (int64, error) {
	var n int64
	err := s.withEvents(ctx, func(events *repo.EventRepositorySQLite) error {
		var err error
		n, err = ingest.NewSyncer(s.source, events, s.logger).Sync(ctx, windowHours)
		return err
	})
	s.metrics.AddInserted(n)
	return n, err
}

// ImportAll merges the router's whole history.
func (s *Service) ImportAll(ctx context.Context) (n int64, err error) {
	defer s.observe("import", time.Now(), &err)
	s.mu.Lock()
	defer s.mu.Unlock()
	err = s.withEvents(ctx, func(events *repo.EventRepositorySQLite) error {
		var err error
		n, err = ingest.NewSyncer(s.source, events, s.logger).ImportAll(ctx)
		return err
	})
	s.metrics.AddInserted(n)
	return n, err
}

func (s *Service) CheckIntegrity(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok := s.guard.CheckIntegrity(ctx)
	s.metrics.SetHealthy(ok)
	return ok
}

func (s *Service) EnsureHealthy(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureHealthy(ctx)
}

func (s *Service) ensureHealthy(ctx context.Context) bool {
	start := time.Now()
	ok := s.guard.EnsureHealthy(ctx)
	var err error
	if !ok {
		err = domain.ErrStoreCorrupt
	}
	s.observe("integrity", start, &err)
	s.metrics.SetHealthy(ok)
	return ok
}

// Restore replaces the event store with the artifact at path, or the newest
// backup when path is empty.
func (s *Service) Restore(ctx context.Context, path string) (err error) {
	defer s.observe("restore", time.Now(), &err)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.guard.Restore(ctx, path)
}

func (s *Service) CreateBackup(ctx context.Context) (err error) {
	defer s.observe("backup", time.Now(), &err)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rotator.Create(ctx)
}

func (s *Service) CreateManualBackup(ctx context.Context) (path string, err error) {
	defer s.observe("manual_backup", time.Now(), &err)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manual.Create(ctx)
}

func (s *Service) RestoreManualBackup(ctx context.Context, archivePath string) (err error) {
	defer s.observe("manual_restore", time.Now(), &err)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manual.Restore(ctx, archivePath)
}

// BuildDaily recomputes the snapshot for date.
func (s *Service) BuildDaily(ctx context.Context, date string) (snap *domain.DailySnapshot, err error) {
	defer s.observe("rollup", time.Now(), &err)
	s.mu.Lock()
	defer s.mu.Unlock()
	err = s.withEvents(ctx, func(events *repo.EventRepositorySQLite) error {
		builder, _ := s.aggregator(events, s.logger)
		var err error
		snap, err = builder.Build(ctx, date)
		return err
	})
	return snap, err
}

// BuildPeriod aggregates [start, end] into a report named name.
func (s *Service) BuildPeriod(ctx context.Context, start, end, name string) (r *domain.PeriodReport, err error) {
	defer s.observe("period", time.Now(), &err)
	s.mu.Lock()
	defer s.mu.Unlock()
	err = s.withEvents(ctx, func(events *repo.EventRepositorySQLite) error {
		_, agg := s.aggregator(events, s.logger)
		var err error
		r, err = agg.BuildPeriod(ctx, start, end, name)
		return err
	})
	return r, err
}

func (s *Service) BuildMonthly(ctx context.Context) (err error) {
	defer s.observe("monthly", time.Now(), &err)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.withEvents(ctx, func(events *repo.EventRepositorySQLite) error {
		_, agg := s.aggregator(events, s.logger)
		return agg.BuildMonthly(ctx)
	})
}

// DeviceApps returns the top applications of mac over [start, end].
func (s *Service) DeviceApps(ctx context.Context, mac, start, end string) (apps []domain.AppUsage, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	err = s.withEvents(ctx, func(events *repo.EventRepositorySQLite) error {
		_, agg := s.aggregator(events, s.logger)
		var err error
		apps, err = agg.DeviceApps(ctx, mac, start, end)
		return err
	})
	return apps, err
}

// AvailableMonths lists months with a monthly report, newest first. It only
// reads report artifacts.
func (s *Service) AvailableMonths(ctx context.Context) ([]string, error) {
	_, agg := s.aggregator(nil, s.logger)
	return agg.AvailableMonths(ctx)
}

// RestoreMarker returns the pending restore notice, if any.
func (s *Service) RestoreMarker(ctx context.Context) (domain.RestoreMarker, bool, error) {
	return recovery.ReadMarker(ctx, s.state)
}

func (s *Service) ClearRestoreMarker(ctx context.Context) (bool, error) {
	return recovery.ClearMarker(ctx, s.state)
}

// RestoreLogPath is the restore audit log location.
func (s *Service) RestoreLogPath() string { return s.cfg.RestoreLogPath() }

// RunMonitor runs the scheduled sequence: heal, sync, rebuild today, then
// refresh the last-7-days, current-month, all-time and monthly reports. It
// reports false only when the store is unhealthy or cannot be opened.
func (s *Service) RunMonitor(ctx context.Context) bool {
	start := time.Now()
	log := s.logger.With().Str("run_id", uuid.NewString()).Logger()
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ensureHealthy(ctx) {
		log.Error().Msg("pipeline: event store unhealthy and could not be restored, aborting monitor run")
		s.observe("monitor", start, ptr(domain.ErrStoreCorrupt))
		return false
	}
	if n, err := s.sync(ctx, s.cfg.SyncWindowHours); err != nil {
		log.Warn().Err(err).Msg("pipeline: sync failed, continuing with existing data")
	} else {
		log.Info().Int64("inserted", n).Msg("pipeline: synced router events")
	}

	err := s.withEvents(ctx, func(events *repo.EventRepositorySQLite) error {
		builder, agg := s.aggregator(events, log)
		today := agg.Today()

		if _, err := builder.Build(ctx, today); err != nil {
			log.Error().Err(err).Str("date", today).Msg("pipeline: daily rollup for today failed")
		}
		weekAgo, err := domain.ShiftDate(today, -6)
		if err != nil {
			return err
		}
		s.period(ctx, log, agg, weekAgo, today, domain.ReportLastSevenDay)
		s.period(ctx, log, agg, today[:8]+"01", today, domain.ReportCurrentMonth)

		earliest, ok, err := events.EarliestTimestamp(ctx)
		switch {
		case err != nil:
			log.Warn().Err(err).Msg("pipeline: could not read earliest event")
		case !ok:
			log.Info().Msg("pipeline: no events stored, skipping all-time report")
		default:
			first := time.Unix(earliest, 0).In(s.cfg.Location).Format(domain.DateLayout)
			s.period(ctx, log, agg, first, today, domain.ReportAllTime)
		}

		if err := agg.BuildMonthly(ctx); err != nil {
			log.Warn().Err(err).Msg("pipeline: monthly reports incomplete")
		}
		return nil
	})
	s.observe("monitor", start, &err)
	if err != nil {
		log.Error().Err(err).Msg("pipeline: monitor run failed")
		return false
	}
	log.Info().Dur("elapsed", time.Since(start)).Msg("pipeline: monitor run finished")
	return true
}

func (s *Service) period(ctx context.Context, log zerolog.Logger, agg *report.Aggregator, start, end, name string) {
	if _, err := agg.BuildPeriod(ctx, start, end, name); err != nil {
		log.Warn().Err(err).Str("report", name).Msg("pipeline: period report failed")
	}
}

func (s *Service) observe(operation string, start time.Time, err *error) {
	s.metrics.Observe(operation, start, *err)
}

func ptr[T any](v T) *T { return &v }

type placeholderNames struct{}

func (placeholderNames) ResolveName(_ context.Context, mac string) string {
	return devicename.Placeholder(mac)
}
