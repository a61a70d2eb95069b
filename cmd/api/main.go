package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"skyhero/internal/http/handlers"
	"skyhero/internal/http/httpapi"
	"skyhero/internal/infra"
	"skyhero/internal/metrics"
	"skyhero/internal/pipeline"
	"skyhero/internal/scheduler"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	svc, settingsStore, err := pipeline.Open(ctx, cfg, m, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to initialise pipeline")
	}
	m.SetHealthy(svc.CheckIntegrity(ctx))

	sched := scheduler.New(svc, cfg.Location, logger)
	if err := sched.Register(ctx, cfg.MonitorSchedule, cfg.BackupSchedule); err != nil {
		logger.Fatal().Err(err).Msg("api: invalid schedule")
	}
	sched.Start()

	app := handlers.NewApp(svc, settingsStore, svc.State(), handlers.Dirs{
		Data:       cfg.DataDir,
		Daily:      cfg.DailyDir(),
		Period:     cfg.PeriodDir(),
		WWW:        cfg.WWWDir,
		RestoreLog: cfg.RestoreLogPath(),
	}, m.Handler(), logger)
	router := httpapi.NewRouter(app, httpapi.Options{AuthAttemptsPerMinute: cfg.AuthRateLimit}, logger)
	server := infra.NewHTTPServer(cfg, router, logger)
	ln, err := server.Listen()
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to bind")
	}
	if err := server.Run(ctx, ln); err != nil {
		logger.Error().Err(err).Msg("api: http server failed")
	}
	sched.Stop()
	logger.Info().Msg("api: stopped")
}
