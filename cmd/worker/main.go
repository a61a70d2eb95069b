package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"skyhero/internal/domain"
	"skyhero/internal/infra"
	"skyhero/internal/pipeline"
)

const usage = "usage: worker [sync|import-history|rollup [today|yesterday|YYYY-MM-DD]|monitor|check-db|backup|restore [path]|backup-manual|restore-manual <archive>|monthly-aggregator|report <start> <end> [name]]"

// noPreSync lists commands that must not pull router events first: they
// either sync themselves or replace the store.
var noPreSync = map[string]bool{
	"sync":           true,
	"import-history": true,
	"monitor":        true,
	"check-db":       true,
	"restore":        true,
	"backup-manual":  true,
	"restore-manual": true,
}

type command struct {
	svc *pipeline.Service
	cfg *infra.Config
	out *message.Printer
}

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}

	svc, _, err := pipeline.Open(ctx, cfg, nil, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to initialise pipeline")
	}
	c := &command{svc: svc, cfg: cfg, out: message.NewPrinter(language.English)}

	name, args := os.Args[1], os.Args[2:]
	if !noPreSync[name] {
		if _, err := svc.Sync(ctx, cfg.SyncWindowHours); err != nil {
			logger.Warn().Err(err).Msg("worker: pre-sync failed")
		}
	}
	if err := c.run(ctx, name, args); err != nil {
		logger.Error().Err(err).Str("command", name).Msg("worker: command failed")
		os.Exit(1)
	}
}

func (c *command) run(ctx context.Context, name string, args []string) error {
	switch name {
	case "sync":
		n, err := c.svc.Sync(ctx, c.cfg.SyncWindowHours)
		if err != nil {
			return err
		}
		c.out.Printf("Synced %d new events.\n", n)
	case "import-history":
		n, err := c.svc.ImportAll(ctx)
		if err != nil {
			return err
		}
		c.out.Printf("Import-history completed successfully: %d events imported.\n", n)
	case "rollup":
		date, err := c.rollupDate(args)
		if err != nil {
			return err
		}
		snap, err := c.svc.BuildDaily(ctx, date)
		if err != nil {
			return err
		}
		c.out.Printf("Rollup for %s: %d bytes across %d devices.\n", date, snap.Stats.TotalBytes, snap.Stats.DevicesCount)
	case "monitor":
		if !c.svc.RunMonitor(ctx) {
			return errors.New("monitor run failed")
		}
		fmt.Println("Monitor run completed successfully.")
	case "check-db":
		fmt.Println("Checking database health...")
		if !c.svc.EnsureHealthy(ctx) {
			return domain.ErrStoreCorrupt
		}
		fmt.Println("Database is healthy.")
	case "backup":
		if err := c.svc.CreateBackup(ctx); err != nil {
			return err
		}
		fmt.Println("Database backup and cleanup complete.")
	case "restore":
		path := ""
		if len(args) > 0 {
			path = args[0]
		}
		if err := c.svc.Restore(ctx, path); err != nil {
			return err
		}
		fmt.Println("Database restored.")
	case "backup-manual":
		path, err := c.svc.CreateManualBackup(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Manual backup created successfully: %s\n", path)
	case "restore-manual":
		if len(args) < 1 {
			return errors.New("usage: worker restore-manual <path_to_backup_file>")
		}
		if err := c.svc.RestoreManualBackup(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("Manual backup restored successfully from %s\n", args[0])
	case "monthly-aggregator":
		if err := c.svc.BuildMonthly(ctx); err != nil {
			return err
		}
		fmt.Println("Monthly reports updated.")
	case "report":
		if len(args) < 2 {
			return errors.New("usage: worker report <start> <end> [name]")
		}
		reportName := domain.PeriodReportName(args[0], args[1])
		if len(args) > 2 {
			var err error
			if reportName, err = domain.LabeledReportName(args[2]); err != nil {
				return err
			}
		}
		r, err := c.svc.BuildPeriod(ctx, args[0], args[1], reportName)
		if err != nil {
			return err
		}
		c.out.Printf("Report %s: %d bytes across %d devices.\n", reportName, r.Stats.TotalBytes, r.Stats.DevicesCount)
	default:
		return fmt.Errorf("unknown command %q\n%s", name, usage)
	}
	return nil
}

func (c *command) rollupDate(args []string) (string, error) {
	day := "today"
	if len(args) > 0 {
		day = strings.ToLower(args[0])
	}
	now := time.Now().In(c.cfg.Location)
	switch day {
	case "today":
		return now.Format(domain.DateLayout), nil
	case "yesterday":
		return now.AddDate(0, 0, -1).Format(domain.DateLayout), nil
	}
	if _, err := domain.ParseDate(day, c.cfg.Location); err != nil {
		return "", err
	}
	return day, nil
}
