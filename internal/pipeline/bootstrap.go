package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"skyhero/internal/infra"
	"skyhero/internal/infra/devicename"
	"skyhero/internal/infra/settings"
	"skyhero/internal/metrics"
	"skyhero/internal/storage"
)

// Open builds a Service for the host router: settings are read once from the
// data directory and device names come from the router's client lists.
func Open(ctx context.Context, cfg *infra.Config, m *metrics.Pipeline, logger zerolog.Logger) (*Service, *settings.Store, error) {
	state, err := storage.NewFileStore(cfg.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("data dir: %w", err)
	}
	store := settings.NewStore(state)
	selfHealing, err := store.SelfHealingEnabled(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("pipeline: unreadable settings, self-healing disabled")
		selfHealing = false
	}
	svc, err := New(Options{
		Config:      cfg,
		SelfHealing: selfHealing,
		Names:       devicename.NewCached(devicename.NewResolver(cfg.NameLookupTimeout, logger), cfg.NameCacheTTL),
		Metrics:     m,
		Logger:      logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return svc, store, nil
}
