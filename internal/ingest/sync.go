package ingest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"skyhero/internal/domain"
)

// DefaultWindowHours is how far back a regular sync looks into the source.
const DefaultWindowHours = 48

const batchSize = 1000

// Syncer merges events from the router's volatile store into the local event
// store. The source is only ever read.
type Syncer struct {
	source domain.SourceReader
	events domain.EventWriter
	logger zerolog.Logger
	now    func() time.Time
}

func NewSyncer(source domain.SourceReader, events domain.EventWriter, logger zerolog.Logger) *Syncer {
	return &Syncer{source: source, events: events, logger: logger, now: time.Now}
}

// Sync copies events newer than now-windowHours and returns how many rows
// were new. A missing source is not an error.
func (s *Syncer) Sync(ctx context.Context, windowHours int) (int64, error) {
	if windowHours <= 0 {
		windowHours = DefaultWindowHours
	}
	since := s.now().Unix() - int64(windowHours)*3600
	n, err := s.merge(ctx, since)
	if err != nil {
		return n, err
	}
	s.logger.Info().Int("window_hours", windowHours).Int64("inserted", n).Msg("ingest: sync finished")
	return n, nil
}

// ImportAll copies the whole source history.
func (s *Syncer) ImportAll(ctx context.Context) (int64, error) {
	n, err := s.merge(ctx, math.MinInt64)
	if err != nil {
		return n, err
	}
	s.logger.Info().Int64("inserted", n).Msg("ingest: history import finished")
	return n, nil
}

func (s *Syncer) merge(ctx context.Context, since int64) (int64, error) {
	var inserted int64
	err := s.source.StreamEvents(ctx, since, batchSize, func(batch []domain.TrafficEvent) error {
		n, err := s.events.InsertIgnore(ctx, batch)
		inserted += n
		return err
	})
	if errors.Is(err, domain.ErrSourceUnavailable) {
		s.logger.Info().Err(err).Msg("ingest: source store not present, nothing to sync")
		return 0, nil
	}
	if err != nil {
		return inserted, fmt.Errorf("ingest: %w", err)
	}
	return inserted, nil
}
