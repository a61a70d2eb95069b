package domain

import (
	"context"
	"time"
)

// EventReader exposes the range aggregates the daily rollup needs. Ranges are
// half-open: from <= timestamp < to.
type EventReader interface {
	DayTotals(ctx context.Context, from, to int64) (ByteTotals, error)
	DeviceTotals(ctx context.Context, from, to int64) ([]DeviceTotals, error)
	DeviceAppTotals(ctx context.Context, from, to int64) ([]DeviceAppTotal, error)
	TopApps(ctx context.Context, from, to int64, limit int) ([]AppUsage, error)
	HourlyTotals(ctx context.Context, from, to int64) ([]HourBucket, error)
	EarliestTimestamp(ctx context.Context) (int64, bool, error)
}

// EventWriter appends events with insert-ignore semantics on the identity key
// and reports how many rows were new.
type EventWriter interface {
	InsertIgnore(ctx context.Context, events []TrafficEvent) (int64, error)
}

// SourceReader streams events from the volatile router store in timestamp
// order, in batches of at most batchSize.
type SourceReader interface {
	StreamEvents(ctx context.Context, since int64, batchSize int, fn func([]TrafficEvent) error) error
}

// ArtifactInfo describes one stored artifact.
type ArtifactInfo struct {
	Key     string
	Size    int64
	ModTime time.Time
}

// ArtifactStore is a name-addressed blob store for snapshots, reports and
// small state documents. Get returns ErrNotFound for missing keys.
type ArtifactStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	List(ctx context.Context, prefix string) ([]ArtifactInfo, error)
	Delete(ctx context.Context, key string) error
}

// NameResolver maps a hardware address to a human label. Implementations
// never fail; unresolved addresses get a deterministic placeholder.
type NameResolver interface {
	ResolveName(ctx context.Context, mac string) string
}
