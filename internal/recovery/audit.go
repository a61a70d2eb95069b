package recovery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"skyhero/internal/domain"
)

// MarkerKey is the artifact key of the last-restore notice.
const MarkerKey = "last_restore.txt"

// AuditLog appends restore records to a plain text file.
type AuditLog struct {
	path string
	mu   sync.Mutex
}

func NewAuditLog(path string) *AuditLog {
	return &AuditLog{path: path}
}

func (a *AuditLog) Path() string { return a.path }

func (a *AuditLog) Append(rec domain.RestoreRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(a.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(a.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(rec.String() + "\n"); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadMarker returns the pending restore notice, if any.
func ReadMarker(ctx context.Context, store domain.ArtifactStore) (domain.RestoreMarker, bool, error) {
	raw, err := store.Get(ctx, MarkerKey)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.RestoreMarker{}, false, nil
	}
	if err != nil {
		return domain.RestoreMarker{}, false, err
	}
	m, ok := domain.ParseRestoreMarker(string(raw))
	return m, ok, nil
}

// ClearMarker removes the restore notice. cleared is false when there was
// nothing to remove.
func ClearMarker(ctx context.Context, store domain.ArtifactStore) (bool, error) {
	if _, err := store.Get(ctx, MarkerKey); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := store.Delete(ctx, MarkerKey); err != nil {
		return false, fmt.Errorf("clear restore marker: %w", err)
	}
	return true, nil
}

func writeMarker(ctx context.Context, store domain.ArtifactStore, m domain.RestoreMarker) error {
	return store.Put(ctx, MarkerKey, []byte(m.String()))
}
