package recovery

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"skyhero/internal/backup"
	"skyhero/internal/domain"
	"skyhero/internal/infra"
)

// BackupSource locates the newest restorable artifact.
type BackupSource interface {
	Latest() (domain.BackupArtifact, error)
}

// Guard checks the event store and, when self-healing is enabled, replaces a
// broken store with the newest backup after verifying it.
type Guard struct {
	LivePath string
	Enabled  bool

	backups BackupSource
	audit   *AuditLog
	markers domain.ArtifactStore
	logger  zerolog.Logger
	now     func() time.Time
}

func NewGuard(livePath string, enabled bool, backups BackupSource, audit *AuditLog, markers domain.ArtifactStore, logger zerolog.Logger) *Guard {
	return &Guard{
		LivePath: livePath,
		Enabled:  enabled,
		backups:  backups,
		audit:    audit,
		markers:  markers,
		logger:   logger,
		now:      time.Now,
	}
}

// CheckIntegrity reports whether the store exists and passes quick_check.
func (g *Guard) CheckIntegrity(ctx context.Context) bool {
	ok, err := infra.QuickCheck(ctx, g.LivePath)
	if err != nil {
		g.logger.Warn().Err(err).Str("path", g.LivePath).Msg("recovery: integrity check failed")
	}
	return ok
}

// EnsureHealthy restores from the newest backup when the store is unhealthy.
// It always reports healthy when self-healing is disabled.
func (g *Guard) EnsureHealthy(ctx context.Context) bool {
	if !g.Enabled {
		return true
	}
	if g.CheckIntegrity(ctx) {
		return true
	}
	g.logger.Warn().Msg("recovery: event store unhealthy, attempting restore")
	if err := g.Restore(ctx, ""); err != nil {
		g.logger.Error().Err(err).Msg("recovery: restore failed")
		return false
	}
	return g.CheckIntegrity(ctx)
}

// Restore promotes the artifact at backupPath, or the newest one when
// backupPath is empty. Only the chosen artifact is tried.
func (g *Guard) Restore(ctx context.Context, backupPath string) error {
	detected := g.now()
	g.record(detected, domain.RestoreDetected, "TrafficAnalyzer.db is missing/corrupt")

	artifact, err := g.pick(backupPath)
	if err != nil {
		msg := "No backup files found"
		if backupPath != "" {
			msg = "Backup file not found: " + filepath.Base(backupPath)
		}
		g.record(detected, domain.RestoreFailed, msg)
		return fmt.Errorf("%w: %w", domain.ErrRecoveryFailed, err)
	}
	g.logger.Info().Str("artifact", artifact.Name).Msg("recovery: restoring event store")

	if err := g.promote(ctx, artifact, detected); err != nil {
		var failed *failure
		if !errors.As(err, &failed) {
			g.record(g.now(), domain.RestoreCritical, "Exception during restore process: "+err.Error())
		}
		return fmt.Errorf("%w: %w", domain.ErrRecoveryFailed, err)
	}
	return nil
}

// failure is a restore attempt that was refused and already audited.
type failure struct{ msg string }

func (f *failure) Error() string { return f.msg }

func (g *Guard) promote(ctx context.Context, a domain.BackupArtifact, detected time.Time) error {
	if _, err := backup.VerifyChecksum(a); err != nil {
		g.logger.Warn().Err(err).Str("artifact", a.Name).Msg("recovery: checksum verification failed")
		return g.fail(detected, "Checksum verification failed for "+a.Name)
	}

	tmp := g.LivePath + ".tmp"
	if err := backup.Materialize(a, tmp); err != nil {
		os.Remove(tmp)
		if a.Compressed {
			return g.fail(detected, "Could not decompress "+a.Name)
		}
		return err
	}
	if ok, err := infra.QuickCheck(ctx, tmp); !ok {
		os.Remove(tmp)
		g.logger.Warn().Err(err).Str("artifact", a.Name).Msg("recovery: backup copy failed integrity check")
		return g.fail(detected, fmt.Sprintf("Restored database %s is corrupted", a.Name))
	}

	if err := g.quarantine(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, g.LivePath); err != nil {
		return fmt.Errorf("promote backup: %w", err)
	}
	if err := os.Chmod(g.LivePath, 0o600); err != nil {
		return fmt.Errorf("chmod store: %w", err)
	}

	restored := g.now()
	g.record(restored, domain.RestoreRestored, "Successfully restored from "+a.Name)
	g.record(restored, domain.RestoreTimeGap, fmt.Sprintf("DB was unavailable between %s and %s",
		detected.Format(domain.AuditTimeLayout), restored.Format(domain.AuditTimeLayout)))

	marker := domain.RestoreMarker{
		CorruptionTime: detected.Format(domain.AuditTimeLayout),
		RestoreTime:    restored.Format(domain.AuditTimeLayout),
		BackupFile:     a.Name,
	}
	if err := writeMarker(ctx, g.markers, marker); err != nil {
		g.logger.Warn().Err(err).Msg("recovery: could not write restore marker")
	}
	g.logger.Info().Str("artifact", a.Name).Msg("recovery: event store restored")
	return nil
}

// sidecars are the files SQLite keeps next to a store. A leftover journal
// would be replayed into whatever file takes the store's place.
var sidecars = []string{"", "-journal", "-wal", "-shm"}

// quarantine moves the live store and its sidecars aside under one
// timestamped suffix.
func (g *Guard) quarantine() error {
	suffix := ".corrupted." + g.now().Format("20060102_150405")
	for _, side := range sidecars {
		path := g.LivePath + side
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
		if err := os.Rename(path, path+suffix); err != nil {
			return fmt.Errorf("quarantine %s: %w", filepath.Base(path), err)
		}
		g.logger.Warn().Str("path", path+suffix).Msg("recovery: moved broken store file aside")
	}
	return nil
}

func (g *Guard) pick(backupPath string) (domain.BackupArtifact, error) {
	if backupPath != "" {
		a, err := backup.Artifact(filepath.Clean(backupPath))
		if err != nil {
			return domain.BackupArtifact{}, fmt.Errorf("backup %s: %w", backupPath, err)
		}
		return a, nil
	}
	return g.backups.Latest()
}

func (g *Guard) fail(at time.Time, msg string) error {
	g.record(at, domain.RestoreFailed, msg)
	return &failure{msg: msg}
}

func (g *Guard) record(at time.Time, kind domain.RestoreKind, msg string) {
	if g.audit == nil {
		return
	}
	if err := g.audit.Append(domain.RestoreRecord{At: at, Kind: kind, Message: msg}); err != nil {
		g.logger.Warn().Err(err).Msg("recovery: audit log write failed")
	}
}
