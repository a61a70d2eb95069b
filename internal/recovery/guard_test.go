package recovery

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"skyhero/internal/backup"
	"skyhero/internal/db"
	"skyhero/internal/domain"
	"skyhero/internal/storage"
)

type fixture struct {
	base    string
	live    string
	backups string
	rotator *backup.Rotator
	markers *storage.FileStore
	audit   *AuditLog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	base := t.TempDir()
	markers, err := storage.NewFileStore(filepath.Join(base, "data"))
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{
		base:    base,
		live:    filepath.Join(base, "traffic.db"),
		backups: filepath.Join(base, "db_backups"),
		markers: markers,
		audit:   NewAuditLog(filepath.Join(base, "logs", "db_restore_history.log")),
	}
	f.rotator = backup.NewRotator(f.live, f.backups, "TrafficAnalyzer", 0, zerolog.Nop())
	if err := os.MkdirAll(f.backups, 0o755); err != nil {
		t.Fatal(err)
	}
	return f
}

func (f *fixture) guard(enabled bool) *Guard {
	return NewGuard(f.live, enabled, f.rotator, f.audit, f.markers, zerolog.Nop())
}

func writeValidDB(t *testing.T, path string) {
	t.Helper()
	conn, err := db.Open(context.Background(), path, zerolog.Nop())
	if err != nil {
		t.Fatalf("create db: %v", err)
	}
	conn.Close()
}

func touch(t *testing.T, path string, mt time.Time) {
	t.Helper()
	if err := os.Chtimes(path, mt, mt); err != nil {
		t.Fatal(err)
	}
}

func auditLines(t *testing.T, a *AuditLog) []string {
	t.Helper()
	raw, err := os.ReadFile(a.Path())
	if err != nil {
		t.Fatalf("read audit log: %v", err)
	}
	return strings.Split(strings.TrimSpace(string(raw)), "\n")
}

func TestEnsureHealthyDisabledSkipsChecks(t *testing.T) {
	f := newFixture(t)
	if !f.guard(false).EnsureHealthy(context.Background()) {
		t.Fatal("disabled guard should report healthy")
	}
	if _, err := os.Stat(f.audit.Path()); !os.IsNotExist(err) {
		t.Fatal("disabled guard should not touch the audit log")
	}
}

func TestCheckIntegrity(t *testing.T) {
	f := newFixture(t)
	g := f.guard(true)
	if g.CheckIntegrity(context.Background()) {
		t.Fatal("missing store should be unhealthy")
	}
	writeValidDB(t, f.live)
	if !g.CheckIntegrity(context.Background()) {
		t.Fatal("fresh store should be healthy")
	}
}

func TestEnsureHealthyRestoresNewestBackup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	good := filepath.Join(f.backups, "TrafficAnalyzer_2024-06-01_03.db")
	writeValidDB(t, good)
	if err := os.WriteFile(f.live, []byte("not a database at all"), 0o644); err != nil {
		t.Fatal(err)
	}

	g := f.guard(true)
	if !g.EnsureHealthy(ctx) {
		t.Fatal("EnsureHealthy = false, want true after restore")
	}

	info, err := os.Stat(f.live)
	if err != nil {
		t.Fatalf("live store missing: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("live store mode = %v, want 0600", info.Mode().Perm())
	}
	quarantined, _ := filepath.Glob(f.live + ".corrupted.*")
	if len(quarantined) != 1 {
		t.Fatalf("quarantined stores = %v, want one", quarantined)
	}

	lines := auditLines(t, f.audit)
	kinds := []string{"DETECTED", "RESTORED", "TIME GAP"}
	if len(lines) != len(kinds) {
		t.Fatalf("audit lines = %v", lines)
	}
	for i, k := range kinds {
		if !strings.Contains(lines[i], "] "+k+": ") {
			t.Fatalf("audit line %d = %q, want kind %s", i, lines[i], k)
		}
	}

	m, ok, err := ReadMarker(ctx, f.markers)
	if err != nil || !ok {
		t.Fatalf("ReadMarker = %v, %v", ok, err)
	}
	if m.BackupFile != filepath.Base(good) {
		t.Fatalf("marker backup = %q", m.BackupFile)
	}
	cleared, err := ClearMarker(ctx, f.markers)
	if err != nil || !cleared {
		t.Fatalf("ClearMarker = %v, %v", cleared, err)
	}
	if cleared, _ := ClearMarker(ctx, f.markers); cleared {
		t.Fatal("second ClearMarker should report nothing to clear")
	}
}

func TestRestoreDoesNotFallBackToOlderBackups(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	t1 := filepath.Join(f.backups, "TrafficAnalyzer_2024-05-30_03.db")
	t2 := filepath.Join(f.backups, "TrafficAnalyzer_2024-05-31_03.db")
	writeValidDB(t, t1)
	writeValidDB(t, t2)

	// newest artifact: a correctly checksummed archive of a broken store
	if err := os.WriteFile(f.live, []byte("garbage pages"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := f.rotator.Create(ctx); err != nil {
		t.Fatalf("Create: %v", err)
	}
	t3, err := f.rotator.Latest()
	if err != nil {
		t.Fatal(err)
	}
	touch(t, t1, base.Add(-3*time.Hour))
	touch(t, t2, base.Add(-2*time.Hour))
	touch(t, t3.Path, base.Add(-time.Hour))

	err = f.guard(true).Restore(ctx, "")
	if !errors.Is(err, domain.ErrRecoveryFailed) {
		t.Fatalf("Restore err = %v, want ErrRecoveryFailed", err)
	}
	lines := auditLines(t, f.audit)
	if len(lines) != 2 {
		t.Fatalf("audit lines = %v, want DETECTED and FAILED", lines)
	}
	want := "FAILED: Restored database " + t3.Name + " is corrupted"
	if !strings.HasSuffix(lines[1], want) {
		t.Fatalf("audit = %q, want suffix %q", lines[1], want)
	}
	raw, _ := os.ReadFile(f.live)
	if string(raw) != "garbage pages" {
		t.Fatal("broken store must stay in place after a refused restore")
	}
	if _, err := os.Stat(f.live + ".tmp"); !os.IsNotExist(err) {
		t.Fatal("temporary copy should be removed")
	}
	if _, ok, _ := ReadMarker(ctx, f.markers); ok {
		t.Fatal("no marker after a failed restore")
	}
}

func TestRestoreRejectsChecksumMismatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	writeValidDB(t, f.live)
	if err := f.rotator.Create(ctx); err != nil {
		t.Fatalf("Create: %v", err)
	}
	a, _ := f.rotator.Latest()
	os.WriteFile(a.Path+".sha256", []byte("0000\n"), 0o644)

	if err := f.guard(true).Restore(ctx, a.Path); !errors.Is(err, domain.ErrRecoveryFailed) {
		t.Fatalf("Restore err = %v, want ErrRecoveryFailed", err)
	}
	lines := auditLines(t, f.audit)
	if !strings.Contains(lines[len(lines)-1], "FAILED: Checksum verification failed") {
		t.Fatalf("audit = %v", lines)
	}
}

func TestRestoreWithoutBackups(t *testing.T) {
	f := newFixture(t)
	err := f.guard(true).Restore(context.Background(), "")
	if !errors.Is(err, domain.ErrRecoveryFailed) || !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Restore err = %v", err)
	}
	lines := auditLines(t, f.audit)
	if len(lines) != 2 || !strings.Contains(lines[0], "DETECTED") || !strings.Contains(lines[1], "FAILED: No backup files found") {
		t.Fatalf("audit = %v", lines)
	}
}

func TestRestoreQuarantinesStoreSidecars(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	writeValidDB(t, filepath.Join(f.backups, "TrafficAnalyzer_2024-06-01_03.db"))
	if err := os.WriteFile(f.live, []byte("torn pages"), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, side := range []string{"-journal", "-wal", "-shm"} {
		if err := os.WriteFile(f.live+side, []byte("left behind by a crash"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if !f.guard(true).EnsureHealthy(ctx) {
		t.Fatal("EnsureHealthy = false, want true after restore")
	}
	for _, side := range []string{"-journal", "-wal", "-shm"} {
		if _, err := os.Stat(f.live + side); !os.IsNotExist(err) {
			t.Fatalf("%s still next to the restored store", side)
		}
		moved, _ := filepath.Glob(f.live + side + ".corrupted.*")
		if len(moved) != 1 {
			t.Fatalf("quarantined %s = %v, want one", side, moved)
		}
	}
	stores, _ := filepath.Glob(f.live + ".corrupted.*")
	if len(stores) != 1 {
		t.Fatalf("quarantined stores = %v, want one", stores)
	}
}
