package infra

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestQuickCheck(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	if ok, err := QuickCheck(ctx, filepath.Join(dir, "missing.db")); ok || err == nil {
		t.Fatalf("missing file: ok=%v err=%v, want unhealthy with error", ok, err)
	}

	garbage := filepath.Join(dir, "garbage.db")
	if err := os.WriteFile(garbage, []byte("definitely not a database file, just some bytes"), 0o600); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	if ok, _ := QuickCheck(ctx, garbage); ok {
		t.Fatal("garbage file reported healthy")
	}

	good := filepath.Join(dir, "good.db")
	db, err := OpenSQLite(ctx, good)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if _, err := db.ExecContext(ctx, "CREATE TABLE t (x INTEGER)"); err != nil {
		t.Fatalf("create: %v", err)
	}
	db.Close()

	ok, err := QuickCheck(ctx, good)
	if !ok || err != nil {
		t.Fatalf("good db: ok=%v err=%v", ok, err)
	}
}

func TestSQLRunnerRejectsUnmarkedQueries(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "r.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer db.Close()
	runner := NewSQLRunner(db, zerolog.Nop())

	if _, err := runner.Exec(ctx, "CREATE TABLE t (x INTEGER)"); err == nil {
		t.Fatal("expected unmarked statement to be rejected")
	}

	marked := "--sql 0b4c7f7e-5a4f-4c3f-9f51-8f0e4b7a6c11\nCREATE TABLE t (x INTEGER)"
	if _, err := runner.Exec(ctx, marked); err != nil {
		t.Fatalf("marked exec: %v", err)
	}

	insert := "--sql 1f2e3d4c-5b6a-4789-8a9b-0c1d2e3f4a5b\nINSERT INTO t (x) VALUES (?)"
	err = runner.InTx(ctx, func(tx SQLExecutor) error {
		if _, err := tx.Exec(ctx, insert, 1); err != nil {
			return err
		}
		return context.Canceled
	})
	if err != context.Canceled {
		t.Fatalf("InTx err = %v, want context.Canceled", err)
	}

	count := "--sql 2a3b4c5d-6e7f-4a8b-9c0d-1e2f3a4b5c6d\nSELECT COUNT(*) FROM t"
	var n int
	if err := runner.QueryRow(ctx, count).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("rolled back rows = %d, want 0", n)
	}
}
