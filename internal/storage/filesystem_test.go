package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"skyhero/internal/domain"
)

func TestSanitizeKey(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"2024-06-01.json", "2024-06-01.json", false},
		{"/abs/path.json", "abs/path.json", false},
		{`sub\file.json`, "sub/file.json", false},
		{"./a/../b.json", "b.json", false},
		{"../escape.json", "", true},
		{"..", "", true},
		{"  ", "", true},
	}
	for _, tc := range cases {
		got, err := sanitizeKey(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("sanitizeKey(%q) expected error, got %q", tc.in, got)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("sanitizeKey(%q) = %q, %v; want %q", tc.in, got, err, tc.want)
		}
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store, err := NewFileStore(root)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	if _, err := store.Get(ctx, "missing.json"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get missing err = %v, want ErrNotFound", err)
	}

	if err := store.Put(ctx, "traffic_month_2024-05.json", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Put(ctx, "traffic_month_2024-05.json", []byte(`{"a":2}`)); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	if err := store.Put(ctx, "traffic_period_last-7-days.json", []byte(`{}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := store.Get(ctx, "traffic_month_2024-05.json")
	if err != nil || string(got) != `{"a":2}` {
		t.Fatalf("Get = %s, %v", got, err)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected no temp files left behind, found %d entries", len(entries))
	}

	list, err := store.List(ctx, "traffic_month_")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].Key != "traffic_month_2024-05.json" || list[0].Size != 7 {
		t.Fatalf("List = %+v", list)
	}

	if err := store.Delete(ctx, "traffic_month_2024-05.json"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(ctx, "traffic_month_2024-05.json"); err != nil {
		t.Fatalf("Delete missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "traffic_month_2024-05.json")); !os.IsNotExist(err) {
		t.Fatalf("file still present: %v", err)
	}
}
