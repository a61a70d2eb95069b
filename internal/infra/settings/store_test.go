package settings

import (
	"context"
	"errors"
	"strings"
	"testing"

	"skyhero/internal/domain"
)

type memArtifacts struct {
	data map[string][]byte
	err  error
}

func (m *memArtifacts) Get(ctx context.Context, key string) ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	v, ok := m.data[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return v, nil
}

func (m *memArtifacts) Put(ctx context.Context, key string, data []byte) error {
	if m.err != nil {
		return m.err
	}
	if m.data == nil {
		m.data = map[string][]byte{}
	}
	m.data[key] = data
	return nil
}

func (m *memArtifacts) List(ctx context.Context, prefix string) ([]domain.ArtifactInfo, error) {
	return nil, nil
}

func (m *memArtifacts) Delete(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func TestDefaultsWhenMissing(t *testing.T) {
	store := NewStore(&memArtifacts{})
	enabled, err := store.SelfHealingEnabled(context.Background())
	if err != nil {
		t.Fatalf("SelfHealingEnabled error: %v", err)
	}
	if enabled {
		t.Fatal("self-healing should default to disabled")
	}
	if err := store.CheckPassword(context.Background(), "anything"); err != nil {
		t.Fatalf("no password configured should allow access, got %v", err)
	}
}

func TestSetSelfHealing(t *testing.T) {
	mem := &memArtifacts{}
	store := NewStore(mem)
	ctx := context.Background()
	if err := store.SetSelfHealing(ctx, true); err != nil {
		t.Fatalf("SetSelfHealing error: %v", err)
	}
	enabled, err := store.SelfHealingEnabled(ctx)
	if err != nil || !enabled {
		t.Fatalf("enabled = %v, err = %v", enabled, err)
	}
	if !strings.Contains(string(mem.data[Key]), `"self_healing_enabled": true`) {
		t.Fatalf("unexpected document: %s", mem.data[Key])
	}
}

func TestPasswordLifecycle(t *testing.T) {
	store := NewStore(&memArtifacts{})
	ctx := context.Background()

	if err := store.SetPassword(ctx, " ab "); err == nil {
		t.Fatal("expected error for short password")
	}
	if err := store.SetPassword(ctx, "hunter22"); err != nil {
		t.Fatalf("SetPassword error: %v", err)
	}
	on, _ := store.PasswordEnabled(ctx)
	if !on {
		t.Fatal("password should be enabled")
	}
	if err := store.CheckPassword(ctx, "hunter22"); err != nil {
		t.Fatalf("correct password rejected: %v", err)
	}
	if err := store.CheckPassword(ctx, "wrong"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("wrong password err = %v, want ErrUnauthorized", err)
	}
	if err := store.DisablePassword(ctx); err != nil {
		t.Fatalf("DisablePassword error: %v", err)
	}
	if err := store.CheckPassword(ctx, "wrong"); err != nil {
		t.Fatalf("disabled password should allow access, got %v", err)
	}
}

func TestLoadPropagatesStoreErrors(t *testing.T) {
	store := NewStore(&memArtifacts{err: errors.New("disk gone")})
	if _, err := store.SelfHealingEnabled(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
