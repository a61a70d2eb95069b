package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"skyhero/internal/domain"
)

// Key is the artifact name of the settings document.
const Key = "settings.json"

const minPasswordLength = 4

// Document is the persisted settings shape.
type Document struct {
	SelfHealingEnabled bool      `json:"self_healing_enabled"`
	PasswordHash       string    `json:"password_hash,omitempty"`
	UpdatedAt          time.Time `json:"updated_at,omitempty"`
}

// Store reads and writes the settings document through an artifact store.
type Store struct {
	artifacts domain.ArtifactStore
	now       func() time.Time

	mu sync.Mutex
}

func NewStore(artifacts domain.ArtifactStore) *Store {
	return &Store{artifacts: artifacts, now: time.Now}
}

// Load returns the current document. A missing document yields defaults:
// self-healing off and no password.
func (s *Store) Load(ctx context.Context) (Document, error) {
	raw, err := s.artifacts.Get(ctx, Key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return Document{}, nil
		}
		return Document{}, err
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, fmt.Errorf("settings: decode: %w", err)
	}
	return doc, nil
}

func (s *Store) SelfHealingEnabled(ctx context.Context) (bool, error) {
	doc, err := s.Load(ctx)
	if err != nil {
		return false, err
	}
	return doc.SelfHealingEnabled, nil
}

func (s *Store) SetSelfHealing(ctx context.Context, enabled bool) error {
	return s.update(ctx, func(doc *Document) error {
		doc.SelfHealingEnabled = enabled
		return nil
	})
}

// PasswordEnabled reports whether the dashboard is password protected.
func (s *Store) PasswordEnabled(ctx context.Context) (bool, error) {
	doc, err := s.Load(ctx)
	if err != nil {
		return false, err
	}
	return doc.PasswordHash != "", nil
}

func (s *Store) SetPassword(ctx context.Context, password string) error {
	password = strings.TrimSpace(password)
	if len(password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("settings: hash password: %w", err)
	}
	return s.update(ctx, func(doc *Document) error {
		doc.PasswordHash = string(hash)
		return nil
	})
}

func (s *Store) DisablePassword(ctx context.Context) error {
	return s.update(ctx, func(doc *Document) error {
		doc.PasswordHash = ""
		return nil
	})
}

// CheckPassword returns nil when no password is configured or when password
// matches, domain.ErrUnauthorized otherwise.
func (s *Store) CheckPassword(ctx context.Context, password string) error {
	doc, err := s.Load(ctx)
	if err != nil {
		return err
	}
	if doc.PasswordHash == "" {
		return nil
	}
	if err := bcrypt.CompareHashAndPassword([]byte(doc.PasswordHash), []byte(strings.TrimSpace(password))); err != nil {
		return domain.ErrUnauthorized
	}
	return nil
}

func (s *Store) update(ctx context.Context, mutate func(*Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.Load(ctx)
	if err != nil {
		return err
	}
	if err := mutate(&doc); err != nil {
		return err
	}
	doc.UpdatedAt = s.now().UTC()
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return s.artifacts.Put(ctx, Key, raw)
}
