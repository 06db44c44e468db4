// Package session owns the authenticated identity and its persisted slot.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/suPer8Hu/pantry-assistant/internal/auth"
	"github.com/suPer8Hu/pantry-assistant/internal/backend"
	"github.com/suPer8Hu/pantry-assistant/internal/common"
	"github.com/suPer8Hu/pantry-assistant/internal/logger"
	"github.com/suPer8Hu/pantry-assistant/internal/models"
	"github.com/suPer8Hu/pantry-assistant/internal/store"
)

// SlotKey is the fixed slot the identity token is persisted under.
const SlotKey = "pantry_identity"

type Authenticator interface {
	Authenticate(ctx context.Context, mode backend.AuthMode, email, password string) (models.Identity, error)
}

type Store struct {
	mu      sync.RWMutex
	current *models.Identity

	slot   store.Slot
	auth   Authenticator
	secret string
	logger *slog.Logger
}

func NewStore(slot store.Slot, a Authenticator, secret string, l *slog.Logger) *Store {
	return &Store{slot: slot, auth: a, secret: secret, logger: logger.OrDefault(l)}
}

func (s *Store) Current() (models.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return models.Identity{}, false
	}
	return *s.current, true
}

// Restore loads the persisted identity, if any. It makes no network call and
// never fails: an absent or unreadable slot just leaves the store logged out.
func (s *Store) Restore(ctx context.Context) bool {
	tok, err := s.slot.Get(ctx, SlotKey)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("read identity slot", slog.String("error", err.Error()))
		}
		return false
	}

	id, err := auth.ParseIdentity(tok, s.secret)
	if err != nil {
		s.logger.Warn("ignoring malformed identity slot", slog.String("error", err.Error()))
		return false
	}

	s.mu.Lock()
	s.current = &id
	s.mu.Unlock()
	return true
}

// Authenticate logs in or signs up. On failure the current identity and the
// slot are left as they were.
func (s *Store) Authenticate(ctx context.Context, email, password string, mode backend.AuthMode) (models.Identity, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return models.Identity{}, &common.ValidationError{Field: "email", Reason: "required"}
	}
	if password == "" {
		return models.Identity{}, &common.ValidationError{Field: "password", Reason: "required"}
	}

	id, err := s.auth.Authenticate(ctx, mode, email, password)
	if err != nil {
		return models.Identity{}, err
	}

	s.mu.Lock()
	s.current = &id
	s.mu.Unlock()

	// A slot write failure costs only persistence across restarts.
	tok, err := auth.SignIdentity(id, s.secret, 0)
	if err == nil {
		err = s.slot.Put(ctx, SlotKey, tok)
	}
	if err != nil {
		s.logger.Warn("persist identity slot", slog.String("error", err.Error()))
	}
	return id, nil
}

// Logout clears the identity and removes the slot. The identity is cleared
// even when the slot delete fails.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()

	if err := s.slot.Delete(ctx, SlotKey); err != nil {
		s.logger.Warn("delete identity slot", slog.String("error", err.Error()))
		return err
	}
	return nil
}
