// Package inventory keeps the local mirror of one user's pantry items.
package inventory

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/suPer8Hu/pantry-assistant/internal/backend"
	"github.com/suPer8Hu/pantry-assistant/internal/common"
	"github.com/suPer8Hu/pantry-assistant/internal/logger"
	"github.com/suPer8Hu/pantry-assistant/internal/models"
)

// ErrClosed is returned by operations on a mirror whose identity logged out.
var ErrClosed = errors.New("inventory mirror closed")

type Backend interface {
	ListInventory(ctx context.Context, userID string) ([]models.InventoryItem, error)
	AddItem(ctx context.Context, item backend.NewItem) error
	DeleteItem(ctx context.Context, itemID string) error
}

// AddInput is the raw form input for a new item.
type AddInput struct {
	Name       string
	Quantity   string
	Expiration string // YYYY-MM-DD or empty
}

type AddStatus int

const (
	AddOK AddStatus = iota
	AddInvalid
	AddRemoteFailed
)

func (s AddStatus) String() string {
	switch s {
	case AddOK:
		return "ok"
	case AddInvalid:
		return "invalid"
	default:
		return "remote_failed"
	}
}

// AddResult tells the caller whether to clear its input fields (Status == AddOK).
type AddResult struct {
	Status AddStatus
}

// Mirror holds the last inventory snapshot returned by the backend for one
// user. Items only enter through Refresh. Remove deletes locally after the
// backend confirms.
type Mirror struct {
	userID  string
	backend Backend
	logger  *slog.Logger

	mu        sync.Mutex
	items     []models.InventoryItem
	listeners []func([]models.InventoryItem)
	closed    bool
}

func NewMirror(userID string, b Backend, l *slog.Logger) *Mirror {
	return &Mirror{
		userID:  userID,
		backend: b,
		logger:  logger.OrDefault(l).With(slog.String("user_id", userID)),
	}
}

func (m *Mirror) UserID() string { return m.userID }

// Items returns a copy of the current contents.
func (m *Mirror) Items() []models.InventoryItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return models.CloneItems(m.items)
}

// OnChange registers fn to run after every content change, with a copy of
// the new contents. Listeners run in registration order on the caller's goroutine.
func (m *Mirror) OnChange(fn func([]models.InventoryItem)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Refresh replaces the contents wholesale with the backend's list. Racing
// refreshes are last-write-wins. A failed fetch leaves contents unchanged.
func (m *Mirror) Refresh(ctx context.Context) error {
	if m.isClosed() {
		return ErrClosed
	}
	items, err := m.backend.ListInventory(ctx, m.userID)
	if err != nil {
		m.logger.Warn("refresh inventory", slog.String("error", err.Error()))
		return err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.items = models.CloneItems(items)
	m.mu.Unlock()

	m.logger.Debug("inventory refreshed", slog.Int("items", len(items)))
	m.notify()
	return nil
}

// Add validates in, creates the item remotely and re-lists. Nothing is
// added locally from the create response.
func (m *Mirror) Add(ctx context.Context, in AddInput) (AddResult, error) {
	item, err := m.validate(in)
	if err != nil {
		return AddResult{Status: AddInvalid}, err
	}
	if m.isClosed() {
		return AddResult{Status: AddRemoteFailed}, ErrClosed
	}

	if err := m.backend.AddItem(ctx, item); err != nil {
		m.logger.Warn("add item", slog.String("name", item.Name), slog.String("error", err.Error()))
		return AddResult{Status: AddRemoteFailed}, err
	}
	if err := m.Refresh(ctx); err != nil {
		return AddResult{Status: AddRemoteFailed}, err
	}
	return AddResult{Status: AddOK}, nil
}

func (m *Mirror) validate(in AddInput) (backend.NewItem, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return backend.NewItem{}, &common.ValidationError{Field: "name", Reason: "required"}
	}

	q := strings.TrimSpace(in.Quantity)
	if q == "" {
		return backend.NewItem{}, &common.ValidationError{Field: "quantity", Reason: "required"}
	}
	qty, err := strconv.Atoi(q)
	if err != nil || qty < 0 {
		return backend.NewItem{}, &common.ValidationError{Field: "quantity", Reason: "must be a whole number of 0 or more"}
	}

	item := backend.NewItem{UserID: m.userID, Name: name, Quantity: qty}
	if exp := strings.TrimSpace(in.Expiration); exp != "" {
		d, err := models.ParseDate(exp)
		if err != nil {
			return backend.NewItem{}, &common.ValidationError{Field: "expiration", Reason: "must be YYYY-MM-DD"}
		}
		item.ExpirationDate = &d
	}
	return item, nil
}

// Remove deletes the item remotely. Only after the backend confirms does it
// drop the item with that id locally; no re-fetch follows.
func (m *Mirror) Remove(ctx context.Context, itemID string) error {
	if m.isClosed() {
		return ErrClosed
	}
	if err := m.backend.DeleteItem(ctx, itemID); err != nil {
		m.logger.Warn("delete item", slog.String("item_id", itemID), slog.String("error", err.Error()))
		return err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	kept := make([]models.InventoryItem, 0, len(m.items))
	for _, it := range m.items {
		if it.ID != itemID {
			kept = append(kept, it)
		}
	}
	changed := len(kept) != len(m.items)
	m.items = kept
	m.mu.Unlock()

	if changed {
		m.notify()
	}
	return nil
}

// Close discards contents and listeners. Results of calls still in flight
// are dropped.
func (m *Mirror) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.items = nil
	m.listeners = nil
}

func (m *Mirror) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *Mirror) notify() {
	m.mu.Lock()
	listeners := append([]func([]models.InventoryItem){}, m.listeners...)
	snapshot := m.items
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(models.CloneItems(snapshot))
	}
}
