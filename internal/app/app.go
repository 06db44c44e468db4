// Package app composes the session store, inventory mirror, expiry monitor
// and conversation into one explicit client context.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/suPer8Hu/pantry-assistant/internal/backend"
	"github.com/suPer8Hu/pantry-assistant/internal/chat"
	"github.com/suPer8Hu/pantry-assistant/internal/common"
	"github.com/suPer8Hu/pantry-assistant/internal/expiry"
	"github.com/suPer8Hu/pantry-assistant/internal/inventory"
	"github.com/suPer8Hu/pantry-assistant/internal/logger"
	"github.com/suPer8Hu/pantry-assistant/internal/metrics"
	"github.com/suPer8Hu/pantry-assistant/internal/models"
	"github.com/suPer8Hu/pantry-assistant/internal/session"
	"github.com/suPer8Hu/pantry-assistant/internal/store"
)

// ResponderFactory builds the chat collaborator for a new scope. The mirror
// is passed so local responders can ground replies in the inventory.
type ResponderFactory func(userID string, mirror *inventory.Mirror) chat.Responder

type Options struct {
	Slot       store.Slot
	Backend    *backend.Client
	SlotSecret string

	RequestTimeout        time.Duration
	ExpiryWindowDays      int
	ExpiryRecheckInterval time.Duration

	// Responder defaults to the backend /chat endpoint.
	Responder ResponderFactory
	Notifiers []expiry.Notifier
	Metrics   metrics.Recorder
	Clock     func() time.Time
	Logger    *slog.Logger
}

// App is the client context handed to the presentation layer. Every
// inventory or chat operation goes through the current identity's scope;
// without an identity they fail with common.ErrNotAuthenticated.
type App struct {
	opts     Options
	session  *session.Store
	authGate gate
	logger   *slog.Logger

	mu    sync.Mutex
	scope *scope
}

func New(opts Options) *App {
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.ExpiryWindowDays < 0 {
		opts.ExpiryWindowDays = expiry.DefaultWindowDays
	}
	if opts.Responder == nil {
		b := opts.Backend
		opts.Responder = func(string, *inventory.Mirror) chat.Responder { return b }
	}
	l := logger.OrDefault(opts.Logger)

	return &App{
		opts:    opts,
		session: session.NewStore(opts.Slot, opts.Backend, opts.SlotSecret, l),
		logger:  l,
	}
}

// Start restores a persisted identity and, if there is one, loads its inventory.
func (a *App) Start(ctx context.Context) error {
	if !a.session.Restore(ctx) {
		return nil
	}
	id, _ := a.session.Current()
	s := a.open(id)
	return a.run(ctx, s, func(ctx context.Context) error { return s.mirror.Refresh(ctx) })
}

func (a *App) Login(ctx context.Context, email, password string) (models.Identity, error) {
	return a.authenticate(ctx, email, password, backend.Login)
}

func (a *App) Signup(ctx context.Context, email, password string) (models.Identity, error) {
	return a.authenticate(ctx, email, password, backend.Signup)
}

// authenticate swaps in a fresh scope for the new identity and loads its
// inventory. A failed initial refresh is returned wrapped alongside the
// valid identity.
func (a *App) authenticate(ctx context.Context, email, password string, mode backend.AuthMode) (models.Identity, error) {
	if err := a.authGate.enter(); err != nil {
		return models.Identity{}, err
	}
	defer a.authGate.leave()

	actx, cancel := a.withTimeout(ctx)
	id, err := a.session.Authenticate(actx, email, password, mode)
	cancel()
	if err != nil {
		return models.Identity{}, err
	}
	a.logger.Info("authenticated", slog.String("user_id", id.ID), slog.String("mode", string(mode)))

	s := a.open(id)
	if err := a.run(ctx, s, func(ctx context.Context) error { return s.mirror.Refresh(ctx) }); err != nil {
		return id, fmt.Errorf("initial inventory refresh: %w", err)
	}
	return id, nil
}

// Logout disposes the scope and clears the identity in one step, so no
// inventory, transcript or pending alert outlives the identity it belonged
// to. It fails with common.ErrBusy while a login or signup is in flight.
func (a *App) Logout(ctx context.Context) error {
	if err := a.authGate.enter(); err != nil {
		return err
	}
	defer a.authGate.leave()

	a.mu.Lock()
	defer a.mu.Unlock()
	a.disposeLocked()
	return a.session.Logout(ctx)
}

func (a *App) Identity() (models.Identity, bool) {
	return a.session.Current()
}

func (a *App) Refresh(ctx context.Context) error {
	s, err := a.current()
	if err != nil {
		return err
	}
	return a.run(ctx, s, func(ctx context.Context) error { return s.mirror.Refresh(ctx) })
}

// Add returns the mirror's result; the caller clears its form when
// res.Status is inventory.AddOK.
func (a *App) Add(ctx context.Context, in inventory.AddInput) (inventory.AddResult, error) {
	s, err := a.current()
	if err != nil {
		return inventory.AddResult{Status: inventory.AddRemoteFailed}, err
	}
	var res inventory.AddResult
	err = a.run(ctx, s, func(ctx context.Context) error {
		var addErr error
		res, addErr = s.mirror.Add(ctx, in)
		return addErr
	})
	if errors.Is(err, common.ErrBusy) {
		res.Status = inventory.AddRemoteFailed
	}
	return res, err
}

func (a *App) Remove(ctx context.Context, itemID string) error {
	s, err := a.current()
	if err != nil {
		return err
	}
	return a.run(ctx, s, func(ctx context.Context) error { return s.mirror.Remove(ctx, itemID) })
}

// Send runs one chat round trip. Remote failures land in the transcript,
// not in the returned error.
func (a *App) Send(ctx context.Context, text string) (chat.Message, error) {
	s, err := a.current()
	if err != nil {
		return chat.Message{}, err
	}
	var reply chat.Message
	err = a.run(ctx, s, func(ctx context.Context) error {
		var sendErr error
		reply, sendErr = s.conversation.Send(ctx, text)
		return sendErr
	})
	return reply, err
}

func (a *App) Inventory() []models.InventoryItem {
	s, err := a.current()
	if err != nil {
		return nil
	}
	return s.mirror.Items()
}

func (a *App) Transcript() []chat.Message {
	s, err := a.current()
	if err != nil {
		return nil
	}
	return s.conversation.Transcript()
}

// ExpiringSoon is the alert set of the latest inventory snapshot.
func (a *App) ExpiringSoon() expiry.AlertSet {
	s, err := a.current()
	if err != nil {
		return expiry.AlertSet{}
	}
	return s.monitor.Current()
}

// Alerts delivers one event per inventory change that has expiring items.
// The channel belongs to the current identity and is abandoned on logout or
// identity switch; without an identity it is nil.
func (a *App) Alerts() <-chan expiry.Alert {
	s, err := a.current()
	if err != nil {
		return nil
	}
	return s.alerts.C()
}

// Busy reports whether an operation is in flight for the current identity
// or an authentication is running.
func (a *App) Busy() bool {
	if a.authGate.active() {
		return true
	}
	s, err := a.current()
	return err == nil && s.gate.active()
}

// Close disposes the scope without touching the persisted identity.
func (a *App) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.disposeLocked()
}

func (a *App) disposeLocked() {
	if a.scope != nil {
		a.scope.dispose()
		a.scope = nil
	}
}

func (a *App) current() (*scope, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.scope == nil {
		return nil, common.ErrNotAuthenticated
	}
	return a.scope, nil
}

func (a *App) open(id models.Identity) *scope {
	l := a.logger.With(slog.String("user_id", id.ID))
	mirror := inventory.NewMirror(id.ID, a.opts.Backend, l)
	alerts := expiry.NewChanNotifier(16)

	monitorOpts := []expiry.Option{
		expiry.WithWindowDays(a.opts.ExpiryWindowDays),
		expiry.WithClock(a.opts.Clock),
		expiry.WithMetrics(a.opts.Metrics),
		expiry.WithLogger(l),
		expiry.WithNotifier(alerts),
	}
	for _, n := range a.opts.Notifiers {
		monitorOpts = append(monitorOpts, expiry.WithNotifier(n))
	}
	monitor := expiry.NewMonitor(id.ID, monitorOpts...)
	mirror.OnChange(func(items []models.InventoryItem) { monitor.Observe(items) })

	ctx, cancel := context.WithCancel(context.Background())
	s := &scope{
		identity:     id,
		mirror:       mirror,
		conversation: chat.NewConversation(id.ID, a.opts.Responder(id.ID, mirror), l),
		monitor:      monitor,
		alerts:       alerts,
		ctx:          ctx,
		cancel:       cancel,
	}
	if a.opts.ExpiryRecheckInterval > 0 {
		go monitor.Run(ctx, a.opts.ExpiryRecheckInterval)
	}

	a.mu.Lock()
	a.disposeLocked()
	a.scope = s
	a.mu.Unlock()
	return s
}

func (a *App) run(ctx context.Context, s *scope, fn func(context.Context) error) error {
	if err := s.gate.enter(); err != nil {
		return err
	}
	defer s.gate.leave()

	ctx, cancel := s.bind(ctx, a.opts.RequestTimeout)
	defer cancel()
	return fn(ctx)
}

func (a *App) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.opts.RequestTimeout > 0 {
		return context.WithTimeout(ctx, a.opts.RequestTimeout)
	}
	return context.WithCancel(ctx)
}
