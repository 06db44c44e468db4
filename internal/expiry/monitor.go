package expiry

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/suPer8Hu/pantry-assistant/internal/logger"
	"github.com/suPer8Hu/pantry-assistant/internal/metrics"
	"github.com/suPer8Hu/pantry-assistant/internal/models"
)

var ErrDropped = errors.New("alert dropped: consumer not keeping up")

// Monitor turns inventory snapshots into alerts. It emits at most one alert
// per distinct snapshot.
type Monitor struct {
	userID    string
	window    int
	now       func() time.Time
	notifiers []Notifier
	metrics   metrics.Recorder
	logger    *slog.Logger

	mu          sync.Mutex
	hasSnapshot bool
	snapshotFP  string
	snapshot    []models.InventoryItem
	evaluatedOn models.Date
	lastSetFP   string
	last        AlertSet
}

type Option func(*Monitor)

func WithWindowDays(n int) Option {
	return func(m *Monitor) {
		if n >= 0 {
			m.window = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

func WithNotifier(n Notifier) Option {
	return func(m *Monitor) { m.notifiers = append(m.notifiers, n) }
}

func WithMetrics(r metrics.Recorder) Option {
	return func(m *Monitor) {
		if r != nil {
			m.metrics = r
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) { m.logger = logger.OrDefault(l) }
}

func NewMonitor(userID string, opts ...Option) *Monitor {
	m := &Monitor{
		userID:  userID,
		window:  DefaultWindowDays,
		now:     time.Now,
		metrics: metrics.Nop{},
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Observe recomputes the alert set for a new mirror snapshot and notifies
// when it is non-empty. An identical snapshot is ignored. It reports
// whether an alert was emitted.
func (m *Monitor) Observe(items []models.InventoryItem) bool {
	fp := fingerprint(items)

	m.mu.Lock()
	if m.hasSnapshot && fp == m.snapshotFP {
		m.mu.Unlock()
		return false
	}
	now := m.now()
	today := models.DateOf(now)
	set := Compute(items, today, m.window)

	m.hasSnapshot = true
	m.snapshotFP = fp
	m.snapshot = models.CloneItems(items)
	m.evaluatedOn = today
	m.lastSetFP = fingerprint(set.Items)
	m.last = set
	m.mu.Unlock()

	if set.Empty() {
		return false
	}
	m.emit(set, now)
	return true
}

// Recheck re-evaluates the last snapshot if the calendar day changed since
// it was last evaluated. It emits only if the alert set differs from the
// one computed before.
func (m *Monitor) Recheck() bool {
	m.mu.Lock()
	if !m.hasSnapshot {
		m.mu.Unlock()
		return false
	}
	now := m.now()
	today := models.DateOf(now)
	if today == m.evaluatedOn {
		m.mu.Unlock()
		return false
	}
	m.evaluatedOn = today
	set := Compute(m.snapshot, today, m.window)
	setFP := fingerprint(set.Items)
	if setFP == m.lastSetFP {
		m.mu.Unlock()
		return false
	}
	m.lastSetFP = setFP
	m.last = set
	m.mu.Unlock()

	if set.Empty() {
		return false
	}
	m.emit(set, now)
	return true
}

// Run calls Recheck every interval until ctx is done. interval <= 0 returns at once.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Recheck()
		}
	}
}

// Current returns the most recently computed alert set.
func (m *Monitor) Current() AlertSet {
	m.mu.Lock()
	defer m.mu.Unlock()
	return AlertSet{Items: models.CloneItems(m.last.Items), Names: append([]string(nil), m.last.Names...)}
}

func (m *Monitor) emit(set AlertSet, at time.Time) {
	a := Alert{UserID: m.userID, Names: set.Names, Items: set.Items, At: at}
	m.metrics.RecordAlert(len(set.Items))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, a); err != nil {
			m.logger.Warn("deliver expiry alert",
				slog.String("user_id", m.userID),
				slog.String("error", err.Error()),
			)
		}
	}
}
