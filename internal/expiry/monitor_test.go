package expiry

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/suPer8Hu/pantry-assistant/internal/metrics"
	"github.com/suPer8Hu/pantry-assistant/internal/models"
)

var today = models.Date{Year: 2026, Month: time.October, Day: 15}

func item(id, name string, expiresIn *int) models.InventoryItem {
	it := models.InventoryItem{ID: id, Name: name, Quantity: 1}
	if expiresIn != nil {
		d := today.AddDays(*expiresIn)
		it.ExpirationDate = &d
	}
	return it
}

func days(n int) *int { return &n }

type recorder struct {
	mu     sync.Mutex
	alerts []Alert
}

func (r *recorder) Notify(_ context.Context, a Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.alerts)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *clock {
	// mid-afternoon so fractional-day effects would show if present
	return &clock{now: time.Date(2026, time.October, 15, 15, 30, 0, 0, time.Local)}
}

func TestCompute_Window(t *testing.T) {
	items := []models.InventoryItem{
		item("a", "yesterday", days(-1)),
		item("b", "today", days(0)),
		item("c", "in2", days(2)),
		item("d", "in3", days(3)),
		item("e", "in4", days(4)),
		item("f", "undated", nil),
	}
	set := Compute(items, today, DefaultWindowDays)
	if want := []string{"today", "in2", "in3"}; !reflect.DeepEqual(set.Names, want) {
		t.Fatalf("names = %v, want %v", set.Names, want)
	}
	if len(set.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(set.Items))
	}
}

func TestCompute_Property(t *testing.T) {
	for offset := -10; offset <= 10; offset++ {
		items := []models.InventoryItem{item("x", "x", days(offset)), item("n", "n", nil)}
		set := Compute(items, today, DefaultWindowDays)
		want := offset >= 0 && offset <= 3
		if got := len(set.Items) == 1; got != want {
			t.Fatalf("offset %d: included = %v, want %v", offset, got, want)
		}
		for _, it := range set.Items {
			if it.ExpirationDate == nil {
				t.Fatalf("undated item included")
			}
		}
	}
}

func TestCompute_CustomWindow(t *testing.T) {
	items := []models.InventoryItem{item("a", "in5", days(5))}
	if !Compute(items, today, 3).Empty() {
		t.Fatalf("5 days out should not be in a 3 day window")
	}
	if Compute(items, today, 7).Empty() {
		t.Fatalf("5 days out should be in a 7 day window")
	}
}

func TestObserve_FiresOnceForMilkScenario(t *testing.T) {
	rec := &recorder{}
	clk := newClock()
	m := NewMonitor("u1", WithClock(clk.Now), WithNotifier(rec))

	snapshot := []models.InventoryItem{item("1", "milk", days(2))}
	if !m.Observe(snapshot) {
		t.Fatalf("expected alert")
	}
	if rec.count() != 1 || !reflect.DeepEqual(rec.alerts[0].Names, []string{"milk"}) {
		t.Fatalf("unexpected alerts: %+v", rec.alerts)
	}
	if rec.alerts[0].UserID != "u1" {
		t.Fatalf("alert user = %q", rec.alerts[0].UserID)
	}

	// an unrelated refresh with unchanged contents (fresh copy, same data)
	again := models.CloneItems(snapshot)
	if m.Observe(again) {
		t.Fatalf("unchanged snapshot must not re-fire")
	}
	if rec.count() != 1 {
		t.Fatalf("expected 1 alert, got %d", rec.count())
	}
}

func TestObserve_OneAlertNamingAllItems(t *testing.T) {
	rec := &recorder{}
	m := NewMonitor("u1", WithClock(newClock().Now), WithNotifier(rec))

	m.Observe([]models.InventoryItem{
		item("1", "milk", days(1)),
		item("2", "rice", days(30)),
		item("3", "yogurt", days(0)),
	})
	if rec.count() != 1 {
		t.Fatalf("expected exactly one alert, got %d", rec.count())
	}
	if want := []string{"milk", "yogurt"}; !reflect.DeepEqual(rec.alerts[0].Names, want) {
		t.Fatalf("names = %v, want %v", rec.alerts[0].Names, want)
	}
	if got := rec.alerts[0].Message(); got != "Heads up! These items are expiring soon: milk, yogurt" {
		t.Fatalf("message = %q", got)
	}
}

func TestObserve_OrderInsensitiveFingerprint(t *testing.T) {
	rec := &recorder{}
	m := NewMonitor("u1", WithClock(newClock().Now), WithNotifier(rec))
	a, b := item("1", "milk", days(1)), item("2", "eggs", days(2))

	m.Observe([]models.InventoryItem{a, b})
	m.Observe([]models.InventoryItem{b, a})
	if rec.count() != 1 {
		t.Fatalf("reordered snapshot should not re-fire, got %d alerts", rec.count())
	}
}

func TestObserve_ChangedSnapshotFiresAgain(t *testing.T) {
	rec := &recorder{}
	m := NewMonitor("u1", WithClock(newClock().Now), WithNotifier(rec))
	milk := item("1", "milk", days(1))

	m.Observe([]models.InventoryItem{milk})
	m.Observe([]models.InventoryItem{milk, item("2", "flour", nil)})
	if rec.count() != 2 {
		t.Fatalf("a changed mirror is a new change; expected 2 alerts, got %d", rec.count())
	}
}

func TestObserve_EmptySetDoesNotFire(t *testing.T) {
	rec := &recorder{}
	m := NewMonitor("u1", WithClock(newClock().Now), WithNotifier(rec))
	if m.Observe([]models.InventoryItem{item("1", "rice", days(90))}) {
		t.Fatalf("no alert expected")
	}
	if m.Observe(nil) {
		t.Fatalf("no alert expected for empty inventory")
	}
	if rec.count() != 0 {
		t.Fatalf("unexpected alerts: %d", rec.count())
	}
}

func TestRecheck_DayRollover(t *testing.T) {
	rec := &recorder{}
	clk := newClock()
	m := NewMonitor("u1", WithClock(clk.Now), WithNotifier(rec))

	m.Observe([]models.InventoryItem{item("1", "cheese", days(4))})
	if rec.count() != 0 {
		t.Fatalf("4 days out should not alert yet")
	}

	if m.Recheck() {
		t.Fatalf("same day recheck must not fire")
	}

	clk.Advance(24 * time.Hour)
	if !m.Recheck() {
		t.Fatalf("expected alert after cheese enters the window")
	}
	if m.Recheck() {
		t.Fatalf("recheck on the same day must not re-fire")
	}

	// next day the set is unchanged, so nothing new
	clk.Advance(24 * time.Hour)
	if m.Recheck() {
		t.Fatalf("unchanged alert set must not re-fire")
	}
	if rec.count() != 1 {
		t.Fatalf("expected 1 alert, got %d", rec.count())
	}
}

func TestRecheck_WithoutSnapshot(t *testing.T) {
	m := NewMonitor("u1")
	if m.Recheck() {
		t.Fatalf("no snapshot, no alert")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	m := NewMonitor("u1")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}

func TestEmit_NotifierErrorDoesNotStopOthers(t *testing.T) {
	rec := &recorder{}
	failing := NotifierFunc(func(context.Context, Alert) error { return errors.New("broker down") })
	m := NewMonitor("u1", WithClock(newClock().Now), WithNotifier(failing), WithNotifier(rec))

	m.Observe([]models.InventoryItem{item("1", "milk", days(0))})
	if rec.count() != 1 {
		t.Fatalf("second notifier should still receive the alert")
	}
}

func TestEmit_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMonitor("u1", WithClock(newClock().Now), WithMetrics(metrics.NewCollector(reg)))
	m.Observe([]models.InventoryItem{item("1", "milk", days(0)), item("2", "eggs", days(1))})

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var found bool
	for _, f := range families {
		if f.GetName() == "pantry_expiry_alerted_items_total" {
			found = true
			if v := f.GetMetric()[0].GetCounter().GetValue(); v != 2 {
				t.Fatalf("alerted items = %v, want 2", v)
			}
		}
	}
	if !found {
		t.Fatalf("alerted items metric not gathered")
	}
}

func TestChanNotifier_DropsWhenFull(t *testing.T) {
	n := NewChanNotifier(1)
	if err := n.Notify(context.Background(), Alert{Names: []string{"a"}}); err != nil {
		t.Fatalf("first notify: %v", err)
	}
	if err := n.Notify(context.Background(), Alert{Names: []string{"b"}}); !errors.Is(err, ErrDropped) {
		t.Fatalf("expected ErrDropped, got %v", err)
	}
	if got := <-n.C(); got.Names[0] != "a" {
		t.Fatalf("unexpected alert: %+v", got)
	}
}
