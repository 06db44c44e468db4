package inventory

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"testing"
	"time"

	"github.com/suPer8Hu/pantry-assistant/internal/backend"
	"github.com/suPer8Hu/pantry-assistant/internal/backend/backendtest"
	"github.com/suPer8Hu/pantry-assistant/internal/common"
	"github.com/suPer8Hu/pantry-assistant/internal/models"
)

func newTestMirror(t *testing.T) (*Mirror, *backendtest.Server) {
	t.Helper()
	srv := backendtest.New()
	t.Cleanup(srv.Close)
	return NewMirror("u1", backend.NewClient(srv.URL), nil), srv
}

func names(items []models.InventoryItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Name)
	}
	return out
}

func TestRefresh_ReplacesWholesale(t *testing.T) {
	m, srv := newTestMirror(t)
	ctx := context.Background()
	srv.Seed("u1", "milk", 1, "2026-10-17")
	srv.Seed("u2", "cheese", 1, "")

	if err := m.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if got := names(m.Items()); !reflect.DeepEqual(got, []string{"milk"}) {
		t.Fatalf("items = %v", got)
	}

	// server-side change: a refresh takes it as is
	srv.Seed("u1", "eggs", 12, "")
	if err := m.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if got := names(m.Items()); !reflect.DeepEqual(got, []string{"milk", "eggs"}) {
		t.Fatalf("items = %v", got)
	}
}

func TestRefresh_Idempotent(t *testing.T) {
	m, srv := newTestMirror(t)
	srv.Seed("u1", "milk", 1, "2026-10-17")
	srv.Seed("u1", "rice", 2, "")

	_ = m.Refresh(context.Background())
	first := m.Items()
	_ = m.Refresh(context.Background())
	if !reflect.DeepEqual(first, m.Items()) {
		t.Fatalf("consecutive refreshes differ: %v vs %v", first, m.Items())
	}
}

func TestRefresh_FailureLeavesContents(t *testing.T) {
	m, srv := newTestMirror(t)
	srv.Seed("u1", "milk", 1, "")
	_ = m.Refresh(context.Background())

	srv.Fail(backendtest.RouteList, http.StatusInternalServerError)
	if err := m.Refresh(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if got := names(m.Items()); !reflect.DeepEqual(got, []string{"milk"}) {
		t.Fatalf("items changed on failure: %v", got)
	}
}

func TestAdd_ValidationNeverCallsBackend(t *testing.T) {
	m, srv := newTestMirror(t)
	srv.Seed("u1", "milk", 1, "")
	_ = m.Refresh(context.Background())
	before := m.Items()
	listBefore := srv.Count(backendtest.RouteList)

	cases := []AddInput{
		{Name: "", Quantity: "1"},
		{Name: "   ", Quantity: "1"},
		{Name: "eggs", Quantity: ""},
		{Name: "eggs", Quantity: "a dozen"},
		{Name: "eggs", Quantity: "-1"},
		{Name: "eggs", Quantity: "12", Expiration: "tomorrow"},
	}
	for _, in := range cases {
		res, err := m.Add(context.Background(), in)
		var ve *common.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("Add(%+v): expected ValidationError, got %v", in, err)
		}
		if res.Status != AddInvalid {
			t.Fatalf("Add(%+v): status = %v", in, res.Status)
		}
	}
	if srv.Count(backendtest.RouteAdd) != 0 || srv.Count(backendtest.RouteList) != listBefore {
		t.Fatalf("validation failures reached the backend")
	}
	if !reflect.DeepEqual(before, m.Items()) {
		t.Fatalf("mirror changed on validation failure")
	}
}

func TestAdd_RefreshesInsteadOfEchoing(t *testing.T) {
	m, srv := newTestMirror(t)

	res, err := m.Add(context.Background(), AddInput{Name: " milk ", Quantity: "1", Expiration: "2026-10-17"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if res.Status != AddOK {
		t.Fatalf("status = %v", res.Status)
	}
	if srv.Count(backendtest.RouteAdd) != 1 || srv.Count(backendtest.RouteList) != 1 {
		t.Fatalf("expected one create and one list, got %d/%d",
			srv.Count(backendtest.RouteAdd), srv.Count(backendtest.RouteList))
	}
	items := m.Items()
	if len(items) != 1 || items[0].Name != "milk" || items[0].ID == "" {
		t.Fatalf("unexpected items: %+v", items)
	}
	if items[0].ExpirationDate == nil || items[0].ExpirationDate.String() != "2026-10-17" {
		t.Fatalf("unexpected expiration: %v", items[0].ExpirationDate)
	}
}

func TestAdd_ZeroQuantityIsValid(t *testing.T) {
	m, _ := newTestMirror(t)
	res, err := m.Add(context.Background(), AddInput{Name: "salt", Quantity: "0"})
	if err != nil || res.Status != AddOK {
		t.Fatalf("add = %v, %v", res, err)
	}
}

func TestAdd_RemoteFailureLeavesMirror(t *testing.T) {
	m, srv := newTestMirror(t)
	srv.Seed("u1", "milk", 1, "")
	_ = m.Refresh(context.Background())
	srv.Fail(backendtest.RouteAdd, http.StatusInternalServerError)

	res, err := m.Add(context.Background(), AddInput{Name: "eggs", Quantity: "12"})
	if err == nil || res.Status != AddRemoteFailed {
		t.Fatalf("expected remote failure, got %v, %v", res, err)
	}
	if got := names(m.Items()); !reflect.DeepEqual(got, []string{"milk"}) {
		t.Fatalf("mirror changed: %v", got)
	}
}

func TestRemove_OnlyMatchingID(t *testing.T) {
	m, srv := newTestMirror(t)
	first := srv.Seed("u1", "milk", 1, "")
	second := srv.Seed("u1", "milk", 2, "")
	srv.Seed("u1", "eggs", 12, "")
	_ = m.Refresh(context.Background())
	listBefore := srv.Count(backendtest.RouteList)

	if err := m.Remove(context.Background(), first); err != nil {
		t.Fatalf("remove: %v", err)
	}
	items := m.Items()
	if len(items) != 2 || items[0].ID != second || items[1].Name != "eggs" {
		t.Fatalf("unexpected items after remove: %+v", items)
	}
	if srv.Count(backendtest.RouteList) != listBefore {
		t.Fatalf("remove must not re-fetch")
	}
}

func TestRemove_RejectionLeavesMirror(t *testing.T) {
	m, srv := newTestMirror(t)
	id := srv.Seed("u1", "milk", 1, "")
	_ = m.Refresh(context.Background())
	srv.Fail(backendtest.RouteDelete, http.StatusInternalServerError)

	err := m.Remove(context.Background(), id)
	var rr *common.RemoteRejection
	if !errors.As(err, &rr) {
		t.Fatalf("expected RemoteRejection, got %v", err)
	}
	if len(m.Items()) != 1 {
		t.Fatalf("mirror changed on rejection")
	}
}

func TestOnChange_CalledPerChange(t *testing.T) {
	m, srv := newTestMirror(t)
	id := srv.Seed("u1", "milk", 1, "")

	var calls [][]string
	m.OnChange(func(items []models.InventoryItem) { calls = append(calls, names(items)) })

	_ = m.Refresh(context.Background())
	_ = m.Remove(context.Background(), id)
	_ = m.Remove(context.Background(), "unknown-id") // no local change

	want := [][]string{{"milk"}, {}}
	if !reflect.DeepEqual(calls, want) {
		t.Fatalf("listener calls = %v, want %v", calls, want)
	}
}

func TestClose_DropsInFlightRefresh(t *testing.T) {
	m, srv := newTestMirror(t)
	srv.Seed("u1", "milk", 1, "")
	release := srv.Block(backendtest.RouteList)

	done := make(chan error, 1)
	go func() { done <- m.Refresh(context.Background()) }()

	// wait until the request is parked on the server
	deadline := time.Now().Add(2 * time.Second)
	for srv.Count(backendtest.RouteList) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	m.Close()
	release()

	if err := <-done; !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if len(m.Items()) != 0 {
		t.Fatalf("closed mirror was repopulated")
	}
	if err := m.Refresh(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after close, got %v", err)
	}
}
