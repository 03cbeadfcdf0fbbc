package sync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"salesanalytics/internal/config"
	"salesanalytics/internal/feed"
	"salesanalytics/internal/store"
)

type fakeOrdersPage struct {
	Data []feed.OrderDTO `json:"data"`
}

func newTestEngine(t *testing.T, handler http.HandlerFunc) (*Engine, *store.Store) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	st, err := store.Open("")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	fc := feed.NewClient(srv.URL, "test-key")
	return New(st, fc, nil), st
}

func TestRunOnce_EmptyCycleIncrementsBackoff(t *testing.T) {
	e, _ := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(fakeOrdersPage{})
	})

	result, err := e.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if result.Applied != 0 {
		t.Errorf("Applied = %d, want 0", result.Applied)
	}

	result, err = e.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce 2: %v", err)
	}
	if result.Applied != 0 {
		t.Errorf("Applied = %d, want 0", result.Applied)
	}
	if e.CurrentInterval() <= config.SyncBaseInterval {
		t.Errorf("CurrentInterval = %v, want above the base interval after two empty cycles", e.CurrentInterval())
	}
}

func TestRunOnce_NonEmptyCycleUpsertsAndRefreshes(t *testing.T) {
	now := time.Now().UTC()
	var calls int32
	e, st := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			json.NewEncoder(w).Encode(fakeOrdersPage{Data: []feed.OrderDTO{
				{ID: 1, SourceID: 1, StatusID: 2, GrandTotal: 50, OrderedAt: now, CreatedAt: now},
			}})
			return
		}
		json.NewEncoder(w).Encode(fakeOrdersPage{})
	})

	result, err := e.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if result.Applied != 1 {
		t.Fatalf("Applied = %d, want 1", result.Applied)
	}

	var count int
	if err := st.DB().QueryRowContext(context.Background(), `SELECT COUNT(*) FROM silver_orders`).Scan(&count); err != nil {
		t.Fatalf("count silver_orders: %v", err)
	}
	if count != 1 {
		t.Errorf("silver_orders count = %d, want 1 (cycle should trigger silver refresh)", count)
	}
	if e.CurrentInterval() != config.SyncBaseInterval {
		t.Errorf("CurrentInterval = %v, want base interval reset after non-empty cycle", e.CurrentInterval())
	}
}

func TestRunOnce_SingleFlight(t *testing.T) {
	block := make(chan struct{})
	var calls int32
	e, _ := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		<-block
		json.NewEncoder(w).Encode(fakeOrdersPage{})
	})

	done := make(chan struct{})
	go func() {
		e.RunOnce(context.Background())
		close(done)
	}()

	// give the first cycle time to start and reach the blocked HTTP call
	time.Sleep(50 * time.Millisecond)
	if !e.IsRunning() {
		t.Fatal("expected a cycle to be in flight")
	}

	result, err := e.RunOnce(context.Background())
	close(block)
	<-done

	if err != nil {
		t.Fatalf("second RunOnce: %v", err)
	}
	if result.Applied != 0 {
		t.Errorf("Applied = %d, want 0 (joined the in-flight cycle)", result.Applied)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("upstream calls = %d, want 1 (single-flight must not start a second cycle)", calls)
	}
}
