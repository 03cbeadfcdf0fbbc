package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestFetchOrdersPage_Paginates(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		page := r.URL.Query().Get("page")
		var data []OrderDTO
		if page == "1" {
			for i := int64(0); i < 50; i++ {
				data = append(data, OrderDTO{ID: i, GrandTotal: 10})
			}
		}
		_ = n
		json.NewEncoder(w).Encode(ordersPageResponse{Data: data})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	orders, hasMore, err := c.FetchOrdersPage(context.Background(), time.Now(), 1)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(orders) != 50 {
		t.Fatalf("len(orders) = %d, want 50", len(orders))
	}
	if !hasMore {
		t.Error("hasMore = false, want true for a full page")
	}

	orders, hasMore, err = c.FetchOrdersPage(context.Background(), time.Now(), 2)
	if err != nil {
		t.Fatalf("fetch page 2: %v", err)
	}
	if len(orders) != 0 || hasMore {
		t.Errorf("page 2: len=%d hasMore=%v, want 0/false (short page stops pagination)", len(orders), hasMore)
	}
}

func TestFetchOrdersPage_RetriesOnTransientError(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(ordersPageResponse{Data: []OrderDTO{{ID: 1}}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	orders, _, err := c.FetchOrdersPage(context.Background(), time.Now(), 1)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("len(orders) = %d, want 1 after retries succeed", len(orders))
	}
	if atomic.LoadInt32(&attempts) != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestFetchOrdersPage_GivesUpAfterMaxRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	start := time.Now()
	_, _, err := c.FetchOrdersPage(context.Background(), time.Now(), 1)
	if err == nil {
		t.Fatal("expected an error after exhausting retries")
	}
	// 3 retries at 500ms/1s/2s backoff: a loose lower bound confirms backoff
	// actually happened rather than failing fast.
	if time.Since(start) < 400*time.Millisecond {
		t.Errorf("elapsed %v suspiciously fast for a 3-retry backoff sequence", time.Since(start))
	}
}
