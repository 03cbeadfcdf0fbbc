package store

import (
	"context"
	"testing"
	"time"
)

func int64p(v int64) *int64 { return &v }

func TestClassifySalesType(t *testing.T) {
	tests := []struct {
		name      string
		managerID *int64
		sourceID  int64
		want      string
	}{
		{"b2b manager", int64p(15), 1, "b2b"},
		{"retail manager", int64p(8), 1, "retail"},
		{"shopify no manager", nil, 4, "retail"},
		{"no manager non-shopify", nil, 1, "other"},
		{"unlisted manager", int64p(99), 1, "other"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifySalesType(tt.managerID, tt.sourceID); got != tt.want {
				t.Errorf("classifySalesType(%v, %d) = %q, want %q", tt.managerID, tt.sourceID, got, tt.want)
			}
		})
	}
}

func TestRefreshSilverOrders_IsNewCustomer(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	buyer := int64(42)
	first := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	second := time.Date(2026, 2, 5, 10, 0, 0, 0, time.UTC)

	if _, err := s.UpsertOrders(ctx, []Order{
		{ID: 1, SourceID: 1, StatusID: 2, GrandTotal: 100, BuyerID: &buyer, OrderedAt: first, CreatedAt: first},
		{ID: 2, SourceID: 1, StatusID: 2, GrandTotal: 200, BuyerID: &buyer, OrderedAt: second, CreatedAt: second},
	}); err != nil {
		t.Fatalf("seed orders: %v", err)
	}

	if _, err := s.RefreshSilverOrders(ctx, nil); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	var isNew1, isNew2 bool
	if err := s.DB().QueryRowContext(ctx, `SELECT is_new_customer FROM silver_orders WHERE id = 1`).Scan(&isNew1); err != nil {
		t.Fatalf("scan order 1: %v", err)
	}
	if err := s.DB().QueryRowContext(ctx, `SELECT is_new_customer FROM silver_orders WHERE id = 2`).Scan(&isNew2); err != nil {
		t.Fatalf("scan order 2: %v", err)
	}
	if !isNew1 {
		t.Error("order 1 (earliest) should be is_new_customer = true")
	}
	if isNew2 {
		t.Error("order 2 (later) should be is_new_customer = false")
	}
}

func TestRefreshSilverOrders_Idempotent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	if _, err := s.UpsertOrders(ctx, []Order{{ID: 1, SourceID: 1, StatusID: 2, GrandTotal: 100, OrderedAt: now, CreatedAt: now}}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := s.RefreshSilverOrders(ctx, nil); err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	if _, err := s.RefreshSilverOrders(ctx, nil); err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	var count int
	if err := s.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM silver_orders`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("silver_orders count = %d, want 1 (idempotent rebuild, no duplicates)", count)
	}
}

func TestRefreshUTMSilver_ParsesAndClassifies(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	comment := "called customer. UTM: utm_source: instagram; utm_medium: organic"
	if _, err := s.UpsertOrders(ctx, []Order{{
		ID: 1, SourceID: 1, StatusID: 2, GrandTotal: 100, OrderedAt: now, CreatedAt: now, ManagerComment: comment,
	}}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	n, err := s.RefreshUTMSilver(ctx)
	if err != nil {
		t.Fatalf("refresh utm: %v", err)
	}
	if n != 1 {
		t.Fatalf("applied = %d, want 1", n)
	}

	var trafficType, platform string
	row := s.DB().QueryRowContext(ctx, `SELECT traffic_type, platform FROM silver_order_utm WHERE order_id = 1`)
	if err := row.Scan(&trafficType, &platform); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if trafficType != "organic" || platform != "instagram" {
		t.Errorf("got (%s, %s), want (organic, instagram)", trafficType, platform)
	}

	// Re-running must not reparse orders already present in silver_order_utm.
	n, err = s.RefreshUTMSilver(ctx)
	if err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	if n != 0 {
		t.Errorf("second refresh applied = %d, want 0 (already parsed)", n)
	}
}
