package store

import (
	"context"
	"testing"
	"time"
)

func TestRefreshSKUInventoryStatus_PreservesFirstSeen(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if _, err := s.UpsertProducts(ctx, []Product{{ID: 1, Name: "Widget", Price: 10}}); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	if _, err := s.UpsertOffers(ctx, []Offer{{ID: 1, ProductID: 1}}); err != nil {
		t.Fatalf("seed offer: %v", err)
	}
	if _, err := s.UpsertStocks(ctx, []OfferStockInput{{OfferID: 1, Price: 10, Quantity: 5, Reserve: 0}}); err != nil {
		t.Fatalf("seed stock: %v", err)
	}

	if _, err := s.RefreshSKUInventoryStatus(ctx); err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	var firstSeenA time.Time
	if err := s.DB().QueryRowContext(ctx, `SELECT first_seen_at FROM sku_inventory_status WHERE offer_id = 1`).Scan(&firstSeenA); err != nil {
		t.Fatalf("scan: %v", err)
	}

	// A later refresh with no new stock info must not reset first_seen_at.
	if _, err := s.RefreshSKUInventoryStatus(ctx); err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	var firstSeenB time.Time
	if err := s.DB().QueryRowContext(ctx, `SELECT first_seen_at FROM sku_inventory_status WHERE offer_id = 1`).Scan(&firstSeenB); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !firstSeenA.Equal(firstSeenB) {
		t.Errorf("first_seen_at changed across refresh: %v -> %v", firstSeenA, firstSeenB)
	}
}

func TestRecordSKUInventorySnapshot_Idempotent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if _, err := s.UpsertProducts(ctx, []Product{{ID: 1, Name: "Widget", Price: 10}}); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	if _, err := s.UpsertOffers(ctx, []Offer{{ID: 1, ProductID: 1}}); err != nil {
		t.Fatalf("seed offer: %v", err)
	}
	if _, err := s.UpsertStocks(ctx, []OfferStockInput{{OfferID: 1, Price: 10, Quantity: 5, Reserve: 0}}); err != nil {
		t.Fatalf("seed stock: %v", err)
	}
	if _, err := s.RefreshSKUInventoryStatus(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	wrote, err := s.RecordSKUInventorySnapshot(ctx)
	if err != nil {
		t.Fatalf("first snapshot: %v", err)
	}
	if !wrote {
		t.Fatal("first snapshot should report wrote=true")
	}

	wrote, err = s.RecordSKUInventorySnapshot(ctx)
	if err != nil {
		t.Fatalf("second snapshot: %v", err)
	}
	if wrote {
		t.Error("second snapshot same day should report wrote=false (idempotent)")
	}

	var count int
	if err := s.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM inventory_sku_history`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("inventory_sku_history rows = %d, want 1", count)
	}
}
