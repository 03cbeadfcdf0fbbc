package store

import (
	"context"
	"testing"
	"time"
)

func seedOrderWithProduct(t *testing.T, s *Store, ctx context.Context, orderID, productID int64, qty int64, price float64, when time.Time) {
	t.Helper()
	if _, err := s.UpsertProducts(ctx, []Product{{ID: productID, Name: "Widget", Price: price}}); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	if _, err := s.UpsertOrders(ctx, []Order{{
		ID: orderID, SourceID: 1, StatusID: 2, GrandTotal: price * float64(qty), OrderedAt: when, CreatedAt: when,
		Products: []OrderProductInput{{ID: orderID*10 + productID, ProductID: &productID, Name: "Widget", Quantity: qty, PriceSold: price}},
	}}); err != nil {
		t.Fatalf("seed order: %v", err)
	}
}

func TestRefreshGoldDailyRevenue_Idempotent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	seedOrderWithProduct(t, s, ctx, 1, 1, 2, 50, now)

	if _, err := s.RefreshSilverOrders(ctx, nil); err != nil {
		t.Fatalf("silver refresh: %v", err)
	}
	if _, err := s.RefreshGoldDailyRevenue(ctx); err != nil {
		t.Fatalf("gold refresh 1: %v", err)
	}
	if _, err := s.RefreshGoldDailyRevenue(ctx); err != nil {
		t.Fatalf("gold refresh 2: %v", err)
	}

	var count int
	if err := s.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM gold_daily_revenue`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("gold_daily_revenue rows = %d, want 1 (idempotent rebuild)", count)
	}

	var revenue float64
	var ordersCount int64
	row := s.DB().QueryRowContext(ctx, `SELECT revenue, orders_count FROM gold_daily_revenue`)
	if err := row.Scan(&revenue, &ordersCount); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if revenue != 100 || ordersCount != 1 {
		t.Errorf("revenue=%v orders_count=%v, want 100/1", revenue, ordersCount)
	}
}

// TestDoubleCountingRegression is the correctness test spec §8 calls out:
// an order with two matching line items must be counted ONCE by the
// Silver-join path, never twice by summing gold_daily_products.order_count.
func TestDoubleCountingRegression(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	now := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)

	if _, err := s.UpsertProducts(ctx, []Product{
		{ID: 1, Name: "Widget A", Price: 10},
		{ID: 2, Name: "Widget B", Price: 20},
	}); err != nil {
		t.Fatalf("seed products: %v", err)
	}
	pid1, pid2 := int64(1), int64(2)
	if _, err := s.UpsertOrders(ctx, []Order{{
		ID: 1, SourceID: 1, StatusID: 2, GrandTotal: 30, OrderedAt: now, CreatedAt: now,
		Products: []OrderProductInput{
			{ID: 1, ProductID: &pid1, Name: "Widget A", Quantity: 1, PriceSold: 10},
			{ID: 2, ProductID: &pid2, Name: "Widget B", Quantity: 1, PriceSold: 20},
		},
	}}); err != nil {
		t.Fatalf("seed order: %v", err)
	}
	if _, err := s.RefreshSilverOrders(ctx, nil); err != nil {
		t.Fatalf("silver refresh: %v", err)
	}
	if _, err := s.RefreshGoldDailyProducts(ctx); err != nil {
		t.Fatalf("gold products refresh: %v", err)
	}

	// The WRONG way: summing gold_daily_products.order_count across the two
	// product rows for this order yields 2, double-counting a single order.
	var naiveSum int64
	if err := s.DB().QueryRowContext(ctx, `SELECT SUM(order_count) FROM gold_daily_products`).Scan(&naiveSum); err != nil {
		t.Fatalf("naive sum: %v", err)
	}
	if naiveSum != 2 {
		t.Fatalf("expected naive (incorrect) sum to demonstrate the hazard = 2, got %d", naiveSum)
	}

	// The CORRECT way: the Silver-join path with COUNT(DISTINCT orders).
	var correctCount int64
	if err := s.DB().QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT so.id) FROM silver_orders so
		JOIN order_products op ON op.order_id = so.id
		JOIN products p ON p.id = op.product_id
		WHERE NOT so.is_return
	`).Scan(&correctCount); err != nil {
		t.Fatalf("correct count: %v", err)
	}
	if correctCount != 1 {
		t.Errorf("Silver-join distinct order count = %d, want 1 (order must not be double-counted)", correctCount)
	}
}
