package store

import (
	"context"
	"testing"
	"time"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	if err != nil {
		t.Fatalf("Open(:memory:): %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertOrders_Idempotent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	order := Order{
		ID: 1, SourceID: 1, StatusID: 2, GrandTotal: 150.0,
		OrderedAt: now, CreatedAt: now, UpdatedAt: &now,
		Products: []OrderProductInput{{ID: 1, Name: "Widget", Quantity: 2, PriceSold: 75.0}},
	}

	n, err := s.UpsertOrders(ctx, []Order{order})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if n != 1 {
		t.Fatalf("applied = %d, want 1", n)
	}

	// Re-delivering the identical order is a no-op count-wise but must not
	// duplicate the line items.
	n, err = s.UpsertOrders(ctx, []Order{order})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if n != 1 {
		t.Fatalf("applied on re-delivery = %d, want 1", n)
	}

	var lineItemCount int
	row := s.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM order_products WHERE order_id = ?`, order.ID)
	if err := row.Scan(&lineItemCount); err != nil {
		t.Fatalf("count line items: %v", err)
	}
	if lineItemCount != 1 {
		t.Errorf("line item count = %d, want 1 (no duplication)", lineItemCount)
	}
}

func TestUpsertOrders_StaleUpdateRejected(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	newer := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	older := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	if _, err := s.UpsertOrders(ctx, []Order{{
		ID: 1, SourceID: 1, StatusID: 2, GrandTotal: 100, OrderedAt: newer, CreatedAt: newer, UpdatedAt: &newer,
	}}); err != nil {
		t.Fatalf("seed upsert: %v", err)
	}

	if _, err := s.UpsertOrders(ctx, []Order{{
		ID: 1, SourceID: 1, StatusID: 2, GrandTotal: 999, OrderedAt: older, CreatedAt: older, UpdatedAt: &older,
	}}); err != nil {
		t.Fatalf("stale upsert: %v", err)
	}

	var total float64
	row := s.DB().QueryRowContext(ctx, `SELECT grand_total FROM orders WHERE id = 1`)
	if err := row.Scan(&total); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if total != 100 {
		t.Errorf("grand_total = %v, want 100 (stale update must not overwrite)", total)
	}
}

func TestUpsertOrders_DropsInvalidKeepsBatch(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	n, err := s.UpsertOrders(ctx, []Order{
		{ID: 1, SourceID: 1, StatusID: 1, GrandTotal: -5, OrderedAt: now, CreatedAt: now},
		{ID: 2, SourceID: 1, StatusID: 1, GrandTotal: 50, OrderedAt: now, CreatedAt: now},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if n != 1 {
		t.Fatalf("applied = %d, want 1 (invalid row dropped, valid row kept)", n)
	}
}

func TestCustomFieldBrand(t *testing.T) {
	tests := []struct {
		name   string
		fields []CustomField
		want   string
		wantOK bool
	}{
		{"matches uuid", []CustomField{{UUID: "CT_1002", Value: "Acme"}}, "Acme", true},
		{"matches name", []CustomField{{Name: "Бренд", Value: "Acme"}}, "Acme", true},
		{"no match", []CustomField{{UUID: "CT_9999", Value: "x"}}, "", false},
		{"empty value", []CustomField{{UUID: "CT_1002", Value: ""}}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := customFieldBrand(tt.fields)
			if tt.wantOK && (got == nil || *got != tt.want) {
				t.Errorf("customFieldBrand() = %v, want %q", got, tt.want)
			}
			if !tt.wantOK && got != nil {
				t.Errorf("customFieldBrand() = %v, want nil", *got)
			}
		})
	}
}

func TestUpsertStocks_DetectsMovements(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if _, err := s.UpsertProducts(ctx, []Product{{ID: 1, Name: "Widget", Price: 10}}); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	if _, err := s.UpsertOffers(ctx, []Offer{{ID: 1, ProductID: 1}}); err != nil {
		t.Fatalf("seed offer: %v", err)
	}

	_, movements, err := s.UpsertStocks(ctx, []OfferStockInput{{OfferID: 1, Price: 10, Quantity: 20, Reserve: 0}})
	if err != nil {
		t.Fatalf("initial stock: %v", err)
	}
	if len(movements) != 1 || movements[0].MovementType != MovementInitial {
		t.Fatalf("movements = %+v, want one initial movement", movements)
	}

	_, movements, err = s.UpsertStocks(ctx, []OfferStockInput{{OfferID: 1, Price: 10, Quantity: 15, Reserve: 0}})
	if err != nil {
		t.Fatalf("stock_out: %v", err)
	}
	if len(movements) != 1 || movements[0].MovementType != MovementStockOut || movements[0].Delta != -5 {
		t.Fatalf("movements = %+v, want stock_out delta -5", movements)
	}

	_, movements, err = s.UpsertStocks(ctx, []OfferStockInput{{OfferID: 1, Price: 10, Quantity: 15, Reserve: 3}})
	if err != nil {
		t.Fatalf("reserve change: %v", err)
	}
	if len(movements) != 1 || movements[0].MovementType != MovementReserveChange {
		t.Fatalf("movements = %+v, want reserve_change", movements)
	}

	_, movements, err = s.UpsertStocks(ctx, []OfferStockInput{{OfferID: 1, Price: 10, Quantity: 15, Reserve: 3}})
	if err != nil {
		t.Fatalf("unchanged: %v", err)
	}
	if len(movements) != 0 {
		t.Errorf("movements = %+v, want none for unchanged stock", movements)
	}
}
