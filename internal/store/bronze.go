package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"salesanalytics/internal/logger"
)

// UpsertOrders idempotently merges a batch of upstream orders and their
// line items. Each order is kept only if incoming.updated_at >= the
// existing row's updated_at (or the existing row has none), so re-delivery
// and out-of-order arrival are both safe. Line items are deleted and
// re-inserted for any order that is actually applied, inside the same
// transaction, so order_products never outlives its parent order's current
// version. Rows that fail a basic invariant (negative total, zero
// quantity) are dropped and logged; they do not fail the batch.
func (s *Store) UpsertOrders(ctx context.Context, batch []Order) (int, error) {
	applied := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, o := range batch {
			if o.GrandTotal < 0 {
				logger.Warn("STORE", fmt.Sprintf("dropping order %d: negative grand_total", o.ID))
				continue
			}
			var existingUpdatedAt sql.NullTime
			row := tx.QueryRowContext(ctx, `SELECT updated_at FROM orders WHERE id = ?`, o.ID)
			found := true
			if err := row.Scan(&existingUpdatedAt); err != nil {
				if err != sql.ErrNoRows {
					return fmt.Errorf("check existing order %d: %w", o.ID, err)
				}
				found = false
			}
			if found && existingUpdatedAt.Valid && o.UpdatedAt != nil && o.UpdatedAt.Before(existingUpdatedAt.Time) {
				continue // stale re-delivery, idempotent no-op
			}

			_, err := tx.ExecContext(ctx, `
				INSERT INTO orders (id, source_id, status_id, grand_total, ordered_at, created_at, updated_at, buyer_id, manager_id, manager_comment, synced_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (id) DO UPDATE SET
					source_id = excluded.source_id,
					status_id = excluded.status_id,
					grand_total = excluded.grand_total,
					ordered_at = excluded.ordered_at,
					created_at = excluded.created_at,
					updated_at = excluded.updated_at,
					buyer_id = excluded.buyer_id,
					manager_id = excluded.manager_id,
					manager_comment = excluded.manager_comment,
					synced_at = excluded.synced_at
			`, o.ID, o.SourceID, o.StatusID, o.GrandTotal, o.OrderedAt, o.CreatedAt,
				nullableTime(o.UpdatedAt), o.BuyerID, o.ManagerID, o.ManagerComment, time.Now().UTC())
			if err != nil {
				return fmt.Errorf("upsert order %d: %w", o.ID, err)
			}

			if _, err := tx.ExecContext(ctx, `DELETE FROM order_products WHERE order_id = ?`, o.ID); err != nil {
				return fmt.Errorf("clear order_products for %d: %w", o.ID, err)
			}
			for _, p := range o.Products {
				if p.Quantity < 1 {
					logger.Warn("STORE", fmt.Sprintf("dropping line item on order %d: quantity < 1", o.ID))
					continue
				}
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO order_products (id, order_id, product_id, name, quantity, price_sold)
					VALUES (?, ?, ?, ?, ?, ?)
				`, p.ID, o.ID, p.ProductID, p.Name, p.Quantity, p.PriceSold); err != nil {
					return fmt.Errorf("insert line item on order %d: %w", o.ID, err)
				}
			}
			applied++
		}
		return nil
	})
	return applied, err
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

// customFieldBrand extracts the brand from a product's custom fields by
// matching either uuid == "CT_1002" or name == "Бренд".
func customFieldBrand(fields []CustomField) *string {
	for _, f := range fields {
		if f.UUID == "CT_1002" || f.Name == "Бренд" {
			if f.Value == "" {
				return nil
			}
			v := f.Value
			return &v
		}
	}
	return nil
}

// UpsertProducts idempotently merges a batch of upstream products.
func (s *Store) UpsertProducts(ctx context.Context, batch []Product) (int, error) {
	applied := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, p := range batch {
			if p.Price < 0 {
				logger.Warn("STORE", fmt.Sprintf("dropping product %d: negative price", p.ID))
				continue
			}
			brand := customFieldBrand(p.CustomFields)
			_, err := tx.ExecContext(ctx, `
				INSERT INTO products (id, name, category_id, brand, sku, price, synced_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (id) DO UPDATE SET
					name = excluded.name, category_id = excluded.category_id,
					brand = excluded.brand, sku = excluded.sku,
					price = excluded.price, synced_at = excluded.synced_at
			`, p.ID, p.Name, p.CategoryID, brand, p.SKU, p.Price, time.Now().UTC())
			if err != nil {
				return fmt.Errorf("upsert product %d: %w", p.ID, err)
			}
			applied++
		}
		return nil
	})
	return applied, err
}

// UpsertCategories idempotently merges category tree nodes.
func (s *Store) UpsertCategories(ctx context.Context, batch []Category) (int, error) {
	applied := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, c := range batch {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO categories (id, name, parent_id) VALUES (?, ?, ?)
				ON CONFLICT (id) DO UPDATE SET name = excluded.name, parent_id = excluded.parent_id
			`, c.ID, c.Name, c.ParentID)
			if err != nil {
				return fmt.Errorf("upsert category %d: %w", c.ID, err)
			}
			applied++
		}
		return nil
	})
	return applied, err
}

// UpsertManagers idempotently merges manager accounts.
func (s *Store) UpsertManagers(ctx context.Context, batch []Manager) (int, error) {
	applied := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, m := range batch {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO managers (id, name) VALUES (?, ?)
				ON CONFLICT (id) DO UPDATE SET name = excluded.name
			`, m.ID, m.Name)
			if err != nil {
				return fmt.Errorf("upsert manager %d: %w", m.ID, err)
			}
			applied++
		}
		return nil
	})
	return applied, err
}

// UpsertBuyers idempotently merges customer accounts.
func (s *Store) UpsertBuyers(ctx context.Context, batch []Buyer) (int, error) {
	applied := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, b := range batch {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO buyers (id, name) VALUES (?, ?)
				ON CONFLICT (id) DO UPDATE SET name = excluded.name
			`, b.ID, b.Name)
			if err != nil {
				return fmt.Errorf("upsert buyer %d: %w", b.ID, err)
			}
			applied++
		}
		return nil
	})
	return applied, err
}

// UpsertOffers idempotently merges product-variation offers.
func (s *Store) UpsertOffers(ctx context.Context, batch []Offer) (int, error) {
	applied := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, o := range batch {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO offers (id, product_id, sku) VALUES (?, ?, ?)
				ON CONFLICT (id) DO UPDATE SET product_id = excluded.product_id, sku = excluded.sku
			`, o.ID, o.ProductID, o.SKU)
			if err != nil {
				return fmt.Errorf("upsert offer %d: %w", o.ID, err)
			}
			applied++
		}
		return nil
	})
	return applied, err
}

// UpsertExpenseTypes idempotently merges expense-type lookups.
func (s *Store) UpsertExpenseTypes(ctx context.Context, batch []ExpenseType) (int, error) {
	applied := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, t := range batch {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO expense_types (id, name) VALUES (?, ?)
				ON CONFLICT (id) DO UPDATE SET name = excluded.name
			`, t.ID, t.Name)
			if err != nil {
				return fmt.Errorf("upsert expense_type %d: %w", t.ID, err)
			}
			applied++
		}
		return nil
	})
	return applied, err
}

// UpsertExpenses idempotently merges expense records.
func (s *Store) UpsertExpenses(ctx context.Context, batch []ExpenseInput) (int, error) {
	applied := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, e := range batch {
			if e.Amount < 0 {
				logger.Warn("STORE", fmt.Sprintf("dropping expense %d: negative amount", e.ID))
				continue
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO expenses (id, order_id, expense_type_id, amount, expensed_at) VALUES (?, ?, ?, ?, ?)
				ON CONFLICT (id) DO UPDATE SET
					order_id = excluded.order_id, expense_type_id = excluded.expense_type_id,
					amount = excluded.amount, expensed_at = excluded.expensed_at
			`, e.ID, e.OrderID, e.ExpenseTypeID, e.Amount, e.ExpensedAt)
			if err != nil {
				return fmt.Errorf("upsert expense %d: %w", e.ID, err)
			}
			applied++
		}
		return nil
	})
	return applied, err
}

// UpsertStocks merges incoming offer stock levels and returns the detected
// stock_movements alongside the applied count. A movement is stock_in/out
// when quantity changes, reserve_change when only reserve changes, and
// initial the first time an offer is seen with nonzero stock.
func (s *Store) UpsertStocks(ctx context.Context, batch []OfferStockInput) (int, []StockMovement, error) {
	applied := 0
	var movements []StockMovement
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, in := range batch {
			if in.Quantity < 0 || in.Reserve < 0 {
				logger.Warn("STORE", fmt.Sprintf("dropping stock %d: negative quantity/reserve", in.OfferID))
				continue
			}
			var existingQty, existingReserve sql.NullInt64
			row := tx.QueryRowContext(ctx, `SELECT quantity, reserve FROM offer_stocks WHERE id = ?`, in.OfferID)
			hadRow := true
			if err := row.Scan(&existingQty, &existingReserve); err != nil {
				if err != sql.ErrNoRows {
					return fmt.Errorf("check existing stock %d: %w", in.OfferID, err)
				}
				hadRow = false
			}

			var productID *int64
			var prow = tx.QueryRowContext(ctx, `SELECT product_id FROM offers WHERE id = ?`, in.OfferID)
			var pid sql.NullInt64
			if err := prow.Scan(&pid); err == nil && pid.Valid {
				v := pid.Int64
				productID = &v
			}

			now := time.Now().UTC()
			qtyBefore, resBefore := int64(0), int64(0)
			if hadRow {
				qtyBefore, resBefore = existingQty.Int64, existingReserve.Int64
			}

			switch {
			case !hadRow && in.Quantity > 0:
				movements = append(movements, StockMovement{
					OfferID: in.OfferID, ProductID: productID, MovementType: MovementInitial,
					QuantityBefore: 0, QuantityAfter: in.Quantity, Delta: in.Quantity,
					ReserveBefore: 0, ReserveAfter: in.Reserve, RecordedAt: now,
				})
			case hadRow && in.Quantity != qtyBefore:
				mt := MovementStockIn
				if in.Quantity < qtyBefore {
					mt = MovementStockOut
				}
				movements = append(movements, StockMovement{
					OfferID: in.OfferID, ProductID: productID, MovementType: mt,
					QuantityBefore: qtyBefore, QuantityAfter: in.Quantity, Delta: in.Quantity - qtyBefore,
					ReserveBefore: resBefore, ReserveAfter: in.Reserve, RecordedAt: now,
				})
			case hadRow && in.Reserve != resBefore:
				movements = append(movements, StockMovement{
					OfferID: in.OfferID, ProductID: productID, MovementType: MovementReserveChange,
					QuantityBefore: qtyBefore, QuantityAfter: in.Quantity, Delta: 0,
					ReserveBefore: resBefore, ReserveAfter: in.Reserve, RecordedAt: now,
				})
			}

			_, err := tx.ExecContext(ctx, `
				INSERT INTO offer_stocks (id, sku, price, purchased_price, quantity, reserve, synced_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (id) DO UPDATE SET
					sku = excluded.sku, price = excluded.price, purchased_price = excluded.purchased_price,
					quantity = excluded.quantity, reserve = excluded.reserve, synced_at = excluded.synced_at
			`, in.OfferID, in.SKU, in.Price, in.PurchasedPrice, in.Quantity, in.Reserve, now)
			if err != nil {
				return fmt.Errorf("upsert stock %d: %w", in.OfferID, err)
			}
			applied++
		}

		for _, m := range movements {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO stock_movements (offer_id, product_id, movement_type, quantity_before, quantity_after, delta, reserve_before, reserve_after, recorded_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, m.OfferID, m.ProductID, string(m.MovementType), m.QuantityBefore, m.QuantityAfter, m.Delta, m.ReserveBefore, m.ReserveAfter, m.RecordedAt); err != nil {
				return fmt.Errorf("insert stock_movement for offer %d: %w", m.OfferID, err)
			}
		}
		return nil
	})
	return applied, movements, err
}
