package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"salesanalytics/internal/logger"
)

// RefreshSKUInventoryStatus fully rebuilds sku_inventory_status by joining
// current stock levels with product/category metadata and each product's
// last non-return sale date. first_seen_at is preserved across refreshes
// when a row already exists; otherwise it falls back to the product's
// first order date, or today if the product has never sold.
func (s *Store) RefreshSKUInventoryStatus(ctx context.Context) (int, error) {
	applied := 0
	now := time.Now().UTC()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		prior := make(map[int64]time.Time)
		rows, err := tx.QueryContext(ctx, `SELECT offer_id, first_seen_at FROM sku_inventory_status`)
		if err != nil {
			return fmt.Errorf("load prior first_seen_at: %w", err)
		}
		for rows.Next() {
			var offerID int64
			var firstSeen time.Time
			if err := rows.Scan(&offerID, &firstSeen); err != nil {
				rows.Close()
				return fmt.Errorf("scan prior row: %w", err)
			}
			prior[offerID] = firstSeen
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM sku_inventory_status`); err != nil {
			return fmt.Errorf("clear sku_inventory_status: %w", err)
		}

		cur, err := tx.QueryContext(ctx, `
			SELECT
				os.id, o.product_id, COALESCE(os.sku, o.sku), p.name, p.brand, p.category_id,
				os.quantity, os.reserve, os.price, os.purchased_price,
				(SELECT MAX(so.order_date) FROM silver_orders so
				 JOIN order_products op ON op.order_id = so.id
				 WHERE op.product_id = o.product_id AND NOT so.is_return) AS last_sale_date,
				(SELECT MIN(so.order_date) FROM silver_orders so
				 JOIN order_products op ON op.order_id = so.id
				 WHERE op.product_id = o.product_id) AS first_order_date,
				(SELECT MAX(m.recorded_at) FROM stock_movements m
				 WHERE m.offer_id = os.id AND m.movement_type = 'stock_out') AS last_stock_out_at
			FROM offer_stocks os
			JOIN offers o ON o.id = os.id
			LEFT JOIN products p ON p.id = o.product_id
		`)
		if err != nil {
			return fmt.Errorf("aggregate sku_inventory_status: %w", err)
		}
		defer cur.Close()

		for cur.Next() {
			var offerID, productID int64
			var sku, name, brand sql.NullString
			var categoryID sql.NullInt64
			var quantity, reserve int64
			var price float64
			var purchasedPrice sql.NullFloat64
			var lastSaleDate, firstOrderDate sql.NullString
			var lastStockOutAt sql.NullTime
			if err := cur.Scan(&offerID, &productID, &sku, &name, &brand, &categoryID,
				&quantity, &reserve, &price, &purchasedPrice, &lastSaleDate, &firstOrderDate, &lastStockOutAt); err != nil {
				return fmt.Errorf("scan sku_inventory_status row: %w", err)
			}

			firstSeen, ok := prior[offerID]
			if !ok {
				if firstOrderDate.Valid {
					firstSeen, _ = time.Parse("2006-01-02", firstOrderDate.String)
				} else {
					firstSeen = now
				}
			}

			if _, err := tx.ExecContext(ctx, `
				INSERT INTO sku_inventory_status (offer_id, product_id, sku, name, brand, category_id, quantity, reserve, price, purchased_price, last_sale_date, first_seen_at, last_stock_out_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, offerID, productID, sku, name, brand, categoryID, quantity, reserve, price, purchasedPrice,
				nullableDateStr(lastSaleDate), firstSeen, lastStockOutAt, now); err != nil {
				return fmt.Errorf("insert sku_inventory_status row: %w", err)
			}
			applied++
		}
		return cur.Err()
	})
	if err == nil {
		logger.Info("INVENTORY", fmt.Sprintf("rebuilt sku_inventory_status: %d rows", applied))
	}
	return applied, err
}

func nullableDateStr(s sql.NullString) interface{} {
	if !s.Valid {
		return nil
	}
	return s.String
}

// RecordSKUInventorySnapshot copies sku_inventory_status into
// inventory_sku_history for today, idempotently: if a snapshot for today
// already exists it is a no-op, reported via the bool return.
func (s *Store) RecordSKUInventorySnapshot(ctx context.Context) (bool, error) {
	wrote := false
	loc := kyivLocation()
	today := time.Now().In(loc).Format("2006-01-02")

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		row := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM inventory_sku_history WHERE date = ?`, today)
		if err := row.Scan(&exists); err != nil {
			return fmt.Errorf("check existing snapshot: %w", err)
		}
		if exists > 0 {
			return nil
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO inventory_sku_history (date, offer_id, quantity, reserve, price)
			SELECT ?, offer_id, quantity, reserve, price FROM sku_inventory_status
		`, today)
		if err != nil {
			return fmt.Errorf("insert inventory_sku_history: %w", err)
		}
		wrote = true
		return nil
	})
	if err == nil && wrote {
		logger.Info("INVENTORY", fmt.Sprintf("snapshot recorded for %s", today))
	}
	return wrote, err
}

// PruneInventoryHistory deletes inventory_sku_history rows older than
// olderThan, the Scheduler's hourly history-pruning job (spec §4.6). It
// returns the number of rows removed.
func (s *Store) PruneInventoryHistory(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan).Format("2006-01-02")
	var affected int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM inventory_sku_history WHERE date < ?`, cutoff)
		if err != nil {
			return fmt.Errorf("prune inventory_sku_history: %w", err)
		}
		affected, _ = res.RowsAffected()
		return nil
	})
	return affected, err
}
