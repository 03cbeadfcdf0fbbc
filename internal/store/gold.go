package store

import (
	"context"
	"database/sql"
	"fmt"

	"salesanalytics/internal/logger"
)

// RefreshGoldDailyRevenue fully rebuilds gold_daily_revenue from
// silver_orders + silver_order_utm. It is idempotent: the same Silver
// content always produces the same Gold rows, since the table is cleared
// and recomputed rather than incrementally patched.
func (s *Store) RefreshGoldDailyRevenue(ctx context.Context) (int, error) {
	applied := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM gold_daily_revenue`); err != nil {
			return fmt.Errorf("clear gold_daily_revenue: %w", err)
		}
		rows, err := tx.QueryContext(ctx, `
			SELECT
				so.order_date, so.sales_type,
				SUM(CASE WHEN NOT so.is_return THEN so.grand_total ELSE 0 END) AS revenue,
				COUNT(*) FILTER (WHERE NOT so.is_return) AS orders_count,
				COUNT(*) FILTER (WHERE so.is_return) AS returns_count,
				SUM(CASE WHEN so.is_return THEN so.grand_total ELSE 0 END) AS returns_revenue,
				COUNT(DISTINCT so.buyer_id) FILTER (WHERE NOT so.is_return) AS unique_customers,
				COUNT(*) FILTER (WHERE so.is_new_customer AND NOT so.is_return) AS new_customers,
				COUNT(*) FILTER (WHERE NOT so.is_new_customer AND NOT so.is_return) AS returning_customers,
				COUNT(*) FILTER (WHERE so.source_id = 1 AND NOT so.is_return) AS instagram_orders,
				SUM(CASE WHEN so.source_id = 1 AND NOT so.is_return THEN so.grand_total ELSE 0 END) AS instagram_revenue,
				COUNT(*) FILTER (WHERE so.source_id = 2 AND NOT so.is_return) AS telegram_orders,
				SUM(CASE WHEN so.source_id = 2 AND NOT so.is_return THEN so.grand_total ELSE 0 END) AS telegram_revenue,
				COUNT(*) FILTER (WHERE so.source_id = 4 AND NOT so.is_return) AS shopify_orders,
				SUM(CASE WHEN so.source_id = 4 AND NOT so.is_return THEN so.grand_total ELSE 0 END) AS shopify_revenue
			FROM silver_orders so
			WHERE so.is_active_source
			GROUP BY so.order_date, so.sales_type
		`)
		if err != nil {
			return fmt.Errorf("aggregate gold_daily_revenue: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var date, salesType string
			var revenue, returnsRevenue, instaRev, tgRev, shRev float64
			var ordersCount, returnsCount, uniqueCustomers, newCustomers, returningCustomers int64
			var instaOrders, tgOrders, shOrders int64
			if err := rows.Scan(&date, &salesType, &revenue, &ordersCount, &returnsCount, &returnsRevenue,
				&uniqueCustomers, &newCustomers, &returningCustomers,
				&instaOrders, &instaRev, &tgOrders, &tgRev, &shOrders, &shRev); err != nil {
				return fmt.Errorf("scan gold_daily_revenue row: %w", err)
			}
			avgOrderValue := 0.0
			if ordersCount > 0 {
				avgOrderValue = revenue / float64(ordersCount)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO gold_daily_revenue (date, sales_type, revenue, orders_count, avg_order_value, returns_count, returns_revenue,
					unique_customers, new_customers, returning_customers,
					instagram_orders, instagram_revenue, telegram_orders, telegram_revenue, shopify_orders, shopify_revenue)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, date, salesType, revenue, ordersCount, avgOrderValue, returnsCount, returnsRevenue,
				uniqueCustomers, newCustomers, returningCustomers,
				instaOrders, instaRev, tgOrders, tgRev, shOrders, shRev); err != nil {
				return fmt.Errorf("insert gold_daily_revenue row: %w", err)
			}
			applied++
		}
		return rows.Err()
	})
	if err == nil {
		logger.Info("GOLD", fmt.Sprintf("rebuilt gold_daily_revenue: %d rows", applied))
	}
	return applied, err
}

// RefreshGoldDailyProducts fully rebuilds gold_daily_products. Note this
// table is never used to answer COUNT(DISTINCT orders) queries — see the
// query layer's join-selection rule — because summing order_count here
// double-counts orders spanning multiple matching products.
func (s *Store) RefreshGoldDailyProducts(ctx context.Context) (int, error) {
	applied := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM gold_daily_products`); err != nil {
			return fmt.Errorf("clear gold_daily_products: %w", err)
		}
		rows, err := tx.QueryContext(ctx, `
			SELECT
				so.order_date, so.sales_type, so.source_id,
				p.id, p.name, p.category_id, pc.name, p.brand,
				SUM(op.quantity) AS quantity_sold,
				SUM(op.quantity * op.price_sold) AS product_revenue,
				COUNT(DISTINCT so.id) AS order_count
			FROM silver_orders so
			JOIN order_products op ON op.order_id = so.id
			LEFT JOIN products p ON p.id = op.product_id
			LEFT JOIN categories pc ON pc.id = p.category_id
			WHERE NOT so.is_return AND so.is_active_source AND op.product_id IS NOT NULL
			GROUP BY so.order_date, so.sales_type, so.source_id, p.id, p.name, p.category_id, pc.name, p.brand
		`)
		if err != nil {
			return fmt.Errorf("aggregate gold_daily_products: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var date, salesType string
			var sourceID, productID int64
			var productName string
			var categoryID sql.NullInt64
			var parentCategoryName, brand sql.NullString
			var quantitySold, orderCount int64
			var productRevenue float64
			if err := rows.Scan(&date, &salesType, &sourceID, &productID, &productName, &categoryID,
				&parentCategoryName, &brand, &quantitySold, &productRevenue, &orderCount); err != nil {
				return fmt.Errorf("scan gold_daily_products row: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO gold_daily_products (date, sales_type, source_id, product_id, product_name, category_id, parent_category_name, brand, quantity_sold, product_revenue, order_count)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, date, salesType, sourceID, productID, productName, categoryID, parentCategoryName, brand, quantitySold, productRevenue, orderCount); err != nil {
				return fmt.Errorf("insert gold_daily_products row: %w", err)
			}
			applied++
		}
		return rows.Err()
	})
	if err == nil {
		logger.Info("GOLD", fmt.Sprintf("rebuilt gold_daily_products: %d rows", applied))
	}
	return applied, err
}

// DailyRevenuePoint is one day of the revenue series the forecaster trains
// and predicts against.
type DailyRevenuePoint struct {
	Date    string
	Revenue float64
}

// DailyRevenueSeries reads gold_daily_revenue for one sales_type ("all"
// sums every type) across the requested lookback, the forecaster's sole
// read path into the Store.
func (s *Store) DailyRevenueSeries(ctx context.Context, salesType string, since string) ([]DailyRevenuePoint, error) {
	var rows *sql.Rows
	var err error
	if salesType == "" || salesType == "all" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT date, SUM(revenue) FROM gold_daily_revenue
			WHERE date >= ? GROUP BY date ORDER BY date
		`, since)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT date, SUM(revenue) FROM gold_daily_revenue
			WHERE date >= ? AND sales_type = ? GROUP BY date ORDER BY date
		`, since, salesType)
	}
	if err != nil {
		return nil, fmt.Errorf("daily revenue series: %w", err)
	}
	defer rows.Close()

	var out []DailyRevenuePoint
	for rows.Next() {
		var p DailyRevenuePoint
		if err := rows.Scan(&p.Date, &p.Revenue); err != nil {
			return nil, fmt.Errorf("scan daily revenue point: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// RefreshGoldDailyTraffic fully rebuilds gold_daily_traffic from Silver
// orders joined with their parsed UTM attribution.
func (s *Store) RefreshGoldDailyTraffic(ctx context.Context) (int, error) {
	applied := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM gold_daily_traffic`); err != nil {
			return fmt.Errorf("clear gold_daily_traffic: %w", err)
		}
		rows, err := tx.QueryContext(ctx, `
			SELECT so.order_date, so.source_id, so.sales_type, u.platform, u.traffic_type,
				COUNT(*) AS orders_count, SUM(so.grand_total) AS revenue
			FROM silver_orders so
			JOIN silver_order_utm u ON u.order_id = so.id
			WHERE NOT so.is_return AND so.is_active_source
			GROUP BY so.order_date, so.source_id, so.sales_type, u.platform, u.traffic_type
		`)
		if err != nil {
			return fmt.Errorf("aggregate gold_daily_traffic: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var date, salesType, platform, trafficType string
			var sourceID, ordersCount int64
			var revenue float64
			if err := rows.Scan(&date, &sourceID, &salesType, &platform, &trafficType, &ordersCount, &revenue); err != nil {
				return fmt.Errorf("scan gold_daily_traffic row: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO gold_daily_traffic (date, source_id, sales_type, platform, traffic_type, orders_count, revenue)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, date, sourceID, salesType, platform, trafficType, ordersCount, revenue); err != nil {
				return fmt.Errorf("insert gold_daily_traffic row: %w", err)
			}
			applied++
		}
		return rows.Err()
	})
	if err == nil {
		logger.Info("GOLD", fmt.Sprintf("rebuilt gold_daily_traffic: %d rows", applied))
	}
	return applied, err
}
