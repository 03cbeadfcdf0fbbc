package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"salesanalytics/internal/config"
	"salesanalytics/internal/logger"
	"salesanalytics/internal/utm"
)

func kyivLocation() *time.Location {
	loc, err := time.LoadLocation("Europe/Kyiv")
	if err != nil {
		// Tests and minimal containers may lack tzdata; fall back to the
		// fixed standard offset rather than silently using UTC.
		return time.FixedZone("Europe/Kyiv", 2*60*60)
	}
	return loc
}

// classifySalesType implements the sales_type decision table from spec §4.1.
func classifySalesType(managerID *int64, sourceID int64) string {
	if managerID != nil && *managerID == config.B2BManagerID {
		return "b2b"
	}
	if managerID != nil {
		if _, ok := config.RetailManagerIDs[*managerID]; ok {
			return "retail"
		}
	} else if sourceID == config.ShopifySourceID {
		return "retail"
	}
	return "other"
}

// RefreshSilverOrders rebuilds silver_orders from Bronze. When since is
// non-nil, only orders with ordered_at >= since are considered for the
// rewrite pass, but is_new_customer is always computed against the buyer's
// complete order history (the window is evaluated globally per spec §4.1).
func (s *Store) RefreshSilverOrders(ctx context.Context, since *time.Time) (int, error) {
	loc := kyivLocation()
	applied := 0

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		query := `
			SELECT o.id, o.source_id, o.status_id, o.grand_total, o.ordered_at, o.buyer_id, o.manager_id
			FROM orders o
		`
		var args []interface{}
		if since != nil {
			query += ` WHERE o.ordered_at >= ?`
			args = append(args, *since)
		}

		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("select orders for silver refresh: %w", err)
		}
		type candidate struct {
			id, sourceID, statusID int64
			grandTotal             float64
			orderedAt              time.Time
			buyerID, managerID     *int64
		}
		var candidates []candidate
		for rows.Next() {
			var c candidate
			if err := rows.Scan(&c.id, &c.sourceID, &c.statusID, &c.grandTotal, &c.orderedAt, &c.buyerID, &c.managerID); err != nil {
				rows.Close()
				return fmt.Errorf("scan order: %w", err)
			}
			candidates = append(candidates, c)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, c := range candidates {
			isReturn := config.IsReturnStatus(c.statusID)
			isActiveSource := config.IsActiveSource(c.sourceID)
			salesType := classifySalesType(c.managerID, c.sourceID)
			orderDate := c.orderedAt.In(loc).Format("2006-01-02")

			isNewCustomer := false
			if c.buyerID != nil && !isReturn && isActiveSource {
				var earliestID int64
				var earliestAt time.Time
				row := tx.QueryRowContext(ctx, `
					SELECT o2.id, o2.ordered_at FROM orders o2
					WHERE o2.buyer_id = ? AND NOT (o2.status_id IN (19, 21, 22, 23))
					AND o2.source_id IN (1, 2, 4)
					ORDER BY o2.ordered_at ASC, o2.id ASC LIMIT 1
				`, *c.buyerID)
				if err := row.Scan(&earliestID, &earliestAt); err != nil && err != sql.ErrNoRows {
					return fmt.Errorf("find earliest order for buyer %d: %w", *c.buyerID, err)
				}
				if earliestID == c.id {
					isNewCustomer = true
				}
			}

			var sourceName sql.NullString
			if name, ok := config.SourceNames[c.sourceID]; ok {
				sourceName = sql.NullString{String: name, Valid: true}
			}

			_, err := tx.ExecContext(ctx, `
				INSERT INTO silver_orders (id, order_date, source_id, source_name, status_id, grand_total, buyer_id, manager_id, is_return, is_active_source, sales_type, is_new_customer)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (id) DO UPDATE SET
					order_date = excluded.order_date, source_id = excluded.source_id, source_name = excluded.source_name,
					status_id = excluded.status_id, grand_total = excluded.grand_total, buyer_id = excluded.buyer_id,
					manager_id = excluded.manager_id, is_return = excluded.is_return, is_active_source = excluded.is_active_source,
					sales_type = excluded.sales_type, is_new_customer = excluded.is_new_customer
			`, c.id, orderDate, c.sourceID, sourceName, c.statusID, c.grandTotal, c.buyerID, c.managerID,
				isReturn, isActiveSource, salesType, isNewCustomer)
			if err != nil {
				return fmt.Errorf("upsert silver_orders %d: %w", c.id, err)
			}
			applied++
		}
		return nil
	})
	if err == nil {
		logger.Info("SILVER", fmt.Sprintf("refreshed %d orders", applied))
	}
	return applied, err
}

// RefreshUTMSilver parses manager_comment for every order not yet present
// in silver_order_utm and classifies traffic.
func (s *Store) RefreshUTMSilver(ctx context.Context) (int, error) {
	applied := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT o.id, o.manager_comment FROM orders o
			LEFT JOIN silver_order_utm u ON u.order_id = o.id
			WHERE u.order_id IS NULL AND o.manager_comment IS NOT NULL AND o.manager_comment != ''
		`)
		if err != nil {
			return fmt.Errorf("select unparsed orders: %w", err)
		}
		type row struct {
			id      int64
			comment string
		}
		var pending []row
		for rows.Next() {
			var r row
			if err := rows.Scan(&r.id, &r.comment); err != nil {
				rows.Close()
				return fmt.Errorf("scan comment: %w", err)
			}
			pending = append(pending, r)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		now := time.Now().UTC()
		for _, r := range pending {
			parsed := utm.Parse(r.comment)
			trafficType, platform := utm.Classify(parsed)
			_, err := tx.ExecContext(ctx, `
				INSERT INTO silver_order_utm (order_id, utm_source, utm_medium, utm_campaign, utm_content, utm_term, utm_lang, fbp, fbc, ttp, fbclid, traffic_type, platform, parsed_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (order_id) DO UPDATE SET
					utm_source = excluded.utm_source, utm_medium = excluded.utm_medium, utm_campaign = excluded.utm_campaign,
					utm_content = excluded.utm_content, utm_term = excluded.utm_term, utm_lang = excluded.utm_lang,
					fbp = excluded.fbp, fbc = excluded.fbc, ttp = excluded.ttp, fbclid = excluded.fbclid,
					traffic_type = excluded.traffic_type, platform = excluded.platform, parsed_at = excluded.parsed_at
			`, r.id, nullIfEmpty(parsed.Source), nullIfEmpty(parsed.Medium), nullIfEmpty(parsed.Campaign),
				nullIfEmpty(parsed.Content), nullIfEmpty(parsed.Term), nullIfEmpty(parsed.Lang),
				nullIfEmpty(parsed.FBP), nullIfEmpty(parsed.FBC), nullIfEmpty(parsed.TTP), nullIfEmpty(parsed.FBClid),
				string(trafficType), string(platform), now)
			if err != nil {
				return fmt.Errorf("upsert silver_order_utm %d: %w", r.id, err)
			}
			applied++
		}
		return nil
	})
	if err == nil && applied > 0 {
		logger.Info("SILVER", fmt.Sprintf("parsed UTM for %d orders", applied))
	}
	return applied, err
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
