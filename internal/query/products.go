package query

import (
	"context"
	"fmt"
)

// TopProduct is one row of get_top_products.
type TopProduct struct {
	ProductID  int64   `json:"productId"`
	Name       string  `json:"name"`
	Quantity   int64   `json:"quantity"`
	Revenue    float64 `json:"revenue"`
	Percentage float64 `json:"percentage"`
}

// GetTopProducts implements get_top_products: ranks products by quantity
// sold for the filter window, always via the Silver-join path since the
// product dimension inherently needs per-product detail Gold doesn't keep
// beyond its own (date, product) grain (and summing across products here
// is quantity/revenue, not distinct-order counts, so Gold would be safe
// too — but the Silver join keeps one code path for every product query).
func (l *Layer) GetTopProducts(ctx context.Context, f Filter) ([]TopProduct, error) {
	clause, args, err := l.silverJoinFilterClause(ctx, f)
	if err != nil {
		return nil, err
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 10
	}

	query := fmt.Sprintf(`
		SELECT p.id, p.name, SUM(op.quantity) AS qty, SUM(op.quantity * op.price_sold) AS rev
		FROM silver_orders so
		JOIN order_products op ON op.order_id = so.id
		JOIN products p ON p.id = op.product_id
		WHERE NOT so.is_return AND so.order_date >= ? AND so.order_date <= ? %s
		GROUP BY p.id, p.name
		ORDER BY qty DESC
		LIMIT ?
	`, clause)
	fullArgs := append([]interface{}{f.StartDate, f.EndDate}, args...)
	fullArgs = append(fullArgs, limit)

	rows, err := l.store.DB().QueryContext(ctx, query, fullArgs...)
	if err != nil {
		return nil, fmt.Errorf("top products: %w", err)
	}
	defer rows.Close()

	var results []TopProduct
	var totalQty int64
	for rows.Next() {
		var tp TopProduct
		if err := rows.Scan(&tp.ProductID, &tp.Name, &tp.Quantity, &tp.Revenue); err != nil {
			return nil, fmt.Errorf("scan top product: %w", err)
		}
		tp.Revenue = round2(tp.Revenue)
		results = append(results, tp)
		totalQty += tp.Quantity
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if totalQty > 0 {
		for i := range results {
			results[i].Percentage = round2(float64(results[i].Quantity) / float64(totalQty) * 100)
		}
	}
	return results, nil
}
