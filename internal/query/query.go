// Package query is the Query Layer: it turns dashboard requests into SQL
// against the Store, choosing Silver vs. Gold per spec §4.3's selection
// rule so that category/brand/source filters never double-count orders.
package query

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"salesanalytics/internal/store"
)

// Layer wraps the Store with the read-only aggregate queries the
// dashboard uses. It holds no state of its own.
type Layer struct {
	store *store.Store
}

// New builds a query Layer over an open Store.
func New(st *store.Store) *Layer {
	return &Layer{store: st}
}

// Filter is the common parameter set every aggregate query accepts.
type Filter struct {
	StartDate string // Kyiv-local date, inclusive, "2006-01-02"
	EndDate   string
	SalesType string // retail | b2b | all
	SourceID  *int64
	CategoryID *int64
	Brand      *string
	Limit      int
}

func (f Filter) salesTypeClause(alias string) (string, []interface{}) {
	if f.SalesType == "" || f.SalesType == "all" {
		return "", nil
	}
	return fmt.Sprintf("AND %s.sales_type = ?", alias), []interface{}{f.SalesType}
}

// usesSilverJoin implements the §4.3 selection rule: category/brand
// filters require the Silver-join path (to avoid gold_daily_products'
// double-counting hazard); otherwise Gold is used directly.
func (f Filter) usesSilverJoin() bool {
	return f.CategoryID != nil || f.Brand != nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// categoryDescendants recursively expands a category id through
// categories(parent_id) into itself plus all descendants.
func (l *Layer) categoryDescendants(ctx context.Context, rootID int64) ([]int64, error) {
	rows, err := l.store.DB().QueryContext(ctx, `SELECT id, parent_id FROM categories`)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	defer rows.Close()

	children := map[int64][]int64{}
	for rows.Next() {
		var id int64
		var parentID *int64
		if err := rows.Scan(&id, &parentID); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		if parentID != nil {
			children[*parentID] = append(children[*parentID], id)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []int64
	var walk func(id int64)
	walk = func(id int64) {
		out = append(out, id)
		for _, c := range children[id] {
			walk(c)
		}
	}
	walk(rootID)
	return out, nil
}

// SummaryStats is the get_summary_stats response shape.
type SummaryStats struct {
	TotalOrders    int64   `json:"totalOrders"`
	TotalRevenue   float64 `json:"totalRevenue"`
	AvgCheck       float64 `json:"avgCheck"`
	TotalReturns   int64   `json:"totalReturns"`
	ReturnsRevenue float64 `json:"returnsRevenue"`
	StartDate      string  `json:"startDate"`
	EndDate        string  `json:"endDate"`
}

// GetSummaryStats implements get_summary_stats.
func (l *Layer) GetSummaryStats(ctx context.Context, f Filter) (SummaryStats, error) {
	out := SummaryStats{StartDate: f.StartDate, EndDate: f.EndDate}

	if f.usesSilverJoin() {
		orderIDs, revenue, returns, returnsRevenue, err := l.silverJoinTotals(ctx, f)
		if err != nil {
			return out, err
		}
		out.TotalOrders = orderIDs
		out.TotalRevenue = round2(revenue)
		out.TotalReturns = returns
		out.ReturnsRevenue = round2(returnsRevenue)
	} else {
		query, args := l.goldTotalsQuery(f)
		row := l.store.DB().QueryRowContext(ctx, query, args...)
		if err := row.Scan(&out.TotalOrders, &out.TotalRevenue, &out.TotalReturns, &out.ReturnsRevenue); err != nil {
			return out, fmt.Errorf("summary stats: %w", err)
		}
		out.TotalRevenue = round2(out.TotalRevenue)
		out.ReturnsRevenue = round2(out.ReturnsRevenue)
	}

	if out.TotalOrders > 0 {
		out.AvgCheck = round2(out.TotalRevenue / float64(out.TotalOrders))
	}
	return out, nil
}

// goldTotalsQuery builds the revenue/orders aggregate query against Gold,
// optionally scoped to one source_id's per-source columns.
func (l *Layer) goldTotalsQuery(f Filter) (string, []interface{}) {
	stClause, stArgs := f.salesTypeClause("gdr")
	args := []interface{}{f.StartDate, f.EndDate}
	args = append(args, stArgs...)

	if f.SourceID != nil {
		col := sourceColumnPrefix(*f.SourceID)
		query := fmt.Sprintf(`
			SELECT COALESCE(SUM(gdr.%s_orders), 0), COALESCE(SUM(gdr.%s_revenue), 0), 0, 0
			FROM gold_daily_revenue gdr
			WHERE gdr.date >= ? AND gdr.date <= ? %s
		`, col, col, stClause)
		return query, args
	}

	query := fmt.Sprintf(`
		SELECT COALESCE(SUM(gdr.orders_count), 0), COALESCE(SUM(gdr.revenue), 0),
			COALESCE(SUM(gdr.returns_count), 0), COALESCE(SUM(gdr.returns_revenue), 0)
		FROM gold_daily_revenue gdr
		WHERE gdr.date >= ? AND gdr.date <= ? %s
	`, stClause)
	return query, args
}

func sourceColumnPrefix(sourceID int64) string {
	switch sourceID {
	case 1:
		return "instagram"
	case 2:
		return "telegram"
	case 4:
		return "shopify"
	default:
		return "instagram"
	}
}

// silverJoinTotals answers the same totals as goldTotalsQuery but via the
// Silver-join path, required whenever category/brand filters are set.
func (l *Layer) silverJoinTotals(ctx context.Context, f Filter) (orders int64, revenue float64, returns int64, returnsRevenue float64, err error) {
	query, args, err := l.silverJoinFilterClause(ctx, f)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	full := fmt.Sprintf(`
		SELECT COUNT(DISTINCT so.id) FILTER (WHERE NOT so.is_return),
			COALESCE(SUM(so.grand_total) FILTER (WHERE NOT so.is_return), 0),
			COUNT(DISTINCT so.id) FILTER (WHERE so.is_return),
			COALESCE(SUM(so.grand_total) FILTER (WHERE so.is_return), 0)
		FROM silver_orders so
		JOIN order_products op ON op.order_id = so.id
		LEFT JOIN products p ON p.id = op.product_id
		WHERE so.order_date >= ? AND so.order_date <= ? %s
	`, query)
	fullArgs := append([]interface{}{f.StartDate, f.EndDate}, args...)
	row := l.store.DB().QueryRowContext(ctx, full, fullArgs...)
	if err := row.Scan(&orders, &revenue, &returns, &returnsRevenue); err != nil {
		return 0, 0, 0, 0, fmt.Errorf("silver join totals: %w", err)
	}
	return orders, revenue, returns, returnsRevenue, nil
}

// silverJoinFilterClause builds the trailing WHERE predicate (sales_type,
// source, category-with-descendants, case-insensitive brand) shared by
// every Silver-join aggregate.
func (l *Layer) silverJoinFilterClause(ctx context.Context, f Filter) (string, []interface{}, error) {
	var clauses []string
	var args []interface{}

	if f.SalesType != "" && f.SalesType != "all" {
		clauses = append(clauses, "so.sales_type = ?")
		args = append(args, f.SalesType)
	}
	if f.SourceID != nil {
		clauses = append(clauses, "so.source_id = ?")
		args = append(args, *f.SourceID)
	}
	if f.CategoryID != nil {
		ids, err := l.categoryDescendants(ctx, *f.CategoryID)
		if err != nil {
			return "", nil, err
		}
		placeholders := make([]string, len(ids))
		for i, id := range ids {
			placeholders[i] = "?"
			args = append(args, id)
		}
		clauses = append(clauses, fmt.Sprintf("p.category_id IN (%s)", strings.Join(placeholders, ",")))
	}
	if f.Brand != nil {
		clauses = append(clauses, "LOWER(p.brand) = LOWER(?)")
		args = append(args, *f.Brand)
	}

	if len(clauses) == 0 {
		return "", nil, nil
	}
	return "AND " + strings.Join(clauses, " AND "), args, nil
}

// parseDate is a small helper for comparison-window arithmetic.
func parseDate(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func formatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

func labelDDMM(t time.Time) string {
	return t.Format("02.01")
}
