package query

import (
	"context"
	"fmt"
)

// TrafficBreakdown is one (platform, traffic_type) row of get_traffic_summary,
// aggregated from gold_daily_traffic. Supplements spec.md's Query Layer
// surface with the traffic dimension original_source tracked per order
// (utm/platform split) but the distilled spec only mentions in passing.
type TrafficBreakdown struct {
	Platform    string  `json:"platform"`
	TrafficType string  `json:"trafficType"`
	Orders      int64   `json:"orders"`
	Revenue     float64 `json:"revenue"`
}

// GetTrafficSummary sums gold_daily_traffic over the filter window, grouped
// by platform and traffic_type. Category/brand filters don't apply here —
// traffic is attributed at the order level, not the line-item level — so
// this always reads Gold directly regardless of Filter.usesSilverJoin.
func (l *Layer) GetTrafficSummary(ctx context.Context, f Filter) ([]TrafficBreakdown, error) {
	stClause, stArgs := f.salesTypeClause("gdt")
	args := append([]interface{}{f.StartDate, f.EndDate}, stArgs...)

	rows, err := l.store.DB().QueryContext(ctx, fmt.Sprintf(`
		SELECT gdt.platform, gdt.traffic_type, SUM(gdt.orders_count), SUM(gdt.revenue)
		FROM gold_daily_traffic gdt
		WHERE gdt.date >= ? AND gdt.date <= ? %s
		GROUP BY gdt.platform, gdt.traffic_type
		ORDER BY SUM(gdt.revenue) DESC
	`, stClause), args...)
	if err != nil {
		return nil, fmt.Errorf("traffic summary: %w", err)
	}
	defer rows.Close()

	var out []TrafficBreakdown
	for rows.Next() {
		var t TrafficBreakdown
		if err := rows.Scan(&t.Platform, &t.TrafficType, &t.Orders, &t.Revenue); err != nil {
			return nil, fmt.Errorf("scan traffic row: %w", err)
		}
		t.Revenue = round2(t.Revenue)
		out = append(out, t)
	}
	return out, rows.Err()
}
