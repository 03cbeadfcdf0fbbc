package query

import (
	"context"
	"fmt"

	"salesanalytics/internal/config"
)

// Forecaster is the subset of the forecast package the query layer needs
// to attach daily_predictions to a revenue trend in forecast mode.
type Forecaster interface {
	PredictRemainderOfMonth(ctx context.Context, salesType string) ([]DailyPrediction, error)
}

// DailyPrediction is one forecast point, mirrored from the forecast
// package's own type to avoid a query->forecast->query import cycle.
type DailyPrediction struct {
	Date             string  `json:"date"`
	PredictedRevenue float64 `json:"predictedRevenue"`
}

// ComparisonMode selects the previous window used for a trend comparison.
type ComparisonMode string

const (
	ComparisonPreviousPeriod ComparisonMode = "previous_period"
	ComparisonMonthAgo       ComparisonMode = "month_ago"
	ComparisonYearAgo        ComparisonMode = "year_ago"
)

// RevenueTrend is the get_revenue_trend response shape.
type RevenueTrend struct {
	Labels     []string           `json:"labels"`
	Revenue    []float64          `json:"revenue"`
	Orders     []int64            `json:"orders"`
	Comparison *RevenueTrendCompare `json:"comparison,omitempty"`
	Forecast   *RevenueTrendForecast `json:"forecast,omitempty"`
}

// RevenueTrendCompare carries the previous-window series for a comparison.
type RevenueTrendCompare struct {
	Mode    ComparisonMode `json:"mode"`
	Revenue []float64      `json:"revenue"`
	Orders  []int64        `json:"orders"`
}

// RevenueTrendForecast carries the forward-looking extension.
type RevenueTrendForecast struct {
	DailyPredictions []DailyPrediction `json:"dailyPredictions"`
}

type dailyPoint struct {
	date    string
	revenue float64
	orders  int64
}

func (l *Layer) dailySeries(ctx context.Context, f Filter, start, end string) ([]dailyPoint, error) {
	if f.usesSilverJoin() {
		clause, args, err := l.silverJoinFilterClause(ctx, f)
		if err != nil {
			return nil, err
		}
		query := fmt.Sprintf(`
			SELECT so.order_date, COALESCE(SUM(so.grand_total) FILTER (WHERE NOT so.is_return), 0),
				COUNT(DISTINCT so.id) FILTER (WHERE NOT so.is_return)
			FROM silver_orders so
			JOIN order_products op ON op.order_id = so.id
			LEFT JOIN products p ON p.id = op.product_id
			WHERE so.order_date >= ? AND so.order_date <= ? %s
			GROUP BY so.order_date ORDER BY so.order_date
		`, clause)
		fullArgs := append([]interface{}{start, end}, args...)
		return l.scanDailyPoints(ctx, query, fullArgs...)
	}

	stClause, stArgs := f.salesTypeClause("gdr")
	args := append([]interface{}{start, end}, stArgs...)
	var query string
	if f.SourceID != nil {
		col := sourceColumnPrefix(*f.SourceID)
		query = fmt.Sprintf(`
			SELECT gdr.date, COALESCE(SUM(gdr.%s_revenue), 0), COALESCE(SUM(gdr.%s_orders), 0)
			FROM gold_daily_revenue gdr
			WHERE gdr.date >= ? AND gdr.date <= ? %s
			GROUP BY gdr.date ORDER BY gdr.date
		`, col, col, stClause)
	} else {
		query = fmt.Sprintf(`
			SELECT gdr.date, COALESCE(SUM(gdr.revenue), 0), COALESCE(SUM(gdr.orders_count), 0)
			FROM gold_daily_revenue gdr
			WHERE gdr.date >= ? AND gdr.date <= ? %s
			GROUP BY gdr.date ORDER BY gdr.date
		`, stClause)
	}
	return l.scanDailyPoints(ctx, query, args...)
}

func (l *Layer) scanDailyPoints(ctx context.Context, query string, args ...interface{}) ([]dailyPoint, error) {
	rows, err := l.store.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("daily series: %w", err)
	}
	defer rows.Close()

	var out []dailyPoint
	for rows.Next() {
		var p dailyPoint
		if err := rows.Scan(&p.date, &p.revenue, &p.orders); err != nil {
			return nil, fmt.Errorf("scan daily point: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// comparisonWindow computes the [start,end] of the previous window per mode.
func comparisonWindow(start, end string, mode ComparisonMode) (string, string) {
	s, e := parseDate(start), parseDate(end)
	days := int(e.Sub(s).Hours()/24) + 1
	switch mode {
	case ComparisonMonthAgo:
		return formatDate(s.AddDate(0, -1, 0)), formatDate(e.AddDate(0, -1, 0))
	case ComparisonYearAgo:
		return formatDate(s.AddDate(-1, 0, 0)), formatDate(e.AddDate(-1, 0, 0))
	default: // previous_period
		return formatDate(s.AddDate(0, 0, -days)), formatDate(s.AddDate(0, 0, -1))
	}
}

// GetRevenueTrend implements get_revenue_trend, including optional
// previous-window comparison and optional forward-looking forecast mode
// (only attached when wantForecast is set and no filters are applied; the
// HTTP handler sets wantForecast only for the current month/week period,
// per spec §4.3).
func (l *Layer) GetRevenueTrend(ctx context.Context, f Filter, compare *ComparisonMode, forecaster Forecaster, wantForecast bool) (RevenueTrend, error) {
	points, err := l.dailySeries(ctx, f, f.StartDate, f.EndDate)
	if err != nil {
		return RevenueTrend{}, err
	}

	byDate := make(map[string]dailyPoint, len(points))
	for _, p := range points {
		byDate[p.date] = p
	}

	var out RevenueTrend
	for d := parseDate(f.StartDate); !d.After(parseDate(f.EndDate)); d = d.AddDate(0, 0, 1) {
		ds := formatDate(d)
		p := byDate[ds]
		out.Labels = append(out.Labels, labelDDMM(d))
		out.Revenue = append(out.Revenue, round2(p.revenue))
		out.Orders = append(out.Orders, p.orders)
	}

	if compare != nil {
		cStart, cEnd := comparisonWindow(f.StartDate, f.EndDate, *compare)
		cPoints, err := l.dailySeries(ctx, f, cStart, cEnd)
		if err != nil {
			return out, err
		}
		cByDate := make(map[string]dailyPoint, len(cPoints))
		for _, p := range cPoints {
			cByDate[p.date] = p
		}
		cmp := &RevenueTrendCompare{Mode: *compare}
		for d := parseDate(cStart); !d.After(parseDate(cEnd)); d = d.AddDate(0, 0, 1) {
			p := cByDate[formatDate(d)]
			cmp.Revenue = append(cmp.Revenue, round2(p.revenue))
			cmp.Orders = append(cmp.Orders, p.orders)
		}
		out.Comparison = cmp
	}

	if wantForecast && forecaster != nil && f.CategoryID == nil && f.Brand == nil && f.SourceID == nil {
		preds, err := forecaster.PredictRemainderOfMonth(ctx, f.SalesType)
		if err == nil && len(preds) > 0 {
			for _, p := range preds {
				out.Labels = append(out.Labels, labelDDMM(parseDate(p.Date)))
			}
			out.Forecast = &RevenueTrendForecast{DailyPredictions: preds}
		}
	}

	return out, nil
}

// SourceBreakdown is one row of get_sales_by_source.
type SourceBreakdown struct {
	SourceID int64   `json:"sourceId"`
	Name     string  `json:"name"`
	Color    string  `json:"color"`
	Revenue  float64 `json:"revenue"`
	Orders   int64   `json:"orders"`
}

// GetSalesBySource implements get_sales_by_source with the fixed
// color/name mapping from spec §4.3.
func (l *Layer) GetSalesBySource(ctx context.Context, f Filter) ([]SourceBreakdown, error) {
	stClause, stArgs := f.salesTypeClause("gdr")
	args := append([]interface{}{f.StartDate, f.EndDate}, stArgs...)

	row := l.store.DB().QueryRowContext(ctx, fmt.Sprintf(`
		SELECT
			COALESCE(SUM(gdr.instagram_revenue), 0), COALESCE(SUM(gdr.instagram_orders), 0),
			COALESCE(SUM(gdr.telegram_revenue), 0), COALESCE(SUM(gdr.telegram_orders), 0),
			COALESCE(SUM(gdr.shopify_revenue), 0), COALESCE(SUM(gdr.shopify_orders), 0)
		FROM gold_daily_revenue gdr
		WHERE gdr.date >= ? AND gdr.date <= ? %s
	`, stClause), args...)

	var igRev, tgRev, shRev float64
	var igOrd, tgOrd, shOrd int64
	if err := row.Scan(&igRev, &igOrd, &tgRev, &tgOrd, &shRev, &shOrd); err != nil {
		return nil, fmt.Errorf("sales by source: %w", err)
	}

	out := []SourceBreakdown{
		{SourceID: 1, Name: config.SourceNames[1], Color: config.SourceColors[1], Revenue: round2(igRev), Orders: igOrd},
		{SourceID: 2, Name: config.SourceNames[2], Color: config.SourceColors[2], Revenue: round2(tgRev), Orders: tgOrd},
		{SourceID: 4, Name: config.SourceNames[4], Color: config.SourceColors[4], Revenue: round2(shRev), Orders: shOrd},
	}
	return out, nil
}
