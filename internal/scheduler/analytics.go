package scheduler

import (
	"context"
	"fmt"
	"time"

	"salesanalytics/internal/store"
)

// recomputeSeasonalIndices rebuilds seasonal_indices for salesType: each
// month's average revenue (across every year on record) divided by the
// overall monthly average, so 1.0 is an average month. Grounded on the
// original calculate_seasonality_indices query (DESIGN.md).
func recomputeSeasonalIndices(ctx context.Context, st *store.Store, salesType string) error {
	rows, err := st.DB().QueryContext(ctx, monthlyRevenueQuery, salesType)
	if err != nil {
		return fmt.Errorf("monthly revenue for seasonality: %w", err)
	}
	type monthYear struct {
		month int
		total float64
	}
	var samples []monthYear
	for rows.Next() {
		var my monthYear
		if err := rows.Scan(&my.month, &my.total); err != nil {
			rows.Close()
			return fmt.Errorf("scan monthly revenue: %w", err)
		}
		samples = append(samples, my)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if len(samples) == 0 {
		return nil
	}

	overallSum, byMonthSum, byMonthCount := 0.0, make(map[int]float64), make(map[int]int)
	for _, s := range samples {
		overallSum += s.total
		byMonthSum[s.month] += s.total
		byMonthCount[s.month]++
	}
	overallAvg := overallSum / float64(len(samples))
	if overallAvg == 0 {
		return nil
	}

	var indices []store.SeasonalIndex
	for month, sum := range byMonthSum {
		avg := sum / float64(byMonthCount[month])
		indices = append(indices, store.SeasonalIndex{Month: month, SalesType: salesType, IndexValue: avg / overallAvg})
	}
	return st.UpsertSeasonalIndices(ctx, indices)
}

// monthlyRevenueQuery sums gold_daily_revenue per (year, month) instance —
// one row per calendar month that ever occurred, which recomputeSeasonalIndices
// then averages across years.
const monthlyRevenueQuery = `
	SELECT EXTRACT(MONTH FROM date)::INTEGER AS month, SUM(revenue) AS total
	FROM gold_daily_revenue
	WHERE sales_type = ?
	GROUP BY EXTRACT(YEAR FROM date), EXTRACT(MONTH FROM date)
`

// recomputeGrowthMetrics rebuilds the "yoy" growth_metrics row:
// (this-calendar-year revenue - last-calendar-year revenue) / last-year
// revenue. Grounded on calculate_yoy_growth (DESIGN.md).
func recomputeGrowthMetrics(ctx context.Context, st *store.Store, salesType string) error {
	now := time.Now().UTC()
	thisYearStart := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	lastYearStart := time.Date(now.Year()-1, 1, 1, 0, 0, 0, 0, time.UTC)
	lastYearEnd := time.Date(now.Year()-1, 12, 31, 0, 0, 0, 0, time.UTC)

	var thisYear, lastYear float64
	row := st.DB().QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN date >= ? THEN revenue ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN date BETWEEN ? AND ? THEN revenue ELSE 0 END), 0)
		FROM gold_daily_revenue WHERE sales_type = ?
	`, thisYearStart.Format("2006-01-02"), lastYearStart.Format("2006-01-02"), lastYearEnd.Format("2006-01-02"), salesType)
	if err := row.Scan(&thisYear, &lastYear); err != nil {
		return fmt.Errorf("yoy revenue query: %w", err)
	}

	yoy := 0.0
	if lastYear > 0 {
		yoy = (thisYear - lastYear) / lastYear
	}
	return st.UpsertGrowthMetrics(ctx, []store.GrowthMetric{
		{MetricType: "yoy", SalesType: salesType, Value: yoy},
	})
}

// recomputeWeeklyPatterns rebuilds weekly_patterns for salesType: for each
// (year, month) instance, the fraction of that month's revenue falling in
// each week-of-month (1..5, day/7 bucketed), averaged across every such
// instance on record. Grounded on calculate_weekly_patterns (DESIGN.md).
func recomputeWeeklyPatterns(ctx context.Context, st *store.Store, salesType string) error {
	rows, err := st.DB().QueryContext(ctx, `
		WITH weekly AS (
			SELECT
				EXTRACT(YEAR FROM date)::INTEGER AS year,
				EXTRACT(MONTH FROM date)::INTEGER AS month,
				LEAST(5, CEIL(EXTRACT(DAY FROM date) / 7.0))::INTEGER AS week_of_month,
				SUM(revenue) AS week_revenue
			FROM gold_daily_revenue
			WHERE sales_type = ?
			GROUP BY 1, 2, 3
		),
		monthly AS (
			SELECT year, month, SUM(week_revenue) AS month_total FROM weekly GROUP BY year, month
		)
		SELECT w.month, w.week_of_month, w.week_revenue / NULLIF(m.month_total, 0)
		FROM weekly w JOIN monthly m ON w.year = m.year AND w.month = m.month
	`, salesType)
	if err != nil {
		return fmt.Errorf("weekly pattern query: %w", err)
	}

	type key struct{ month, week int }
	sums := make(map[key]float64)
	counts := make(map[key]int)
	for rows.Next() {
		var month, week int
		var weight float64
		if err := rows.Scan(&month, &week, &weight); err != nil {
			rows.Close()
			return fmt.Errorf("scan weekly pattern row: %w", err)
		}
		k := key{month, week}
		sums[k] += weight
		counts[k]++
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if len(sums) == 0 {
		return nil
	}

	var patterns []store.WeeklyPattern
	for k, sum := range sums {
		patterns = append(patterns, store.WeeklyPattern{
			Month: k.month, WeekOfMonth: k.week, SalesType: salesType,
			Weight: sum / float64(counts[k]),
		})
	}
	return st.UpsertWeeklyPatterns(ctx, patterns)
}
