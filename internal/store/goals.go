package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RevenueGoal is an explicit revenue target for a period + sales_type,
// supplemented from original_source's goals repository (see DESIGN.md).
type RevenueGoal struct {
	ID            int64     `json:"id"`
	PeriodStart   time.Time `json:"periodStart"`
	PeriodEnd     time.Time `json:"periodEnd"`
	SalesType     string    `json:"salesType"`
	TargetRevenue float64   `json:"targetRevenue"`
	CreatedAt     time.Time `json:"createdAt"`
}

// CreateRevenueGoal inserts a new goal, assigning it the next id from the
// revenue_goals_seq sequence.
func (s *Store) CreateRevenueGoal(ctx context.Context, g RevenueGoal) (int64, error) {
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT nextval('revenue_goals_seq')`)
		if err := row.Scan(&id); err != nil {
			return fmt.Errorf("allocate revenue_goals id: %w", err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO revenue_goals (id, period_start, period_end, sales_type, target_revenue, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, id, g.PeriodStart, g.PeriodEnd, g.SalesType, g.TargetRevenue, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("insert revenue_goal: %w", err)
		}
		return nil
	})
	return id, err
}

// ListRevenueGoals returns goals whose period overlaps [start, end].
func (s *Store) ListRevenueGoals(ctx context.Context, start, end time.Time, salesType string) ([]RevenueGoal, error) {
	query := `SELECT id, period_start, period_end, sales_type, target_revenue, created_at FROM revenue_goals
		WHERE period_start <= ? AND period_end >= ?`
	args := []interface{}{end, start}
	if salesType != "" && salesType != "all" {
		query += ` AND sales_type = ?`
		args = append(args, salesType)
	}
	query += ` ORDER BY period_start`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list revenue_goals: %w", err)
	}
	defer rows.Close()

	var out []RevenueGoal
	for rows.Next() {
		var g RevenueGoal
		if err := rows.Scan(&g.ID, &g.PeriodStart, &g.PeriodEnd, &g.SalesType, &g.TargetRevenue, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan revenue_goal: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// DeleteRevenueGoal removes a goal by id.
func (s *Store) DeleteRevenueGoal(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM revenue_goals WHERE id = ?`, id)
		return err
	})
}

// SeasonalIndex is the month-over-month multiplier used by get_smart_goals.
type SeasonalIndex struct {
	Month      int
	SalesType  string
	IndexValue float64
}

// UpsertSeasonalIndices replaces the seasonal_indices rows for each given
// (month, sales_type).
func (s *Store) UpsertSeasonalIndices(ctx context.Context, indices []SeasonalIndex) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, idx := range indices {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO seasonal_indices (month, sales_type, index_value) VALUES (?, ?, ?)
				ON CONFLICT (month, sales_type) DO UPDATE SET index_value = excluded.index_value
			`, idx.Month, idx.SalesType, idx.IndexValue)
			if err != nil {
				return fmt.Errorf("upsert seasonal_index month=%d: %w", idx.Month, err)
			}
		}
		return nil
	})
}

// SeasonalIndexFor returns the seasonal multiplier for (month, salesType),
// defaulting to 1.0 (no seasonal adjustment) when absent.
func (s *Store) SeasonalIndexFor(ctx context.Context, month int, salesType string) (float64, error) {
	var v float64
	row := s.db.QueryRowContext(ctx, `SELECT index_value FROM seasonal_indices WHERE month = ? AND sales_type = ?`, month, salesType)
	if err := row.Scan(&v); err != nil {
		if err == sql.ErrNoRows {
			return 1.0, nil
		}
		return 0, fmt.Errorf("seasonal index lookup: %w", err)
	}
	return v, nil
}

// WeeklyPattern is the fraction of a month's revenue falling in a given
// week-of-month, used to distribute a monthly goal across weeks.
type WeeklyPattern struct {
	Month       int
	WeekOfMonth int
	SalesType   string
	Weight      float64
}

// UpsertWeeklyPatterns replaces weekly_patterns rows.
func (s *Store) UpsertWeeklyPatterns(ctx context.Context, patterns []WeeklyPattern) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, p := range patterns {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO weekly_patterns (month, week_of_month, sales_type, weight) VALUES (?, ?, ?, ?)
				ON CONFLICT (month, week_of_month, sales_type) DO UPDATE SET weight = excluded.weight
			`, p.Month, p.WeekOfMonth, p.SalesType, p.Weight)
			if err != nil {
				return fmt.Errorf("upsert weekly_pattern %d/%d: %w", p.Month, p.WeekOfMonth, err)
			}
		}
		return nil
	})
}

// WeeklyPatternsFor returns the week_of_month -> weight map for a month and
// sales_type. It returns an empty map when no rows exist for that
// combination; GetSmartGoals applies config.DefaultWeeklyPattern then.
func (s *Store) WeeklyPatternsFor(ctx context.Context, month int, salesType string) (map[int]float64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT week_of_month, weight FROM weekly_patterns WHERE month = ? AND sales_type = ?
	`, month, salesType)
	if err != nil {
		return nil, fmt.Errorf("weekly_patterns lookup: %w", err)
	}
	defer rows.Close()

	out := make(map[int]float64)
	for rows.Next() {
		var week int
		var weight float64
		if err := rows.Scan(&week, &weight); err != nil {
			return nil, fmt.Errorf("scan weekly_pattern: %w", err)
		}
		out[week] = weight
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GrowthMetric is a computed YoY or MoM growth rate for a sales_type,
// recomputed by the nightly Scheduler job.
type GrowthMetric struct {
	MetricType string
	SalesType  string
	Value      float64
	ComputedAt time.Time
}

// UpsertGrowthMetrics replaces growth_metrics rows.
func (s *Store) UpsertGrowthMetrics(ctx context.Context, metrics []GrowthMetric) error {
	now := time.Now().UTC()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, m := range metrics {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO growth_metrics (metric_type, sales_type, value, computed_at) VALUES (?, ?, ?, ?)
				ON CONFLICT (metric_type, sales_type) DO UPDATE SET value = excluded.value, computed_at = excluded.computed_at
			`, m.MetricType, m.SalesType, m.Value, now)
			if err != nil {
				return fmt.Errorf("upsert growth_metric %s/%s: %w", m.MetricType, m.SalesType, err)
			}
		}
		return nil
	})
}

// GrowthMetricFor returns a single growth_metrics value, ok=false if absent.
func (s *Store) GrowthMetricFor(ctx context.Context, metricType, salesType string) (float64, bool, error) {
	var v float64
	row := s.db.QueryRowContext(ctx, `SELECT value FROM growth_metrics WHERE metric_type = ? AND sales_type = ?`, metricType, salesType)
	err := row.Scan(&v)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("growth_metric lookup: %w", err)
	}
	return v, true, nil
}
