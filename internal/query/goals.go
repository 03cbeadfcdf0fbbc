package query

import (
	"context"
	"fmt"
	"math"
	"time"

	"salesanalytics/internal/config"
)

// SmartGoal is the get_smart_goals response shape for one period.
type SmartGoal struct {
	PeriodStart    string             `json:"periodStart"`
	PeriodEnd      string             `json:"periodEnd"`
	SalesType      string             `json:"salesType"`
	TargetRevenue  float64            `json:"targetRevenue"`
	WeeklyTargets  map[string]float64 `json:"weeklyTargets"`
}

// roundNice rounds a target to a human-friendly number: nearest 1000 above
// 10000, nearest 100 above 1000, nearest 10 otherwise.
func roundNice(v float64) float64 {
	switch {
	case v >= 10000:
		return math.Round(v/1000) * 1000
	case v >= 1000:
		return math.Round(v/100) * 100
	default:
		return math.Round(v/10) * 10
	}
}

// GetSmartGoals implements get_smart_goals: combines last-year-same-period
// x YoY growth, recent-3-month-average x seasonal index, and a
// historical-average x capped-YoY signal, per spec §4.3.
func (l *Layer) GetSmartGoals(ctx context.Context, periodStart, periodEnd, salesType string) (SmartGoal, error) {
	start := parseDate(periodStart)
	end := parseDate(periodEnd)
	month := int(start.Month())

	lastYearStart := formatDate(start.AddDate(-1, 0, 0))
	lastYearEnd := formatDate(end.AddDate(-1, 0, 0))
	lastYearRevenue, err := l.periodRevenue(ctx, lastYearStart, lastYearEnd, salesType)
	if err != nil {
		return SmartGoal{}, err
	}

	yoyGrowth, _, err := l.store.GrowthMetricFor(ctx, "yoy", salesType)
	if err != nil {
		return SmartGoal{}, err
	}
	signalA := lastYearRevenue * (1 + yoyGrowth)

	recent3moAvg, err := l.recentMonthlyAverage(ctx, start, 3, salesType)
	if err != nil {
		return SmartGoal{}, err
	}
	seasonalIndex, err := l.store.SeasonalIndexFor(ctx, month, salesType)
	if err != nil {
		return SmartGoal{}, err
	}
	signalB := recent3moAvg * seasonalIndex

	historicalAvg, err := l.recentMonthlyAverage(ctx, start, 12, salesType)
	if err != nil {
		return SmartGoal{}, err
	}
	cappedYoY := math.Min(yoyGrowth, 0.35)
	signalC := historicalAvg * (1 + cappedYoY)

	// Max of (a) and (b) when both are usable; otherwise whichever signal is
	// usable; otherwise fall back to the historical-average signal (c), and
	// finally to a fixed default when no signal has any revenue to work from.
	var target float64
	switch {
	case signalA > 0 && signalB > 0:
		target = math.Max(signalA, signalB)
	case signalB > 0:
		target = signalB
	case signalA > 0:
		target = signalA
	case signalC > 0:
		target = signalC
	default:
		target = config.DefaultMonthlyGoal
	}
	target = roundNice(target)

	weeklyPattern, err := l.store.WeeklyPatternsFor(ctx, month, salesType)
	if err != nil {
		return SmartGoal{}, err
	}
	if len(weeklyPattern) == 0 {
		weeklyPattern = config.DefaultWeeklyPattern
	}
	sum := 0.0
	for _, w := range weeklyPattern {
		sum += w
	}
	weeklyTargets := make(map[string]float64, len(weeklyPattern))
	for week, w := range weeklyPattern {
		norm := w
		if sum > 0 {
			norm = w / sum
		}
		weeklyTargets[fmt.Sprintf("week_%d", week)] = round2(target * norm)
	}

	return SmartGoal{
		PeriodStart: periodStart, PeriodEnd: periodEnd, SalesType: salesType,
		TargetRevenue: target, WeeklyTargets: weeklyTargets,
	}, nil
}

func (l *Layer) periodRevenue(ctx context.Context, start, end, salesType string) (float64, error) {
	stClause, stArgs := Filter{SalesType: salesType}.salesTypeClause("gdr")
	args := append([]interface{}{start, end}, stArgs...)
	var revenue float64
	row := l.store.DB().QueryRowContext(ctx, fmt.Sprintf(`
		SELECT COALESCE(SUM(gdr.revenue), 0) FROM gold_daily_revenue gdr
		WHERE gdr.date >= ? AND gdr.date <= ? %s
	`, stClause), args...)
	if err := row.Scan(&revenue); err != nil {
		return 0, fmt.Errorf("period revenue: %w", err)
	}
	return revenue, nil
}

// recentMonthlyAverage averages full-month revenue over the nMonths
// immediately preceding anchor's month.
func (l *Layer) recentMonthlyAverage(ctx context.Context, anchor time.Time, nMonths int, salesType string) (float64, error) {
	total := 0.0
	count := 0
	for i := 1; i <= nMonths; i++ {
		monthStart := time.Date(anchor.Year(), anchor.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -i, 0)
		monthEnd := monthStart.AddDate(0, 1, -1)
		rev, err := l.periodRevenue(ctx, formatDate(monthStart), formatDate(monthEnd), salesType)
		if err != nil {
			return 0, err
		}
		total += rev
		count++
	}
	if count == 0 {
		return 0, nil
	}
	return total / float64(count), nil
}
