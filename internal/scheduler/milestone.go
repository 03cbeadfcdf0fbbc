package scheduler

import (
	"context"
	"fmt"
	"time"

	"salesanalytics/internal/config"
)

// checkMilestones compares each sales_type's current-month revenue against
// its active revenue_goals row and broadcasts milestone_reached the first
// time a threshold in config.MilestoneThresholds is crossed. The
// last-broadcast fraction is remembered in sync_metadata (keyed per
// sales_type) so a steady month doesn't re-fire the same milestone every
// night.
func (s *Scheduler) checkMilestones(ctx context.Context) error {
	for _, salesType := range []string{"retail", "b2b", "all"} {
		if err := s.checkMilestoneFor(ctx, salesType); err != nil {
			return fmt.Errorf("milestone check %s: %w", salesType, err)
		}
	}
	return nil
}

func (s *Scheduler) checkMilestoneFor(ctx context.Context, salesType string) error {
	loc := kyivLocationOr(time.UTC)
	now := time.Now().In(loc)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
	monthEnd := monthStart.AddDate(0, 1, -1)

	goals, err := s.store.ListRevenueGoals(ctx, monthStart, monthEnd, salesType)
	if err != nil || len(goals) == 0 {
		return err
	}
	target := goals[0].TargetRevenue
	if target <= 0 {
		return nil
	}

	var actual float64
	row := s.store.DB().QueryRowContext(ctx, `
		SELECT COALESCE(SUM(revenue), 0) FROM gold_daily_revenue
		WHERE date >= ? AND date <= ? AND sales_type = ?
	`, monthStart.Format("2006-01-02"), monthEnd.Format("2006-01-02"), salesType)
	if err := row.Scan(&actual); err != nil {
		return fmt.Errorf("current-month revenue: %w", err)
	}
	fraction := actual / target

	metaKey := "milestone:" + salesType + ":" + monthStart.Format("2006-01")
	prevStr, _, err := s.store.GetSyncMetadata(ctx, metaKey)
	if err != nil {
		return err
	}
	prev := 0.0
	fmt.Sscanf(prevStr, "%f", &prev)

	crossed := 0.0
	for _, th := range config.MilestoneThresholds {
		if fraction >= th && prev < th {
			crossed = th
		}
	}
	if crossed == 0 {
		return nil
	}

	if err := s.store.SetSyncMetadata(ctx, metaKey, fmt.Sprintf("%.4f", fraction)); err != nil {
		return err
	}
	if s.bus != nil {
		s.bus.BroadcastAll("milestone_reached", map[string]interface{}{
			"salesType": salesType,
			"threshold": crossed,
			"actual":    actual,
			"target":    target,
			"fraction":  fraction,
		})
	}
	return nil
}

func kyivLocationOr(fallback *time.Location) *time.Location {
	loc, err := time.LoadLocation(config.Timezone)
	if err != nil {
		return fallback
	}
	return loc
}
