package store

import (
	"context"
	"testing"
	"time"
)

func TestRevenueGoalCRUD(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)
	id, err := s.CreateRevenueGoal(ctx, RevenueGoal{PeriodStart: start, PeriodEnd: end, SalesType: "retail", TargetRevenue: 100000})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id == 0 {
		t.Fatal("expected a nonzero goal id")
	}

	goals, err := s.ListRevenueGoals(ctx, start, end, "retail")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(goals) != 1 || goals[0].TargetRevenue != 100000 {
		t.Fatalf("goals = %+v, want one goal of 100000", goals)
	}

	if err := s.DeleteRevenueGoal(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	goals, err = s.ListRevenueGoals(ctx, start, end, "retail")
	if err != nil {
		t.Fatalf("list after delete: %v", err)
	}
	if len(goals) != 0 {
		t.Errorf("goals after delete = %+v, want none", goals)
	}
}

func TestSeasonalIndexFor_DefaultsToOne(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	v, err := s.SeasonalIndexFor(ctx, 3, "retail")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if v != 1.0 {
		t.Errorf("default seasonal index = %v, want 1.0", v)
	}

	if err := s.UpsertSeasonalIndices(ctx, []SeasonalIndex{{Month: 3, SalesType: "retail", IndexValue: 1.25}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	v, err = s.SeasonalIndexFor(ctx, 3, "retail")
	if err != nil {
		t.Fatalf("lookup after upsert: %v", err)
	}
	if v != 1.25 {
		t.Errorf("seasonal index = %v, want 1.25", v)
	}
}

func TestWeeklyPatternsFor_EmptyWhenAbsent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	patterns, err := s.WeeklyPatternsFor(ctx, 5, "b2b")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(patterns) != 0 {
		t.Errorf("expected no rows for unseeded month, got %+v", patterns)
	}

	if err := s.UpsertWeeklyPatterns(ctx, []WeeklyPattern{
		{Month: 5, WeekOfMonth: 1, SalesType: "b2b", Weight: 0.3},
		{Month: 5, WeekOfMonth: 2, SalesType: "b2b", Weight: 0.7},
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	patterns, err = s.WeeklyPatternsFor(ctx, 5, "b2b")
	if err != nil {
		t.Fatalf("lookup after upsert: %v", err)
	}
	if patterns[1] != 0.3 || patterns[2] != 0.7 {
		t.Errorf("patterns = %+v, want {1:0.3, 2:0.7}", patterns)
	}
}

func TestGrowthMetricFor(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_, ok, err := s.GrowthMetricFor(ctx, "yoy", "retail")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false before any metric is recorded")
	}

	if err := s.UpsertGrowthMetrics(ctx, []GrowthMetric{{MetricType: "yoy", SalesType: "retail", Value: 0.18}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	v, ok, err := s.GrowthMetricFor(ctx, "yoy", "retail")
	if err != nil {
		t.Fatalf("lookup after upsert: %v", err)
	}
	if !ok || v != 0.18 {
		t.Errorf("value = %v, ok=%v, want 0.18/true", v, ok)
	}
}
