package forecast

import (
	"math"
	"testing"
	"time"
)

func genSeries(days int, start time.Time) []dayFeatures {
	out := make([]dayFeatures, days)
	for i := 0; i < days; i++ {
		out[i] = dayFeatures{date: start.AddDate(0, 0, i), revenue: 100 + float64(i)}
	}
	return out
}

func TestFeaturesForIndex_RequiresLag7(t *testing.T) {
	series := genSeries(10, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	if _, ok := featuresForIndex(series, 5); ok {
		t.Fatal("expected index 5 to lack 7 days of lag history")
	}
	if _, ok := featuresForIndex(series, 9); !ok {
		t.Fatal("expected index 9 (10 days in) to have enough lag history")
	}
}

func TestFeaturesForIndex_Lag1Correct(t *testing.T) {
	series := genSeries(40, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	row, ok := featuresForIndex(series, 35)
	if !ok {
		t.Fatal("expected valid row")
	}
	lag1Idx := indexOf("lag_1")
	if row[lag1Idx] != series[34].revenue {
		t.Errorf("lag_1 = %v, want %v", row[lag1Idx], series[34].revenue)
	}
}

func indexOf(name string) int {
	for i, n := range featureNames {
		if n == name {
			return i
		}
	}
	panic("unknown feature " + name)
}

func TestBuildFeatureMatrix_SkipsEarlyRows(t *testing.T) {
	series := genSeries(50, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	X, idx := buildFeatureMatrix(series)
	if len(X) == 0 {
		t.Fatal("expected some valid feature rows")
	}
	for _, row := range X {
		if len(row) != 31 {
			t.Fatalf("feature row length = %d, want 31", len(row))
		}
	}
	if idx[0] < 7 {
		t.Errorf("first valid index = %d, want >= 7 (lag_7 requirement)", idx[0])
	}
}

func TestImputeForPrediction_YoyRatioDefaultsToOne(t *testing.T) {
	row := make([]float64, 31)
	for i := range row {
		row[i] = math.NaN()
	}
	imputeForPrediction(row)
	if row[indexOf("yoy_ratio")] != 1.0 {
		t.Errorf("yoy_ratio = %v, want 1.0", row[indexOf("yoy_ratio")])
	}
	if row[indexOf("lag_1")] != 0.0 {
		t.Errorf("lag_1 = %v, want 0.0", row[indexOf("lag_1")])
	}
}
