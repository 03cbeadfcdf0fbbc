package forecast

import (
	"math"
	"time"
)

// featureNames is the fixed, ordered feature list built for every day in
// the training/prediction matrix. Its length and order must stay
// consistent between Train and Predict — callers never hand-index it.
var featureNames = []string{
	"day_of_week", "month", "day_of_month", "week_of_year", "quarter",
	"sin_month", "cos_month", "sin_dow", "cos_dow",
	"lag_1", "lag_7", "lag_14", "lag_28", "lag_365",
	"roll_mean_7", "roll_mean_14", "roll_mean_28", "roll_std_7",
	"yoy_ratio",
	"trend_index",
	"is_weekend", "is_month_start", "is_month_end",
	"roll_mean_7_delta", "roll_mean_28_delta",
	"lag_1_delta", "lag_7_delta",
	"roll_min_28", "roll_max_28",
	"days_since_peak_28", "revenue_momentum",
}

func init() {
	if len(featureNames) != 31 {
		panic("forecast: featureNames must have exactly 31 entries")
	}
}

// dayFeatures is one day's point-in-time input: its calendar date and the
// observed revenue (NaN for not-yet-known future days being predicted).
type dayFeatures struct {
	date    time.Time
	revenue float64
}

func daysInMonth(t time.Time) int {
	firstOfNext := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	return firstOfNext.AddDate(0, 0, -1).Day()
}

// buildFeatureMatrix computes the 31-feature row for every index in
// series where enough lag history exists (at least lag_1 and lag_7),
// using only series[:i] as history — series[i] itself is never read for
// lag/rolling features, preventing leakage.
func buildFeatureMatrix(series []dayFeatures) (X [][]float64, validIdx []int) {
	for i := range series {
		row, ok := featuresForIndex(series, i)
		if !ok {
			continue
		}
		X = append(X, row)
		validIdx = append(validIdx, i)
	}
	return X, validIdx
}

func featuresForIndex(series []dayFeatures, i int) ([]float64, bool) {
	d := series[i].date
	lag := func(k int) (float64, bool) {
		j := i - k
		if j < 0 || math.IsNaN(series[j].revenue) {
			return 0, false
		}
		return series[j].revenue, true
	}
	lag1, ok1 := lag(1)
	lag7, ok7 := lag(7)
	lag14, _ := lag(14)
	lag28, _ := lag(28)
	lag365, ok365 := lag(365)
	if !ok1 || !ok7 {
		return nil, false
	}

	rollMean := func(window int) (float64, bool) {
		if i-window < 0 {
			return 0, false
		}
		sum, count := 0.0, 0
		for j := i - window; j < i; j++ {
			if math.IsNaN(series[j].revenue) {
				return 0, false
			}
			sum += series[j].revenue
			count++
		}
		return sum / float64(count), true
	}
	rm7, okRM7 := rollMean(7)
	rm14, _ := rollMean(14)
	rm28, _ := rollMean(28)
	if !okRM7 {
		return nil, false
	}

	rollStd := func(window int) float64 {
		mean, ok := rollMean(window)
		if !ok {
			return 0
		}
		sumSq := 0.0
		count := 0
		for j := i - window; j < i; j++ {
			if math.IsNaN(series[j].revenue) {
				continue
			}
			diff := series[j].revenue - mean
			sumSq += diff * diff
			count++
		}
		if count < 2 {
			return 0
		}
		return math.Sqrt(sumSq / float64(count-1))
	}
	rollMinMax := func(window int) (float64, float64) {
		lo, hi := math.Inf(1), math.Inf(-1)
		for j := i - window; j < i && j >= 0; j++ {
			if math.IsNaN(series[j].revenue) {
				continue
			}
			lo = math.Min(lo, series[j].revenue)
			hi = math.Max(hi, series[j].revenue)
		}
		if math.IsInf(lo, 1) {
			return 0, 0
		}
		return lo, hi
	}
	roll28Min, roll28Max := rollMinMax(28)

	yoyRatio := 1.0
	if ok365 && lag365 != 0 {
		yoyRatio = lag1 / lag365
	}

	daysSincePeak := 0.0
	for j := i - 1; j >= 0 && j >= i-28; j-- {
		if !math.IsNaN(series[j].revenue) && series[j].revenue >= roll28Max {
			daysSincePeak = float64(i - j)
			break
		}
	}

	momentum := 0.0
	if rm28 != 0 {
		momentum = (rm7 - rm28) / rm28
	}

	_, isoWeek := d.ISOWeek()
	row := make([]float64, 31)
	row[0] = float64(int(d.Weekday()))
	row[1] = float64(int(d.Month()))
	row[2] = float64(d.Day())
	row[3] = float64(isoWeek)
	row[4] = float64((int(d.Month())-1)/3 + 1)
	row[5] = math.Sin(2 * math.Pi * float64(d.Month()) / 12)
	row[6] = math.Cos(2 * math.Pi * float64(d.Month()) / 12)
	row[7] = math.Sin(2 * math.Pi * float64(d.Weekday()) / 7)
	row[8] = math.Cos(2 * math.Pi * float64(d.Weekday()) / 7)
	row[9] = lag1
	row[10] = lag7
	row[11] = lag14
	row[12] = lag28
	row[13] = lag365
	row[14] = rm7
	row[15] = rm14
	row[16] = rm28
	row[17] = rollStd(7)
	row[18] = yoyRatio
	row[19] = float64(i)
	row[20] = boolF(d.Weekday() == time.Sunday || d.Weekday() == time.Saturday)
	row[21] = boolF(d.Day() <= 3)
	row[22] = boolF(d.Day() >= daysInMonth(d)-2)
	row[23] = rm7 - rm28
	row[24] = rm28 - lag28
	row[25] = lag1 - lag7
	row[26] = lag7 - lag14
	row[27] = roll28Min
	row[28] = roll28Max
	row[29] = daysSincePeak
	row[30] = momentum
	return row, true
}

func boolF(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// imputeForPrediction replaces NaN the way the spec mandates for
// walk-forward prediction rows: yoy_ratio defaults to 1.0, everything
// else to 0.0.
func imputeForPrediction(row []float64) {
	for i, name := range featureNames {
		if math.IsNaN(row[i]) {
			if name == "yoy_ratio" {
				row[i] = 1.0
			} else {
				row[i] = 0.0
			}
		}
	}
}
