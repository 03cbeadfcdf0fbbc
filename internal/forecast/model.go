// Package forecast implements the revenue forecaster: feature
// engineering, winsorized gradient-boosted regression trees, walk-forward
// prediction and evaluation, and JSON/binary persistence of the trained
// artifacts, per the day-of-week-corrected revenue pipeline this system
// reproduces from its original Python prediction service.
package forecast

import (
	"fmt"
	"math"
	"sort"
	"time"

	"salesanalytics/internal/config"

	"gonum.org/v1/gonum/stat"
)

// Model is the trained forecaster: a boosted ensemble plus the
// winsorization and day-of-week correction factors applied at predict
// time.
type Model struct {
	Trees        []*treeNode
	LearningRate float64
	BaseValue    float64
	ClipRatio    float64
	DOWCorrection [7]float64
	Features     []string
}

// ErrInsufficientData is returned when fewer than config.ForecastMinUsableRows
// feature rows survive lag dropout.
var ErrInsufficientData = fmt.Errorf("forecast: insufficient training data")

func toSeries(dates []time.Time, revenue []float64) []dayFeatures {
	series := make([]dayFeatures, len(dates))
	for i := range dates {
		series[i] = dayFeatures{date: dates[i], revenue: revenue[i]}
	}
	return series
}

// winsorize clips target values to their 99th percentile, returning the
// clipped slice and clip_ratio = mean(original)/mean(clipped).
func winsorize(values []float64) ([]float64, float64) {
	if len(values) == 0 {
		return values, 1.0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	cap := stat.Quantile(config.ForecastWinsorPercentile, stat.Empirical, sorted, nil)

	clipped := make([]float64, len(values))
	for i, v := range values {
		if v > cap {
			clipped[i] = cap
		} else {
			clipped[i] = v
		}
	}
	meanOrig := stat.Mean(values, nil)
	meanClipped := stat.Mean(clipped, nil)
	ratio := 1.0
	if meanClipped > 0 {
		ratio = meanOrig / meanClipped
	}
	return clipped, ratio
}

// Train fits a Model to a daily revenue series. dates must be contiguous
// (one entry per calendar day, ascending) and revenue aligned by index.
func Train(dates []time.Time, revenue []float64) (*Model, error) {
	if len(dates) != len(revenue) {
		return nil, fmt.Errorf("forecast: dates/revenue length mismatch")
	}
	clipped, clipRatio := winsorize(revenue)
	series := toSeries(dates, clipped)

	X, validIdx := buildFeatureMatrix(series)
	if len(X) < config.ForecastMinUsableRows {
		return nil, ErrInsufficientData
	}
	target := make([]float64, len(validIdx))
	for i, idx := range validIdx {
		target[i] = series[idx].revenue
	}

	holdout := config.ForecastHoldoutDays
	if holdout >= len(X) {
		holdout = len(X) / 5
	}
	trainN := len(X) - holdout
	if trainN < config.ForecastMinUsableRows/2 {
		trainN = len(X)
		holdout = 0
	}

	trainIdx := make([]int, trainN)
	for i := range trainIdx {
		trainIdx[i] = i
	}
	var holdIdx []int
	for i := trainN; i < len(X); i++ {
		holdIdx = append(holdIdx, i)
	}

	learningRate := 0.08
	baseValue := meanAt(target, trainIdx)

	preds := make([]float64, len(X))
	for i := range preds {
		preds[i] = baseValue
	}

	var trees []*treeNode
	bestMAE := math.Inf(1)
	roundsSinceImprove := 0

	for round := 0; round < config.ForecastMaxRounds; round++ {
		residual := make([]float64, len(X))
		for _, i := range trainIdx {
			residual[i] = target[i] - preds[i]
		}
		t := buildTree(X, residual, trainIdx, 0)
		for i := range X {
			preds[i] += learningRate * predictTree(t, X[i])
		}
		trees = append(trees, t)

		if len(holdIdx) == 0 {
			continue
		}
		mae := 0.0
		for _, i := range holdIdx {
			mae += math.Abs(target[i] - preds[i])
		}
		mae /= float64(len(holdIdx))
		if mae < bestMAE-1e-9 {
			bestMAE = mae
			roundsSinceImprove = 0
		} else {
			roundsSinceImprove++
			if roundsSinceImprove >= config.ForecastEarlyStopRounds {
				break
			}
		}
	}

	m := &Model{
		Trees: trees, LearningRate: learningRate, BaseValue: baseValue,
		ClipRatio: clipRatio, Features: featureNames,
	}

	if len(holdIdx) > 0 {
		m.DOWCorrection = computeDOWCorrection(series, validIdx, holdIdx, target, preds)
	} else {
		for d := range m.DOWCorrection {
			m.DOWCorrection[d] = 1.0
		}
	}
	return m, nil
}

// computeDOWCorrection returns, per weekday, mean(actual)/mean(predicted)
// over the holdout rows, clipped to [ForecastDOWClipMin, ForecastDOWClipMax].
func computeDOWCorrection(series []dayFeatures, validIdx, holdIdx []int, target, preds []float64) [7]float64 {
	var sumActual, sumPred [7]float64
	var count [7]int
	for _, i := range holdIdx {
		dow := int(series[validIdx[i]].date.Weekday())
		sumActual[dow] += target[i]
		sumPred[dow] += preds[i]
		count[dow]++
	}
	var out [7]float64
	for d := 0; d < 7; d++ {
		if count[d] == 0 || sumPred[d] == 0 {
			out[d] = 1.0
			continue
		}
		ratio := sumActual[d] / sumPred[d]
		out[d] = math.Max(config.ForecastDOWClipMin, math.Min(config.ForecastDOWClipMax, ratio))
	}
	return out
}

func (m *Model) predictRaw(row []float64) float64 {
	v := m.BaseValue
	for _, t := range m.Trees {
		v += m.LearningRate * predictTree(t, row)
	}
	return v
}

// DailyPrediction is one forecast point.
type DailyPrediction struct {
	Date             string  `json:"date"`
	PredictedRevenue float64 `json:"predictedRevenue"`
}

// PredictRemainderOfMonth runs the walk-forward prediction described in
// spec §4.7: from history through "today" (the last entry of dates), it
// predicts every remaining day of the current month, feeding each day's
// prediction back into the series before predicting the next.
func (m *Model) PredictRemainderOfMonth(dates []time.Time, revenue []float64) ([]DailyPrediction, error) {
	if len(dates) == 0 {
		return nil, fmt.Errorf("forecast: empty history")
	}
	today := dates[len(dates)-1]
	monthEnd := time.Date(today.Year(), today.Month(), daysInMonth(today), 0, 0, 0, 0, today.Location())
	if !today.Before(monthEnd) {
		return nil, nil
	}
	return m.walkForward(dates, revenue, monthEnd), nil
}

// walkForward predicts every day strictly after the last entry of dates
// through (and including) end, writing each prediction back into the
// working series before predicting the next day so later lag/rolling
// features see it, per spec §4.7.
func (m *Model) walkForward(dates []time.Time, revenue []float64, end time.Time) []DailyPrediction {
	series := toSeries(dates, revenue)
	last := dates[len(dates)-1]
	var out []DailyPrediction
	for d := last.AddDate(0, 0, 1); !d.After(end); d = d.AddDate(0, 0, 1) {
		series = append(series, dayFeatures{date: d, revenue: math.NaN()})
		i := len(series) - 1
		row, ok := featuresForIndex(series, i)
		if !ok {
			row = make([]float64, len(featureNames))
			for j := range row {
				row[j] = math.NaN()
			}
		}
		imputeForPrediction(row)

		raw := m.predictRaw(row)
		dow := int(d.Weekday())
		pred := raw * m.DOWCorrection[dow] * m.ClipRatio
		if pred < 0 {
			pred = 0
		}
		series[i].revenue = pred
		out = append(out, DailyPrediction{Date: d.Format("2006-01-02"), PredictedRevenue: round2(pred)})
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
