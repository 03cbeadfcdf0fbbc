package forecast

import (
	"fmt"
	"math"
	"time"

	"salesanalytics/internal/config"
)

// FoldMetrics is one walk-forward evaluation fold: the model is trained
// on everything strictly before FoldStart and scored against the actual
// revenue of [FoldStart, FoldEnd].
type FoldMetrics struct {
	FoldStart       string  `json:"foldStart"`
	FoldEnd         string  `json:"foldEnd"`
	MAE             float64 `json:"mae"`
	MAPE            float64 `json:"mape"`
	WAPE            float64 `json:"wape"`
	Naive7dWAPE     float64 `json:"naive7dWape"`
	WeekdayAvg12wWAPE float64 `json:"weekdayAvg12wWape"`
}

// EvaluationSummary is the evaluate() response: per-fold metrics plus
// their means.
type EvaluationSummary struct {
	Folds   []FoldMetrics `json:"folds"`
	MeanMAE float64       `json:"meanMae"`
	MeanMAPE float64      `json:"meanMape"`
	MeanWAPE float64      `json:"meanWape"`
}

// Evaluate runs walk-forward cross-validation over the trailing numFolds
// calendar months (minimum config.ForecastMinFolds), training a fresh
// model on all history before each fold and scoring it against the fold's
// actual days, per spec §4.7.
func Evaluate(dates []time.Time, revenue []float64, numFolds int) (EvaluationSummary, error) {
	if numFolds < config.ForecastMinFolds {
		numFolds = config.ForecastMinFolds
	}
	if len(dates) == 0 {
		return EvaluationSummary{}, fmt.Errorf("forecast: empty history")
	}
	byDate := make(map[string]float64, len(dates))
	for i, d := range dates {
		byDate[d.Format("2006-01-02")] = revenue[i]
	}

	last := dates[len(dates)-1]
	var folds []FoldMetrics
	for k := numFolds; k >= 1; k-- {
		foldMonth := time.Date(last.Year(), last.Month(), 1, 0, 0, 0, 0, last.Location()).AddDate(0, -k+1, 0)
		foldStart := foldMonth
		foldEnd := foldStart.AddDate(0, 1, -1)
		if foldEnd.After(last) {
			foldEnd = last
		}
		if !foldStart.Before(foldEnd) && foldStart != foldEnd {
			continue
		}

		var trainDates []time.Time
		var trainRevenue []float64
		for i, d := range dates {
			if d.Before(foldStart) {
				trainDates = append(trainDates, d)
				trainRevenue = append(trainRevenue, revenue[i])
			}
		}
		if len(trainDates) == 0 {
			continue
		}

		model, err := Train(trainDates, trainRevenue)
		if err != nil {
			continue
		}
		preds := model.walkForward(trainDates, trainRevenue, foldEnd)
		if len(preds) == 0 {
			continue
		}

		var actual, predicted []float64
		for _, p := range preds {
			a, ok := byDate[p.Date]
			if !ok {
				continue
			}
			actual = append(actual, a)
			predicted = append(predicted, p.PredictedRevenue)
		}
		if len(actual) == 0 {
			continue
		}

		naive := naiveLag7Baseline(byDate, preds)
		weekdayAvg := weekdayAvg12wBaseline(dates, revenue, preds)

		folds = append(folds, FoldMetrics{
			FoldStart: foldStart.Format("2006-01-02"), FoldEnd: foldEnd.Format("2006-01-02"),
			MAE: mae(actual, predicted), MAPE: mape(actual, predicted), WAPE: wape(actual, predicted),
			Naive7dWAPE: wape(actual, naive), WeekdayAvg12wWAPE: wape(actual, weekdayAvg),
		})
	}

	summary := EvaluationSummary{Folds: folds}
	if len(folds) > 0 {
		var sumMAE, sumMAPE, sumWAPE float64
		for _, f := range folds {
			sumMAE += f.MAE
			sumMAPE += f.MAPE
			sumWAPE += f.WAPE
		}
		n := float64(len(folds))
		summary.MeanMAE = sumMAE / n
		summary.MeanMAPE = sumMAPE / n
		summary.MeanWAPE = sumWAPE / n
	}
	return summary, nil
}

func naiveLag7Baseline(byDate map[string]float64, preds []DailyPrediction) []float64 {
	out := make([]float64, len(preds))
	for i, p := range preds {
		d, _ := time.Parse("2006-01-02", p.Date)
		out[i] = byDate[d.AddDate(0, 0, -7).Format("2006-01-02")]
	}
	return out
}

func weekdayAvg12wBaseline(dates []time.Time, revenue []float64, preds []DailyPrediction) []float64 {
	byDate := make(map[string]float64, len(dates))
	for i, d := range dates {
		byDate[d.Format("2006-01-02")] = revenue[i]
	}
	out := make([]float64, len(preds))
	for i, p := range preds {
		d, _ := time.Parse("2006-01-02", p.Date)
		sum, count := 0.0, 0
		for w := 1; w <= 12; w++ {
			day := d.AddDate(0, 0, -7*w)
			if v, ok := byDate[day.Format("2006-01-02")]; ok {
				sum += v
				count++
			}
		}
		if count > 0 {
			out[i] = sum / float64(count)
		}
	}
	return out
}

func mae(actual, predicted []float64) float64 {
	if len(actual) == 0 {
		return 0
	}
	sum := 0.0
	for i := range actual {
		sum += math.Abs(actual[i] - predicted[i])
	}
	return sum / float64(len(actual))
}

func mape(actual, predicted []float64) float64 {
	sum := 0.0
	count := 0
	for i := range actual {
		if actual[i] == 0 {
			continue
		}
		sum += math.Abs((actual[i] - predicted[i]) / actual[i])
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count) * 100
}

func wape(actual, predicted []float64) float64 {
	var errSum, actualSum float64
	for i := range actual {
		errSum += math.Abs(actual[i] - predicted[i])
		actualSum += math.Abs(actual[i])
	}
	if actualSum == 0 {
		return 0
	}
	return errSum / actualSum * 100
}
