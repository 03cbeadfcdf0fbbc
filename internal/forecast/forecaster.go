package forecast

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"salesanalytics/internal/config"
	"salesanalytics/internal/logger"
	"salesanalytics/internal/query"
	"salesanalytics/internal/store"
)

// Status is the forecaster's readiness/activity state, surfaced by the
// health endpoint and by StartTraining's return value.
type Status string

const (
	StatusNotReady          Status = "not_ready"
	StatusReady             Status = "ready"
	StatusTrainingStarted   Status = "training_started"
	StatusAlreadyTraining   Status = "already_training"
	StatusInsufficientData  Status = "insufficient_data"
	StatusEvaluationStarted Status = "evaluation_started"
	StatusAlreadyEvaluating Status = "already_evaluating"
)

// Forecaster owns the trained Model, the artifact files it is persisted
// to, and the single-flight guard over training. It implements
// query.Forecaster so the Query Layer can attach forecast extensions to
// revenue trends without importing this package's internals.
type Forecaster struct {
	store  *store.Store
	paths  ArtifactPaths
	mu     sync.RWMutex
	model  *Model
	training int32

	evaluating   int32
	evalMu       sync.RWMutex
	lastEval     *EvaluationSummary
	lastEvalErr  string
}

// New builds a Forecaster over an open Store, loading a previously
// persisted model from dir if present (missing files leave it not_ready).
func New(st *store.Store, dir string) *Forecaster {
	f := &Forecaster{store: st, paths: DefaultArtifactPaths(dir)}
	if m, err := Load(f.paths); err == nil {
		f.model = m
	}
	return f
}

// Status reports whether a model is loaded and whether training is
// currently running.
func (f *Forecaster) Status() Status {
	if atomic.LoadInt32(&f.training) == 1 {
		return StatusAlreadyTraining
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.model == nil {
		return StatusNotReady
	}
	return StatusReady
}

// history loads a contiguous daily revenue series (gaps filled with 0)
// covering config.ForecastHistoryDays ending at the most recent Gold day.
func (f *Forecaster) history(ctx context.Context, salesType string) ([]time.Time, []float64, error) {
	since := time.Now().AddDate(0, 0, -config.ForecastHistoryDays).Format("2006-01-02")
	points, err := f.store.DailyRevenueSeries(ctx, salesType, since)
	if err != nil {
		return nil, nil, err
	}
	if len(points) == 0 {
		return nil, nil, nil
	}
	byDate := make(map[string]float64, len(points))
	var lastDate time.Time
	for _, p := range points {
		byDate[p.Date] = p.Revenue
		if d, err := time.Parse("2006-01-02", p.Date); err == nil && d.After(lastDate) {
			lastDate = d
		}
	}
	firstDate, _ := time.Parse("2006-01-02", points[0].Date)

	var dates []time.Time
	var revenue []float64
	for d := firstDate; !d.After(lastDate); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
		revenue = append(revenue, byDate[d.Format("2006-01-02")])
	}
	return dates, revenue, nil
}

// StartTraining kicks off a training run on a dedicated goroutine and
// returns immediately. If a run is already in progress it does nothing
// and reports StatusAlreadyTraining, implementing the single-flight rule
// from spec §4.7.
func (f *Forecaster) StartTraining(salesType string) Status {
	if !atomic.CompareAndSwapInt32(&f.training, 0, 1) {
		return StatusAlreadyTraining
	}
	go func() {
		defer atomic.StoreInt32(&f.training, 0)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if err := f.trainSync(ctx, salesType); err != nil {
			logger.Error("FORECAST", fmt.Sprintf("training failed: %v", err))
		}
	}()
	return StatusTrainingStarted
}

func (f *Forecaster) trainSync(ctx context.Context, salesType string) error {
	dates, revenue, err := f.history(ctx, salesType)
	if err != nil {
		return err
	}
	model, err := Train(dates, revenue)
	if err != nil {
		return err
	}
	if err := model.Save(f.paths); err != nil {
		return err
	}
	f.mu.Lock()
	f.model = model
	f.mu.Unlock()
	logger.Info("FORECAST", fmt.Sprintf("trained on %d days, clip_ratio=%.3f", len(dates), model.ClipRatio))
	return nil
}

// PredictRemainderOfMonth implements query.Forecaster.
func (f *Forecaster) PredictRemainderOfMonth(ctx context.Context, salesType string) ([]query.DailyPrediction, error) {
	f.mu.RLock()
	model := f.model
	f.mu.RUnlock()
	if model == nil {
		return nil, fmt.Errorf("forecast: model not ready")
	}
	dates, revenue, err := f.history(ctx, salesType)
	if err != nil {
		return nil, err
	}
	if len(dates) == 0 {
		return nil, fmt.Errorf("forecast: no history")
	}
	preds, err := model.PredictRemainderOfMonth(dates, revenue)
	if err != nil {
		return nil, err
	}
	out := make([]query.DailyPrediction, len(preds))
	for i, p := range preds {
		out[i] = query.DailyPrediction{Date: p.Date, PredictedRevenue: p.PredictedRevenue}
	}
	return out, nil
}

// Evaluate runs walk-forward CV over the trailing numFolds months. It
// trains numFolds fresh models and is CPU-bound for multiple minutes —
// callers on the request path must use StartEvaluation instead (spec
// §4.7/§9: training and evaluation never run on the request path).
func (f *Forecaster) Evaluate(ctx context.Context, salesType string, numFolds int) (EvaluationSummary, error) {
	dates, revenue, err := f.history(ctx, salesType)
	if err != nil {
		return EvaluationSummary{}, err
	}
	if len(dates) == 0 {
		return EvaluationSummary{}, fmt.Errorf("forecast: no history")
	}
	return Evaluate(dates, revenue, numFolds)
}

// StartEvaluation kicks off walk-forward CV on a dedicated goroutine and
// returns immediately, mirroring StartTraining's single-flight shape. A
// second call while one is already running reports StatusAlreadyEvaluating
// instead of queueing or running concurrently.
func (f *Forecaster) StartEvaluation(salesType string, numFolds int) Status {
	if !atomic.CompareAndSwapInt32(&f.evaluating, 0, 1) {
		return StatusAlreadyEvaluating
	}
	go func() {
		defer atomic.StoreInt32(&f.evaluating, 0)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		summary, err := f.Evaluate(ctx, salesType, numFolds)

		f.evalMu.Lock()
		if err != nil {
			f.lastEval = nil
			f.lastEvalErr = err.Error()
		} else {
			f.lastEval = &summary
			f.lastEvalErr = ""
		}
		f.evalMu.Unlock()

		if err != nil {
			logger.Error("FORECAST", fmt.Sprintf("evaluation failed: %v", err))
			return
		}
		logger.Info("FORECAST", fmt.Sprintf("evaluation completed: %d folds", len(summary.Folds)))
	}()
	return StatusEvaluationStarted
}

// EvaluationResult reports the outcome of the most recently started
// evaluation without blocking: StatusAlreadyEvaluating while a run is in
// flight, StatusReady with the stored summary once one has completed, or
// StatusNotReady (plus the last error, if any) before the first run.
func (f *Forecaster) EvaluationResult() (EvaluationSummary, Status, string) {
	if atomic.LoadInt32(&f.evaluating) == 1 {
		return EvaluationSummary{}, StatusAlreadyEvaluating, ""
	}
	f.evalMu.RLock()
	defer f.evalMu.RUnlock()
	if f.lastEval == nil {
		return EvaluationSummary{}, StatusNotReady, f.lastEvalErr
	}
	return *f.lastEval, StatusReady, ""
}
