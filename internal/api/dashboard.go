package api

import (
	"net/http"
	"strconv"

	"salesanalytics/internal/forecast"
	"salesanalytics/internal/query"
)

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	f := resolveFilter(r)
	stats, err := s.query.GetSummaryStats(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleRevenueTrend(w http.ResponseWriter, r *http.Request) {
	f := resolveFilter(r)

	var compare *query.ComparisonMode
	if v := r.URL.Query().Get("compare"); v != "" {
		mode := query.ComparisonMode(v)
		compare = &mode
	}
	q := r.URL.Query()
	explicitDates := q.Get("start_date") != "" && q.Get("end_date") != ""
	currentPeriod := q.Get("period") == "month" || q.Get("period") == "week"
	wantForecast := q.Get("forecast") == "true" && currentPeriod && !explicitDates

	trend, err := s.query.GetRevenueTrend(r.Context(), f, compare, s.forecaster, wantForecast)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, trend)
}

func (s *Server) handleRevenueForecast(w http.ResponseWriter, r *http.Request) {
	salesType := resolveSalesType(r)
	preds, err := s.forecaster.PredictRemainderOfMonth(r.Context(), salesType)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"dailyPredictions": preds})
}

func (s *Server) handleForecastTrain(w http.ResponseWriter, r *http.Request) {
	salesType := resolveSalesType(r)
	status := s.forecaster.StartTraining(salesType)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": string(status)})
}

// handleForecastEvaluate never runs walk-forward CV on the request
// goroutine (spec §4.7/§9): it polls the Forecaster's last evaluation
// result and, if none is in flight and none is stored yet, dispatches one
// to the Forecaster's worker goroutine and returns immediately. Callers
// poll the same endpoint until status flips to "ready".
func (s *Server) handleForecastEvaluate(w http.ResponseWriter, r *http.Request) {
	salesType := resolveSalesType(r)
	numFolds := 3
	if v := r.URL.Query().Get("folds"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			numFolds = n
		}
	}

	summary, status, lastErr := s.forecaster.EvaluationResult()
	switch status {
	case forecast.StatusReady:
		writeJSON(w, http.StatusOK, summary)
	case forecast.StatusAlreadyEvaluating:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": string(status)})
	default:
		started := s.forecaster.StartEvaluation(salesType, numFolds)
		resp := map[string]string{"status": string(started)}
		if lastErr != "" {
			resp["lastError"] = lastErr
		}
		writeJSON(w, http.StatusAccepted, resp)
	}
}

func (s *Server) handleSalesBySource(w http.ResponseWriter, r *http.Request) {
	f := resolveFilter(r)
	breakdown, err := s.query.GetSalesBySource(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, breakdown)
}

func (s *Server) handleTopProducts(w http.ResponseWriter, r *http.Request) {
	f := resolveFilter(r)
	products, err := s.query.GetTopProducts(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, products)
}
