package api

import (
	"net/http"
	"strconv"

	"salesanalytics/internal/config"
)

func (s *Server) handleCustomerInsights(w http.ResponseWriter, r *http.Request) {
	f := resolveFilter(r)
	insights, err := s.query.GetCustomerInsights(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, insights)
}

func (s *Server) handleCohortRetention(w http.ResponseWriter, r *http.Request) {
	f := resolveFilter(r)
	rows, err := s.query.GetCohortRetention(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleEnhancedCohortRetention(w http.ResponseWriter, r *http.Request) {
	f := resolveFilter(r)
	rows, err := s.query.GetEnhancedCohortRetention(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleDaysToSecondPurchase(w http.ResponseWriter, r *http.Request) {
	f := resolveFilter(r)
	buckets, err := s.query.GetDaysToSecondPurchase(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, buckets)
}

func (s *Server) handleCohortLTV(w http.ResponseWriter, r *http.Request) {
	f := resolveFilter(r)
	rows, err := s.query.GetCohortLTV(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleAtRiskCustomers(w http.ResponseWriter, r *http.Request) {
	f := resolveFilter(r)
	threshold := config.AtRiskDaysThreshold
	if v := r.URL.Query().Get("days_threshold"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			threshold = n
		}
	}
	rows, err := s.query.GetAtRiskCustomers(r.Context(), f, threshold)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rows)
}
