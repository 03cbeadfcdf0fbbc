package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"salesanalytics/internal/store"
)

func (s *Server) handleGetGoals(w http.ResponseWriter, r *http.Request) {
	start, end := resolvePeriod(r)
	salesType := resolveSalesType(r)
	startT, err := time.Parse("2006-01-02", start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start_date")
		return
	}
	endT, err := time.Parse("2006-01-02", end)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end_date")
		return
	}
	goals, err := s.store.ListRevenueGoals(r.Context(), startT, endT, salesType)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, goals)
}

type createGoalRequest struct {
	PeriodStart   string  `json:"periodStart"`
	PeriodEnd     string  `json:"periodEnd"`
	SalesType     string  `json:"salesType"`
	TargetRevenue float64 `json:"targetRevenue"`
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var req createGoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	startT, err := time.Parse("2006-01-02", req.PeriodStart)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid periodStart")
		return
	}
	endT, err := time.Parse("2006-01-02", req.PeriodEnd)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid periodEnd")
		return
	}
	if req.SalesType == "" {
		req.SalesType = "retail"
	}
	if req.TargetRevenue <= 0 {
		writeError(w, http.StatusBadRequest, "targetRevenue must be positive")
		return
	}
	id, err := s.store.CreateRevenueGoal(r.Context(), store.RevenueGoal{
		PeriodStart:   startT,
		PeriodEnd:     endT,
		SalesType:     req.SalesType,
		TargetRevenue: req.TargetRevenue,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := s.store.DeleteRevenueGoal(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSmartGoals(w http.ResponseWriter, r *http.Request) {
	start, end := resolvePeriod(r)
	salesType := resolveSalesType(r)
	goal, err := s.query.GetSmartGoals(r.Context(), start, end, salesType)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, goal)
}
