package api

import "net/http"

func (s *Server) handleInventorySummary(w http.ResponseWriter, r *http.Request) {
	items, err := s.query.GetInventoryAnalytics(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleRestockAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.query.GetRestockAlerts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}
