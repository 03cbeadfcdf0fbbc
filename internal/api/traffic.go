package api

import "net/http"

func (s *Server) handleTrafficSummary(w http.ResponseWriter, r *http.Request) {
	f := resolveFilter(r)
	rows, err := s.query.GetTrafficSummary(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rows)
}
