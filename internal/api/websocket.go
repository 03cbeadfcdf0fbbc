package api

import (
	"net/http"

	"github.com/google/uuid"

	"salesanalytics/internal/eventbus"
	"salesanalytics/internal/logger"
)

// handleWSDashboard upgrades to a WebSocket and subscribes the connection
// to the "dashboard" room, per spec §4.5. Every broadcast the Sync Engine,
// Scheduler, or webhook ingestion path fires lands here. The connection's
// token is tracked in the session store purely so the Scheduler's
// session-cleanup/inactive-revocation jobs have a real row to expire —
// there is no authentication check here (spec §1 excludes it).
func (s *Server) handleWSDashboard(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("API", "ws upgrade failed: "+err.Error())
		return
	}

	id := "dash-" + uuid.NewString()
	client := eventbus.NewClient(id, conn)
	s.bus.Subscribe("dashboard", client)

	if s.sessions != nil {
		if err := s.sessions.Touch(r.Context(), id); err != nil {
			logger.Warn("API", "session touch failed: "+err.Error())
		}
	}

	defer func() {
		s.bus.Unsubscribe("dashboard", id)
		conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.bus.HandleMessage(client, msg)
		if s.sessions != nil {
			if err := s.sessions.Touch(r.Context(), id); err != nil {
				logger.Warn("API", "session touch failed: "+err.Error())
			}
		}
	}
}
