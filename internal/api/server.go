// Package api is the HTTP boundary: it turns the endpoint table in spec §6
// into a plain net/http mux over the Query Layer, Forecaster, and Event
// Bus. Routing idiom (http.NewServeMux + "METHOD /path" registration, one
// handler group per file) is carried over from the teacher's
// internal/api/server.go; the handlers themselves are new, since the
// teacher's surface is entirely EVE-specific.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"salesanalytics/internal/config"
	"salesanalytics/internal/eventbus"
	"salesanalytics/internal/forecast"
	"salesanalytics/internal/logger"
	"salesanalytics/internal/query"
	"salesanalytics/internal/session"
	"salesanalytics/internal/store"
	"salesanalytics/internal/sync"
)

// Server holds every dependency an HTTP handler might need. It is
// constructed once at startup and is safe for concurrent use — every
// field is itself already safe for concurrent access.
type Server struct {
	store      *store.Store
	query      *query.Layer
	forecaster *forecast.Forecaster
	syncEngine *sync.Engine
	bus        *eventbus.Bus
	sessions   *session.Store
	startedAt  time.Time
	upgrader   websocket.Upgrader
}

// NewServer wires a Server to its dependencies.
func NewServer(st *store.Store, q *query.Layer, fc *forecast.Forecaster, se *sync.Engine, bus *eventbus.Bus, sessions *session.Store) *Server {
	return &Server{
		store:      st,
		query:      q,
		forecaster: fc,
		syncEngine: se,
		bus:        bus,
		sessions:   sessions,
		startedAt:  time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Handler builds the routed mux. Every JSON route accepts a period or
// explicit start_date/end_date plus sales_type, per spec §6.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)

	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/revenue/trend", s.handleRevenueTrend)
	mux.HandleFunc("GET /api/revenue/forecast", s.handleRevenueForecast)
	mux.HandleFunc("POST /api/revenue/forecast/train", s.handleForecastTrain)
	mux.HandleFunc("GET /api/revenue/forecast/evaluate", s.handleForecastEvaluate)
	mux.HandleFunc("GET /api/sales/by-source", s.handleSalesBySource)
	mux.HandleFunc("GET /api/products/top", s.handleTopProducts)

	mux.HandleFunc("GET /api/customers/insights", s.handleCustomerInsights)
	mux.HandleFunc("GET /api/customers/retention", s.handleCohortRetention)
	mux.HandleFunc("GET /api/customers/retention/enhanced", s.handleEnhancedCohortRetention)
	mux.HandleFunc("GET /api/customers/days-to-second-purchase", s.handleDaysToSecondPurchase)
	mux.HandleFunc("GET /api/customers/ltv", s.handleCohortLTV)
	mux.HandleFunc("GET /api/customers/at-risk", s.handleAtRiskCustomers)

	mux.HandleFunc("GET /api/stocks/summary", s.handleInventorySummary)
	mux.HandleFunc("GET /api/stocks/alerts", s.handleRestockAlerts)

	mux.HandleFunc("GET /api/goals", s.handleGetGoals)
	mux.HandleFunc("POST /api/goals", s.handleCreateGoal)
	mux.HandleFunc("DELETE /api/goals/{id}", s.handleDeleteGoal)
	mux.HandleFunc("GET /api/goals/smart", s.handleSmartGoals)

	mux.HandleFunc("GET /api/traffic/summary", s.handleTrafficSummary)

	mux.HandleFunc("GET /ws/dashboard", s.handleWSDashboard)

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("API", "encode response: "+err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// HealthStatus is the get_health response shape (spec §6).
type HealthStatus struct {
	Status        string  `json:"status"`
	Store         string  `json:"store"`
	Sync          string  `json:"sync"`
	Forecaster    string  `json:"forecaster"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
}

// handleHealth reports degraded when store stats are unavailable or the
// last successful sync cycle is older than config.HealthSyncStaleThreshold
// (spec §9) — a sync loop that's stopped advancing still looks "idle"
// from IsRunning() alone, so staleness is judged against the Sync
// Engine's last-completed-cycle timestamp instead.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	storeStatus := "ok"
	if err := s.store.DB().PingContext(ctx); err != nil {
		storeStatus = "error"
	}

	syncStatus := "idle"
	syncStale := false
	if s.syncEngine != nil {
		if s.syncEngine.IsRunning() {
			syncStatus = "running"
		}
		if lastSync, ok, err := s.syncEngine.LastSyncAt(ctx); err == nil && ok {
			if time.Since(lastSync) > config.HealthSyncStaleThreshold {
				syncStatus = "stale"
				syncStale = true
			}
		}
	}

	forecasterStatus := "not_ready"
	if s.forecaster != nil {
		forecasterStatus = string(s.forecaster.Status())
	}

	overall := "ok"
	if storeStatus != "ok" || syncStale {
		overall = "degraded"
	}

	writeJSON(w, http.StatusOK, HealthStatus{
		Status:        overall,
		Store:         storeStatus,
		Sync:          syncStatus,
		Forecaster:    forecasterStatus,
		UptimeSeconds: time.Since(s.startedAt).Seconds(),
	})
}
