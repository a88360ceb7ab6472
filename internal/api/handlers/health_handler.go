package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/hlog"
)

// Pinger reports whether the database is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// ClientCounter reports connected realtime clients.
type ClientCounter interface {
	ClientCount() int
}

// HealthHandler reports service liveness.
type HealthHandler struct {
	db  Pinger
	hub ClientCounter
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db Pinger, hub ClientCounter) *HealthHandler {
	return &HealthHandler{db: db, hub: hub}
}

// Check pings the database and reports the number of websocket clients.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, database, code := "ok", "up", http.StatusOK
	if err := h.db.PingContext(ctx); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Health check: database unreachable")
		status, database, code = "degraded", "down", http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]interface{}{
		"status":   status,
		"database": database,
		"clients":  h.hub.ClientCount(),
	})
}
