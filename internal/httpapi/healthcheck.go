package httpapi

import (
	"context"
	"log/slog"
	"net/http"
)

// Pinger reports database reachability; *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// BrokerStatus reports whether the telemetry uplink is connected.
type BrokerStatus interface {
	IsConnected() bool
}

type healthchecker struct {
	db     Pinger
	broker BrokerStatus
	logger *slog.Logger
}

// handleHealthz fails only on the database; a broker outage is reported but
// does not make the collector unhealthy since readings are still stored.
func (h *healthchecker) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		h.logger.Error("failed to check database connectivity", "error", err)
		WriteError(w, http.StatusInternalServerError, "failed to check database connectivity")
		return
	}
	mqtt := "disabled"
	if h.broker != nil {
		mqtt = "disconnected"
		if h.broker.IsConnected() {
			mqtt = "connected"
		}
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "mqtt": mqtt})
}

func registerHealthcheck(mux *http.ServeMux, db Pinger, broker BrokerStatus, logger *slog.Logger) {
	h := &healthchecker{db: db, broker: broker, logger: logger}
	mux.HandleFunc("GET /healthz", h.handleHealthz)
}
