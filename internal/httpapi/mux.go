package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"cloudpico-notifier/internal/readings"
)

func NewMux(db Pinger, repo readings.Repository, broker BrokerStatus, logger *slog.Logger) *http.ServeMux {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	registerHealthcheck(mux, db, broker, logger)
	registerReadings(mux, repo, logger)
	return mux
}

func NewServer(addr string, mux *http.ServeMux, logger *slog.Logger) *http.Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &http.Server{
		Addr:              addr,
		Handler:           requestLogger(logger, mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
}
