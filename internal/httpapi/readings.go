package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"cloudpico-notifier/internal/readings"
	"cloudpico-notifier/internal/types"
)

const defaultLimit = 50

type readingsHandler struct {
	repo   readings.Repository
	logger *slog.Logger
}

func registerReadings(mux *http.ServeMux, repo readings.Repository, logger *slog.Logger) {
	h := &readingsHandler{repo: repo, logger: logger}
	mux.HandleFunc("GET /api/readings", h.handleReadings)
	mux.HandleFunc("GET /api/stations/{id}/latest", h.handleLatest)
	mux.HandleFunc("GET /api/devices", h.handleDevices)
}

func (h *readingsHandler) handleReadings(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, defaultLimit)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	station := strings.TrimSpace(r.URL.Query().Get("station_id"))

	items, err := h.repo.LatestReadings(r.Context(), station, limit)
	if err != nil {
		h.logger.Error("list readings failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "failed to load readings")
		return
	}
	if items == nil {
		items = []types.Reading{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"station_id": station,
		"limit":      limit,
		"items":      items,
	})
}

func (h *readingsHandler) handleLatest(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "missing station id")
		return
	}
	items, err := h.repo.LatestReadings(r.Context(), id, 1)
	if err != nil {
		h.logger.Error("latest reading failed", "station_id", id, "error", err)
		WriteError(w, http.StatusInternalServerError, "failed to load reading")
		return
	}
	if len(items) == 0 {
		WriteError(w, http.StatusNotFound, "no readings for station "+id)
		return
	}
	WriteJSON(w, http.StatusOK, items[0])
}

func (h *readingsHandler) handleDevices(w http.ResponseWriter, r *http.Request) {
	devs, err := h.repo.Devices(r.Context())
	if err != nil {
		h.logger.Error("list devices failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "failed to load devices")
		return
	}
	if devs == nil {
		devs = []readings.Device{}
	}
	WriteJSON(w, http.StatusOK, devs)
}

func parseLimit(r *http.Request, def int) (int, error) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.New("invalid 'limit' (expected integer)")
	}
	if n <= 0 {
		return 0, errors.New("'limit' must be > 0")
	}
	if n > readings.MaxLimit {
		return 0, errors.New("'limit' must be <= " + strconv.Itoa(readings.MaxLimit))
	}
	return n, nil
}
