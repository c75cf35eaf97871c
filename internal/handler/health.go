package handler

import (
	"net/http"
	"time"

	"github.com/senechal-app/senechal/internal/health"
)

// HealthHandler serves read-only health measurement queries. It is thin
// I/O glue over the health database; all authorization happens in the
// middleware before these handlers run.
type HealthHandler struct {
	source *health.Source
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(source *health.Source) *HealthHandler {
	return &HealthHandler{source: source}
}

type measurementsResponse struct {
	Measurements interface{} `json:"measurements"`
	Timestamp    time.Time   `json:"timestamp"`
}

// Current returns the latest reading for each health metric.
// GET /health/current?types=1&types=4
func (h *HealthHandler) Current(w http.ResponseWriter, r *http.Request) {
	measurements, err := h.source.Latest(r.Context(), queryInts(r, "types"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to query measurements: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, measurementsResponse{
		Measurements: measurements,
		Timestamp:    time.Now().UTC(),
	})
}

// Trends returns aggregated measurements over a trailing window.
// GET /health/trends?days=30&interval=week&types=1
func (h *HealthHandler) Trends(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 30)
	if days < 1 || days > 3650 {
		writeError(w, http.StatusBadRequest, "days must be between 1 and 3650")
		return
	}
	interval := r.URL.Query().Get("interval")

	points, err := h.source.Trends(r.Context(), days, interval, queryInts(r, "types"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to query trends: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, measurementsResponse{
		Measurements: points,
		Timestamp:    time.Now().UTC(),
	})
}
