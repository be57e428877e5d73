package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

// AnalyticsReader reads click counters and event logs.
type AnalyticsReader interface {
	ClickCounts(ctx context.Context) (map[string]int64, error)
	Events(ctx context.Context, linkID string) ([]json.RawMessage, error)
	AllEvents(ctx context.Context) (map[string][]json.RawMessage, error)
}

// AnalyticsHandler serves the owner dashboard data.
type AnalyticsHandler struct {
	reader AnalyticsReader
	logger *slog.Logger
}

// NewAnalyticsHandler creates a new AnalyticsHandler.
func NewAnalyticsHandler(reader AnalyticsReader, logger *slog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{reader: reader, logger: logger}
}

// Metrics handles GET /api/metrics: {linkId: count}.
func (h *AnalyticsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	counts, err := h.reader.ClickCounts(r.Context())
	if err != nil {
		h.logger.Error("read_metrics_failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to read metrics")
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// Events handles GET /api/events[?id=x]: {linkId: [event, ...]}.
func (h *AnalyticsHandler) Events(w http.ResponseWriter, r *http.Request) {
	if id := r.URL.Query().Get("id"); id != "" {
		events, err := h.reader.Events(r.Context(), id)
		if err != nil {
			h.logger.Error("read_events_failed", "link_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to read events")
			return
		}
		writeJSON(w, http.StatusOK, map[string][]json.RawMessage{id: events})
		return
	}

	all, err := h.reader.AllEvents(r.Context())
	if err != nil {
		h.logger.Error("read_events_failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to read events")
		return
	}
	writeJSON(w, http.StatusOK, all)
}
