package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/franciscoquinteros/landing-anto/internal/tracking"
)

// Resolver resolves a link id to its destination and schedules click logging.
type Resolver interface {
	Resolve(ctx context.Context, linkID string, meta tracking.RequestMeta) (string, error)
}

// RedirectHandler handles tracked link redirects.
type RedirectHandler struct {
	resolver  Resolver
	geoHeader string
	logger    *slog.Logger
}

// NewRedirectHandler creates a new RedirectHandler. The visitor country is
// read from geoHeader.
func NewRedirectHandler(resolver Resolver, geoHeader string, logger *slog.Logger) *RedirectHandler {
	if geoHeader == "" {
		geoHeader = tracking.DefaultGeoHeader
	}
	return &RedirectHandler{
		resolver:  resolver,
		geoHeader: geoHeader,
		logger:    logger,
	}
}

// Go handles GET /go/{id}.
func (h *RedirectHandler) Go(w http.ResponseWriter, r *http.Request) {
	h.redirect(w, r, chi.URLParam(r, "id"))
}

// Track handles the legacy GET /api/track?id={id}.
func (h *RedirectHandler) Track(w http.ResponseWriter, r *http.Request) {
	h.redirect(w, r, r.URL.Query().Get("id"))
}

func (h *RedirectHandler) redirect(w http.ResponseWriter, r *http.Request, linkID string) {
	start := time.Now()
	meta := tracking.MetaFromRequest(r, h.geoHeader)

	url, err := h.resolver.Resolve(r.Context(), linkID, meta)
	duration := time.Since(start)

	if err != nil {
		h.handleRedirectError(w, linkID, err, duration)
		return
	}

	h.logger.Info("redirect_success",
		"link_id", linkID,
		"duration_ms", float64(duration.Microseconds())/1000,
	)

	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("Cache-Control", "private, max-age=0")
	http.Redirect(w, r, url, http.StatusFound)
}

// handleRedirectError maps resolution errors to plain-text responses.
func (h *RedirectHandler) handleRedirectError(w http.ResponseWriter, linkID string, err error, duration time.Duration) {
	w.Header().Set("Cache-Control", "private, max-age=0")

	switch {
	case errors.Is(err, tracking.ErrBadRequest):
		h.logger.Info("redirect_bad_request")
		writeText(w, http.StatusBadRequest, "Missing id parameter")

	case errors.Is(err, tracking.ErrLinkNotFound):
		h.logger.Info("redirect_not_found",
			"link_id", linkID,
			"duration_ms", float64(duration.Microseconds())/1000,
		)
		writeText(w, http.StatusNotFound, "Link not found")

	case errors.Is(err, tracking.ErrDataUnavailable):
		h.logger.Error("redirect_data_unavailable",
			"link_id", linkID,
			"error", err,
		)
		writeText(w, http.StatusInternalServerError, "Site data unavailable")

	default:
		h.logger.Error("redirect_error",
			"link_id", linkID,
			"error", err,
		)
		writeText(w, http.StatusInternalServerError, "Site data unavailable")
	}
}
