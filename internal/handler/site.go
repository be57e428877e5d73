package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/franciscoquinteros/landing-anto/internal/handler/dto"
	"github.com/franciscoquinteros/landing-anto/internal/service"
)

// RawLoader returns the site document through the fallback chain.
type RawLoader interface {
	LoadRaw(ctx context.Context) ([]byte, error)
}

// SiteEditor applies owner edits.
type SiteEditor interface {
	Save(ctx context.Context, body []byte) error
	UploadProfileImage(ctx context.Context, imageBase64 string) (string, error)
	UploadLinkImage(ctx context.Context, linkID, imageBase64 string) (string, error)
}

// SiteHandler serves and edits the site document.
type SiteHandler struct {
	loader RawLoader
	editor SiteEditor
	logger *slog.Logger
}

// NewSiteHandler creates a new SiteHandler.
func NewSiteHandler(loader RawLoader, editor SiteEditor, logger *slog.Logger) *SiteHandler {
	return &SiteHandler{
		loader: loader,
		editor: editor,
		logger: logger,
	}
}

// SiteData handles GET /api/site-data.
func (h *SiteHandler) SiteData(w http.ResponseWriter, r *http.Request) {
	raw, err := h.loader.LoadRaw(r.Context())
	if err != nil {
		h.logger.Error("site_data_unavailable", "error", err)
		writeText(w, http.StatusNotFound, "Site data not found")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

// Save handles POST /api/save-data.
func (h *SiteHandler) Save(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeBodyError(w, err)
		return
	}

	if err := h.editor.Save(r.Context(), body); err != nil {
		if errors.Is(err, service.ErrInvalidDocument) {
			writeError(w, http.StatusBadRequest, "Invalid site data")
			return
		}
		h.logger.Error("save_data_failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to save data")
		return
	}

	h.logger.Info("site_data_saved")
	writeJSON(w, http.StatusOK, dto.OKResponse{OK: true})
}

// UploadImage handles POST /api/upload-image.
func (h *SiteHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	var req dto.UploadImageRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeBodyError(w, err)
		return
	}
	if req.ImageBase64 == "" {
		writeError(w, http.StatusBadRequest, "Missing imageBase64")
		return
	}

	image, err := h.editor.UploadProfileImage(r.Context(), req.ImageBase64)
	if err != nil {
		if isImageError(err) {
			writeError(w, http.StatusBadRequest, "Invalid imageBase64")
			return
		}
		h.logger.Error("upload_image_failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to upload image")
		return
	}

	h.logger.Info("profile_image_uploaded", "image", image)
	writeJSON(w, http.StatusOK, dto.UploadResponse{OK: true, Image: image})
}

// UploadLinkImage handles POST /api/upload-link-image.
func (h *SiteHandler) UploadLinkImage(w http.ResponseWriter, r *http.Request) {
	var req dto.UploadLinkImageRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeBodyError(w, err)
		return
	}
	if req.LinkID == "" || req.ImageBase64 == "" {
		writeError(w, http.StatusBadRequest, "Missing linkId or imageBase64")
		return
	}

	image, err := h.editor.UploadLinkImage(r.Context(), req.LinkID, req.ImageBase64)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidLinkID):
			writeError(w, http.StatusBadRequest, "Invalid linkId")
		case isImageError(err):
			writeError(w, http.StatusBadRequest, "Invalid imageBase64")
		default:
			h.logger.Error("upload_link_image_failed", "link_id", req.LinkID, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to upload link image")
		}
		return
	}

	h.logger.Info("link_image_uploaded", "link_id", req.LinkID, "image", image)
	writeJSON(w, http.StatusOK, dto.UploadResponse{OK: true, Image: image})
}

// writeBodyError answers an unreadable or oversized request body.
func (h *SiteHandler) writeBodyError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return
	}
	writeError(w, http.StatusBadRequest, "Invalid request")
}

func isImageError(err error) bool {
	return errors.Is(err, service.ErrMissingImage) || errors.Is(err, service.ErrInvalidImage)
}
