package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/franciscoquinteros/landing-anto/internal/auth"
	"github.com/franciscoquinteros/landing-anto/internal/handler/dto"
)

// minLoginDuration is the minimum time spent answering a login attempt.
const minLoginDuration = 200 * time.Millisecond

// Authenticator checks the owner password.
type Authenticator interface {
	Login(password string) (string, time.Time, error)
}

// AuthHandler issues admin tokens.
type AuthHandler struct {
	auth     Authenticator
	logger   *slog.Logger
	minDelay time.Duration
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authenticator Authenticator, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:     authenticator,
		logger:   logger,
		minDelay: minLoginDuration,
	}
}

// Login handles POST /api/auth.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		if elapsed := time.Since(start); elapsed < h.minDelay {
			time.Sleep(h.minDelay - elapsed)
		}
	}()

	var req dto.AuthRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	token, expiresAt, err := h.auth.Login(req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidPassword):
		h.logger.Warn("login_failed", "reason", "invalid_password", "ip", r.RemoteAddr)
		writeError(w, http.StatusUnauthorized, "Invalid password")
		return
	case err != nil:
		h.logger.Error("login_error", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.logger.Info("login_success", "ip", r.RemoteAddr)
	writeJSON(w, http.StatusOK, dto.AuthResponse{
		Token:     token,
		ExpiresAt: expiresAt.Unix(),
	})
}
