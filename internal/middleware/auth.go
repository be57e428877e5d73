package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/franciscoquinteros/landing-anto/internal/auth"
)

// TokenVerifier validates a bearer token.
type TokenVerifier interface {
	Verify(token string) (*auth.Session, error)
}

// RequireOwner rejects requests without a valid owner token with 401 and
// stores the session in the request context otherwise.
func RequireOwner(verifier TokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				logger.Warn("authentication_failed",
					"reason", "missing_token",
					"path", r.URL.Path,
					"request_id", GetRequestID(r.Context()),
				)
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			session, err := verifier.Verify(token)
			if err != nil {
				logger.Warn("authentication_failed",
					"reason", "invalid_token",
					"path", r.URL.Path,
					"request_id", GetRequestID(r.Context()),
				)
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			ctx := auth.ContextWithSession(r.Context(), session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
