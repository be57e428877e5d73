package middleware

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/franciscoquinteros/landing-anto/internal/auth"
)

type mockVerifier struct {
	valid string
}

func (m *mockVerifier) Verify(token string) (*auth.Session, error) {
	if token != m.valid {
		return nil, auth.ErrInvalidToken
	}
	return &auth.Session{Subject: auth.OwnerSubject, TokenID: "01TEST"}, nil
}

func TestRequireOwner(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	verifier := &mockVerifier{valid: "good-token"}

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good-token", http.StatusUnauthorized},
		{"empty bearer", "Bearer ", http.StatusUnauthorized},
		{"invalid token", "Bearer bad-token", http.StatusUnauthorized},
		{"valid token", "Bearer good-token", http.StatusOK},
		{"case-insensitive scheme", "bearer good-token", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var session *auth.Session
			handler := RequireOwner(verifier, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				session = auth.SessionFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodPost, "/api/save-data", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusUnauthorized {
				if rec.Body.String() != "{\"error\":\"Unauthorized\"}\n" {
					t.Errorf("body = %q", rec.Body.String())
				}
				return
			}
			if session == nil || session.Subject != auth.OwnerSubject {
				t.Errorf("session not stored in context: %+v", session)
			}
		})
	}
}

func TestRequireOwner_RealTokens(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens := auth.NewTokenManager("secret", -time.Minute)
	token, _, err := tokens.Issue()
	if err != nil {
		t.Fatal(err)
	}

	handler := RequireOwner(tokens, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/metrics", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 for expired token", rec.Code)
	}
	if _, err := tokens.Verify(token); !errors.Is(err, auth.ErrInvalidToken) {
		t.Errorf("Verify() = %v, want ErrInvalidToken", err)
	}
}
