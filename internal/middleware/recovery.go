package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

// Recoverer turns a handler panic into a 500 JSON response.
// Stack traces are logged only when verbose is set.
func Recoverer(logger *slog.Logger, verbose bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}

				attrs := []any{
					"request_id", GetRequestID(r.Context()),
					"path", r.URL.Path,
					"panic", rvr,
				}
				if verbose {
					attrs = append(attrs, "stack", string(debug.Stack()))
				}
				logger.Error("panic_recovered", attrs...)

				writeError(w, http.StatusInternalServerError, "Internal server error")
			}()

			next.ServeHTTP(w, r)
		})
	}
}
