// Package middleware provides HTTP middleware for the web server.
package middleware

import (
	"log/slog"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/agrorecords/internal/logging"
)

// Logger is an HTTP middleware that logs one line per request.
//
// The line goes through logging.FromContext, so it carries the request id
// and, on authenticated routes, the caller's user_id and role. 5xx responses
// log at Error and 4xx at Warn.
//
// Log fields:
//   - method, path
//   - status, bytes
//   - duration_ms
//   - ip: RemoteAddr after TrustedRealIP
//   - user_agent
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		// Authenticate runs deeper in the chain and attaches the principal to
		// a derived request; capture it so the access line can include it.
		holder := &requestHolder{r: r}
		next.ServeHTTP(ww, r.WithContext(withHolder(r.Context(), holder)))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		level := slog.LevelInfo
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		}

		logging.FromContext(holder.r.Context()).Log(r.Context(), level, "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", r.RemoteAddr,
			"user_agent", r.UserAgent(),
		)
	})
}
