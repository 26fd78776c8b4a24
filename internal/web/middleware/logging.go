// Package middleware provides HTTP middleware for the web server.
package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/tabx/internal/logging"
)

// Logger gives each request a logger carrying its request_id and client ip,
// stores it in the request context for handlers, and logs one line when the
// response is done. 5xx responses are logged at error level.
//
// It must run after chi's RequestID and TrustedRealIP.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logger := logging.FromContext(r.Context()).With("ip", r.RemoteAddr)
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r.WithContext(logging.NewContext(r.Context(), logger)))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		log := logger.Info
		if status >= http.StatusInternalServerError {
			log = logger.Error
		}
		log("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"user_agent", r.UserAgent(),
		)
	})
}
