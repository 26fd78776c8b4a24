package middleware

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/JonMunkholm/tabx/internal/config"
	"github.com/JonMunkholm/tabx/internal/logging"
)

// APIKeyAuth guards a route group with the configured API keys. The key is
// read from X-API-Key or an Authorization Bearer token. With RequireAPIKey
// off every request passes; with it on and no keys configured, none do.
func APIKeyAuth(cfg *config.SecurityConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.RequireAPIKey {
				next.ServeHTTP(w, r)
				return
			}

			switch key := requestKey(r); {
			case key == "":
				reject(w, r, http.StatusUnauthorized, "missing API key", "AUTH_MISSING_KEY")
			case !keyMatches(key, cfg.APIKeys):
				reject(w, r, http.StatusForbidden, "invalid API key", "AUTH_INVALID_KEY")
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// keyMatches compares key against every configured key in constant time, so
// the response time does not reveal which key (if any) matched.
func keyMatches(key string, keys []string) bool {
	match := 0
	for _, k := range keys {
		match |= subtle.ConstantTimeCompare([]byte(key), []byte(k))
	}
	return match == 1
}

func requestKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func reject(w http.ResponseWriter, r *http.Request, status int, message, code string) {
	logging.FromContext(r.Context()).Warn("request rejected",
		"path", r.URL.Path,
		"method", r.Method,
		"code", code,
	)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":%q,"code":%q}`, message, code)
}
