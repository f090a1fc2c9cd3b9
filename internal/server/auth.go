package server

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// authMiddleware validates X-API-Key or Authorization: Bearer <key> against
// the configured key set. Comparison is constant-time. With no keys
// configured the middleware is a no-op, so local and test deployments run
// open by default.
func authMiddleware(apiKeys []string) func(http.Handler) http.Handler {
	if len(apiKeys) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
					key = strings.TrimPrefix(auth, "Bearer ")
				}
			}
			if key == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid or missing API key")
				return
			}
			for _, k := range apiKeys {
				if subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1 {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid or missing API key")
		})
	}
}
