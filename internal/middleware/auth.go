package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// BearerAuth validates the shared secret from the Authorization header.
// No side effects happen before the check passes.
func BearerAuth(token string) func(http.Handler) http.Handler {
	expected := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := strings.TrimSpace(r.Header.Get("Authorization"))
			if auth == "" {
				WriteError(w, http.StatusUnauthorized, "unauthorized", "missing Authorization header")
				return
			}

			// Support both "Bearer <key>" and "<key>" formats
			key := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			if key == "" {
				WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid Authorization header format")
				return
			}

			// constant-time comparison to prevent timing attacks
			if len(expected) == 0 || subtle.ConstantTimeCompare([]byte(key), expected) != 1 {
				WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid API token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
