package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// bearerAuth rejects requests whose Authorization header does not carry token.
// An empty token rejects everything.
func bearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeJSON(w, http.StatusUnauthorized, errorResp("UNAUTHORIZED", "Missing authorization header", r))
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				writeJSON(w, http.StatusUnauthorized, errorResp("UNAUTHORIZED", "Invalid authorization format", r))
				return
			}

			if token == "" || subtle.ConstantTimeCompare([]byte(parts[1]), []byte(token)) != 1 {
				writeJSON(w, http.StatusUnauthorized, errorResp("UNAUTHORIZED", "Invalid token", r))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
