package api

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// SchedulerAuth returns middleware that validates the
// Authorization: Bearer <secret> header on refresh routes. An empty
// configured secret rejects every request: fail closed, never open.
// Uses crypto/subtle.ConstantTimeCompare to prevent timing attacks.
func SchedulerAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			provided := strings.TrimPrefix(auth, "Bearer ")

			ok := secret != "" &&
				strings.HasPrefix(auth, "Bearer ") &&
				subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) == 1

			if !ok {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
