package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/alanyoungcy/truthpool/internal/domain"
)

// Auth validates requests carrying either "Authorization: Bearer <key>" or
// "X-API-Key: <key>". An empty apiKey disables the check. Paths in public
// pass without a key.
func Auth(apiKey string, public ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" || isPublic(r.URL.Path, public) {
				next.ServeHTTP(w, r)
				return
			}
			if !matches(extractToken(r), apiKey) {
				writeFailure(w, http.StatusUnauthorized, domain.CodeUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AdminOnly guards governance routes (resolution, the party table, the
// manual clock) with the admin key sent as X-Admin-Key. An empty adminKey
// leaves the routes open, which suits single-operator deployments.
func AdminOnly(adminKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			if !matches(strings.TrimSpace(r.Header.Get("X-Admin-Key")), adminKey) {
				writeFailure(w, http.StatusForbidden, domain.CodeUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// matches compares in constant time.
func matches(token, key string) bool {
	return token != "" && subtle.ConstantTimeCompare([]byte(token), []byte(key)) == 1
}

func isPublic(path string, public []string) bool {
	for _, p := range public {
		if path == p {
			return true
		}
	}
	return false
}

// extractToken looks for a Bearer token, then X-API-Key.
func extractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

// writeFailure sends the failed operation envelope.
func writeFailure(w http.ResponseWriter, status int, code domain.Code) {
	body, _ := json.Marshal(domain.Fail[struct{}](code))
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(body)
}
