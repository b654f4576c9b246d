package middleware

import (
	"net/http"
	"strings"
)

var corsHeaders = map[string]string{
	"Access-Control-Allow-Methods":  "GET, POST, DELETE, OPTIONS",
	"Access-Control-Allow-Headers":  "Content-Type, Authorization, X-API-Key, X-Admin-Key, X-Caller, X-Request-ID",
	"Access-Control-Expose-Headers": "X-Request-ID, Retry-After",
	"Access-Control-Max-Age":        "86400",
}

// originSet matches request origins case-insensitively. It matches everything
// when built from an empty list or one containing "*".
type originSet struct {
	any     bool
	origins map[string]struct{}
}

func newOriginSet(origins []string) originSet {
	s := originSet{any: len(origins) == 0, origins: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		o = strings.ToLower(strings.TrimSpace(o))
		if o == "*" {
			s.any = true
		}
		s.origins[o] = struct{}{}
	}
	return s
}

func (s originSet) allows(origin string) bool {
	if s.any {
		return true
	}
	_, ok := s.origins[strings.ToLower(origin)]
	return ok
}

// CORS echoes an allowed Origin back with the API's method and header lists.
// OPTIONS requests are answered here with 204 and never reach next.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	set := newOriginSet(allowedOrigins)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); origin != "" && set.allows(origin) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
				for k, v := range corsHeaders {
					h.Set(k, v)
				}
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
