package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAdminOnly(t *testing.T) {
	h := AdminOnly("root")(ok)

	rec := serve(h, httptest.NewRequest(http.MethodPost, "/x", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":109}`, rec.Body.String())

	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	req.Header.Set("X-Admin-Key", "root")
	assert.Equal(t, http.StatusOK, serve(h, req).Code)

	assert.Equal(t, http.StatusOK, serve(AdminOnly("")(ok), httptest.NewRequest(http.MethodPost, "/x", nil)).Code)
}

func TestAuthAcceptsBothHeaders(t *testing.T) {
	h := Auth("k", "/api/health")(ok)

	assert.Equal(t, http.StatusOK, serve(h, httptest.NewRequest(http.MethodGet, "/api/health", nil)).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(h, httptest.NewRequest(http.MethodGet, "/api/markets", nil)).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/markets", nil)
	req.Header.Set("X-API-Key", "k")
	assert.Equal(t, http.StatusOK, serve(h, req).Code)
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://app.example"})(ok)

	req := httptest.NewRequest(http.MethodOptions, "/api/markets", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := serve(h, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/markets", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = serve(h, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSWildcardAndCase(t *testing.T) {
	h := CORS([]string{"*"})(ok)
	req := httptest.NewRequest(http.MethodGet, "/api/markets", nil)
	req.Header.Set("Origin", "https://any.example")
	rec := serve(h, req)
	assert.Equal(t, "https://any.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "X-Request-ID, Retry-After", rec.Header().Get("Access-Control-Expose-Headers"))
	assert.Equal(t, "Origin", rec.Header().Get("Vary"))

	h = CORS([]string{" HTTPS://App.Example "})(ok)
	req = httptest.NewRequest(http.MethodGet, "/api/markets", nil)
	req.Header.Set("Origin", "https://app.example")
	rec = serve(h, req)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

type countingLimiter struct {
	seen map[string]int
	err  error
}

func (l *countingLimiter) Allow(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	l.seen[key]++
	return l.seen[key] <= limit, nil
}

func TestRateLimitKeysOnCaller(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	lim := &countingLimiter{seen: map[string]int{}}
	h := RateLimit(lim, 2, time.Minute, logger)(ok)

	req := func(caller string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/api/markets", nil)
		r.Header.Set("X-Caller", caller)
		return r
	}
	assert.Equal(t, http.StatusOK, serve(h, req("alice")).Code)
	assert.Equal(t, http.StatusOK, serve(h, req("alice")).Code)
	rec := serve(h, req("alice"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":113}`, rec.Body.String())
	assert.Equal(t, http.StatusOK, serve(h, req("bob")).Code)
	assert.Equal(t, 3, lim.seen["api:caller:alice"])

	failing := RateLimit(&countingLimiter{err: errors.New("redis down")}, 1, time.Minute, logger)(ok)
	assert.Equal(t, http.StatusOK, serve(failing, req("alice")).Code)
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", extractClientIP(r))

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.1:5555"
	assert.Equal(t, "192.0.2.1", extractClientIP(r))
}

func TestLoggingSetsRequestID(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := Logging(logger)(ok)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/markets", nil))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/api/markets", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	rec = serve(h, req)
	assert.Equal(t, "req-1", rec.Header().Get(RequestIDHeader))
}
