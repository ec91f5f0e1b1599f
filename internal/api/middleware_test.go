package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"

	"github.com/aerius-app/aerius/internal/config"
)

func TestRateLimiterSweepsIdleClients(t *testing.T) {
	rl := NewRateLimiter(rate.Every(time.Second), 1)

	first := rl.GetLimiter("198.51.100.1")
	assert.Same(t, first, rl.GetLimiter("198.51.100.1"))

	rl.mu.Lock()
	rl.limiters["198.51.100.1"].lastSeen = time.Now().Add(-2 * limiterIdleTTL)
	rl.lastSweep = time.Now().Add(-2 * limiterIdleTTL)
	rl.mu.Unlock()

	rl.GetLimiter("198.51.100.2")

	rl.mu.Lock()
	_, kept := rl.limiters["198.51.100.1"]
	rl.mu.Unlock()
	assert.False(t, kept)
	assert.NotSame(t, first, rl.GetLimiter("198.51.100.1"))
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.9:41234"
	assert.Equal(t, "203.0.113.9", clientIP(r))

	r.RemoteAddr = "203.0.113.9"
	assert.Equal(t, "203.0.113.9", clientIP(r))
}

func TestSecurityHeadersHSTSInProduction(t *testing.T) {
	handler := SecurityHeadersMiddleware(&config.Config{Environment: "production"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, rec.Header().Get("Strict-Transport-Security"), "max-age=31536000")
}
