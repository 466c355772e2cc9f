package middleware

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRateLimiter(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	limiter := NewRateLimiter(10, time.Minute, logger)
	defer limiter.Stop()

	require.NotNil(t, limiter)
	assert.Equal(t, 10, limiter.rate)
	assert.Equal(t, time.Minute, limiter.window)
	assert.NotNil(t, limiter.buckets)
}

func TestRateLimiter_Allow(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("Allows requests within limit", func(t *testing.T) {
		limiter := NewRateLimiter(3, time.Minute, logger)
		defer limiter.Stop()

		for i := 0; i < 3; i++ {
			assert.True(t, limiter.Allow("10.0.0.1"), fmt.Sprintf("request %d should pass", i+1))
		}
		assert.False(t, limiter.Allow("10.0.0.1"), "4th request should be blocked")
		assert.True(t, limiter.Allow("10.0.0.2"), "Other keys have their own bucket")
	})

	t.Run("Refills tokens after window", func(t *testing.T) {
		limiter := NewRateLimiter(1, 50*time.Millisecond, logger)
		defer limiter.Stop()

		assert.True(t, limiter.Allow("10.0.0.1"))
		assert.False(t, limiter.Allow("10.0.0.1"))

		time.Sleep(60 * time.Millisecond)
		assert.True(t, limiter.Allow("10.0.0.1"), "tokens should be refilled")
	})
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute, slog.New(slog.DiscardHandler))
	limiter.Stop()
	assert.NotPanics(t, limiter.Stop)
}

func TestRateLimiter_CleanupOldBuckets(t *testing.T) {
	limiter := NewRateLimiter(5, time.Minute, slog.New(slog.DiscardHandler))
	defer limiter.Stop()

	limiter.Allow("old")
	limiter.Allow("fresh")
	limiter.mu.Lock()
	limiter.buckets["old"].lastRefill = time.Now().Add(-3 * time.Minute)
	limiter.mu.Unlock()

	limiter.cleanupOldBuckets(time.Now())

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.NotContains(t, limiter.buckets, "old")
	assert.Contains(t, limiter.buckets, "fresh")
}

func TestRateLimitMiddleware(t *testing.T) {
	logger, logBuf := newBufferedLogger()
	limiter := NewRateLimiter(2, time.Minute, logger)
	defer limiter.Stop()

	handler := RateLimitMiddleware(limiter, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("success"))
	}))

	// Разные порты одного IP делят один лимит
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		req.RemoteAddr = fmt.Sprintf("192.168.1.2:%d", 40000+i)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.RemoteAddr = "192.168.1.2:40009"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "rate limit exceeded")
	assert.Contains(t, logBuf.String(), "Rate limit exceeded")
	assert.Contains(t, logBuf.String(), "ip=192.168.1.2")
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xRealIP    string
		expected   string
	}{
		{name: "remote addr with port", remoteAddr: "192.168.1.1:12345", expected: "192.168.1.1"},
		{name: "remote addr without port", remoteAddr: "192.168.1.1", expected: "192.168.1.1"},
		{name: "ipv6 remote addr", remoteAddr: "[::1]:8080", expected: "::1"},
		{name: "x-forwarded-for single", remoteAddr: "10.0.0.1:1", xff: "203.0.113.1", expected: "203.0.113.1"},
		{name: "x-forwarded-for chain", remoteAddr: "10.0.0.1:1", xff: "203.0.113.1, 198.51.100.2", expected: "203.0.113.1"},
		{name: "x-real-ip", remoteAddr: "10.0.0.1:1", xRealIP: "203.0.113.7", expected: "203.0.113.7"},
		{name: "xff wins over x-real-ip", remoteAddr: "10.0.0.1:1", xff: "203.0.113.1", xRealIP: "203.0.113.7", expected: "203.0.113.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xRealIP != "" {
				req.Header.Set("X-Real-IP", tt.xRealIP)
			}
			assert.Equal(t, tt.expected, getClientIP(req))
		})
	}
}
