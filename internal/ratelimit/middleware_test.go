package ratelimit

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"opsdemo/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func serve(handler http.Handler, remoteAddr string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.RemoteAddr = remoteAddr
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestMiddleware_AllowedRequest(t *testing.T) {
	limiter, _ := newTestLimiter(t, 60, 10)
	handler := Middleware(limiter, slog.New(slog.DiscardHandler))(http.HandlerFunc(okHandler))

	rr := serve(handler, "192.168.1.1:12345", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "9", rr.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rr.Header().Get("X-RateLimit-Reset"))
	assert.Empty(t, rr.Header().Get("Retry-After"))
}

func TestMiddleware_DeniedRequest(t *testing.T) {
	limiter, _ := newTestLimiter(t, 60, 2)
	handler := Middleware(limiter, slog.New(slog.DiscardHandler))(http.HandlerFunc(okHandler))

	for range 2 {
		require.Equal(t, http.StatusOK, serve(handler, "192.168.1.1:12345", nil).Code)
	}
	rr := serve(handler, "192.168.1.1:54321", nil)

	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	retryAfter, err := strconv.Atoi(rr.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.Positive(t, retryAfter)

	var body models.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, "error", body.Error)
	assert.Equal(t, models.ErrorCodeRateLimitExceeded, body.Code)
}

func TestMiddleware_SeparateClients(t *testing.T) {
	limiter, _ := newTestLimiter(t, 60, 1)
	handler := Middleware(limiter, slog.New(slog.DiscardHandler))(http.HandlerFunc(okHandler))

	assert.Equal(t, http.StatusOK, serve(handler, "10.0.0.1:1", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(handler, "10.0.0.1:2", nil).Code)
	assert.Equal(t, http.StatusOK, serve(handler, "10.0.0.2:1", nil).Code)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		expected   string
	}{
		{"remote addr", "192.168.1.1:12345", nil, "192.168.1.1"},
		{"remote addr without port", "192.168.1.1", nil, "192.168.1.1"},
		{"ipv6", "[::1]:8080", nil, "::1"},
		{"x-forwarded-for first hop", "10.0.0.1:1", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "203.0.113.7"},
		{"x-real-ip", "10.0.0.1:1", map[string]string{"X-Real-IP": "203.0.113.9"}, "203.0.113.9"},
		{"empty x-forwarded-for hop", "10.0.0.1:1", map[string]string{"X-Forwarded-For": " , 10.0.0.2"}, "10.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.expected, ClientIP(req))
		})
	}
}
