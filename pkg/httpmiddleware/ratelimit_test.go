package httpmiddleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mw := RateLimit(ctx, RateLimitConfig{
		Max:    3,
		Window: time.Minute,
		KeyFunc: func(r *http.Request) string {
			return r.Header.Get("X-Test-Client")
		},
	})
	srv := mw(okHandler())

	do := func(client string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Test-Client", client)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		return rec
	}

	for i := range 3 {
		rec := do("alice")
		assert.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
		assert.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
	}

	rec := do("alice")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"code":429,"message":"rate limit exceeded"}`, rec.Body.String())

	// Keys are independent.
	assert.Equal(t, http.StatusOK, do("bob").Code)
}

func TestRateLimit_SlidingWindow(t *testing.T) {
	rl := &rateLimiter{
		cfg:     RateLimitConfig{Max: 2, Window: time.Minute},
		windows: make(map[string]*window),
	}
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	_, _, allowed := rl.allow("k", start)
	assert.True(t, allowed)
	_, _, allowed = rl.allow("k", start.Add(time.Second))
	assert.True(t, allowed)
	_, _, allowed = rl.allow("k", start.Add(2*time.Second))
	assert.False(t, allowed)

	// Just past the boundary the previous window's weight has decayed enough
	// to let one request through, then counts against the next.
	_, _, allowed = rl.allow("k", start.Add(time.Minute+time.Second))
	assert.True(t, allowed)
	_, _, allowed = rl.allow("k", start.Add(time.Minute+2*time.Second))
	assert.False(t, allowed, "previous window still weighs against the fresh one")

	// Two full windows later the key is effectively clean.
	_, _, allowed = rl.allow("k", start.Add(3*time.Minute))
	assert.True(t, allowed)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "remote addr",
			remoteAddr: "203.0.113.7:51234",
			want:       "203.0.113.7",
		},
		{
			name:       "x-forwarded-for single",
			remoteAddr: "10.0.0.1:80",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.2"},
			want:       "198.51.100.2",
		},
		{
			name:       "x-forwarded-for chain keeps first hop",
			remoteAddr: "10.0.0.1:80",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.2, 10.0.0.3"},
			want:       "198.51.100.2",
		},
		{
			name:       "x-real-ip",
			remoteAddr: "10.0.0.1:80",
			headers:    map[string]string{"X-Real-IP": "192.0.2.9"},
			want:       "192.0.2.9",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientIP(req))
		})
	}
}
