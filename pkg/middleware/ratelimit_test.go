package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func rateLimitLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func limitedHandler(rps float64, burst int) http.Handler {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return RateLimit(rps, burst, rateLimitLogger())(next)
}

func hit(h http.Handler, remoteAddr string) int {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/send-otp", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestRateLimit_AllowsWithinBurst(t *testing.T) {
	h := limitedHandler(1, 3)

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1234"), "request %d", i)
	}
}

func TestRateLimit_RejectsBeyondBurst(t *testing.T) {
	h := limitedHandler(1, 2)

	require.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1234"))
	require.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1234"))
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "10.0.0.1:1234"))
}

func TestRateLimit_TracksClientsSeparately(t *testing.T) {
	h := limitedHandler(1, 1)

	require.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1234"))
	require.Equal(t, http.StatusTooManyRequests, hit(h, "10.0.0.1:5678"), "same IP, different port")
	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.2:1234"), "a different IP gets its own bucket")
}

func TestRateLimit_HonorsForwardedFor(t *testing.T) {
	h := limitedHandler(1, 1)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// Exhausts the forwarded client's bucket, not the proxy's.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1234"))
}

func TestVisitorStore_EvictsIdleVisitors(t *testing.T) {
	store := newVisitorStore(rate.Limit(1), 1, time.Minute)

	store.limiter("10.0.0.1")
	store.limiter("10.0.0.2")
	require.Equal(t, 2, store.size())

	store.cleanup(time.Now().Add(2 * time.Minute))
	assert.Equal(t, 0, store.size())
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		want       string
	}{
		{name: "remote addr", remoteAddr: "10.0.0.1:1234", want: "10.0.0.1"},
		{name: "forwarded for", remoteAddr: "10.0.0.1:1234", xff: "203.0.113.7", want: "203.0.113.7"},
		{name: "forwarded chain", remoteAddr: "10.0.0.1:1234", xff: "203.0.113.7, 10.0.0.9", want: "203.0.113.7"},
		{name: "real ip", remoteAddr: "10.0.0.1:1234", xri: "203.0.113.8", want: "203.0.113.8"},
		{name: "garbage forwarded for", remoteAddr: "10.0.0.1:1234", xff: "not-an-ip", want: "10.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			assert.Equal(t, tt.want, clientIP(req))
		})
	}
}
