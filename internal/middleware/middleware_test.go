package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darkodi/shortlink/internal/apperr"
	"github.com/darkodi/shortlink/internal/auth"
	"github.com/darkodi/shortlink/internal/logger"
	"github.com/darkodi/shortlink/internal/metrics"
	"github.com/darkodi/shortlink/internal/model"
)

func okHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestRequestIDGeneratesAndPropagates(t *testing.T) {
	var seen string
	var hasLogger bool
	h := RequestID(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		hasLogger = logger.FromContext(r.Context(), nil) != nil
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
	assert.True(t, hasLogger)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "upstream-id")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "upstream-id", seen)
	assert.Equal(t, "upstream-id", rec.Header().Get(RequestIDHeader))
}

func TestRecoveryReturns500(t *testing.T) {
	h := Recovery(logger.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestLoggingCapturesStatus(t *testing.T) {
	var captured int
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.WriteHeader(http.StatusOK)
	})
	h := Logging(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := wrapResponseWriter(w)
		inner.ServeHTTP(rw, r)
		captured = rw.status
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, http.StatusTeapot, captured)
}

func TestMetricsUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Metrics)
	r.Get("/metrics-test/{alias}", okHandler)

	before := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/metrics-test/{alias}", "200"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics-test/abc", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics-test/xyz", nil))
	after := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/metrics-test/{alias}", "200"))

	assert.Equal(t, 2.0, after-before)
}

func TestRateLimiterPerIP(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 2, Interval: time.Hour}, logger.Nop())
	t.Cleanup(rl.Stop)

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"))
}

func TestRateLimiterMiddleware(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 1, Interval: time.Hour}, logger.Nop())
	t.Cleanup(rl.Stop)
	h := rl.Middleware()(http.HandlerFunc(okHandler))

	newReq := func() *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.0.2.7:51000"
		return req
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, newReq())
	assert.Equal(t, http.StatusOK, rec.Code)

	before := testutil.ToFloat64(metrics.RateLimitRejections)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, newReq())
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RateLimitRejections)-before)
}

func TestRateLimiterEvictsIdleClients(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 1, Interval: time.Second}, logger.Nop())
	t.Cleanup(rl.Stop)

	rl.Allow("10.0.0.1")
	rl.evictIdle(time.Now().Add(time.Minute))

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Empty(t, rl.clients)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, "203.0.113.9:1234", "203.0.113.9"},
		{"forwarded first hop", map[string]string{"X-Forwarded-For": "198.51.100.1, 10.0.0.1"}, "10.0.0.2:80", "198.51.100.1"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.2"}, "10.0.0.2:80", "198.51.100.2"},
		{"ipv6", nil, "[2001:db8::1]:443", "2001:db8::1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientIP(req))
		})
	}
}

type verifierFunc func(ctx context.Context, token string) (*auth.Identity, error)

func (f verifierFunc) Verify(ctx context.Context, token string) (*auth.Identity, error) {
	return f(ctx, token)
}

type quotaFunc func(ctx context.Context, email string) error

func (f quotaFunc) CheckQuota(ctx context.Context, email string) error { return f(ctx, email) }

func TestAuthenticate(t *testing.T) {
	verifier := verifierFunc(func(_ context.Context, token string) (*auth.Identity, error) {
		if token != "good" {
			return nil, apperr.Unauthorized("Invalid or expired token")
		}
		return &auth.Identity{UserID: "u1", Email: "a@example.com", Tier: model.TierFree}, nil
	})

	var got *auth.Identity
	h := Authenticate(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = auth.FromContext(r.Context())
	}))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", http.StatusUnauthorized},
		{"bad token", "Bearer bad", http.StatusUnauthorized},
		{"ok", "Bearer good", http.StatusOK},
		{"ok lowercase scheme", "bearer good", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got = nil
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				require.NotNil(t, got)
				assert.Equal(t, "a@example.com", got.Email)
			} else {
				assert.Nil(t, got)
			}
		})
	}
}

func TestTierQuota(t *testing.T) {
	checker := quotaFunc(func(_ context.Context, email string) error {
		if email == "full@example.com" {
			return apperr.TooManyRequests("Tier Limit Reached: You have reached your monthly limit")
		}
		return nil
	})
	h := TierQuota(checker, logger.Nop())(http.HandlerFunc(okHandler))

	serve := func(id *auth.Identity) int {
		req := httptest.NewRequest(http.MethodPost, "/url", nil)
		if id != nil {
			req = req.WithContext(auth.NewContext(req.Context(), id))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, serve(nil))
	assert.Equal(t, http.StatusOK, serve(&auth.Identity{Email: "ok@example.com"}))
	assert.Equal(t, http.StatusTooManyRequests, serve(&auth.Identity{Email: "full@example.com"}))
}
