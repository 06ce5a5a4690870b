package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/darkodi/shortlink/internal/apperr"
	"github.com/darkodi/shortlink/internal/logger"
	"github.com/darkodi/shortlink/internal/metrics"
)

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*client
	limit   rate.Limit
	burst   int
	cleanup time.Duration
	log     *logger.Logger

	stop     chan struct{}
	stopOnce sync.Once
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiterConfig holds rate limiter settings
type RateLimiterConfig struct {
	Rate     int           // Requests per interval
	Burst    int           // Max burst size
	Interval time.Duration // Token refill interval
	Cleanup  time.Duration // Idle clients older than this are dropped
}

// DefaultRateLimiterConfig returns sensible defaults
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		Rate:     10,
		Burst:    20,
		Interval: time.Second,
		Cleanup:  5 * time.Minute,
	}
}

// NewRateLimiter creates a rate limiter and starts its cleanup loop. Call
// Stop to end the loop.
func NewRateLimiter(cfg RateLimiterConfig, log *logger.Logger) *RateLimiter {
	if log == nil {
		log = logger.Nop()
	}
	rl := &RateLimiter{
		clients: make(map[string]*client),
		limit:   rate.Limit(float64(cfg.Rate) / cfg.Interval.Seconds()),
		burst:   cfg.Burst,
		cleanup: cfg.Cleanup,
		log:     log,
		stop:    make(chan struct{}),
	}

	if rl.cleanup > 0 {
		go rl.cleanupLoop()
	}
	return rl
}

// Allow checks if a request from the given IP is allowed
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	c, ok := rl.clients[ip]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[ip] = c
	}
	c.lastSeen = time.Now()
	rl.mu.Unlock()

	return c.limiter.Allow()
}

// Stop ends the cleanup loop.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanup)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.evictIdle(time.Now().Add(-rl.cleanup))
		}
	}
}

func (rl *RateLimiter) evictIdle(cutoff time.Time) {
	rl.mu.Lock()
	for ip, c := range rl.clients {
		if c.lastSeen.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
	count := len(rl.clients)
	rl.mu.Unlock()

	rl.log.Debug("rate limiter cleanup", "active_clients", count)
}

// Middleware returns the rate limiting middleware
func (rl *RateLimiter) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)

			if !rl.Allow(ip) {
				metrics.RateLimitRejections.Inc()
				logger.FromContext(r.Context(), rl.log).Warn("rate limit exceeded",
					"ip", ip,
					"path", r.URL.Path,
				)
				apperr.TooManyRequests("Rate limit exceeded").WriteJSON(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP extracts the client IP from the request
func clientIP(r *http.Request) string {
	// First hop of X-Forwarded-For when behind a proxy
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
