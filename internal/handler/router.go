// Package handler exposes the HTTP API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/darkodi/shortlink/internal/apperr"
	"github.com/darkodi/shortlink/internal/logger"
	"github.com/darkodi/shortlink/internal/middleware"
)

const maxBodyBytes = 1 << 20

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RouterConfig carries everything the router mounts.
type RouterConfig struct {
	URLs        *URLHandler
	Auth        *AuthHandler
	Verifier    middleware.TokenVerifier
	Quota       middleware.QuotaChecker
	RateLimiter *middleware.RateLimiter // nil disables rate limiting
	DB          Pinger                  // nil skips the database health check
	Logger      *logger.Logger
}

// NewRouter configures all HTTP routes
func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(log),
		middleware.Recovery(log),
		middleware.Logging(log),
		middleware.Metrics,
	)
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Middleware())
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		apperr.NotFound("Route not found").WriteJSON(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, apperr.ErrorResponse{Error: &apperr.AppError{
			Code:    "METHOD_NOT_ALLOWED",
			Message: "Method not allowed",
		}})
	})

	r.Get("/health", healthHandler(cfg.DB, log))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	authenticate := middleware.Authenticate(cfg.Verifier)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", cfg.Auth.HandleRegister)
		r.Post("/login", cfg.Auth.HandleLogin)
		r.With(authenticate).Put("/tier", cfg.Auth.HandleUpdateTier)
	})

	r.Route("/users", func(r chi.Router) {
		r.Use(authenticate)
		r.Get("/me", cfg.Auth.HandleMe)
		r.Patch("/me", cfg.Auth.HandleUpdateMe)
	})

	r.Route("/url", func(r chi.Router) {
		r.Get("/tiers", cfg.URLs.HandleTiers)
		r.With(authenticate).Get("/", cfg.URLs.HandleList)
		r.With(authenticate, middleware.TierQuota(cfg.Quota, log)).Post("/", cfg.URLs.HandleCreate)
	})

	r.Get("/{alias}/stats", cfg.URLs.HandleStats)
	r.Get("/{alias}", cfg.URLs.HandleRedirect)

	return r
}

// healthHandler returns service health status
// GET /health
func healthHandler(db Pinger, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				logger.FromContext(r.Context(), log).Error("health check failed", "error", err)
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	}
}

// ============ HELPERS ============

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes err as JSON. Internal errors are logged with their cause;
// the client only sees the generic message.
func writeError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	appErr := apperr.From(err)
	if appErr.Kind == apperr.KindInternal {
		logger.FromContext(r.Context(), log).Error("request failed",
			"path", r.URL.Path,
			"error", err,
		)
	}
	appErr.WriteJSON(w)
}

// decodeJSON parses the request body into dst and writes the error response
// when that fails.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			apperr.BadRequest("Request body too large").WriteJSON(w)
			return false
		}
		apperr.InvalidJSON(err.Error()).WriteJSON(w)
		return false
	}
	return true
}
