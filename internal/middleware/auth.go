package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/darkodi/shortlink/internal/apperr"
	"github.com/darkodi/shortlink/internal/auth"
	"github.com/darkodi/shortlink/internal/logger"
)

// TokenVerifier turns a bearer token into an identity.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*auth.Identity, error)
}

// QuotaChecker rejects callers that reached their monthly creation limit.
type QuotaChecker interface {
	CheckQuota(ctx context.Context, email string) error
}

// Authenticate requires a valid "Authorization: Bearer <token>" header and
// stores the caller's identity in the request context.
func Authenticate(verifier TokenVerifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				apperr.Unauthorized("Missing bearer token").WriteJSON(w)
				return
			}

			id, err := verifier.Verify(r.Context(), strings.TrimSpace(token))
			if err != nil {
				apperr.From(err).WriteJSON(w)
				return
			}

			ctx := auth.NewContext(r.Context(), id)
			if l := logger.FromContext(ctx, nil); l != nil {
				ctx = logger.NewContext(ctx, l.With("user_id", id.UserID))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TierQuota rejects the request with 429 once the authenticated caller has
// used up the current month's allowance. It must run after Authenticate.
func TierQuota(checker QuotaChecker, log *logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := auth.FromContext(r.Context())
			if !ok {
				apperr.Unauthorized("Missing bearer token").WriteJSON(w)
				return
			}

			if err := checker.CheckQuota(r.Context(), id.Email); err != nil {
				appErr := apperr.From(err)
				if appErr.Kind == apperr.KindInternal {
					logger.FromContext(r.Context(), log).Error("quota check failed", "error", err)
				}
				appErr.WriteJSON(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
