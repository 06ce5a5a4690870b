// Package auth issues and verifies access tokens. The identity provider is
// chosen at startup: "local" keeps bcrypt password hashes in the database
// and signs HS256 tokens, "hosted" only verifies RS256 tokens minted by an
// external identity provider.
package auth

import (
	"context"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"

	"github.com/darkodi/shortlink/internal/config"
	"github.com/darkodi/shortlink/internal/model"
)

// Identity is the authenticated caller extracted from a token.
type Identity struct {
	UserID string
	Email  string
	Tier   model.Tier
}

// Tokens is the result of a successful login.
type Tokens struct {
	AccessToken string
	ExpiresIn   int64 // seconds
}

// Attributes are the identity attributes mirrored into the provider.
type Attributes struct {
	Tier model.Tier
}

// Provider is an identity provider.
type Provider interface {
	// Register creates credentials for an already stored user and returns a
	// message for the client.
	Register(ctx context.Context, user *model.User, password string) (string, error)
	Login(ctx context.Context, email, password string) (*Tokens, error)
	VerifyToken(ctx context.Context, token string) (*Identity, error)
	UpdateAttributes(ctx context.Context, id *Identity, attrs Attributes) error
}

// Claims is the token payload shared by both providers.
type Claims struct {
	UserID string     `json:"uid,omitempty"`
	Email  string     `json:"email"`
	Tier   model.Tier `json:"tier,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) identity() *Identity {
	id := &Identity{UserID: c.UserID, Email: c.Email, Tier: c.Tier}
	if id.UserID == "" {
		id.UserID = c.Subject
	}
	return id
}

// NewProvider builds the provider named by cfg.Provider.
func NewProvider(cfg *config.AuthConfig, creds CredentialStore, users UserLookup) (Provider, error) {
	switch cfg.Provider {
	case "local":
		return NewLocal(creds, users, []byte(cfg.JWTSecret), cfg.TokenTTL), nil
	case "hosted":
		pem, err := os.ReadFile(cfg.HostedPublicKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read hosted public key: %w", err)
		}
		return NewHosted(pem, cfg.HostedIssuer)
	default:
		return nil, fmt.Errorf("unknown auth provider %q", cfg.Provider)
	}
}

type identityKey struct{}

// NewContext returns a copy of ctx carrying id.
func NewContext(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity stored by NewContext.
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*Identity)
	return id, ok && id != nil
}
