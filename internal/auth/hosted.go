package auth

import (
	"context"
	"crypto/rsa"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/darkodi/shortlink/internal/apperr"
	"github.com/darkodi/shortlink/internal/model"
)

// Hosted verifies RS256 tokens issued by an external identity provider.
// Sign-up and login happen at that provider.
type Hosted struct {
	key    *rsa.PublicKey
	issuer string
}

// NewHosted parses a PEM-encoded RSA public key. An empty issuer disables
// the iss check.
func NewHosted(publicKeyPEM []byte, issuer string) (*Hosted, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse hosted public key: %w", err)
	}
	return &Hosted{key: key, issuer: issuer}, nil
}

func (h *Hosted) Register(context.Context, *model.User, string) (string, error) {
	return "", apperr.BadRequest("Registration is handled by the identity provider")
}

func (h *Hosted) Login(context.Context, string, string) (*Tokens, error) {
	return nil, apperr.BadRequest("Login is handled by the identity provider")
}

func (h *Hosted) VerifyToken(_ context.Context, token string) (*Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if h.issuer != "" {
		opts = append(opts, jwt.WithIssuer(h.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return h.key, nil
	}, opts...)
	if err != nil {
		return nil, apperr.Unauthorized("Invalid or expired token").WithDetails(err.Error())
	}
	if claims.Email == "" {
		return nil, apperr.Unauthorized("Token has no email claim")
	}
	return claims.identity(), nil
}

// UpdateAttributes accepts the change; the user directory is authoritative
// for tiers.
func (h *Hosted) UpdateAttributes(context.Context, *Identity, Attributes) error {
	return nil
}
