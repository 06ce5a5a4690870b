package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/darkodi/shortlink/internal/apperr"
	"github.com/darkodi/shortlink/internal/model"
	"github.com/darkodi/shortlink/internal/repository"
)

// CredentialStore persists password hashes.
type CredentialStore interface {
	Create(ctx context.Context, cred *model.Credential) error
	GetByEmail(ctx context.Context, email string) (*model.Credential, error)
}

// UserLookup resolves the current tier at login.
type UserLookup interface {
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

// Local stores bcrypt hashes and signs HS256 tokens.
type Local struct {
	creds  CredentialStore
	users  UserLookup
	secret []byte
	ttl    time.Duration
	cost   int
	now    func() time.Time
}

// LocalOption configures Local.
type LocalOption func(*Local)

// WithBcryptCost overrides bcrypt.DefaultCost.
func WithBcryptCost(cost int) LocalOption {
	return func(l *Local) { l.cost = cost }
}

// WithClock overrides the clock used to issue and check tokens.
func WithClock(now func() time.Time) LocalOption {
	return func(l *Local) { l.now = now }
}

func NewLocal(creds CredentialStore, users UserLookup, secret []byte, ttl time.Duration, opts ...LocalOption) *Local {
	l := &Local{
		creds:  creds,
		users:  users,
		secret: secret,
		ttl:    ttl,
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Local) Register(ctx context.Context, user *model.User, password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), l.cost)
	if err != nil {
		return "", apperr.BadRequest("Password cannot be used").WithDetails(err.Error())
	}

	cred := &model.Credential{UserID: user.ID, Email: user.Email, PasswordHash: string(hash)}
	if err := l.creds.Create(ctx, cred); err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			return "", apperr.Conflict("Email already exists")
		}
		return "", apperr.Internal(fmt.Errorf("store credential: %w", err))
	}
	return "User registered successfully", nil
}

func (l *Local) Login(ctx context.Context, email, password string) (*Tokens, error) {
	cred, err := l.creds.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("User not found")
	}
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("load credential: %w", err))
	}

	if bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)) != nil {
		return nil, apperr.Unauthorized("Invalid password")
	}

	tier := model.TierFree
	if user, err := l.users.GetByEmail(ctx, email); err == nil {
		tier = user.Tier
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Internal(fmt.Errorf("load user: %w", err))
	}

	token, err := l.issue(cred.UserID, cred.Email, tier)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &Tokens{AccessToken: token, ExpiresIn: int64(l.ttl / time.Second)}, nil
}

func (l *Local) VerifyToken(_ context.Context, token string) (*Identity, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return l.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(l.now),
	)
	if err != nil {
		return nil, apperr.Unauthorized("Invalid or expired token").WithDetails(err.Error())
	}
	if claims.Email == "" {
		return nil, apperr.Unauthorized("Invalid or expired token")
	}
	return claims.identity(), nil
}

// UpdateAttributes is a no-op: local tokens pick up the stored tier at the
// next login.
func (l *Local) UpdateAttributes(context.Context, *Identity, Attributes) error {
	return nil
}

func (l *Local) issue(userID, email string, tier model.Tier) (string, error) {
	now := l.now()
	claims := &Claims{
		UserID: userID,
		Email:  email,
		Tier:   tier,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(l.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(l.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
