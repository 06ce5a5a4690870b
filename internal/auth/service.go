package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/darkodi/shortlink/internal/apperr"
	"github.com/darkodi/shortlink/internal/logger"
	"github.com/darkodi/shortlink/internal/model"
)

// Accounts is the user directory as seen by the auth flows.
// *service.UserService implements it.
type Accounts interface {
	CreateUser(ctx context.Context, username, email string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateUser(ctx context.Context, email string, upd model.UserUpdate) (*model.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// Service coordinates the user directory with the identity provider.
type Service struct {
	provider Provider
	accounts Accounts
	log      *logger.Logger
}

func NewService(provider Provider, accounts Accounts, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{provider: provider, accounts: accounts, log: log}
}

// Register creates the user, then the provider credentials. The user is
// removed again when the provider refuses.
func (s *Service) Register(ctx context.Context, req model.RegisterRequest) (*model.AuthResponse, error) {
	user, err := s.accounts.CreateUser(ctx, req.Username, req.Email)
	if err != nil {
		return nil, err
	}

	message, err := s.provider.Register(ctx, user, req.Password)
	if err != nil {
		if delErr := s.accounts.DeleteUser(ctx, user.ID); delErr != nil {
			logger.FromContext(ctx, s.log).Error("rollback of user after failed registration",
				"user_id", user.ID, "error", delErr)
		}
		return nil, err
	}

	return &model.AuthResponse{User: user, Message: message}, nil
}

func (s *Service) Login(ctx context.Context, req model.LoginRequest) (*model.AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := s.accounts.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	tokens, err := s.provider.Login(ctx, email, req.Password)
	if err != nil {
		return nil, err
	}

	return &model.AuthResponse{
		User:        user,
		AccessToken: tokens.AccessToken,
		ExpiresIn:   tokens.ExpiresIn,
		Message:     "User login successfully",
	}, nil
}

func (s *Service) Verify(ctx context.Context, token string) (*Identity, error) {
	return s.provider.VerifyToken(ctx, token)
}

// UpdateTier moves the caller to tier. The directory change is reverted if
// the provider rejects the new attributes.
func (s *Service) UpdateTier(ctx context.Context, id *Identity, tier model.Tier) (*model.User, error) {
	if !tier.Valid() {
		return nil, apperr.BadRequest(fmt.Sprintf("Unknown tier %q", tier))
	}

	current, err := s.accounts.GetUserByEmail(ctx, id.Email)
	if err != nil {
		return nil, err
	}
	if current.Tier == tier {
		return nil, apperr.BadRequest("User tier is already the same")
	}

	updated, err := s.accounts.UpdateUser(ctx, id.Email, model.UserUpdate{Tier: &tier})
	if err != nil {
		return nil, err
	}

	if err := s.provider.UpdateAttributes(ctx, id, Attributes{Tier: tier}); err != nil {
		previous := current.Tier
		if _, revertErr := s.accounts.UpdateUser(ctx, id.Email, model.UserUpdate{Tier: &previous}); revertErr != nil {
			logger.FromContext(ctx, s.log).Error("revert of tier after provider failure",
				"user_id", current.ID, "error", revertErr)
		}
		return nil, apperr.Internal(fmt.Errorf("update provider attributes: %w", err))
	}

	logger.FromContext(ctx, s.log).Info("user tier updated",
		"user_id", updated.ID, "from", current.Tier, "to", tier)
	return updated, nil
}
