package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/darkodi/shortlink/internal/apperr"
	"github.com/darkodi/shortlink/internal/logger"
	"github.com/darkodi/shortlink/internal/model"
	"github.com/darkodi/shortlink/internal/repository"
)

// UserStore persists user accounts. repository.UserRepository implements it.
type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	Update(ctx context.Context, id string, upd model.UserUpdate) (*model.User, error)
	Delete(ctx context.Context, id string) error
}

// UserService manages user profiles.
type UserService struct {
	users UserStore
	log   *logger.Logger
}

func NewUserService(users UserStore, log *logger.Logger) *UserService {
	if log == nil {
		log = logger.Nop()
	}
	return &UserService{users: users, log: log}
}

// CreateUser stores a new FREE-tier user. Email and username are
// case-insensitive and must both be unused.
func (s *UserService) CreateUser(ctx context.Context, username, email string) (*model.User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	email = normalizeEmail(email)

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperr.Conflict("Email already exists")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Internal(fmt.Errorf("check email: %w", err))
	}
	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return nil, apperr.Conflict("Username already exists")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Internal(fmt.Errorf("check username: %w", err))
	}

	user := &model.User{Username: username, Email: email, Tier: model.TierFree}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			return nil, apperr.Conflict("User already exists")
		}
		return nil, apperr.Internal(fmt.Errorf("create user: %w", err))
	}

	logger.FromContext(ctx, s.log).Info("user created", "user_id", user.ID)
	return user, nil
}

// GetUserByEmail satisfies UserDirectory with apperr semantics.
func (s *UserService) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound(MsgUserNotFound)
	}
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("get user: %w", err))
	}
	return user, nil
}

// UpdateUser applies upd to the user identified by email.
func (s *UserService) UpdateUser(ctx context.Context, email string, upd model.UserUpdate) (*model.User, error) {
	user, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	updated, err := s.users.Update(ctx, user.ID, upd)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound(MsgUserNotFound)
	}
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("update user: %w", err))
	}
	return updated, nil
}

// DeleteUser removes a user. It undoes CreateUser when identity
// registration fails afterwards.
func (s *UserService) DeleteUser(ctx context.Context, id string) error {
	err := s.users.Delete(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound(MsgUserNotFound)
	}
	if err != nil {
		return apperr.Internal(fmt.Errorf("delete user: %w", err))
	}
	return nil
}
