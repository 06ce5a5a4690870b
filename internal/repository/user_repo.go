package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/darkodi/shortlink/internal/model"
)

const userColumns = "id, username, email, display_username, tier, created_at, updated_at"

// UserRepository persists user accounts.
type UserRepository struct {
	db  *DB
	now func() time.Time
}

func NewUserRepository(db *DB, opts ...Option) *UserRepository {
	o := buildOptions(opts)
	return &UserRepository{db: db, now: o.now}
}

// Create assigns an ID when user has none, defaults the tier to FREE and the
// display name to the username.
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	now := r.now().UTC()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Tier == "" {
		user.Tier = model.TierFree
	}
	if user.DisplayUsername == "" {
		user.DisplayUsername = user.Username
	}

	query := r.db.Rebind(`
		INSERT INTO users (id, username, email, display_username, tier, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)

	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Username, user.Email, user.DisplayUsername, string(user.Tier), now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateUser
		}
		return fmt.Errorf("insert user: %w", err)
	}

	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	return r.getBy(ctx, "id", id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getBy(ctx, "email", email)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.getBy(ctx, "username", username)
}

// Update applies the non-nil fields of upd and returns the stored user.
func (r *UserRepository) Update(ctx context.Context, id string, upd model.UserUpdate) (*model.User, error) {
	sets := []string{"updated_at = ?"}
	args := []any{r.now().UTC()}
	if upd.DisplayUsername != nil {
		sets = append(sets, "display_username = ?")
		args = append(args, *upd.DisplayUsername)
	}
	if upd.Tier != nil {
		sets = append(sets, "tier = ?")
		args = append(args, string(*upd.Tier))
	}
	args = append(args, id)

	query := r.db.Rebind("UPDATE users SET " + strings.Join(sets, ", ") + " WHERE id = ?")
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	if rowsAffected == 0 {
		return nil, ErrNotFound
	}

	return r.GetByID(ctx, id)
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM users WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepository) getBy(ctx context.Context, column, value string) (*model.User, error) {
	query := r.db.Rebind("SELECT " + userColumns + " FROM users WHERE " + column + " = ?")

	var user model.User
	err := r.db.QueryRowContext(ctx, query, value).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.DisplayUsername,
		&user.Tier,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select user by %s: %w", column, err)
	}
	return &user, nil
}
