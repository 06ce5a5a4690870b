package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/darkodi/shortlink/internal/model"
)

// CredentialRepository stores password hashes for the local identity provider.
type CredentialRepository struct {
	db  *DB
	now func() time.Time
}

func NewCredentialRepository(db *DB, opts ...Option) *CredentialRepository {
	o := buildOptions(opts)
	return &CredentialRepository{db: db, now: o.now}
}

func (r *CredentialRepository) Create(ctx context.Context, cred *model.Credential) error {
	now := r.now().UTC()

	query := r.db.Rebind(`
		INSERT INTO credentials (user_id, email, password_hash, created_at)
		VALUES (?, ?, ?, ?)`)

	if _, err := r.db.ExecContext(ctx, query, cred.UserID, cred.Email, cred.PasswordHash, now); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateUser
		}
		return fmt.Errorf("insert credential: %w", err)
	}
	cred.CreatedAt = now
	return nil
}

func (r *CredentialRepository) GetByEmail(ctx context.Context, email string) (*model.Credential, error) {
	query := r.db.Rebind(`
		SELECT user_id, email, password_hash, created_at
		FROM credentials WHERE email = ?`)

	var cred model.Credential
	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&cred.UserID, &cred.Email, &cred.PasswordHash, &cred.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select credential: %w", err)
	}
	return &cred, nil
}
