package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/darkodi/shortlink/internal/model"
)

const urlColumns = "id, alias, target_url, owner_id, is_custom_alias, click_count, last_clicked_at, created_at, updated_at"

// URLRepository persists short URL records.
type URLRepository struct {
	db  *DB
	now func() time.Time
}

func NewURLRepository(db *DB, opts ...Option) *URLRepository {
	o := buildOptions(opts)
	return &URLRepository{db: db, now: o.now}
}

// Create inserts url and fills in its ID and timestamps.
func (r *URLRepository) Create(ctx context.Context, url *model.URL) error {
	now := r.now().UTC()

	query := r.db.Rebind(`
		INSERT INTO urls (alias, target_url, owner_id, is_custom_alias, click_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?)
		RETURNING id`)

	err := r.db.QueryRowContext(ctx, query,
		url.Alias, url.TargetURL, url.OwnerID, url.IsCustomAlias, now, now,
	).Scan(&url.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateAlias
		}
		return fmt.Errorf("insert url: %w", err)
	}

	url.ClickCount = 0
	url.LastClickedAt = nil
	url.CreatedAt = now
	url.UpdatedAt = now
	return nil
}

// FindByAlias returns ErrNotFound when no record uses alias.
func (r *URLRepository) FindByAlias(ctx context.Context, alias string) (*model.URL, error) {
	query := r.db.Rebind("SELECT " + urlColumns + " FROM urls WHERE alias = ?")

	url, err := scanURL(r.db.QueryRowContext(ctx, query, alias))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select url: %w", err)
	}
	return url, nil
}

// FindByFilter lists records newest first.
func (r *URLRepository) FindByFilter(ctx context.Context, filter model.URLFilter, skip, limit int) ([]*model.URL, error) {
	where, args := urlWhere(filter)
	query := "SELECT " + urlColumns + " FROM urls" + where + " ORDER BY created_at DESC, id DESC"
	query, args = withPage(query, args, skip, limit)

	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list urls: %w", err)
	}
	defer rows.Close()

	urls := make([]*model.URL, 0)
	for rows.Next() {
		url, err := scanURL(rows)
		if err != nil {
			return nil, fmt.Errorf("scan url: %w", err)
		}
		urls = append(urls, url)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate urls: %w", err)
	}
	return urls, nil
}

// CountByFilter counts matching records after skipping skip of them, capped
// at limit when limit > 0. Quota checks pass limit = tierLimit+1 so the scan
// stops early.
func (r *URLRepository) CountByFilter(ctx context.Context, filter model.URLFilter, skip, limit int) (int64, error) {
	where, args := urlWhere(filter)

	var query string
	if limit > 0 {
		inner, innerArgs := withPage("SELECT 1 FROM urls"+where, args, skip, limit)
		query, args = "SELECT COUNT(*) FROM ("+inner+") AS page", innerArgs
	} else {
		query = "SELECT COUNT(*) FROM urls" + where
	}

	var count int64
	if err := r.db.QueryRowContext(ctx, r.db.Rebind(query), args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count urls: %w", err)
	}

	if limit <= 0 && skip > 0 {
		count = max(count-int64(skip), 0)
	}
	return count, nil
}

// IncrementClicks adds one click and stamps last_clicked_at in a single
// UPDATE, so concurrent clicks never lose updates.
func (r *URLRepository) IncrementClicks(ctx context.Context, alias string) (*model.URL, error) {
	now := r.now().UTC()

	query := r.db.Rebind(`
		UPDATE urls
		SET click_count = click_count + 1, last_clicked_at = ?, updated_at = ?
		WHERE alias = ?`)

	result, err := r.db.ExecContext(ctx, query, now, now, alias)
	if err != nil {
		return nil, fmt.Errorf("increment clicks: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("increment clicks: %w", err)
	}
	if rowsAffected == 0 {
		return nil, ErrNotFound
	}

	return r.FindByAlias(ctx, alias)
}

// ============================================================
// HELPERS
// ============================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanURL(row rowScanner) (*model.URL, error) {
	var (
		url         model.URL
		lastClicked sql.NullTime
	)
	err := row.Scan(
		&url.ID,
		&url.Alias,
		&url.TargetURL,
		&url.OwnerID,
		&url.IsCustomAlias,
		&url.ClickCount,
		&lastClicked,
		&url.CreatedAt,
		&url.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastClicked.Valid {
		t := lastClicked.Time
		url.LastClickedAt = &t
	}
	return &url, nil
}

func urlWhere(f model.URLFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.OwnerID != "" {
		conds = append(conds, "owner_id = ?")
		args = append(args, f.OwnerID)
	}
	if !f.CreatedFrom.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, f.CreatedFrom.UTC())
	}
	if !f.CreatedBefore.IsZero() {
		conds = append(conds, "created_at < ?")
		args = append(args, f.CreatedBefore.UTC())
	}
	if f.IsCustomAlias != nil {
		conds = append(conds, "is_custom_alias = ?")
		args = append(args, *f.IsCustomAlias)
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func withPage(query string, args []any, skip, limit int) (string, []any) {
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
		if skip > 0 {
			query += " OFFSET ?"
			args = append(args, skip)
		}
	}
	return query, args
}
