package counter

import (
	"context"
	"fmt"

	"github.com/darkodi/shortlink/internal/repository"
)

// SQL is a counter row in the alias_counters table.
type SQL struct {
	db   *repository.DB
	name string
}

// NewSQL creates the counter row at start unless it already exists. An
// existing row keeps its value, so restarts never rewind the sequence.
func NewSQL(ctx context.Context, db *repository.DB, name string, start int64) (*SQL, error) {
	query := db.Rebind(`
		INSERT INTO alias_counters (name, value) VALUES (?, ?)
		ON CONFLICT (name) DO NOTHING`)

	if _, err := db.ExecContext(ctx, query, name, start); err != nil {
		return nil, fmt.Errorf("seed counter %q: %w", name, err)
	}
	return &SQL{db: db, name: name}, nil
}

// Next increments the row and returns the new value.
func (c *SQL) Next(ctx context.Context) (uint64, error) {
	query := c.db.Rebind(`
		UPDATE alias_counters SET value = value + 1
		WHERE name = ?
		RETURNING value`)

	var value int64
	if err := c.db.QueryRowContext(ctx, query, c.name).Scan(&value); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return uint64(value), nil
}
