// Package migrations holds the embedded schema for each supported SQL dialect.
package migrations

import (
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed sqlite/*.sql postgres/*.sql
var migrationsFS embed.FS

// Source returns the migration source for a database/sql driver name.
func Source(driver string) (source.Driver, error) {
	var dir string
	switch driver {
	case "sqlite3":
		dir = "sqlite"
	case "postgres":
		dir = "postgres"
	default:
		return nil, fmt.Errorf("no migrations for driver %q", driver)
	}

	src, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return nil, fmt.Errorf("open migration source: %w", err)
	}
	return src, nil
}
