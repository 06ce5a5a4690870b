package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/darkodi/shortlink/internal/config"
	"github.com/darkodi/shortlink/internal/logger"
	"github.com/darkodi/shortlink/internal/repository/migrations"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicateAlias = errors.New("alias already exists")
	ErrDuplicateUser  = errors.New("user already exists")
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// DB is a database handle that knows its SQL dialect.
type DB struct {
	*sql.DB
	driver string
}

// Open connects to the configured database and verifies the connection.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (*DB, error) {
	sqlDB, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}

	switch cfg.Driver {
	case DriverSQLite:
		// SQLite serializes writers, and every ":memory:" connection is a
		// separate database.
		sqlDB.SetMaxOpenConns(1)
	case DriverPostgres:
		sqlDB.SetMaxOpenConns(50)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
	default:
		sqlDB.Close()
		return nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}

	return &DB{DB: sqlDB, driver: cfg.Driver}, nil
}

// Driver returns the database/sql driver name.
func (db *DB) Driver() string {
	return db.driver
}

// Rebind rewrites '?' placeholders into the dialect's bind syntax.
func (db *DB) Rebind(query string) string {
	if db.driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// Migrate applies every pending schema migration.
func Migrate(ctx context.Context, db *DB, log *logger.Logger) error {
	src, err := migrations.Source(db.driver)
	if err != nil {
		return err
	}
	defer src.Close()

	var (
		driver database.Driver
		conn   *sql.Conn
	)
	switch db.driver {
	case DriverSQLite:
		driver, err = migratesqlite.WithInstance(db.DB, &migratesqlite.Config{})
	case DriverPostgres:
		// A dedicated connection, returned to the pool afterwards.
		// Closing the migrate instance would close the whole pool.
		conn, err = db.Conn(ctx)
		if err != nil {
			return fmt.Errorf("acquire migration connection: %w", err)
		}
		defer conn.Close()
		driver, err = migratepg.WithConnection(ctx, conn, &migratepg.Config{})
	}
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, db.driver, driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read migration version: %w", err)
	}
	log.Info("database migrated", "driver", db.driver, "version", version, "dirty", dirty)
	return nil
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// Option configures a repository.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the clock used for created_at/updated_at.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
