// Package sqlstore provides a database/sql implementation of the storage.Store interface.
//
// Two dialects are supported: SQLite through the pure Go modernc driver, used by default
// and in every test, and PostgreSQL through lib/pq. Queries are built with squirrel so the
// only per-dialect differences are the placeholder format and the schema.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"  // PostgreSQL driver
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/mmynk/settleup/internal/storage"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	sqlitePragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
)

// Ensure Store implements storage.Store
var _ storage.Store = (*Store)(nil)

// Store implements storage.Store on top of database/sql.
type Store struct {
	db *sql.DB
	sb sq.StatementBuilderType

	// failpoint, when set, is consulted at named steps of multi-statement writes.
	// A non-nil error aborts the write at that step. Only tests set it.
	failpoint func(step string) error
}

// New opens a SQLite database at dbPath, creating parent directories as needed.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	return Open(DriverSQLite, dbPath)
}

// Open connects to the database and runs migrations.
// driver is either "sqlite" or "postgres"; dsn is passed to the driver unchanged,
// except that SQLite DSNs get the foreign_keys and busy_timeout pragmas appended.
func Open(driver, dsn string) (*Store, error) {
	var sb sq.StatementBuilderType
	var schema string
	switch driver {
	case DriverSQLite:
		sb = sq.StatementBuilder.PlaceholderFormat(sq.Question)
		schema = sqliteSchema
		dsn = withPragmas(dsn)
	case DriverPostgres:
		sb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
		schema = postgresSchema
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == DriverSQLite {
		// SQLite allows one writer; a single connection serializes writes instead of
		// surfacing SQLITE_BUSY under concurrent requests.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := runMigrations(db, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{db: db, sb: sb}, nil
}

// Connect opens the store for driver. SQLite database files get their directory created.
func Connect(driver, dsn string) (*Store, error) {
	if driver == DriverSQLite {
		return New(dsn)
	}
	return Open(driver, dsn)
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) fail(step string) error {
	if s.failpoint == nil {
		return nil
	}
	return s.failpoint(step)
}

func withPragmas(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&" + sqlitePragmas
	}
	return dsn + "?" + sqlitePragmas
}

// nullString maps "" to SQL NULL for optional foreign keys.
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
