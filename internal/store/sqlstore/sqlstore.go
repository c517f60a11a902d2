// Package sqlstore implements the store interfaces on database/sql.
// MySQL is the production ledger; PostgreSQL and SQLite are supported for rehearsal databases.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"ledgersync/internal/store"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Store owns the connection pool. Ledger work goes through a Session.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// Open connects to the ledger database and verifies the connection.
func Open(ctx context.Context, dialect Dialect, dsn string) (*Store, error) {
	if err := dialect.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dialect, err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", dialect, err)
	}

	return &Store{db: db, dialect: dialect}, nil
}

// New wraps an existing pool.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// DB exposes the pool for migrations.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect reports the SQL dialect the store speaks.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Session pins a single connection from the pool for the caller's run.
// The connection goes back to the pool when the session is closed.
func (s *Store) Session(ctx context.Context) (store.Session, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	return &Session{exec: conn, release: conn.Close, dialect: s.dialect}, nil
}
