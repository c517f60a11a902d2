package store

import (
	"context"
	"database/sql"
	"errors"
)

// ErrNotFound is returned by point reads that match no row.
var ErrNotFound = errors.New("not found")

// DBTransaction defines the methods shared by *sql.DB, *sql.Conn and *sql.Tx.
// Repository methods run against whichever one the caller holds.
type DBTransaction interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// RuleStore reads the active rule definitions. Rules are read fresh on every call.
type RuleStore interface {
	// GraderRules returns the active assignment rules joined with their program names.
	GraderRules(ctx context.Context) ([]GraderRule, error)

	// CourseRules returns every course rule.
	CourseRules(ctx context.Context) ([]CourseRule, error)
}

// Ledger is the set of point queries the reconciliation engine runs against faculty_program.
type Ledger interface {
	// UserIDByEmail returns the internal user id for a normalized (lowercase) email.
	// It returns ErrNotFound when no user matches.
	UserIDByEmail(ctx context.Context, email string) (int64, error)

	// CountCompletions returns how many ledger rows exist for the pair.
	CountCompletions(ctx context.Context, userID, programID int64) (int64, error)

	// InsertCompletion writes one ledger row. Each call commits on its own.
	InsertCompletion(ctx context.Context, c Completion) error
}

// Session is a ledger connection scoped to one run.
type Session interface {
	RuleStore
	Ledger
	Close() error
}

// SessionFactory hands out run-scoped sessions.
type SessionFactory interface {
	Session(ctx context.Context) (Session, error)
}
