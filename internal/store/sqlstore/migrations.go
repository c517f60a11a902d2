package sqlstore

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/mysql/*.sql migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationFS embed.FS

// Migrate creates the ledger schema on a rehearsal or development database.
// It uses embedded SQL files from migrations/<dialect>.
func Migrate(db *sql.DB, dialect Dialect) error {
	if err := dialect.Validate(); err != nil {
		return err
	}

	source, err := iofs.New(migrationFS, "migrations/"+string(dialect))
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	var driver database.Driver
	switch dialect {
	case MySQL:
		driver, err = mysql.WithInstance(db, &mysql.Config{MultiStatementEnabled: true})
	case Postgres:
		driver, err = postgres.WithInstance(db, &postgres.Config{})
	case SQLite:
		driver, err = sqlite.WithInstance(db, &sqlite.Config{})
	}
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, string(dialect), driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}

	return nil
}
