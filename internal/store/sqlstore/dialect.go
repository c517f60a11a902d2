package sqlstore

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect selects the database/sql driver and placeholder style.
type Dialect string

const (
	MySQL    Dialect = "mysql"
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// Validate rejects dialects the store has no driver for.
func (d Dialect) Validate() error {
	switch d {
	case MySQL, Postgres, SQLite:
		return nil
	default:
		return fmt.Errorf("unsupported database driver %q", string(d))
	}
}

// DriverName is the name the driver registers with database/sql.
func (d Dialect) DriverName() string {
	return string(d)
}

// Rebind rewrites '?' placeholders into the dialect's bind style.
// Queries are written with '?' and never contain a literal question mark.
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
