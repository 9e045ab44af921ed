package dialect

import (
	"fmt"
	"strconv"
	"strings"
)

type Dialect string

const (
	SQLite     Dialect = "sqlite"
	PostgreSQL Dialect = "postgres"
)

// sqlitePragmas are applied to every connection opened through DSN.
const sqlitePragmas = "_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on"

func (d Dialect) Validate() error {
	switch d {
	case SQLite, PostgreSQL:
		return nil
	default:
		return fmt.Errorf("unsupported dialect: %s", d)
	}
}

func (d Dialect) String() string {
	return string(d)
}

// Driver returns the database/sql driver name registered for the dialect.
func (d Dialect) Driver() string {
	switch d {
	case SQLite:
		return "sqlite3"
	case PostgreSQL:
		return "pgx"
	default:
		return ""
	}
}

// DSN turns a connection string from the config into the data source name passed to sql.Open.
func (d Dialect) DSN(connStr string) string {
	if d != SQLite || strings.Contains(connStr, "?") {
		return connStr
	}

	return "file:" + connStr + "?" + sqlitePragmas
}

// Rebind rewrites '?' placeholders into the dialect's native form. Queries are written with '?'.
func (d Dialect) Rebind(query string) string {
	if d != PostgreSQL {
		return query
	}

	var (
		b strings.Builder
		n int
	)

	b.Grow(len(query) + 8)

	for i := range len(query) {
		if query[i] != '?' {
			b.WriteByte(query[i])
			continue
		}

		n++

		b.WriteByte('$')
		b.WriteString(strconv.Itoa(n))
	}

	return b.String()
}
