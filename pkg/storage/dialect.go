package storage

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Dialect captures the SQL differences between the supported databases.
// Queries are written with ? placeholders and rebound per dialect.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// sqliteTimeFormat is fixed width so stored values compare lexically in time order
const sqliteTimeFormat = "2006-01-02 15:04:05.000000000+00:00"

// DialectFor maps a driver name to its dialect
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case DriverPostgres:
		return Postgres, nil
	case DriverSQLite:
		return SQLite, nil
	default:
		return "", fmt.Errorf("no SQL dialect for driver %q", driver)
	}
}

// DriverName is the database/sql driver registered for the dialect
func (d Dialect) DriverName() string {
	if d == SQLite {
		return sqliteDriverName
	}
	return "postgres"
}

// Rebind rewrites ? placeholders to $1..$n for postgres. Quoted literals are left alone.
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for _, r := range query {
		switch {
		case r == '\'':
			inQuote = !inQuote
			b.WriteRune(r)
		case r == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ContainsFold returns a case-insensitive LIKE predicate on column with one
// placeholder. Bind it with LikeContains.
func (d Dialect) ContainsFold(column string) string {
	if d == Postgres {
		return column + ` ILIKE ? ESCAPE '\'`
	}
	return "go_lower(" + column + `) LIKE go_lower(?) ESCAPE '\'`
}

// Time converts t to the value bound for timestamp columns. Everything is stored in UTC.
func (d Dialect) Time(t time.Time) interface{} {
	if d == SQLite {
		return t.UTC().Format(sqliteTimeFormat)
	}
	return t.UTC()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// LikeContains escapes LIKE wildcards in s and wraps it for substring matching
func LikeContains(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
