package orm

import (
	"fmt"
	"strings"
)

// Dialect abstracts SQL differences between database engines.
type Dialect interface {
	// Placeholder returns the bind parameter placeholder for the given
	// 1-based index. MySQL and SQLite return "?" regardless of index;
	// PostgreSQL returns "$1", "$2", etc.
	Placeholder(index int) string

	// QuoteIdent quotes an identifier (table name, column name). The
	// Generic dialect returns the name untouched.
	QuoteIdent(name string) string
}

// Generic is the Dialect that emits "?" placeholders and bare identifiers.
// Generated statements read exactly like "SELECT * FROM Order WHERE id=?".
var Generic Dialect = genericDialect{}

// MySQL is the Dialect for MySQL / MariaDB.
var MySQL Dialect = mysqlDialect{}

// PostgreSQL is the Dialect for PostgreSQL.
var PostgreSQL Dialect = postgresDialect{}

// SQLite is the Dialect for SQLite.
var SQLite Dialect = sqliteDialect{}

type genericDialect struct{}

func (genericDialect) Placeholder(_ int) string      { return "?" }
func (genericDialect) QuoteIdent(name string) string { return name }

type mysqlDialect struct{}

func (mysqlDialect) Placeholder(_ int) string      { return "?" }
func (mysqlDialect) QuoteIdent(name string) string { return "`" + name + "`" }

type postgresDialect struct{}

func (postgresDialect) Placeholder(index int) string  { return fmt.Sprintf("$%d", index) }
func (postgresDialect) QuoteIdent(name string) string { return `"` + name + `"` }

type sqliteDialect struct{}

func (sqliteDialect) Placeholder(_ int) string      { return "?" }
func (sqliteDialect) QuoteIdent(name string) string { return `"` + name + `"` }

// rewritePlaceholders converts ? to dialect-specific placeholders ($1, $2, …).
func rewritePlaceholders(d Dialect, query string) string {
	if d.Placeholder(1) == "?" {
		return query
	}
	var b strings.Builder
	b.Grow(len(query))
	idx := 1
	for i := range len(query) {
		if query[i] == '?' {
			b.WriteString(d.Placeholder(idx))
			idx++
		} else {
			b.WriteByte(query[i])
		}
	}
	return b.String()
}
