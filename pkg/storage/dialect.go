package storage

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect covers the SQL differences between the supported databases
type Dialect interface {
	Name() string
	// Placeholder returns the bind marker for the n-th argument, 1-based.
	Placeholder(n int) string
	// IDColumn is the DDL of an auto-incrementing primary key.
	IDColumn() string
}

type postgresDialect struct{}

func (postgresDialect) Name() string             { return "postgres" }
func (postgresDialect) Placeholder(n int) string { return "$" + strconv.Itoa(n) }
func (postgresDialect) IDColumn() string         { return "BIGSERIAL PRIMARY KEY" }

type sqliteDialect struct{}

func (sqliteDialect) Name() string           { return "sqlite3" }
func (sqliteDialect) Placeholder(int) string { return "?" }
func (sqliteDialect) IDColumn() string       { return "INTEGER PRIMARY KEY AUTOINCREMENT" }

var (
	// Postgres is the lib/pq dialect
	Postgres Dialect = postgresDialect{}
	// SQLite is the mattn/go-sqlite3 dialect
	SQLite Dialect = sqliteDialect{}
)

// DialectFor returns the dialect registered under a database/sql driver name
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "postgres", "postgresql", "pq":
		return Postgres, nil
	case "sqlite3", "sqlite":
		return SQLite, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// binder numbers placeholders as arguments are appended
type binder struct {
	dialect Dialect
	args    []interface{}
}

func (b *binder) bind(v interface{}) string {
	b.args = append(b.args, v)
	return b.dialect.Placeholder(len(b.args))
}

// escapeLike escapes LIKE wildcards so the query matches literally
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
