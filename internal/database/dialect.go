package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"dictation/internal/config"
)

// Dialect hides the differences between the supported SQL backends.
// Queries throughout the repository are written with ? placeholders.
type Dialect interface {
	// Name identifies the backend and names its migrations directory
	Name() string

	// DriverName returns the driver name for sql.Open
	DriverName() string

	// DSN builds the data source name from configuration
	DSN(cfg config.DatabaseConfig) string

	// RewriteQuery converts ? placeholders where the driver needs another syntax
	RewriteQuery(query string) string

	// Prepare runs backend-specific setup on a freshly opened pool
	Prepare(ctx context.Context, db *sql.DB) error

	// MigrationsTable returns the DDL of the table recording applied migrations
	MigrationsTable() string

	// Upsert builds an insert into table that overwrites every non-key
	// column when a row with the same key already exists. Arguments are
	// bound in columns order.
	Upsert(table, key string, columns ...string) string
}

// numberPlaceholders converts ? to $1, $2, ... leaving quoted literals alone
func numberPlaceholders(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)

	n := 0
	quoted := false
	for _, r := range query {
		switch {
		case r == '\'':
			quoted = !quoted
		case r == '?' && !quoted:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func insertInto(table string, columns []string) string {
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(columns, ", "), marks)
}

// assignments renders "col = <incoming value>" for every column but key
func assignments(key string, columns []string, incoming func(column string) string) string {
	sets := make([]string, 0, len(columns))
	for _, column := range columns {
		if column == key {
			continue
		}
		sets = append(sets, column+" = "+incoming(column))
	}
	return strings.Join(sets, ", ")
}

// onConflictUpsert is the upsert shared by SQLite and PostgreSQL
func onConflictUpsert(table, key string, columns []string) string {
	return insertInto(table, columns) +
		" ON CONFLICT (" + key + ") DO UPDATE SET " +
		assignments(key, columns, func(c string) string { return "excluded." + c })
}
