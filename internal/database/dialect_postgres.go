package database

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq"

	"dictation/internal/config"
)

// PostgresDialect implements Dialect for PostgreSQL
type PostgresDialect struct{}

// NewPostgresDialect creates a new PostgreSQL dialect
func NewPostgresDialect() *PostgresDialect {
	return &PostgresDialect{}
}

func (d *PostgresDialect) Name() string       { return "postgres" }
func (d *PostgresDialect) DriverName() string { return "postgres" }

// DSN passes the connection URL or keyword string through to lib/pq
func (d *PostgresDialect) DSN(cfg config.DatabaseConfig) string {
	return cfg.URL
}

func (d *PostgresDialect) RewriteQuery(query string) string {
	return numberPlaceholders(query)
}

func (d *PostgresDialect) Prepare(context.Context, *sql.DB) error {
	return nil
}

func (d *PostgresDialect) MigrationsTable() string {
	return `CREATE TABLE IF NOT EXISTS migrations (
		id BIGSERIAL PRIMARY KEY,
		filename TEXT UNIQUE NOT NULL,
		executed_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
	)`
}

func (d *PostgresDialect) Upsert(table, key string, columns ...string) string {
	return onConflictUpsert(table, key, columns)
}
