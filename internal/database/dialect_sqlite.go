package database

import (
	"context"
	"database/sql"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"dictation/internal/config"
)

// sqliteBusyTimeout is how long a writer waits for the file lock, in ms
const sqliteBusyTimeout = "5000"

// SQLiteDialect implements Dialect for SQLite files
type SQLiteDialect struct{}

// NewSQLiteDialect creates a new SQLite dialect
func NewSQLiteDialect() *SQLiteDialect {
	return &SQLiteDialect{}
}

func (d *SQLiteDialect) Name() string       { return "sqlite" }
func (d *SQLiteDialect) DriverName() string { return "sqlite3" }

// DSN adds a busy timeout unless the path already carries options
func (d *SQLiteDialect) DSN(cfg config.DatabaseConfig) string {
	if strings.Contains(cfg.Path, "?") {
		return cfg.Path
	}
	return cfg.Path + "?_busy_timeout=" + sqliteBusyTimeout
}

func (d *SQLiteDialect) RewriteQuery(query string) string {
	return query
}

// Prepare switches the file to WAL so report intake does not block
// preference reads
func (d *SQLiteDialect) Prepare(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL")
	return err
}

func (d *SQLiteDialect) MigrationsTable() string {
	return `CREATE TABLE IF NOT EXISTS migrations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		filename TEXT UNIQUE NOT NULL,
		executed_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`
}

func (d *SQLiteDialect) Upsert(table, key string, columns ...string) string {
	return onConflictUpsert(table, key, columns)
}
