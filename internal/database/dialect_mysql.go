package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-sql-driver/mysql"

	"dictation/internal/config"
)

// MySQLDialect implements Dialect for MySQL and MariaDB
type MySQLDialect struct{}

// NewMySQLDialect creates a new MySQL dialect
func NewMySQLDialect() *MySQLDialect {
	return &MySQLDialect{}
}

func (d *MySQLDialect) Name() string       { return "mysql" }
func (d *MySQLDialect) DriverName() string { return "mysql" }

// DSN makes the driver scan DATETIME columns into UTC time.Time values.
// An unparsable DSN is returned as is so sql.Open reports the problem.
func (d *MySQLDialect) DSN(cfg config.DatabaseConfig) string {
	dsn, err := mysql.ParseDSN(cfg.URL)
	if err != nil {
		return cfg.URL
	}
	dsn.ParseTime = true
	dsn.Loc = time.UTC
	return dsn.FormatDSN()
}

func (d *MySQLDialect) RewriteQuery(query string) string {
	return query
}

func (d *MySQLDialect) Prepare(context.Context, *sql.DB) error {
	return nil
}

func (d *MySQLDialect) MigrationsTable() string {
	return `CREATE TABLE IF NOT EXISTS migrations (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		filename VARCHAR(255) UNIQUE NOT NULL,
		executed_at DATETIME(6) DEFAULT CURRENT_TIMESTAMP(6)
	)`
}

func (d *MySQLDialect) Upsert(table, key string, columns ...string) string {
	return insertInto(table, columns) +
		" ON DUPLICATE KEY UPDATE " +
		assignments(key, columns, func(c string) string { return "VALUES(" + c + ")" })
}
