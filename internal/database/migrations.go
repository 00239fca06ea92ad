package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"go.uber.org/zap"

	"dictation/internal/logging"
)

//go:embed migrations
var embeddedMigrations embed.FS

// Migrations returns the bundled migrations for the dialect
func (db *DB) Migrations() (fs.FS, error) {
	return fs.Sub(embeddedMigrations, path.Join("migrations", db.Dialect.Name()))
}

// Migrate applies the bundled migrations
func (db *DB) Migrate(ctx context.Context, logger *zap.Logger) error {
	migrations, err := db.Migrations()
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}
	return db.RunMigrations(ctx, migrations, logger)
}

// RunMigrations executes all *.sql files of migrations in name order,
// skipping those already recorded in the migrations table
func (db *DB) RunMigrations(ctx context.Context, migrations fs.FS, logger *zap.Logger) error {
	logger = logging.OrNop(logger)

	if _, err := db.ExecContext(ctx, db.Dialect.MigrationsTable()); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	files, err := fs.Glob(migrations, "*.sql")
	if err != nil {
		return fmt.Errorf("failed to read migration files: %w", err)
	}
	sort.Strings(files)

	for _, filename := range files {
		hasRun, err := db.hasMigrationRun(ctx, filename)
		if err != nil {
			return fmt.Errorf("failed to check migration status: %w", err)
		}
		if hasRun {
			continue
		}

		content, err := fs.ReadFile(migrations, filename)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", filename, err)
		}

		err = db.InTx(ctx, func(tx *Tx) error {
			for _, stmt := range splitStatements(string(content)) {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return err
				}
			}
			_, err := tx.ExecContext(ctx, "INSERT INTO migrations (filename) VALUES (?)", filename)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", filename, err)
		}

		logger.Info("migration completed", zap.String("file", filename))
	}

	return nil
}

func (db *DB) hasMigrationRun(ctx context.Context, filename string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM migrations WHERE filename = ?", filename).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// splitStatements breaks a migration into statements at semicolons ending a
// line. MySQL rejects multi-statement Exec calls by default.
func splitStatements(content string) []string {
	var (
		stmts []string
		cur   strings.Builder
	)
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		cur.WriteString(line)
		cur.WriteString("\n")
		if strings.HasSuffix(trimmed, ";") {
			stmts = append(stmts, strings.TrimSpace(cur.String()))
			cur.Reset()
		}
	}
	if rest := strings.TrimSpace(cur.String()); rest != "" {
		stmts = append(stmts, rest)
	}
	return stmts
}
