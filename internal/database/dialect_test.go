package database

import (
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"

	"dictation/internal/config"
)

func TestDialects(t *testing.T) {
	tests := []struct {
		dialect Dialect
		name    string
		driver  string
	}{
		{dialect: NewSQLiteDialect(), name: "sqlite", driver: "sqlite3"},
		{dialect: NewPostgresDialect(), name: "postgres", driver: "postgres"},
		{dialect: NewMySQLDialect(), name: "mysql", driver: "mysql"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.dialect.Name(); got != tt.name {
				t.Errorf("Name() = %v, want %v", got, tt.name)
			}
			if got := tt.dialect.DriverName(); got != tt.driver {
				t.Errorf("DriverName() = %v, want %v", got, tt.driver)
			}
			if _, err := fs.Stat(embeddedMigrations, "migrations/"+tt.dialect.Name()); err != nil {
				t.Errorf("no migrations for %s: %v", tt.name, err)
			}
		})
	}
}

func TestUpsert(t *testing.T) {
	columns := []string{"client_id", "language", "delay_ms"}
	tests := []struct {
		name     string
		dialect  Dialect
		expected string
	}{
		{
			name:    "SQLite",
			dialect: NewSQLiteDialect(),
			expected: "INSERT INTO preferences (client_id, language, delay_ms) VALUES (?, ?, ?)" +
				" ON CONFLICT (client_id) DO UPDATE SET language = excluded.language, delay_ms = excluded.delay_ms",
		},
		{
			name:    "PostgreSQL",
			dialect: NewPostgresDialect(),
			expected: "INSERT INTO preferences (client_id, language, delay_ms) VALUES (?, ?, ?)" +
				" ON CONFLICT (client_id) DO UPDATE SET language = excluded.language, delay_ms = excluded.delay_ms",
		},
		{
			name:    "MySQL",
			dialect: NewMySQLDialect(),
			expected: "INSERT INTO preferences (client_id, language, delay_ms) VALUES (?, ?, ?)" +
				" ON DUPLICATE KEY UPDATE language = VALUES(language), delay_ms = VALUES(delay_ms)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.dialect.Upsert("preferences", "client_id", columns...); got != tt.expected {
				t.Errorf("Upsert() =\n%s\nwant\n%s", got, tt.expected)
			}
		})
	}
}

func TestDialectFor(t *testing.T) {
	tests := []struct {
		dbType string
		want   string
	}{
		{dbType: "", want: "sqlite3"},
		{dbType: "SQLite", want: "sqlite3"},
		{dbType: "postgresql", want: "postgres"},
		{dbType: "mysql", want: "mysql"},
	}
	for _, tt := range tests {
		d, err := DialectFor(tt.dbType)
		if err != nil {
			t.Fatalf("DialectFor(%q) error: %v", tt.dbType, err)
		}
		if d.DriverName() != tt.want {
			t.Errorf("DialectFor(%q) = %v, want %v", tt.dbType, d.DriverName(), tt.want)
		}
	}

	if _, err := DialectFor("oracle"); err == nil {
		t.Error("DialectFor(oracle) should fail")
	}
}

func TestDSN(t *testing.T) {
	tests := []struct {
		name     string
		dialect  Dialect
		config   config.DatabaseConfig
		expected string
	}{
		{
			name:     "SQLite adds busy timeout",
			dialect:  NewSQLiteDialect(),
			config:   config.DatabaseConfig{Path: "./dictation.db"},
			expected: "./dictation.db?_busy_timeout=5000",
		},
		{
			name:     "SQLite keeps explicit options",
			dialect:  NewSQLiteDialect(),
			config:   config.DatabaseConfig{Path: "file:test.db?mode=memory"},
			expected: "file:test.db?mode=memory",
		},
		{
			name:     "PostgreSQL passes URL through",
			dialect:  NewPostgresDialect(),
			config:   config.DatabaseConfig{URL: "postgres://localhost/dictation"},
			expected: "postgres://localhost/dictation",
		},
		{
			name:     "MySQL keeps an unparsable DSN",
			dialect:  NewMySQLDialect(),
			config:   config.DatabaseConfig{URL: "not a dsn"},
			expected: "not a dsn",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.dialect.DSN(tt.config); got != tt.expected {
				t.Errorf("DSN() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestMySQLDSN(t *testing.T) {
	got := NewMySQLDialect().DSN(config.DatabaseConfig{URL: "user:pw@tcp(db:3306)/dictation?charset=utf8mb4"})

	parsed, err := mysql.ParseDSN(got)
	if err != nil {
		t.Fatalf("ParseDSN(%q) error: %v", got, err)
	}
	if !parsed.ParseTime {
		t.Errorf("DSN %q does not enable parseTime", got)
	}
	if parsed.Loc != time.UTC {
		t.Errorf("DSN %q location = %v, want UTC", got, parsed.Loc)
	}
	if parsed.User != "user" || parsed.Addr != "db:3306" || parsed.DBName != "dictation" {
		t.Errorf("DSN %q lost connection details: %+v", got, parsed)
	}
	if !strings.Contains(got, "charset=utf8mb4") {
		t.Errorf("DSN %q dropped charset", got)
	}
}

func TestRewriteQuery(t *testing.T) {
	tests := []struct {
		name     string
		dialect  Dialect
		query    string
		expected string
	}{
		{
			name:     "SQLite no change",
			dialect:  NewSQLiteDialect(),
			query:    "SELECT * FROM reports WHERE id = ?",
			expected: "SELECT * FROM reports WHERE id = ?",
		},
		{
			name:     "PostgreSQL single placeholder",
			dialect:  NewPostgresDialect(),
			query:    "SELECT * FROM reports WHERE id = ?",
			expected: "SELECT * FROM reports WHERE id = $1",
		},
		{
			name:     "PostgreSQL multiple placeholders",
			dialect:  NewPostgresDialect(),
			query:    "INSERT INTO preferences (client_id, language) VALUES (?, ?)",
			expected: "INSERT INTO preferences (client_id, language) VALUES ($1, $2)",
		},
		{
			name:     "PostgreSQL ignores question marks in literals",
			dialect:  NewPostgresDialect(),
			query:    "SELECT * FROM reports WHERE subject = 'why?' AND id = ?",
			expected: "SELECT * FROM reports WHERE subject = 'why?' AND id = $1",
		},
		{
			name:     "MySQL no change",
			dialect:  NewMySQLDialect(),
			query:    "UPDATE reports SET status = ? WHERE id = ?",
			expected: "UPDATE reports SET status = ? WHERE id = ?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.dialect.RewriteQuery(tt.query)
			if result != tt.expected {
				t.Errorf("RewriteQuery() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestSplitStatements(t *testing.T) {
	content := `-- reports
CREATE TABLE a (
    id TEXT
);

CREATE INDEX i ON a (id);
`
	got := splitStatements(content)
	if len(got) != 2 {
		t.Fatalf("splitStatements() returned %d statements, want 2: %q", len(got), got)
	}
	if !strings.HasPrefix(got[0], "CREATE TABLE a") || !strings.HasSuffix(got[0], ");") {
		t.Errorf("first statement = %q", got[0])
	}
	if got[1] != "CREATE INDEX i ON a (id);" {
		t.Errorf("second statement = %q", got[1])
	}
}
