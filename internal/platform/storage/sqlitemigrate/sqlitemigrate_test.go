package sqlitemigrate

import (
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "migrate.db"))
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return sqlDB
}

func TestApplyMigrationsOrdersAndRecords(t *testing.T) {
	sqlDB := openTestDB(t)
	migrationFS := fstest.MapFS{
		"002_add_column.sql": {Data: []byte("ALTER TABLE widgets ADD COLUMN label TEXT;")},
		"001_create.sql":     {Data: []byte("CREATE TABLE widgets (id INTEGER PRIMARY KEY);")},
	}

	if err := ApplyMigrations(sqlDB, migrationFS, ""); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	if _, err := sqlDB.Exec("INSERT INTO widgets (id, label) VALUES (1, 'a')"); err != nil {
		t.Fatalf("expected both migrations applied in order: %v", err)
	}

	var applied int
	if err := sqlDB.QueryRow("SELECT COUNT(1) FROM schema_migrations").Scan(&applied); err != nil {
		t.Fatalf("count applied migrations: %v", err)
	}
	if applied != 2 {
		t.Fatalf("expected 2 recorded migrations, got %d", applied)
	}
}

func TestApplyMigrationsIsIdempotent(t *testing.T) {
	sqlDB := openTestDB(t)
	migrationFS := fstest.MapFS{
		"001_create.sql": {Data: []byte("CREATE TABLE widgets (id INTEGER PRIMARY KEY);")},
	}

	if err := ApplyMigrations(sqlDB, migrationFS, ""); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if err := ApplyMigrations(sqlDB, migrationFS, ""); err != nil {
		t.Fatalf("second apply should skip applied files: %v", err)
	}
}

func TestApplyMigrationsFailsOnBadSQL(t *testing.T) {
	sqlDB := openTestDB(t)
	migrationFS := fstest.MapFS{
		"001_broken.sql": {Data: []byte("CREATE TABLE;")},
	}

	if err := ApplyMigrations(sqlDB, migrationFS, ""); err == nil {
		t.Fatalf("expected error for invalid migration SQL")
	}
}
