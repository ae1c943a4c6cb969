package migrate_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/angelmondragon/qrcatalog-backend/pkg/migrate"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestFanoutJournalMigrationContainsSchema(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_fanout_journal.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no fanout journal migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS fanout_journal",
		"order_id TEXT PRIMARY KEY",
		"CHECK (attempts >= 0)",
		"CREATE INDEX IF NOT EXISTS idx_fanout_journal_state_updated",
		"DROP TABLE IF EXISTS fanout_journal",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestValidateDir(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("ValidateDir: %v", err)
	}
}

func TestRunEmbeddedAgainstSQLite(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:migrate_test?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	defer sqlDB.Close()

	if err := migrate.RunEmbedded(context.Background(), sqlDB, migrate.Dialect("sqlite"), "up"); err != nil {
		t.Fatalf("RunEmbedded up: %v", err)
	}
	if !conn.Migrator().HasTable("fanout_journal") {
		t.Fatal("expected fanout_journal table after migration")
	}
}

func TestDialect(t *testing.T) {
	if migrate.Dialect("SQLite") != "sqlite3" {
		t.Fatal("expected sqlite3 dialect")
	}
	if migrate.Dialect("") != "postgres" {
		t.Fatal("expected postgres default")
	}
}
