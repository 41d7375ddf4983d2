package migration

import (
	"strings"
	"testing"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	files, err := Files()
	if err != nil {
		t.Fatalf("list migrations: %v", err)
	}
	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, name := range files {
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Fatalf("unexpected migration file %q", name)
		}
	}
	if len(ups) == 0 {
		t.Fatalf("expected at least one migration")
	}
	for version := range ups {
		if !downs[version] {
			t.Fatalf("migration %s has no down file", version)
		}
	}
}

func TestInitMigrationGuardsDoubleIssue(t *testing.T) {
	body, err := embeddedMigrations.ReadFile("migrations/0001_init.up.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	sql := string(body)
	for _, want := range []string{
		"ux_invoices_system_period",
		"ux_mpesa_transactions_trans_id",
		"ux_payments_transaction_id",
		"ux_balance_entries_source",
	} {
		if !strings.Contains(sql, want) {
			t.Fatalf("expected migration to create %s", want)
		}
	}
}

func TestRunMigrationsRequiresHandle(t *testing.T) {
	if err := RunMigrations(nil); err == nil {
		t.Fatalf("expected error for nil handle")
	}
}

func TestCollectionHistoryMigration(t *testing.T) {
	up, err := embeddedMigrations.ReadFile("migrations/0002_collection_history.up.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	if !strings.Contains(string(up), "CREATE TABLE IF NOT EXISTS collection_history") {
		t.Fatalf("expected collection_history table")
	}
	down, err := embeddedMigrations.ReadFile("migrations/0002_collection_history.down.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	if !strings.Contains(string(down), "DROP TABLE IF EXISTS collection_history") {
		t.Fatalf("expected collection_history drop")
	}
}
