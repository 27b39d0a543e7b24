package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func openRawDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestInitSchema_Fresh(t *testing.T) {
	db := openRawDB(t)
	ctx := context.Background()

	if err := InitSchema(ctx, db); err != nil {
		t.Fatalf("InitSchema() error = %v", err)
	}
	v, err := getSchemaVersion(ctx, db)
	if err != nil {
		t.Fatal(err)
	}
	if v != SchemaVersion {
		t.Errorf("schema version = %d, want %d", v, SchemaVersion)
	}

	// A second call is a no-op.
	if err := InitSchema(ctx, db); err != nil {
		t.Errorf("second InitSchema() error = %v", err)
	}
}

func TestInitSchema_MigratesV1(t *testing.T) {
	db := openRawDB(t)
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, schemaV1); err != nil {
		t.Fatal(err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO schema_version (version, applied_at) VALUES (1, datetime('now'))`); err != nil {
		t.Fatal(err)
	}
	if _, err := db.ExecContext(ctx, `
		INSERT INTO runs (id, created_at, ev_diff, n_trials, cutoff, seed, per_class, remainder, pool_size)
		VALUES ('old', '2025-01-01T00:00:00.000000000Z', 0.9, 0, -1, '42', 0, 0, 10)`); err != nil {
		t.Fatal(err)
	}

	if err := InitSchema(ctx, db); err != nil {
		t.Fatalf("InitSchema() error = %v", err)
	}
	v, err := getSchemaVersion(ctx, db)
	if err != nil {
		t.Fatal(err)
	}
	if v != SchemaVersion {
		t.Errorf("schema version = %d, want %d", v, SchemaVersion)
	}

	var condition string
	if err := db.QueryRowContext(ctx, `SELECT condition FROM runs WHERE id = 'old'`).Scan(&condition); err != nil {
		t.Fatalf("condition column missing after migration: %v", err)
	}
	if condition != "active" {
		t.Errorf("migrated condition = %q, want active", condition)
	}
}

func TestValidateIntegrity(t *testing.T) {
	db := openRawDB(t)
	ctx := context.Background()
	if err := InitSchema(ctx, db); err != nil {
		t.Fatal(err)
	}
	if err := ValidateIntegrity(ctx, db); err != nil {
		t.Errorf("ValidateIntegrity() error = %v", err)
	}
}
