package client

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
)

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&n)
	if err != nil {
		t.Fatalf("tableExists query failed: %v", err)
	}
	return n > 0
}

func TestInitDatabase_AppliesMigrations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "app.db")

	repos, err := InitDatabase(ctx, dsn)
	if err != nil {
		t.Fatalf("InitDatabase error: %v", err)
	}
	defer repos.Close()

	for _, table := range []string{"goose_db_version", "metadata"} {
		if !tableExists(t, repos.DB, table) {
			t.Fatalf("expected %s table to exist after migrations", table)
		}
	}
}

func TestInitDatabase_Reopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "app.db")

	repos, err := InitDatabase(ctx, dsn)
	if err != nil {
		t.Fatalf("InitDatabase (first) error: %v", err)
	}
	if err := repos.Metadata.Set(ctx, "access", []byte("a1")); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if err := repos.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	repos, err = InitDatabase(ctx, dsn)
	if err != nil {
		t.Fatalf("InitDatabase (second) should be idempotent, got error: %v", err)
	}
	defer repos.Close()

	got, err := repos.Metadata.Get(ctx, "access")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if string(got) != "a1" {
		t.Fatalf("unexpected value after reopen: %q", got)
	}
}

func TestInitDatabase_BadPath(t *testing.T) {
	t.Parallel()

	_, err := InitDatabase(context.Background(), filepath.Join(t.TempDir(), "missing", "dir", "app.db"))
	if err == nil {
		t.Fatalf("expected error for unreachable path")
	}
}
