package store

import (
	"database/sql"
	"testing"

	"github.com/dukerupert/almanac/internal/database"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSettingsGetNotFound(t *testing.T) {
	ss := NewSettingsStore(setupTestDB(t))

	val, err := ss.Get("nonexistent_key")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if val != "" {
		t.Errorf("nonexistent_key = %q, want empty", val)
	}
}

func TestSettingsSet(t *testing.T) {
	ss := NewSettingsStore(setupTestDB(t))

	// Insert new
	if err := ss.Set(LastBackupKey, "2023-05-01T10:00:00Z"); err != nil {
		t.Fatalf("set: %v", err)
	}
	// Update existing
	if err := ss.Set(LastBackupKey, "2023-05-02T10:00:00Z"); err != nil {
		t.Fatalf("set again: %v", err)
	}

	val, err := ss.Get(LastBackupKey)
	if err != nil {
		t.Fatalf("get after set: %v", err)
	}
	if val != "2023-05-02T10:00:00Z" {
		t.Errorf("%s = %q, want %q", LastBackupKey, val, "2023-05-02T10:00:00Z")
	}
}
