package storage

import (
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *SQLite {
	t.Helper()
	store, err := NewSQLite(filepath.Join(t.TempDir(), "data", "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLite_CredentialLifecycle(t *testing.T) {
	store := newTestStore(t)

	value, err := store.LoadCredential("douyin")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if value != "" {
		t.Errorf("Expected no stored credential, got %q", value)
	}

	if err := store.SaveCredential("douyin", "sessionid=a"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := store.SaveCredential("douyin", "sessionid=b"); err != nil {
		t.Fatalf("Expected no error on overwrite, got %v", err)
	}

	value, err = store.LoadCredential("douyin")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if value != "sessionid=b" {
		t.Errorf("Expected last write to win, got %q", value)
	}

	record, err := store.GetCredential("douyin")
	if err != nil || record == nil {
		t.Fatalf("Expected a record, got %v (%v)", record, err)
	}
	if record.UpdatedAt.IsZero() {
		t.Error("Expected UpdatedAt to be set")
	}

	if err := store.DeleteCredential("douyin"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if value, _ := store.LoadCredential("douyin"); value != "" {
		t.Errorf("Expected credential to be deleted, got %q", value)
	}
}

func TestSQLite_SourcesAreIndependent(t *testing.T) {
	store := newTestStore(t)

	if err := store.SaveCredential("douyin", "a"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := store.SaveCredential("other", "b"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if value, _ := store.LoadCredential("douyin"); value != "a" {
		t.Errorf("Expected a, got %q", value)
	}
	if value, _ := store.LoadCredential("other"); value != "b" {
		t.Errorf("Expected b, got %q", value)
	}
}

func TestSQLite_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.db")

	store, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	if err := store.SaveCredential("douyin", "kept"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	store.Close()

	reopened, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("Failed to reopen database: %v", err)
	}
	defer reopened.Close()

	if value, _ := reopened.LoadCredential("douyin"); value != "kept" {
		t.Errorf("Expected credential to survive reopen, got %q", value)
	}
}
