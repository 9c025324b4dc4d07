package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMigrateAppliesOnce(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	runs := 0
	migs := []Migration{{
		Version:     1,
		Description: "create notes",
		Up: func(tx *sql.Tx) error {
			runs++
			_, err := tx.Exec("CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT)")
			return err
		},
	}}
	for i := 0; i < 3; i++ {
		if err := s.Migrate(ctx, "notes", migs); err != nil {
			t.Fatalf("Migrate #%d: %v", i, err)
		}
	}
	if runs != 1 {
		t.Errorf("migration ran %d times, want 1", runs)
	}
}

func TestMigrateFailureRollsBack(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.Migrate(ctx, "broken", []Migration{{
		Version:     1,
		Description: "half done",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec("CREATE TABLE half (id INTEGER)"); err != nil {
				return err
			}
			return boom
		},
	}})
	if !errors.Is(err, boom) {
		t.Fatalf("Migrate error = %v, want boom", err)
	}
	var n int
	if err := s.DB().QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE name = 'half'").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Error("table from failed migration survived rollback")
	}
}

func TestOpenCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "session.db")
	s, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.Close()
}
