package testutil

import (
	"context"
	"testing"

	"github.com/HerbHall/libradesk/internal/store"
)

// NewStore opens a private in-memory SQLite store that is closed when the
// test completes.
func NewStore(t testing.TB) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("testutil.NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}
