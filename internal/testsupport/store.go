package testsupport

import (
	"context"
	"testing"

	"faultscope/internal/config"
	"faultscope/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewTurn creates a turn for tests using the provided store.
func NewTurn(t testing.TB, st *store.Store, conversationID, request string) *store.Turn {
	t.Helper()

	turn, err := st.NewTurn(context.Background(), conversationID, request)
	if err != nil {
		t.Fatalf("store.NewTurn: %v", err)
	}
	return turn
}
