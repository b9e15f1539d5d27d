package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/genlock/internal/ir"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// genesis returns the genesis row as the engine creates it.
func genesis() ir.Generation {
	return ir.Generation{ID: ir.Genesis, Name: "Genesis", Prerequisite: ir.Genesis, AutoUnlock: true}
}

// testEvent builds an event with a valid content-addressed id.
func testEvent(seq int64, op ir.Op, caller ir.Identity, args map[string]string) ir.Event {
	return ir.Event{
		Seq:    seq,
		ID:     ir.MustEventID(seq, op, caller, args),
		TxID:   "tx-test",
		Op:     op,
		Caller: caller,
		Args:   args,
	}
}
