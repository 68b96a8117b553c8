package store

import (
	"testing"

	"github.com/launix-de/redigo/internal/types"
)

func TestNewKeyspaceDefaultsTo16(t *testing.T) {
	ks := NewKeyspace(0)
	if ks.NumDatabases() != DefaultNumDatabases {
		t.Fatalf("got %d databases, want %d", ks.NumDatabases(), DefaultNumDatabases)
	}
}

func TestKeyspaceDBOutOfRange(t *testing.T) {
	ks := NewKeyspace(4)
	if ks.DB(-1) != nil || ks.DB(4) != nil {
		t.Fatalf("expected out-of-range DB() to return nil")
	}
	if ks.DB(0) == nil {
		t.Fatalf("expected DB(0) to exist")
	}
}

func TestKeyspaceDirtyCounter(t *testing.T) {
	ks := NewKeyspace(1)
	ks.MarkDirty(3)
	ks.MarkDirty(2)
	if ks.DirtySinceSave() != 5 {
		t.Fatalf("got %d, want 5", ks.DirtySinceSave())
	}
	ks.ResetDirty()
	if ks.DirtySinceSave() != 0 {
		t.Fatalf("expected reset counter to be 0")
	}
}

func TestKeyspaceFlushAll(t *testing.T) {
	ks := NewKeyspace(2)
	ks.DB(0).Set("a", types.NewString([]byte("1")), false)
	ks.DB(1).Set("b", types.NewString([]byte("2")), false)
	ks.FlushAll()
	if ks.TotalKeys(0) != 0 {
		t.Fatalf("expected FlushAll to empty every database")
	}
}
