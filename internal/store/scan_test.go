package store

import (
	"fmt"
	"testing"

	"github.com/launix-de/redigo/internal/types"
)

func TestScanVisitsEveryKeyExactlyOnce(t *testing.T) {
	db := newDatabase(0)
	want := map[string]bool{}
	for i := 0; i < 200; i++ {
		k := fmt.Sprintf("key:%d", i)
		db.Set(k, types.NewString([]byte("v")), false)
		want[k] = true
	}

	seen := map[string]int{}
	cursor := uint64(0)
	for {
		res := db.Scan(cursor, 7, "", 0)
		for _, k := range res.Keys {
			seen[k]++
		}
		cursor = res.Cursor
		if cursor == 0 {
			break
		}
	}

	if len(seen) != len(want) {
		t.Fatalf("scanned %d distinct keys, want %d", len(seen), len(want))
	}
	for k := range want {
		if seen[k] != 1 {
			t.Fatalf("key %q seen %d times, want exactly 1", k, seen[k])
		}
	}
}

func TestScanWithPattern(t *testing.T) {
	db := newDatabase(0)
	db.Set("user:1", types.NewString([]byte("v")), false)
	db.Set("user:2", types.NewString([]byte("v")), false)
	db.Set("other", types.NewString([]byte("v")), false)

	var got []string
	cursor := uint64(0)
	for {
		res := db.Scan(cursor, 100, "user:*", 0)
		got = append(got, res.Keys...)
		cursor = res.Cursor
		if cursor == 0 {
			break
		}
	}
	if len(got) != 2 {
		t.Fatalf("got %v, want 2 matches", got)
	}
}

func TestReverseBinaryIncrementCyclesThroughAllSlots(t *testing.T) {
	const bits = 4
	seen := map[uint64]bool{}
	c := uint64(0)
	for {
		seen[c] = true
		c = reverseBinaryIncrement(c, bits)
		if c == 0 {
			break
		}
	}
	if len(seen) != 1<<bits {
		t.Fatalf("visited %d slots, want %d", len(seen), 1<<bits)
	}
}
