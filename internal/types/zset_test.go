package types

import "testing"

func TestZSetRankAndRange(t *testing.T) {
	z := NewZSet()
	z.Set("a", 1)
	z.Set("b", 2)
	z.Set("c", 3)

	if r := z.Rank("b"); r != 1 {
		t.Fatalf("rank(b) = %d, want 1", r)
	}
	if _, ok := z.Score("missing"); ok {
		t.Fatalf("expected missing member to be absent")
	}

	items := z.RangeByRank(0, -1, false)
	want := []string{"a", "b", "c"}
	assertMembers(t, items, want)

	items = z.RangeByRank(0, -1, true)
	assertMembers(t, items, []string{"c", "b", "a"})
}

func TestZSetScoreTieBreaksLexicographically(t *testing.T) {
	z := NewZSet()
	z.Set("banana", 1)
	z.Set("apple", 1)
	z.Set("cherry", 1)
	assertMembers(t, z.RangeByRank(0, -1, false), []string{"apple", "banana", "cherry"})
}

func TestZSetRangeByScore(t *testing.T) {
	z := NewZSet()
	z.Set("a", 1)
	z.Set("b", 2)
	z.Set("c", 3)

	items := z.RangeByScore(ScoreBound{Value: 1}, ScoreBound{Value: 2}, false, 0, -1)
	assertMembers(t, items, []string{"a", "b"})

	items = z.RangeByScore(ScoreBound{Value: 1, Exclusive: true}, PosInfBound, false, 0, -1)
	assertMembers(t, items, []string{"b", "c"})
}

func TestZSetUpdateMovesRank(t *testing.T) {
	z := NewZSet()
	z.Set("a", 1)
	z.Set("b", 2)
	z.Set("b", 10)
	assertMembers(t, z.RangeByRank(0, -1, false), []string{"a", "b"})
	if score, _ := z.Score("b"); score != 10 {
		t.Fatalf("score(b) = %v, want 10", score)
	}
}

func TestZSetRemove(t *testing.T) {
	z := NewZSet()
	z.Set("a", 1)
	z.Set("b", 2)
	if !z.Rem("a") {
		t.Fatalf("expected removal to report true")
	}
	if z.Rem("a") {
		t.Fatalf("expected second removal to report false")
	}
	assertMembers(t, z.RangeByRank(0, -1, false), []string{"b"})
}

func assertMembers(t *testing.T, items []ZItem, want []string) {
	t.Helper()
	if len(items) != len(want) {
		t.Fatalf("got %d items, want %d (%v)", len(items), len(want), items)
	}
	for i, it := range items {
		if it.Member != want[i] {
			t.Errorf("index %d: got %q, want %q", i, it.Member, want[i])
		}
	}
}
