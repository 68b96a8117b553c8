package types

import (
	"bytes"
	"testing"
)

func TestListPushPopBothEnds(t *testing.T) {
	l := NewList()
	l.PushRight([]byte("b"), []byte("c"))
	l.PushLeft([]byte("a"))
	if l.Len() != 3 {
		t.Fatalf("len = %d, want 3", l.Len())
	}
	v, ok := l.PopLeft()
	if !ok || string(v) != "a" {
		t.Fatalf("PopLeft = %q, %v", v, ok)
	}
	v, ok = l.PopRight()
	if !ok || string(v) != "c" {
		t.Fatalf("PopRight = %q, %v", v, ok)
	}
}

func TestListIndexNegative(t *testing.T) {
	l := NewList()
	l.PushRight([]byte("a"), []byte("b"), []byte("c"))
	v, ok := l.Index(-1)
	if !ok || string(v) != "c" {
		t.Fatalf("Index(-1) = %q, %v", v, ok)
	}
	if _, ok := l.Index(5); ok {
		t.Fatalf("expected out-of-range index to miss")
	}
}

func TestListRangeEmptyWhenOutOfBounds(t *testing.T) {
	l := NewList()
	l.PushRight([]byte("a"))
	if got := l.Range(5, 10); got != nil {
		t.Fatalf("expected empty range, got %v", got)
	}
}

func TestListRemoveMatching(t *testing.T) {
	l := NewList()
	for _, s := range []string{"a", "b", "a", "a", "b"} {
		l.PushRight([]byte(s))
	}
	n := l.RemoveMatching([]byte("a"), 2)
	if n != 2 {
		t.Fatalf("removed %d, want 2", n)
	}
	var got [][]byte
	for {
		v, ok := l.PopLeft()
		if !ok {
			break
		}
		got = append(got, v)
	}
	want := [][]byte{[]byte("b"), []byte("a"), []byte("b")}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if !bytes.Equal(got[i], want[i]) {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
