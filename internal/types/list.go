/*
Copyright (C) 2023-2026  Carl-Philip Hänsch

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package types

import "container/list"

// List is an ordered sequence of byte strings with O(1) push/pop at
// both ends and O(N) indexed access (spec.md §4.3); a doubly linked
// list satisfies the complexity contract directly.
type List struct {
	l *list.List
}

func NewList() *List { return &List{l: list.New()} }

func (*List) TypeName() string { return TypeList }

func (v *List) Clone() Value {
	clone := NewList()
	for e := v.l.Front(); e != nil; e = e.Next() {
		b := e.Value.([]byte)
		cp := make([]byte, len(b))
		copy(cp, b)
		clone.l.PushBack(cp)
	}
	return clone
}

func (v *List) Len() int { return v.l.Len() }

func (v *List) PushLeft(items ...[]byte) {
	for _, it := range items {
		v.l.PushFront(it)
	}
}

func (v *List) PushRight(items ...[]byte) {
	for _, it := range items {
		v.l.PushBack(it)
	}
}

func (v *List) PopLeft() ([]byte, bool) {
	e := v.l.Front()
	if e == nil {
		return nil, false
	}
	v.l.Remove(e)
	return e.Value.([]byte), true
}

func (v *List) PopRight() ([]byte, bool) {
	e := v.l.Back()
	if e == nil {
		return nil, false
	}
	v.l.Remove(e)
	return e.Value.([]byte), true
}

// Index returns the element at a 0-based index, negative counting
// from the end, or (nil,false) if out of range.
func (v *List) Index(idx int) ([]byte, bool) {
	n := v.l.Len()
	if idx < 0 {
		idx += n
	}
	if idx < 0 || idx >= n {
		return nil, false
	}
	e := v.at(idx)
	return e.Value.([]byte), true
}

func (v *List) SetIndex(idx int, val []byte) bool {
	n := v.l.Len()
	if idx < 0 {
		idx += n
	}
	if idx < 0 || idx >= n {
		return false
	}
	v.at(idx).Value = val
	return true
}

func (v *List) at(idx int) *list.Element {
	if idx <= v.l.Len()/2 {
		e := v.l.Front()
		for i := 0; i < idx; i++ {
			e = e.Next()
		}
		return e
	}
	e := v.l.Back()
	for i := v.l.Len() - 1; i > idx; i-- {
		e = e.Prev()
	}
	return e
}

// Range returns a 0-based inclusive [start,stop] slice, negative
// indices counting from the end, clamped and empty-safe.
func (v *List) Range(start, stop int) [][]byte {
	n := v.l.Len()
	start, stop = normalizeRange(start, stop, n)
	if start > stop {
		return nil
	}
	out := make([][]byte, 0, stop-start+1)
	e := v.at(start)
	for i := start; i <= stop; i++ {
		out = append(out, e.Value.([]byte))
		e = e.Next()
	}
	return out
}

// Trim keeps only [start,stop], deleting everything else.
func (v *List) Trim(start, stop int) {
	n := v.l.Len()
	start, stop = normalizeRange(start, stop, n)
	if start > stop {
		v.l.Init()
		return
	}
	for i := 0; i < start; i++ {
		v.PopLeft()
	}
	for v.l.Len() > stop-start+1 {
		v.PopRight()
	}
}

// RemoveMatching removes up to count occurrences equal to val.
// count>0 scans head-to-tail, count<0 scans tail-to-head, count==0
// removes all occurrences. Returns the number removed.
func (v *List) RemoveMatching(val []byte, count int) int {
	removed := 0
	eq := func(b []byte) bool {
		if len(b) != len(val) {
			return false
		}
		for i := range b {
			if b[i] != val[i] {
				return false
			}
		}
		return true
	}
	if count >= 0 {
		limit := count
		e := v.l.Front()
		for e != nil {
			next := e.Next()
			if eq(e.Value.([]byte)) && (limit == 0 || removed < limit) {
				v.l.Remove(e)
				removed++
				if limit != 0 && removed >= limit {
					break
				}
			}
			e = next
		}
	} else {
		limit := -count
		e := v.l.Back()
		for e != nil {
			prev := e.Prev()
			if eq(e.Value.([]byte)) {
				v.l.Remove(e)
				removed++
				if removed >= limit {
					break
				}
			}
			e = prev
		}
	}
	return removed
}

func normalizeRange(start, stop, n int) (int, int) {
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	return start, stop
}
