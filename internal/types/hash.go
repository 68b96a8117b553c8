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

// Hash is a field -> value mapping with no required iteration order
// (spec.md §4.3).
type Hash struct {
	M map[string][]byte
}

func NewHash() *Hash { return &Hash{M: make(map[string][]byte)} }

func (*Hash) TypeName() string { return TypeHash }

func (h *Hash) Clone() Value {
	clone := NewHash()
	for f, v := range h.M {
		cp := make([]byte, len(v))
		copy(cp, v)
		clone.M[f] = cp
	}
	return clone
}

func (h *Hash) Len() int { return len(h.M) }

func (h *Hash) Get(field string) ([]byte, bool) {
	v, ok := h.M[field]
	return v, ok
}

// Set returns true if field was newly created.
func (h *Hash) Set(field string, val []byte) bool {
	_, existed := h.M[field]
	h.M[field] = val
	return !existed
}

func (h *Hash) Del(fields ...string) int {
	n := 0
	for _, f := range fields {
		if _, ok := h.M[f]; ok {
			delete(h.M, f)
			n++
		}
	}
	return n
}

func (h *Hash) Fields() []string {
	out := make([]string, 0, len(h.M))
	for f := range h.M {
		out = append(out, f)
	}
	return out
}
