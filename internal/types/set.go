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

// Set is an unordered collection of unique byte-string members
// (spec.md §4.3).
type Set struct {
	M map[string]struct{}
}

func NewSet() *Set { return &Set{M: make(map[string]struct{})} }

func (*Set) TypeName() string { return TypeSet }

func (s *Set) Clone() Value {
	clone := NewSet()
	for m := range s.M {
		clone.M[m] = struct{}{}
	}
	return clone
}

func (s *Set) Len() int { return len(s.M) }

func (s *Set) Has(member string) bool {
	_, ok := s.M[member]
	return ok
}

// Add returns true if member was newly added.
func (s *Set) Add(member string) bool {
	if _, ok := s.M[member]; ok {
		return false
	}
	s.M[member] = struct{}{}
	return true
}

func (s *Set) Rem(member string) bool {
	if _, ok := s.M[member]; !ok {
		return false
	}
	delete(s.M, member)
	return true
}

func (s *Set) Members() []string {
	out := make([]string, 0, len(s.M))
	for m := range s.M {
		out = append(out, m)
	}
	return out
}

// setOp is the shared core of SINTER/SUNION/SDIFF: combine sets
// with a membership predicate evaluated against the remaining sets.
func setOp(sets []*Set, keep func(member string, rest []*Set) bool) *Set {
	result := NewSet()
	if len(sets) == 0 {
		return result
	}
	first, rest := sets[0], sets[1:]
	for m := range first.M {
		if keep(m, rest) {
			result.Add(m)
		}
	}
	return result
}

func Inter(sets []*Set) *Set {
	return setOp(sets, func(m string, rest []*Set) bool {
		for _, s := range rest {
			if !s.Has(m) {
				return false
			}
		}
		return true
	})
}

func Diff(sets []*Set) *Set {
	return setOp(sets, func(m string, rest []*Set) bool {
		for _, s := range rest {
			if s.Has(m) {
				return false
			}
		}
		return true
	})
}

func Union(sets []*Set) *Set {
	result := NewSet()
	for _, s := range sets {
		for m := range s.M {
			result.Add(m)
		}
	}
	return result
}
