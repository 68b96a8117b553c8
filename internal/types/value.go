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

// Package types implements the tagged union of value variants of
// spec.md §3: String, List, Hash, Set, SortedSet and (SPEC_FULL.md
// addition) Stream. Each variant owns its own file, following the
// teacher's one-kind-per-file layout (storage-int.go, storage-string.go, ...).
package types

// Value is implemented by exactly the variants spec.md §3 names.
// TypeName is what the TYPE command reports; Clone returns a deep
// copy so COPY and in-memory snapshot writers never alias mutable
// state with the original key (spec.md §4.2 "copy").
type Value interface {
	TypeName() string
	Clone() Value
}

const (
	TypeString = "string"
	TypeList   = "list"
	TypeHash   = "hash"
	TypeSet    = "set"
	TypeZSet   = "zset"
	TypeStream = "stream"
)
