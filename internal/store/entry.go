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

// Package store implements the keyspace (C2 of spec.md §2): 16
// numbered databases of typed values, each key carrying an optional
// expiration deadline and a version counter used by WATCH (spec.md §4.5).
package store

import (
	"sync/atomic"

	"github.com/launix-de/redigo/internal/types"
)

// KeyEntry is the tuple spec.md §3 names: a value, an optional
// monotonic-ms expiry deadline, and a strictly-increasing version.
type KeyEntry struct {
	Value     types.Value
	ExpireAt  int64 // monotonic ms; valid only if HasExpiry
	HasExpiry bool
	Version   uint64
}

// globalVersion is the process-wide source of entry versions (I2:
// "version... is strictly increasing across mutations"). A single
// counter shared by all keys/databases is simpler than a per-key
// counter and still gives every mutation a distinct, ordered stamp.
var globalVersion uint64

func nextVersion() uint64 {
	return atomic.AddUint64(&globalVersion, 1)
}

func newEntry(v types.Value) *KeyEntry {
	return &KeyEntry{Value: v, Version: nextVersion()}
}

// touch bumps the entry's version in place, e.g. after an in-place
// mutation of its Value (APPEND, LPUSH, HSET, ...).
func (e *KeyEntry) touch() {
	e.Version = nextVersion()
}

// expired reports whether the entry's deadline has passed by nowMono
// (I6: "missing iff absent from the map OR expires_at <= now").
func (e *KeyEntry) expired(nowMono int64) bool {
	return e.HasExpiry && e.ExpireAt <= nowMono
}
