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
package store

import "sync/atomic"

const DefaultNumDatabases = 16

// Keyspace is the whole dataset of a single node: a fixed number of
// numbered Database instances (spec.md §4.2 "select") plus the
// counters that drive snapshot scheduling (I3) and CLIENT/INFO output.
type Keyspace struct {
	dbs []*Database

	dirtyCounter uint64 // +1 per effective write since last SAVE/BGSAVE
}

// NewKeyspace builds a Keyspace with n numbered databases.
func NewKeyspace(n int) *Keyspace {
	if n <= 0 {
		n = DefaultNumDatabases
	}
	ks := &Keyspace{dbs: make([]*Database, n)}
	for i := range ks.dbs {
		ks.dbs[i] = newDatabase(i)
	}
	return ks
}

// DB returns database idx, or nil if out of range.
func (ks *Keyspace) DB(idx int) *Database {
	if idx < 0 || idx >= len(ks.dbs) {
		return nil
	}
	return ks.dbs[idx]
}

// NumDatabases reports how many numbered databases this keyspace holds.
func (ks *Keyspace) NumDatabases() int { return len(ks.dbs) }

// All returns every database, in index order, for FLUSHALL/iteration.
func (ks *Keyspace) All() []*Database { return ks.dbs }

// MarkDirty records an effective write for the snapshot "changes since
// last save" trigger (spec.md §6 save rules, I3). The replication
// byte offset is a distinct counter, tracked by the repl package
// against the bytes it actually propagates rather than here, since a
// keyspace write and its wire encoding are not in 1:1 byte
// correspondence (e.g. active-expiration propagates a synthetic DEL).
func (ks *Keyspace) MarkDirty(n uint64) {
	atomic.AddUint64(&ks.dirtyCounter, n)
}

// DirtySinceSave returns the number of effective writes since the
// counter was last reset by ResetDirty.
func (ks *Keyspace) DirtySinceSave() uint64 {
	return atomic.LoadUint64(&ks.dirtyCounter)
}

// ResetDirty zeroes the dirty counter, called after a successful
// SAVE/BGSAVE.
func (ks *Keyspace) ResetDirty() {
	atomic.StoreUint64(&ks.dirtyCounter, 0)
}

// FlushAll discards every key in every database.
func (ks *Keyspace) FlushAll() {
	for _, db := range ks.dbs {
		db.FlushDB()
	}
}

// TotalKeys sums DBSize across every database, for INFO keyspace.
func (ks *Keyspace) TotalKeys(nowMono int64) int {
	n := 0
	for _, db := range ks.dbs {
		n += db.DBSize(nowMono)
	}
	return n
}
