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

import (
	"hash/fnv"
	"sync"

	"github.com/google/btree"
	"github.com/launix-de/redigo/internal/glob"
	"github.com/launix-de/redigo/internal/types"
)

const numShards = 16

type shard struct {
	mu      sync.RWMutex
	entries map[string]*KeyEntry
}

type expiryItem struct {
	deadline int64
	key      string
}

func expiryLess(a, b expiryItem) bool {
	if a.deadline != b.deadline {
		return a.deadline < b.deadline
	}
	return a.key < b.key
}

// Database is one of the 16 numbered logical databases (spec.md §4.2).
// Per spec.md §5 shared-resource policy (a), each key is protected by
// its shard's lock; multi-key atomic operations (transactions, MSET,
// set-algebra stores) take the serializer in exclusive mode, which
// drains and blocks the RLock every ordinary single-key write holds.
type Database struct {
	Index int

	shards     [numShards]*shard
	serializer sync.RWMutex

	exMu   sync.Mutex
	expiry *btree.BTreeG[expiryItem]

	waitMu  sync.Mutex
	waiters map[string][]chan struct{}
}

func newDatabase(idx int) *Database {
	d := &Database{
		Index:   idx,
		expiry:  btree.NewG(32, expiryLess),
		waiters: make(map[string][]chan struct{}),
	}
	for i := range d.shards {
		d.shards[i] = &shard{entries: make(map[string]*KeyEntry)}
	}
	return d
}

func (d *Database) shardFor(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return d.shards[h.Sum32()%numShards]
}

// Serializer exposes the keyspace serializer to callers
// implementing multi-key atomic operations (transactions, set-algebra
// "store" variants, MSET): acquiring it in write mode excludes every
// other effective write against this database for the duration.
func (d *Database) Serializer() *sync.RWMutex { return &d.serializer }

// lockedGet fetches the live (non-expired) entry for key, reporting an
// entry whose deadline has passed as missing without deleting it
// (spec.md §4.4); the caller must hold s.mu.
func (d *Database) lockedGet(s *shard, key string, nowMono int64) (*KeyEntry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if e.expired(nowMono) {
		return nil, false
	}
	return e, true
}

// Get returns the live value for key, or ok=false if missing/expired.
// It does NOT perform the lazy delete side effect (callers needing
// eviction-with-propagation should use ExpireIfNeeded first).
func (d *Database) Get(key string, nowMono int64) (*KeyEntry, bool) {
	s := d.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return d.lockedGet(s, key, nowMono)
}

// ExpireIfNeeded lazily evicts key if expired and reports whether it
// did so (the caller must then propagate a synthetic DEL, spec.md §4.4).
func (d *Database) ExpireIfNeeded(key string, nowMono int64) bool {
	s := d.shardFor(key)
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok || !e.expired(nowMono) {
		s.mu.Unlock()
		return false
	}
	delete(s.entries, key)
	s.mu.Unlock()
	d.removeFromExpiryIndex(key, e)
	return true
}

// Set stores value under key, replacing any previous entry, and
// returns the new entry. keepTTL preserves the previous expiry.
func (d *Database) Set(key string, v types.Value, keepTTL bool) *KeyEntry {
	s := d.shardFor(key)
	s.mu.Lock()
	old, existed := s.entries[key]
	e := newEntry(v)
	if keepTTL && existed && old.HasExpiry {
		e.HasExpiry = true
		e.ExpireAt = old.ExpireAt
	}
	s.entries[key] = e
	s.mu.Unlock()
	if existed && old.HasExpiry && !e.HasExpiry {
		d.removeFromExpiryIndex(key, old)
	}
	if e.HasExpiry {
		d.addToExpiryIndex(key, e)
	}
	d.notify(key)
	return e
}

// Delete removes key unconditionally. Returns true if it existed
// (and was not already expired).
func (d *Database) Delete(key string, nowMono int64) bool {
	s := d.shardFor(key)
	s.mu.Lock()
	e, ok := d.lockedGet(s, key, nowMono)
	if ok {
		delete(s.entries, key)
	} else if _, present := s.entries[key]; present {
		delete(s.entries, key) // expired but still tracked: clean it up silently
	}
	s.mu.Unlock()
	if ok {
		d.removeFromExpiryIndex(key, e)
		d.notify(key)
	}
	return ok
}

func (d *Database) Exists(key string, nowMono int64) bool {
	_, ok := d.Get(key, nowMono)
	return ok
}

// SetExpire sets an absolute monotonic deadline on an existing key.
// Returns false if the key does not exist.
func (d *Database) SetExpire(key string, deadline int64, nowMono int64) bool {
	s := d.shardFor(key)
	s.mu.Lock()
	e, ok := d.lockedGet(s, key, nowMono)
	if !ok {
		s.mu.Unlock()
		return false
	}
	hadExpiry := e.HasExpiry
	oldDeadline := e.ExpireAt
	e.HasExpiry = true
	e.ExpireAt = deadline
	e.touch()
	s.mu.Unlock()
	if hadExpiry {
		d.exMu.Lock()
		d.expiry.Delete(expiryItem{deadline: oldDeadline, key: key})
		d.exMu.Unlock()
	}
	d.addToExpiryIndex(key, e)
	d.notify(key)
	return true
}

// ClearExpire removes any TTL on key (PERSIST). Returns true if a TTL
// was actually cleared.
func (d *Database) ClearExpire(key string, nowMono int64) bool {
	s := d.shardFor(key)
	s.mu.Lock()
	e, ok := d.lockedGet(s, key, nowMono)
	if !ok || !e.HasExpiry {
		s.mu.Unlock()
		return false
	}
	oldDeadline := e.ExpireAt
	e.HasExpiry = false
	e.touch()
	s.mu.Unlock()
	d.exMu.Lock()
	d.expiry.Delete(expiryItem{deadline: oldDeadline, key: key})
	d.exMu.Unlock()
	d.notify(key)
	return true
}

// TouchVersion bumps key's version without changing its value, used
// after in-place mutation via a pointer already obtained from Get.
func (d *Database) TouchVersion(key string) {
	s := d.shardFor(key)
	s.mu.Lock()
	if e, ok := s.entries[key]; ok {
		e.touch()
	}
	s.mu.Unlock()
	d.notify(key)
}

// addToExpiryIndex/removeFromExpiryIndex maintain the btree index
// used by the active expiration sampler (spec.md §4.4) and
// iter_expiring. The index is keyed by (deadline,key); callers that
// change a key's deadline must remove the old (deadline,key) entry
// before inserting the new one.
func (d *Database) addToExpiryIndex(key string, e *KeyEntry) {
	d.exMu.Lock()
	d.expiry.ReplaceOrInsert(expiryItem{deadline: e.ExpireAt, key: key})
	d.exMu.Unlock()
}

func (d *Database) removeFromExpiryIndex(key string, e *KeyEntry) {
	if !e.HasExpiry {
		return
	}
	d.exMu.Lock()
	d.expiry.Delete(expiryItem{deadline: e.ExpireAt, key: key})
	d.exMu.Unlock()
}

// SampleExpiring returns up to n keys with the soonest deadlines,
// soonest first, for the active expiration sampler.
func (d *Database) SampleExpiring(n int) []string {
	d.exMu.Lock()
	defer d.exMu.Unlock()
	out := make([]string, 0, n)
	d.expiry.Ascend(func(it expiryItem) bool {
		out = append(out, it.key)
		return len(out) < n
	})
	return out
}

func (d *Database) ExpiringCount() int {
	d.exMu.Lock()
	defer d.exMu.Unlock()
	return d.expiry.Len()
}

// FlushDB discards every key in this database.
func (d *Database) FlushDB() {
	for _, s := range d.shards {
		s.mu.Lock()
		s.entries = make(map[string]*KeyEntry)
		s.mu.Unlock()
	}
	d.exMu.Lock()
	d.expiry = btree.NewG(32, expiryLess)
	d.exMu.Unlock()
}

// DBSize counts live (non-expired) keys.
func (d *Database) DBSize(nowMono int64) int {
	n := 0
	for _, s := range d.shards {
		s.mu.RLock()
		for _, e := range s.entries {
			if !e.expired(nowMono) {
				n++
			}
		}
		s.mu.RUnlock()
	}
	return n
}

// KeysMatching returns every live key matching the glob pattern.
func (d *Database) KeysMatching(pattern string, nowMono int64) []string {
	var out []string
	for _, s := range d.shards {
		s.mu.RLock()
		for k, e := range s.entries {
			if !e.expired(nowMono) && glob.Match(pattern, k) {
				out = append(out, k)
			}
		}
		s.mu.RUnlock()
	}
	return out
}

// RandomKey returns an arbitrary live key, or ("",false) if empty.
// Go's map iteration order is already randomized per-run, so a single
// probe into a non-empty shard is sufficient; shards are tried in a
// randomized-by-runtime order via Go's own map iteration.
func (d *Database) RandomKey(nowMono int64) (string, bool) {
	for _, s := range d.shards {
		s.mu.RLock()
		for k, e := range s.entries {
			if !e.expired(nowMono) {
				s.mu.RUnlock()
				return k, true
			}
		}
		s.mu.RUnlock()
	}
	return "", false
}

// --- per-key notifiers for blocking commands (spec.md §9) -------------

func (d *Database) notify(key string) {
	d.waitMu.Lock()
	chs := d.waiters[key]
	delete(d.waiters, key)
	d.waitMu.Unlock()
	for _, ch := range chs {
		close(ch)
	}
}

// Wait registers interest in key and returns a channel that is closed
// on the next mutation of key. Callers must re-check their condition
// after wake (signal-and-recheck); deregistration on cancellation is
// the caller's responsibility via Forget.
func (d *Database) Wait(key string) chan struct{} {
	ch := make(chan struct{})
	d.waitMu.Lock()
	d.waiters[key] = append(d.waiters[key], ch)
	d.waitMu.Unlock()
	return ch
}

// Forget removes ch from key's waiter list without closing it, used
// when a blocking command's context is cancelled or it times out.
func (d *Database) Forget(key string, ch chan struct{}) {
	d.waitMu.Lock()
	defer d.waitMu.Unlock()
	list := d.waiters[key]
	for i, c := range list {
		if c == ch {
			d.waiters[key] = append(list[:i], list[i+1:]...)
			return
		}
	}
}
