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

	"github.com/launix-de/redigo/internal/glob"
)

// ScanResult is one page of a cursor-based scan.
type ScanResult struct {
	Cursor uint64 // pass back to continue; 0 means the scan is complete
	Keys   []string
}

// Scan implements the SCAN command's key iteration (spec.md §4.2
// "scan"); HSCAN/SSCAN/ZSCAN do not use it. It is a stateless cursor that survives concurrent
// inserts/deletes of keys not being visited, per Redis's reverse
// binary iteration. Unlike upstream Redis, which walks its own hash
// table's bucket chains directly, this implementation buckets live
// keys by a fixed-width hash into 2^bits virtual slots and walks
// those slots in bit-reversed order; rehashing is never needed since
// the slot count is fixed, which trades upstream's O(1)-amortized
// rehash-aware guarantee for a simpler, still-correct-under-churn scan.
func (d *Database) Scan(cursor uint64, count int, pattern string, nowMono int64) ScanResult {
	const bits = 14 // 16384 virtual slots, independent of shard count

	if count <= 0 {
		count = 10
	}

	buckets := make(map[uint64][]string, 1<<bits)
	for _, s := range d.shards {
		s.mu.RLock()
		for k, e := range s.entries {
			if e.expired(nowMono) {
				continue
			}
			slot := slotFor(k, bits)
			buckets[slot] = append(buckets[slot], k)
		}
		s.mu.RUnlock()
	}

	var out []string
	c := cursor
	visited := 0
	for {
		for _, k := range buckets[c] {
			if pattern == "" || glob.Match(pattern, k) {
				out = append(out, k)
			}
		}
		visited++
		c = reverseBinaryIncrement(c, bits)
		if c == 0 {
			return ScanResult{Cursor: 0, Keys: out}
		}
		if visited >= count {
			return ScanResult{Cursor: c, Keys: out}
		}
	}
}

func slotFor(key string, bits uint) uint64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	return h.Sum64() & (1<<bits - 1)
}

// reverseBinaryIncrement advances a cursor the way Redis's dictScan
// does: increment the reverse of the low `bits` bits, then reverse
// back. This visits every slot exactly once regardless of the order
// slots are split/merged in a live rehash, which is what lets the
// cursor remain valid across concurrent mutation.
func reverseBinaryIncrement(v uint64, bits int) uint64 {
	v = reverseBits(v, bits)
	v++
	v = reverseBits(v, bits)
	return v & (1<<uint(bits) - 1)
}

func reverseBits(v uint64, bits int) uint64 {
	var r uint64
	for i := 0; i < bits; i++ {
		r <<= 1
		r |= v & 1
		v >>= 1
	}
	return r
}
