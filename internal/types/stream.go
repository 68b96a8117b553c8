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

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// StreamID is the (ms, seq) pair spec.md §9/SPEC_FULL.md use to key
// stream entries; increasing (ms,seq) lexicographically.
type StreamID struct {
	MS  int64
	Seq int64
}

func (id StreamID) String() string {
	return fmt.Sprintf("%d-%d", id.MS, id.Seq)
}

func (id StreamID) Less(o StreamID) bool {
	if id.MS != o.MS {
		return id.MS < o.MS
	}
	return id.Seq < o.Seq
}

func (id StreamID) Equal(o StreamID) bool { return id.MS == o.MS && id.Seq == o.Seq }

// ParseStreamID parses "ms-seq", "ms" (seq defaults per defaultSeq),
// "-" (zero) and "+" (max).
func ParseStreamID(s string, defaultSeq int64) (StreamID, error) {
	if s == "-" {
		return StreamID{0, 0}, nil
	}
	if s == "+" {
		return StreamID{MS: 1<<63 - 1, Seq: 1<<63 - 1}, nil
	}
	parts := strings.SplitN(s, "-", 2)
	ms, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return StreamID{}, fmt.Errorf("invalid stream ID %q", s)
	}
	if len(parts) == 1 {
		return StreamID{MS: ms, Seq: defaultSeq}, nil
	}
	seq, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return StreamID{}, fmt.Errorf("invalid stream ID %q", s)
	}
	return StreamID{MS: ms, Seq: seq}, nil
}

type StreamEntry struct {
	ID     StreamID
	Fields []string // flattened field,value,field,value...
}

// Stream is an append-only log of entries keyed by monotonically
// increasing IDs (spec.md §9, optional sixth value variant).
type Stream struct {
	Entries []StreamEntry
	LastID  StreamID
}

func NewStream() *Stream { return &Stream{} }

func (*Stream) TypeName() string { return TypeStream }

func (s *Stream) Clone() Value {
	clone := NewStream()
	clone.Entries = append([]StreamEntry(nil), s.Entries...)
	clone.LastID = s.LastID
	return clone
}

func (s *Stream) Len() int { return len(s.Entries) }

// NextID auto-generates the next ID for XADD's "*" form: the current
// wall-clock ms, or LastID.MS with Seq+1 if that ms has already been used.
func (s *Stream) NextID(nowMS int64) StreamID {
	if nowMS > s.LastID.MS {
		return StreamID{MS: nowMS, Seq: 0}
	}
	return StreamID{MS: s.LastID.MS, Seq: s.LastID.Seq + 1}
}

// Add appends an entry; id must be strictly greater than LastID.
func (s *Stream) Add(id StreamID, fields []string) error {
	if len(s.Entries) > 0 && !s.LastID.Less(id) {
		return fmt.Errorf("ERR The ID specified in XADD is equal or smaller than the target stream top item")
	}
	s.Entries = append(s.Entries, StreamEntry{ID: id, Fields: fields})
	s.LastID = id
	return nil
}

func (s *Stream) Range(start, end StreamID, rev bool, count int) []StreamEntry {
	lo := sort.Search(len(s.Entries), func(i int) bool { return !s.Entries[i].ID.Less(start) })
	hi := sort.Search(len(s.Entries), func(i int) bool { return end.Less(s.Entries[i].ID) })
	if lo >= hi {
		return nil
	}
	out := append([]StreamEntry(nil), s.Entries[lo:hi]...)
	if rev {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	if count >= 0 && count < len(out) {
		out = out[:count]
	}
	return out
}

func (s *Stream) Del(ids []StreamID) int {
	n := 0
	kept := s.Entries[:0]
	for _, e := range s.Entries {
		drop := false
		for _, id := range ids {
			if e.ID.Equal(id) {
				drop = true
				n++
				break
			}
		}
		if !drop {
			kept = append(kept, e)
		}
	}
	s.Entries = kept
	return n
}

// Trim keeps only the last maxlen entries.
func (s *Stream) Trim(maxlen int) int {
	if len(s.Entries) <= maxlen {
		return 0
	}
	removed := len(s.Entries) - maxlen
	s.Entries = append([]StreamEntry(nil), s.Entries[removed:]...)
	return removed
}
