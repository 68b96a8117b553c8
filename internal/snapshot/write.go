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
package snapshot

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc64"
	"io"
	"math"

	"github.com/pierrec/lz4/v4"

	"github.com/launix-de/redigo/internal/store"
	"github.com/launix-de/redigo/internal/types"
)

var crcTable = crc64.MakeTable(crc64.ISO)

// crcWriter tees every byte written through it into a running CRC-64,
// so the trailer can be computed without a second pass over the file.
type crcWriter struct {
	w   io.Writer
	sum uint64
}

func (c *crcWriter) Write(p []byte) (int, error) {
	c.sum = crc64.Update(c.sum, crcTable, p)
	return c.w.Write(p)
}

// Write serializes ks to w: a magic+version header, one section per
// database (index, live size, expiring size, entries), and a CRC-64
// trailer over everything preceding it (spec.md §4.6). The entry
// section of each database is wrapped in an LZ4 frame so that large
// string/list/hash payloads compress without the reader needing to
// know the uncompressed size up front.
func Write(w io.Writer, ks *store.Keyspace, nowMono int64) error {
	cw := &crcWriter{w: w}
	bw := newByteWriter(cw)

	if err := bw.writeString(Magic); err != nil {
		return err
	}
	if err := bw.writeUint32(FormatVersion); err != nil {
		return err
	}
	if err := bw.writeUint32(uint32(ks.NumDatabases())); err != nil {
		return err
	}

	for idx, db := range ks.All() {
		if err := writeDatabase(bw, idx, db, nowMono); err != nil {
			return err
		}
	}

	trailer := make([]byte, 8)
	binary.BigEndian.PutUint64(trailer, cw.sum)
	_, err := cw.w.Write(trailer) // trailer itself is outside the checksum it reports
	return err
}

func writeDatabase(bw *byteWriter, idx int, db *store.Database, nowMono int64) error {
	keys := db.KeysMatching("*", nowMono)
	if err := bw.writeUint32(uint32(idx)); err != nil {
		return err
	}
	if err := bw.writeUint32(uint32(len(keys))); err != nil {
		return err
	}
	if err := bw.writeUint32(uint32(db.ExpiringCount())); err != nil {
		return err
	}

	// Entries are compressed into a standalone buffer (rather than
	// streamed lz4 frames sharing the outer file's reader) so the
	// reader can size-prefix and isolate each database's blob instead
	// of depending on exact lz4 frame-boundary detection mid-stream.
	var compressed bytes.Buffer
	lzw := lz4.NewWriter(&compressed)
	entryW := newByteWriter(lzw)
	for _, key := range keys {
		e, ok := db.Get(key, nowMono)
		if !ok {
			continue
		}
		if err := writeEntry(entryW, key, e); err != nil {
			return err
		}
	}
	if err := lzw.Close(); err != nil {
		return err
	}
	if err := bw.writeBytes(compressed.Bytes()); err != nil {
		return err
	}
	return nil
}

func writeEntry(bw *byteWriter, key string, e *store.KeyEntry) error {
	tag, err := tagForTypeName(e.Value.TypeName())
	if err != nil {
		return err
	}
	if err := bw.writeByte(tag); err != nil {
		return err
	}
	if err := bw.writeString(key); err != nil {
		return err
	}
	if err := bw.writeBool(e.HasExpiry); err != nil {
		return err
	}
	if e.HasExpiry {
		if err := bw.writeInt64(e.ExpireAt); err != nil {
			return err
		}
	}
	return writeValue(bw, tag, e.Value)
}

func writeValue(bw *byteWriter, tag byte, v types.Value) error {
	switch tag {
	case tagString:
		s := v.(*types.String)
		return bw.writeBytes(s.B)
	case tagList:
		l := v.(*types.List)
		items := l.Range(0, l.Len()-1)
		if err := bw.writeUint32(uint32(len(items))); err != nil {
			return err
		}
		for _, it := range items {
			if err := bw.writeBytes(it); err != nil {
				return err
			}
		}
		return nil
	case tagHash:
		h := v.(*types.Hash)
		fields := h.Fields()
		if err := bw.writeUint32(uint32(len(fields))); err != nil {
			return err
		}
		for _, f := range fields {
			val, _ := h.Get(f)
			if err := bw.writeString(f); err != nil {
				return err
			}
			if err := bw.writeBytes(val); err != nil {
				return err
			}
		}
		return nil
	case tagSet:
		s := v.(*types.Set)
		members := s.Members()
		if err := bw.writeUint32(uint32(len(members))); err != nil {
			return err
		}
		for _, m := range members {
			if err := bw.writeString(m); err != nil {
				return err
			}
		}
		return nil
	case tagZSet:
		z := v.(*types.ZSet)
		items := z.RangeByRank(0, z.Len()-1, false)
		if err := bw.writeUint32(uint32(len(items))); err != nil {
			return err
		}
		for _, it := range items {
			if err := bw.writeString(it.Member); err != nil {
				return err
			}
			if err := bw.writeFloat64(it.Score); err != nil {
				return err
			}
		}
		return nil
	case tagStream:
		st := v.(*types.Stream)
		if err := bw.writeInt64(st.LastID.MS); err != nil {
			return err
		}
		if err := bw.writeInt64(st.LastID.Seq); err != nil {
			return err
		}
		if err := bw.writeUint32(uint32(len(st.Entries))); err != nil {
			return err
		}
		for _, ent := range st.Entries {
			if err := bw.writeInt64(ent.ID.MS); err != nil {
				return err
			}
			if err := bw.writeInt64(ent.ID.Seq); err != nil {
				return err
			}
			if err := bw.writeUint32(uint32(len(ent.Fields))); err != nil {
				return err
			}
			for _, f := range ent.Fields {
				if err := bw.writeString(f); err != nil {
					return err
				}
			}
		}
		return nil
	default:
		return fmt.Errorf("snapshot: unhandled value tag %d", tag)
	}
}

// byteWriter is a small binary.Write convenience wrapper, the same
// pattern the teacher's storage-*.go column encoders use around a
// raw io.Writer.
type byteWriter struct {
	w   io.Writer
	buf [8]byte
}

func newByteWriter(w io.Writer) *byteWriter { return &byteWriter{w: w} }

func (b *byteWriter) writeByte(v byte) error {
	b.buf[0] = v
	_, err := b.w.Write(b.buf[:1])
	return err
}

func (b *byteWriter) writeBool(v bool) error {
	if v {
		return b.writeByte(1)
	}
	return b.writeByte(0)
}

func (b *byteWriter) writeUint32(v uint32) error {
	binary.BigEndian.PutUint32(b.buf[:4], v)
	_, err := b.w.Write(b.buf[:4])
	return err
}

func (b *byteWriter) writeInt64(v int64) error {
	binary.BigEndian.PutUint64(b.buf[:8], uint64(v))
	_, err := b.w.Write(b.buf[:8])
	return err
}

func (b *byteWriter) writeFloat64(v float64) error {
	binary.BigEndian.PutUint64(b.buf[:8], math.Float64bits(v))
	_, err := b.w.Write(b.buf[:8])
	return err
}

func (b *byteWriter) writeBytes(v []byte) error {
	if err := b.writeUint32(uint32(len(v))); err != nil {
		return err
	}
	_, err := b.w.Write(v)
	return err
}

func (b *byteWriter) writeString(s string) error {
	return b.writeBytes([]byte(s))
}
