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

// Load reads a snapshot written by Write and replaces the entire
// contents of ks (spec.md §3 "a snapshot load replaces the entire
// keyspace atomically" and §4.6 "a checksum mismatch aborts startup").
// wallToMono converts the absolute wall-clock expiry each entry was
// stored with back into the running process's monotonic clock.
func Load(r io.Reader, ks *store.Keyspace, wallToMono func(wallMS int64) int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if len(data) < 8 {
		return fmt.Errorf("snapshot: file too short")
	}
	body, trailer := data[:len(data)-8], data[len(data)-8:]
	want := binary.BigEndian.Uint64(trailer)
	got := crc64.Checksum(body, crcTable)
	if got != want {
		return fmt.Errorf("snapshot: checksum mismatch (want %x got %x)", want, got)
	}

	br := newByteReader(body)
	magic, err := br.readString()
	if err != nil {
		return err
	}
	if magic != Magic {
		return fmt.Errorf("snapshot: bad magic %q", magic)
	}
	version, err := br.readUint32()
	if err != nil {
		return err
	}
	if version != FormatVersion {
		return fmt.Errorf("snapshot: unsupported format version %d", version)
	}
	numDBs, err := br.readUint32()
	if err != nil {
		return err
	}

	loaded := make([]map[string]*store.KeyEntry, numDBs)
	for i := range loaded {
		db, err := readDatabase(br, wallToMono)
		if err != nil {
			return fmt.Errorf("snapshot: database %d: %w", i, err)
		}
		loaded[i] = db
	}

	ks.FlushAll()
	for idx, entries := range loaded {
		if idx >= ks.NumDatabases() {
			break
		}
		db := ks.DB(idx)
		for key, e := range entries {
			db.Set(key, e.Value, false)
			if e.HasExpiry {
				db.SetExpire(key, e.ExpireAt, 0)
			}
		}
	}
	return nil
}

func readDatabase(br *byteReader, wallToMono func(int64) int64) (map[string]*store.KeyEntry, error) {
	if _, err := br.readUint32(); err != nil { // db index, validated by position not value
		return nil, err
	}
	count, err := br.readUint32()
	if err != nil {
		return nil, err
	}
	if _, err := br.readUint32(); err != nil { // expiring-size, advisory only
		return nil, err
	}
	compressed, err := br.readBytes()
	if err != nil {
		return nil, err
	}

	lzr := lz4.NewReader(bytes.NewReader(compressed))
	entryR := newByteReaderFromReader(lzr)
	out := make(map[string]*store.KeyEntry, count)
	for i := uint32(0); i < count; i++ {
		key, e, err := readEntry(entryR, wallToMono)
		if err != nil {
			return nil, err
		}
		out[key] = e
	}
	return out, nil
}

func readEntry(br *byteReader, wallToMono func(int64) int64) (string, *store.KeyEntry, error) {
	tag, err := br.readByte()
	if err != nil {
		return "", nil, err
	}
	key, err := br.readString()
	if err != nil {
		return "", nil, err
	}
	hasExpiry, err := br.readBool()
	if err != nil {
		return "", nil, err
	}
	var expireAt int64
	if hasExpiry {
		wallMS, err := br.readInt64()
		if err != nil {
			return "", nil, err
		}
		expireAt = wallToMono(wallMS)
	}
	val, err := readValue(br, tag)
	if err != nil {
		return "", nil, err
	}
	return key, &store.KeyEntry{Value: val, HasExpiry: hasExpiry, ExpireAt: expireAt}, nil
}

func readValue(br *byteReader, tag byte) (types.Value, error) {
	switch tag {
	case tagString:
		b, err := br.readBytes()
		if err != nil {
			return nil, err
		}
		return &types.String{B: b}, nil
	case tagList:
		n, err := br.readUint32()
		if err != nil {
			return nil, err
		}
		l := types.NewList()
		for i := uint32(0); i < n; i++ {
			b, err := br.readBytes()
			if err != nil {
				return nil, err
			}
			l.PushRight(b)
		}
		return l, nil
	case tagHash:
		n, err := br.readUint32()
		if err != nil {
			return nil, err
		}
		h := types.NewHash()
		for i := uint32(0); i < n; i++ {
			f, err := br.readString()
			if err != nil {
				return nil, err
			}
			v, err := br.readBytes()
			if err != nil {
				return nil, err
			}
			h.Set(f, v)
		}
		return h, nil
	case tagSet:
		n, err := br.readUint32()
		if err != nil {
			return nil, err
		}
		s := types.NewSet()
		for i := uint32(0); i < n; i++ {
			m, err := br.readString()
			if err != nil {
				return nil, err
			}
			s.Add(m)
		}
		return s, nil
	case tagZSet:
		n, err := br.readUint32()
		if err != nil {
			return nil, err
		}
		z := types.NewZSet()
		for i := uint32(0); i < n; i++ {
			m, err := br.readString()
			if err != nil {
				return nil, err
			}
			score, err := br.readFloat64()
			if err != nil {
				return nil, err
			}
			z.Set(m, score)
		}
		return z, nil
	case tagStream:
		lastMS, err := br.readInt64()
		if err != nil {
			return nil, err
		}
		lastSeq, err := br.readInt64()
		if err != nil {
			return nil, err
		}
		n, err := br.readUint32()
		if err != nil {
			return nil, err
		}
		st := types.NewStream()
		for i := uint32(0); i < n; i++ {
			ms, err := br.readInt64()
			if err != nil {
				return nil, err
			}
			seq, err := br.readInt64()
			if err != nil {
				return nil, err
			}
			nf, err := br.readUint32()
			if err != nil {
				return nil, err
			}
			fields := make([]string, nf)
			for j := uint32(0); j < nf; j++ {
				fields[j], err = br.readString()
				if err != nil {
					return nil, err
				}
			}
			st.Entries = append(st.Entries, types.StreamEntry{ID: types.StreamID{MS: ms, Seq: seq}, Fields: fields})
		}
		st.LastID = types.StreamID{MS: lastMS, Seq: lastSeq}
		return st, nil
	default:
		return nil, fmt.Errorf("snapshot: unknown value tag %d", tag)
	}
}

// byteReader is the mirror of byteWriter: a minimal binary.Read
// convenience wrapper. It can either read from a fixed in-memory
// buffer (tracking its own offset, used for the outer framing so the
// lz4 reader for one database can be handed the remaining bytes) or
// wrap an arbitrary io.Reader (used inside an lz4-decompressed section).
type byteReader struct {
	buf    []byte
	off    int
	inner  io.Reader
	useBuf bool
}

func newByteReader(buf []byte) *byteReader {
	return &byteReader{buf: buf, useBuf: true}
}

func newByteReaderFromReader(r io.Reader) *byteReader {
	return &byteReader{inner: r}
}

func (b *byteReader) Read(p []byte) (int, error) {
	if b.useBuf {
		if b.off >= len(b.buf) {
			return 0, io.EOF
		}
		n := copy(p, b.buf[b.off:])
		b.off += n
		return n, nil
	}
	return b.inner.Read(p)
}

func (b *byteReader) readFull(n int) ([]byte, error) {
	out := make([]byte, n)
	if _, err := io.ReadFull(b, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *byteReader) readByte() (byte, error) {
	out, err := b.readFull(1)
	if err != nil {
		return 0, err
	}
	return out[0], nil
}

func (b *byteReader) readBool() (bool, error) {
	v, err := b.readByte()
	return v != 0, err
}

func (b *byteReader) readUint32() (uint32, error) {
	out, err := b.readFull(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(out), nil
}

func (b *byteReader) readInt64() (int64, error) {
	out, err := b.readFull(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(out)), nil
}

func (b *byteReader) readFloat64() (float64, error) {
	out, err := b.readFull(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(out)), nil
}

func (b *byteReader) readBytes() ([]byte, error) {
	n, err := b.readUint32()
	if err != nil {
		return nil, err
	}
	return b.readFull(int(n))
}

func (b *byteReader) readString() (string, error) {
	v, err := b.readBytes()
	if err != nil {
		return "", err
	}
	return string(v), nil
}
