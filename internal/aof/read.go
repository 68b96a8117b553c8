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
package aof

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"

	"github.com/launix-de/redigo/internal/clock"
	"github.com/launix-de/redigo/internal/command"
	"github.com/launix-de/redigo/internal/proto"
	"github.com/launix-de/redigo/internal/snapshot"
)

// Result reports what Load actually did, so the caller can log it
// (spec.md §4.7 "truncated final frame ... rewound ... with a warning").
type Result struct {
	RecordsApplied int
	TruncatedBytes int // bytes discarded from an incomplete trailing record, 0 if none
}

// Load replays an append log written by Engine onto srv's keyspace by
// re-dispatching every canonical command through reg (spec.md §4.7). A
// leading embedded-snapshot preamble, if present, is loaded first via
// internal/snapshot. wallToMono converts the preamble's absolute
// expiry timestamps to the running process's monotonic clock, exactly
// as a standalone snapshot load would.
func Load(r io.Reader, reg *command.Registry, srv *command.Server, wallToMono func(int64) int64) (Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Result{}, err
	}
	if len(data) == 0 {
		return Result{}, nil
	}
	if len(data) < len(Magic)+5 {
		return Result{}, fmt.Errorf("aof: file too short")
	}
	if string(data[:len(Magic)]) != Magic {
		return Result{}, fmt.Errorf("aof: bad magic %q", data[:len(Magic)])
	}
	off := len(Magic)
	version := binary.BigEndian.Uint32(data[off:])
	off += 4
	if version != FormatVersion {
		return Result{}, fmt.Errorf("aof: unsupported format version %d", version)
	}
	marker := data[off]
	off++

	if marker == markerSnapshot {
		if off+4 > len(data) {
			return Result{}, fmt.Errorf("aof: truncated snapshot preamble length")
		}
		n := binary.BigEndian.Uint32(data[off:])
		off += 4
		if off+int(n)+4 > len(data) {
			return Result{}, fmt.Errorf("aof: truncated snapshot preamble body")
		}
		blob := data[off : off+int(n)]
		off += int(n)
		want := binary.BigEndian.Uint32(data[off:])
		off += 4
		if crc32.Checksum(blob, crcTable) != want {
			return Result{}, fmt.Errorf("aof: snapshot preamble checksum mismatch")
		}
		if err := snapshot.Load(bytes.NewReader(blob), srv.Keyspace, wallToMono); err != nil {
			return Result{}, fmt.Errorf("aof: loading embedded snapshot: %w", err)
		}
	}

	conn := &command.Conn{}
	applied := 0
	for off < len(data) {
		frame, consumed, perr := proto.Parse(data[off:], srv.Config.ProtoMaxBulkLenBytes)
		if perr != nil || consumed == 0 {
			return Result{RecordsApplied: applied, TruncatedBytes: len(data) - off}, nil
		}
		if off+consumed+4 > len(data) {
			return Result{RecordsApplied: applied, TruncatedBytes: len(data) - off}, nil
		}
		recordBytes := data[off : off+consumed]
		want := binary.BigEndian.Uint32(data[off+consumed:])
		if crc32.Checksum(recordBytes, crcTable) != want {
			return Result{RecordsApplied: applied, TruncatedBytes: len(data) - off}, nil
		}
		off += consumed + 4

		name, args, ok := frame.AsCommand()
		if !ok {
			continue
		}
		command.Dispatch(reg, srv, conn, name, args)
		applied++
	}
	return Result{RecordsApplied: applied}, nil
}

// LoadFile is a convenience wrapper for startup: a missing file is not
// an error (spec.md §4.7 load only runs "if both a snapshot and a log
// exist").
func LoadFile(path string, reg *command.Registry, srv *command.Server, clk clock.Source) (Result, error) {
	f, err := openForRead(path)
	if err != nil {
		return Result{}, err
	}
	if f == nil {
		return Result{}, nil
	}
	defer f.Close()
	wallToMono := func(wallMS int64) int64 {
		return clk.MonotonicMS() + (wallMS - clk.NowMS())
	}
	return Load(f, reg, srv, wallToMono)
}

func openForRead(path string) (*os.File, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	return f, err
}
