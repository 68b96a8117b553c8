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
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/launix-de/redigo/internal/clock"
	"github.com/launix-de/redigo/internal/config"
	"github.com/launix-de/redigo/internal/proto"
	"github.com/launix-de/redigo/internal/timer"
)

// Engine owns the live append log file and implements
// command.Propagator: every effective write the dispatcher produces is
// handed to Propagate and becomes one RESP-framed, CRC-terminated
// record (spec.md §4.7).
type Engine struct {
	path   string
	clk    clock.Source
	policy config.AppendFsync

	mu        sync.Mutex
	f         *os.File
	bw        *bufio.Writer
	curDB     int
	fileSize  int64
	rewriting int32

	// sideLog buffers records written while a rewrite is in flight; it
	// is spliced onto the tail of the new file right before rename
	// (spec.md §4.7 "writes that arrive during a rewrite are buffered
	// into a side log").
	sideLog bytes.Buffer

	baseSize int64 // file size immediately after the last rewrite, for the growth-ratio trigger

	sched *timer.Scheduler
}

func NewEngine(dir, filename string, clk clock.Source, policy config.AppendFsync) *Engine {
	return &Engine{
		path:   filepath.Join(dir, filename),
		clk:    clk,
		policy: policy,
		sched:  timer.NewScheduler(),
	}
}

func (e *Engine) Path() string { return e.path }

// Open creates the file if it does not exist (writing the header) or
// appends to an existing one. It must be called once before Propagate.
func (e *Engine) Open() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	fresh := false
	if stat, err := os.Stat(e.path); err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		fresh = true
	} else {
		e.fileSize = stat.Size()
		e.baseSize = stat.Size()
	}

	f, err := os.OpenFile(e.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	e.f = f
	e.bw = bufio.NewWriter(f)
	e.curDB = 0

	if fresh {
		if err := writeHeader(e.bw, markerNone, nil); err != nil {
			return err
		}
		if err := e.bw.Flush(); err != nil {
			return err
		}
		if stat, err := f.Stat(); err == nil {
			e.fileSize = stat.Size()
			e.baseSize = stat.Size()
		}
	}

	if e.policy == config.FsyncEverysec {
		e.sched.ScheduleAfter(time.Second, e.everysecTick)
	}
	return nil
}

func (e *Engine) Close() error {
	e.sched.Stop()
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.bw != nil {
		if err := e.bw.Flush(); err != nil {
			e.f.Close()
			return err
		}
	}
	if e.f != nil {
		return e.f.Close()
	}
	return nil
}

func (e *Engine) everysecTick() {
	e.mu.Lock()
	if e.f != nil {
		fsyncFile(e.f)
	}
	e.mu.Unlock()
	e.sched.ScheduleAfter(time.Second, e.everysecTick)
}

// Propagate implements command.Propagator.
func (e *Engine) Propagate(db int, args []string) {
	if len(args) == 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	var buf bytes.Buffer
	if db != e.curDB {
		writeRecord(&buf, proto.BulkStrings([]string{"SELECT", itoa(db)}))
		e.curDB = db
	}
	writeRecord(&buf, proto.BulkStrings(args))

	if atomic.LoadInt32(&e.rewriting) == 1 {
		e.sideLog.Write(buf.Bytes())
	}
	n, _ := e.bw.Write(buf.Bytes())
	e.fileSize += int64(n)
	e.bw.Flush()
	if e.policy == config.FsyncAlways {
		fsyncFile(e.f)
	}
}

func itoa(n int) string { return fmt.Sprintf("%d", n) }

func writeRecord(w *bytes.Buffer, f proto.Frame) {
	start := w.Len()
	b := proto.Encode(nil, f)
	w.Write(b)
	sum := crc32.Checksum(w.Bytes()[start:], crcTable)
	var trailer [4]byte
	binary.BigEndian.PutUint32(trailer[:], sum)
	w.Write(trailer[:])
}

func writeHeader(w *bufio.Writer, marker byte, snapshot []byte) error {
	if _, err := w.WriteString(Magic); err != nil {
		return err
	}
	var versionBuf [4]byte
	binary.BigEndian.PutUint32(versionBuf[:], FormatVersion)
	if _, err := w.Write(versionBuf[:]); err != nil {
		return err
	}
	if err := w.WriteByte(marker); err != nil {
		return err
	}
	if marker != markerSnapshot {
		return nil
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(snapshot)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	if _, err := w.Write(snapshot); err != nil {
		return err
	}
	sum := crc32.Checksum(snapshot, crcTable)
	var crcBuf [4]byte
	binary.BigEndian.PutUint32(crcBuf[:], sum)
	_, err := w.Write(crcBuf[:])
	return err
}

// ShouldRewrite reports whether the log has grown enough past its size
// at the last rewrite to justify a BGREWRITEAOF, per
// auto-aof-rewrite-percentage/auto-aof-rewrite-min-size (spec.md §6).
func (e *Engine) ShouldRewrite(cfg *config.View) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fileSize < cfg.AutoAOFRewriteMinSizeBytes {
		return false
	}
	if e.baseSize == 0 {
		return true
	}
	growth := float64(e.fileSize-e.baseSize) / float64(e.baseSize) * 100
	return growth >= float64(cfg.AutoAOFRewritePercentage)
}
