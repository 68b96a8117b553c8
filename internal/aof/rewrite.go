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
	"fmt"
	"os"
	"sync/atomic"

	"github.com/launix-de/redigo/internal/snapshot"
	"github.com/launix-de/redigo/internal/store"
)

// Rewrite runs BGREWRITEAOF synchronously: it encodes the current
// keyspace as an embedded snapshot preamble (spec.md §4.7's "minimum
// sequence of commands that would reconstruct it" is satisfied by the
// snapshot codec's own minimal per-key encoding, sparing a second,
// redundant "keyspace to SET/RPUSH/HSET... command list" traversal),
// then splices on whatever writes arrived while the preamble was being
// written, and finally renames the result over the live file.
func (e *Engine) Rewrite(ks *store.Keyspace, nowMono int64) error {
	if !atomic.CompareAndSwapInt32(&e.rewriting, 0, 1) {
		return fmt.Errorf("BUSY append only file rewrite already in progress")
	}

	var snap bytes.Buffer
	if err := snapshot.Write(&snap, ks, nowMono); err != nil {
		atomic.StoreInt32(&e.rewriting, 0)
		return err
	}

	tmp := e.path + ".rewrite.tmp"
	f, err := os.Create(tmp)
	if err != nil {
		atomic.StoreInt32(&e.rewriting, 0)
		return err
	}
	bw := bufio.NewWriter(f)
	if err := writeHeader(bw, markerSnapshot, snap.Bytes()); err != nil {
		f.Close()
		os.Remove(tmp)
		atomic.StoreInt32(&e.rewriting, 0)
		return err
	}

	// From here on the side log must be spliced and the live file
	// handle swapped in one uninterrupted critical section: releasing
	// the lock in between would let a write land in e.sideLog after it
	// was drained, and that write would never reach either file. The
	// rewriting flag is cleared before the unlock (defers run LIFO) so
	// no writer can observe "not rewriting" while the lock is still held.
	e.mu.Lock()
	defer e.mu.Unlock()
	defer atomic.StoreInt32(&e.rewriting, 0)

	if _, err := bw.Write(e.sideLog.Bytes()); err != nil {
		e.sideLog.Reset()
		f.Close()
		os.Remove(tmp)
		return err
	}
	e.sideLog.Reset()

	if err := bw.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	if e.f != nil {
		e.bw.Flush()
		e.f.Close()
	}
	if err := os.Rename(tmp, e.path); err != nil {
		return err
	}
	newF, err := os.OpenFile(e.path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	stat, _ := newF.Stat()
	e.f = newF
	e.bw = bufio.NewWriter(newF)
	e.curDB = 0
	if stat != nil {
		e.fileSize = stat.Size()
		e.baseSize = stat.Size()
	}
	return nil
}

// BGRewrite runs Rewrite on its own goroutine, matching BGSAVE's
// fire-and-forget shape; onDone (if non-nil) receives the outcome.
func (e *Engine) BGRewrite(ks *store.Keyspace, nowMono int64, onDone func(error)) error {
	if atomic.LoadInt32(&e.rewriting) == 1 {
		return fmt.Errorf("BUSY append only file rewrite already in progress")
	}
	go func() {
		err := e.Rewrite(ks, nowMono)
		if onDone != nil {
			onDone(err)
		}
	}()
	return nil
}
