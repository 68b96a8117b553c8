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

// Package txn implements MULTI/EXEC/DISCARD/WATCH/UNWATCH (spec.md
// §4.5). The connection loop (internal/server) must intercept these
// five command names before handing anything to command.Dispatch;
// everything else a client sends while InMulti is queued here instead
// of being dispatched immediately.
package txn

import (
	"sort"
	"sync"

	"github.com/launix-de/redigo/internal/command"
	"github.com/launix-de/redigo/internal/errkind"
	"github.com/launix-de/redigo/internal/proto"
)

// Multi starts a transaction. Nested MULTI is an error, matching Redis.
func Multi(c *command.Conn) proto.Frame {
	if c.InMulti {
		return errFrame("MULTI calls can not be nested")
	}
	c.InMulti = true
	c.Dirty = false
	c.Queue = nil
	return proto.OK()
}

// Discard abandons a pending transaction.
func Discard(c *command.Conn) proto.Frame {
	if !c.InMulti {
		return errFrame("DISCARD without MULTI")
	}
	reset(c)
	return proto.OK()
}

// Queue validates name/args against the registry and appends it to the
// transaction queue, the same arity/existence check Dispatch performs,
// so a bad command marks the transaction dirty (EXECABORT) without
// actually running anything (spec.md §4.5 edge case).
func Queue(r *command.Registry, c *command.Conn, name string, args []string) proto.Frame {
	if _, ok := r.Lookup(name); !ok {
		c.Dirty = true
		return errFrame("unknown command '" + name + "'")
	}
	if !r.CheckArity(name, len(args)+1) {
		c.Dirty = true
		return errFrame("wrong number of arguments for '" + name + "' command")
	}
	c.Queue = append(c.Queue, command.QueuedCommand{Name: name, Args: args})
	return proto.SimpleStr("QUEUED")
}

// Watch records the version each key currently has (0 for an absent
// key) so Exec can detect whether any of them changed since.
func Watch(s *command.Server, c *command.Conn, keys []string) proto.Frame {
	if c.InMulti {
		return errFrame("WATCH inside MULTI is not allowed")
	}
	db := s.Keyspace.DB(c.DB)
	_, mono := nowPair(s)
	for _, key := range keys {
		var version uint64
		if e, ok := db.Get(key, mono); ok {
			version = e.Version
		}
		c.Watches = append(c.Watches, command.Watch{DB: c.DB, Key: key, Version: version})
	}
	return proto.OK()
}

func Unwatch(c *command.Conn) proto.Frame {
	c.Watches = nil
	return proto.OK()
}

// Exec runs every queued command in order and returns the array of
// replies, or a nil array if the transaction was aborted (a dirty
// queue) or invalidated (a watched key changed). propagate carries the
// rewritten write commands from every queued command that actually
// wrote something, in queue order, without MULTI/EXEC markers: the
// caller wraps them for the AOF/replication stream (spec.md §4.5, §4.7).
//
// Between the watch check and the last queued command finishing, no
// other writer may interleave on any database the transaction touches
// (spec.md §4.5 "WATCH correctness", restated as a testable property
// in §8): Exec takes every touched database's serializer in exclusive
// mode for the whole span and runs the queue with DispatchNoLock so it
// never re-acquires the same, non-reentrant lock a second time.
func Exec(r *command.Registry, s *command.Server, c *command.Conn) (proto.Frame, [][]string) {
	if !c.InMulti {
		return errFrame("EXEC without MULTI"), nil
	}
	queue := c.Queue
	watches := c.Watches
	dirty := c.Dirty
	reset(c)

	if dirty {
		return proto.ErrFrame(errkind.ExecAbortErr().Error()), nil
	}

	dbIndexes := touchedDatabases(c.DB, watches)
	sems := make([]*sync.RWMutex, len(dbIndexes))
	for i, idx := range dbIndexes {
		sems[i] = s.Keyspace.DB(idx).Serializer()
		sems[i].Lock()
	}
	defer func() {
		for i := len(sems) - 1; i >= 0; i-- {
			sems[i].Unlock()
		}
	}()

	if watchesBroken(s, watches) {
		return proto.NilArray(), nil
	}

	c.InExec = true
	defer func() { c.InExec = false }()

	replies := make([]proto.Frame, 0, len(queue))
	var propagate [][]string
	for _, qc := range queue {
		reply, prop := command.DispatchNoLock(r, s, c, qc.Name, qc.Args)
		replies = append(replies, reply)
		if prop != nil {
			propagate = append(propagate, prop)
		}
	}
	return proto.ArraySlice(replies), propagate
}

// touchedDatabases returns the sorted, de-duplicated set of database
// indexes Exec must lock: the connection's current database (every
// queued command runs against it) plus any database a WATCH recorded
// (WATCH can run against a different SELECTed database than the EXEC
// that follows it). Sorted order is what lets two concurrent EXECs
// with overlapping database sets lock without deadlocking each other.
func touchedDatabases(currentDB int, watches []command.Watch) []int {
	seen := map[int]bool{currentDB: true}
	for _, w := range watches {
		seen[w.DB] = true
	}
	out := make([]int, 0, len(seen))
	for idx := range seen {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

func watchesBroken(s *command.Server, watches []command.Watch) bool {
	_, mono := nowPair(s)
	for _, w := range watches {
		db := s.Keyspace.DB(w.DB)
		var current uint64
		if e, ok := db.Get(w.Key, mono); ok {
			current = e.Version
		}
		if current != w.Version {
			return true
		}
	}
	return false
}

func nowPair(s *command.Server) (int64, int64) {
	return s.Clock.NowMS(), s.Clock.MonotonicMS()
}

func reset(c *command.Conn) {
	c.InMulti = false
	c.Dirty = false
	c.Queue = nil
	c.Watches = nil
}

func errFrame(msg string) proto.Frame {
	return proto.ErrFrame(errkind.Err("%s", msg).Error())
}
