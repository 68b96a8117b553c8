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
package command

import (
	"strings"

	"github.com/launix-de/redigo/internal/errkind"
	"github.com/launix-de/redigo/internal/proto"
)

// Handler executes one command. It returns the reply frame and,
// whenever the call was an effective write, the command (possibly
// rewritten, e.g. EXPIRE -> PEXPIREAT) to hand to the propagator.
// A nil propagate slice means "nothing to propagate" (read-only, or a
// write that turned out to be a no-op).
type Handler func(s *Server, c *Conn, args []string) (reply proto.Frame, propagate []string)

// Arity follows the Redis convention: >=0 is an exact argument count
// (including the command name), a negative value -n means "at least n".
type Spec struct {
	Name     string
	Arity    int
	Handler  Handler
	WriteCmd bool // participates in MULTI dirtying rules and OOM/readonly checks
	NoScript bool // excluded from scripting contexts (reserved, SPEC_FULL.md has no scripting)

	// Exclusive marks a multi-key write (MSET, SINTERSTORE, RENAME, ...):
	// Dispatch takes the database's serializer in write mode for the
	// call, excluding every other effective writer (spec.md §5 shared-
	// resource policy (a)). Ordinary single-key writes leave this false
	// and get a shared RLock instead, which still excludes Exclusive
	// writers but allows single-key writers to run concurrently.
	Exclusive bool

	// Blocking marks BLPOP/BRPOP/BLMOVE/BRPOPLPUSH/BZPOPMIN/BZPOPMAX:
	// Dispatch does not hold the serializer across the call (the
	// handler would otherwise block with it held), and the handler
	// manages its own short-lived RLock per attempt instead.
	Blocking bool
}

type Registry struct {
	byName map[string]Spec
}

func NewRegistry() *Registry {
	r := &Registry{byName: make(map[string]Spec)}
	registerStringCommands(r)
	registerKeyCommands(r)
	registerListCommands(r)
	registerHashCommands(r)
	registerSetCommands(r)
	registerZSetCommands(r)
	registerStreamCommands(r)
	registerConnectionCommands(r)
	registerTransactionCommands(r)
	registerServerCommands(r)
	registerPersistenceCommands(r)
	registerReplicationCommands(r)
	return r
}

func (r *Registry) register(spec Spec) {
	r.byName[strings.ToUpper(spec.Name)] = spec
}

func (r *Registry) Lookup(name string) (Spec, bool) {
	s, ok := r.byName[strings.ToUpper(name)]
	return s, ok
}

func checkArity(spec Spec, argc int) bool {
	if spec.Arity >= 0 {
		return argc == spec.Arity
	}
	return argc >= -spec.Arity
}

// CheckArity reports whether argc (the full command length, including
// the command name) satisfies name's declared arity. Used by
// internal/txn to validate a command before queuing it, the same
// check Dispatch performs before running one immediately.
func (r *Registry) CheckArity(name string, argc int) bool {
	spec, ok := r.Lookup(name)
	return ok && checkArity(spec, argc)
}

// Dispatch looks up and arity-checks name, then runs its handler.
// name/args are the full command including the command name as
// args[0] would be in a raw RESP array, but here name is already
// split out, so argc below counts args of the whole command.
//
// It also owns the database's serializer lock (spec.md §5's "single
// keyspace serializer that excludes concurrent writers during the
// atomic segment"): every WriteCmd handler runs under at least an
// RLock, and Exclusive ones (MSET, RENAME, SINTERSTORE, ...) run under
// the full Lock, so an Exclusive call genuinely excludes every other
// effective writer rather than only the other Exclusive ones.
func Dispatch(r *Registry, s *Server, c *Conn, name string, args []string) (proto.Frame, []string) {
	return dispatch(r, s, c, name, args, true)
}

// DispatchNoLock runs a command without Dispatch's own per-command
// locking. It exists for internal/txn's Exec, which holds the
// database serializer's exclusive Lock itself across the whole
// check-then-run span of a transaction (spec.md §4.5 "WATCH
// correctness") and would deadlock if each queued command tried to
// take the same non-reentrant lock again.
func DispatchNoLock(r *Registry, s *Server, c *Conn, name string, args []string) (proto.Frame, []string) {
	return dispatch(r, s, c, name, args, false)
}

func dispatch(r *Registry, s *Server, c *Conn, name string, args []string, lock bool) (proto.Frame, []string) {
	spec, ok := r.Lookup(name)
	if !ok {
		return proto.ErrFrame(errkind.Err("unknown command '%s'", name).Error()), nil
	}
	if !checkArity(spec, len(args)+1) {
		return proto.ErrFrame(errkind.Err("wrong number of arguments for '%s' command", strings.ToLower(name)).Error()), nil
	}
	if lock && spec.WriteCmd && !spec.Blocking {
		sem := s.db(c).Serializer()
		if spec.Exclusive {
			sem.Lock()
			defer sem.Unlock()
		} else {
			sem.RLock()
			defer sem.RUnlock()
		}
	}
	return spec.Handler(s, c, args)
}
