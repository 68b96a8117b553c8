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

// Package command implements C3 of spec.md: the command registry and
// per-family handlers that turn a parsed proto.Frame command into a
// keyspace mutation/query plus a reply Frame.
package command

import (
	"github.com/launix-de/redigo/internal/clock"
	"github.com/launix-de/redigo/internal/config"
	"github.com/launix-de/redigo/internal/store"
)

// Propagator receives every effective write, already rendered as a
// command array, for the AOF and replication backlog (spec.md §4.7/§4.8).
// Read-only commands and no-op writes (e.g. SET NX on an existing key)
// must not call Propagate.
type Propagator interface {
	Propagate(db int, args []string)
}

// Conn is the minimal per-connection state a handler needs: which
// database it has SELECTed, its transaction queue, and its watched
// keys. The server package owns the concrete connection type; this is
// the narrow slice command handlers depend on.
type Conn struct {
	DB int

	Name string // CLIENT SETNAME

	// Transaction state (spec.md §4.5).
	InMulti bool
	Dirty   bool // a queued command had a non-existent-command/arity error: EXEC must abort
	Queue   []QueuedCommand
	Watches []Watch

	// IsReplicaLink marks a follower's link to its leader: write
	// commands arriving on it are applied even when replica-read-only
	// rejects writes from ordinary clients.
	IsReplicaLink bool

	// InExec is true while txn.Exec is running this connection's queued
	// commands. Real Redis runs blocking commands (BLPOP, WAIT, ...)
	// as a single non-blocking attempt inside MULTI/EXEC instead of
	// actually blocking; handlers check this flag to do the same,
	// which also sidesteps re-entering the non-reentrant serializer
	// lock Exec already holds for the whole transaction.
	InExec bool

	// Cancel, when non-nil, is closed by the server loop the moment
	// this connection's socket is observed to have gone away, letting
	// a blocking handler (BLPOP, WAIT, ...) stop waiting instead of
	// leaking its goroutine (spec.md §5 cancellation/timeouts).
	Cancel <-chan struct{}

	// ReplicaListenPort is captured off REPLCONF listening-port during
	// a replication handshake, so the PSYNC handoff (internal/repl)
	// knows what port to report back in ROLE/INFO without re-parsing
	// REPLCONF itself.
	ReplicaListenPort int

	// Authenticated gates every command but AUTH/HELLO/QUIT/PING/RESET when
	// config.RequirePass is set (SPEC_FULL.md CLI surface --requirepass;
	// full ACL user management stays out of scope per spec.md §1).
	Authenticated bool
}

type QueuedCommand struct {
	Name string
	Args []string
}

type Watch struct {
	DB      int
	Key     string
	Version uint64 // the version observed at WATCH time
}

// Server bundles the shared singletons every handler may need:
// the keyspace, server-wide config, the clock, and the write
// propagator. Handlers never reach into the server/replication
// packages directly, keeping internal/command import-light.
type Server struct {
	Keyspace *store.Keyspace
	Config   *config.View
	Clock    clock.Source
	Prop     Propagator

	// ReplOffset, when non-nil, reports the leader's current
	// replication stream byte offset for WAIT/REPLCONF GETACK
	// bookkeeping (spec.md §4.8); nil on a standalone node.
	ReplOffset func() int64

	// Hooks the server package wires in at startup, letting
	// SAVE/BGSAVE/BGREWRITEAOF/WAIT/REPLICAOF live in internal/command
	// without command importing internal/snapshot/aof/repl directly.
	Hooks ServerHooks
}

// ServerHooks is the seam between command dispatch and the
// persistence/replication subsystems, each of which is free to depend
// on internal/command's types while command stays free of them.
type ServerHooks struct {
	Save            func() error
	BGSave          func() error
	BGRewriteAOF    func() error
	WaitReplicas    func(numreplicas int, timeoutMS int64, cancel <-chan struct{}) int
	ReplicaOfNoOne  func()
	ReplicaOf       func(host string, port int) error
	IsReplica       func() bool
	ConnectedSlaves func() int
	Role            func() RoleInfo
}

func (s *Server) now() (wallMS, monoMS int64) {
	return s.Clock.NowMS(), s.Clock.MonotonicMS()
}

func (s *Server) db(c *Conn) *store.Database {
	return s.Keyspace.DB(c.DB)
}
