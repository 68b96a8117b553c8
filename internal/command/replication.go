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
	"github.com/launix-de/redigo/internal/errkind"
	"github.com/launix-de/redigo/internal/proto"
)

// PSYNC is not an ordinary request/reply command (it hands the
// connection off to a streaming mode), so it is intercepted by the
// server's connection loop the same way MULTI/EXEC are; REPLICAOF,
// SLAVEOF, WAIT, REPLCONF and ROLE are plain handlers here.
func registerReplicationCommands(r *Registry) {
	r.register(Spec{Name: "REPLICAOF", Arity: 3, Handler: cmdReplicaOf})
	r.register(Spec{Name: "SLAVEOF", Arity: 3, Handler: cmdReplicaOf})
	r.register(Spec{Name: "WAIT", Arity: 3, Handler: cmdWait, Blocking: true})
	r.register(Spec{Name: "PSYNC", Arity: -1, Handler: notIntercepted})
	r.register(Spec{Name: "REPLCONF", Arity: -1, Handler: cmdReplConf})
	r.register(Spec{Name: "ROLE", Arity: 1, Handler: cmdRole})
}

// FollowerInfo is one row of a leader's ROLE reply (SPEC_FULL.md C8
// expansion: spec.md §6 requires ROLE but does not specify its payload).
type FollowerInfo struct {
	Addr      string
	Port      int
	AckOffset int64
}

// RoleInfo is the full state ROLE reports, filled in by whichever of
// internal/repl's Leader/FollowerLink is active.
type RoleInfo struct {
	IsReplica bool
	Offset    int64

	// leader fields
	Followers []FollowerInfo

	// follower fields
	LeaderHost string
	LeaderPort int
	LinkState  string // "connect", "sync", "connected"
}

func cmdRole(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	if s.Hooks.Role == nil {
		return proto.ArraySlice([]proto.Frame{proto.BulkStr("master"), proto.Int(0), proto.ArraySlice(nil)}), nil
	}
	info := s.Hooks.Role()
	if info.IsReplica {
		return proto.ArraySlice([]proto.Frame{
			proto.BulkStr("slave"),
			proto.BulkStr(info.LeaderHost),
			proto.Int(int64(info.LeaderPort)),
			proto.BulkStr(info.LinkState),
			proto.Int(info.Offset),
		}), nil
	}
	followers := make([]proto.Frame, len(info.Followers))
	for i, f := range info.Followers {
		followers[i] = proto.ArraySlice([]proto.Frame{
			proto.BulkStr(f.Addr), proto.BulkStr(itoa(int64(f.Port))), proto.BulkStr(itoa(f.AckOffset)),
		})
	}
	return proto.ArraySlice([]proto.Frame{proto.BulkStr("master"), proto.Int(info.Offset), proto.ArraySlice(followers)}), nil
}

func cmdReplicaOf(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	if upper(args[0]) == "NO" && upper(args[1]) == "ONE" {
		if s.Hooks.ReplicaOfNoOne != nil {
			s.Hooks.ReplicaOfNoOne()
		}
		return proto.OK(), nil
	}
	n, ok := parseIntArg(args[1])
	if !ok {
		return notAnInteger(), nil
	}
	if s.Hooks.ReplicaOf == nil {
		return errReply(errkind.Err("replication is not configured")), nil
	}
	if err := s.Hooks.ReplicaOf(args[0], int(n)); err != nil {
		return errReply(errkind.Err("%s", err.Error())), nil
	}
	return proto.OK(), nil
}

func cmdWait(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	numreplicas, ok1 := parseIntArg(args[0])
	timeout, ok2 := parseIntArg(args[1])
	if !ok1 || !ok2 {
		return notAnInteger(), nil
	}
	if s.Hooks.WaitReplicas == nil {
		return proto.Int(0), nil
	}
	reached := s.Hooks.WaitReplicas(int(numreplicas), timeout, c.Cancel)
	return proto.Int(int64(reached)), nil
}

// REPLCONF ACK/GETACK are handled by the replication link reader
// directly (they arrive out-of-band on an already-established PSYNC
// stream); REPLCONF listening-port/capa from a prospective replica
// during the initial handshake are accepted here.
func cmdReplConf(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	if len(args) >= 2 && upper(args[0]) == "LISTENING-PORT" {
		if p, ok := parseIntArg(args[1]); ok {
			c.ReplicaListenPort = int(p)
		}
	}
	return proto.OK(), nil
}
