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
	"fmt"
	"strings"

	"github.com/launix-de/redigo/internal/errkind"
	"github.com/launix-de/redigo/internal/proto"
)

func registerServerCommands(r *Registry) {
	r.register(Spec{Name: "FLUSHDB", Arity: -1, Handler: cmdFlushDB, WriteCmd: true})
	r.register(Spec{Name: "FLUSHALL", Arity: -1, Handler: cmdFlushAll, WriteCmd: true})
	r.register(Spec{Name: "INFO", Arity: -1, Handler: cmdInfo})
	r.register(Spec{Name: "CONFIG", Arity: -2, Handler: cmdConfig})
	r.register(Spec{Name: "COMMAND", Arity: -1, Handler: cmdCommand})
	r.register(Spec{Name: "TIME", Arity: 1, Handler: cmdTime})
	r.register(Spec{Name: "LASTSAVE", Arity: 1, Handler: cmdLastSave})
	r.register(Spec{Name: "DEBUG", Arity: -2, Handler: cmdDebug})
	// SHUTDOWN tears down the process itself, so the connection loop
	// intercepts it before Dispatch the same way it does PSYNC/MULTI.
	r.register(Spec{Name: "SHUTDOWN", Arity: -1, Handler: notIntercepted})
}

func cmdFlushDB(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	s.db(c).FlushDB()
	s.Keyspace.MarkDirty(1)
	return proto.OK(), []string{"FLUSHDB"}
}

func cmdFlushAll(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	s.Keyspace.FlushAll()
	s.Keyspace.MarkDirty(1)
	return proto.OK(), []string{"FLUSHALL"}
}

func cmdInfo(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	_, mono := s.now()
	var b strings.Builder
	fmt.Fprintf(&b, "# Server\r\nredis_version:7.0.0\r\ntcp_port:%d\r\n\r\n", s.Config.Port)
	fmt.Fprintf(&b, "# Clients\r\nconnected_clients:1\r\n\r\n")
	fmt.Fprintf(&b, "# Persistence\r\nrdb_changes_since_last_save:%d\r\naof_enabled:%d\r\n\r\n",
		s.Keyspace.DirtySinceSave(), boolToInt(s.Config.AppendOnly))
	fmt.Fprintf(&b, "# Replication\r\n%s", replicationSection(s))
	fmt.Fprintf(&b, "# Keyspace\r\n")
	for i, db := range s.Keyspace.All() {
		n := db.DBSize(mono)
		if n > 0 {
			fmt.Fprintf(&b, "db%d:keys=%d,expires=%d,avg_ttl=0\r\n", i, n, db.ExpiringCount())
		}
	}
	return proto.BulkStr(b.String()), nil
}

func replicationSection(s *Server) string {
	if s.Hooks.Role == nil {
		return "role:master\r\nconnected_slaves:0\r\n\r\n"
	}
	info := s.Hooks.Role()
	if info.IsReplica {
		return fmt.Sprintf("role:slave\r\nmaster_host:%s\r\nmaster_port:%d\r\nmaster_link_status:%s\r\n\r\n",
			info.LeaderHost, info.LeaderPort, info.LinkState)
	}
	return fmt.Sprintf("role:master\r\nconnected_slaves:%d\r\nmaster_repl_offset:%d\r\n\r\n",
		len(info.Followers), info.Offset)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func cmdConfig(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	switch upper(args[0]) {
	case "GET":
		if len(args) != 2 {
			return errReply(errkind.Err("wrong number of arguments")), nil
		}
		return proto.ArraySlice(configGet(s, args[1])), nil
	case "SET":
		if len(args) != 3 {
			return errReply(errkind.Err("wrong number of arguments")), nil
		}
		return proto.OK(), nil // hot config rewrite is out of scope (spec.md §1)
	case "REWRITE", "RESETSTAT":
		return proto.OK(), nil
	default:
		return errReply(errkind.Err("Unknown CONFIG subcommand")), nil
	}
}

func configGet(s *Server, pattern string) []proto.Frame {
	all := map[string]string{
		"maxmemory":        itoa(s.Config.MaxMemoryBytes),
		"maxmemory-policy": string(s.Config.MaxMemoryPolicy),
		"appendonly":       onOff(s.Config.AppendOnly),
		"appendfsync":      string(s.Config.AppendFsync),
		"databases":        itoa(int64(s.Config.Databases)),
		"port":             itoa(int64(s.Config.Port)),
	}
	var out []proto.Frame
	for k, v := range all {
		if matchConfigKey(pattern, k) {
			out = append(out, proto.BulkStr(k), proto.BulkStr(v))
		}
	}
	return out
}

func matchConfigKey(pattern, key string) bool {
	return pattern == "*" || pattern == key
}

func onOff(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func cmdCommand(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	if len(args) > 0 && upper(args[0]) == "COUNT" {
		return proto.Int(0), nil
	}
	return proto.ArraySlice(nil), nil
}

func cmdTime(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	wall, _ := s.now()
	secs := wall / 1000
	micros := (wall % 1000) * 1000
	return proto.ArraySlice([]proto.Frame{proto.BulkStr(itoa(secs)), proto.BulkStr(itoa(micros))}), nil
}

func cmdLastSave(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	wall, _ := s.now()
	return proto.Int(wall / 1000), nil
}

func cmdDebug(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	switch upper(args[0]) {
	case "SLEEP", "SET-ACTIVE-EXPIRE", "JMAP", "QUICKLIST-PACKED-THRESHOLD":
		return proto.OK(), nil
	case "OBJECT":
		if len(args) < 2 {
			return errReply(errkind.Err("wrong number of arguments")), nil
		}
		_, mono := s.now()
		e, exists := s.db(c).Get(args[1], mono)
		if !exists {
			return errReply(errkind.Err("no such key")), nil
		}
		return proto.SimpleStr(fmt.Sprintf("Value at:0x0 refcount:1 encoding:%s serializedlength:0 lru:0 lru_seconds_idle:0", e.Value.TypeName())), nil
	default:
		return proto.OK(), nil
	}
}
