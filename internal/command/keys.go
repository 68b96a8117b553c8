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

func registerKeyCommands(r *Registry) {
	r.register(Spec{Name: "DEL", Arity: -2, Handler: cmdDel, WriteCmd: true})
	r.register(Spec{Name: "UNLINK", Arity: -2, Handler: cmdDel, WriteCmd: true})
	r.register(Spec{Name: "EXISTS", Arity: -2, Handler: cmdExists})
	r.register(Spec{Name: "TYPE", Arity: 2, Handler: cmdType})
	r.register(Spec{Name: "EXPIRE", Arity: -3, Handler: cmdExpire, WriteCmd: true})
	r.register(Spec{Name: "PEXPIRE", Arity: -3, Handler: cmdPExpire, WriteCmd: true})
	r.register(Spec{Name: "EXPIREAT", Arity: -3, Handler: cmdExpireAt, WriteCmd: true})
	r.register(Spec{Name: "PEXPIREAT", Arity: -3, Handler: cmdPExpireAt, WriteCmd: true})
	r.register(Spec{Name: "TTL", Arity: 2, Handler: cmdTTL})
	r.register(Spec{Name: "PTTL", Arity: 2, Handler: cmdPTTL})
	r.register(Spec{Name: "PERSIST", Arity: 2, Handler: cmdPersist, WriteCmd: true})
	r.register(Spec{Name: "EXPIRETIME", Arity: 2, Handler: cmdExpireTime})
	r.register(Spec{Name: "PEXPIRETIME", Arity: 2, Handler: cmdPExpireTime})
	r.register(Spec{Name: "RENAME", Arity: 3, Handler: cmdRename, WriteCmd: true, Exclusive: true})
	r.register(Spec{Name: "RENAMENX", Arity: 3, Handler: cmdRenameNX, WriteCmd: true, Exclusive: true})
	r.register(Spec{Name: "KEYS", Arity: 2, Handler: cmdKeys})
	r.register(Spec{Name: "SCAN", Arity: -2, Handler: cmdScan})
	r.register(Spec{Name: "RANDOMKEY", Arity: 1, Handler: cmdRandomKey})
	r.register(Spec{Name: "DBSIZE", Arity: 1, Handler: cmdDBSize})
	r.register(Spec{Name: "COPY", Arity: -3, Handler: cmdCopy, WriteCmd: true})
}

func cmdDel(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	_, mono := s.now()
	db := s.db(c)
	removed := make([]string, 0, len(args))
	n := 0
	for _, k := range args {
		if db.Delete(k, mono) {
			n++
			removed = append(removed, k)
		}
	}
	if n == 0 {
		return proto.Int(0), nil
	}
	s.Keyspace.MarkDirty(uint64(n))
	return proto.Int(int64(n)), append([]string{"DEL"}, removed...)
}

func cmdExists(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	_, mono := s.now()
	db := s.db(c)
	n := 0
	for _, k := range args {
		if db.Exists(k, mono) {
			n++
		}
	}
	return proto.Int(int64(n)), nil
}

func cmdType(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	_, mono := s.now()
	db := s.db(c)
	e, ok := db.Get(args[0], mono)
	if !ok {
		return proto.SimpleStr("none"), nil
	}
	return proto.SimpleStr(e.Value.TypeName()), nil
}

func expireCommon(s *Server, c *Conn, args []string, ttlMillis, absolute bool) (proto.Frame, []string) {
	amount, ok := parseIntArg(args[1])
	if !ok {
		return notAnInteger(), nil
	}
	var nx, xx, gt, lt bool
	for _, flag := range args[2:] {
		switch upper(flag) {
		case "NX":
			nx = true
		case "XX":
			xx = true
		case "GT":
			gt = true
		case "LT":
			lt = true
		default:
			return errReply(errkind.Err("Unsupported option %s", flag)), nil
		}
	}
	db := s.db(c)
	_, mono := s.now()
	e, exists := db.Get(args[0], mono)
	if !exists {
		return proto.Int(0), nil
	}
	if nx && e.HasExpiry {
		return proto.Int(0), nil
	}
	if xx && !e.HasExpiry {
		return proto.Int(0), nil
	}
	deadline := expireAtMS(s, amount, ttlMillis, absolute)
	if gt && e.HasExpiry && deadline <= e.ExpireAt {
		return proto.Int(0), nil
	}
	if lt && e.HasExpiry && deadline >= e.ExpireAt {
		return proto.Int(0), nil
	}
	if deadline <= mono {
		db.Delete(args[0], mono)
		s.Keyspace.MarkDirty(1)
		return proto.Int(1), []string{"DEL", args[0]}
	}
	db.SetExpire(args[0], deadline, mono)
	s.Keyspace.MarkDirty(1)
	wall, _ := s.now()
	return proto.Int(1), []string{"PEXPIREAT", args[0], itoa(deadline - mono + wall)}
}

func cmdExpire(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	return expireCommon(s, c, args, false, false)
}
func cmdPExpire(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	return expireCommon(s, c, args, true, false)
}
func cmdExpireAt(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	return expireCommon(s, c, args, false, true)
}
func cmdPExpireAt(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	return expireCommon(s, c, args, true, true)
}

func ttlCommon(s *Server, c *Conn, key string, millis bool) proto.Frame {
	db := s.db(c)
	_, mono := s.now()
	e, exists := db.Get(key, mono)
	if !exists {
		return proto.Int(-2)
	}
	if !e.HasExpiry {
		return proto.Int(-1)
	}
	remaining := e.ExpireAt - mono
	if millis {
		return proto.Int(remaining)
	}
	return proto.Int((remaining + 999) / 1000)
}

func cmdTTL(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	return ttlCommon(s, c, args[0], false), nil
}
func cmdPTTL(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	return ttlCommon(s, c, args[0], true), nil
}

func cmdPersist(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	db := s.db(c)
	_, mono := s.now()
	if !db.ClearExpire(args[0], mono) {
		return proto.Int(0), nil
	}
	s.Keyspace.MarkDirty(1)
	return proto.Int(1), []string{"PERSIST", args[0]}
}

func expireTimeCommon(s *Server, c *Conn, key string, millis bool) proto.Frame {
	db := s.db(c)
	wall, mono := s.now()
	e, exists := db.Get(key, mono)
	if !exists {
		return proto.Int(-2)
	}
	if !e.HasExpiry {
		return proto.Int(-1)
	}
	targetWall := e.ExpireAt - mono + wall
	if millis {
		return proto.Int(targetWall)
	}
	return proto.Int(targetWall / 1000)
}

func cmdExpireTime(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	return expireTimeCommon(s, c, args[0], false), nil
}
func cmdPExpireTime(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	return expireTimeCommon(s, c, args[0], true), nil
}

func cmdRename(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	db := s.db(c)
	_, mono := s.now()
	e, exists := db.Get(args[0], mono)
	if !exists {
		return errReply(errkind.Err("no such key")), nil
	}
	db.Set(args[1], e.Value, false)
	if e.HasExpiry {
		db.SetExpire(args[1], e.ExpireAt, mono)
	}
	db.Delete(args[0], mono)
	s.Keyspace.MarkDirty(1)
	return proto.OK(), []string{"RENAME", args[0], args[1]}
}

func cmdRenameNX(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	db := s.db(c)
	_, mono := s.now()
	src, exists := db.Get(args[0], mono)
	if !exists {
		return errReply(errkind.Err("no such key")), nil
	}
	if db.Exists(args[1], mono) {
		return proto.Int(0), nil
	}
	db.Set(args[1], src.Value, false)
	if src.HasExpiry {
		db.SetExpire(args[1], src.ExpireAt, mono)
	}
	db.Delete(args[0], mono)
	s.Keyspace.MarkDirty(1)
	return proto.Int(1), []string{"RENAME", args[0], args[1]}
}

func cmdKeys(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	_, mono := s.now()
	db := s.db(c)
	return proto.BulkStrings(db.KeysMatching(args[0], mono)), nil
}

func cmdScan(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	cursor, ok := parseUintArg(args[0])
	if !ok {
		return errReply(errkind.Err("invalid cursor")), nil
	}
	pattern := ""
	count := 10
	for i := 1; i < len(args); i++ {
		switch upper(args[i]) {
		case "MATCH":
			i++
			if i >= len(args) {
				return errReply(errkind.Err("syntax error")), nil
			}
			pattern = args[i]
		case "COUNT":
			i++
			if i >= len(args) {
				return errReply(errkind.Err("syntax error")), nil
			}
			n, ok := parseIntArg(args[i])
			if !ok {
				return notAnInteger(), nil
			}
			count = int(n)
		case "TYPE":
			i++ // accepted but not filtered on in this implementation
		default:
			return errReply(errkind.Err("syntax error")), nil
		}
	}
	_, mono := s.now()
	db := s.db(c)
	res := db.Scan(cursor, count, pattern, mono)
	return proto.ArraySlice([]proto.Frame{
		proto.BulkStr(itoa(int64(res.Cursor))),
		proto.BulkStrings(res.Keys),
	}), nil
}

func cmdRandomKey(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	_, mono := s.now()
	db := s.db(c)
	k, ok := db.RandomKey(mono)
	if !ok {
		return proto.NilBulk(), nil
	}
	return proto.BulkStr(k), nil
}

func cmdDBSize(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	_, mono := s.now()
	return proto.Int(int64(s.db(c).DBSize(mono))), nil
}

func cmdCopy(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	destDB := c.DB
	replace := false
	for i := 2; i < len(args); i++ {
		switch upper(args[i]) {
		case "REPLACE":
			replace = true
		case "DB":
			i++
			if i >= len(args) {
				return errReply(errkind.Err("syntax error")), nil
			}
			n, ok := parseIntArg(args[i])
			if !ok {
				return notAnInteger(), nil
			}
			destDB = int(n)
		default:
			return errReply(errkind.Err("syntax error")), nil
		}
	}
	srcDB := s.db(c)
	dstDB := s.Keyspace.DB(destDB)
	if dstDB == nil {
		return errReply(errkind.Err("DB index is out of range")), nil
	}
	_, mono := s.now()
	e, exists := srcDB.Get(args[0], mono)
	if !exists {
		return proto.Int(0), nil
	}
	if !replace && dstDB.Exists(args[1], mono) {
		return proto.Int(0), nil
	}
	dstDB.Set(args[1], e.Value.Clone(), false)
	if e.HasExpiry {
		dstDB.SetExpire(args[1], e.ExpireAt, mono)
	}
	s.Keyspace.MarkDirty(1)
	return proto.Int(1), append([]string{"COPY"}, args...)
}
