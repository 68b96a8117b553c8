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
	"github.com/launix-de/redigo/internal/glob"
	"github.com/launix-de/redigo/internal/proto"
	"github.com/launix-de/redigo/internal/types"
)

func registerHashCommands(r *Registry) {
	r.register(Spec{Name: "HSET", Arity: -4, Handler: cmdHSet, WriteCmd: true})
	r.register(Spec{Name: "HSETNX", Arity: 4, Handler: cmdHSetNX, WriteCmd: true})
	r.register(Spec{Name: "HGET", Arity: 3, Handler: cmdHGet})
	r.register(Spec{Name: "HMGET", Arity: -3, Handler: cmdHMGet})
	r.register(Spec{Name: "HMSET", Arity: -4, Handler: cmdHMSet, WriteCmd: true})
	r.register(Spec{Name: "HDEL", Arity: -3, Handler: cmdHDel, WriteCmd: true})
	r.register(Spec{Name: "HLEN", Arity: 2, Handler: cmdHLen})
	r.register(Spec{Name: "HEXISTS", Arity: 3, Handler: cmdHExists})
	r.register(Spec{Name: "HKEYS", Arity: 2, Handler: cmdHKeys})
	r.register(Spec{Name: "HVALS", Arity: 2, Handler: cmdHVals})
	r.register(Spec{Name: "HGETALL", Arity: 2, Handler: cmdHGetAll})
	r.register(Spec{Name: "HINCRBY", Arity: 4, Handler: cmdHIncrBy, WriteCmd: true})
	r.register(Spec{Name: "HINCRBYFLOAT", Arity: 4, Handler: cmdHIncrByFloat, WriteCmd: true})
	r.register(Spec{Name: "HSCAN", Arity: -3, Handler: cmdHScan})
	r.register(Spec{Name: "HRANDFIELD", Arity: -2, Handler: cmdHRandField})
}

func cmdHSet(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	if (len(args)-1)%2 != 0 {
		return errReply(errkind.Err("wrong number of arguments for HMSET")), nil
	}
	_, mono := s.now()
	db := s.db(c)
	h, exists, isHash := fetchHash(db, args[0], mono)
	if exists && !isHash {
		return wrongType(), nil
	}
	if !exists {
		h = types.NewHash()
		db.Set(args[0], h, false)
	}
	created := 0
	for i := 1; i+1 < len(args); i += 2 {
		if h.Set(args[i], []byte(args[i+1])) {
			created++
		}
	}
	db.TouchVersion(args[0])
	s.Keyspace.MarkDirty(1)
	return proto.Int(int64(created)), append([]string{"HSET", args[0]}, args[1:]...)
}

func cmdHSetNX(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	_, mono := s.now()
	db := s.db(c)
	h, exists, isHash := fetchHash(db, args[0], mono)
	if exists && !isHash {
		return wrongType(), nil
	}
	if exists {
		if _, has := h.Get(args[1]); has {
			return proto.Int(0), nil
		}
	} else {
		h = types.NewHash()
		db.Set(args[0], h, false)
	}
	h.Set(args[1], []byte(args[2]))
	db.TouchVersion(args[0])
	s.Keyspace.MarkDirty(1)
	return proto.Int(1), []string{"HSET", args[0], args[1], args[2]}
}

func cmdHMSet(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	reply, propagate := cmdHSet(s, c, args)
	if reply.Type == proto.Error {
		return reply, propagate
	}
	return proto.OK(), propagate
}

func cmdHGet(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	_, mono := s.now()
	db := s.db(c)
	h, exists, isHash := fetchHash(db, args[0], mono)
	if exists && !isHash {
		return wrongType(), nil
	}
	if !exists {
		return proto.NilBulk(), nil
	}
	v, ok := h.Get(args[1])
	return bulkReply(v, ok), nil
}

func cmdHMGet(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	_, mono := s.now()
	db := s.db(c)
	h, exists, isHash := fetchHash(db, args[0], mono)
	if exists && !isHash {
		return wrongType(), nil
	}
	fields := args[1:]
	items := make([]proto.Frame, len(fields))
	for i, f := range fields {
		if !exists {
			items[i] = proto.NilBulk()
			continue
		}
		v, ok := h.Get(f)
		items[i] = bulkReply(v, ok)
	}
	return proto.ArraySlice(items), nil
}

func cmdHDel(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	_, mono := s.now()
	db := s.db(c)
	h, exists, isHash := fetchHash(db, args[0], mono)
	if exists && !isHash {
		return wrongType(), nil
	}
	if !exists {
		return proto.Int(0), nil
	}
	n := h.Del(args[1:]...)
	if n == 0 {
		return proto.Int(0), nil
	}
	if h.Len() == 0 {
		db.Delete(args[0], mono)
	} else {
		db.TouchVersion(args[0])
	}
	s.Keyspace.MarkDirty(1)
	return proto.Int(int64(n)), append([]string{"HDEL", args[0]}, args[1:]...)
}

func cmdHLen(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	_, mono := s.now()
	db := s.db(c)
	h, exists, isHash := fetchHash(db, args[0], mono)
	if exists && !isHash {
		return wrongType(), nil
	}
	if !exists {
		return proto.Int(0), nil
	}
	return proto.Int(int64(h.Len())), nil
}

func cmdHExists(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	_, mono := s.now()
	db := s.db(c)
	h, exists, isHash := fetchHash(db, args[0], mono)
	if exists && !isHash {
		return wrongType(), nil
	}
	if !exists {
		return proto.Int(0), nil
	}
	_, has := h.Get(args[1])
	return boolReply(has), nil
}

func cmdHKeys(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	_, mono := s.now()
	db := s.db(c)
	h, exists, isHash := fetchHash(db, args[0], mono)
	if exists && !isHash {
		return wrongType(), nil
	}
	if !exists {
		return proto.ArraySlice(nil), nil
	}
	return proto.BulkStrings(h.Fields()), nil
}

func cmdHVals(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	_, mono := s.now()
	db := s.db(c)
	h, exists, isHash := fetchHash(db, args[0], mono)
	if exists && !isHash {
		return wrongType(), nil
	}
	if !exists {
		return proto.ArraySlice(nil), nil
	}
	fields := h.Fields()
	items := make([]proto.Frame, len(fields))
	for i, f := range fields {
		v, _ := h.Get(f)
		items[i] = proto.Bulk(v)
	}
	return proto.ArraySlice(items), nil
}

func cmdHGetAll(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	_, mono := s.now()
	db := s.db(c)
	h, exists, isHash := fetchHash(db, args[0], mono)
	if exists && !isHash {
		return wrongType(), nil
	}
	if !exists {
		return proto.ArraySlice(nil), nil
	}
	fields := h.Fields()
	items := make([]proto.Frame, 0, len(fields)*2)
	for _, f := range fields {
		v, _ := h.Get(f)
		items = append(items, proto.BulkStr(f), proto.Bulk(v))
	}
	return proto.ArraySlice(items), nil
}

func cmdHIncrBy(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	delta, ok := parseIntArg(args[2])
	if !ok {
		return notAnInteger(), nil
	}
	_, mono := s.now()
	db := s.db(c)
	h, exists, isHash := fetchHash(db, args[0], mono)
	if exists && !isHash {
		return wrongType(), nil
	}
	if !exists {
		h = types.NewHash()
		db.Set(args[0], h, false)
	}
	var cur int64
	if v, has := h.Get(args[1]); has {
		s := types.NewString(v)
		n, err := s.ParseInt()
		if err != nil {
			return notAnInteger(), nil
		}
		cur = n
	}
	next := cur + delta
	h.Set(args[1], []byte(itoa(next)))
	db.TouchVersion(args[0])
	s.Keyspace.MarkDirty(1)
	return proto.Int(next), []string{"HSET", args[0], args[1], itoa(next)}
}

func cmdHIncrByFloat(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	delta, err := parseFloatArg(args[2])
	if err != nil {
		return notAFloat(), nil
	}
	_, mono := s.now()
	db := s.db(c)
	h, exists, isHash := fetchHash(db, args[0], mono)
	if exists && !isHash {
		return wrongType(), nil
	}
	if !exists {
		h = types.NewHash()
		db.Set(args[0], h, false)
	}
	var cur float64
	if v, has := h.Get(args[1]); has {
		f, err := types.NewString(v).ParseFloat()
		if err != nil {
			return notAFloat(), nil
		}
		cur = f
	}
	next := cur + delta
	rendered := types.FormatFloat(next)
	h.Set(args[1], []byte(rendered))
	db.TouchVersion(args[0])
	s.Keyspace.MarkDirty(1)
	return proto.BulkStr(rendered), []string{"HSET", args[0], args[1], rendered}
}

func cmdHScan(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	_, mono := s.now()
	db := s.db(c)
	h, exists, isHash := fetchHash(db, args[0], mono)
	if exists && !isHash {
		return wrongType(), nil
	}
	if !exists {
		return proto.ArraySlice([]proto.Frame{proto.BulkStr("0"), proto.ArraySlice(nil)}), nil
	}
	pattern := ""
	for i := 2; i < len(args); i++ {
		if upper(args[i]) == "MATCH" && i+1 < len(args) {
			pattern = args[i+1]
			i++
		}
	}
	fields := h.Fields()
	items := make([]proto.Frame, 0, len(fields)*2)
	for _, f := range fields {
		if pattern != "" && !glob.Match(pattern, f) {
			continue
		}
		v, _ := h.Get(f)
		items = append(items, proto.BulkStr(f), proto.Bulk(v))
	}
	return proto.ArraySlice([]proto.Frame{proto.BulkStr("0"), proto.ArraySlice(items)}), nil
}

// cmdHRandField implements HRANDFIELD key [count [WITHVALUES]], the
// hash counterpart of SRANDMEMBER: a positive count samples without
// repeats (capped at the field count), a negative count allows
// repeats up to -count picks.
func cmdHRandField(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	_, mono := s.now()
	db := s.db(c)
	h, exists, isHash := fetchHash(db, args[0], mono)
	if exists && !isHash {
		return wrongType(), nil
	}
	if !exists {
		if len(args) > 1 {
			return proto.ArraySlice(nil), nil
		}
		return proto.NilBulk(), nil
	}
	fields := h.Fields()
	if len(args) == 1 {
		if len(fields) == 0 {
			return proto.NilBulk(), nil
		}
		return proto.BulkStr(fields[0]), nil
	}
	n, ok := parseIntArg(args[1])
	if !ok {
		return notAnInteger(), nil
	}
	withValues := len(args) > 2 && upper(args[2]) == "WITHVALUES"
	var picked []string
	if n >= 0 {
		count := int(n)
		if count > len(fields) {
			count = len(fields)
		}
		picked = fields[:count]
	} else {
		want := int(-n)
		picked = make([]string, want)
		for i := 0; i < want; i++ {
			if len(fields) == 0 {
				picked[i] = ""
				continue
			}
			picked[i] = fields[i%len(fields)]
		}
	}
	if !withValues {
		return proto.BulkStrings(picked), nil
	}
	items := make([]proto.Frame, 0, len(picked)*2)
	for _, f := range picked {
		v, _ := h.Get(f)
		items = append(items, proto.BulkStr(f), proto.Bulk(v))
	}
	return proto.ArraySlice(items), nil
}
