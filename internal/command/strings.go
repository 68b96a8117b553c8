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
	"math/bits"

	"github.com/launix-de/redigo/internal/errkind"
	"github.com/launix-de/redigo/internal/proto"
	"github.com/launix-de/redigo/internal/types"
)

func registerStringCommands(r *Registry) {
	r.register(Spec{Name: "GET", Arity: 2, Handler: cmdGet})
	r.register(Spec{Name: "SET", Arity: -3, Handler: cmdSet, WriteCmd: true})
	r.register(Spec{Name: "SETNX", Arity: 3, Handler: cmdSetNX, WriteCmd: true})
	r.register(Spec{Name: "SETEX", Arity: 4, Handler: cmdSetEX, WriteCmd: true})
	r.register(Spec{Name: "PSETEX", Arity: 4, Handler: cmdPSetEX, WriteCmd: true})
	r.register(Spec{Name: "GETSET", Arity: 3, Handler: cmdGetSet, WriteCmd: true})
	r.register(Spec{Name: "GETDEL", Arity: 2, Handler: cmdGetDel, WriteCmd: true})
	r.register(Spec{Name: "GETEX", Arity: -2, Handler: cmdGetEx, WriteCmd: true})
	r.register(Spec{Name: "APPEND", Arity: 3, Handler: cmdAppend, WriteCmd: true})
	r.register(Spec{Name: "STRLEN", Arity: 2, Handler: cmdStrlen})
	r.register(Spec{Name: "INCR", Arity: 2, Handler: cmdIncr, WriteCmd: true})
	r.register(Spec{Name: "DECR", Arity: 2, Handler: cmdDecr, WriteCmd: true})
	r.register(Spec{Name: "INCRBY", Arity: 3, Handler: cmdIncrBy, WriteCmd: true})
	r.register(Spec{Name: "DECRBY", Arity: 3, Handler: cmdDecrBy, WriteCmd: true})
	r.register(Spec{Name: "INCRBYFLOAT", Arity: 3, Handler: cmdIncrByFloat, WriteCmd: true})
	r.register(Spec{Name: "MGET", Arity: -2, Handler: cmdMGet})
	r.register(Spec{Name: "MSET", Arity: -3, Handler: cmdMSet, WriteCmd: true, Exclusive: true})
	r.register(Spec{Name: "MSETNX", Arity: -3, Handler: cmdMSetNX, WriteCmd: true, Exclusive: true})
	r.register(Spec{Name: "GETRANGE", Arity: 4, Handler: cmdGetRange})
	r.register(Spec{Name: "SETRANGE", Arity: 4, Handler: cmdSetRange, WriteCmd: true})
	r.register(Spec{Name: "SETBIT", Arity: 4, Handler: cmdSetBit, WriteCmd: true})
	r.register(Spec{Name: "GETBIT", Arity: 3, Handler: cmdGetBit})
	r.register(Spec{Name: "BITCOUNT", Arity: -2, Handler: cmdBitCount})
}

func cmdGet(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	_, mono := s.now()
	db := s.db(c)
	v, exists, isStr := fetchString(db, args[0], mono)
	if exists && !isStr {
		return wrongType(), nil
	}
	if !exists {
		return proto.NilBulk(), nil
	}
	return proto.Bulk(v.B), nil
}

// cmdSet implements SET key value [EX s|PX ms|EXAT ts|PXAT ts|KEEPTTL] [NX|XX] [GET].
func cmdSet(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	key, val := args[0], args[1]
	var (
		hasExpire          bool
		expireAmount       int64
		ttlMillis, ttlAbs  bool
		keepTTL            bool
		nx, xx, wantOldVal bool
	)
	for i := 2; i < len(args); i++ {
		switch upper(args[i]) {
		case "NX":
			nx = true
		case "XX":
			xx = true
		case "GET":
			wantOldVal = true
		case "KEEPTTL":
			keepTTL = true
		case "EX", "PX", "EXAT", "PXAT":
			if i+1 >= len(args) {
				return errReply(errkind.Err("syntax error")), nil
			}
			n, ok := parseIntArg(args[i+1])
			if !ok {
				return notAnInteger(), nil
			}
			hasExpire = true
			expireAmount = n
			ttlMillis = upper(args[i]) == "PX" || upper(args[i]) == "PXAT"
			ttlAbs = upper(args[i]) == "EXAT" || upper(args[i]) == "PXAT"
			i++
		default:
			return errReply(errkind.Err("syntax error")), nil
		}
	}
	if nx && xx {
		return errReply(errkind.Err("syntax error")), nil
	}

	wall, mono := s.now()
	db := s.db(c)
	existing, exists := db.Get(key, mono)
	var oldVal proto.Frame = proto.NilBulk()
	if wantOldVal {
		if exists {
			sv, ok := existing.Value.(*types.String)
			if !ok {
				return wrongType(), nil
			}
			oldVal = proto.Bulk(sv.B)
		}
	}
	if nx && exists {
		if wantOldVal {
			return oldVal, nil
		}
		return proto.NilBulk(), nil
	}
	if xx && !exists {
		if wantOldVal {
			return oldVal, nil
		}
		return proto.NilBulk(), nil
	}

	e := db.Set(key, types.NewString([]byte(val)), keepTTL)
	propagate := []string{"SET", key, val}
	if hasExpire {
		deadline := expireAtMS(s, expireAmount, ttlMillis, ttlAbs)
		db.SetExpire(key, deadline, mono)
		propagate = []string{"SET", key, val, "PXAT", itoa(deadline - mono + wall)}
	} else if keepTTL {
		propagate = append(propagate, "KEEPTTL")
	}
	_ = e
	s.Keyspace.MarkDirty(1)
	if wantOldVal {
		return oldVal, propagate
	}
	return proto.OK(), propagate
}

func cmdSetNX(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	_, mono := s.now()
	db := s.db(c)
	if _, exists := db.Get(args[0], mono); exists {
		return proto.Int(0), nil
	}
	db.Set(args[0], types.NewString([]byte(args[1])), false)
	s.Keyspace.MarkDirty(1)
	return proto.Int(1), []string{"SET", args[0], args[1], "NX"}
}

func cmdSetEX(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	return setWithTTL(s, c, args[0], args[2], args[1], false)
}

func cmdPSetEX(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	return setWithTTL(s, c, args[0], args[2], args[1], true)
}

func setWithTTL(s *Server, c *Conn, key, val, ttlStr string, millis bool) (proto.Frame, []string) {
	ttl, ok := parseIntArg(ttlStr)
	if !ok {
		return notAnInteger(), nil
	}
	if ttl <= 0 {
		return errReply(errkind.Err("invalid expire time in '%s' command", map[bool]string{true: "psetex", false: "setex"}[millis])), nil
	}
	wall, mono := s.now()
	db := s.db(c)
	db.Set(key, types.NewString([]byte(val)), false)
	deadline := expireAtMS(s, ttl, millis, false)
	db.SetExpire(key, deadline, mono)
	s.Keyspace.MarkDirty(1)
	return proto.OK(), []string{"SET", key, val, "PXAT", itoa(deadline - mono + wall)}
}

func cmdGetSet(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	_, mono := s.now()
	db := s.db(c)
	old, exists, isStr := fetchString(db, args[0], mono)
	if exists && !isStr {
		return wrongType(), nil
	}
	db.Set(args[0], types.NewString([]byte(args[1])), false)
	s.Keyspace.MarkDirty(1)
	if !exists {
		return proto.NilBulk(), []string{"SET", args[0], args[1]}
	}
	return proto.Bulk(old.B), []string{"SET", args[0], args[1]}
}

func cmdGetDel(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	_, mono := s.now()
	db := s.db(c)
	v, exists, isStr := fetchString(db, args[0], mono)
	if exists && !isStr {
		return wrongType(), nil
	}
	if !exists {
		return proto.NilBulk(), nil
	}
	db.Delete(args[0], mono)
	s.Keyspace.MarkDirty(1)
	return proto.Bulk(v.B), []string{"DEL", args[0]}
}

// cmdGetEx implements GETEX key [EX s|PX ms|EXAT ts|PXAT ts|PERSIST], a
// read that may mutate the key's TTL (spec.md §6 string family).
func cmdGetEx(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	var (
		hasExpire         bool
		expireAmount      int64
		ttlMillis, ttlAbs bool
		persist           bool
	)
	for i := 1; i < len(args); i++ {
		switch upper(args[i]) {
		case "PERSIST":
			persist = true
		case "EX", "PX", "EXAT", "PXAT":
			if i+1 >= len(args) {
				return errReply(errkind.Err("syntax error")), nil
			}
			n, ok := parseIntArg(args[i+1])
			if !ok {
				return notAnInteger(), nil
			}
			hasExpire = true
			expireAmount = n
			ttlMillis = upper(args[i]) == "PX" || upper(args[i]) == "PXAT"
			ttlAbs = upper(args[i]) == "EXAT" || upper(args[i]) == "PXAT"
			i++
		default:
			return errReply(errkind.Err("syntax error")), nil
		}
	}
	if hasExpire && persist {
		return errReply(errkind.Err("syntax error")), nil
	}
	_, mono := s.now()
	db := s.db(c)
	v, exists, isStr := fetchString(db, args[0], mono)
	if exists && !isStr {
		return wrongType(), nil
	}
	if !exists {
		return proto.NilBulk(), nil
	}
	var propagate []string
	switch {
	case persist:
		if db.ClearExpire(args[0], mono) {
			s.Keyspace.MarkDirty(1)
			propagate = []string{"PERSIST", args[0]}
		}
	case hasExpire:
		deadline := expireAtMS(s, expireAmount, ttlMillis, ttlAbs)
		if deadline <= mono {
			db.Delete(args[0], mono)
			s.Keyspace.MarkDirty(1)
			return proto.Bulk(v.B), []string{"DEL", args[0]}
		}
		db.SetExpire(args[0], deadline, mono)
		s.Keyspace.MarkDirty(1)
		wall, _ := s.now()
		propagate = []string{"PEXPIREAT", args[0], itoa(deadline - mono + wall)}
	}
	return proto.Bulk(v.B), propagate
}

func cmdAppend(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	_, mono := s.now()
	db := s.db(c)
	v, exists, isStr := fetchString(db, args[0], mono)
	if exists && !isStr {
		return wrongType(), nil
	}
	if !exists {
		db.Set(args[0], types.NewString([]byte(args[1])), false)
		s.Keyspace.MarkDirty(1)
		return proto.Int(int64(len(args[1]))), []string{"APPEND", args[0], args[1]}
	}
	v.B = append(v.B, args[1]...)
	db.TouchVersion(args[0])
	s.Keyspace.MarkDirty(1)
	return proto.Int(int64(len(v.B))), []string{"APPEND", args[0], args[1]}
}

func cmdStrlen(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	_, mono := s.now()
	db := s.db(c)
	v, exists, isStr := fetchString(db, args[0], mono)
	if exists && !isStr {
		return wrongType(), nil
	}
	if !exists {
		return proto.Int(0), nil
	}
	return proto.Int(int64(len(v.B))), nil
}

func incrByHelper(s *Server, c *Conn, key string, delta int64) (proto.Frame, []string) {
	_, mono := s.now()
	db := s.db(c)
	v, exists, isStr := fetchString(db, key, mono)
	if exists && !isStr {
		return wrongType(), nil
	}
	var cur int64
	if exists {
		n, err := v.ParseInt()
		if err != nil {
			return notAnInteger(), nil
		}
		cur = n
	}
	next := cur + delta
	if (delta > 0 && next < cur) || (delta < 0 && next > cur) {
		return errReply(errkind.Err("increment or decrement would overflow")), nil
	}
	db.Set(key, types.NewString([]byte(itoa(next))), true)
	s.Keyspace.MarkDirty(1)
	return proto.Int(next), []string{"SET", key, itoa(next)}
}

func cmdIncr(s *Server, c *Conn, args []string) (proto.Frame, []string)   { return incrByHelper(s, c, args[0], 1) }
func cmdDecr(s *Server, c *Conn, args []string) (proto.Frame, []string)   { return incrByHelper(s, c, args[0], -1) }
func cmdIncrBy(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	n, ok := parseIntArg(args[1])
	if !ok {
		return notAnInteger(), nil
	}
	return incrByHelper(s, c, args[0], n)
}
func cmdDecrBy(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	n, ok := parseIntArg(args[1])
	if !ok {
		return notAnInteger(), nil
	}
	return incrByHelper(s, c, args[0], -n)
}

func cmdIncrByFloat(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	delta, err := parseFloatArg(args[1])
	if err != nil {
		return notAFloat(), nil
	}
	_, mono := s.now()
	db := s.db(c)
	v, exists, isStr := fetchString(db, args[0], mono)
	if exists && !isStr {
		return wrongType(), nil
	}
	var cur float64
	if exists {
		f, err := v.ParseFloat()
		if err != nil {
			return notAFloat(), nil
		}
		cur = f
	}
	next := cur + delta
	rendered := types.FormatFloat(next)
	db.Set(args[0], types.NewString([]byte(rendered)), true)
	s.Keyspace.MarkDirty(1)
	return proto.BulkStr(rendered), []string{"SET", args[0], rendered}
}

func cmdMGet(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	_, mono := s.now()
	db := s.db(c)
	items := make([]proto.Frame, len(args))
	for i, k := range args {
		e, ok := db.Get(k, mono)
		if !ok {
			items[i] = proto.NilBulk()
			continue
		}
		v, isStr := e.Value.(*types.String)
		if !isStr {
			items[i] = proto.NilBulk()
			continue
		}
		items[i] = proto.Bulk(v.B)
	}
	return proto.ArraySlice(items), nil
}

func cmdMSet(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	if len(args)%2 != 0 {
		return errReply(errkind.Err("wrong number of arguments for 'mset' command")), nil
	}
	db := s.db(c)
	for i := 0; i+1 < len(args); i += 2 {
		db.Set(args[i], types.NewString([]byte(args[i+1])), false)
	}
	s.Keyspace.MarkDirty(uint64(len(args) / 2))
	return proto.OK(), append([]string{"MSET"}, args...)
}

func cmdMSetNX(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	if len(args)%2 != 0 {
		return errReply(errkind.Err("wrong number of arguments for 'msetnx' command")), nil
	}
	_, mono := s.now()
	db := s.db(c)
	for i := 0; i+1 < len(args); i += 2 {
		if _, exists := db.Get(args[i], mono); exists {
			return proto.Int(0), nil
		}
	}
	for i := 0; i+1 < len(args); i += 2 {
		db.Set(args[i], types.NewString([]byte(args[i+1])), false)
	}
	s.Keyspace.MarkDirty(uint64(len(args) / 2))
	return proto.Int(1), append([]string{"MSET"}, args...)
}

func cmdGetRange(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	start, ok1 := parseIntArg(args[1])
	end, ok2 := parseIntArg(args[2])
	if !ok1 || !ok2 {
		return notAnInteger(), nil
	}
	_, mono := s.now()
	db := s.db(c)
	v, exists, isStr := fetchString(db, args[0], mono)
	if exists && !isStr {
		return wrongType(), nil
	}
	if !exists {
		return proto.BulkStr(""), nil
	}
	n := int64(len(v.B))
	if start < 0 {
		start += n
	}
	if end < 0 {
		end += n
	}
	if start < 0 {
		start = 0
	}
	if end >= n {
		end = n - 1
	}
	if start > end || n == 0 {
		return proto.BulkStr(""), nil
	}
	return proto.Bulk(v.B[start : end+1]), nil
}

func cmdSetRange(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	offset, ok := parseIntArg(args[1])
	if !ok || offset < 0 {
		return errReply(errkind.Err("offset is out of range")), nil
	}
	_, mono := s.now()
	db := s.db(c)
	v, exists, isStr := fetchString(db, args[0], mono)
	if exists && !isStr {
		return wrongType(), nil
	}
	patch := []byte(args[2])
	var base []byte
	if exists {
		base = v.B
	}
	needed := int(offset) + len(patch)
	if needed > len(base) {
		grown := make([]byte, needed)
		copy(grown, base)
		base = grown
	}
	copy(base[offset:], patch)
	db.Set(args[0], types.NewString(base), true)
	s.Keyspace.MarkDirty(1)
	return proto.Int(int64(len(base))), []string{"SETRANGE", args[0], args[1], args[2]}
}

// cmdSetBit implements SETBIT key offset value, growing the string
// with zero bytes as needed, and returns the bit's previous value.
func cmdSetBit(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	offset, ok := parseIntArg(args[1])
	if !ok || offset < 0 {
		return errReply(errkind.Err("bit offset is not an integer or out of range")), nil
	}
	bit, ok := parseIntArg(args[2])
	if !ok || (bit != 0 && bit != 1) {
		return errReply(errkind.Err("bit is not an integer or out of range")), nil
	}
	_, mono := s.now()
	db := s.db(c)
	v, exists, isStr := fetchString(db, args[0], mono)
	if exists && !isStr {
		return wrongType(), nil
	}
	var base []byte
	if exists {
		base = v.B
	}
	byteIdx := int(offset / 8)
	bitIdx := uint(7 - offset%8)
	if byteIdx >= len(base) {
		grown := make([]byte, byteIdx+1)
		copy(grown, base)
		base = grown
	}
	old := (base[byteIdx] >> bitIdx) & 1
	if bit == 1 {
		base[byteIdx] |= 1 << bitIdx
	} else {
		base[byteIdx] &^= 1 << bitIdx
	}
	db.Set(args[0], types.NewString(base), true)
	s.Keyspace.MarkDirty(1)
	return proto.Int(int64(old)), []string{"SETBIT", args[0], args[1], args[2]}
}

func cmdGetBit(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	offset, ok := parseIntArg(args[1])
	if !ok || offset < 0 {
		return errReply(errkind.Err("bit offset is not an integer or out of range")), nil
	}
	_, mono := s.now()
	db := s.db(c)
	v, exists, isStr := fetchString(db, args[0], mono)
	if exists && !isStr {
		return wrongType(), nil
	}
	if !exists {
		return proto.Int(0), nil
	}
	byteIdx := int(offset / 8)
	if byteIdx >= len(v.B) {
		return proto.Int(0), nil
	}
	bitIdx := uint(7 - offset%8)
	return proto.Int(int64((v.B[byteIdx] >> bitIdx) & 1)), nil
}

// cmdBitCount implements BITCOUNT key [start end [BYTE|BIT]].
func cmdBitCount(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	_, mono := s.now()
	db := s.db(c)
	v, exists, isStr := fetchString(db, args[0], mono)
	if exists && !isStr {
		return wrongType(), nil
	}
	if !exists {
		return proto.Int(0), nil
	}
	data := v.B
	if len(args) == 2 || len(args) > 4 {
		return errReply(errkind.Err("syntax error")), nil
	}
	if len(args) == 1 {
		count := 0
		for _, b := range data {
			count += bits.OnesCount8(b)
		}
		return proto.Int(int64(count)), nil
	}
	start, ok1 := parseIntArg(args[1])
	end, ok2 := parseIntArg(args[2])
	if !ok1 || !ok2 {
		return notAnInteger(), nil
	}
	byBit := false
	if len(args) == 4 {
		switch upper(args[3]) {
		case "BYTE":
		case "BIT":
			byBit = true
		default:
			return errReply(errkind.Err("syntax error")), nil
		}
	}
	if byBit {
		totalBits := int64(len(data)) * 8
		if start < 0 {
			start += totalBits
		}
		if end < 0 {
			end += totalBits
		}
		if start < 0 {
			start = 0
		}
		if end >= totalBits {
			end = totalBits - 1
		}
		if start > end || totalBits == 0 {
			return proto.Int(0), nil
		}
		count := 0
		for bit := start; bit <= end; bit++ {
			byteIdx := bit / 8
			bitIdx := uint(7 - bit%8)
			if (data[byteIdx]>>bitIdx)&1 == 1 {
				count++
			}
		}
		return proto.Int(int64(count)), nil
	}
	n := int64(len(data))
	if start < 0 {
		start += n
	}
	if end < 0 {
		end += n
	}
	if start < 0 {
		start = 0
	}
	if end >= n {
		end = n - 1
	}
	if start > end || n == 0 {
		return proto.Int(0), nil
	}
	count := 0
	for i := start; i <= end; i++ {
		count += bits.OnesCount8(data[i])
	}
	return proto.Int(int64(count)), nil
}
