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
	"time"

	"github.com/launix-de/redigo/internal/errkind"
	"github.com/launix-de/redigo/internal/proto"
	"github.com/launix-de/redigo/internal/store"
	"github.com/launix-de/redigo/internal/types"
)

func registerListCommands(r *Registry) {
	r.register(Spec{Name: "LPUSH", Arity: -3, Handler: cmdLPush, WriteCmd: true})
	r.register(Spec{Name: "RPUSH", Arity: -3, Handler: cmdRPush, WriteCmd: true})
	r.register(Spec{Name: "LPUSHX", Arity: -3, Handler: cmdLPushX, WriteCmd: true})
	r.register(Spec{Name: "RPUSHX", Arity: -3, Handler: cmdRPushX, WriteCmd: true})
	r.register(Spec{Name: "LPOP", Arity: -2, Handler: cmdLPop, WriteCmd: true})
	r.register(Spec{Name: "RPOP", Arity: -2, Handler: cmdRPop, WriteCmd: true})
	r.register(Spec{Name: "LLEN", Arity: 2, Handler: cmdLLen})
	r.register(Spec{Name: "LINDEX", Arity: 3, Handler: cmdLIndex})
	r.register(Spec{Name: "LSET", Arity: 4, Handler: cmdLSet, WriteCmd: true})
	r.register(Spec{Name: "LRANGE", Arity: 4, Handler: cmdLRange})
	r.register(Spec{Name: "LTRIM", Arity: 4, Handler: cmdLTrim, WriteCmd: true})
	r.register(Spec{Name: "LREM", Arity: 4, Handler: cmdLRem, WriteCmd: true})
	r.register(Spec{Name: "RPOPLPUSH", Arity: 3, Handler: cmdRPopLPush, WriteCmd: true})
	r.register(Spec{Name: "LMOVE", Arity: 5, Handler: cmdLMove, WriteCmd: true})
	r.register(Spec{Name: "BLPOP", Arity: -3, Handler: cmdBLPop, WriteCmd: true, Blocking: true})
	r.register(Spec{Name: "BRPOP", Arity: -3, Handler: cmdBRPop, WriteCmd: true, Blocking: true})
	r.register(Spec{Name: "BRPOPLPUSH", Arity: 4, Handler: cmdBRPopLPush, WriteCmd: true, Blocking: true})
	r.register(Spec{Name: "BLMOVE", Arity: 6, Handler: cmdBLMove, WriteCmd: true, Blocking: true})
}

func pushHelper(s *Server, c *Conn, key string, items []string, left, requireExists bool) (proto.Frame, []string) {
	_, mono := s.now()
	db := s.db(c)
	v, exists, isList := fetchList(db, key, mono)
	if exists && !isList {
		return wrongType(), nil
	}
	if !exists {
		if requireExists {
			return proto.Int(0), nil
		}
		v = types.NewList()
		db.Set(key, v, false)
	}
	raw := make([][]byte, len(items))
	for i, it := range items {
		raw[i] = []byte(it)
	}
	if left {
		v.PushLeft(raw...)
	} else {
		v.PushRight(raw...)
	}
	db.TouchVersion(key)
	s.Keyspace.MarkDirty(1)
	name := "RPUSH"
	if left {
		name = "LPUSH"
	}
	return proto.Int(int64(v.Len())), append([]string{name, key}, items...)
}

func cmdLPush(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	return pushHelper(s, c, args[0], args[1:], true, false)
}
func cmdRPush(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	return pushHelper(s, c, args[0], args[1:], false, false)
}
func cmdLPushX(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	return pushHelper(s, c, args[0], args[1:], true, true)
}
func cmdRPushX(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	return pushHelper(s, c, args[0], args[1:], false, true)
}

func popHelper(s *Server, c *Conn, args []string, left bool) (proto.Frame, []string) {
	_, mono := s.now()
	db := s.db(c)
	v, exists, isList := fetchList(db, args[0], mono)
	if exists && !isList {
		return wrongType(), nil
	}
	count := 1
	hasCount := len(args) > 1
	if hasCount {
		n, ok := parseIntArg(args[1])
		if !ok || n < 0 {
			return errReply(errkind.Err("value is out of range, must be positive")), nil
		}
		count = int(n)
	}
	if !exists {
		if hasCount {
			return proto.NilArray(), nil
		}
		return proto.NilBulk(), nil
	}
	var popped [][]byte
	for i := 0; i < count; i++ {
		var b []byte
		var ok bool
		if left {
			b, ok = v.PopLeft()
		} else {
			b, ok = v.PopRight()
		}
		if !ok {
			break
		}
		popped = append(popped, b)
	}
	if v.Len() == 0 {
		db.Delete(args[0], mono)
	} else {
		db.TouchVersion(args[0])
	}
	if len(popped) == 0 {
		if hasCount {
			return proto.NilArray(), nil
		}
		return proto.NilBulk(), nil
	}
	s.Keyspace.MarkDirty(uint64(len(popped)))
	name := "RPOP"
	if left {
		name = "LPOP"
	}
	propagate := []string{name, args[0], itoa(int64(len(popped)))}
	if !hasCount {
		if left {
			return proto.Bulk(popped[0]), propagate
		}
		return proto.Bulk(popped[0]), propagate
	}
	items := make([]proto.Frame, len(popped))
	for i, b := range popped {
		items[i] = proto.Bulk(b)
	}
	return proto.ArraySlice(items), propagate
}

func cmdLPop(s *Server, c *Conn, args []string) (proto.Frame, []string) { return popHelper(s, c, args, true) }
func cmdRPop(s *Server, c *Conn, args []string) (proto.Frame, []string) { return popHelper(s, c, args, false) }

func cmdLLen(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	_, mono := s.now()
	db := s.db(c)
	v, exists, isList := fetchList(db, args[0], mono)
	if exists && !isList {
		return wrongType(), nil
	}
	if !exists {
		return proto.Int(0), nil
	}
	return proto.Int(int64(v.Len())), nil
}

func cmdLIndex(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	idx, ok := parseIntArg(args[1])
	if !ok {
		return notAnInteger(), nil
	}
	_, mono := s.now()
	db := s.db(c)
	v, exists, isList := fetchList(db, args[0], mono)
	if exists && !isList {
		return wrongType(), nil
	}
	if !exists {
		return proto.NilBulk(), nil
	}
	b, ok := v.Index(int(idx))
	return bulkReply(b, ok), nil
}

func cmdLSet(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	idx, ok := parseIntArg(args[1])
	if !ok {
		return notAnInteger(), nil
	}
	_, mono := s.now()
	db := s.db(c)
	v, exists, isList := fetchList(db, args[0], mono)
	if exists && !isList {
		return wrongType(), nil
	}
	if !exists {
		return errReply(errkind.Err("no such key")), nil
	}
	if !v.SetIndex(int(idx), []byte(args[2])) {
		return errReply(errkind.Err("index out of range")), nil
	}
	db.TouchVersion(args[0])
	s.Keyspace.MarkDirty(1)
	return proto.OK(), []string{"LSET", args[0], args[1], args[2]}
}

func cmdLRange(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	start, ok1 := parseIntArg(args[1])
	stop, ok2 := parseIntArg(args[2])
	if !ok1 || !ok2 {
		return notAnInteger(), nil
	}
	_, mono := s.now()
	db := s.db(c)
	v, exists, isList := fetchList(db, args[0], mono)
	if exists && !isList {
		return wrongType(), nil
	}
	if !exists {
		return proto.ArraySlice(nil), nil
	}
	items := v.Range(int(start), int(stop))
	frames := make([]proto.Frame, len(items))
	for i, b := range items {
		frames[i] = proto.Bulk(b)
	}
	return proto.ArraySlice(frames), nil
}

func cmdLTrim(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	start, ok1 := parseIntArg(args[1])
	stop, ok2 := parseIntArg(args[2])
	if !ok1 || !ok2 {
		return notAnInteger(), nil
	}
	_, mono := s.now()
	db := s.db(c)
	v, exists, isList := fetchList(db, args[0], mono)
	if exists && !isList {
		return wrongType(), nil
	}
	if !exists {
		return proto.OK(), nil
	}
	v.Trim(int(start), int(stop))
	if v.Len() == 0 {
		db.Delete(args[0], mono)
	} else {
		db.TouchVersion(args[0])
	}
	s.Keyspace.MarkDirty(1)
	return proto.OK(), []string{"LTRIM", args[0], args[1], args[2]}
}

func cmdLRem(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	count, ok := parseIntArg(args[1])
	if !ok {
		return notAnInteger(), nil
	}
	_, mono := s.now()
	db := s.db(c)
	v, exists, isList := fetchList(db, args[0], mono)
	if exists && !isList {
		return wrongType(), nil
	}
	if !exists {
		return proto.Int(0), nil
	}
	n := v.RemoveMatching([]byte(args[2]), int(count))
	if v.Len() == 0 {
		db.Delete(args[0], mono)
	} else if n > 0 {
		db.TouchVersion(args[0])
	}
	if n == 0 {
		return proto.Int(0), nil
	}
	s.Keyspace.MarkDirty(1)
	return proto.Int(int64(n)), []string{"LREM", args[0], args[1], args[2]}
}

// tryMoveOne is the core of RPOPLPUSH/LMOVE/BRPOPLPUSH/BLMOVE: pop one
// element off srcKey and push it onto dstKey. moved is false when
// srcKey is absent or empty (the caller, blocking or not, treats that
// as "nothing to do yet"); a type error is reported via reply/ok=true
// so it short-circuits a blocking wait the same as success would.
func tryMoveOne(db *store.Database, mono int64, srcKey, dstKey string, fromLeft, toLeft bool) (reply proto.Frame, propagate []string, moved bool) {
	src, exists, isList := fetchList(db, srcKey, mono)
	if exists && !isList {
		return wrongType(), nil, true
	}
	if !exists {
		return proto.Frame{}, nil, false
	}
	dst, dstExists, dstIsList := fetchList(db, dstKey, mono)
	if dstExists && !dstIsList {
		return wrongType(), nil, true
	}
	var b []byte
	var ok bool
	if fromLeft {
		b, ok = src.PopLeft()
	} else {
		b, ok = src.PopRight()
	}
	if !ok {
		return proto.Frame{}, nil, false
	}
	if !dstExists {
		dst = types.NewList()
		db.Set(dstKey, dst, false)
	}
	if toLeft {
		dst.PushLeft(b)
	} else {
		dst.PushRight(b)
	}
	if src.Len() == 0 {
		db.Delete(srcKey, mono)
	} else {
		db.TouchVersion(srcKey)
	}
	db.TouchVersion(dstKey)
	fromS, toS := "RIGHT", "RIGHT"
	if fromLeft {
		fromS = "LEFT"
	}
	if toLeft {
		toS = "LEFT"
	}
	return proto.Bulk(b), []string{"LMOVE", srcKey, dstKey, fromS, toS}, true
}

func moveOne(s *Server, c *Conn, srcKey, dstKey string, fromLeft, toLeft bool) (proto.Frame, []string) {
	_, mono := s.now()
	db := s.db(c)
	reply, prop, moved := tryMoveOne(db, mono, srcKey, dstKey, fromLeft, toLeft)
	if !moved {
		return proto.NilBulk(), nil
	}
	if prop != nil {
		s.Keyspace.MarkDirty(1)
	}
	return reply, prop
}

func cmdRPopLPush(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	return moveOne(s, c, args[0], args[1], false, true)
}

func cmdLMove(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	fromLeft := upper(args[2]) == "LEFT"
	toLeft := upper(args[3]) == "LEFT"
	return moveOne(s, c, args[0], args[1], fromLeft, toLeft)
}

// blockingMove implements BRPOPLPUSH/BLMOVE: same single-key shape as
// blockingLoop but over a source/destination pair instead of a key
// list, so it drives its own try/wait loop directly.
func blockingMove(s *Server, c *Conn, srcKey, dstKey string, fromLeft, toLeft bool, timeoutMS int64) (proto.Frame, []string) {
	db := s.db(c)
	for {
		sem := db.Serializer()
		sem.RLock()
		_, mono := s.now()
		reply, prop, moved := tryMoveOne(db, mono, srcKey, dstKey, fromLeft, toLeft)
		sem.RUnlock()
		if moved {
			if prop != nil {
				s.Keyspace.MarkDirty(1)
			}
			return reply, prop
		}
		if c.InExec {
			return proto.NilBulk(), nil
		}
		if !waitForKeys(db, []string{srcKey}, time.Duration(timeoutMS)*time.Millisecond, c.Cancel) {
			return proto.NilBulk(), nil
		}
	}
}

func cmdBRPopLPush(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	timeoutMS, ok := parseTimeoutMS(args[2])
	if !ok {
		return badTimeoutErr()
	}
	return blockingMove(s, c, args[0], args[1], false, true, timeoutMS)
}

func cmdBLMove(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	fromLeft := upper(args[2]) == "LEFT"
	toLeft := upper(args[3]) == "LEFT"
	timeoutMS, ok := parseTimeoutMS(args[4])
	if !ok {
		return badTimeoutErr()
	}
	return blockingMove(s, c, args[0], args[1], fromLeft, toLeft, timeoutMS)
}

// cmdBLPop/cmdBRPop implement BLPOP/BRPOP key [key ...] timeout: the
// first key (in argument order) with an element wins.
func cmdBLPop(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	return blockingPop(s, c, args, true)
}

func cmdBRPop(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	return blockingPop(s, c, args, false)
}

func blockingPop(s *Server, c *Conn, args []string, left bool) (proto.Frame, []string) {
	keys := args[:len(args)-1]
	timeoutMS, ok := parseTimeoutMS(args[len(args)-1])
	if !ok {
		return badTimeoutErr()
	}
	name := "RPOP"
	if left {
		name = "LPOP"
	}
	return blockingLoop(s, c, keys, timeoutMS, proto.NilArray(), func(db *store.Database, key string) (proto.Frame, []string, bool) {
		_, mono := s.now()
		v, exists, isList := fetchList(db, key, mono)
		if exists && !isList {
			return wrongType(), nil, true
		}
		if !exists {
			return proto.Frame{}, nil, false
		}
		var b []byte
		var popped bool
		if left {
			b, popped = v.PopLeft()
		} else {
			b, popped = v.PopRight()
		}
		if !popped {
			return proto.Frame{}, nil, false
		}
		if v.Len() == 0 {
			db.Delete(key, mono)
		} else {
			db.TouchVersion(key)
		}
		reply := proto.ArraySlice([]proto.Frame{proto.BulkStr(key), proto.Bulk(b)})
		return reply, []string{name, key}, true
	})
}
