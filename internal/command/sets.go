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
	"github.com/launix-de/redigo/internal/store"
	"github.com/launix-de/redigo/internal/types"
)

func registerSetCommands(r *Registry) {
	r.register(Spec{Name: "SADD", Arity: -3, Handler: cmdSAdd, WriteCmd: true})
	r.register(Spec{Name: "SREM", Arity: -3, Handler: cmdSRem, WriteCmd: true})
	r.register(Spec{Name: "SCARD", Arity: 2, Handler: cmdSCard})
	r.register(Spec{Name: "SISMEMBER", Arity: 3, Handler: cmdSIsMember})
	r.register(Spec{Name: "SMISMEMBER", Arity: -3, Handler: cmdSMIsMember})
	r.register(Spec{Name: "SMEMBERS", Arity: 2, Handler: cmdSMembers})
	r.register(Spec{Name: "SPOP", Arity: -2, Handler: cmdSPop, WriteCmd: true})
	r.register(Spec{Name: "SRANDMEMBER", Arity: -2, Handler: cmdSRandMember})
	r.register(Spec{Name: "SMOVE", Arity: 4, Handler: cmdSMove, WriteCmd: true})
	r.register(Spec{Name: "SINTER", Arity: -2, Handler: cmdSInter})
	r.register(Spec{Name: "SUNION", Arity: -2, Handler: cmdSUnion})
	r.register(Spec{Name: "SDIFF", Arity: -2, Handler: cmdSDiff})
	r.register(Spec{Name: "SINTERSTORE", Arity: -3, Handler: cmdSInterStore, WriteCmd: true, Exclusive: true})
	r.register(Spec{Name: "SUNIONSTORE", Arity: -3, Handler: cmdSUnionStore, WriteCmd: true, Exclusive: true})
	r.register(Spec{Name: "SDIFFSTORE", Arity: -3, Handler: cmdSDiffStore, WriteCmd: true, Exclusive: true})
}

func cmdSAdd(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	_, mono := s.now()
	db := s.db(c)
	v, exists, isSet := fetchSet(db, args[0], mono)
	if exists && !isSet {
		return wrongType(), nil
	}
	if !exists {
		v = types.NewSet()
		db.Set(args[0], v, false)
	}
	added := 0
	for _, m := range args[1:] {
		if v.Add(m) {
			added++
		}
	}
	if added == 0 {
		return proto.Int(0), nil
	}
	db.TouchVersion(args[0])
	s.Keyspace.MarkDirty(1)
	return proto.Int(int64(added)), append([]string{"SADD", args[0]}, args[1:]...)
}

func cmdSRem(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	_, mono := s.now()
	db := s.db(c)
	v, exists, isSet := fetchSet(db, args[0], mono)
	if exists && !isSet {
		return wrongType(), nil
	}
	if !exists {
		return proto.Int(0), nil
	}
	removed := 0
	for _, m := range args[1:] {
		if v.Rem(m) {
			removed++
		}
	}
	if removed == 0 {
		return proto.Int(0), nil
	}
	if v.Len() == 0 {
		db.Delete(args[0], mono)
	} else {
		db.TouchVersion(args[0])
	}
	s.Keyspace.MarkDirty(1)
	return proto.Int(int64(removed)), append([]string{"SREM", args[0]}, args[1:]...)
}

func cmdSCard(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	_, mono := s.now()
	db := s.db(c)
	v, exists, isSet := fetchSet(db, args[0], mono)
	if exists && !isSet {
		return wrongType(), nil
	}
	if !exists {
		return proto.Int(0), nil
	}
	return proto.Int(int64(v.Len())), nil
}

func cmdSIsMember(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	_, mono := s.now()
	db := s.db(c)
	v, exists, isSet := fetchSet(db, args[0], mono)
	if exists && !isSet {
		return wrongType(), nil
	}
	if !exists {
		return proto.Int(0), nil
	}
	return boolReply(v.Has(args[1])), nil
}

func cmdSMIsMember(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	_, mono := s.now()
	db := s.db(c)
	v, exists, isSet := fetchSet(db, args[0], mono)
	if exists && !isSet {
		return wrongType(), nil
	}
	items := make([]proto.Frame, len(args)-1)
	for i, m := range args[1:] {
		items[i] = boolReply(exists && v.Has(m))
	}
	return proto.ArraySlice(items), nil
}

func cmdSMembers(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	_, mono := s.now()
	db := s.db(c)
	v, exists, isSet := fetchSet(db, args[0], mono)
	if exists && !isSet {
		return wrongType(), nil
	}
	if !exists {
		return proto.ArraySlice(nil), nil
	}
	return proto.BulkStrings(v.Members()), nil
}

func cmdSPop(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	_, mono := s.now()
	db := s.db(c)
	v, exists, isSet := fetchSet(db, args[0], mono)
	if exists && !isSet {
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
			return proto.ArraySlice(nil), nil
		}
		return proto.NilBulk(), nil
	}
	members := v.Members()
	if count > len(members) {
		count = len(members)
	}
	picked := members[:count]
	for _, m := range picked {
		v.Rem(m)
	}
	if v.Len() == 0 {
		db.Delete(args[0], mono)
	} else if count > 0 {
		db.TouchVersion(args[0])
	}
	if count > 0 {
		s.Keyspace.MarkDirty(1)
	}
	var propagate []string
	if count > 0 {
		propagate = append([]string{"SREM", args[0]}, picked...)
	}
	if !hasCount {
		if count == 0 {
			return proto.NilBulk(), nil
		}
		return proto.BulkStr(picked[0]), propagate
	}
	return proto.BulkStrings(picked), propagate
}

func cmdSRandMember(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	_, mono := s.now()
	db := s.db(c)
	v, exists, isSet := fetchSet(db, args[0], mono)
	if exists && !isSet {
		return wrongType(), nil
	}
	if !exists {
		if len(args) > 1 {
			return proto.ArraySlice(nil), nil
		}
		return proto.NilBulk(), nil
	}
	members := v.Members()
	if len(args) == 1 {
		if len(members) == 0 {
			return proto.NilBulk(), nil
		}
		return proto.BulkStr(members[0]), nil
	}
	n, ok := parseIntArg(args[1])
	if !ok {
		return notAnInteger(), nil
	}
	if n >= 0 {
		if int(n) > len(members) {
			n = int64(len(members))
		}
		return proto.BulkStrings(members[:n]), nil
	}
	// negative count: allow repeats, up to -n picks
	want := int(-n)
	out := make([]string, want)
	for i := 0; i < want; i++ {
		if len(members) == 0 {
			out[i] = ""
			continue
		}
		out[i] = members[i%len(members)]
	}
	return proto.BulkStrings(out), nil
}

func cmdSMove(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	_, mono := s.now()
	db := s.db(c)
	src, exists, isSet := fetchSet(db, args[0], mono)
	if exists && !isSet {
		return wrongType(), nil
	}
	if !exists || !src.Has(args[2]) {
		return proto.Int(0), nil
	}
	dst, dstExists, dstIsSet := fetchSet(db, args[1], mono)
	if dstExists && !dstIsSet {
		return wrongType(), nil
	}
	if !dstExists {
		dst = types.NewSet()
		db.Set(args[1], dst, false)
	}
	src.Rem(args[2])
	dst.Add(args[2])
	if src.Len() == 0 {
		db.Delete(args[0], mono)
	} else {
		db.TouchVersion(args[0])
	}
	db.TouchVersion(args[1])
	s.Keyspace.MarkDirty(1)
	return proto.Int(1), []string{"SMOVE", args[0], args[1], args[2]}
}

func collectSets(db *store.Database, keys []string, mono int64) ([]*types.Set, bool) {
	sets := make([]*types.Set, len(keys))
	for i, k := range keys {
		v, exists, isSet := fetchSet(db, k, mono)
		if exists && !isSet {
			return nil, false
		}
		if !exists {
			sets[i] = types.NewSet()
		} else {
			sets[i] = v
		}
	}
	return sets, true
}

func cmdSInter(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	_, mono := s.now()
	sets, ok := collectSets(s.db(c), args, mono)
	if !ok {
		return wrongType(), nil
	}
	return proto.BulkStrings(types.Inter(sets).Members()), nil
}
func cmdSUnion(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	_, mono := s.now()
	sets, ok := collectSets(s.db(c), args, mono)
	if !ok {
		return wrongType(), nil
	}
	return proto.BulkStrings(types.Union(sets).Members()), nil
}
func cmdSDiff(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	_, mono := s.now()
	sets, ok := collectSets(s.db(c), args, mono)
	if !ok {
		return wrongType(), nil
	}
	return proto.BulkStrings(types.Diff(sets).Members()), nil
}

func setAlgebraStore(s *Server, c *Conn, dest string, keys []string, op func([]*types.Set) *types.Set, opName string) (proto.Frame, []string) {
	db := s.db(c)
	_, mono := s.now()
	sets, ok := collectSets(db, keys, mono)
	if !ok {
		return wrongType(), nil
	}
	result := op(sets)
	if result.Len() == 0 {
		db.Delete(dest, mono)
	} else {
		db.Set(dest, result, false)
	}
	s.Keyspace.MarkDirty(1)
	return proto.Int(int64(result.Len())), append([]string{opName, dest}, keys...)
}

func cmdSInterStore(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	return setAlgebraStore(s, c, args[0], args[1:], types.Inter, "SINTERSTORE")
}
func cmdSUnionStore(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	return setAlgebraStore(s, c, args[0], args[1:], types.Union, "SUNIONSTORE")
}
func cmdSDiffStore(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	return setAlgebraStore(s, c, args[0], args[1:], types.Diff, "SDIFFSTORE")
}
