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
	"github.com/launix-de/redigo/internal/store"
	"github.com/launix-de/redigo/internal/types"
)

func registerZSetCommands(r *Registry) {
	r.register(Spec{Name: "ZADD", Arity: -4, Handler: cmdZAdd, WriteCmd: true})
	r.register(Spec{Name: "ZREM", Arity: -3, Handler: cmdZRem, WriteCmd: true})
	r.register(Spec{Name: "ZSCORE", Arity: 3, Handler: cmdZScore})
	r.register(Spec{Name: "ZCARD", Arity: 2, Handler: cmdZCard})
	r.register(Spec{Name: "ZRANK", Arity: 3, Handler: cmdZRank})
	r.register(Spec{Name: "ZREVRANK", Arity: 3, Handler: cmdZRevRank})
	r.register(Spec{Name: "ZINCRBY", Arity: 4, Handler: cmdZIncrBy, WriteCmd: true})
	r.register(Spec{Name: "ZRANGE", Arity: -4, Handler: cmdZRange})
	r.register(Spec{Name: "ZREVRANGE", Arity: -4, Handler: cmdZRevRange})
	r.register(Spec{Name: "ZRANGEBYSCORE", Arity: -4, Handler: cmdZRangeByScore})
	r.register(Spec{Name: "ZREVRANGEBYSCORE", Arity: -4, Handler: cmdZRevRangeByScore})
	r.register(Spec{Name: "ZRANGEBYLEX", Arity: -4, Handler: cmdZRangeByLex})
	r.register(Spec{Name: "ZCOUNT", Arity: 4, Handler: cmdZCount})
	r.register(Spec{Name: "BZPOPMIN", Arity: -3, Handler: cmdBZPopMin, WriteCmd: true, Blocking: true})
	r.register(Spec{Name: "BZPOPMAX", Arity: -3, Handler: cmdBZPopMax, WriteCmd: true, Blocking: true})
}

func cmdZAdd(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	idx := 1
	var nx, xx, gt, lt, ch, incr bool
	for idx < len(args) {
		switch upper(args[idx]) {
		case "NX":
			nx = true
		case "XX":
			xx = true
		case "GT":
			gt = true
		case "LT":
			lt = true
		case "CH":
			ch = true
		case "INCR":
			incr = true
		default:
			goto pairs
		}
		idx++
	}
pairs:
	rest := args[idx:]
	if len(rest)%2 != 0 || len(rest) == 0 {
		return errReply(errkind.Err("syntax error")), nil
	}
	if nx && (gt || lt) {
		return errReply(errkind.Err("GT, LT, and/or NX options at the same time are not compatible")), nil
	}
	if incr {
		if len(rest) != 2 {
			return errReply(errkind.Err("INCR option supports a single increment-element pair")), nil
		}
		return zAddIncr(s, c, args[0], rest[0], rest[1], nx, xx, gt, lt)
	}
	_, mono := s.now()
	db := s.db(c)
	z, exists, isZSet := fetchZSet(db, args[0], mono)
	if exists && !isZSet {
		return wrongType(), nil
	}
	if !exists {
		z = types.NewZSet()
		db.Set(args[0], z, false)
	}
	added, changed := 0, 0
	for i := 0; i+1 < len(rest); i += 2 {
		score, err := parseFloatArg(rest[i])
		if err != nil {
			return notAFloat(), nil
		}
		member := rest[i+1]
		old, had := z.Score(member)
		if nx && had {
			continue
		}
		if xx && !had {
			continue
		}
		if had && gt && score <= old {
			continue
		}
		if had && lt && score >= old {
			continue
		}
		if z.Set(member, score) {
			added++
		} else if old != score {
			changed++
		}
	}
	if added == 0 && changed == 0 {
		return proto.Int(0), nil
	}
	db.TouchVersion(args[0])
	s.Keyspace.MarkDirty(1)
	propagate := append([]string{"ZADD", args[0]}, rest...)
	if ch {
		return proto.Int(int64(added + changed)), propagate
	}
	return proto.Int(int64(added)), propagate
}

func cmdZRem(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	_, mono := s.now()
	db := s.db(c)
	z, exists, isZSet := fetchZSet(db, args[0], mono)
	if exists && !isZSet {
		return wrongType(), nil
	}
	if !exists {
		return proto.Int(0), nil
	}
	n := 0
	for _, m := range args[1:] {
		if z.Rem(m) {
			n++
		}
	}
	if n == 0 {
		return proto.Int(0), nil
	}
	if z.Len() == 0 {
		db.Delete(args[0], mono)
	} else {
		db.TouchVersion(args[0])
	}
	s.Keyspace.MarkDirty(1)
	return proto.Int(int64(n)), append([]string{"ZREM", args[0]}, args[1:]...)
}

func cmdZScore(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	_, mono := s.now()
	db := s.db(c)
	z, exists, isZSet := fetchZSet(db, args[0], mono)
	if exists && !isZSet {
		return wrongType(), nil
	}
	if !exists {
		return proto.NilBulk(), nil
	}
	sc, ok := z.Score(args[1])
	if !ok {
		return proto.NilBulk(), nil
	}
	return proto.BulkStr(types.FormatFloat(sc)), nil
}

func cmdZCard(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	_, mono := s.now()
	db := s.db(c)
	z, exists, isZSet := fetchZSet(db, args[0], mono)
	if exists && !isZSet {
		return wrongType(), nil
	}
	if !exists {
		return proto.Int(0), nil
	}
	return proto.Int(int64(z.Len())), nil
}

func rankCommon(s *Server, c *Conn, args []string, rev bool) (proto.Frame, []string) {
	_, mono := s.now()
	db := s.db(c)
	z, exists, isZSet := fetchZSet(db, args[0], mono)
	if exists && !isZSet {
		return wrongType(), nil
	}
	if !exists {
		return proto.NilBulk(), nil
	}
	rank := z.Rank(args[1])
	if rank < 0 {
		return proto.NilBulk(), nil
	}
	if rev {
		rank = z.Len() - 1 - rank
	}
	return proto.Int(int64(rank)), nil
}

func cmdZRank(s *Server, c *Conn, args []string) (proto.Frame, []string)    { return rankCommon(s, c, args, false) }
func cmdZRevRank(s *Server, c *Conn, args []string) (proto.Frame, []string) { return rankCommon(s, c, args, true) }

func cmdZIncrBy(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	delta, err := parseFloatArg(args[1])
	if err != nil {
		return notAFloat(), nil
	}
	_, mono := s.now()
	db := s.db(c)
	z, exists, isZSet := fetchZSet(db, args[0], mono)
	if exists && !isZSet {
		return wrongType(), nil
	}
	if !exists {
		z = types.NewZSet()
		db.Set(args[0], z, false)
	}
	cur, _ := z.Score(args[2])
	next := cur + delta
	z.Set(args[2], next)
	db.TouchVersion(args[0])
	s.Keyspace.MarkDirty(1)
	return proto.BulkStr(types.FormatFloat(next)), []string{"ZADD", args[0], types.FormatFloat(next), args[2]}
}

// zAddIncr implements ZADD key INCR [NX|XX|GT|LT] score member: behaves
// like ZINCRBY but honors the same conditional flags as plain ZADD and
// returns a nil reply (not an error) when a flag suppresses the update
// (spec.md §4.3).
func zAddIncr(s *Server, c *Conn, key, scoreStr, member string, nx, xx, gt, lt bool) (proto.Frame, []string) {
	delta, err := parseFloatArg(scoreStr)
	if err != nil {
		return notAFloat(), nil
	}
	_, mono := s.now()
	db := s.db(c)
	z, exists, isZSet := fetchZSet(db, key, mono)
	if exists && !isZSet {
		return wrongType(), nil
	}
	old, had := float64(0), false
	if exists {
		old, had = z.Score(member)
	}
	if nx && had {
		return proto.NilBulk(), nil
	}
	if xx && !had {
		return proto.NilBulk(), nil
	}
	next := old + delta
	if had && gt && next <= old {
		return proto.NilBulk(), nil
	}
	if had && lt && next >= old {
		return proto.NilBulk(), nil
	}
	if !exists {
		z = types.NewZSet()
		db.Set(key, z, false)
	}
	z.Set(member, next)
	db.TouchVersion(key)
	s.Keyspace.MarkDirty(1)
	return proto.BulkStr(types.FormatFloat(next)), []string{"ZADD", key, types.FormatFloat(next), member}
}

// cmdBZPopMin/cmdBZPopMax implement BZPOPMIN/BZPOPMAX key [key ...]
// timeout: the first key (in argument order) holding a member wins,
// same shape as BLPOP/BRPOP but popping the lowest/highest score.
func cmdBZPopMin(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	return blockingZPop(s, c, args, false)
}

func cmdBZPopMax(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	return blockingZPop(s, c, args, true)
}

func blockingZPop(s *Server, c *Conn, args []string, rev bool) (proto.Frame, []string) {
	keys := args[:len(args)-1]
	timeoutMS, ok := parseTimeoutMS(args[len(args)-1])
	if !ok {
		return badTimeoutErr()
	}
	return blockingLoop(s, c, keys, timeoutMS, proto.NilArray(), func(db *store.Database, key string) (proto.Frame, []string, bool) {
		_, mono := s.now()
		z, exists, isZSet := fetchZSet(db, key, mono)
		if exists && !isZSet {
			return wrongType(), nil, true
		}
		if !exists || z.Len() == 0 {
			return proto.Frame{}, nil, false
		}
		items := z.RangeByRank(0, 0, rev)
		if len(items) == 0 {
			return proto.Frame{}, nil, false
		}
		it := items[0]
		z.Rem(it.Member)
		if z.Len() == 0 {
			db.Delete(key, mono)
		} else {
			db.TouchVersion(key)
		}
		reply := proto.ArraySlice([]proto.Frame{
			proto.BulkStr(key),
			proto.BulkStr(it.Member),
			proto.BulkStr(types.FormatFloat(it.Score)),
		})
		// Propagate as ZREM, a registered deterministic command, the
		// same way SPOP's random pick propagates as SREM: ZPOPMIN/MAX
		// themselves are not registry commands a replica could replay.
		return reply, []string{"ZREM", key, it.Member}, true
	})
}

func renderZItems(items []types.ZItem, withScores bool) proto.Frame {
	var out []proto.Frame
	for _, it := range items {
		out = append(out, proto.BulkStr(it.Member))
		if withScores {
			out = append(out, proto.BulkStr(types.FormatFloat(it.Score)))
		}
	}
	return proto.ArraySlice(out)
}

func cmdZRange(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	return zRangeByRankCommon(s, c, args, false)
}
func cmdZRevRange(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	return zRangeByRankCommon(s, c, args, true)
}

func zRangeByRankCommon(s *Server, c *Conn, args []string, rev bool) (proto.Frame, []string) {
	start, ok1 := parseIntArg(args[1])
	stop, ok2 := parseIntArg(args[2])
	if !ok1 || !ok2 {
		return notAnInteger(), nil
	}
	withScores := false
	for _, a := range args[3:] {
		if upper(a) == "WITHSCORES" {
			withScores = true
		}
	}
	_, mono := s.now()
	db := s.db(c)
	z, exists, isZSet := fetchZSet(db, args[0], mono)
	if exists && !isZSet {
		return wrongType(), nil
	}
	if !exists {
		return proto.ArraySlice(nil), nil
	}
	items := z.RangeByRank(int(start), int(stop), rev)
	return renderZItems(items, withScores), nil
}

func parseScoreBound(s string) (types.ScoreBound, error) {
	switch s {
	case "-inf":
		return types.NegInfBound, nil
	case "+inf", "inf":
		return types.PosInfBound, nil
	}
	exclusive := false
	if strings.HasPrefix(s, "(") {
		exclusive = true
		s = s[1:]
	}
	f, err := parseFloatArg(s)
	if err != nil {
		return types.ScoreBound{}, err
	}
	return types.ScoreBound{Value: f, Exclusive: exclusive}, nil
}

func zRangeByScoreCommon(s *Server, c *Conn, args []string, rev bool) (proto.Frame, []string) {
	minArg, maxArg := args[1], args[2]
	if rev {
		minArg, maxArg = args[2], args[1]
	}
	min, err := parseScoreBound(minArg)
	if err != nil {
		return notAFloat(), nil
	}
	max, err := parseScoreBound(maxArg)
	if err != nil {
		return notAFloat(), nil
	}
	withScores := false
	offset, count := 0, -1
	for i := 3; i < len(args); i++ {
		switch upper(args[i]) {
		case "WITHSCORES":
			withScores = true
		case "LIMIT":
			if i+2 >= len(args) {
				return errReply(errkind.Err("syntax error")), nil
			}
			o, ok1 := parseIntArg(args[i+1])
			n, ok2 := parseIntArg(args[i+2])
			if !ok1 || !ok2 {
				return notAnInteger(), nil
			}
			offset, count = int(o), int(n)
			i += 2
		}
	}
	_, mono := s.now()
	db := s.db(c)
	z, exists, isZSet := fetchZSet(db, args[0], mono)
	if exists && !isZSet {
		return wrongType(), nil
	}
	if !exists {
		return proto.ArraySlice(nil), nil
	}
	items := z.RangeByScore(min, max, rev, offset, count)
	return renderZItems(items, withScores), nil
}

func cmdZRangeByScore(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	return zRangeByScoreCommon(s, c, args, false)
}
func cmdZRevRangeByScore(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	return zRangeByScoreCommon(s, c, args, true)
}

func cmdZCount(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	min, err := parseScoreBound(args[1])
	if err != nil {
		return notAFloat(), nil
	}
	max, err := parseScoreBound(args[2])
	if err != nil {
		return notAFloat(), nil
	}
	_, mono := s.now()
	db := s.db(c)
	z, exists, isZSet := fetchZSet(db, args[0], mono)
	if exists && !isZSet {
		return wrongType(), nil
	}
	if !exists {
		return proto.Int(0), nil
	}
	return proto.Int(int64(z.CountByScore(min, max))), nil
}

func parseLexBound(s string) (types.LexBound, error) {
	switch {
	case s == "-":
		return types.LexBound{Unbounded: true}, nil
	case s == "+":
		return types.LexBound{Unbounded: true}, nil // caller distinguishes min/max by field order
	case strings.HasPrefix(s, "["):
		return types.LexBound{Value: []byte(s[1:])}, nil
	case strings.HasPrefix(s, "("):
		return types.LexBound{Value: []byte(s[1:]), Exclusive: true}, nil
	default:
		return types.LexBound{}, errkind.Err("min or max not valid string range item")
	}
}

func cmdZRangeByLex(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	min, err := parseLexBound(args[1])
	if err != nil {
		return errReply(err.(*errkind.Error)), nil
	}
	max, err := parseLexBound(args[2])
	if err != nil {
		return errReply(err.(*errkind.Error)), nil
	}
	offset, count := 0, -1
	for i := 3; i < len(args); i++ {
		if upper(args[i]) == "LIMIT" && i+2 < len(args) {
			o, ok1 := parseIntArg(args[i+1])
			n, ok2 := parseIntArg(args[i+2])
			if !ok1 || !ok2 {
				return notAnInteger(), nil
			}
			offset, count = int(o), int(n)
			i += 2
		}
	}
	_, mono := s.now()
	db := s.db(c)
	z, exists, isZSet := fetchZSet(db, args[0], mono)
	if exists && !isZSet {
		return wrongType(), nil
	}
	if !exists {
		return proto.ArraySlice(nil), nil
	}
	items := z.RangeByLex(min, max, false, offset, count)
	return renderZItems(items, false), nil
}
