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

// Stream commands are a SPEC_FULL.md addition (spec.md §9 names
// streams as a possible sixth value variant); this covers the
// append/range/trim/length core, not consumer groups.
package command

import (
	"github.com/launix-de/redigo/internal/errkind"
	"github.com/launix-de/redigo/internal/proto"
	"github.com/launix-de/redigo/internal/types"
)

func registerStreamCommands(r *Registry) {
	r.register(Spec{Name: "XADD", Arity: -5, Handler: cmdXAdd, WriteCmd: true})
	r.register(Spec{Name: "XLEN", Arity: 2, Handler: cmdXLen})
	r.register(Spec{Name: "XRANGE", Arity: -4, Handler: cmdXRange})
	r.register(Spec{Name: "XREVRANGE", Arity: -4, Handler: cmdXRevRange})
	r.register(Spec{Name: "XDEL", Arity: -3, Handler: cmdXDel, WriteCmd: true})
	r.register(Spec{Name: "XTRIM", Arity: -4, Handler: cmdXTrim, WriteCmd: true})
}

func cmdXAdd(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	idx := 1
	maxlen := -1
	for idx < len(args) {
		switch upper(args[idx]) {
		case "MAXLEN":
			idx++
			if idx < len(args) && (args[idx] == "~" || args[idx] == "=") {
				idx++
			}
			if idx >= len(args) {
				return errReply(errkind.Err("syntax error")), nil
			}
			n, ok := parseIntArg(args[idx])
			if !ok {
				return notAnInteger(), nil
			}
			maxlen = int(n)
			idx++
		default:
			goto idField
		}
	}
idField:
	if idx >= len(args) {
		return errReply(errkind.Err("wrong number of arguments for 'xadd' command")), nil
	}
	idArg := args[idx]
	idx++
	fields := args[idx:]
	if len(fields) == 0 || len(fields)%2 != 0 {
		return errReply(errkind.Err("wrong number of arguments for 'xadd' command")), nil
	}
	_, mono := s.now()
	db := s.db(c)
	st, exists, isStream := fetchStream(db, args[0], mono)
	if exists && !isStream {
		return wrongType(), nil
	}
	if !exists {
		st = types.NewStream()
		db.Set(args[0], st, false)
	}
	var id types.StreamID
	if idArg == "*" {
		wall, _ := s.now()
		id = st.NextID(wall)
	} else {
		parsed, err := types.ParseStreamID(idArg, 0)
		if err != nil {
			return errReply(errkind.Err("Invalid stream ID specified as stream command argument")), nil
		}
		id = parsed
	}
	if err := st.Add(id, fields); err != nil {
		return errReply(errkind.Err("%s", err.Error())), nil
	}
	if maxlen >= 0 {
		st.Trim(maxlen)
	}
	db.TouchVersion(args[0])
	s.Keyspace.MarkDirty(1)
	propagate := append([]string{"XADD", args[0], id.String()}, fields...)
	return proto.BulkStr(id.String()), propagate
}

func cmdXLen(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	_, mono := s.now()
	db := s.db(c)
	st, exists, isStream := fetchStream(db, args[0], mono)
	if exists && !isStream {
		return wrongType(), nil
	}
	if !exists {
		return proto.Int(0), nil
	}
	return proto.Int(int64(st.Len())), nil
}

func renderStreamEntries(entries []types.StreamEntry) proto.Frame {
	out := make([]proto.Frame, len(entries))
	for i, e := range entries {
		fields := make([]proto.Frame, len(e.Fields))
		for j, f := range e.Fields {
			fields[j] = proto.BulkStr(f)
		}
		out[i] = proto.ArraySlice([]proto.Frame{proto.BulkStr(e.ID.String()), proto.ArraySlice(fields)})
	}
	return proto.ArraySlice(out)
}

func xRangeCommon(s *Server, c *Conn, args []string, rev bool) (proto.Frame, []string) {
	startArg, endArg := args[1], args[2]
	if rev {
		startArg, endArg = args[2], args[1]
	}
	start, err := types.ParseStreamID(startArg, 0)
	if err != nil {
		return errReply(errkind.Err("Invalid stream ID specified as stream command argument")), nil
	}
	end, err := types.ParseStreamID(endArg, 1<<63-1)
	if err != nil {
		return errReply(errkind.Err("Invalid stream ID specified as stream command argument")), nil
	}
	count := -1
	for i := 3; i+1 < len(args); i++ {
		if upper(args[i]) == "COUNT" {
			n, ok := parseIntArg(args[i+1])
			if !ok {
				return notAnInteger(), nil
			}
			count = int(n)
		}
	}
	_, mono := s.now()
	db := s.db(c)
	st, exists, isStream := fetchStream(db, args[0], mono)
	if exists && !isStream {
		return wrongType(), nil
	}
	if !exists {
		return proto.ArraySlice(nil), nil
	}
	return renderStreamEntries(st.Range(start, end, rev, count)), nil
}

func cmdXRange(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	return xRangeCommon(s, c, args, false)
}
func cmdXRevRange(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	return xRangeCommon(s, c, args, true)
}

func cmdXDel(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	_, mono := s.now()
	db := s.db(c)
	st, exists, isStream := fetchStream(db, args[0], mono)
	if exists && !isStream {
		return wrongType(), nil
	}
	if !exists {
		return proto.Int(0), nil
	}
	ids := make([]types.StreamID, 0, len(args)-1)
	for _, a := range args[1:] {
		id, err := types.ParseStreamID(a, 0)
		if err != nil {
			return errReply(errkind.Err("Invalid stream ID specified as stream command argument")), nil
		}
		ids = append(ids, id)
	}
	n := st.Del(ids)
	if n == 0 {
		return proto.Int(0), nil
	}
	db.TouchVersion(args[0])
	s.Keyspace.MarkDirty(1)
	return proto.Int(int64(n)), append([]string{"XDEL", args[0]}, args[1:]...)
}

func cmdXTrim(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	idx := 1
	if upper(args[idx]) != "MAXLEN" {
		return errReply(errkind.Err("syntax error")), nil
	}
	idx++
	if idx < len(args) && (args[idx] == "~" || args[idx] == "=") {
		idx++
	}
	if idx >= len(args) {
		return errReply(errkind.Err("syntax error")), nil
	}
	n, ok := parseIntArg(args[idx])
	if !ok {
		return notAnInteger(), nil
	}
	_, mono := s.now()
	db := s.db(c)
	st, exists, isStream := fetchStream(db, args[0], mono)
	if exists && !isStream {
		return wrongType(), nil
	}
	if !exists {
		return proto.Int(0), nil
	}
	removed := st.Trim(int(n))
	if removed == 0 {
		return proto.Int(0), nil
	}
	db.TouchVersion(args[0])
	s.Keyspace.MarkDirty(1)
	return proto.Int(int64(removed)), []string{"XTRIM", args[0], "MAXLEN", itoa(int64(n))}
}
