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

func registerConnectionCommands(r *Registry) {
	r.register(Spec{Name: "PING", Arity: -1, Handler: cmdPing})
	r.register(Spec{Name: "ECHO", Arity: 2, Handler: cmdEcho})
	r.register(Spec{Name: "SELECT", Arity: 2, Handler: cmdSelect})
	r.register(Spec{Name: "SWAPDB", Arity: 3, Handler: cmdSwapDB, WriteCmd: true})
	r.register(Spec{Name: "HELLO", Arity: -1, Handler: cmdHello})
	r.register(Spec{Name: "CLIENT", Arity: -2, Handler: cmdClient})
	r.register(Spec{Name: "QUIT", Arity: 1, Handler: cmdQuit})
	r.register(Spec{Name: "AUTH", Arity: -2, Handler: cmdAuth})
}

func cmdPing(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	if len(args) == 0 {
		return proto.SimpleStr("PONG"), nil
	}
	return proto.BulkStr(args[0]), nil
}

func cmdEcho(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	return proto.BulkStr(args[0]), nil
}

func cmdSelect(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	n, ok := parseIntArg(args[0])
	if !ok {
		return notAnInteger(), nil
	}
	if s.Keyspace.DB(int(n)) == nil {
		return errReply(errkind.Err("DB index is out of range")), nil
	}
	c.DB = int(n)
	return proto.OK(), nil
}

// SWAPDB is registered but not implemented: it always replies with an
// error and leaves both databases unchanged.
func cmdSwapDB(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	return errReply(errkind.Err("SWAPDB is not supported by this server")), nil
}

func cmdHello(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	items := []proto.Frame{
		proto.BulkStr("server"), proto.BulkStr("redigo"),
		proto.BulkStr("version"), proto.BulkStr("7.0.0"),
		proto.BulkStr("proto"), proto.Int(2),
		proto.BulkStr("id"), proto.Int(1),
		proto.BulkStr("mode"), proto.BulkStr("standalone"),
		proto.BulkStr("role"), proto.BulkStr("master"),
		proto.BulkStr("modules"), proto.ArraySlice(nil),
	}
	return proto.ArraySlice(items), nil
}

func cmdClient(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	switch upper(args[0]) {
	case "SETNAME":
		if len(args) != 2 {
			return errReply(errkind.Err("wrong number of arguments")), nil
		}
		c.Name = args[1]
		return proto.OK(), nil
	case "GETNAME":
		return proto.BulkStr(c.Name), nil
	case "ID":
		return proto.Int(1), nil
	case "LIST":
		return proto.BulkStr(""), nil
	case "NO-EVICT", "NO-TOUCH", "REPLY":
		return proto.OK(), nil
	default:
		return errReply(errkind.Err("Unknown CLIENT subcommand or wrong number of arguments for '%s'", args[0])), nil
	}
}

func cmdQuit(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	return proto.OK(), nil
}

func cmdAuth(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	if s.Config.RequirePass == "" {
		return errReply(errkind.Err("Client sent AUTH, but no password is set. Did you mean AUTH <username> <password>?")), nil
	}
	pass := args[len(args)-1]
	if pass != s.Config.RequirePass {
		return errReply(errkind.New(errkind.NoAuth, "invalid password")), nil
	}
	c.Authenticated = true
	return proto.OK(), nil
}
