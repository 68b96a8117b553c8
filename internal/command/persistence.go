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

func registerPersistenceCommands(r *Registry) {
	r.register(Spec{Name: "SAVE", Arity: 1, Handler: cmdSave})
	r.register(Spec{Name: "BGSAVE", Arity: -1, Handler: cmdBGSave})
	r.register(Spec{Name: "BGREWRITEAOF", Arity: 1, Handler: cmdBGRewriteAOF})
}

func cmdSave(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	if s.Hooks.Save == nil {
		return errReply(errkind.Err("persistence is not configured")), nil
	}
	if err := s.Hooks.Save(); err != nil {
		return errReply(errkind.Err("%s", err.Error())), nil
	}
	return proto.OK(), nil
}

func cmdBGSave(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	if s.Hooks.BGSave == nil {
		return errReply(errkind.Err("persistence is not configured")), nil
	}
	if err := s.Hooks.BGSave(); err != nil {
		return errReply(errkind.BusyErr("Background save")), nil
	}
	return proto.SimpleStr("Background saving started"), nil
}

func cmdBGRewriteAOF(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	if s.Hooks.BGRewriteAOF == nil {
		return errReply(errkind.Err("append only file is not configured")), nil
	}
	if err := s.Hooks.BGRewriteAOF(); err != nil {
		return errReply(errkind.BusyErr("Background append only file rewriting")), nil
	}
	return proto.SimpleStr("Background append only file rewriting started"), nil
}
