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

// Transaction commands (MULTI/EXEC/DISCARD/WATCH/UNWATCH, spec.md
// §4.5) are dispatched specially by the server's connection loop
// rather than through the normal Handler path, since they need to
// mutate Conn.InMulti/Queue before a command ever reaches Dispatch.
// This file only registers them so HELP/COMMAND introspection and
// arity checks see them; the real logic lives in internal/txn.
package command

import "github.com/launix-de/redigo/internal/proto"

func registerTransactionCommands(r *Registry) {
	r.register(Spec{Name: "MULTI", Arity: 1, Handler: notIntercepted})
	r.register(Spec{Name: "EXEC", Arity: 1, Handler: notIntercepted})
	r.register(Spec{Name: "DISCARD", Arity: 1, Handler: notIntercepted})
	r.register(Spec{Name: "WATCH", Arity: -2, Handler: notIntercepted})
	r.register(Spec{Name: "UNWATCH", Arity: 1, Handler: notIntercepted})
}

func notIntercepted(s *Server, c *Conn, args []string) (proto.Frame, []string) {
	return proto.ErrFrame("ERR this command must be handled by the connection loop before dispatch"), nil
}
