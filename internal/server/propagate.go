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
package server

import "github.com/launix-de/redigo/internal/command"

// fanoutPropagator is the single command.Propagator wired into
// command.Server.Prop: every effective write reaches both the append
// log (if enabled) and the replication backlog, the two independent
// consumers of spec.md §4.7/§4.8's write stream.
type fanoutPropagator struct {
	s *Server
}

func newFanoutPropagator(s *Server) *fanoutPropagator {
	return &fanoutPropagator{s: s}
}

func (p *fanoutPropagator) Propagate(db int, args []string) {
	if p.s.AOF != nil {
		p.s.AOF.Propagate(db, args)
	}
	p.s.Leader.Propagate(db, args)
}

// propagateTxn wraps a transaction's per-command propagate list with
// MULTI/EXEC markers, matching how txn.Exec's own doc comment describes
// the stream it produces; txn itself stays free of the decision about
// who owns AOF/replication framing.
func propagateTxn(prop command.Propagator, db int, cmds [][]string) {
	if len(cmds) == 0 {
		return
	}
	prop.Propagate(db, []string{"MULTI"})
	for _, c := range cmds {
		prop.Propagate(db, c)
	}
	prop.Propagate(db, []string{"EXEC"})
}
