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

import (
	"time"

	"go.uber.org/zap"
)

// schedulePeriodicTasks mirrors internal/aof.Engine's own everysecTick
// pattern: a self-rescheduling 1s tick drives the "save" rule
// (spec.md §4.6) and the AOF auto-rewrite trigger (spec.md §4.7),
// neither of which command handlers need any extra instrumentation
// for since every write already calls Keyspace.MarkDirty.
func (s *Server) schedulePeriodicTasks() {
	s.sched.ScheduleAfter(time.Second, s.periodicTick)
}

func (s *Server) periodicTick() {
	s.checkSaveRules()
	s.checkAOFRewrite()
	s.sched.ScheduleAfter(time.Second, s.periodicTick)
}

func (s *Server) checkSaveRules() {
	if len(s.Config.Save) == 0 {
		return
	}
	wall, _ := s.now()
	lastSave := s.Snapshot.LastSaveMS()
	dirty := s.Core.Keyspace.DirtySinceSave()
	for _, rule := range s.Config.Save {
		elapsed := (wall - lastSave) / 1000
		if elapsed >= int64(rule.Seconds) && dirty >= uint64(rule.Changes) {
			_, mono := s.now()
			if err := s.Snapshot.BGSave(s.Core.Keyspace, mono, func(err error) {
				if err == nil {
					s.Core.Keyspace.ResetDirty()
				}
			}); err != nil {
				s.Log.Debug("skipped scheduled save", zap.Error(err))
			}
			return
		}
	}
}

func (s *Server) checkAOFRewrite() {
	if s.AOF == nil || !s.AOF.ShouldRewrite(s.Config) {
		return
	}
	_, mono := s.now()
	if err := s.AOF.BGRewrite(s.Core.Keyspace, mono, nil); err != nil {
		s.Log.Debug("skipped scheduled AOF rewrite", zap.Error(err))
	}
}
