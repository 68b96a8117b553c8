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

// Package expire implements the active expiration cycle of spec.md
// §4.4: periodically sample a handful of the soonest-to-expire keys in
// every database and evict the ones that have actually passed their
// deadline, rather than relying purely on lazy eviction at access time.
package expire

import (
	"time"

	"github.com/launix-de/redigo/internal/clock"
	"github.com/launix-de/redigo/internal/store"
	"github.com/launix-de/redigo/internal/timer"
)

// cycle parameters follow Redis's own activeExpireCycle: sample a
// small batch per database, and keep resampling that database as long
// as a large share of the batch was actually expired (a sign there is
// more work waiting), up to a bound on iterations per cycle.
const (
	sampleSize       = 20
	reSampleFraction = 0.25
	maxRoundsPerDB   = 16
)

// Propagator receives a synthetic DEL for every key the cycle evicts,
// so AOF/replicas observe the same expiration the leader decided on
// (spec.md §4.4 "expiration is propagated as a DEL").
type Propagator interface {
	Propagate(db int, args []string)
}

// Engine drives the active expiration cycle on a fixed interval.
type Engine struct {
	ks       *store.Keyspace
	clk      clock.Source
	prop     Propagator
	interval time.Duration
	sched    *timer.Scheduler
}

func NewEngine(ks *store.Keyspace, clk clock.Source, prop Propagator, interval time.Duration) *Engine {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Engine{ks: ks, clk: clk, prop: prop, interval: interval, sched: timer.NewScheduler()}
}

// Start schedules the first cycle; each cycle reschedules the next one
// on completion, so the interval is measured from end to start rather
// than letting cycles pile up under load.
func (e *Engine) Start() {
	e.sched.ScheduleAfter(e.interval, e.tick)
}

func (e *Engine) Stop() {
	e.sched.Stop()
}

func (e *Engine) tick() {
	mono := e.clk.MonotonicMS()
	for idx, db := range e.ks.All() {
		e.cycleDB(idx, db, mono)
	}
	e.sched.ScheduleAfter(e.interval, e.tick)
}

func (e *Engine) cycleDB(idx int, db *store.Database, mono int64) {
	for round := 0; round < maxRoundsPerDB; round++ {
		candidates := db.SampleExpiring(sampleSize)
		if len(candidates) == 0 {
			return
		}
		expired := 0
		for _, key := range candidates {
			if db.ExpireIfNeeded(key, mono) {
				expired++
				if e.prop != nil {
					e.prop.Propagate(idx, []string{"DEL", key})
				}
			}
		}
		if float64(expired) < reSampleFraction*float64(len(candidates)) {
			return
		}
	}
}
