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
package expire

import (
	"sync"
	"testing"
	"time"

	"github.com/launix-de/redigo/internal/clock"
	"github.com/launix-de/redigo/internal/store"
	"github.com/launix-de/redigo/internal/types"
)

type recordingProp struct {
	mu   sync.Mutex
	cmds [][]string
}

func (r *recordingProp) Propagate(db int, args []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cmds = append(r.cmds, args)
}

func (r *recordingProp) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cmds)
}

func TestActiveExpireEvictsPastDeadline(t *testing.T) {
	ks := store.NewKeyspace(1)
	db := ks.DB(0)
	fc := &clock.Fixed{Wall: 1000, Mono: 0}

	db.Set("k1", &types.String{B: []byte("v")}, false)
	db.SetExpire("k1", 50, 0)
	db.Set("k2", &types.String{B: []byte("v")}, false)
	db.SetExpire("k2", 5000, 0)

	prop := &recordingProp{}
	e := NewEngine(ks, fc, prop, time.Hour)

	fc.Advance(100) // k1 now past its deadline, k2 not yet
	e.cycleDB(0, db, fc.MonotonicMS())

	if prop.count() != 1 {
		t.Fatalf("expected exactly one propagated DEL, got %d", prop.count())
	}
	if !db.Exists("k2", fc.MonotonicMS()) {
		t.Fatal("k2 should not have been evicted yet")
	}
	if db.Exists("k1", fc.MonotonicMS()) {
		t.Fatal("k1 should have been evicted")
	}
}

func TestActiveExpireNoPropagationWhenNothingExpired(t *testing.T) {
	ks := store.NewKeyspace(1)
	db := ks.DB(0)
	fc := &clock.Fixed{Wall: 1000, Mono: 0}
	db.Set("k", &types.String{B: []byte("v")}, false)
	db.SetExpire("k", 10000, 0)

	prop := &recordingProp{}
	e := NewEngine(ks, fc, prop, time.Hour)
	e.cycleDB(0, db, fc.MonotonicMS())

	if prop.count() != 0 {
		t.Fatalf("expected no propagation, got %d", prop.count())
	}
}

func TestStartStopDoesNotPanic(t *testing.T) {
	ks := store.NewKeyspace(1)
	fc := &clock.Fixed{}
	e := NewEngine(ks, fc, nil, 10*time.Millisecond)
	e.Start()
	time.Sleep(30 * time.Millisecond)
	e.Stop()
}
