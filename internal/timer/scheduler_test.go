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
package timer

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestScheduleAfterRuns(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	done := make(chan struct{})
	s.ScheduleAfter(10*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not run within timeout")
	}
}

func TestClearPreventsExecution(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var ran int32
	id, ok := s.ScheduleAfter(50*time.Millisecond, func() { atomic.StoreInt32(&ran, 1) })
	if !ok {
		t.Fatal("schedule failed")
	}
	if !s.Clear(id) {
		t.Fatal("clear reported failure on an active task")
	}
	time.Sleep(100 * time.Millisecond)
	if atomic.LoadInt32(&ran) != 0 {
		t.Fatal("cleared task still ran")
	}
}

func TestClearUnknownIDFails(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()
	if s.Clear(99999) {
		t.Fatal("expected Clear on unknown id to fail")
	}
}

func TestRunOrderIsByDeadline(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var order []int
	var mu sync.Mutex
	done := make(chan struct{})

	s.ScheduleAfter(30*time.Millisecond, func() {
		mu.Lock()
		order = append(order, 2)
		mu.Unlock()
	})
	s.ScheduleAfter(10*time.Millisecond, func() {
		mu.Lock()
		order = append(order, 1)
		mu.Unlock()
	})
	s.ScheduleAfter(60*time.Millisecond, func() {
		mu.Lock()
		order = append(order, 3)
		mu.Unlock()
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("tasks did not complete in time")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("expected execution order [1 2 3], got %v", order)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	s := NewScheduler()
	s.Stop()
	s.Stop()
}
