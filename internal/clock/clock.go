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

// Package clock is the time source collaborator the core consumes
// (spec.md §1): wall-clock milliseconds for on-disk timestamps and a
// monotonic millisecond counter for expiration deadlines, so that a
// system clock step backwards never resurrects an expired key.
package clock

import "time"

// Source gives wall-clock and monotonic milliseconds.
type Source interface {
	NowMS() int64     // wall-clock ms since epoch, for persisted timestamps
	MonotonicMS() int64 // monotonic ms, for expires_at deadlines
}

// System is the real-time Source backed by time.Now().
type System struct {
	start    time.Time
	startMono int64
}

func NewSystem() *System {
	return &System{start: time.Now()}
}

func (s *System) NowMS() int64 {
	return time.Now().UnixMilli()
}

func (s *System) MonotonicMS() int64 {
	return int64(time.Since(s.start) / time.Millisecond)
}

// Fixed is a deterministic Source for tests.
type Fixed struct {
	Wall int64
	Mono int64
}

func (f *Fixed) NowMS() int64        { return f.Wall }
func (f *Fixed) MonotonicMS() int64  { return f.Mono }
func (f *Fixed) Advance(ms int64) {
	f.Wall += ms
	f.Mono += ms
}
