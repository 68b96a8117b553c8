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

// Shared machinery for BLPOP/BRPOP/BLMOVE/BRPOPLPUSH/BZPOPMIN/BZPOPMAX,
// built on Database.Wait/Forget's per-key notifier (spec.md §9). Every
// blocking command is "try once, and if nothing was available, wait
// for the next mutation of any watched key and try again" — the
// signal-and-recheck pattern Wait/Forget is shaped for.
//
// Real Redis runs a blocking command queued inside MULTI/EXEC as a
// single non-blocking attempt instead of actually blocking, since the
// transaction already holds the keyspace exclusively; Conn.InExec
// lets these handlers do the same instead of deadlocking against
// txn.Exec's own lock.
package command

import (
	"math"
	"reflect"
	"strconv"
	"time"

	"github.com/launix-de/redigo/internal/errkind"
	"github.com/launix-de/redigo/internal/proto"
	"github.com/launix-de/redigo/internal/store"
)

// parseTimeoutMS parses a BLPOP-style timeout argument (seconds,
// fractional allowed, 0 means block forever) into milliseconds.
func parseTimeoutMS(arg string) (int64, bool) {
	f, err := strconv.ParseFloat(arg, 64)
	if err != nil || f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int64(f * 1000), true
}

func badTimeoutErr() (proto.Frame, []string) {
	return proto.ErrFrame(errkind.Err("timeout is not a float or out of range").Error()), nil
}

// waitForKeys blocks until either key's next mutation fires, timeout
// elapses (timeout <= 0 means no timer, i.e. block forever), or cancel
// closes. It returns true only when woken by a mutation, telling the
// caller to re-check rather than give up.
func waitForKeys(db *store.Database, keys []string, timeout time.Duration, cancel <-chan struct{}) bool {
	chans := make([]chan struct{}, len(keys))
	for i, k := range keys {
		chans[i] = db.Wait(k)
	}
	defer func() {
		for i, k := range keys {
			db.Forget(k, chans[i])
		}
	}()

	cases := make([]reflect.SelectCase, 0, len(chans)+2)
	for _, ch := range chans {
		cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ch)})
	}
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(timer.C)})
	}
	if cancel != nil {
		cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(cancel)})
	}
	chosen, _, _ := reflect.Select(cases)
	return chosen < len(chans)
}

// blockingTry is one attempt at satisfying a blocking command against
// a single key. ok is false when the key currently has nothing to
// offer (the caller should keep waiting); true means the command is
// done, whether by success or by a terminal type error.
type blockingTry func(db *store.Database, key string) (reply proto.Frame, propagate []string, ok bool)

// blockingLoop drives the generic "try every key, else wait and
// retry" shape shared by BLPOP/BRPOP/BZPOPMIN/BZPOPMAX. nilReply is
// what to return if the timeout elapses or the connection is
// cancelled without any key ever satisfying try.
func blockingLoop(s *Server, c *Conn, keys []string, timeoutMS int64, nilReply proto.Frame, try blockingTry) (proto.Frame, []string) {
	db := s.db(c)
	for {
		sem := db.Serializer()
		sem.RLock()
		for _, key := range keys {
			if reply, prop, ok := try(db, key); ok {
				sem.RUnlock()
				if prop != nil {
					s.Keyspace.MarkDirty(1)
				}
				return reply, prop
			}
		}
		sem.RUnlock()

		if c.InExec {
			return nilReply, nil
		}
		if !waitForKeys(db, keys, time.Duration(timeoutMS)*time.Millisecond, c.Cancel) {
			return nilReply, nil
		}
	}
}
