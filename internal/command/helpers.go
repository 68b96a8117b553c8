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
	"strconv"
	"strings"

	"github.com/launix-de/redigo/internal/errkind"
	"github.com/launix-de/redigo/internal/proto"
	"github.com/launix-de/redigo/internal/store"
	"github.com/launix-de/redigo/internal/types"
)

func errReply(e *errkind.Error) proto.Frame { return proto.ErrFrame(e.Error()) }

func notAnInteger() proto.Frame {
	return errReply(errkind.Err("value is not an integer or out of range"))
}

func notAFloat() proto.Frame {
	return errReply(errkind.Err("value is not a valid float"))
}

func wrongType() proto.Frame { return errReply(errkind.WrongTypeErr()) }

func parseIntArg(s string) (int64, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	return n, err == nil
}

func parseUintArg(s string) (uint64, bool) {
	n, err := strconv.ParseUint(s, 10, 64)
	return n, err == nil
}

// expireAtMS converts a relative/absolute TTL (in the unit ttlMillis==true
// means milliseconds, false means seconds) into an absolute monotonic
// deadline, the form the keyspace stores (spec.md §4.4).
func expireAtMS(s *Server, amount int64, ttlMillis, absolute bool) int64 {
	wall, mono := s.now()
	if absolute {
		targetWallMS := amount
		if !ttlMillis {
			targetWallMS = amount * 1000
		}
		return mono + (targetWallMS - wall)
	}
	if !ttlMillis {
		amount *= 1000
	}
	return mono + amount
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }

func parseFloatArg(s string) (float64, error) { return strconv.ParseFloat(s, 64) }

// fetchString and its siblings below resolve key in db, applying lazy
// expiration, and return (value, exists, typeMatches): typeMatches is
// false when the key exists but holds a different Go type, and the
// caller turns that into a WRONGTYPE reply.
func fetchString(db *store.Database, key string, nowMono int64) (*types.String, bool, bool) {
	e, ok := db.Get(key, nowMono)
	if !ok {
		return nil, false, true
	}
	v, isStr := e.Value.(*types.String)
	return v, ok, isStr
}

func fetchList(db *store.Database, key string, nowMono int64) (*types.List, bool, bool) {
	e, ok := db.Get(key, nowMono)
	if !ok {
		return nil, false, true
	}
	v, isList := e.Value.(*types.List)
	return v, ok, isList
}

func fetchHash(db *store.Database, key string, nowMono int64) (*types.Hash, bool, bool) {
	e, ok := db.Get(key, nowMono)
	if !ok {
		return nil, false, true
	}
	v, isHash := e.Value.(*types.Hash)
	return v, ok, isHash
}

func fetchSet(db *store.Database, key string, nowMono int64) (*types.Set, bool, bool) {
	e, ok := db.Get(key, nowMono)
	if !ok {
		return nil, false, true
	}
	v, isSet := e.Value.(*types.Set)
	return v, ok, isSet
}

func fetchZSet(db *store.Database, key string, nowMono int64) (*types.ZSet, bool, bool) {
	e, ok := db.Get(key, nowMono)
	if !ok {
		return nil, false, true
	}
	v, isZSet := e.Value.(*types.ZSet)
	return v, ok, isZSet
}

func fetchStream(db *store.Database, key string, nowMono int64) (*types.Stream, bool, bool) {
	e, ok := db.Get(key, nowMono)
	if !ok {
		return nil, false, true
	}
	v, isStream := e.Value.(*types.Stream)
	return v, ok, isStream
}

func upper(s string) string { return strings.ToUpper(s) }

func bulkReply(b []byte, ok bool) proto.Frame {
	if !ok {
		return proto.NilBulk()
	}
	return proto.Bulk(b)
}

func intReply(n int) proto.Frame { return proto.Int(int64(n)) }

func boolReply(b bool) proto.Frame {
	if b {
		return proto.Int(1)
	}
	return proto.Int(0)
}
