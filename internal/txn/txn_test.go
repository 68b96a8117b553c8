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
package txn

import (
	"testing"

	"github.com/launix-de/redigo/internal/clock"
	"github.com/launix-de/redigo/internal/command"
	"github.com/launix-de/redigo/internal/config"
	"github.com/launix-de/redigo/internal/proto"
	"github.com/launix-de/redigo/internal/store"
)

func newFixture() (*command.Server, *command.Registry) {
	cfg := config.Default()
	s := &command.Server{
		Keyspace: store.NewKeyspace(cfg.Databases),
		Config:   &cfg,
		Clock:    &clock.Fixed{Wall: 1000, Mono: 0},
	}
	return s, command.NewRegistry()
}

func TestMultiQueueExecRunsInOrder(t *testing.T) {
	s, r := newFixture()
	c := &command.Conn{}

	if reply := Multi(c); reply.Str != "OK" {
		t.Fatalf("MULTI reply = %+v", reply)
	}
	if reply := Queue(r, c, "SET", []string{"k", "v"}); reply.Str != "QUEUED" {
		t.Fatalf("queue reply = %+v", reply)
	}
	if reply := Queue(r, c, "GET", []string{"k"}); reply.Str != "QUEUED" {
		t.Fatalf("queue reply = %+v", reply)
	}

	reply, _ := Exec(r, s, c)
	if reply.Type != proto.Array || len(reply.Arr) != 2 {
		t.Fatalf("EXEC reply = %+v", reply)
	}
	if reply.Arr[0].Str != "OK" || reply.Arr[1].Str != "v" {
		t.Fatalf("unexpected EXEC results: %+v", reply.Arr)
	}
	if c.InMulti {
		t.Fatal("EXEC should clear InMulti")
	}
}

func TestExecWithoutMultiErrors(t *testing.T) {
	s, r := newFixture()
	c := &command.Conn{}
	reply, _ := Exec(r, s, c)
	if reply.Type != proto.Error {
		t.Fatalf("expected error, got %+v", reply)
	}
}

func TestQueueUnknownCommandAbortsExec(t *testing.T) {
	s, r := newFixture()
	c := &command.Conn{}
	Multi(c)
	Queue(r, c, "SET", []string{"k", "v"})
	reply := Queue(r, c, "NOTACOMMAND", nil)
	if reply.Type != proto.Error {
		t.Fatalf("expected queue-time error, got %+v", reply)
	}
	if !c.Dirty {
		t.Fatal("expected Dirty to be set after a bad queued command")
	}
	execReply, prop := Exec(r, s, c)
	if execReply.Type != proto.Error {
		t.Fatalf("expected EXECABORT-style error, got %+v", execReply)
	}
	if prop != nil {
		t.Fatal("expected no propagation for an aborted transaction")
	}
}

func TestWatchDetectsModifiedKey(t *testing.T) {
	s, r := newFixture()
	c := &command.Conn{}
	command.Dispatch(r, s, c, "SET", []string{"k", "v1"})

	Watch(s, c, []string{"k"})

	other := &command.Conn{}
	command.Dispatch(r, s, other, "SET", []string{"k", "v2"})

	Multi(c)
	Queue(r, c, "GET", []string{"k"})
	reply, prop := Exec(r, s, c)
	if reply.Type != proto.Array || !reply.Null {
		t.Fatalf("expected a nil array reply for a broken watch, got %+v", reply)
	}
	if prop != nil {
		t.Fatal("expected no propagation for an invalidated transaction")
	}
}

func TestWatchUnchangedKeyExecSucceeds(t *testing.T) {
	s, r := newFixture()
	c := &command.Conn{}
	command.Dispatch(r, s, c, "SET", []string{"k", "v1"})

	Watch(s, c, []string{"k"})
	Multi(c)
	Queue(r, c, "GET", []string{"k"})
	reply, _ := Exec(r, s, c)
	if reply.Null || reply.Arr[0].Str != "v1" {
		t.Fatalf("expected successful EXEC, got %+v", reply)
	}
}

func TestWatchAbsentKeyThenCreatedBreaksIt(t *testing.T) {
	s, r := newFixture()
	c := &command.Conn{}
	Watch(s, c, []string{"missing"})

	other := &command.Conn{}
	command.Dispatch(r, s, other, "SET", []string{"missing", "now-exists"})

	Multi(c)
	Queue(r, c, "GET", []string{"missing"})
	reply, _ := Exec(r, s, c)
	if !reply.Null {
		t.Fatalf("expected broken watch due to key creation, got %+v", reply)
	}
}

func TestDiscardClearsQueue(t *testing.T) {
	s, r := newFixture()
	_ = s
	c := &command.Conn{}
	Multi(c)
	Queue(r, c, "SET", []string{"k", "v"})
	if reply := Discard(c); reply.Str != "OK" {
		t.Fatalf("DISCARD reply = %+v", reply)
	}
	if c.InMulti || len(c.Queue) != 0 {
		t.Fatal("DISCARD should reset transaction state")
	}
}

func TestUnwatchClearsWatches(t *testing.T) {
	s, r := newFixture()
	c := &command.Conn{}
	command.Dispatch(r, s, c, "SET", []string{"k", "v"})
	Watch(s, c, []string{"k"})
	if len(c.Watches) != 1 {
		t.Fatal("expected one watch recorded")
	}
	Unwatch(c)
	if len(c.Watches) != 0 {
		t.Fatal("UNWATCH should clear watches")
	}
}

func TestNestedMultiErrors(t *testing.T) {
	c := &command.Conn{}
	Multi(c)
	reply := Multi(c)
	if reply.Type != proto.Error {
		t.Fatalf("expected error on nested MULTI, got %+v", reply)
	}
}
