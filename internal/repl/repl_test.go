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
package repl

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/launix-de/redigo/internal/clock"
	"github.com/launix-de/redigo/internal/command"
	"github.com/launix-de/redigo/internal/config"
	"github.com/launix-de/redigo/internal/store"
	"github.com/launix-de/redigo/internal/types"
)

func newServer(clk clock.Source) (*command.Server, *command.Registry) {
	cfg := config.Default()
	return &command.Server{
		Keyspace: store.NewKeyspace(cfg.Databases),
		Config:   &cfg,
		Clock:    clk,
	}, command.NewRegistry()
}

func TestBacklogSinceWindow(t *testing.T) {
	b := NewBacklog(16)
	b.Write([]byte("0123456789"))
	off := b.Write([]byte("abcdef"))
	if off != 10 {
		t.Fatalf("expected second write offset 10, got %d", off)
	}
	if _, ok := b.Since(0); ok {
		t.Fatal("offset 0 should have fallen out of a 16-byte window after 16 bytes written")
	}
	data, ok := b.Since(10)
	if !ok || string(data) != "abcdef" {
		t.Fatalf("Since(10) = %q, %v", data, ok)
	}
}

func TestLeaderFollowerFullResync(t *testing.T) {
	clk := &clock.Fixed{Wall: 1_700_000_000_000, Mono: 0}
	leaderSrv, leaderReg := newServer(clk)
	conn := &command.Conn{}
	command.Dispatch(leaderReg, leaderSrv, conn, "SET", []string{"preexisting", "v"})

	leader := NewLeader(leaderSrv.Keyspace, clk, 1<<20, leaderSrv.Config.ProtoMaxBulkLenBytes, nil)

	followerSrv, followerReg := newServer(clk)
	clientSide, serverSide := net.Pipe()

	leaderDone := make(chan error, 1)
	go func() { leaderDone <- leader.HandleConn(serverSide, "127.0.0.1") }()

	dial := func(host string, port int) (io.ReadWriteCloser, error) { return clientSide, nil }
	link := NewFollowerLink(followerReg, followerSrv, clk, 6380, dial, nil)

	runDone := make(chan error, 1)
	go func() { runDone <- link.Run("leader", 0) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := followerSrv.Keyspace.DB(0).Get("preexisting", 0); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for full resync to apply")
		}
		time.Sleep(5 * time.Millisecond)
	}

	command.Dispatch(leaderReg, leaderSrv, conn, "SET", []string{"live", "w"})
	leader.Propagate(0, []string{"SET", "live", "w"})

	deadline = time.Now().Add(2 * time.Second)
	for {
		if e, ok := followerSrv.Keyspace.DB(0).Get("live", 0); ok {
			if string(e.Value.(*types.String).B) != "w" {
				t.Fatalf("replicated value mismatch: %q", e.Value.(*types.String).B)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for the live write to replicate")
		}
		time.Sleep(5 * time.Millisecond)
	}

	role := link.Role()
	if !role.IsReplica || role.LinkState != "connected" {
		t.Fatalf("unexpected follower ROLE state: %+v", role)
	}

	link.Stop()
	clientSide.Close()
	serverSide.Close()
}

func TestWaitReplicasWithNoFollowersReturnsZero(t *testing.T) {
	clk := &clock.Fixed{}
	srv, _ := newServer(clk)
	leader := NewLeader(srv.Keyspace, clk, 1<<16, 1<<20, nil)
	n := leader.WaitReplicas(1, 50, nil)
	if n != 0 {
		t.Fatalf("expected 0 acked replicas, got %d", n)
	}
}
