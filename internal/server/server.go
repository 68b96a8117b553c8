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

// Package server implements C4/C9 of spec.md §4.9: binds the listening
// socket, admission-controls connections to maxclients, and wires the
// keyspace together with the command registry, the expiration cycle,
// persistence (internal/snapshot, internal/aof), and replication
// (internal/repl) behind command.Server.Hooks.
package server

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/launix-de/redigo/internal/aof"
	"github.com/launix-de/redigo/internal/clock"
	"github.com/launix-de/redigo/internal/command"
	"github.com/launix-de/redigo/internal/config"
	"github.com/launix-de/redigo/internal/expire"
	"github.com/launix-de/redigo/internal/repl"
	"github.com/launix-de/redigo/internal/snapshot"
	"github.com/launix-de/redigo/internal/store"
	"github.com/launix-de/redigo/internal/timer"
)

// Server owns every long-lived collaborator a running node needs and
// the accept loop that feeds them.
type Server struct {
	Config   *config.View
	Registry *command.Registry
	Core     *command.Server
	Log      *zap.Logger

	Snapshot *snapshot.Engine
	AOF      *aof.Engine
	Expire   *expire.Engine
	Leader   *repl.Leader

	sched *timer.Scheduler
	clk   clock.Source

	mu       sync.Mutex
	follower *repl.FollowerLink

	listener net.Listener
	sem      *semaphore.Weighted
	wg       sync.WaitGroup
	quit     chan struct{}
	cancel   context.CancelFunc
	ctx      context.Context

	shutdownReq chan bool
}

// ShutdownRequests reports the save flag from each SHUTDOWN command a
// client issues (NOSAVE sends false); cmd/redigo-server selects on it
// next to OS signals to drive the same Shutdown(save) path either way.
func (s *Server) ShutdownRequests() <-chan bool {
	return s.shutdownReq
}

// New assembles a Server from cfg but does not bind a socket or start
// any background task yet; call Start for that.
func New(cfg *config.View, clk clock.Source, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	ks := store.NewKeyspace(cfg.Databases)
	reg := command.NewRegistry()
	core := &command.Server{
		Keyspace: ks,
		Config:   cfg,
		Clock:    clk,
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		Config:   cfg,
		Registry: reg,
		Core:     core,
		Log:      log,
		Snapshot: snapshot.NewEngine(cfg.Dir, cfg.DBFilename, clk),
		Leader:   repl.NewLeader(ks, clk, cfg.ReplBacklogSizeBytes, cfg.ProtoMaxBulkLenBytes, log.Named("repl.leader")),
		sched:    timer.NewScheduler(),
		clk:      clk,
		sem:      semaphore.NewWeighted(int64(maxOrDefault(cfg.MaxClients))),
		quit:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,

		shutdownReq: make(chan bool, 1),
	}
	if cfg.AppendOnly {
		s.AOF = aof.NewEngine(cfg.Dir, cfg.AppendFilename, clk, cfg.AppendFsync)
	}
	core.Prop = newFanoutPropagator(s)
	core.ReplOffset = s.Leader.Offset
	s.Expire = expire.NewEngine(ks, clk, core.Prop, time.Second)
	s.wireHooks()
	return s
}

func maxOrDefault(n int) int {
	if n <= 0 {
		return 10000
	}
	return n
}

func (s *Server) wireHooks() {
	s.Core.Hooks = command.ServerHooks{
		Save: func() error {
			_, mono := s.now()
			err := s.Snapshot.Save(s.Core.Keyspace, mono)
			if err == nil {
				s.Core.Keyspace.ResetDirty()
			}
			return err
		},
		BGSave: func() error {
			_, mono := s.now()
			return s.Snapshot.BGSave(s.Core.Keyspace, mono, func(err error) {
				if err == nil {
					s.Core.Keyspace.ResetDirty()
				}
			})
		},
		BGRewriteAOF: func() error {
			if s.AOF == nil {
				return fmt.Errorf("append only file is not enabled")
			}
			_, mono := s.now()
			return s.AOF.BGRewrite(s.Core.Keyspace, mono, nil)
		},
		WaitReplicas: func(numreplicas int, timeoutMS int64, cancel <-chan struct{}) int {
			return s.Leader.WaitReplicas(numreplicas, timeoutMS, cancel)
		},
		ReplicaOfNoOne: func() { s.stopFollower() },
		ReplicaOf: func(host string, port int) error {
			return s.startFollower(host, port)
		},
		IsReplica: func() bool {
			return s.currentFollower() != nil
		},
		ConnectedSlaves: func() int {
			return len(s.Leader.Role().Followers)
		},
		Role: func() command.RoleInfo {
			if f := s.currentFollower(); f != nil {
				return f.Role()
			}
			return s.Leader.Role()
		},
	}
}

func (s *Server) now() (wallMS, monoMS int64) {
	return s.clk.NowMS(), s.clk.MonotonicMS()
}

func (s *Server) currentFollower() *repl.FollowerLink {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.follower
}

func (s *Server) startFollower(host string, port int) error {
	s.mu.Lock()
	if s.follower != nil {
		s.follower.Stop()
	}
	link := repl.NewFollowerLink(s.Registry, s.Core, s.clk, s.Config.Port, nil, s.Log.Named("repl.follower"))
	s.follower = link
	s.mu.Unlock()

	go func() {
		for {
			if s.currentFollower() != link {
				return
			}
			if err := link.Run(host, port); err != nil {
				s.Log.Warn("replication link error", zap.Error(err), zap.String("leader", fmt.Sprintf("%s:%d", host, port)))
			}
			if s.currentFollower() != link {
				return
			}
			time.Sleep(time.Second)
		}
	}()
	return nil
}

func (s *Server) stopFollower() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.follower != nil {
		s.follower.Stop()
		s.follower = nil
	}
}

// LoadPersisted loads the snapshot, then replays the append log over
// it if append-only mode is on, matching the startup order spec.md
// §4.9 describes ("snapshot, then AOF tail") — the AOF is the more
// recent source of truth whenever both exist.
func (s *Server) LoadPersisted() error {
	wallToMono := func(wallMS int64) int64 {
		return s.clk.MonotonicMS() + (wallMS - s.clk.NowMS())
	}
	if s.AOF == nil {
		return s.Snapshot.Load(s.Core.Keyspace, wallToMono)
	}
	if err := s.Snapshot.Load(s.Core.Keyspace, wallToMono); err != nil {
		return err
	}
	if err := s.AOF.Open(); err != nil {
		return err
	}
	if _, err := aof.LoadFile(s.AOF.Path(), s.Registry, s.Core, s.clk); err != nil {
		return err
	}
	return nil
}

// Start binds the listening socket and launches every background
// task; it does not block (see Serve for the accept loop).
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.Config.Port)
	if len(s.Config.Bind) > 0 && s.Config.Bind[0] != "" && s.Config.Bind[0] != "0.0.0.0" {
		addr = fmt.Sprintf("%s:%d", s.Config.Bind[0], s.Config.Port)
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = ln

	s.Expire.Start()
	s.schedulePeriodicTasks()

	if s.Config.ReplicaOf != "" {
		host, portStr, err := net.SplitHostPort(s.Config.ReplicaOf)
		if err == nil {
			if port, perr := strconv.Atoi(portStr); perr == nil {
				s.startFollower(host, port)
			}
		}
	}
	return nil
}

// Serve runs the accept loop; it returns when the listener is closed.
// Admission above maxclients blocks the accepting goroutine on
// sem.Acquire rather than dropping the connection outright, so a
// client waits briefly instead of seeing a reset under a momentary
// burst (spec.md §4.9 "admitted with a concurrency bound").
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return nil
			default:
				return err
			}
		}
		if err := s.sem.Acquire(s.ctx, 1); err != nil {
			conn.Close()
			return nil
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.sem.Release(1)
			s.handleConn(conn)
		}()
	}
}

// Shutdown stops accepting new connections, waits for in-flight ones,
// stops background tasks, and performs a final blocking save when save
// is true and at least one save rule is configured; with no save rule
// configured no final save is made, even for `SHUTDOWN SAVE`.
func (s *Server) Shutdown(save bool) error {
	close(s.quit)
	s.cancel()
	if s.listener != nil {
		s.listener.Close()
	}

	// The expiration ticker, the periodic-task scheduler, and the
	// follower link are independent background tasks; bringing them
	// down concurrently under one errgroup means Shutdown's latency is
	// the slowest one to stop, not their sum.
	var g errgroup.Group
	g.Go(func() error { s.Expire.Stop(); return nil })
	g.Go(func() error { s.sched.Stop(); return nil })
	g.Go(func() error { s.stopFollower(); return nil })
	g.Wait()
	s.wg.Wait()

	var err error
	if save && len(s.Config.Save) > 0 {
		_, mono := s.now()
		err = s.Snapshot.Save(s.Core.Keyspace, mono)
	}
	if s.AOF != nil {
		if cerr := s.AOF.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
