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
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/launix-de/redigo/internal/clock"
	"github.com/launix-de/redigo/internal/command"
	"github.com/launix-de/redigo/internal/proto"
	"github.com/launix-de/redigo/internal/snapshot"
	"github.com/launix-de/redigo/internal/store"
)

// Leader is the leader-side half of replication (spec.md §4.8): it
// implements command.Propagator so it sits next to internal/aof.Engine
// on the write fan-out, keeps a Backlog for PSYNC continuation, and
// accepts replica connections handed to it by the connection loop.
type Leader struct {
	replid   string
	ks       *store.Keyspace
	clk      clock.Source
	log      *zap.Logger
	backlog  *Backlog
	maxBulk  int64

	mu       sync.Mutex
	curDB    int
	replicas map[*replica]struct{}
}

func NewLeader(ks *store.Keyspace, clk clock.Source, backlogBytes int64, maxBulk int64, log *zap.Logger) *Leader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Leader{
		replid:   strings.ReplaceAll(uuid.New().String(), "-", ""),
		ks:       ks,
		clk:      clk,
		log:      log,
		backlog:  NewBacklog(int(backlogBytes)),
		maxBulk:  maxBulk,
		curDB:    -1,
		replicas: make(map[*replica]struct{}),
	}
}

func (l *Leader) ReplID() string { return l.replid }
func (l *Leader) Offset() int64  { return l.backlog.Offset() }

// Propagate implements command.Propagator: every effective write is
// framed exactly as the append log frames it (a SELECT when the
// target db changed, then the command array), appended to the
// backlog, and pushed to every connected replica's output buffer.
func (l *Leader) Propagate(db int, args []string) {
	var buf bytes.Buffer
	l.mu.Lock()
	if db != l.curDB {
		buf.Write(proto.Encode(nil, proto.ArraySlice([]proto.Frame{proto.BulkStr("SELECT"), proto.BulkStr(strconv.Itoa(db))})))
		l.curDB = db
	}
	buf.Write(proto.Encode(nil, proto.BulkStrings(args)))
	l.backlog.Write(buf.Bytes())
	replicas := make([]*replica, 0, len(l.replicas))
	for r := range l.replicas {
		replicas = append(replicas, r)
	}
	l.mu.Unlock()

	for _, r := range replicas {
		r.push(buf.Bytes())
	}
}

// Role implements the master half of command.RoleInfo (spec.md §6 ROLE).
func (l *Leader) Role() command.RoleInfo {
	l.mu.Lock()
	defer l.mu.Unlock()
	followers := make([]command.FollowerInfo, 0, len(l.replicas))
	for r := range l.replicas {
		r.mu.Lock()
		followers = append(followers, command.FollowerInfo{Addr: r.addr, Port: r.port, AckOffset: r.ackOffset})
		r.mu.Unlock()
	}
	return command.RoleInfo{IsReplica: false, Offset: l.backlog.Offset(), Followers: followers}
}

// WaitReplicas implements WAIT: it asks every replica for its current
// ack via REPLCONF GETACK and polls until numreplicas have
// acknowledged at least the leader's offset at the time WAIT was
// issued, timeoutMS elapses (0 meaning wait forever), or cancel closes
// (the issuing connection went away: spec.md §5 cancellation, "no
// side-effects remain pending" — this goroutine is that connection's
// own read-loop goroutine, so without cancel it would wait forever).
func (l *Leader) WaitReplicas(numreplicas int, timeoutMS int64, cancel <-chan struct{}) int {
	target := l.backlog.Offset()
	getack := proto.Encode(nil, proto.ArraySlice([]proto.Frame{proto.BulkStr("REPLCONF"), proto.BulkStr("GETACK"), proto.BulkStr("*")}))

	l.mu.Lock()
	for r := range l.replicas {
		r.push(getack)
	}
	l.mu.Unlock()

	deadline := time.Time{}
	if timeoutMS > 0 {
		deadline = time.Now().Add(time.Duration(timeoutMS) * time.Millisecond)
	}
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		reached := l.countAcked(target)
		if reached >= numreplicas {
			return reached
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return reached
		}
		select {
		case <-ticker.C:
		case <-cancel:
			return l.countAcked(target)
		}
	}
}

func (l *Leader) countAcked(target int64) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for r := range l.replicas {
		if r.ack() >= target {
			n++
		}
	}
	return n
}

// ServePSYNC is the entry point a shared connection loop uses: PING
// and REPLCONF are ordinary commands (cmdPing/cmdReplConf already
// reply PONG/OK to any connection), so by the time PSYNC arrives the
// loop has already captured the replica's announced listening port
// onto the connection and only needs to hand off the raw stream and
// the already-parsed PSYNC args. It blocks until the link ends.
func (l *Leader) ServePSYNC(rw io.ReadWriteCloser, fr *proto.FrameReader, remoteAddr string, listenPort int, args []string) error {
	return l.servePSYNC(rw, fr, newReplica(remoteAddr, listenPort), args)
}

// HandleConn is the self-contained form used in isolation (tests,
// or a dedicated replication listener): it runs the whole
// PING/REPLCONF/PSYNC handshake itself rather than assuming a caller
// already dispatched PING/REPLCONF as ordinary commands. It then sends
// the full or partial resync payload and streams live writes, blocking
// until the connection closes or errors, so callers run it in its own
// goroutine per accepted connection.
func (l *Leader) HandleConn(rw io.ReadWriteCloser, remoteAddr string) error {
	fr := proto.NewFrameReader(rw, l.maxBulk)
	rep := newReplica(remoteAddr, 0)

	for {
		f, _, err := fr.ReadFrame()
		if err != nil {
			return err
		}
		name, args, ok := f.AsCommand()
		if !ok {
			continue
		}
		switch strings.ToUpper(name) {
		case "PING":
			if _, err := rw.Write(proto.Encode(nil, proto.SimpleStr("PONG"))); err != nil {
				return err
			}
		case "REPLCONF":
			if len(args) >= 2 && strings.EqualFold(args[0], "listening-port") {
				if p, err := strconv.Atoi(args[1]); err == nil {
					rep.port = p
				}
			}
			if _, err := rw.Write(proto.Encode(nil, proto.OK())); err != nil {
				return err
			}
		case "PSYNC":
			return l.servePSYNC(rw, fr, rep, args)
		default:
			if _, err := rw.Write(proto.Encode(nil, proto.ErrFrame("ERR unexpected command during replication handshake"))); err != nil {
				return err
			}
		}
	}
}

func (l *Leader) servePSYNC(rw io.ReadWriteCloser, fr *proto.FrameReader, rep *replica, args []string) error {
	defer rw.Close()
	wantReplID := ""
	wantOffset := int64(-1)
	if len(args) >= 2 {
		wantReplID = args[0]
		if n, err := strconv.ParseInt(args[1], 10, 64); err == nil {
			wantOffset = n
		}
	}

	var tail []byte
	continueStream := false
	if wantReplID == l.replid && wantOffset >= 0 {
		if data, ok := l.backlog.Since(wantOffset); ok {
			tail = data
			continueStream = true
		}
	}

	if continueStream {
		rep.setState(PartialSyncStreaming)
		if _, err := rw.Write(proto.Encode(nil, proto.SimpleStr("CONTINUE "+l.replid))); err != nil {
			return err
		}
	} else {
		nowMono := l.clk.MonotonicMS()
		var snap bytes.Buffer
		if err := snapshot.Write(&snap, l.ks, nowMono); err != nil {
			return err
		}
		offset := l.backlog.Offset()
		rep.setState(FullSyncSending)
		if _, err := rw.Write(proto.Encode(nil, proto.SimpleStr(fmt.Sprintf("FULLRESYNC %s %d", l.replid, offset)))); err != nil {
			return err
		}
		if _, err := rw.Write(proto.Encode(nil, proto.Bulk(snap.Bytes()))); err != nil {
			return err
		}
		if data, ok := l.backlog.Since(offset); ok {
			tail = data
		}
	}

	rep.push(tail)
	rep.setState(Online)

	l.mu.Lock()
	l.replicas[rep] = struct{}{}
	l.mu.Unlock()
	l.log.Info("replica online", zap.String("addr", rep.addr), zap.Int("port", rep.port))

	defer func() {
		l.mu.Lock()
		delete(l.replicas, rep)
		l.mu.Unlock()
		rep.close()
		l.log.Info("replica disconnected", zap.String("addr", rep.addr))
	}()

	done := make(chan error, 1)
	go func() {
		for {
			f, _, err := fr.ReadFrame()
			if err != nil {
				done <- err
				return
			}
			name, cargs, ok := f.AsCommand()
			if !ok {
				continue
			}
			if strings.EqualFold(name, "REPLCONF") && len(cargs) >= 2 && strings.EqualFold(cargs[0], "ACK") {
				if off, err := strconv.ParseInt(cargs[1], 10, 64); err == nil {
					rep.setAck(off)
				}
			}
		}
	}()

	for {
		select {
		case err := <-done:
			return err
		case <-rep.notify:
			if out := rep.drain(); len(out) > 0 {
				if _, err := rw.Write(out); err != nil {
					return err
				}
			}
		}
	}
}
