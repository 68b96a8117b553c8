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
	"sync"
)

// State is where a connected replica sits in the leader's handshake
// (spec.md §4.8).
type State int

const (
	ConnectedNew State = iota
	FullSyncSending
	PartialSyncStreaming
	Online
)

func (s State) String() string {
	switch s {
	case ConnectedNew:
		return "connect"
	case FullSyncSending:
		return "sync"
	case PartialSyncStreaming, Online:
		return "online"
	default:
		return "unknown"
	}
}

// replica is the leader's view of one connected follower: a bounded
// output buffer fed by Leader.Propagate and drained by the connection
// goroutine that owns the socket write side, plus the last offset the
// follower has acknowledged via REPLCONF ACK.
type replica struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	closed    bool
	notify    chan struct{}
	state     State
	addr      string
	port      int
	ackOffset int64
}

func newReplica(addr string, port int) *replica {
	return &replica{addr: addr, port: port, notify: make(chan struct{}, 1)}
}

func (r *replica) push(p []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.buf.Write(p)
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// drain returns and clears whatever is currently buffered; the caller
// writes it to the socket outside the lock.
func (r *replica) drain() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.buf.Len() == 0 {
		return nil
	}
	out := make([]byte, r.buf.Len())
	copy(out, r.buf.Bytes())
	r.buf.Reset()
	return out
}

func (r *replica) setAck(offset int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if offset > r.ackOffset {
		r.ackOffset = offset
	}
}

func (r *replica) ack() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ackOffset
}

func (r *replica) setState(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = s
}

func (r *replica) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	close(r.notify)
}
