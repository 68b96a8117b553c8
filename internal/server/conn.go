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
package server

import (
	"net"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/launix-de/redigo/internal/command"
	"github.com/launix-de/redigo/internal/errkind"
	"github.com/launix-de/redigo/internal/proto"
	"github.com/launix-de/redigo/internal/txn"
)

// preAuth is the small set of commands a connection may issue before
// AUTH succeeds when requirepass is set (spec.md §6 --requirepass).
var preAuth = map[string]bool{"AUTH": true, "HELLO": true, "QUIT": true, "PING": true, "RESET": true}

// handleConn drives one client connection end to end: RESP framing,
// requirepass gating, MULTI/EXEC/WATCH interception, the PSYNC
// handoff, and otherwise plain command.Dispatch plus propagation.
func (s *Server) handleConn(nc net.Conn) {
	defer nc.Close()
	remoteAddr := nc.RemoteAddr().String()
	fr := proto.NewFrameReader(nc, s.Config.ProtoMaxBulkLenBytes)
	c := &command.Conn{DB: 0}

	for {
		f, _, err := fr.ReadFrame()
		if err != nil {
			return
		}
		name, args, ok := f.AsCommand()
		if !ok {
			continue
		}
		upper := strings.ToUpper(name)

		if s.Config.RequirePass != "" && !c.Authenticated && !preAuth[upper] {
			s.reply(nc, proto.ErrFrame(errkind.New(errkind.NoAuth, "Authentication required.").Error()))
			continue
		}

		switch upper {
		case "PSYNC":
			// servePSYNC writes FULLRESYNC/CONTINUE and every following
			// frame itself; it owns the connection until the link ends.
			_ = s.Leader.ServePSYNC(nc, fr, remoteAddr, c.ReplicaListenPort, args)
			return
		case "MULTI":
			s.reply(nc, txn.Multi(c))
			continue
		case "DISCARD":
			s.reply(nc, txn.Discard(c))
			continue
		case "WATCH":
			s.reply(nc, txn.Watch(s.Core, c, args))
			continue
		case "UNWATCH":
			s.reply(nc, txn.Unwatch(c))
			continue
		case "EXEC":
			reply, propagate := txn.Exec(s.Registry, s.Core, c)
			if s.Core.Prop != nil {
				propagateTxn(s.Core.Prop, c.DB, propagate)
			}
			s.reply(nc, reply)
			continue
		case "SHUTDOWN":
			save := len(s.Config.Save) > 0
			if len(args) > 0 && strings.EqualFold(args[0], "NOSAVE") {
				save = false
			}
			if len(args) > 0 && strings.EqualFold(args[0], "SAVE") {
				save = true
			}
			select {
			case s.shutdownReq <- save:
			default:
			}
			return
		}

		if c.InMulti {
			s.reply(nc, txn.Queue(s.Registry, c, name, args))
			continue
		}

		spec, specOK := s.Registry.Lookup(upper)
		if specOK && spec.WriteCmd && !c.IsReplicaLink {
			if s.Config.ReplicaReadOnly && s.Core.Hooks.IsReplica != nil && s.Core.Hooks.IsReplica() {
				s.reply(nc, proto.ErrFrame(errkind.ReadOnlyErr().Error()))
				continue
			}
		}

		// Blocking commands (BLPOP/.../WAIT) run synchronously on this
		// same goroutine and may wait indefinitely; watch the socket
		// concurrently so a client disconnect cancels the wait instead
		// of leaking this goroutine and the fd forever (spec.md §5).
		var reply proto.Frame
		var propagate []string
		if specOK && spec.Blocking {
			stop := make(chan struct{})
			c.Cancel = watchDisconnect(nc, stop)
			reply, propagate = command.Dispatch(s.Registry, s.Core, c, name, args)
			close(stop)
			nc.SetReadDeadline(time.Time{})
			c.Cancel = nil
		} else {
			reply, propagate = command.Dispatch(s.Registry, s.Core, c, name, args)
		}
		if propagate != nil && s.Core.Prop != nil {
			s.Core.Prop.Propagate(c.DB, propagate)
		}
		s.reply(nc, reply)

		if upper == "QUIT" {
			return
		}
	}
}

func (s *Server) reply(nc net.Conn, f proto.Frame) {
	if _, err := nc.Write(proto.Encode(nil, f)); err != nil {
		s.Log.Debug("write failed", zap.Error(err))
	}
}

// watchDisconnect polls nc with short read deadlines on its own
// goroutine while the caller is synchronously blocked elsewhere
// (inside a blocking command's Dispatch call, which does not itself
// read from nc), and closes the returned channel the moment nc looks
// closed/broken. The caller must close stop once its blocking call
// returns so this goroutine exits instead of outliving the command.
//
// A byte read here while a command is blocked is presumed to be noise
// rather than a pipelined command (clients are not expected to
// pipeline past a blocking call) and is discarded; this is a
// deliberate simplification, not full half-duplex framing.
func watchDisconnect(nc net.Conn, stop <-chan struct{}) <-chan struct{} {
	cancel := make(chan struct{})
	go func() {
		defer close(cancel)
		buf := make([]byte, 1)
		for {
			select {
			case <-stop:
				return
			default:
			}
			nc.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
			_, err := nc.Read(buf)
			if err == nil {
				continue
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return
		}
	}()
	return cancel
}
