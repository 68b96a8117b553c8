package command

import (
	"testing"

	"github.com/launix-de/redigo/internal/clock"
	"github.com/launix-de/redigo/internal/config"
	"github.com/launix-de/redigo/internal/proto"
	"github.com/launix-de/redigo/internal/store"
)

func newTestServer() (*Server, *Registry) {
	cfg := config.Default()
	s := &Server{
		Keyspace: store.NewKeyspace(cfg.Databases),
		Config:   &cfg,
		Clock:    &clock.Fixed{Wall: 1_700_000_000_000, Mono: 0},
	}
	return s, NewRegistry()
}

func run(t *testing.T, s *Server, r *Registry, c *Conn, name string, args ...string) proto.Frame {
	t.Helper()
	reply, _ := Dispatch(r, s, c, name, args)
	return reply
}

func TestSetGetDel(t *testing.T) {
	s, r := newTestServer()
	c := &Conn{}
	if reply := run(t, s, r, c, "SET", "k", "v"); reply.Str != "OK" {
		t.Fatalf("SET reply = %+v", reply)
	}
	if reply := run(t, s, r, c, "GET", "k"); reply.Str != "v" {
		t.Fatalf("GET reply = %+v", reply)
	}
	if reply := run(t, s, r, c, "DEL", "k"); reply.Int != 1 {
		t.Fatalf("DEL reply = %+v", reply)
	}
	if reply := run(t, s, r, c, "GET", "k"); !reply.Null {
		t.Fatalf("expected nil after delete, got %+v", reply)
	}
}

func TestSetNXRespectsExisting(t *testing.T) {
	s, r := newTestServer()
	c := &Conn{}
	run(t, s, r, c, "SET", "k", "v1")
	reply, propagate := Dispatch(r, s, c, "SET", []string{"k", "v2", "NX"})
	if reply.Type != proto.Bulk || !reply.Null {
		t.Fatalf("expected nil reply for NX against existing key, got %+v", reply)
	}
	if propagate != nil {
		t.Fatalf("expected no propagation for a no-op SET NX")
	}
	if reply := run(t, s, r, c, "GET", "k"); reply.Str != "v1" {
		t.Fatalf("expected original value preserved, got %+v", reply)
	}
}

func TestIncrDecr(t *testing.T) {
	s, r := newTestServer()
	c := &Conn{}
	run(t, s, r, c, "SET", "n", "10")
	if reply := run(t, s, r, c, "INCR", "n"); reply.Int != 11 {
		t.Fatalf("INCR reply = %+v", reply)
	}
	if reply := run(t, s, r, c, "DECRBY", "n", "5"); reply.Int != 6 {
		t.Fatalf("DECRBY reply = %+v", reply)
	}
}

func TestWrongTypeError(t *testing.T) {
	s, r := newTestServer()
	c := &Conn{}
	run(t, s, r, c, "LPUSH", "l", "a")
	reply := run(t, s, r, c, "GET", "l")
	if reply.Type != proto.Error {
		t.Fatalf("expected WRONGTYPE error, got %+v", reply)
	}
}

func TestExpireAndTTL(t *testing.T) {
	s, r := newTestServer()
	c := &Conn{}
	run(t, s, r, c, "SET", "k", "v")
	if reply := run(t, s, r, c, "EXPIRE", "k", "100"); reply.Int != 1 {
		t.Fatalf("EXPIRE reply = %+v", reply)
	}
	if reply := run(t, s, r, c, "TTL", "k"); reply.Int != 100 {
		t.Fatalf("TTL reply = %+v", reply)
	}
	fc := s.Clock.(*clock.Fixed)
	fc.Advance(150_000)
	if reply := run(t, s, r, c, "GET", "k"); !reply.Null {
		t.Fatalf("expected key to be expired, got %+v", reply)
	}
}

func TestListPushRangePop(t *testing.T) {
	s, r := newTestServer()
	c := &Conn{}
	run(t, s, r, c, "RPUSH", "l", "a", "b", "c")
	reply := run(t, s, r, c, "LRANGE", "l", "0", "-1")
	if len(reply.Arr) != 3 || reply.Arr[0].Str != "a" || reply.Arr[2].Str != "c" {
		t.Fatalf("LRANGE reply = %+v", reply)
	}
	if reply := run(t, s, r, c, "LPOP", "l"); reply.Str != "a" {
		t.Fatalf("LPOP reply = %+v", reply)
	}
}

func TestHashRoundTrip(t *testing.T) {
	s, r := newTestServer()
	c := &Conn{}
	run(t, s, r, c, "HSET", "h", "f1", "v1", "f2", "v2")
	if reply := run(t, s, r, c, "HGET", "h", "f1"); reply.Str != "v1" {
		t.Fatalf("HGET reply = %+v", reply)
	}
	if reply := run(t, s, r, c, "HLEN", "h"); reply.Int != 2 {
		t.Fatalf("HLEN reply = %+v", reply)
	}
}

func TestSetAlgebra(t *testing.T) {
	s, r := newTestServer()
	c := &Conn{}
	run(t, s, r, c, "SADD", "a", "1", "2", "3")
	run(t, s, r, c, "SADD", "b", "2", "3", "4")
	reply := run(t, s, r, c, "SINTER", "a", "b")
	if len(reply.Arr) != 2 {
		t.Fatalf("SINTER reply = %+v", reply)
	}
}

func TestZSetRankAndRange(t *testing.T) {
	s, r := newTestServer()
	c := &Conn{}
	run(t, s, r, c, "ZADD", "z", "1", "a", "2", "b", "3", "c")
	if reply := run(t, s, r, c, "ZRANK", "z", "b"); reply.Int != 1 {
		t.Fatalf("ZRANK reply = %+v", reply)
	}
	reply := run(t, s, r, c, "ZRANGE", "z", "0", "-1", "WITHSCORES")
	if len(reply.Arr) != 6 {
		t.Fatalf("ZRANGE WITHSCORES reply = %+v", reply)
	}
}

func TestMultiDBSelectIsolatesKeys(t *testing.T) {
	s, r := newTestServer()
	c := &Conn{}
	run(t, s, r, c, "SET", "k", "db0")
	run(t, s, r, c, "SELECT", "1")
	if reply := run(t, s, r, c, "GET", "k"); !reply.Null {
		t.Fatalf("expected db1 to be empty, got %+v", reply)
	}
	run(t, s, r, c, "SET", "k", "db1")
	run(t, s, r, c, "SELECT", "0")
	if reply := run(t, s, r, c, "GET", "k"); reply.Str != "db0" {
		t.Fatalf("expected db0 value preserved, got %+v", reply)
	}
}

func TestUnknownCommand(t *testing.T) {
	s, r := newTestServer()
	c := &Conn{}
	reply := run(t, s, r, c, "NOTACOMMAND")
	if reply.Type != proto.Error {
		t.Fatalf("expected error for unknown command, got %+v", reply)
	}
}

func TestArityError(t *testing.T) {
	s, r := newTestServer()
	c := &Conn{}
	reply := run(t, s, r, c, "GET")
	if reply.Type != proto.Error {
		t.Fatalf("expected arity error, got %+v", reply)
	}
}

func TestGetExMutatesTTLWithoutChangingValue(t *testing.T) {
	s, r := newTestServer()
	c := &Conn{}
	run(t, s, r, c, "SET", "k", "v")
	if reply := run(t, s, r, c, "GETEX", "k", "EX", "100"); reply.Str != "v" {
		t.Fatalf("GETEX reply = %+v", reply)
	}
	if reply := run(t, s, r, c, "TTL", "k"); reply.Int != 100 {
		t.Fatalf("TTL after GETEX = %+v", reply)
	}
	if reply := run(t, s, r, c, "GETEX", "k", "PERSIST"); reply.Str != "v" {
		t.Fatalf("GETEX PERSIST reply = %+v", reply)
	}
	if reply := run(t, s, r, c, "TTL", "k"); reply.Int != -1 {
		t.Fatalf("expected TTL cleared, got %+v", reply)
	}
}

func TestSetBitGetBitBitCount(t *testing.T) {
	s, r := newTestServer()
	c := &Conn{}
	if reply := run(t, s, r, c, "SETBIT", "b", "7", "1"); reply.Int != 0 {
		t.Fatalf("SETBIT reply = %+v", reply)
	}
	if reply := run(t, s, r, c, "GETBIT", "b", "7"); reply.Int != 1 {
		t.Fatalf("GETBIT reply = %+v", reply)
	}
	if reply := run(t, s, r, c, "GETBIT", "b", "6"); reply.Int != 0 {
		t.Fatalf("GETBIT reply = %+v", reply)
	}
	if reply := run(t, s, r, c, "BITCOUNT", "b"); reply.Int != 1 {
		t.Fatalf("BITCOUNT reply = %+v", reply)
	}
}

func TestHRandFieldWithValues(t *testing.T) {
	s, r := newTestServer()
	c := &Conn{}
	run(t, s, r, c, "HSET", "h", "f1", "v1", "f2", "v2")
	reply := run(t, s, r, c, "HRANDFIELD", "h", "2", "WITHVALUES")
	if len(reply.Arr) != 4 {
		t.Fatalf("HRANDFIELD WITHVALUES reply = %+v", reply)
	}
}

func TestZAddIncrBehavesLikeZIncrBy(t *testing.T) {
	s, r := newTestServer()
	c := &Conn{}
	run(t, s, r, c, "ZADD", "z", "5", "a")
	reply := run(t, s, r, c, "ZADD", "z", "INCR", "2", "a")
	if reply.Str != "7" {
		t.Fatalf("ZADD INCR reply = %+v", reply)
	}
	if reply := run(t, s, r, c, "ZADD", "z", "NX", "INCR", "2", "a"); !reply.Null {
		t.Fatalf("expected nil reply for ZADD NX INCR against existing member, got %+v", reply)
	}
}

func TestBLPopReturnsImmediatelyWhenElementAvailable(t *testing.T) {
	s, r := newTestServer()
	c := &Conn{}
	run(t, s, r, c, "RPUSH", "l", "a")
	reply := run(t, s, r, c, "BLPOP", "l", "0")
	if len(reply.Arr) != 2 || reply.Arr[0].Str != "l" || reply.Arr[1].Str != "a" {
		t.Fatalf("BLPOP reply = %+v", reply)
	}
}

func TestBLPopTimesOutOnEmptyKey(t *testing.T) {
	s, r := newTestServer()
	c := &Conn{}
	reply := run(t, s, r, c, "BLPOP", "missing", "0.05")
	if !reply.Null {
		t.Fatalf("expected nil array after timeout, got %+v", reply)
	}
}

func TestBlockingCommandInsideExecDoesNotWait(t *testing.T) {
	s, r := newTestServer()
	c := &Conn{InExec: true}
	reply, propagate := Dispatch(r, s, c, "BLPOP", []string{"missing", "0"})
	if !reply.Null {
		t.Fatalf("expected immediate nil reply inside EXEC, got %+v", reply)
	}
	if propagate != nil {
		t.Fatalf("expected no propagation for an unsatisfied blocking pop")
	}
}
