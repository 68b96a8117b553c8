package store

import (
	"testing"

	"github.com/launix-de/redigo/internal/types"
)

func TestSetGetRoundTrip(t *testing.T) {
	db := newDatabase(0)
	db.Set("foo", types.NewString([]byte("bar")), false)
	e, ok := db.Get("foo", 0)
	if !ok {
		t.Fatalf("expected foo to exist")
	}
	s, ok := e.Value.(*types.String)
	if !ok || string(s.B) != "bar" {
		t.Fatalf("got %#v", e.Value)
	}
}

func TestExpireLazyEviction(t *testing.T) {
	db := newDatabase(0)
	db.Set("k", types.NewString([]byte("v")), false)
	db.SetExpire("k", 100, 0)
	if _, ok := db.Get("k", 50); !ok {
		t.Fatalf("expected k alive before deadline")
	}
	if _, ok := db.Get("k", 150); ok {
		t.Fatalf("expected k gone after deadline")
	}
	if !db.ExpireIfNeeded("k", 150) {
		t.Fatalf("expected ExpireIfNeeded to report eviction")
	}
	if db.ExpireIfNeeded("k", 150) {
		t.Fatalf("expected second call to be a no-op")
	}
}

func TestSetExpireMissingKey(t *testing.T) {
	db := newDatabase(0)
	if db.SetExpire("missing", 100, 0) {
		t.Fatalf("expected SetExpire on missing key to fail")
	}
}

func TestClearExpirePersist(t *testing.T) {
	db := newDatabase(0)
	db.Set("k", types.NewString([]byte("v")), false)
	db.SetExpire("k", 100, 0)
	if !db.ClearExpire("k", 0) {
		t.Fatalf("expected ClearExpire to report a change")
	}
	if _, ok := db.Get("k", 10_000); !ok {
		t.Fatalf("expected k to survive past the old deadline")
	}
	if db.ClearExpire("k", 0) {
		t.Fatalf("expected second ClearExpire to be a no-op")
	}
}

func TestVersionBumpsOnMutation(t *testing.T) {
	db := newDatabase(0)
	e1 := db.Set("k", types.NewString([]byte("1")), false)
	e2 := db.Set("k", types.NewString([]byte("2")), false)
	if e2.Version <= e1.Version {
		t.Fatalf("expected version to strictly increase, got %d -> %d", e1.Version, e2.Version)
	}
}

func TestKeepTTLPreservesDeadline(t *testing.T) {
	db := newDatabase(0)
	db.Set("k", types.NewString([]byte("1")), false)
	db.SetExpire("k", 100, 0)
	db.Set("k", types.NewString([]byte("2")), true)
	if _, ok := db.Get("k", 150); ok {
		t.Fatalf("expected keepTTL to preserve the original deadline")
	}
}

func TestSetWithoutKeepTTLClearsDeadline(t *testing.T) {
	db := newDatabase(0)
	db.Set("k", types.NewString([]byte("1")), false)
	db.SetExpire("k", 100, 0)
	db.Set("k", types.NewString([]byte("2")), false)
	if _, ok := db.Get("k", 150); !ok {
		t.Fatalf("expected a plain Set to drop the previous TTL")
	}
}

func TestDeleteReportsExistence(t *testing.T) {
	db := newDatabase(0)
	if db.Delete("missing", 0) {
		t.Fatalf("expected delete of missing key to report false")
	}
	db.Set("k", types.NewString([]byte("v")), false)
	if !db.Delete("k", 0) {
		t.Fatalf("expected delete of live key to report true")
	}
	if db.Exists("k", 0) {
		t.Fatalf("expected k gone after delete")
	}
}

func TestFlushDB(t *testing.T) {
	db := newDatabase(0)
	for _, k := range []string{"a", "b", "c"} {
		db.Set(k, types.NewString([]byte("v")), false)
	}
	db.FlushDB()
	if db.DBSize(0) != 0 {
		t.Fatalf("expected empty database after FlushDB")
	}
}

func TestKeysMatching(t *testing.T) {
	db := newDatabase(0)
	db.Set("user:1", types.NewString([]byte("a")), false)
	db.Set("user:2", types.NewString([]byte("b")), false)
	db.Set("other", types.NewString([]byte("c")), false)
	got := db.KeysMatching("user:*", 0)
	if len(got) != 2 {
		t.Fatalf("got %v, want 2 matches", got)
	}
}

func TestSampleExpiringOrdering(t *testing.T) {
	db := newDatabase(0)
	db.Set("late", types.NewString([]byte("v")), false)
	db.SetExpire("late", 500, 0)
	db.Set("early", types.NewString([]byte("v")), false)
	db.SetExpire("early", 100, 0)
	got := db.SampleExpiring(10)
	if len(got) != 2 || got[0] != "early" || got[1] != "late" {
		t.Fatalf("got %v, want [early late]", got)
	}
}

func TestWaitNotifiedOnMutation(t *testing.T) {
	db := newDatabase(0)
	ch := db.Wait("k")
	db.Set("k", types.NewString([]byte("v")), false)
	select {
	case <-ch:
	default:
		t.Fatalf("expected waiter to be notified")
	}
}

func TestForgetRemovesWaiter(t *testing.T) {
	db := newDatabase(0)
	ch := db.Wait("k")
	db.Forget("k", ch)
	db.Set("k", types.NewString([]byte("v")), false)
	select {
	case <-ch:
		t.Fatalf("did not expect forgotten waiter to be notified")
	default:
	}
}
