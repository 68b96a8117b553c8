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
package snapshot

import (
	"bytes"
	"testing"

	"github.com/launix-de/redigo/internal/clock"
	"github.com/launix-de/redigo/internal/store"
	"github.com/launix-de/redigo/internal/types"
)

func identity(ms int64) int64 { return ms }

func populate(ks *store.Keyspace) {
	db0 := ks.DB(0)
	db0.Set("str", &types.String{B: []byte("hello")}, false)
	db0.SetExpire("str", 5000, 0)

	l := types.NewList()
	l.PushRight([]byte("a"), []byte("b"), []byte("c"))
	db0.Set("list", l, false)

	h := types.NewHash()
	h.Set("f1", []byte("v1"))
	h.Set("f2", []byte("v2"))
	db0.Set("hash", h, false)

	s := types.NewSet()
	s.Add("m1")
	s.Add("m2")
	db0.Set("set", s, false)

	z := types.NewZSet()
	z.Set("a", 1)
	z.Set("b", 2.5)
	db0.Set("zset", z, false)

	st := types.NewStream()
	st.Add(types.StreamID{MS: 1, Seq: 0}, []string{"field", "value"})
	db0.Set("stream", st, false)

	db1 := ks.DB(1)
	db1.Set("other-db-key", &types.String{B: []byte("isolated")}, false)
}

func TestWriteLoadRoundTrip(t *testing.T) {
	ks := store.NewKeyspace(16)
	populate(ks)

	var buf bytes.Buffer
	if err := Write(&buf, ks, 0); err != nil {
		t.Fatalf("Write: %v", err)
	}

	restored := store.NewKeyspace(16)
	if err := Load(&buf, restored, identity); err != nil {
		t.Fatalf("Load: %v", err)
	}

	e, ok := restored.DB(0).Get("str", 0)
	if !ok || string(e.Value.(*types.String).B) != "hello" {
		t.Fatalf("string not restored correctly: %+v", e)
	}
	if !e.HasExpiry || e.ExpireAt != 5000 {
		t.Fatalf("expiry not restored correctly: %+v", e)
	}

	le, ok := restored.DB(0).Get("list", 0)
	if !ok {
		t.Fatal("list not restored")
	}
	l := le.Value.(*types.List)
	if l.Len() != 3 {
		t.Fatalf("expected 3 list items, got %d", l.Len())
	}

	he, ok := restored.DB(0).Get("hash", 0)
	if !ok || he.Value.(*types.Hash).Len() != 2 {
		t.Fatal("hash not restored correctly")
	}

	se, ok := restored.DB(0).Get("set", 0)
	if !ok || se.Value.(*types.Set).Len() != 2 {
		t.Fatal("set not restored correctly")
	}

	ze, ok := restored.DB(0).Get("zset", 0)
	if !ok {
		t.Fatal("zset not restored")
	}
	zscore, _ := ze.Value.(*types.ZSet).Score("b")
	if zscore != 2.5 {
		t.Fatalf("expected score 2.5, got %v", zscore)
	}

	ste, ok := restored.DB(0).Get("stream", 0)
	if !ok || ste.Value.(*types.Stream).Len() != 1 {
		t.Fatal("stream not restored correctly")
	}

	if _, ok := restored.DB(1).Get("other-db-key", 0); !ok {
		t.Fatal("db1 key not restored; databases crossed over incorrectly")
	}
	if _, ok := restored.DB(1).Get("str", 0); ok {
		t.Fatal("db0 key leaked into db1")
	}
}

func TestLoadRejectsCorruptedChecksum(t *testing.T) {
	ks := store.NewKeyspace(1)
	populate(ks)
	var buf bytes.Buffer
	if err := Write(&buf, ks, 0); err != nil {
		t.Fatalf("Write: %v", err)
	}
	corrupted := buf.Bytes()
	corrupted[10] ^= 0xFF

	restored := store.NewKeyspace(1)
	if err := Load(bytes.NewReader(corrupted), restored, identity); err == nil {
		t.Fatal("expected checksum mismatch error")
	}
}

func TestEngineSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	fc := &clock.Fixed{Wall: 123456, Mono: 0}
	eng := NewEngine(dir, "dump.rdb", fc)

	ks := store.NewKeyspace(1)
	populate(ks)
	if err := eng.Save(ks, 0); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if eng.LastSaveMS() != 123456 {
		t.Fatalf("expected LastSaveMS to be set, got %d", eng.LastSaveMS())
	}

	restored := store.NewKeyspace(1)
	if err := eng.Load(restored, identity); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := restored.DB(0).Get("str", 0); !ok {
		t.Fatal("restored keyspace missing key saved by Engine.Save")
	}
}

func TestEngineLoadMissingFileIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	fc := &clock.Fixed{}
	eng := NewEngine(dir, "does-not-exist.rdb", fc)
	ks := store.NewKeyspace(1)
	if err := eng.Load(ks, identity); err != nil {
		t.Fatalf("expected no error for a missing snapshot file, got %v", err)
	}
}
