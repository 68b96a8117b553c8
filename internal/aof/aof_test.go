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
package aof

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/launix-de/redigo/internal/clock"
	"github.com/launix-de/redigo/internal/command"
	"github.com/launix-de/redigo/internal/config"
	"github.com/launix-de/redigo/internal/store"
	"github.com/launix-de/redigo/internal/types"
)

func newTestServer() (*command.Server, *command.Registry) {
	cfg := config.Default()
	return &command.Server{
		Keyspace: store.NewKeyspace(cfg.Databases),
		Config:   &cfg,
		Clock:    &clock.Fixed{Wall: 1_700_000_000_000, Mono: 0},
	}, command.NewRegistry()
}

func TestAppendAndReload(t *testing.T) {
	dir := t.TempDir()
	fc := &clock.Fixed{Wall: 1_700_000_000_000, Mono: 0}
	eng := NewEngine(dir, "test.aof", fc, config.FsyncAlways)
	if err := eng.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}

	srv, reg := newTestServer()
	conn := &command.Conn{}
	command.Dispatch(reg, srv, conn, "SET", []string{"a", "1"})
	eng.Propagate(0, []string{"SET", "a", "1"})
	command.Dispatch(reg, srv, conn, "SELECT", []string{"1"})
	command.Dispatch(reg, srv, conn, "SET", []string{"b", "2"})
	eng.Propagate(1, []string{"SET", "b", "2"})

	if err := eng.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	restoredSrv, restoredReg := newTestServer()
	res, err := LoadFile(filepath.Join(dir, "test.aof"), restoredReg, restoredSrv, fc)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if res.RecordsApplied == 0 {
		t.Fatal("expected at least one record applied")
	}
	if res.TruncatedBytes != 0 {
		t.Fatalf("did not expect truncation, got %d bytes", res.TruncatedBytes)
	}

	if e, ok := restoredSrv.Keyspace.DB(0).Get("a", 0); !ok || string(e.Value.(*types.String).B) != "1" {
		t.Fatalf("db0 key 'a' not restored correctly: %+v", e)
	}
	if e, ok := restoredSrv.Keyspace.DB(1).Get("b", 0); !ok || string(e.Value.(*types.String).B) != "2" {
		t.Fatalf("db1 key 'b' not restored correctly: %+v", e)
	}
	if _, ok := restoredSrv.Keyspace.DB(1).Get("a", 0); ok {
		t.Fatal("db0 key leaked into db1 on replay")
	}
}

func TestLoadFileMissingIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	srv, reg := newTestServer()
	fc := &clock.Fixed{}
	res, err := LoadFile(filepath.Join(dir, "absent.aof"), reg, srv, fc)
	if err != nil {
		t.Fatalf("expected no error for a missing append log, got %v", err)
	}
	if res.RecordsApplied != 0 {
		t.Fatalf("expected zero records applied, got %d", res.RecordsApplied)
	}
}

func TestLoadToleratesTruncatedFinalRecord(t *testing.T) {
	dir := t.TempDir()
	fc := &clock.Fixed{Wall: 1000}
	eng := NewEngine(dir, "trunc.aof", fc, config.FsyncNo)
	if err := eng.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	eng.Propagate(0, []string{"SET", "a", "1"})
	eng.Propagate(0, []string{"SET", "b", "2"})
	if err := eng.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	path := filepath.Join(dir, "trunc.aof")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if err := os.WriteFile(path, data[:len(data)-3], 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	srv, reg := newTestServer()
	res, err := LoadFile(path, reg, srv, fc)
	if err != nil {
		t.Fatalf("LoadFile on truncated file: %v", err)
	}
	if res.RecordsApplied != 1 {
		t.Fatalf("expected exactly one record applied before the truncated tail, got %d", res.RecordsApplied)
	}
	if res.TruncatedBytes == 0 {
		t.Fatal("expected TruncatedBytes to report the dropped tail")
	}
	if _, ok := srv.Keyspace.DB(0).Get("b", 0); ok {
		t.Fatal("the truncated second record must not have been applied")
	}
}

func TestRewriteProducesLoadableFile(t *testing.T) {
	dir := t.TempDir()
	fc := &clock.Fixed{Wall: 2_000_000_000_000, Mono: 0}
	eng := NewEngine(dir, "rw.aof", fc, config.FsyncNo)
	if err := eng.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}

	srv, reg := newTestServer()
	conn := &command.Conn{}
	command.Dispatch(reg, srv, conn, "SET", []string{"k1", "v1"})
	eng.Propagate(0, []string{"SET", "k1", "v1"})

	if err := eng.Rewrite(srv.Keyspace, 0); err != nil {
		t.Fatalf("Rewrite: %v", err)
	}

	command.Dispatch(reg, srv, conn, "SET", []string{"k2", "v2"})
	eng.Propagate(0, []string{"SET", "k2", "v2"})
	if err := eng.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	restoredSrv, restoredReg := newTestServer()
	res, err := LoadFile(filepath.Join(dir, "rw.aof"), restoredReg, restoredSrv, fc)
	if err != nil {
		t.Fatalf("LoadFile after rewrite: %v", err)
	}
	if res.RecordsApplied == 0 {
		t.Fatal("expected the post-rewrite record to be applied")
	}
	if _, ok := restoredSrv.Keyspace.DB(0).Get("k1", 0); !ok {
		t.Fatal("pre-rewrite key missing: embedded snapshot preamble did not load")
	}
	if _, ok := restoredSrv.Keyspace.DB(0).Get("k2", 0); !ok {
		t.Fatal("post-rewrite key missing: record after the preamble was not applied")
	}
}

func TestShouldRewriteRespectsMinSize(t *testing.T) {
	dir := t.TempDir()
	fc := &clock.Fixed{}
	eng := NewEngine(dir, "ratio.aof", fc, config.FsyncNo)
	if err := eng.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	cfg := config.Default()
	cfg.AutoAOFRewriteMinSizeBytes = 1 << 30
	if eng.ShouldRewrite(&cfg) {
		t.Fatal("should not trigger a rewrite below auto-aof-rewrite-min-size")
	}
}
