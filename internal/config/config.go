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

// Package config is the narrow "configuration view" collaborator the
// core consumes (spec.md §1, §6). CLI flag parsing and any future
// config-file loading live outside this package; they only need to
// produce a View.
package config

import (
	"fmt"

	units "github.com/docker/go-units"
)

// AppendFsync is the AOF flush policy (spec.md §4.7).
type AppendFsync string

const (
	FsyncAlways   AppendFsync = "always"
	FsyncEverysec AppendFsync = "everysec"
	FsyncNo       AppendFsync = "no"
)

// MaxmemoryPolicy controls eviction when maxmemory is exceeded (spec.md §6).
type MaxmemoryPolicy string

const (
	PolicyNoEviction    MaxmemoryPolicy = "noeviction"
	PolicyAllKeysLRU    MaxmemoryPolicy = "allkeys-lru"
	PolicyAllKeysRandom MaxmemoryPolicy = "allkeys-random"
)

// SaveRule is one entry of the "save" rule list: after Seconds elapsed,
// if at least Changes dirty writes happened, trigger a snapshot.
type SaveRule struct {
	Seconds int
	Changes int
}

// View is the complete set of parameters §6 enumerates. It is produced
// once at startup from CLI flags and is read-only for the rest of the
// process's life (hot config rewrite is out of scope, spec.md §1).
type View struct {
	Bind       []string
	Port       int
	MaxClients int
	Databases  int

	Dir            string
	DBFilename     string
	AppendFilename string

	Save []SaveRule

	AppendOnly                 bool
	AppendFsync                AppendFsync
	AutoAOFRewritePercentage   int
	AutoAOFRewriteMinSizeBytes int64

	ReplBacklogSizeBytes int64
	ReplicaOf            string // "host:port", empty if starting as leader
	ReplicaReadOnly      bool

	ProtoMaxBulkLenBytes int64

	MaxMemoryBytes  int64
	MaxMemoryPolicy MaxmemoryPolicy

	RequirePass string

	// Optional S3 snapshot archival target (SPEC_FULL.md domain stack).
	SnapshotS3Bucket          string
	SnapshotS3Prefix          string
	SnapshotS3Region          string
	SnapshotS3Endpoint        string
	SnapshotS3AccessKeyID     string
	SnapshotS3SecretAccessKey string
}

// Default returns the documented defaults (spec.md §6).
func Default() View {
	return View{
		Bind:       []string{"0.0.0.0"},
		Port:       6379,
		MaxClients: 10000,
		Databases:  16,

		Dir:            ".",
		DBFilename:     "dump.rdb",
		AppendFilename: "appendonly.aof",

		Save: []SaveRule{
			{Seconds: 3600, Changes: 1},
			{Seconds: 300, Changes: 100},
			{Seconds: 60, Changes: 10000},
		},

		AppendOnly:                 false,
		AppendFsync:                FsyncEverysec,
		AutoAOFRewritePercentage:   100,
		AutoAOFRewriteMinSizeBytes: 64 * 1024 * 1024,

		ReplBacklogSizeBytes: 1 << 20,
		ReplicaReadOnly:      true,

		ProtoMaxBulkLenBytes: 512 * 1024 * 1024,

		MaxMemoryBytes:  0, // unbounded
		MaxMemoryPolicy: PolicyNoEviction,
	}
}

// ParseSize parses human-readable sizes ("100mb", "1gb", "512") using
// the same units the rest of the container ecosystem expects.
func ParseSize(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	n, err := units.RAMInBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return n, nil
}
