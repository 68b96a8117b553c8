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

// redigo-server is the CLI entry point excluded from the core's scope
// by spec.md §1 ("the CLI entry point and argument parsing ... are
// external collaborators"): it parses flags into a config.View,
// assembles an internal/server.Server, loads persisted state, and
// drives it until a shutdown request arrives.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/dc0d/onexit"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/launix-de/redigo/internal/clock"
	"github.com/launix-de/redigo/internal/config"
	"github.com/launix-de/redigo/internal/server"
	"github.com/launix-de/redigo/internal/snapshot"
)

func main() {
	cfg := parseFlags()

	logger := buildLogger()
	defer logger.Sync()

	clk := clock.NewSystem()
	srv := server.New(&cfg, clk, logger)

	if cfg.SnapshotS3Bucket != "" {
		uploader, err := snapshot.NewS3Uploader(snapshot.S3Config{
			Bucket:          cfg.SnapshotS3Bucket,
			Prefix:          cfg.SnapshotS3Prefix,
			Region:          cfg.SnapshotS3Region,
			Endpoint:        cfg.SnapshotS3Endpoint,
			AccessKeyID:     cfg.SnapshotS3AccessKeyID,
			SecretAccessKey: cfg.SnapshotS3SecretAccessKey,
		})
		if err != nil {
			logger.Fatal("snapshot s3 archival disabled", zap.Error(err))
		}
		srv.Snapshot.Archive = uploader.Upload
		logger.Info("snapshot archival to s3 enabled", zap.String("bucket", cfg.SnapshotS3Bucket))
	}

	if err := srv.LoadPersisted(); err != nil {
		logger.Fatal("failed to load persisted state", zap.Error(err))
	}

	if err := srv.Start(); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
	onexit.Register(func() { logger.Info("exiting") })

	logger.Info("redigo-server listening",
		zap.Int("port", cfg.Port),
		zap.Int("databases", cfg.Databases),
		zap.Bool("appendonly", cfg.AppendOnly),
		zap.String("replicaof", cfg.ReplicaOf),
	)

	go func() {
		if err := srv.Serve(); err != nil {
			logger.Error("accept loop ended", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	save := true
	select {
	case <-sigCh:
		logger.Info("received shutdown signal")
	case save = <-srv.ShutdownRequests():
		logger.Info("received SHUTDOWN command", zap.Bool("save", save))
	}

	if err := srv.Shutdown(save); err != nil {
		logger.Error("shutdown error", zap.Error(err))
		onexit.Exit(1)
	}
	onexit.Exit(0)
}

func buildLogger() *zap.Logger {
	logConfig := zap.NewProductionConfig()
	logConfig.DisableStacktrace = true
	log, err := logConfig.Build()
	if err != nil {
		panic(err)
	}
	return log.Named("redigo")
}

// parseFlags builds a config.View from the CLI surface spec.md §6
// enumerates. The positional "port" argument and the "--flag value"
// forms both mirror redis-server's own invocation shape.
func parseFlags() config.View {
	cfg := config.Default()

	var bind, dir, dbfilename, appendfilename, appendonly, appendfsync string
	var maxmemory, maxmemoryPolicy, requirepass, replicaof string
	var saveRules []string
	var protoMaxBulkLen string

	flag.StringVar(&bind, "bind", cfg.Bind[0], "address to listen on")
	flag.IntVar(&cfg.Port, "port", cfg.Port, "TCP port to listen on (0 disables listening)")
	flag.IntVar(&cfg.MaxClients, "maxclients", cfg.MaxClients, "maximum number of simultaneous client connections")
	flag.IntVar(&cfg.Databases, "databases", cfg.Databases, "number of logical databases")
	flag.StringVar(&dir, "dir", cfg.Dir, "working directory for the snapshot and append log")
	flag.StringVar(&dbfilename, "dbfilename", cfg.DBFilename, "snapshot file name")
	flag.StringVar(&appendfilename, "appendfilename", cfg.AppendFilename, "append log file name")
	flag.StringVar(&appendonly, "appendonly", "no", "enable the append-only log (yes/no)")
	flag.StringVar(&appendfsync, "appendfsync", string(cfg.AppendFsync), "AOF fsync policy: always, everysec, no")
	flag.StringArrayVar(&saveRules, "save", nil, `snapshot save rule "seconds changes" (repeatable); pass an empty string to disable`)
	flag.IntVar(&cfg.AutoAOFRewritePercentage, "auto-aof-rewrite-percentage", cfg.AutoAOFRewritePercentage, "AOF growth percentage that triggers BGREWRITEAOF")
	flag.StringVar(&protoMaxBulkLen, "proto-max-bulk-len", "", "maximum accepted bulk frame size (e.g. 512mb)")
	var replBacklogSize string
	flag.StringVar(&replBacklogSize, "repl-backlog-size", "", "replication backlog ring size (e.g. 1mb)")
	flag.StringVar(&replicaof, "replicaof", "", "\"host port\" of a leader to replicate from at startup")
	flag.StringVar(&requirepass, "requirepass", "", "require clients to AUTH with this password")
	flag.StringVar(&maxmemory, "maxmemory", "", "maximum memory budget (e.g. 100mb); 0 disables the bound")
	flag.StringVar(&maxmemoryPolicy, "maxmemory-policy", string(cfg.MaxMemoryPolicy), "eviction policy once maxmemory is reached")
	flag.BoolVar(&cfg.ReplicaReadOnly, "replica-read-only", cfg.ReplicaReadOnly, "reject writes on a replica link")

	flag.StringVar(&cfg.SnapshotS3Bucket, "snapshot-s3-bucket", "", "optional S3 bucket to archive completed snapshots to")
	flag.StringVar(&cfg.SnapshotS3Prefix, "snapshot-s3-prefix", "", "S3 object key prefix for archived snapshots")
	flag.StringVar(&cfg.SnapshotS3Region, "snapshot-s3-region", "", "S3 region")
	flag.StringVar(&cfg.SnapshotS3Endpoint, "snapshot-s3-endpoint", "", "custom S3-compatible endpoint (e.g. MinIO)")
	flag.StringVar(&cfg.SnapshotS3AccessKeyID, "snapshot-s3-access-key-id", "", "S3 access key (falls back to the default AWS credential chain if unset)")
	flag.StringVar(&cfg.SnapshotS3SecretAccessKey, "snapshot-s3-secret-access-key", "", "S3 secret key")

	flag.Parse()

	if flag.NArg() > 0 {
		if p, err := strconv.Atoi(flag.Arg(0)); err == nil {
			cfg.Port = p
		}
	}

	cfg.Bind = []string{bind}
	cfg.Dir = dir
	cfg.DBFilename = dbfilename
	cfg.AppendFilename = appendfilename
	cfg.AppendOnly = strings.EqualFold(appendonly, "yes")
	cfg.AppendFsync = config.AppendFsync(strings.ToLower(appendfsync))
	cfg.RequirePass = requirepass
	cfg.MaxMemoryPolicy = config.MaxmemoryPolicy(maxmemoryPolicy)

	if len(saveRules) > 0 {
		cfg.Save = parseSaveRules(saveRules)
	}
	if protoMaxBulkLen != "" {
		if n, err := config.ParseSize(protoMaxBulkLen); err == nil {
			cfg.ProtoMaxBulkLenBytes = n
		}
	}
	if replBacklogSize != "" {
		if n, err := config.ParseSize(replBacklogSize); err == nil {
			cfg.ReplBacklogSizeBytes = n
		}
	}
	if maxmemory != "" {
		if n, err := config.ParseSize(maxmemory); err == nil {
			cfg.MaxMemoryBytes = n
		}
	}
	if replicaof != "" {
		parts := strings.Fields(replicaof)
		if len(parts) == 2 && !strings.EqualFold(parts[0], "no") {
			cfg.ReplicaOf = parts[0] + ":" + parts[1]
		}
	}

	return cfg
}

// parseSaveRules turns repeated "--save \"<seconds> <changes>\"" flags
// into config.SaveRule entries; a single empty string disables all
// rules, matching redis-server's own "--save \"\"" convention.
func parseSaveRules(raw []string) []config.SaveRule {
	if len(raw) == 1 && strings.TrimSpace(raw[0]) == "" {
		return nil
	}
	rules := make([]config.SaveRule, 0, len(raw))
	for _, r := range raw {
		fields := strings.Fields(r)
		if len(fields) != 2 {
			fmt.Fprintf(os.Stderr, "redigo-server: ignoring malformed --save rule %q\n", r)
			continue
		}
		seconds, err1 := strconv.Atoi(fields[0])
		changes, err2 := strconv.Atoi(fields[1])
		if err1 != nil || err2 != nil {
			fmt.Fprintf(os.Stderr, "redigo-server: ignoring malformed --save rule %q\n", r)
			continue
		}
		rules = append(rules, config.SaveRule{Seconds: seconds, Changes: changes})
	}
	return rules
}
