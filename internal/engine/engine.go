// Copyright 2017, Kerby Shedden and the linesort contributors.

// Package engine wires phase 1 (runbuilder) and phase 2 (merger)
// together into a single sort, following the orchestration shape of
// muscato's own top-level main: a per-run log file under LogDir
// (setupLog), a scratch directory under TempDir, and a small JSON
// summary sidecar written alongside the log (muscato_uniqify's
// writeSeqInfo).
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/kshedden/linesort/internal/config"
	"github.com/kshedden/linesort/internal/enginerr"
	"github.com/kshedden/linesort/internal/merger"
	"github.com/kshedden/linesort/internal/runbuilder"
	"github.com/kshedden/linesort/internal/tempspace"
)

// Summary reports the outcome of a completed sort, and is also
// serialized as stats.json in LogDir.
type Summary struct {
	TotalRecords   int64
	Dropped        int64
	RunCount       int
	ApproxDistinct uint32
	Elapsed        string
}

// Run executes a full external sort of cfg.InPath into cfg.OutPath,
// using cfg.TempDir as scratch space.  It returns enginerr.Cancelled
// if ctx is done before the sort finishes.  Unless cfg.NoCleanTmp is
// set, everything under TempDir is removed on every exit path once the
// TempSpace exists, and TempDir itself too when it did not exist
// before.  LogDir is created first, so when LogDir is TempDir (the
// default) TempDir is kept but emptied, and linesort.log and
// stats.json are removed with the rest.
func Run(ctx context.Context, cfg *config.Config) (Summary, error) {
	if err := cfg.Validate(); err != nil {
		return Summary{}, enginerr.InvalidArgs(err.Error())
	}

	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		return Summary{}, enginerr.Fatal(fmt.Errorf("engine: creating log dir: %w", err))
	}
	logger, logf, err := setupLog(cfg.LogDir)
	if err != nil {
		return Summary{}, enginerr.Fatal(err)
	}
	defer logf.Close()

	ts, err := tempspace.New(cfg.TempDir, logger)
	if err != nil {
		return Summary{}, enginerr.Fatal(err)
	}
	if !cfg.NoCleanTmp {
		defer ts.Close()
	}

	start := time.Now()
	logger.Printf("engine: sorting %s -> %s (run budget %d bytes, fan-in %d, %d workers)",
		cfg.InPath, cfg.OutPath, cfg.RunSizeBytes(), cfg.FanIn, cfg.Threads)

	buildRes, err := runbuilder.Build(ctx, cfg.InPath, ts, runbuilder.Options{
		RunSizeBytes: cfg.RunSizeBytes(),
		Workers:      cfg.Threads,
		Compress:     cfg.CompressRuns,
		Checksum:     cfg.ChecksumRuns,
		Logger:       logger,
	})
	if err != nil {
		return Summary{}, err
	}

	if err := merger.Merge(ctx, buildRes.RunPaths, cfg.OutPath, ts, merger.Options{
		FanIn:                  cfg.FanIn,
		InputCompressed:        cfg.CompressRuns,
		IntermediateCompressed: cfg.CompressRuns,
		Checksum:               cfg.ChecksumRuns,
		Logger:                 logger,
	}); err != nil {
		return Summary{}, err
	}

	summary := Summary{
		TotalRecords:   buildRes.TotalRecords,
		Dropped:        buildRes.Dropped,
		RunCount:       len(buildRes.RunPaths),
		ApproxDistinct: buildRes.ApproxDistinct,
		Elapsed:        time.Since(start).String(),
	}

	if err := writeSummary(cfg.LogDir, summary); err != nil {
		logger.Printf("engine: failed to write stats.json: %v", err)
	}

	logger.Printf("engine: done, %d records (%d dropped) in %d runs, elapsed %s",
		summary.TotalRecords, summary.Dropped, summary.RunCount, summary.Elapsed)

	return summary, nil
}

// setupLog creates linesort.log in logDir, following muscato's own
// setupLog (one timestamped logger per run, written to a file rather
// than stderr).
func setupLog(logDir string) (*log.Logger, *os.File, error) {
	logname := filepath.Join(logDir, "linesort.log")
	fid, err := os.Create(logname)
	if err != nil {
		return nil, nil, fmt.Errorf("engine: creating %s: %w", logname, err)
	}
	return log.New(fid, "", log.Ltime), fid, nil
}

// writeSummary serializes summary as stats.json in logDir, mirroring
// muscato_uniqify's writeSeqInfo sidecar.
func writeSummary(logDir string, summary Summary) error {
	fid, err := os.Create(filepath.Join(logDir, "stats.json"))
	if err != nil {
		return err
	}
	defer fid.Close()
	enc := json.NewEncoder(fid)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
