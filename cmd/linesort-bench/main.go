// Copyright 2017, Kerby Shedden and the linesort contributors.

// linesort-bench runs the engine over an input file and reports
// throughput, generalized from the stats-tallying role
// muscato_genestats/muscato_readstats play over a finished pipeline
// run (scan a sorted file, accumulate counts, print one summary line)
// -- here the "scan" is a full engine invocation and the tally is
// lines/sec rather than a per-key group count.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/kshedden/linesort/internal/config"
	"github.com/kshedden/linesort/internal/engine"
)

func main() {
	inPath := flag.String("InPath", "", "Input file to sort")
	tempDir := flag.String("TempDir", "", "Scratch directory for intermediate runs")
	logDir := flag.String("LogDir", "", "Directory for the engine log and stats.json")
	runSizeMB := flag.Int("RunSizeMB", 0, "Per-run input-byte budget in MiB")
	threads := flag.Int("Threads", 0, "Writer-worker count for phase 1")
	fanIn := flag.Int("FanIn", 0, "Maximum number of runs merged per pass")
	compressRuns := flag.Bool("CompressRuns", false, "Store intermediate run files snappy-compressed")
	flag.Parse()

	if *inPath == "" {
		fmt.Fprintln(os.Stderr, "InPath is required")
		os.Exit(2)
	}

	outPath := *inPath + ".sorted"
	cfg := &config.Config{
		InPath:       *inPath,
		OutPath:      outPath,
		TempDir:      *tempDir,
		LogDir:       *logDir,
		RunSizeMB:    *runSizeMB,
		Threads:      *threads,
		FanIn:        *fanIn,
		CompressRuns: *compressRuns,
	}
	cfg.ApplyDefaults()
	defer os.Remove(outPath)

	start := time.Now()
	summary, err := engine.Run(context.Background(), cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	elapsed := time.Since(start)

	rate := float64(summary.TotalRecords) / elapsed.Seconds()
	fmt.Printf("records=%d dropped=%d runs=%d elapsed=%s rate=%.0f lines/sec\n",
		summary.TotalRecords, summary.Dropped, summary.RunCount, elapsed, rate)
}
