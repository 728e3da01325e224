// Copyright 2017, Kerby Shedden and the linesort contributors.

// linesort is an external merge sort for files consisting of lines
// of the form "<number>. <text>".  It sorts first by text (ordinal
// byte comparison), then by number, using bounded memory regardless
// of input size.
//
// linesort can be invoked using a configuration file in JSON format,
// or using command-line flags:
//
//	linesort -ConfigFileName=config.json
//
//	linesort -InPath=in.txt -OutPath=out.txt -TempDir=/tmp/linesort-runs \
//	    -RunSizeMB=512 -FanIn=128 -Threads=4
//
// Flags given alongside -ConfigFileName override the corresponding
// field loaded from the config file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/pkg/profile"

	"github.com/kshedden/linesort/internal/config"
	"github.com/kshedden/linesort/internal/enginerr"
	"github.com/kshedden/linesort/internal/engine"
)

func main() {
	configFileName := flag.String("ConfigFileName", "", "JSON file containing configuration parameters")
	inPath := flag.String("InPath", "", "Input file to sort")
	outPath := flag.String("OutPath", "", "Destination for sorted output")
	tempDir := flag.String("TempDir", "", "Scratch directory for intermediate runs")
	logDir := flag.String("LogDir", "", "Directory for the engine log and stats.json")
	memMB := flag.Int("MemMB", 0, "Coarse memory budget in MiB")
	runSizeMB := flag.Int("RunSizeMB", 0, "Per-run input-byte budget in MiB")
	threads := flag.Int("Threads", 0, "Writer-worker count for phase 1")
	fanIn := flag.Int("FanIn", 0, "Maximum number of runs merged per pass")
	compressRuns := flag.Bool("CompressRuns", false, "Store intermediate run files snappy-compressed")
	checksumRuns := flag.Bool("ChecksumRuns", false, "Log a rolling-hash checksum for every run file")
	noCleanTmp := flag.Bool("NoCleanTemp", false, "Do not delete TempDir after a successful run")
	cpuProfile := flag.Bool("CPUProfile", false, "Capture CPU profile data")
	flag.Parse()

	var cfg *config.Config
	if *configFileName != "" {
		c, err := config.ReadConfig(*configFileName)
		if err != nil {
			err = enginerr.InvalidArgs(err.Error())
			fmt.Fprintln(os.Stderr, err)
			os.Exit(exitCode(err))
		}
		cfg = c
	} else {
		cfg = new(config.Config)
	}

	if *inPath != "" {
		cfg.InPath = *inPath
	}
	if *outPath != "" {
		cfg.OutPath = *outPath
	}
	if *tempDir != "" {
		cfg.TempDir = *tempDir
	}
	if *logDir != "" {
		cfg.LogDir = *logDir
	}
	if *memMB != 0 {
		cfg.MemMB = *memMB
	}
	if *runSizeMB != 0 {
		cfg.RunSizeMB = *runSizeMB
	}
	if *threads != 0 {
		cfg.Threads = *threads
	}
	if *fanIn != 0 {
		cfg.FanIn = *fanIn
	}
	if *compressRuns {
		cfg.CompressRuns = true
	}
	if *checksumRuns {
		cfg.ChecksumRuns = true
	}
	if *noCleanTmp {
		cfg.NoCleanTmp = true
	}
	cfg.ApplyDefaults()

	if *cpuProfile {
		p := profile.Start(profile.ProfilePath("."))
		defer p.Stop()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	summary, err := engine.Run(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}

	fmt.Printf("sorted %d records (%d dropped) into %d runs, elapsed %s\n",
		summary.TotalRecords, summary.Dropped, summary.RunCount, summary.Elapsed)
}

// exitCode maps an engine outcome to a process exit status: 2 for a
// caller mistake, 3 for missing input, 4 for an I/O failure, 130 for
// cancellation (following the usual SIGINT convention), 1 otherwise.
func exitCode(err error) int {
	switch {
	case errors.Is(err, enginerr.ErrInvalidArgs):
		return 2
	case errors.Is(err, enginerr.ErrInputMissing):
		return 3
	case errors.Is(err, enginerr.ErrCancelled):
		return 130
	case errors.Is(err, enginerr.ErrIoFailure):
		return 4
	default:
		return 1
	}
}
