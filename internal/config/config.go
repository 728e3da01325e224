// Copyright 2017, Kerby Shedden and the linesort contributors.

// Package config holds the engine's configuration surface.  Following
// the convention in muscato's utils.Config, a run can be configured
// either from a JSON file or from individual command-line flags.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// DefaultFanIn bounds file-handle and buffer consumption per merge
// pass even when millions of runs must eventually be combined.
const DefaultFanIn = 128

// DefaultMemMB is the coarse memory budget used when none is given.
const DefaultMemMB = 1024

// Config is the full set of knobs accepted by the engine.
type Config struct {
	// InPath is the input file to sort.
	InPath string

	// OutPath is the destination for the sorted output.
	OutPath string

	// TempDir is the scratch root for intermediate runs.  If
	// empty, it defaults to "<dir of OutPath>/runs".
	TempDir string

	// LogDir is the directory engine and phase logs are written
	// to.  If empty, it defaults to TempDir.
	LogDir string

	// MemMB is a coarse memory budget in MiB.  RunSizeMB defaults
	// to this value when unset.
	MemMB int

	// RunSizeMB is the per-run input-byte budget in MiB.
	RunSizeMB int

	// Threads is the writer-worker count for phase 1.
	Threads int

	// FanIn is the maximum number of runs merged per pass, and
	// must be >= 2.
	FanIn int

	// CompressRuns stores intermediate run files snappy-compressed.
	CompressRuns bool

	// ChecksumRuns logs a rolling-hash checksum for every run file
	// as it is written, purely as a diagnostic.
	ChecksumRuns bool

	// NoCleanTmp, if true, leaves TempDir in place after a
	// successful run (useful for debugging).  Default is false:
	// temporary files are removed.
	NoCleanTmp bool
}

// ReadConfig reads and validates a JSON configuration file, following
// the same decode-in-place shape as muscato's utils.ReadConfig.
func ReadConfig(filename string) (*Config, error) {
	fid, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	defer fid.Close()

	cfg := new(Config)
	dec := json.NewDecoder(fid)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.ApplyDefaults()
	return cfg, cfg.Validate()
}

// ApplyDefaults fills in zero-valued fields with the documented
// defaults from the configuration surface.  Exported so that the
// flags-based CLI front end can share it with the JSON-config path.
func (c *Config) ApplyDefaults() {
	if c.MemMB <= 0 {
		c.MemMB = DefaultMemMB
	}
	if c.RunSizeMB <= 0 {
		c.RunSizeMB = c.MemMB
	}
	if c.Threads <= 0 {
		c.Threads = defaultThreads()
	}
	if c.FanIn <= 0 {
		c.FanIn = DefaultFanIn
	}
	if c.TempDir == "" && c.OutPath != "" {
		c.TempDir = filepath.Join(filepath.Dir(c.OutPath), "runs")
	}
	if c.LogDir == "" {
		c.LogDir = c.TempDir
	}
}

func defaultThreads() int {
	n := runtime.NumCPU() / 2
	if n < 1 {
		n = 1
	}
	return n
}

// Validate reports an error for configuration that can never produce
// a valid run: a missing required path or a fan-in below 2.
func (c *Config) Validate() error {
	if c.InPath == "" {
		return fmt.Errorf("config: InPath is required")
	}
	if c.OutPath == "" {
		return fmt.Errorf("config: OutPath is required")
	}
	if c.FanIn < 2 {
		return fmt.Errorf("config: FanIn must be >= 2, got %d", c.FanIn)
	}
	return nil
}

// RunSizeBytes returns the configured per-run budget in bytes.
func (c *Config) RunSizeBytes() int64 {
	return int64(c.RunSizeMB) * (1 << 20)
}
