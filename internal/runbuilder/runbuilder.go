// Copyright 2017, Kerby Shedden and the linesort contributors.

// Package runbuilder implements phase 1 of the external merge-sort
// engine: a single reader goroutine partitions the input into
// memory-sized batches, handing each to a bounded pool of writer
// goroutines that sort the batch in place and spill it to a uniquely
// named temporary run file.
//
// Grounded on the worker-pool/channel pattern in
// cmd/muscato_screen/main.go's buildBloom (bounded per-window
// channels, sync.WaitGroup) and the background-sorter channel in the
// grailbio BAM sorter.
package runbuilder

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/willf/bloom"

	"github.com/kshedden/linesort/internal/enginerr"
	"github.com/kshedden/linesort/internal/record"
	"github.com/kshedden/linesort/internal/runio"
	"github.com/kshedden/linesort/internal/tempspace"
)

// Options controls a single invocation of Build.
type Options struct {
	// RunSizeBytes is the input-byte budget per run (B in the
	// design: the watermark on consumed input bytes, not record
	// count or in-memory footprint).
	RunSizeBytes int64

	// Workers is the writer-worker pool size (W).
	Workers int

	// Compress stores each run file snappy-compressed.
	Compress bool

	// Checksum logs a rolling-hash diagnostic checksum per run.
	Checksum bool

	// Logger receives progress messages.  Must not be nil.
	Logger *log.Logger
}

// Result summarizes a completed (or cancelled) build.
type Result struct {
	// RunPaths lists the sorted run files produced, in no
	// particular order.
	RunPaths []string

	// TotalRecords is the count of successfully parsed records.
	TotalRecords int64

	// Dropped is the count of lines that failed to parse.
	Dropped int64

	// ApproxDistinct is a Bloom-filter estimate of the number of
	// distinct Text keys seen, purely diagnostic.
	ApproxDistinct uint32
}

func runExt(compress bool) string {
	if compress {
		return ".tmp.sz"
	}
	return ".tmp"
}

// Build reads inPath sequentially, partitions it into run-size-budget
// batches, and spills each, sorted, to a fresh file under ts.  It
// returns enginerr.Cancelled() if ctx is done before the build
// finishes; any runs already durable on disk at that point are left
// in place for the caller's TempSpace cleanup.
func Build(ctx context.Context, inPath string, ts *tempspace.TempSpace, opts Options) (Result, error) {
	reader, err := runio.OpenInput(inPath)
	if err != nil {
		return Result{}, enginerr.InputMissing(err)
	}
	defer reader.Close()

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	batches := make(chan []record.Record, workers)
	var wg sync.WaitGroup

	var mu sync.Mutex
	var paths []string
	var workerErr error
	sketch := bloom.NewWithEstimates(1_000_000, 0.01)

	opts.Logger.Printf("runbuilder: starting with %d writer workers, run budget %d bytes", workers, opts.RunSizeBytes)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for batch := range batches {
				path, err := spillBatch(ts, opts, batch, &mu, sketch)
				mu.Lock()
				if err != nil && workerErr == nil {
					workerErr = err
				} else if err == nil {
					paths = append(paths, path)
				}
				mu.Unlock()
			}
		}(i)
	}

	var total, dropped int64
	current := make([]record.Record, 0, 4096)
	runStart := reader.Consumed()

	sendBatch := func(batch []record.Record) bool {
		select {
		case <-ctx.Done():
			return false
		case batches <- batch:
			return true
		}
	}

readLoop:
	for {
		select {
		case <-ctx.Done():
			break readLoop
		default:
		}

		rec, ok, err := reader.Next()
		if err != nil {
			close(batches)
			wg.Wait()
			return Result{RunPaths: paths}, enginerr.Fatal(fmt.Errorf("runbuilder: reading input: %w", err))
		}
		if !ok {
			break readLoop
		}
		total++
		current = append(current, rec)

		if reader.Consumed()-runStart >= opts.RunSizeBytes {
			prior := len(current)
			if !sendBatch(current) {
				break readLoop
			}
			current = make([]record.Record, 0, prior)
			runStart = reader.Consumed()
		}
	}

	cancelled := ctx.Err() != nil

	if !cancelled && len(current) > 0 {
		if !sendBatch(current) {
			cancelled = true
		}
	}

	close(batches)
	wg.Wait()

	dropped = reader.Invalid()

	if cancelled {
		opts.Logger.Printf("runbuilder: cancelled after %d records, %d runs already durable", total, len(paths))
		return Result{RunPaths: paths, TotalRecords: total}, enginerr.Cancelled()
	}

	if workerErr != nil {
		return Result{RunPaths: paths, TotalRecords: total}, enginerr.Fatal(workerErr)
	}

	opts.Logger.Printf("runbuilder: done, %d records, %d runs, approx %d distinct keys",
		total, len(paths), sketch.ApproximatedSize())

	return Result{
		RunPaths:       paths,
		TotalRecords:   total,
		Dropped:        dropped,
		ApproxDistinct: sketch.ApproximatedSize(),
	}, nil
}

// spillBatch sorts batch in place and streams it to a fresh run file.
func spillBatch(ts *tempspace.TempSpace, opts Options, batch []record.Record, bloomMu *sync.Mutex, sketch *bloom.BloomFilter) (string, error) {
	sort.Slice(batch, func(i, j int) bool {
		return record.Less(batch[i], batch[j])
	})

	path := ts.NewPath(runExt(opts.Compress))
	w, err := runio.Create(path, opts.Compress, opts.Checksum)
	if err != nil {
		return "", fmt.Errorf("runbuilder: creating run %s: %w", path, err)
	}

	bloomMu.Lock()
	for _, rec := range batch {
		sketch.Add(rec.Text)
	}
	bloomMu.Unlock()

	for _, rec := range batch {
		if err := w.WriteRecord(rec); err != nil {
			w.Close()
			return "", fmt.Errorf("runbuilder: writing run %s: %w", path, err)
		}
	}

	if err := w.Close(); err != nil {
		return "", fmt.Errorf("runbuilder: closing run %s: %w", path, err)
	}

	if opts.Checksum {
		opts.Logger.Printf("runbuilder: wrote %s, %d records, checksum %08x", path, len(batch), w.Checksum())
	} else {
		opts.Logger.Printf("runbuilder: wrote %s, %d records", path, len(batch))
	}

	return path, nil
}
