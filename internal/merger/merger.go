// Copyright 2017, Kerby Shedden and the linesort contributors.

// Package merger implements phase 2 of the external merge-sort
// engine: a k-way, multi-pass merge of sorted run files into a single
// sorted destination file, bounded at each pass by a fan-in F.
//
// Grounded on the kWayMerge/manualHeap pattern in the csvquery
// external-sort reference (other_examples), generalized from a single
// merge into muscato's own repeated-pass shape (cmd/muscato's
// sortWindows/sortBloom stage loop, minus the external `sort`
// process -- here the merge is in-process).
package merger

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/kshedden/linesort/internal/enginerr"
	"github.com/kshedden/linesort/internal/runio"
	"github.com/kshedden/linesort/internal/tempspace"
)

// Options controls a single invocation of Merge.
type Options struct {
	// FanIn is the maximum number of runs merged per pass (F >= 2).
	FanIn int

	// InputCompressed indicates whether the initial runPaths given
	// to Merge are snappy-compressed (i.e. whether phase 1 ran
	// with Compress: true).
	InputCompressed bool

	// IntermediateCompressed stores intermediate merge-pass output
	// snappy-compressed.  The final pass into OutPath is always
	// plain text, per the output-format contract.
	IntermediateCompressed bool

	// Checksum logs a rolling-hash diagnostic checksum for every
	// intermediate file produced.
	Checksum bool

	// Logger receives progress messages.  Must not be nil.
	Logger *log.Logger
}

// Merge merges runPaths into outPath.  Per the design's short
// circuits: zero runs produce an empty outPath; any other count is
// merged via one or more fan-in-bounded passes.  Intermediates from a
// finished pass are deleted (best-effort) before the next pass
// begins.  On cancellation, Merge returns enginerr.Cancelled and
// leaves whatever intermediates exist for the caller's TempSpace
// cleanup.
func Merge(ctx context.Context, runPaths []string, outPath string, ts *tempspace.TempSpace, opts Options) error {
	if len(runPaths) == 0 {
		return createEmpty(outPath)
	}

	current := runPaths
	currentCompressed := opts.InputCompressed
	pass := 0

	for len(current) > opts.FanIn {
		pass++
		opts.Logger.Printf("merger: pass %d, %d runs, fan-in %d", pass, len(current), opts.FanIn)

		subdir, err := ts.Subdir(fmt.Sprintf("pass%d", pass))
		if err != nil {
			return enginerr.Fatal(err)
		}

		chunks := chunkPaths(current, opts.FanIn)
		next := make([]string, 0, len(chunks))
		for i, chunk := range chunks {
			if err := ctx.Err(); err != nil {
				return enginerr.Cancelled()
			}
			ext := ".tmp"
			if opts.IntermediateCompressed {
				ext = ".tmp.sz"
			}
			interPath := fmt.Sprintf("%s/merged-%04d%s", subdir, i, ext)
			if err := mergeBatch(ctx, chunk, interPath, currentCompressed, opts.IntermediateCompressed, opts.Checksum, opts.Logger); err != nil {
				return err
			}
			next = append(next, interPath)
		}

		ts.RemoveAll(current)
		current = next
		currentCompressed = opts.IntermediateCompressed
	}

	opts.Logger.Printf("merger: final pass, %d runs -> %s", len(current), outPath)
	if err := mergeBatch(ctx, current, outPath, currentCompressed, false, false, opts.Logger); err != nil {
		return err
	}
	ts.RemoveAll(current)

	return nil
}

// chunkPaths partitions paths into contiguous chunks of at most n.
func chunkPaths(paths []string, n int) [][]string {
	var chunks [][]string
	for len(paths) > 0 {
		k := n
		if len(paths) < k {
			k = len(paths)
		}
		chunks = append(chunks, paths[:k])
		paths = paths[k:]
	}
	return chunks
}

func createEmpty(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return enginerr.Fatal(err)
	}
	return f.Close()
}

// mergeBatch k-way merges paths (single-source included) into a
// fresh file at outPath, via a min-priority queue over each reader's
// current record.
func mergeBatch(ctx context.Context, paths []string, outPath string, inputCompressed, outputCompressed, checksum bool, logger *log.Logger) error {
	readers := make([]*runio.Reader, 0, len(paths))
	defer func() {
		for _, r := range readers {
			r.Close()
		}
	}()

	for _, p := range paths {
		r, err := runio.OpenRun(p, inputCompressed)
		if err != nil {
			return enginerr.Fatal(fmt.Errorf("merger: opening %s: %w", p, err))
		}
		readers = append(readers, r)
	}

	w, err := runio.Create(outPath, outputCompressed, checksum)
	if err != nil {
		return enginerr.Fatal(fmt.Errorf("merger: creating %s: %w", outPath, err))
	}

	h := make(manualHeap, 0, len(readers))
	for i, r := range readers {
		rec, ok, err := r.Next()
		if err != nil {
			w.Close()
			return enginerr.Fatal(fmt.Errorf("merger: reading %s: %w", paths[i], err))
		}
		if ok {
			h = append(h, heapItem{rec: rec, src: i})
		}
	}
	h.init()

	var merged int64
	for len(h) > 0 {
		select {
		case <-ctx.Done():
			w.Close()
			return enginerr.Cancelled()
		default:
		}

		item := h.pop()
		if err := w.WriteRecord(item.rec); err != nil {
			w.Close()
			return enginerr.Fatal(fmt.Errorf("merger: writing %s: %w", outPath, err))
		}
		merged++

		next, ok, err := readers[item.src].Next()
		if err != nil {
			w.Close()
			return enginerr.Fatal(fmt.Errorf("merger: reading %s: %w", paths[item.src], err))
		}
		if ok {
			h.push(heapItem{rec: next, src: item.src})
		}
	}

	if err := w.Close(); err != nil {
		return enginerr.Fatal(fmt.Errorf("merger: closing %s: %w", outPath, err))
	}

	if checksum {
		logger.Printf("merger: merged %d runs into %s, %d records, checksum %08x", len(paths), outPath, merged, w.Checksum())
	} else {
		logger.Printf("merger: merged %d runs into %s, %d records", len(paths), outPath, merged)
	}

	return nil
}
