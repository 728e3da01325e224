// Copyright 2017, Kerby Shedden and the linesort contributors.

// Package runio provides the shared buffered I/O used for every run
// file (and, for reading, the original input file): a 1 MiB buffer,
// optional snappy compression, an optional rolling-hash diagnostic
// checksum, and an fsync before close so that a run is durable before
// a merge pass may consume it.
package runio

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/chmduquesne/rollinghash/buzhash32"
	"github.com/golang/snappy"
	"golang.org/x/sys/unix"

	"github.com/kshedden/linesort/internal/record"
)

// bufSize matches the 1 MiB buffer used throughout muscato's
// bufio.Scanner/bufio.Writer setup.
const bufSize = 1024 * 1024

var bom = []byte{0xEF, 0xBB, 0xBF}

// Reader scans a run (or the original input) file line by line,
// silently skipping any line that fails to parse.
type Reader struct {
	f        *os.File
	scanner  *bufio.Scanner
	first    bool
	consumed int64
	invalid  int64
}

// OpenInput opens the original input file for phase 1.  BOM is
// stripped from the first line if present; lines are split on LF,
// with a trailing CR (from CRLF) trimmed.
func OpenInput(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return newReader(f, false, true), nil
}

// OpenRun opens a run file previously written by Writer.  compressed
// must match how the run was created.
func OpenRun(path string, compressed bool) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return newReader(f, compressed, false), nil
}

func newReader(f *os.File, compressed, stripBOM bool) *Reader {
	var src io.Reader = f
	if compressed {
		src = snappy.NewReader(f)
	}
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, bufSize), bufSize)
	return &Reader{f: f, scanner: scanner, first: stripBOM}
}

// Next returns the next successfully parsed record, skipping any
// malformed lines, advancing past them.  ok is false once the
// underlying stream is exhausted.
func (r *Reader) Next() (rec record.Record, ok bool, err error) {
	for r.scanner.Scan() {
		line := r.scanner.Bytes()
		r.consumed += int64(len(line)) + 1 // +1 for the stripped line terminator
		if r.first {
			r.first = false
			line = bytes.TrimPrefix(line, bom)
		}
		line = bytes.TrimSuffix(line, []byte{'\r'})
		if rec, ok := record.TryParse(line); ok {
			return rec, true, nil
		}
		r.invalid++
	}
	if err := r.scanner.Err(); err != nil {
		return record.Record{}, false, err
	}
	return record.Record{}, false, nil
}

// Consumed reports the cumulative number of input bytes the reader
// has scanned through so far (valid and invalid lines alike), used by
// the run-size watermark in phase 1.  It is the sum over scanned lines
// of each line's length plus one for its terminator, not a raw
// file-descriptor offset, so it is unaffected by the internal
// buffering chunk size.  The scanner drops the CR of a CRLF before
// the line is counted, so CRLF input counts one byte a line fewer
// than the file holds.
func (r *Reader) Consumed() int64 {
	return r.consumed
}

// Invalid reports the count of lines that failed to parse and were
// silently skipped.
func (r *Reader) Invalid() int64 {
	return r.invalid
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.f.Close()
}

// Writer streams records to a fresh run file in canonical textual
// form, "<number>. <text>\n".
type Writer struct {
	f        *os.File
	bw       *bufio.Writer
	sw       *snappy.Writer
	checksum *buzhash32.Buzhash32
	useSum   bool
}

// Create creates a new run file at path.  If compress is true, the
// stream is snappy-compressed.  If checksum is true, a rolling-hash
// diagnostic checksum is accumulated over the serialized bytes; it is
// purely observational and never consulted for correctness.
func Create(path string, compress, checksum bool) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	w := &Writer{f: f, useSum: checksum}
	if checksum {
		w.checksum = buzhash32.New()
	}

	var dst io.Writer = f
	if compress {
		w.sw = snappy.NewBufferedWriter(f)
		dst = w.sw
	}
	w.bw = bufio.NewWriterSize(dst, bufSize)
	return w, nil
}

// WriteRecord serializes rec in canonical form and writes it.
func (w *Writer) WriteRecord(rec record.Record) error {
	line := rec.Line()
	if _, err := w.bw.Write(line); err != nil {
		return err
	}
	if _, err := w.bw.Write([]byte{'\n'}); err != nil {
		return err
	}
	if w.useSum {
		w.checksum.Write(line)
		w.checksum.Write([]byte{'\n'})
	}
	return nil
}

// Checksum returns the accumulated rolling-hash checksum.  Only valid
// if Create was called with checksum=true.
func (w *Writer) Checksum() uint32 {
	if w.checksum == nil {
		return 0
	}
	return w.checksum.Sum32()
}

// Close flushes all buffers, fsyncs the file for durability, and
// closes it.  A run file must be durable on disk before a merge pass
// may consume it.
func (w *Writer) Close() error {
	if err := w.bw.Flush(); err != nil {
		w.f.Close()
		return err
	}
	if w.sw != nil {
		if err := w.sw.Close(); err != nil {
			w.f.Close()
			return err
		}
	}
	if err := unix.Fsync(int(w.f.Fd())); err != nil {
		w.f.Close()
		return fmt.Errorf("runio: fsync: %w", err)
	}
	return w.f.Close()
}
