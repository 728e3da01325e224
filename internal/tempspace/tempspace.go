// Copyright 2017, Kerby Shedden and the linesort contributors.

// Package tempspace manages a directory dedicated to a single engine
// run: minting unique file names within it and, on disposal, making a
// best-effort attempt to remove everything it created.  A leaked temp
// file is logged, not fatal -- the engine must still be able to report
// the primary success/failure of the sort.
package tempspace

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/google/uuid"
)

// TempSpace is a directory dedicated to one engine run.
type TempSpace struct {
	root    string
	logger  *log.Logger
	seq     uint64
	created bool
}

// New creates (if necessary) the directory at root and returns a
// TempSpace rooted there.  logger may be nil, in which case cleanup
// warnings are discarded.
func New(root string, logger *log.Logger) (*TempSpace, error) {
	created := false
	if _, err := os.Stat(root); os.IsNotExist(err) {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return nil, fmt.Errorf("tempspace: creating %s: %w", root, err)
		}
		created = true
	} else if err != nil {
		return nil, fmt.Errorf("tempspace: statting %s: %w", root, err)
	}
	return &TempSpace{root: root, logger: logger, created: created}, nil
}

// Root returns the directory this TempSpace is rooted at.
func (t *TempSpace) Root() string {
	return t.root
}

// NewPath mints a fresh, unique path under Root with the given
// extension (e.g. ".tmp" or ".tmp.sz"), and is safe for concurrent
// use by multiple writer workers.
func (t *TempSpace) NewPath(ext string) string {
	n := atomic.AddUint64(&t.seq, 1)
	name := fmt.Sprintf("run-%s-%06d%s", uuid.NewString(), n, ext)
	return filepath.Join(t.root, name)
}

// Subdir mints a fresh, unique nested directory under Root, for a
// merge pass's intermediates, and creates it.
func (t *TempSpace) Subdir(label string) (string, error) {
	dir := filepath.Join(t.root, fmt.Sprintf("pass-%s-%s", label, uuid.NewString()))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("tempspace: creating pass dir %s: %w", dir, err)
	}
	return dir, nil
}

// RemoveAll best-effort deletes the given paths.  Errors are logged,
// never returned: a leaked temp file is a warning, not a failure of
// the sort itself.
func (t *TempSpace) RemoveAll(paths []string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			t.logf("tempspace: failed to remove %s: %v", p, err)
		}
	}
}

// Close best-effort recursively removes everything under Root.  If
// this TempSpace created Root itself (the common case -- a fresh
// scratch directory named by configuration), Root itself is removed
// too; if Root pre-existed (e.g. a shared directory the caller
// pointed at), only its contents are cleared, leaving Root in place.
// Safe to call on normal exit, error, and cancellation paths alike.
func (t *TempSpace) Close() {
	if t == nil {
		return
	}
	if t.created {
		if err := os.RemoveAll(t.root); err != nil {
			t.logf("tempspace: failed to remove %s: %v", t.root, err)
		}
		return
	}
	entries, err := os.ReadDir(t.root)
	if err != nil {
		t.logf("tempspace: failed to list %s: %v", t.root, err)
		return
	}
	for _, e := range entries {
		p := filepath.Join(t.root, e.Name())
		if err := os.RemoveAll(p); err != nil {
			t.logf("tempspace: failed to remove %s: %v", p, err)
		}
	}
}

func (t *TempSpace) logf(format string, args ...interface{}) {
	if t.logger != nil {
		t.logger.Printf(format, args...)
	}
}
