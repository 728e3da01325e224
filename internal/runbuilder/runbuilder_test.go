package runbuilder

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kshedden/linesort/internal/runio"
	"github.com/kshedden/linesort/internal/tempspace"
)

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func writeInput(t *testing.T, lines []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.txt")
	body := ""
	for _, l := range lines {
		body += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func readAllRuns(t *testing.T, paths []string, compressed bool) []string {
	t.Helper()
	var out []string
	for _, p := range paths {
		r, err := runio.OpenRun(p, compressed)
		require.NoError(t, err)
		for {
			rec, ok, err := r.Next()
			require.NoError(t, err)
			if !ok {
				break
			}
			out = append(out, fmt.Sprintf("%d. %s", rec.Number, rec.Text))
		}
		require.NoError(t, r.Close())
	}
	return out
}

func TestBuildProducesOneSortedRunWhenSmall(t *testing.T) {
	in := writeInput(t, []string{"2. Apple", "1. Banana", "3. Apple"})
	ts, err := tempspace.New(filepath.Join(t.TempDir(), "runs"), nil)
	require.NoError(t, err)
	defer ts.Close()

	res, err := Build(context.Background(), in, ts, Options{
		RunSizeBytes: 1 << 20,
		Workers:      2,
		Logger:       discardLogger(),
	})
	require.NoError(t, err)
	require.Len(t, res.RunPaths, 1)
	require.EqualValues(t, 3, res.TotalRecords)

	lines := readAllRuns(t, res.RunPaths, false)
	require.Equal(t, []string{"2. Apple", "3. Apple", "1. Banana"}, lines)
}

func TestBuildSplitsIntoMultipleRunsAtBudget(t *testing.T) {
	var lines []string
	for i := 0; i < 200; i++ {
		lines = append(lines, fmt.Sprintf("%d. line number %d with some padding text", i, i))
	}
	in := writeInput(t, lines)
	ts, err := tempspace.New(filepath.Join(t.TempDir(), "runs"), nil)
	require.NoError(t, err)
	defer ts.Close()

	res, err := Build(context.Background(), in, ts, Options{
		RunSizeBytes: 512, // small budget forces many runs
		Workers:      3,
		Logger:       discardLogger(),
	})
	require.NoError(t, err)
	require.Greater(t, len(res.RunPaths), 1)
	require.EqualValues(t, 200, res.TotalRecords)

	got := readAllRuns(t, res.RunPaths, false)
	require.Len(t, got, 200)
}

func TestBuildDropsInvalidLines(t *testing.T) {
	in := writeInput(t, []string{"hello", "1. a", ". b", "2. a", "3.a"})
	ts, err := tempspace.New(filepath.Join(t.TempDir(), "runs"), nil)
	require.NoError(t, err)
	defer ts.Close()

	res, err := Build(context.Background(), in, ts, Options{
		RunSizeBytes: 1 << 20,
		Workers:      1,
		Logger:       discardLogger(),
	})
	require.NoError(t, err)
	require.EqualValues(t, 2, res.TotalRecords)
	require.EqualValues(t, 3, res.Dropped)
}

func TestBuildHonorsCancellation(t *testing.T) {
	var lines []string
	for i := 0; i < 5000; i++ {
		lines = append(lines, fmt.Sprintf("%d. line number %d", i, i))
	}
	in := writeInput(t, lines)
	ts, err := tempspace.New(filepath.Join(t.TempDir(), "runs"), nil)
	require.NoError(t, err)
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = Build(ctx, in, ts, Options{
		RunSizeBytes: 64,
		Workers:      2,
		Logger:       discardLogger(),
	})
	require.Error(t, err)
}

func TestBuildCompressedRuns(t *testing.T) {
	in := writeInput(t, []string{"1. a", "2. b"})
	ts, err := tempspace.New(filepath.Join(t.TempDir(), "runs"), nil)
	require.NoError(t, err)
	defer ts.Close()

	res, err := Build(context.Background(), in, ts, Options{
		RunSizeBytes: 1 << 20,
		Workers:      1,
		Compress:     true,
		Checksum:     true,
		Logger:       discardLogger(),
	})
	require.NoError(t, err)
	require.Len(t, res.RunPaths, 1)

	lines := readAllRuns(t, res.RunPaths, true)
	require.Equal(t, []string{"1. a", "2. b"}, lines)
}
