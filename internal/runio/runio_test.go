package runio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kshedden/linesort/internal/record"
)

func TestWriteThenReadPlainRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.tmp")

	w, err := Create(path, false, false)
	require.NoError(t, err)
	recs := []record.Record{
		{Text: []byte("Apple"), Number: 2},
		{Text: []byte("Banana"), Number: 1},
	}
	for _, r := range recs {
		require.NoError(t, w.WriteRecord(r))
	}
	require.NoError(t, w.Close())

	r, err := OpenRun(path, false)
	require.NoError(t, err)
	defer r.Close()

	var got []record.Record
	for {
		rec, ok, err := r.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, rec)
	}
	require.Equal(t, recs, got)
}

func TestWriteThenReadCompressedRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.tmp.sz")

	w, err := Create(path, true, true)
	require.NoError(t, err)
	require.NoError(t, w.WriteRecord(record.Record{Text: []byte("x"), Number: 9}))
	require.NoError(t, w.Close())
	require.NotZero(t, w.Checksum())

	r, err := OpenRun(path, true)
	require.NoError(t, err)
	defer r.Close()

	rec, ok, err := r.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint32(9), rec.Number)
	require.Equal(t, "x", string(rec.Text))

	_, ok, err = r.Next()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestOpenInputStripsBOMAndSkipsInvalidLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.txt")
	body := "\xEF\xBB\xBF1. a\nhello\n. b\n2. a\n3.a\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	r, err := OpenInput(path)
	require.NoError(t, err)
	defer r.Close()

	var got []record.Record
	for {
		rec, ok, err := r.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, rec)
	}
	require.Len(t, got, 2)
	require.Equal(t, "a", string(got[0].Text))
	require.Equal(t, uint32(1), got[0].Number)
	require.Equal(t, "a", string(got[1].Text))
	require.Equal(t, uint32(2), got[1].Number)
}

func TestOpenInputHandlesCRLF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.txt")
	require.NoError(t, os.WriteFile(path, []byte("1. a\r\n2. b\r\n"), 0o644))

	r, err := OpenInput(path)
	require.NoError(t, err)
	defer r.Close()

	rec, ok, err := r.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "a", string(rec.Text))
}

func TestConsumedTracksLogicalBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.txt")
	require.NoError(t, os.WriteFile(path, []byte("1. a\n2. b\n"), 0o644))

	r, err := OpenInput(path)
	require.NoError(t, err)
	defer r.Close()

	require.EqualValues(t, 0, r.Consumed())
	_, ok, err := r.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, len("1. a")+1, r.Consumed())

	_, ok, err = r.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, len("1. a")+1+len("2. b")+1, r.Consumed())
}
