// Copyright 2017, Kerby Shedden and the linesort contributors.

// Package record defines the parsed line model used throughout the
// external merge-sort engine, and the total order that the engine
// sorts by.
package record

import (
	"bytes"
	"math"
)

// Record is a single parsed line of the form "<number>. <text>".
type Record struct {
	// Text is the portion of the line following "<number>. ".  It
	// never contains the line terminator.
	Text []byte

	// Number is the decimal integer preceding the ". " separator.
	Number uint32
}

// Line renders r back into its canonical textual form, without the
// trailing line terminator.
func (r Record) Line() []byte {
	buf := make([]byte, 0, len(r.Text)+12)
	buf = appendUint32(buf, r.Number)
	buf = append(buf, '.', ' ')
	buf = append(buf, r.Text...)
	return buf
}

func appendUint32(buf []byte, n uint32) []byte {
	if n == 0 {
		return append(buf, '0')
	}
	var tmp [10]byte
	i := len(tmp)
	for n > 0 {
		i--
		tmp[i] = byte('0' + n%10)
		n /= 10
	}
	return append(buf, tmp[i:]...)
}

// Compare returns -1, 0 or 1 according to the engine's total order:
// ordinal byte comparison of Text first, then ascending Number.
func Compare(a, b Record) int {
	if c := bytes.Compare(a.Text, b.Text); c != 0 {
		return c
	}
	switch {
	case a.Number < b.Number:
		return -1
	case a.Number > b.Number:
		return 1
	default:
		return 0
	}
}

// Less reports whether a sorts strictly before b.
func Less(a, b Record) bool {
	return Compare(a, b) < 0
}

// TryParse attempts to parse line (which must not contain a line
// terminator) as a Record.  It returns false if line does not match
// the grammar DIGIT+ "." SP BYTE*, if the number overflows uint32, or
// if there is no byte following the ". " separator.
//
// The returned Record's Text is a fresh copy; TryParse never retains
// a reference into line.
func TryParse(line []byte) (Record, bool) {
	dot := bytes.IndexByte(line, '.')
	if dot <= 0 {
		return Record{}, false
	}
	if dot+2 >= len(line) || line[dot+1] != ' ' {
		return Record{}, false
	}

	var n uint64
	for _, c := range line[:dot] {
		if c < '0' || c > '9' {
			return Record{}, false
		}
		n = n*10 + uint64(c-'0')
		if n > math.MaxUint32 {
			return Record{}, false
		}
	}

	text := make([]byte, len(line)-dot-2)
	copy(text, line[dot+2:])

	return Record{Text: text, Number: uint32(n)}, true
}
