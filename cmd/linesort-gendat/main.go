// Copyright 2017, Kerby Shedden and the linesort contributors.

// linesort-gendat generates synthetic "<number>. <text>" input files
// for exercising and benchmarking linesort, generalized from
// muscato_gendat's synthetic read/gene generator (genRand, flag-driven
// size knobs) to this package's line format.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"math/rand"
	"os"
)

var (
	numLines  int
	textLen   int
	maxNumber int
	dupKeys   int
	outPath   string
)

var letters = []byte("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ ")

// genText fills seq with textLen random letters, mirroring
// muscato_gendat's genRand base-alphabet sampling.
func genText(seq []byte) []byte {
	if cap(seq) < textLen {
		seq = make([]byte, textLen)
	}
	seq = seq[:textLen]
	for i := range seq {
		seq[i] = letters[rand.Intn(len(letters))]
	}
	return seq
}

func generate() error {
	fid, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer fid.Close()

	w := bufio.NewWriter(fid)
	defer w.Flush()

	// A small pool of keys is reused across dupKeys-fraction of the
	// lines, so the output exercises the engine's tie-break-by-number
	// ordering on repeated text values.
	var pool [][]byte
	poolSize := numLines / 20
	if poolSize < 1 {
		poolSize = 1
	}
	for i := 0; i < poolSize; i++ {
		pool = append(pool, genText(nil))
	}

	seq := make([]byte, textLen)
	for i := 0; i < numLines; i++ {
		var text []byte
		if dupKeys > 0 && rand.Intn(100) < dupKeys {
			text = pool[rand.Intn(len(pool))]
		} else {
			seq = genText(seq)
			text = seq
		}
		n := rand.Intn(maxNumber + 1)
		if _, err := fmt.Fprintf(w, "%d. %s\n", n, text); err != nil {
			return err
		}
	}

	return nil
}

func main() {
	flag.IntVar(&numLines, "NumLines", 100000, "Number of lines to generate")
	flag.IntVar(&textLen, "TextLen", 32, "Length of each line's text portion")
	flag.IntVar(&maxNumber, "MaxNumber", 1<<20, "Maximum value of the leading number")
	flag.IntVar(&dupKeys, "DupKeyPct", 5, "Percentage of lines drawn from a small repeated-text pool")
	flag.StringVar(&outPath, "OutPath", "lines.txt", "Destination file")
	flag.Parse()

	if numLines < 1 {
		panic("NumLines must be at least 1")
	}

	if err := generate(); err != nil {
		panic(err)
	}

	fmt.Printf("wrote %d lines to %s\n", numLines, outPath)
}
