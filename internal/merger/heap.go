// Copyright 2017, Kerby Shedden and the linesort contributors.

package merger

import "github.com/kshedden/linesort/internal/record"

// heapItem pairs a reader's current record with the index of the
// reader it came from, so the reader can be advanced once the record
// is dequeued.  runio.Reader keeps no copy of the record it last
// returned, so this is the only place the record is held.
type heapItem struct {
	rec record.Record
	src int
}

// manualHeap is a hand-rolled binary min-heap over heapItem, keyed by
// the record comparator.  Grounded on the manualHeap in the csvquery
// external-sort reference: container/heap boxes every Push/Pop
// argument as interface{}, which allocates on every call; a manual
// heap over a concrete slice type avoids that for a structure this
// small and this hot.
type manualHeap []heapItem

func (h manualHeap) less(i, j int) bool {
	return record.Less(h[i].rec, h[j].rec)
}

func (h manualHeap) swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

// init arranges h (already populated with its initial items) into
// heap order.
func (h *manualHeap) init() {
	n := len(*h)
	for i := n/2 - 1; i >= 0; i-- {
		h.down(i, n)
	}
}

func (h *manualHeap) push(x heapItem) {
	*h = append(*h, x)
	h.up(len(*h) - 1)
}

func (h *manualHeap) pop() heapItem {
	old := *h
	n := len(old)
	x := old[0]
	old[0] = old[n-1]
	*h = old[:n-1]
	if len(*h) > 0 {
		h.down(0, len(*h))
	}
	return x
}

func (h *manualHeap) up(j int) {
	for {
		i := (j - 1) / 2
		if i == j || !h.less(j, i) {
			break
		}
		h.swap(i, j)
		j = i
	}
}

func (h *manualHeap) down(i0, n int) {
	i := i0
	for {
		j1 := 2*i + 1
		if j1 >= n || j1 < 0 {
			break
		}
		j := j1
		if j2 := j1 + 1; j2 < n && h.less(j2, j1) {
			j = j2
		}
		if !h.less(j, i) {
			break
		}
		h.swap(i, j)
		i = j
	}
}
