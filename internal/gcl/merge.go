package gcl

import "container/heap"

// NewMerge returns the union of cursors as one gc-list. Where several
// children have a match at the same start, the one with the smallest end wins,
// and identical matches are reported once with the value of the earliest
// child. A single child is returned as is.
func NewMerge(cursors ...*Cursor) *Cursor {
	switch len(cursors) {
	case 0:
		return NewEmpty()
	case 1:
		return cursors[0]
	case 2:
		return newCursor(&pairMerge{children: cursors})
	default:
		return newCursor(newHeapMerge(cursors))
	}
}

// precedes orders candidate matches at a common start: smaller end first.
// On a full tie the caller keeps the earlier child.
func precedes(a, b Match) bool {
	return a.Start < b.Start || (a.Start == b.Start && a.End < b.End)
}

func follows(a, b Match) bool {
	return a.Start > b.Start || (a.Start == b.Start && a.End < b.End)
}

type pairMerge struct {
	children []*Cursor
}

func (p *pairMerge) nextStart(k Position) Match {
	a, b := p.children[0].NextStart(k), p.children[1].NextStart(k)
	if precedes(b, a) {
		return b
	}
	return a
}

func (p *pairMerge) prevStart(k Position) Match {
	a, b := p.children[0].PrevStart(k), p.children[1].PrevStart(k)
	if follows(b, a) {
		return b
	}
	return a
}

func (p *pairMerge) nextEnd(k Position) Match {
	return mergeNextEnd(p.children, p.nextStart, k)
}

func (p *pairMerge) prevEnd(k Position) Match {
	return mergePrevEnd(p.children, p.prevStart, k)
}

// mergeNextEnd finds the first merged match ending at or after k. No child
// has such a match before the smallest start among the children's own
// NextEnd answers, so the scan starts there.
func mergeNextEnd(children []*Cursor, next func(Position) Match, k Position) Match {
	s := PosInf
	for _, c := range children {
		s = min(s, c.NextEnd(k).Start)
	}
	m := next(s)
	for m.End < k {
		m = next(m.Start + 1)
	}
	return m
}

func mergePrevEnd(children []*Cursor, prev func(Position) Match, k Position) Match {
	s := NegInf
	for _, c := range children {
		s = max(s, c.PrevEnd(k).Start)
	}
	m := prev(s)
	for m.End > k {
		m = prev(m.Start - 1)
	}
	return m
}

type mergeEntry struct {
	m   Match
	idx int
}

// forwardHeap keeps the smallest (start, end, child) on top.
type forwardHeap []mergeEntry

func (h forwardHeap) Len() int { return len(h) }

func (h forwardHeap) Less(i, j int) bool {
	a, b := h[i].m, h[j].m
	if a.Start != b.Start || a.End != b.End {
		return precedes(a, b)
	}
	return h[i].idx < h[j].idx
}

func (h forwardHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *forwardHeap) Push(x interface{}) { *h = append(*h, x.(mergeEntry)) }

func (h *forwardHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// backwardHeap keeps the largest start on top, then the smallest end.
type backwardHeap struct{ forwardHeap }

func (h backwardHeap) Less(i, j int) bool {
	a, b := h.forwardHeap[i], h.forwardHeap[j]
	if a.m.Start != b.m.Start || a.m.End != b.m.End {
		return follows(a.m, b.m)
	}
	return a.idx < b.idx
}

type heapMerge struct {
	children []*Cursor

	fwd     forwardHeap
	fwdKey  Position
	fwdInit bool

	bwd     backwardHeap
	bwdKey  Position
	bwdInit bool
}

func newHeapMerge(children []*Cursor) *heapMerge {
	return &heapMerge{
		children: children,
		fwd:      make(forwardHeap, 0, len(children)),
		bwd:      backwardHeap{make(forwardHeap, 0, len(children))},
	}
}

// nextStart keeps one entry per child holding that child's NextStart answer
// for some key <= the current one. Moving forward only re-probes entries that
// fell behind; moving backward rebuilds the heap.
func (h *heapMerge) nextStart(k Position) Match {
	if !h.fwdInit || k < h.fwdKey {
		h.fwd = h.fwd[:0]
		for i, c := range h.children {
			h.fwd = append(h.fwd, mergeEntry{m: c.NextStart(k), idx: i})
		}
		heap.Init(&h.fwd)
		h.fwdInit = true
	} else {
		for h.fwd[0].m.Start < k {
			top := &h.fwd[0]
			top.m = h.children[top.idx].NextStart(k)
			heap.Fix(&h.fwd, 0)
		}
	}
	h.fwdKey = k
	return h.fwd[0].m
}

func (h *heapMerge) prevStart(k Position) Match {
	if !h.bwdInit || k > h.bwdKey {
		h.bwd.forwardHeap = h.bwd.forwardHeap[:0]
		for i, c := range h.children {
			h.bwd.forwardHeap = append(h.bwd.forwardHeap, mergeEntry{m: c.PrevStart(k), idx: i})
		}
		heap.Init(&h.bwd)
		h.bwdInit = true
	} else {
		for h.bwd.forwardHeap[0].m.Start > k {
			top := &h.bwd.forwardHeap[0]
			top.m = h.children[top.idx].PrevStart(k)
			heap.Fix(&h.bwd, 0)
		}
	}
	h.bwdKey = k
	return h.bwd.forwardHeap[0].m
}

func (h *heapMerge) nextEnd(k Position) Match {
	return mergeNextEnd(h.children, h.nextStart, k)
}

func (h *heapMerge) prevEnd(k Position) Match {
	return mergePrevEnd(h.children, h.prevStart, k)
}
