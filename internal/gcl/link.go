package gcl

import (
	"math"
	"slices"
)

// link reads each child value as a position and serves the distinct
// positions as single-position matches. The child is scanned once, in the
// direction of whichever probe arrives first.
type link struct {
	child  *Cursor
	lo, hi Position
	arr    *array
}

// Link returns the cursor of positions referenced by the values of child's
// matches. Values that are not finite or fall outside the real position range
// are ignored. child must be finite; use LinkWithin for children built on
// fixed-width windows.
func Link(child *Cursor) *Cursor {
	return LinkWithin(child, NegInf+1, PosInf-1)
}

// LinkWithin is Link over the child matches starting in [lo, hi] only.
func LinkWithin(child *Cursor, lo, hi Position) *Cursor {
	return newCursor(&link{child: child, lo: lo, hi: hi})
}

func (l *link) forward() *array {
	if l.arr == nil {
		var refs []Position
		for m := l.child.NextStart(l.lo); !m.IsSentinel() && m.Start <= l.hi; m = l.child.NextStart(m.Start + 1) {
			refs = appendRef(refs, m.Value)
		}
		l.arr = linkArray(refs)
	}
	return l.arr
}

func (l *link) backward() *array {
	if l.arr == nil {
		var refs []Position
		for m := l.child.PrevStart(l.hi); !m.IsSentinel() && m.Start >= l.lo; m = l.child.PrevStart(m.Start - 1) {
			refs = appendRef(refs, m.Value)
		}
		l.arr = linkArray(refs)
	}
	return l.arr
}

func appendRef(refs []Position, v float64) []Position {
	if math.IsNaN(v) || v <= float64(NegInf) || v >= float64(PosInf) {
		return refs
	}
	p := Position(v)
	if p == NegInf || p == PosInf {
		return refs
	}
	return append(refs, p)
}

func linkArray(refs []Position) *array {
	slices.Sort(refs)
	return newArraySource(slices.Compact(refs), nil, nil)
}

func (l *link) nextStart(k Position) Match { return l.forward().nextStart(k) }
func (l *link) nextEnd(k Position) Match   { return l.forward().nextEnd(k) }
func (l *link) prevEnd(k Position) Match   { return l.backward().prevEnd(k) }
func (l *link) prevStart(k Position) Match { return l.backward().prevStart(k) }
