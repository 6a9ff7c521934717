package gcl

import "iter"

type probe int

const (
	probeNextStart probe = iota
	probeNextEnd
	probePrevEnd
	probePrevStart
	numProbes
)

func (p probe) String() string {
	switch p {
	case probeNextStart:
		return "next_start"
	case probeNextEnd:
		return "next_end"
	case probePrevEnd:
		return "prev_end"
	case probePrevStart:
		return "prev_start"
	default:
		return "unknown"
	}
}

// source is what a concrete cursor kind implements. Cursor wraps it with
// the per-probe memo.
type source interface {
	nextStart(k Position) Match
	nextEnd(k Position) Match
	prevEnd(k Position) Match
	prevStart(k Position) Match
}

// envelope is implemented by sources that compute L and R directly.
type envelope interface {
	l(k Position) Position
	r(k Position) Position
}

type memo struct {
	set bool
	key Position
	m   Match
}

// Cursor is a navigable view of a gc-list. The zero value is not usable;
// cursors come from the constructors in this package.
type Cursor struct {
	src   source
	env   envelope
	memos [numProbes]memo
}

func newCursor(src source) *Cursor {
	return &Cursor{src: src}
}

func (c *Cursor) lookup(p probe, k Position) (Match, bool) {
	s := &c.memos[p]
	if s.set && s.key == k {
		return s.m, true
	}
	return Match{}, false
}

func (c *Cursor) store(p probe, k Position, m Match) Match {
	c.memos[p] = memo{set: true, key: k, m: m}
	return m
}

// NextStart returns the first match with start >= k.
func (c *Cursor) NextStart(k Position) Match {
	if m, ok := c.lookup(probeNextStart, k); ok {
		return m
	}
	return c.store(probeNextStart, k, c.src.nextStart(k))
}

// NextEnd returns the first match with end >= k.
func (c *Cursor) NextEnd(k Position) Match {
	if m, ok := c.lookup(probeNextEnd, k); ok {
		return m
	}
	return c.store(probeNextEnd, k, c.src.nextEnd(k))
}

// PrevEnd returns the last match with end <= k.
func (c *Cursor) PrevEnd(k Position) Match {
	if m, ok := c.lookup(probePrevEnd, k); ok {
		return m
	}
	return c.store(probePrevEnd, k, c.src.prevEnd(k))
}

// PrevStart returns the last match with start <= k.
func (c *Cursor) PrevStart(k Position) Match {
	if m, ok := c.lookup(probePrevStart, k); ok {
		return m
	}
	return c.store(probePrevStart, k, c.src.prevStart(k))
}

// L returns the start of PrevEnd(k).
func (c *Cursor) L(k Position) Position {
	if c.env != nil {
		return c.env.l(k)
	}
	return c.PrevEnd(k).Start
}

// R returns the end of NextStart(k).
func (c *Cursor) R(k Position) Position {
	if c.env != nil {
		return c.env.r(k)
	}
	return c.NextStart(k).End
}

// All enumerates the stream front to back.
func (c *Cursor) All() iter.Seq[Match] {
	return func(yield func(Match) bool) {
		for m := c.NextStart(NegInf + 1); !m.IsSentinel(); m = c.NextStart(m.Start + 1) {
			if !yield(m) {
				return
			}
		}
	}
}

// Backward enumerates the stream back to front.
func (c *Cursor) Backward() iter.Seq[Match] {
	return func(yield func(Match) bool) {
		for m := c.PrevStart(PosInf - 1); !m.IsSentinel(); m = c.PrevStart(m.Start - 1) {
			if !yield(m) {
				return
			}
		}
	}
}

// Collect returns up to limit matches in forward order. A limit <= 0 means
// no limit.
func Collect(c *Cursor, limit int) []Match {
	var out []Match
	for m := range c.All() {
		out = append(out, m)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
