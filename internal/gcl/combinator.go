package gcl

import "fmt"

// Op names a binary combinator.
type Op int

const (
	OpAnd Op = iota
	OpOr
	OpFollowedBy
	OpContainedIn
	OpContaining
	OpNotContainedIn
	OpNotContaining
)

func (op Op) String() string {
	switch op {
	case OpAnd:
		return "all_of"
	case OpOr:
		return "one_of"
	case OpFollowedBy:
		return "followed_by"
	case OpContainedIn:
		return "contained_in"
	case OpContaining:
		return "containing"
	case OpNotContainedIn:
		return "not_contained_in"
	case OpNotContaining:
		return "not_containing"
	default:
		return fmt.Sprintf("Op(%d)", int(op))
	}
}

// envelopeOp reports whether op is defined through L and R.
func (op Op) envelopeOp() bool {
	return op == OpAnd || op == OpOr || op == OpFollowedBy
}

type binary struct {
	op          Op
	left, right *Cursor
	self        *Cursor
}

// Combine builds the combinator op over left and right. The new cursor owns
// both children.
func Combine(op Op, left, right *Cursor) *Cursor {
	b := &binary{op: op, left: left, right: right}
	c := newCursor(b)
	if op.envelopeOp() {
		c.env = b
	}
	b.self = c
	return c
}

// And matches the shortest intervals holding a match from each side.
func And(left, right *Cursor) *Cursor { return Combine(OpAnd, left, right) }

// Or matches the shortest intervals holding a match from either side.
func Or(left, right *Cursor) *Cursor { return Combine(OpOr, left, right) }

// FollowedBy matches the shortest intervals holding a left match that ends
// before a right match starts.
func FollowedBy(left, right *Cursor) *Cursor { return Combine(OpFollowedBy, left, right) }

// ContainedIn keeps the left matches lying within some right match.
func ContainedIn(left, right *Cursor) *Cursor { return Combine(OpContainedIn, left, right) }

// Containing keeps the left matches that contain some right match.
func Containing(left, right *Cursor) *Cursor { return Combine(OpContaining, left, right) }

// NotContainedIn keeps the left matches lying within no right match.
func NotContainedIn(left, right *Cursor) *Cursor { return Combine(OpNotContainedIn, left, right) }

// NotContaining keeps the left matches that contain no right match.
func NotContaining(left, right *Cursor) *Cursor { return Combine(OpNotContaining, left, right) }

func (b *binary) l(k Position) Position {
	switch b.op {
	case OpAnd:
		return min(b.left.L(k), b.right.L(k))
	case OpOr:
		return max(b.left.L(k), b.right.L(k))
	default:
		ll := b.right.L(k)
		if ll == NegInf || ll == PosInf {
			return ll
		}
		return b.left.L(ll - 1)
	}
}

func (b *binary) r(k Position) Position {
	switch b.op {
	case OpAnd:
		return max(b.left.R(k), b.right.R(k))
	case OpOr:
		return min(b.left.R(k), b.right.R(k))
	default:
		rr := b.left.R(k)
		if rr == NegInf || rr == PosInf {
			return rr
		}
		return b.right.R(rr + 1)
	}
}

func (b *binary) nextStart(k Position) Match {
	switch b.op {
	case OpAnd, OpOr, OpFollowedBy:
		q := b.r(k)
		if q == PosInf {
			return posMatch
		}
		return Match{Start: b.l(q), End: q}
	case OpContainedIn:
		return refine(b.left.NextStart(k),
			func(m Match) bool { return b.right.NextEnd(m.End).Start <= m.Start },
			func(m Match) Match { return b.left.NextStart(b.right.NextEnd(m.End).Start) })
	case OpNotContainedIn:
		return refine(b.left.NextStart(k),
			func(m Match) bool { return b.right.NextEnd(m.End).Start > m.Start },
			func(m Match) Match { return b.left.NextEnd(b.right.NextEnd(m.End).End + 1) })
	default:
		return b.self.NextEnd(b.left.NextStart(k).End)
	}
}

func (b *binary) nextEnd(k Position) Match {
	switch b.op {
	case OpAnd, OpOr, OpFollowedBy:
		if k == NegInf {
			return b.self.NextStart(k)
		}
		return b.self.NextStart(b.l(k-1) + 1)
	case OpContaining:
		return refine(b.left.NextEnd(k),
			func(m Match) bool { return b.right.NextStart(m.Start).End <= m.End },
			func(m Match) Match { return b.left.NextEnd(b.right.NextStart(m.Start).End) })
	case OpNotContaining:
		return refine(b.left.NextEnd(k),
			func(m Match) bool { return b.right.NextStart(m.Start).End > m.End },
			func(m Match) Match { return b.left.NextStart(b.right.NextStart(m.Start).Start + 1) })
	default:
		return b.self.NextStart(b.left.NextEnd(k).Start)
	}
}

func (b *binary) prevEnd(k Position) Match {
	switch b.op {
	case OpAnd, OpOr, OpFollowedBy:
		p := b.l(k)
		if p == NegInf {
			return negMatch
		}
		return Match{Start: p, End: b.r(p)}
	case OpContainedIn:
		return refine(b.left.PrevEnd(k),
			func(m Match) bool { return b.right.PrevStart(m.Start).End >= m.End },
			func(m Match) Match { return b.left.PrevEnd(b.right.PrevStart(m.Start).End) })
	case OpNotContainedIn:
		return refine(b.left.PrevEnd(k),
			func(m Match) bool { return b.right.PrevStart(m.Start).End < m.End },
			func(m Match) Match { return b.left.PrevStart(b.right.PrevStart(m.Start).Start - 1) })
	default:
		return b.self.PrevStart(b.left.PrevEnd(k).Start)
	}
}

func (b *binary) prevStart(k Position) Match {
	switch b.op {
	case OpAnd, OpOr, OpFollowedBy:
		if k == PosInf {
			return b.self.PrevEnd(k)
		}
		q := b.r(k + 1)
		if q == NegInf {
			return negMatch
		}
		return b.self.PrevEnd(q - 1)
	case OpContaining:
		return refine(b.left.PrevStart(k),
			func(m Match) bool { return b.right.PrevEnd(m.End).Start >= m.Start },
			func(m Match) Match { return b.left.PrevStart(b.right.PrevEnd(m.End).Start) })
	case OpNotContaining:
		return refine(b.left.PrevStart(k),
			func(m Match) bool { return b.right.PrevEnd(m.End).Start < m.Start },
			func(m Match) Match { return b.left.PrevEnd(b.right.PrevEnd(m.End).End - 1) })
	default:
		return b.self.PrevEnd(b.left.PrevStart(k).End)
	}
}

// refine proposes candidates from the primary side, starting at m, until
// accept holds or the candidates run out. next derives the following
// candidate from the secondary match that disqualified the current one; the
// secondary probes repeat their keys, so the memo answers them.
func refine(m Match, accept func(Match) bool, next func(Match) Match) Match {
	for !m.IsSentinel() && !accept(m) {
		m = next(m)
	}
	return m
}
