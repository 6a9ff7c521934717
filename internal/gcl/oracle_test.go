package gcl

import (
	"math/rand/v2"
	"slices"
)

// list is a materialized stream used as a brute-force oracle.
type list []Match

func (l list) nextStart(k Position) Match {
	for _, m := range l {
		if m.Start >= k {
			return m
		}
	}
	return posMatch
}

func (l list) nextEnd(k Position) Match {
	for _, m := range l {
		if m.End >= k {
			return m
		}
	}
	return posMatch
}

func (l list) prevEnd(k Position) Match {
	for i := len(l) - 1; i >= 0; i-- {
		if l[i].End <= k {
			return l[i]
		}
	}
	return negMatch
}

func (l list) prevStart(k Position) Match {
	for i := len(l) - 1; i >= 0; i-- {
		if l[i].Start <= k {
			return l[i]
		}
	}
	return negMatch
}

func (l list) cursor() *Cursor {
	starts := make([]Position, len(l))
	ends := make([]Position, len(l))
	values := make([]float64, len(l))
	for i, m := range l {
		starts[i], ends[i], values[i] = m.Start, m.End, m.Value
	}
	return NewArray(starts, ends, values)
}

func sortList(l list) list {
	slices.SortFunc(l, func(a, b Match) int {
		if a.Start != b.Start {
			return int(a.Start - b.Start)
		}
		return int(a.End - b.End)
	})
	return l
}

// minimal drops every interval that contains a different one, which leaves a
// gc-list.
func minimal(cands list) list {
	var out list
	for i, a := range cands {
		keep := true
		for j, b := range cands {
			if i == j || (a.Start == b.Start && a.End == b.End) {
				continue
			}
			if a.Contains(b) {
				keep = false
				break
			}
		}
		if keep && !slices.ContainsFunc(out, func(m Match) bool { return m.Start == a.Start && m.End == a.End }) {
			out = append(out, a)
		}
	}
	return sortList(out)
}

func randomList(r *rand.Rand, n int, span, maxWidth int64) list {
	var cands list
	for range n {
		s := Position(r.Int64N(span))
		e := s + Position(r.Int64N(maxWidth))
		cands = append(cands, Match{Start: s, End: e})
	}
	out := minimal(cands)
	for i := range out {
		out[i].Value = float64(out[i].Start)
	}
	return out
}

func oracleAnd(a, b list) list {
	var cands list
	for _, x := range a {
		for _, y := range b {
			cands = append(cands, Match{Start: min(x.Start, y.Start), End: max(x.End, y.End)})
		}
	}
	return minimal(cands)
}

func oracleOr(a, b list) list {
	var cands list
	for _, x := range append(slices.Clone(a), b...) {
		cands = append(cands, Match{Start: x.Start, End: x.End})
	}
	return minimal(cands)
}

func oracleFollowedBy(a, b list) list {
	var cands list
	for _, x := range a {
		for _, y := range b {
			if x.End < y.Start {
				cands = append(cands, Match{Start: x.Start, End: y.End})
			}
		}
	}
	return minimal(cands)
}

func oracleFilter(a, b list, keep func(x Match, b list) bool) list {
	var out list
	for _, x := range a {
		if keep(x, b) {
			out = append(out, x)
		}
	}
	return out
}

func insideSome(x Match, b list) bool {
	return slices.ContainsFunc(b, func(y Match) bool { return y.Contains(x) })
}

func holdsSome(x Match, b list) bool {
	return slices.ContainsFunc(b, func(y Match) bool { return x.Contains(y) })
}

func oracleFor(op Op, a, b list) list {
	switch op {
	case OpAnd:
		return oracleAnd(a, b)
	case OpOr:
		return oracleOr(a, b)
	case OpFollowedBy:
		return oracleFollowedBy(a, b)
	case OpContainedIn:
		return oracleFilter(a, b, insideSome)
	case OpContaining:
		return oracleFilter(a, b, holdsSome)
	case OpNotContainedIn:
		return oracleFilter(a, b, func(x Match, b list) bool { return !insideSome(x, b) })
	default:
		return oracleFilter(a, b, func(x Match, b list) bool { return !holdsSome(x, b) })
	}
}

// probeKeys covers the sentinels and every position around the data.
func probeKeys(span int64) []Position {
	keys := []Position{NegInf, NegInf + 1, PosInf - 1, PosInf}
	for k := Position(-2); k <= Position(span)+2; k++ {
		keys = append(keys, k)
	}
	return keys
}
