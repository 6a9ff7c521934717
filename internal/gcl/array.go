package gcl

import (
	"fmt"
	"sort"
)

// array navigates parallel sorted slices by galloping from the index of the
// last hit, so sequential scans cost O(1) amortized and a jump of distance d
// costs O(log d).
type array struct {
	starts []Position
	ends   []Position
	values []float64
	cur    int
}

// NewArray returns a cursor over parallel slices. starts must be strictly
// increasing and ends non-decreasing. A nil ends means every match is a single
// position; a nil values means every value is zero. The slices are not copied
// and must not be modified afterwards.
func NewArray(starts, ends []Position, values []float64) *Cursor {
	return newCursor(newArraySource(starts, ends, values))
}

func newArraySource(starts, ends []Position, values []float64) *array {
	if ends == nil {
		ends = starts
	}
	if len(ends) != len(starts) {
		panic(fmt.Sprintf("gcl: %d starts but %d ends", len(starts), len(ends)))
	}
	if values != nil && len(values) != len(starts) {
		panic(fmt.Sprintf("gcl: %d starts but %d values", len(starts), len(values)))
	}
	return &array{starts: starts, ends: ends, values: values}
}

func (a *array) at(i int) Match {
	m := Match{Start: a.starts[i], End: a.ends[i]}
	if a.values != nil {
		m.Value = a.values[i]
	}
	return m
}

func (a *array) nextStart(k Position) Match {
	return a.forward(a.starts, k)
}

func (a *array) nextEnd(k Position) Match {
	return a.forward(a.ends, k)
}

func (a *array) prevEnd(k Position) Match {
	return a.backward(a.ends, k)
}

func (a *array) prevStart(k Position) Match {
	return a.backward(a.starts, k)
}

func (a *array) forward(keys []Position, k Position) Match {
	if len(keys) == 0 {
		return posMatch
	}
	i := gallopCeil(keys, a.cur, k)
	if i == len(keys) {
		return posMatch
	}
	a.cur = i
	return a.at(i)
}

func (a *array) backward(keys []Position, k Position) Match {
	if len(keys) == 0 {
		return negMatch
	}
	i := gallopFloor(keys, a.cur, k)
	if i < 0 {
		return negMatch
	}
	a.cur = i
	return a.at(i)
}

// gallopCeil returns the smallest index i with keys[i] >= k, or len(keys).
// The search brackets the answer by doubling steps away from cur and then
// binary-searches the bracket.
func gallopCeil(keys []Position, cur int, k Position) int {
	n := len(keys)
	var lo, hi int
	if keys[cur] >= k {
		hi = cur
		for step := 1; ; step *= 2 {
			lo = hi - step
			if lo < 0 {
				lo = -1
				break
			}
			if keys[lo] < k {
				break
			}
			hi = lo
		}
	} else {
		lo = cur
		for step := 1; ; step *= 2 {
			hi = lo + step
			if hi >= n {
				hi = n
				break
			}
			if keys[hi] >= k {
				break
			}
			lo = hi
		}
	}
	// keys[lo] < k (or lo == -1) and keys[hi] >= k (or hi == n).
	return lo + 1 + sort.Search(hi-lo-1, func(j int) bool { return keys[lo+1+j] >= k })
}

// gallopFloor returns the largest index i with keys[i] <= k, or -1.
func gallopFloor(keys []Position, cur int, k Position) int {
	n := len(keys)
	var lo, hi int
	if keys[cur] <= k {
		lo = cur
		for step := 1; ; step *= 2 {
			hi = lo + step
			if hi >= n {
				hi = n
				break
			}
			if keys[hi] > k {
				break
			}
			lo = hi
		}
	} else {
		hi = cur
		for step := 1; ; step *= 2 {
			lo = hi - step
			if lo < 0 {
				lo = -1
				break
			}
			if keys[lo] <= k {
				break
			}
			hi = lo
		}
	}
	// keys[lo] <= k (or lo == -1) and keys[hi] > k (or hi == n).
	return lo + sort.Search(hi-lo-1, func(j int) bool { return keys[lo+1+j] > k })
}
