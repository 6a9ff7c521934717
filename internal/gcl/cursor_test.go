package gcl

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counting records how often each probe reaches the underlying source.
type counting struct {
	inner source
	calls [numProbes]int
}

func (c *counting) nextStart(k Position) Match {
	c.calls[probeNextStart]++
	return c.inner.nextStart(k)
}

func (c *counting) nextEnd(k Position) Match {
	c.calls[probeNextEnd]++
	return c.inner.nextEnd(k)
}

func (c *counting) prevEnd(k Position) Match {
	c.calls[probePrevEnd]++
	return c.inner.prevEnd(k)
}

func (c *counting) prevStart(k Position) Match {
	c.calls[probePrevStart]++
	return c.inner.prevStart(k)
}

func (c *counting) total() int {
	n := 0
	for _, v := range c.calls {
		n += v
	}
	return n
}

func m(start, end Position, value float64) Match {
	return Match{Start: start, End: end, Value: value}
}

func exampleArray() *Cursor {
	return NewArray(
		[]Position{1, 10, 20, 100},
		[]Position{11, 15, 20, 110},
		[]float64{1, 2, 3, 4},
	)
}

func TestArrayForwardEnumeration(t *testing.T) {
	c := exampleArray()
	got := c.NextStart(NegInf + 1)
	assert.Equal(t, m(1, 11, 1), got)
	got = c.NextStart(got.Start + 1)
	assert.Equal(t, m(10, 15, 2), got)
	got = c.NextStart(got.Start + 1)
	assert.Equal(t, m(20, 20, 3), got)
	got = c.NextStart(got.Start + 1)
	assert.Equal(t, m(100, 110, 4), got)
	got = c.NextStart(got.Start + 1)
	assert.Equal(t, PosMatch(), got)
}

func TestArrayProbes(t *testing.T) {
	c := exampleArray()
	tests := []struct {
		name  string
		probe func(Position) Match
		key   Position
		want  Match
	}{
		{"prev_start 1000", c.PrevStart, 1000, m(100, 110, 4)},
		{"prev_end 12", c.PrevEnd, 12, m(1, 11, 1)},
		{"prev_end 15", c.PrevEnd, 15, m(10, 15, 2)},
		{"prev_end 1", c.PrevEnd, 1, NegMatch()},
		{"prev_start neg", c.PrevStart, NegInf, NegMatch()},
		{"prev_start -99", c.PrevStart, -99, NegMatch()},
		{"prev_start 1", c.PrevStart, 1, m(1, 11, 1)},
		{"prev_start 12", c.PrevStart, 12, m(10, 15, 2)},
		{"prev_start 99", c.PrevStart, 99, m(20, 20, 3)},
		{"prev_start pos", c.PrevStart, PosInf, m(100, 110, 4)},
		{"next_end 12", c.NextEnd, 12, m(10, 15, 2)},
		{"next_end 16", c.NextEnd, 16, m(20, 20, 3)},
		{"next_end 111", c.NextEnd, 111, PosMatch()},
		{"next_start neg", c.NextStart, NegInf, m(1, 11, 1)},
		{"next_start pos", c.NextStart, PosInf, PosMatch()},
		{"prev_end pos", c.PrevEnd, PosInf, m(100, 110, 4)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.probe(tt.key))
		})
	}
}

func TestArrayDefaults(t *testing.T) {
	c := NewArray([]Position{3, 7}, nil, nil)
	assert.Equal(t, m(7, 7, 0), c.NextEnd(4))
	assert.Equal(t, Position(3), c.L(6))
	assert.Equal(t, Position(7), c.R(4))
	assert.Equal(t, NegInf, c.L(2))
	assert.Equal(t, PosInf, c.R(8))

	empty := NewArray(nil, nil, nil)
	assert.Equal(t, PosMatch(), empty.NextStart(0))
	assert.Equal(t, NegMatch(), empty.PrevEnd(0))
}

func TestArrayMismatchedLengthsPanics(t *testing.T) {
	assert.Panics(t, func() { NewArray([]Position{1, 2}, []Position{1}, nil) })
	assert.Panics(t, func() { NewArray([]Position{1, 2}, nil, []float64{1}) })
}

func TestGallopingAgreesWithLinearScan(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	for round := 0; round < 50; round++ {
		n := 1 + r.IntN(200)
		var starts, ends []Position
		s, e := Position(r.Int64N(5)), Position(0)
		for range n {
			s += 1 + Position(r.Int64N(4))
			e = max(e+1, s+Position(r.Int64N(3)))
			starts = append(starts, s)
			ends = append(ends, e)
		}
		var oracle list
		for i := range starts {
			oracle = append(oracle, Match{Start: starts[i], End: ends[i]})
		}
		c := NewArray(starts, ends, nil)
		for range 300 {
			k := Position(r.Int64N(int64(e) + 10))
			switch r.IntN(4) {
			case 0:
				require.Equal(t, oracle.nextStart(k), c.NextStart(k), "next_start %d", k)
			case 1:
				require.Equal(t, oracle.nextEnd(k), c.NextEnd(k), "next_end %d", k)
			case 2:
				require.Equal(t, oracle.prevEnd(k), c.PrevEnd(k), "prev_end %d", k)
			default:
				require.Equal(t, oracle.prevStart(k), c.PrevStart(k), "prev_start %d", k)
			}
		}
	}
}

func TestMemoShortCircuitsRepeatedKeys(t *testing.T) {
	src := &counting{inner: newArraySource([]Position{2, 4, 6}, nil, nil)}
	c := newCursor(src)

	c.NextStart(3)
	c.NextStart(3)
	c.NextStart(3)
	assert.Equal(t, 1, src.calls[probeNextStart])

	c.PrevEnd(3)
	c.NextStart(3)
	assert.Equal(t, 1, src.calls[probeNextStart])
	assert.Equal(t, 1, src.calls[probePrevEnd])

	c.NextStart(5)
	c.NextStart(3)
	assert.Equal(t, 3, src.calls[probeNextStart])
}

func TestSingleton(t *testing.T) {
	c := NewSingleton(5, 8, 2.5)
	want := m(5, 8, 2.5)
	assert.Equal(t, want, c.NextStart(5))
	assert.Equal(t, PosMatch(), c.NextStart(6))
	assert.Equal(t, want, c.NextEnd(8))
	assert.Equal(t, PosMatch(), c.NextEnd(9))
	assert.Equal(t, want, c.PrevEnd(8))
	assert.Equal(t, NegMatch(), c.PrevEnd(7))
	assert.Equal(t, want, c.PrevStart(5))
	assert.Equal(t, NegMatch(), c.PrevStart(4))
}

func TestEmpty(t *testing.T) {
	c := NewEmpty()
	for _, k := range []Position{NegInf, 0, PosInf} {
		assert.Equal(t, PosMatch(), c.NextStart(k))
		assert.Equal(t, PosMatch(), c.NextEnd(k))
		assert.Equal(t, NegMatch(), c.PrevEnd(k))
		assert.Equal(t, NegMatch(), c.PrevStart(k))
	}
	assert.Empty(t, Collect(c, 0))
}

func TestFixedWidth(t *testing.T) {
	c := NewFixedWidth(3)
	assert.Equal(t, m(10, 12, 0), c.NextStart(10))
	assert.Equal(t, m(8, 10, 0), c.NextEnd(10))
	assert.Equal(t, m(8, 10, 0), c.PrevEnd(10))
	assert.Equal(t, m(10, 12, 0), c.PrevStart(10))

	assert.Equal(t, m(NegInf+1, NegInf+3, 0), c.NextStart(NegInf))
	assert.Equal(t, m(NegInf+1, NegInf+3, 0), c.NextEnd(NegInf))
	assert.Equal(t, NegMatch(), c.PrevEnd(NegInf+2))
	assert.Equal(t, NegMatch(), c.PrevStart(NegInf))
	assert.Equal(t, m(PosInf-3, PosInf-1, 0), c.PrevStart(PosInf))
	assert.Equal(t, m(PosInf-3, PosInf-1, 0), c.PrevEnd(PosInf))
	assert.Equal(t, PosMatch(), c.NextStart(PosInf-2))
	assert.Equal(t, PosMatch(), c.NextEnd(PosInf))

	assert.Equal(t, PosMatch(), NewFixedWidth(0).NextStart(0))
}

func TestForwardAndBackwardAreDuals(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 5))
	cursors := map[string]func() *Cursor{
		"array":     exampleArray,
		"singleton": func() *Cursor { return NewSingleton(4, 9, 0) },
		"and": func() *Cursor {
			return And(randomList(r, 12, 40, 4).cursor(), randomList(r, 12, 40, 4).cursor())
		},
		"merge": func() *Cursor {
			return NewMerge(randomList(r, 8, 40, 3).cursor(), randomList(r, 8, 40, 3).cursor(), randomList(r, 8, 40, 3).cursor())
		},
	}
	for name, build := range cursors {
		t.Run(name, func(t *testing.T) {
			c := build()
			var forward, backward []Match
			for m := range c.All() {
				forward = append(forward, m)
			}
			for m := range c.Backward() {
				backward = append([]Match{m}, backward...)
			}
			assert.Equal(t, forward, backward)
		})
	}
}

func TestCollectLimit(t *testing.T) {
	assert.Len(t, Collect(exampleArray(), 2), 2)
	assert.Len(t, Collect(exampleArray(), 0), 4)
}

func TestMatchString(t *testing.T) {
	assert.Equal(t, "(1,2)", m(1, 2, 0).String())
	assert.Equal(t, "(1,2,0.5)", m(1, 2, 0.5).String())
	assert.Equal(t, "(+inf)", PosMatch().String())
	assert.Equal(t, "(-inf)", NegMatch().String())
}
