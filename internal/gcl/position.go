package gcl

import (
	"fmt"
	"math"
)

type Position int64

const (
	NegInf Position = math.MinInt64
	PosInf Position = math.MaxInt64
)

type Match struct {
	Start Position
	End   Position
	Value float64
}

var (
	negMatch = Match{Start: NegInf, End: NegInf}
	posMatch = Match{Start: PosInf, End: PosInf}
)

// NegMatch is returned by backward probes that run off the front of a stream.
func NegMatch() Match { return negMatch }

// PosMatch is returned by forward probes that run off the end of a stream.
func PosMatch() Match { return posMatch }

func (m Match) IsSentinel() bool {
	return m.Start == NegInf || m.Start == PosInf
}

// Contains reports whether o lies within m.
func (m Match) Contains(o Match) bool {
	return m.Start <= o.Start && o.End <= m.End
}

func (m Match) Width() int64 {
	return int64(m.End-m.Start) + 1
}

func (m Match) String() string {
	switch {
	case m.Start == NegInf:
		return "(-inf)"
	case m.Start == PosInf:
		return "(+inf)"
	case m.Value != 0:
		return fmt.Sprintf("(%d,%d,%g)", m.Start, m.End, m.Value)
	default:
		return fmt.Sprintf("(%d,%d)", m.Start, m.End)
	}
}
