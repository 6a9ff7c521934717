package parser

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/concordance/internal/gcl"
)

type Op int

const (
	Term Op = iota
	Fixed
	OneOf
	AllOf
	FollowedBy
	ContainedIn
	Containing
	NotContainedIn
	NotContaining
	Link
)

type operator struct {
	symbol  string
	aliases []string
	min     int
	max     int // 0 is unbounded
	combine gcl.Op
}

var operators = map[Op]operator{
	Fixed:          {symbol: "#", aliases: []string{"fixed_width"}},
	OneOf:          {symbol: "+", aliases: []string{"one_of"}, min: 1, combine: gcl.OpOr},
	AllOf:          {symbol: "^", aliases: []string{"all_of"}, min: 1, combine: gcl.OpAnd},
	FollowedBy:     {symbol: "...", aliases: []string{"<>", "followed_by"}, min: 2, combine: gcl.OpFollowedBy},
	ContainedIn:    {symbol: "<<", aliases: []string{"contained_in"}, min: 2, combine: gcl.OpContainedIn},
	Containing:     {symbol: ">>", aliases: []string{"containing"}, min: 2, combine: gcl.OpContaining},
	NotContainedIn: {symbol: "!<", aliases: []string{"not_contained_in"}, min: 2, combine: gcl.OpNotContainedIn},
	NotContaining:  {symbol: "!>", aliases: []string{"not_containing"}, min: 2, combine: gcl.OpNotContaining},
	Link:           {symbol: "@", aliases: []string{"link"}, min: 1, max: 1},
}

var byName = func() map[string]Op {
	m := make(map[string]Op)
	for op, info := range operators {
		m[info.symbol] = op
		for _, alias := range info.aliases {
			m[alias] = op
		}
	}
	return m
}()

func lookup(name string) (Op, bool) {
	op, ok := byName[name]
	return op, ok
}

func (o operator) arity() string {
	switch {
	case o.max == o.min:
		return fmt.Sprintf("exactly %d operand(s)", o.min)
	default:
		return fmt.Sprintf("at least %d operand(s)", o.min)
	}
}

func (o Op) String() string {
	if o == Term {
		return "term"
	}
	if info, ok := operators[o]; ok {
		return info.symbol
	}
	return fmt.Sprintf("Op(%d)", int(o))
}
