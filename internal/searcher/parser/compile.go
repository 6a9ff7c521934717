package parser

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/concordance/internal/gcl"
	apperrors "github.com/Adithya-Monish-Kumar-K/concordance/pkg/errors"
)

var errArity = fmt.Errorf("%w: operand count out of range", apperrors.ErrInvalidQuery)

// Resolver maps a query term to the cursor over its occurrences. Unknown
// terms must resolve to an empty cursor; an error means the lookup itself
// failed.
type Resolver interface {
	Resolve(term string) (*gcl.Cursor, error)
}

type ResolverFunc func(term string) (*gcl.Cursor, error)

func (f ResolverFunc) Resolve(term string) (*gcl.Cursor, error) {
	return f(term)
}

// Compile builds the cursor graph for e. Operators with more than two
// operands are folded from the left, so e need not be binary. The first
// resolver error aborts compilation.
func Compile(e *Expr, r Resolver) (*gcl.Cursor, error) {
	return CompileWithin(e, r, gcl.NegInf+1, gcl.PosInf-1)
}

// CompileWithin is Compile for an index whose positions lie in [lo, hi].
// Link operands are only scanned inside that range, which keeps links over
// fixed-width windows finite.
func CompileWithin(e *Expr, r Resolver, lo, hi gcl.Position) (*gcl.Cursor, error) {
	c := compiler{r: r, lo: lo, hi: hi}
	return c.compile(e)
}

type compiler struct {
	r      Resolver
	lo, hi gcl.Position
}

func (c compiler) compile(e *Expr) (*gcl.Cursor, error) {
	switch e.Op {
	case Term:
		cur, err := c.r.Resolve(e.Term)
		if err != nil {
			return nil, fmt.Errorf("resolving term %q: %w", e.Term, err)
		}
		return cur, nil
	case Fixed:
		return gcl.NewFixedWidth(e.Width), nil
	case Link:
		if len(e.Args) != 1 {
			return nil, fmt.Errorf("compiling %s: %w", e, errArity)
		}
		child, err := c.compile(e.Args[0])
		if err != nil {
			return nil, err
		}
		return gcl.LinkWithin(child, c.lo, c.hi), nil
	}

	info, ok := operators[e.Op]
	if !ok || len(e.Args) == 0 || len(e.Args) < info.min {
		return nil, fmt.Errorf("compiling %s: %w", e, errArity)
	}
	acc, err := c.compile(e.Args[0])
	if err != nil {
		return nil, err
	}
	for _, arg := range e.Args[1:] {
		next, err := c.compile(arg)
		if err != nil {
			return nil, err
		}
		acc = gcl.Combine(info.combine, acc, next)
	}
	return acc, nil
}
