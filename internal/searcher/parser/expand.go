package parser

// Splitter breaks a phrase into the words it would be indexed as.
type Splitter interface {
	Split(phrase string) []string
}

// ExpandPhrases returns a copy of e in which every double-quoted term of two
// or more words becomes (>> (# n) (... w1 ... wn)): a window of n positions
// holding the words in order, which forces them to be adjacent. A phrase of
// one word becomes a bare term; a phrase with no words is kept as written.
func ExpandPhrases(e *Expr, s Splitter) *Expr {
	if e.Op == Term {
		if e.Quote != '"' {
			return &Expr{Op: Term, Term: e.Term, Quote: e.Quote}
		}
		words := s.Split(e.Term)
		switch len(words) {
		case 0:
			return &Expr{Op: Term, Term: e.Term, Quote: e.Quote}
		case 1:
			return NewTerm(words[0])
		}
		seq := NewOp(FollowedBy)
		for _, w := range words {
			seq.Args = append(seq.Args, NewTerm(w))
		}
		return NewOp(Containing, NewFixed(int64(len(words))), seq)
	}
	out := &Expr{Op: e.Op, Width: e.Width}
	for _, arg := range e.Args {
		out.Args = append(out.Args, ExpandPhrases(arg, s))
	}
	return out
}

// ToBinary returns a copy of e in which operators with more than two
// operands are folded from the left: (op a b c) becomes (op (op a b) c).
func ToBinary(e *Expr) *Expr {
	out := &Expr{Op: e.Op, Term: e.Term, Quote: e.Quote, Width: e.Width}
	if len(e.Args) == 0 {
		return out
	}
	args := make([]*Expr, len(e.Args))
	for i, arg := range e.Args {
		args[i] = ToBinary(arg)
	}
	if len(args) <= 2 {
		out.Args = args
		return out
	}
	out.Args = args[:2]
	for _, arg := range args[2:] {
		out = NewOp(e.Op, out, arg)
	}
	return out
}

// Prepare parses query, expands its phrases and folds it into binary form.
func Prepare(query string, s Splitter) (*Expr, error) {
	expr, err := Parse(query)
	if err != nil {
		return nil, err
	}
	return ToBinary(ExpandPhrases(expr, s)), nil
}
