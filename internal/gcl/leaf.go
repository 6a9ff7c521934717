package gcl

type empty struct{}

// NewEmpty returns a cursor over no matches. Unknown terms resolve to it.
func NewEmpty() *Cursor { return newCursor(empty{}) }

func (empty) nextStart(Position) Match { return posMatch }
func (empty) nextEnd(Position) Match   { return posMatch }
func (empty) prevEnd(Position) Match   { return negMatch }
func (empty) prevStart(Position) Match { return negMatch }

type singleton struct {
	m Match
}

// NewSingleton returns a cursor over exactly one match.
func NewSingleton(start, end Position, value float64) *Cursor {
	return newCursor(singleton{m: Match{Start: start, End: end, Value: value}})
}

func (s singleton) nextStart(k Position) Match {
	if k <= s.m.Start {
		return s.m
	}
	return posMatch
}

func (s singleton) nextEnd(k Position) Match {
	if k <= s.m.End {
		return s.m
	}
	return posMatch
}

func (s singleton) prevEnd(k Position) Match {
	if k >= s.m.End {
		return s.m
	}
	return negMatch
}

func (s singleton) prevStart(k Position) Match {
	if k >= s.m.Start {
		return s.m
	}
	return negMatch
}

// fixedWidth is every window of w consecutive real positions.
type fixedWidth struct {
	w Position
}

// NewFixedWidth returns the infinite cursor of all windows of width
// positions. A non-positive width yields an empty cursor.
func NewFixedWidth(width int64) *Cursor {
	if width <= 0 {
		return NewEmpty()
	}
	return newCursor(fixedWidth{w: Position(width)})
}

func (f fixedWidth) window(start Position) Match {
	return Match{Start: start, End: start + f.w - 1}
}

func (f fixedWidth) nextStart(k Position) Match {
	s := max(k, NegInf+1)
	if s > PosInf-f.w {
		return posMatch
	}
	return f.window(s)
}

func (f fixedWidth) nextEnd(k Position) Match {
	e := max(k, NegInf+f.w)
	if e >= PosInf {
		return posMatch
	}
	return f.window(e - f.w + 1)
}

func (f fixedWidth) prevEnd(k Position) Match {
	e := min(k, PosInf-1)
	if e < NegInf+f.w {
		return negMatch
	}
	return f.window(e - f.w + 1)
}

func (f fixedWidth) prevStart(k Position) Match {
	s := min(k, PosInf-f.w)
	if s <= NegInf {
		return negMatch
	}
	return f.window(s)
}
