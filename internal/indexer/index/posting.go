package index

import (
	"github.com/Adithya-Monish-Kumar-K/concordance/internal/gcl"
)

// Postings is the positional stream of one term: parallel starts, ends and
// values. Ends is nil while every match covers a single position and Values
// is nil while every value is zero.
type Postings struct {
	Starts []gcl.Position `json:"p"`
	Ends   []gcl.Position `json:"q,omitempty"`
	Values []float64      `json:"v,omitempty"`
}

func (p *Postings) Len() int {
	return len(p.Starts)
}

func (p *Postings) Cursor() *gcl.Cursor {
	return gcl.NewArray(p.Starts, p.Ends, p.Values)
}

func (p *Postings) add(start, end gcl.Position, value float64) {
	if p.Ends == nil && end != start {
		p.Ends = make([]gcl.Position, len(p.Starts), cap(p.Starts))
		copy(p.Ends, p.Starts)
	}
	if p.Values == nil && value != 0 {
		p.Values = make([]float64, len(p.Starts), cap(p.Starts))
	}
	p.Starts = append(p.Starts, start)
	if p.Ends != nil {
		p.Ends = append(p.Ends, end)
	}
	if p.Values != nil {
		p.Values = append(p.Values, value)
	}
}

// view returns a read-only copy of the slice headers. Later appends never
// write inside the returned ranges.
func (p *Postings) view() *Postings {
	n := len(p.Starts)
	v := &Postings{Starts: p.Starts[:n:n]}
	if p.Ends != nil {
		v.Ends = p.Ends[:n:n]
	}
	if p.Values != nil {
		v.Values = p.Values[:n:n]
	}
	return v
}

type TermEntry struct {
	Term     string
	Postings *Postings
}

// Annotation is a named interval over absolute positions.
type Annotation struct {
	Name  string
	Start gcl.Position
	End   gcl.Position
	Value float64
}

// Document records where a document sits in the address space and the text
// its tokens came from.
type Document struct {
	ID      string       `json:"id"`
	Ordinal int64        `json:"n"`
	Start   gcl.Position `json:"p"`
	End     gcl.Position `json:"q"`
	Text    string       `json:"text"`
	Offsets []int        `json:"offsets"`
}

// Translate returns the text from the start of token p up to the start of
// token q+1, clamped to the document.
func (d *Document) Translate(p, q gcl.Position) string {
	p, q = max(p, d.Start), min(q, d.End)
	if p > q || len(d.Offsets) == 0 {
		return ""
	}
	from := d.Offsets[p-d.Start]
	to := len(d.Text)
	if q < d.End {
		to = d.Offsets[q-d.Start+1]
	}
	return d.Text[from:to]
}

// FindDocument returns the document holding position p in docs, which must
// be sorted by address.
func FindDocument(docs []Document, p gcl.Position) (*Document, bool) {
	lo, hi := 0, len(docs)
	for lo < hi {
		mid := (lo + hi) / 2
		if docs[mid].End < p {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(docs) && docs[lo].Start <= p {
		return &docs[lo], true
	}
	return nil, false
}
