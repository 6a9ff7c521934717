// Package executor evaluates compiled queries against index shards. Each
// shard has its own address space, so a query is compiled and walked once
// per shard and the hits are concatenated in shard order.
package executor

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/concordance/internal/gcl"
	"github.com/Adithya-Monish-Kumar-K/concordance/internal/searcher/parser"
)

// checkEvery is how many matches are walked between cancellation checks.
const checkEvery = 1024

// Index is the view of one shard the executor needs.
type Index interface {
	parser.Resolver
	Translate(p, q gcl.Position) (docID, text string, ok bool)
	LastPosition() gcl.Position
}

type Options struct {
	Limit   int
	Reverse bool
}

type Hit struct {
	Shard      int          `json:"shard"`
	Start      gcl.Position `json:"start"`
	End        gcl.Position `json:"end"`
	Value      float64      `json:"value,omitempty"`
	DocumentID string       `json:"document_id,omitempty"`
	Text       string       `json:"text,omitempty"`
}

type SearchResult struct {
	Query         string `json:"query"`
	TotalHits     int    `json:"total_hits"`
	Hits          []Hit  `json:"hits"`
	ShardsQueried int    `json:"shards_queried"`
	ShardsFailed  int    `json:"shards_failed,omitempty"`
}

// walk enumerates the matches of c lying inside [0, last], forward or
// backward, keeping the first limit and counting all of them.
func walk(ctx context.Context, c *gcl.Cursor, last gcl.Position, opts Options) ([]gcl.Match, int, error) {
	var kept []gcl.Match
	total := 0
	visit := func(m gcl.Match) error {
		total++
		if len(kept) < opts.Limit {
			kept = append(kept, m)
		}
		if total%checkEvery == 0 {
			return ctx.Err()
		}
		return nil
	}

	// ends increase with starts in a gc-list, so both walks can stop at the
	// first match outside the range
	if opts.Reverse {
		for m := c.PrevEnd(last); m.Start >= 0; m = c.PrevEnd(m.End - 1) {
			if err := visit(m); err != nil {
				return nil, 0, err
			}
		}
	} else {
		for m := c.NextStart(0); m.End <= last; m = c.NextStart(m.Start + 1) {
			if err := visit(m); err != nil {
				return nil, 0, err
			}
		}
	}
	return kept, total, nil
}

// evaluate compiles expr against idx and walks the result.
func evaluate(ctx context.Context, shard int, idx Index, expr *parser.Expr, opts Options) ([]Hit, int, error) {
	last := idx.LastPosition()
	c, err := parser.CompileWithin(expr, idx, 0, last)
	if err != nil {
		return nil, 0, err
	}
	matches, total, err := walk(ctx, c, last, opts)
	if err != nil {
		return nil, 0, err
	}
	hits := make([]Hit, 0, len(matches))
	for _, m := range matches {
		hit := Hit{Shard: shard, Start: m.Start, End: m.End, Value: m.Value}
		if docID, text, ok := idx.Translate(m.Start, m.End); ok {
			hit.DocumentID = docID
			hit.Text = text
		}
		hits = append(hits, hit)
	}
	return hits, total, nil
}
