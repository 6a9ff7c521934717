package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/concordance/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/concordance/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/concordance/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/concordance/pkg/tracing"
)

type shardResult struct {
	hits  []Hit
	total int
	err   error
}

// ShardedExecutor fans a query out to every shard. A failing shard is
// logged and skipped; the query fails only when every shard fails.
type ShardedExecutor struct {
	shards   []Index
	splitter parser.Splitter
	timeout  time.Duration
	parallel int
	logger   *slog.Logger
}

// NewSharded creates an executor over shards, indexed by shard ID. splitter
// expands phrases and must match the tokenizer the shards were built with.
// timeoutPerShard of zero disables the per-shard limit.
func NewSharded(shards []Index, splitter parser.Splitter, timeoutPerShard time.Duration) *ShardedExecutor {
	return &ShardedExecutor{
		shards:   shards,
		splitter: splitter,
		timeout:  timeoutPerShard,
		parallel: max(len(shards), 1),
		logger:   slog.Default().With("component", "sharded-executor"),
	}
}

// Prepare parses query into the binary, phrase-expanded form Execute takes.
func (se *ShardedExecutor) Prepare(query string) (*parser.Expr, error) {
	return parser.Prepare(query, se.splitter)
}

func (se *ShardedExecutor) Execute(ctx context.Context, expr *parser.Expr, opts Options) (*SearchResult, error) {
	ctx, span := tracing.StartChildSpan(ctx, "execute")
	defer span.End()

	results := make([]shardResult, len(se.shards))
	var g errgroup.Group
	g.SetLimit(se.parallel)
	for id, shard := range se.shards {
		g.Go(func() error {
			results[id] = se.runShard(ctx, id, shard, expr, opts)
			return nil
		})
	}
	g.Wait()

	result := &SearchResult{
		Query:         expr.String(),
		Hits:          make([]Hit, 0),
		ShardsQueried: len(se.shards),
	}
	var firstErr error
	for i := range results {
		id := i
		if opts.Reverse {
			id = len(results) - 1 - i
		}
		r := results[id]
		if r.err != nil {
			result.ShardsFailed++
			if firstErr == nil {
				firstErr = r.err
			}
			continue
		}
		result.TotalHits += r.total
		for _, hit := range r.hits {
			if len(result.Hits) < opts.Limit {
				result.Hits = append(result.Hits, hit)
			}
		}
	}
	if len(se.shards) > 0 && result.ShardsFailed == len(se.shards) {
		return nil, fmt.Errorf("all %d shards failed: %w", len(se.shards), firstErr)
	}

	span.SetAttr("total_hits", result.TotalHits)
	span.SetAttr("shards_failed", result.ShardsFailed)
	logger.FromContext(ctx).Debug("sharded query executed",
		"query", result.Query,
		"shards_queried", result.ShardsQueried,
		"shards_failed", result.ShardsFailed,
		"total_hits", result.TotalHits,
		"returned", len(result.Hits),
	)
	return result, nil
}

func (se *ShardedExecutor) runShard(ctx context.Context, id int, shard Index, expr *parser.Expr, opts Options) shardResult {
	ctx, span := tracing.StartChildSpan(ctx, "shard")
	defer span.End()
	span.SetAttr("shard_id", id)

	res, err := resilience.Call(ctx, se.timeout, fmt.Sprintf("shard %d", id), func(ctx context.Context) (shardResult, error) {
		hits, total, err := evaluate(ctx, id, shard, expr, opts)
		return shardResult{hits: hits, total: total}, err
	})
	if err != nil {
		logger.FromContext(ctx).Error("shard query failed", "shard_id", id, "error", err)
		return shardResult{err: fmt.Errorf("shard %d: %w", id, err)}
	}
	span.SetAttr("hits", res.total)
	return res
}
