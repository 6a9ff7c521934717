// Package shard provides fixed shard routing for index engines. Each shard
// owns an independent indexer.Engine, and therefore an independent address
// space, backed by its own data directory.
package shard

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/concordance/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/concordance/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/concordance/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/concordance/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/concordance/pkg/metrics"
)

// Router maps shard IDs to dedicated indexer.Engine instances.
type Router struct {
	engines   []*indexer.Engine
	mu        sync.RWMutex
	numShards int
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewRouter creates numShards engines, each in a shard-<id> sub-directory of
// baseCfg.DataDir. m may be nil.
func NewRouter(baseCfg config.IndexerConfig, numShards int, tok *tokenizer.Tokenizer, m *metrics.Metrics) (*Router, error) {
	if numShards <= 0 {
		return nil, fmt.Errorf("%w: shard count must be positive, got %d", apperrors.ErrInvalidInput, numShards)
	}
	r := &Router{
		engines:   make([]*indexer.Engine, 0, numShards),
		numShards: numShards,
		metrics:   m,
		logger:    slog.Default().With("component", "shard-router"),
	}
	for i := 0; i < numShards; i++ {
		shardCfg := baseCfg
		shardCfg.DataDir = filepath.Join(baseCfg.DataDir, fmt.Sprintf("shard-%d", i))
		engine, err := indexer.NewEngine(shardCfg, tok)
		if err != nil {
			r.closeAll()
			return nil, fmt.Errorf("creating engine for shard %d: %w", i, err)
		}
		engine.SetMetrics(m)
		r.engines = append(r.engines, engine)
		r.logger.Info("shard engine initialized",
			"shard_id", i,
			"data_dir", shardCfg.DataDir,
		)
	}
	if m != nil {
		m.ActiveShards.Set(float64(numShards))
	}
	r.RecordDocCounts()
	r.logger.Info("shard router ready", "num_shards", numShards)
	return r, nil
}

// Route returns the Engine responsible for the given shard ID.
func (r *Router) Route(shardID int) (*indexer.Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if shardID < 0 || shardID >= len(r.engines) {
		return nil, fmt.Errorf("%w: unknown shard ID %d (valid range: 0-%d)",
			apperrors.ErrShardUnavailable, shardID, r.numShards-1)
	}
	return r.engines[shardID], nil
}

// Engines returns the shard engines indexed by shard ID.
func (r *Router) Engines() []*indexer.Engine {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*indexer.Engine, len(r.engines))
	copy(out, r.engines)
	return out
}

func (r *Router) NumShards() int {
	return r.numShards
}

// FlushAll flushes every shard engine to disk.
func (r *Router) FlushAll() error {
	var firstErr error
	for id, engine := range r.Engines() {
		if err := engine.Flush(); err != nil {
			r.logger.Error("flush failed", "shard_id", id, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("flushing shard %d: %w", id, err)
			}
		}
	}
	r.RecordDocCounts()
	return firstErr
}

// ReloadAll tells every shard engine to re-scan for newly flushed segments
// and returns the total number of segments added.
func (r *Router) ReloadAll() (int, error) {
	total := 0
	var firstErr error
	for id, engine := range r.Engines() {
		n, err := engine.ReloadSegments()
		if err != nil {
			r.logger.Error("reload failed", "shard_id", id, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("reloading shard %d: %w", id, err)
			}
		}
		total += n
	}
	if total > 0 {
		r.RecordDocCounts()
	}
	return total, firstErr
}

// RecordDocCounts publishes the per-shard document gauge.
func (r *Router) RecordDocCounts() {
	if r.metrics == nil {
		return
	}
	for id, engine := range r.Engines() {
		r.metrics.ShardDocCount.WithLabelValues(strconv.Itoa(id)).Set(float64(engine.DocCount()))
	}
}

// Close flushes and closes every shard engine.
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeAll()
}

func (r *Router) closeAll() error {
	var firstErr error
	for id, engine := range r.engines {
		if err := engine.Close(); err != nil {
			r.logger.Error("close failed", "shard_id", id, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
