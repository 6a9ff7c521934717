package shard

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/concordance/internal/gcl"
	"github.com/Adithya-Monish-Kumar-K/concordance/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/concordance/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/concordance/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/concordance/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/concordance/pkg/metrics"
)

func newRouter(t *testing.T, dir string, shards int, m *metrics.Metrics) *Router {
	t.Helper()
	cfg := config.IndexerConfig{
		DataDir:        dir,
		SegmentMaxSize: 1 << 20,
		FlushInterval:  time.Hour,
	}
	r, err := NewRouter(cfg, shards, tokenizer.New(tokenizer.Options{}), m)
	require.NoError(t, err)
	return r
}

func TestRouteBounds(t *testing.T) {
	r := newRouter(t, t.TempDir(), 2, nil)
	defer r.Close()

	for id := 0; id < 2; id++ {
		e, err := r.Route(id)
		require.NoError(t, err)
		assert.NotNil(t, e)
	}
	for _, id := range []int{-1, 2} {
		_, err := r.Route(id)
		assert.ErrorIs(t, err, apperrors.ErrShardUnavailable)
	}
	assert.Len(t, r.Engines(), 2)
	assert.Equal(t, 2, r.NumShards())
}

func TestNewRouterRejectsZeroShards(t *testing.T) {
	_, err := NewRouter(config.IndexerConfig{DataDir: t.TempDir()}, 0, tokenizer.New(tokenizer.Options{}), nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestShardsHaveIndependentAddressSpaces(t *testing.T) {
	r := newRouter(t, t.TempDir(), 2, nil)
	defer r.Close()

	for id := 0; id < 2; id++ {
		e, err := r.Route(id)
		require.NoError(t, err)
		require.NoError(t, e.IndexDocument(indexer.Document{ID: "doc", Body: "shared words"}))
	}
	for _, e := range r.Engines() {
		c, err := e.Resolve("words")
		require.NoError(t, err)
		assert.Equal(t, []gcl.Match{{Start: 1, End: 1}}, gcl.Collect(c, 0))
	}
}

func TestFlushAndReloadAcrossRouters(t *testing.T) {
	dir := t.TempDir()
	sm := metrics.New(prometheus.NewRegistry())
	searcher := newRouter(t, dir, 2, sm)
	defer searcher.Close()
	writer := newRouter(t, dir, 2, nil)

	e, err := writer.Route(1)
	require.NoError(t, err)
	require.NoError(t, e.IndexDocument(indexer.Document{ID: "a", Body: "hello world"}))
	require.NoError(t, writer.FlushAll())

	added, err := searcher.ReloadAll()
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	assert.Equal(t, float64(1), testutil.ToFloat64(sm.ShardDocCount.WithLabelValues("1")))
	assert.Equal(t, float64(0), testutil.ToFloat64(sm.ShardDocCount.WithLabelValues("0")))
	assert.Equal(t, float64(2), testutil.ToFloat64(sm.ActiveShards))
	require.NoError(t, writer.Close())
}
