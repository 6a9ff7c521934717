package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/concordance/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/concordance/pkg/metrics"
)

type memStore struct {
	mu     sync.Mutex
	data   map[string]string
	getErr error
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string]string)}
}

func (s *memStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return "", s.getErr
	}
	v, ok := s.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (s *memStore) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = string(value.([]byte))
	return nil
}

func (s *memStore) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var n int64
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			delete(s.data, k)
			n++
		}
	}
	return n, nil
}

func sampleResult() *executor.SearchResult {
	return &executor.SearchResult{
		Query:         `(... to be)`,
		TotalHits:     1,
		Hits:          []executor.Hit{{Shard: 0, Start: 1, End: 2, DocumentID: "hamlet"}},
		ShardsQueried: 1,
	}
}

func TestKeyDependsOnOptions(t *testing.T) {
	a := Key("(... to be)", executor.Options{Limit: 10})
	b := Key("(... to be)", executor.Options{Limit: 10, Reverse: true})
	c := Key("(... to be)", executor.Options{Limit: 20})
	assert.True(t, strings.HasPrefix(a, keyPrefix))
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, a, Key("(... to be)", executor.Options{Limit: 10}))
}

func TestGetMissThenHit(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	c := New(newMemStore(), time.Minute, m)
	ctx := context.Background()
	key := Key("x", executor.Options{Limit: 1})

	_, ok := c.Get(ctx, key)
	assert.False(t, ok)

	c.Set(ctx, key, sampleResult())
	got, ok := c.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, sampleResult(), got)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHitsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheMissesTotal))
}

func TestGetOrComputeCollapsesConcurrentCalls(t *testing.T) {
	c := New(newMemStore(), time.Minute, nil)
	key := Key("y", executor.Options{})

	var calls atomic.Int32
	release := make(chan struct{})
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, _, err := c.GetOrCompute(context.Background(), key, func() (*executor.SearchResult, error) {
				calls.Add(1)
				<-release
				return sampleResult(), nil
			})
			assert.NoError(t, err)
			assert.Equal(t, 1, res.TotalHits)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.LessOrEqual(t, calls.Load(), int32(2))

	_, cached, err := c.GetOrCompute(context.Background(), key, func() (*executor.SearchResult, error) {
		t.Fatal("should be served from cache")
		return nil, nil
	})
	require.NoError(t, err)
	assert.True(t, cached)
}

func TestGetOrComputePropagatesError(t *testing.T) {
	c := New(newMemStore(), time.Minute, nil)
	boom := errors.New("boom")
	_, _, err := c.GetOrCompute(context.Background(), "k", func() (*executor.SearchResult, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestStoreFailuresOpenBreaker(t *testing.T) {
	store := newMemStore()
	store.getErr = errors.New("connection refused")
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	c := New(store, time.Minute, m)

	for range 6 {
		_, ok := c.Get(context.Background(), "k")
		assert.False(t, ok)
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("redis-cache")))
}

func TestInvalidate(t *testing.T) {
	store := newMemStore()
	c := New(store, time.Minute, nil)
	ctx := context.Background()
	c.Set(ctx, Key("a", executor.Options{}), sampleResult())
	c.Set(ctx, Key("b", executor.Options{}), sampleResult())
	store.data["other"] = "keep"

	require.NoError(t, c.Invalidate(ctx))
	assert.Len(t, store.data, 1)
	assert.Contains(t, store.data, "other")
}
