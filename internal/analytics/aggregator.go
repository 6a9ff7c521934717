package analytics

import (
	"context"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/concordance/pkg/kafka"
)

const latencyWindow = 10000

type AggregatedStats struct {
	TotalSearches     int64             `json:"total_searches"`
	Outcomes          map[Outcome]int64 `json:"outcomes"`
	CacheHits         int64             `json:"cache_hits"`
	CacheMisses       int64             `json:"cache_misses"`
	ReverseSearches   int64             `json:"reverse_searches"`
	AvgLatencyMs      float64           `json:"avg_latency_ms"`
	P50LatencyMs      int64             `json:"p50_latency_ms"`
	P95LatencyMs      int64             `json:"p95_latency_ms"`
	P99LatencyMs      int64             `json:"p99_latency_ms"`
	TopQueries        []QueryCount      `json:"top_queries"`
	ZeroResultQueries []QueryCount      `json:"zero_result_queries"`
	QueriesPerMinute  float64           `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator keeps running totals over search events. Latency percentiles
// cover the most recent latencyWindow searches.
type Aggregator struct {
	mu                sync.Mutex
	totalSearches     int64
	outcomes          map[Outcome]int64
	cacheHits         int64
	cacheMisses       int64
	reverse           int64
	latencies         []int64
	next              int
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	startTime         time.Time
	topN              int
}

func NewAggregator(topN int) *Aggregator {
	if topN <= 0 {
		topN = 10
	}
	return &Aggregator{
		outcomes:          make(map[Outcome]int64),
		latencies:         make([]int64, 0, latencyWindow),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		startTime:         time.Now(),
		topN:              topN,
	}
}

func (a *Aggregator) Record(event SearchEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.totalSearches++
	a.outcomes[event.Outcome]++
	if event.Outcome == OutcomeInvalid {
		return
	}
	if event.CacheHit {
		a.cacheHits++
	} else {
		a.cacheMisses++
	}
	if event.Reverse {
		a.reverse++
	}
	if len(a.latencies) < latencyWindow {
		a.latencies = append(a.latencies, event.LatencyMs)
	} else {
		a.latencies[a.next] = event.LatencyMs
		a.next = (a.next + 1) % latencyWindow
	}
	a.queryCounts[event.Query]++
	if event.Outcome == OutcomeZeroResult {
		a.zeroResultQueries[event.Query]++
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := AggregatedStats{
		TotalSearches:   a.totalSearches,
		Outcomes:        make(map[Outcome]int64, len(a.outcomes)),
		CacheHits:       a.cacheHits,
		CacheMisses:     a.cacheMisses,
		ReverseSearches: a.reverse,
	}
	for k, v := range a.outcomes {
		stats.Outcomes[k] = v
	}
	if len(a.latencies) > 0 {
		sorted := slices.Clone(a.latencies)
		slices.Sort(sorted)
		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, a.topN)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, a.topN)
	if elapsed := time.Since(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN orders by count, then query, so ties are stable across calls.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}

// HandleEvent feeds search events read from Kafka into agg, so one
// aggregator can cover every searcher. Undecodable messages are skipped.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	logger := slog.Default().With("component", "analytics-aggregator")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[SearchEvent](value)
		if err != nil {
			logger.Warn("skipping undecodable analytics event", "key", string(key), "error", err)
			return nil
		}
		agg.Record(event)
		return nil
	}
}
