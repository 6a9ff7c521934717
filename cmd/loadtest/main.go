// Command loadtest drives the search API with a mix of GCL expressions and
// reports throughput, latency percentiles, cache hit rate and status codes.
//
// Usage:
//
//	go run ./cmd/loadtest [-url http://localhost:8080] [-concurrency 10] [-duration 30s] [-queries file]
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// defaultQueries exercises every operator family: bare terms, phrases,
// windows, containment and the annotation intervals.
var defaultQueries = []string{
	`love`,
	`"to be"`,
	`"the quick brown fox"`,
	`(+ love hate)`,
	`(^ love death)`,
	`(... my eternize)`,
	`(<< (# 5) (... my eternize))`,
	`(>> @doc (^ love death))`,
	`(<< love @title)`,
	`(!< love @title)`,
	`(!> @doc hate)`,
	`(@ (>> @doc "to be"))`,
}

type config struct {
	baseURL     string
	concurrency int
	duration    time.Duration
	limit       int
	reverseRate float64
	queries     []string
}

type stats struct {
	total     atomic.Int64
	success   atomic.Int64
	failed    atomic.Int64
	cacheHits atomic.Int64
	hits      atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
	codes     map[int]int64
}

func newStats() *stats {
	return &stats{
		latencies: make([]time.Duration, 0, 100000),
		codes:     make(map[int]int64),
	}
}

func (s *stats) record(d time.Duration, code int, cache string, err error) {
	s.total.Add(1)
	if err != nil {
		s.failed.Add(1)
		return
	}
	if code >= 200 && code < 300 {
		s.success.Add(1)
	} else {
		s.failed.Add(1)
	}
	if cache == "hit" {
		s.cacheHits.Add(1)
	}
	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.codes[code]++
	s.mu.Unlock()
}

func main() {
	cfg := config{}
	flag.StringVar(&cfg.baseURL, "url", "http://localhost:8080", "base URL of the search service")
	flag.IntVar(&cfg.concurrency, "concurrency", 10, "number of concurrent workers")
	flag.DurationVar(&cfg.duration, "duration", 30*time.Second, "test duration")
	flag.IntVar(&cfg.limit, "limit", 10, "limit parameter sent with every query")
	flag.Float64Var(&cfg.reverseRate, "reverse-rate", 0.25, "fraction of queries sent with reverse=true")
	queryFile := flag.String("queries", "", "file with one GCL expression per line")
	flag.Parse()

	cfg.queries = defaultQueries
	if *queryFile != "" {
		f, err := os.Open(*queryFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "loadtest: %v\n", err)
			os.Exit(1)
		}
		cfg.queries, err = readQueries(f)
		f.Close()
		if err != nil || len(cfg.queries) == 0 {
			fmt.Fprintf(os.Stderr, "loadtest: no queries in %s: %v\n", *queryFile, err)
			os.Exit(1)
		}
	}

	fmt.Println("=== Concordance Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.baseURL)
	fmt.Printf("Concurrency: %d\n", cfg.concurrency)
	fmt.Printf("Duration:    %s\n", cfg.duration)
	fmt.Printf("Queries:     %d unique\n\n", len(cfg.queries))

	s := run(cfg)
	if !report(os.Stdout, s, cfg.duration) {
		os.Exit(1)
	}
}

// readQueries returns the non-blank lines of r that do not start with '#'.
func readQueries(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}

// searchURL builds the i-th request. Every reverseEvery-th request walks
// backwards.
func searchURL(cfg config, i int) string {
	v := url.Values{}
	v.Set("q", cfg.queries[i%len(cfg.queries)])
	v.Set("limit", fmt.Sprint(cfg.limit))
	if cfg.reverseRate > 0 {
		every := max(1, int(math.Round(1/cfg.reverseRate)))
		if i%every == 0 {
			v.Set("reverse", "true")
		}
	}
	return cfg.baseURL + "/api/v1/search?" + v.Encode()
}

func run(cfg config) *stats {
	s := newStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.concurrency * 2,
			MaxIdleConnsPerHost: cfg.concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.duration)
	defer cancel()

	var wg sync.WaitGroup
	for w := range cfg.concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := w; ctx.Err() == nil; i += cfg.concurrency {
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL(cfg, i), nil)
				if err != nil {
					s.record(0, 0, "", err)
					continue
				}
				start := time.Now()
				resp, err := client.Do(req)
				if err != nil {
					if ctx.Err() == nil {
						s.record(time.Since(start), 0, "", err)
					}
					continue
				}
				_, _ = io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				s.record(time.Since(start), resp.StatusCode, resp.Header.Get("X-Cache"), nil)
			}
		}()
	}
	wg.Wait()
	return s
}

// report prints the summary and reports whether any request completed.
func report(out io.Writer, s *stats, duration time.Duration) bool {
	total := s.total.Load()
	fmt.Fprintln(out, "=== Results ===")
	fmt.Fprintf(out, "Total Requests:  %d\n", total)
	fmt.Fprintf(out, "Successful:      %d\n", s.success.Load())
	fmt.Fprintf(out, "Failed:          %d\n", s.failed.Load())
	if total > 0 {
		fmt.Fprintf(out, "Error Rate:      %.2f%%\n", float64(s.failed.Load())/float64(total)*100)
		fmt.Fprintf(out, "Cache Hit Rate:  %.2f%%\n", float64(s.cacheHits.Load())/float64(total)*100)
		fmt.Fprintf(out, "Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	}

	s.mu.Lock()
	latencies := slices.Clone(s.latencies)
	codes := make([]int, 0, len(s.codes))
	for code := range s.codes {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	counts := make([]int64, len(codes))
	for i, code := range codes {
		counts[i] = s.codes[code]
	}
	s.mu.Unlock()

	if len(latencies) > 0 {
		slices.Sort(latencies)
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		fmt.Fprintln(out, "\n=== Latency ===")
		fmt.Fprintf(out, "Min:    %s\n", latencies[0])
		fmt.Fprintf(out, "Avg:    %s\n", sum/time.Duration(len(latencies)))
		fmt.Fprintf(out, "P50:    %s\n", percentile(latencies, 50))
		fmt.Fprintf(out, "P95:    %s\n", percentile(latencies, 95))
		fmt.Fprintf(out, "P99:    %s\n", percentile(latencies, 99))
		fmt.Fprintf(out, "Max:    %s\n", latencies[len(latencies)-1])
	}

	fmt.Fprintln(out, "\n=== Status Codes ===")
	for i, code := range codes {
		fmt.Fprintf(out, "  %d: %d\n", code, counts[i])
	}
	if total == 0 {
		fmt.Fprintln(out, "\nWARNING: no requests completed. Is the search service running?")
		return false
	}
	return true
}

// percentile uses the nearest-rank method on sorted.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	return sorted[min(max(idx, 0), len(sorted)-1)]
}
