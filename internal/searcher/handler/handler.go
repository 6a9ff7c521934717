// Package handler serves the search HTTP API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/Adithya-Monish-Kumar-K/concordance/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/concordance/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/concordance/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/concordance/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/concordance/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/concordance/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/concordance/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/concordance/pkg/tracing"
)

type SearchExecutor interface {
	Prepare(query string) (*parser.Expr, error)
	Execute(ctx context.Context, expr *parser.Expr, opts executor.Options) (*executor.SearchResult, error)
}

// Tracker receives one event per search request.
type Tracker interface {
	Track(event analytics.SearchEvent)
}

// Config carries the handler's optional collaborators; nil fields are
// skipped. MaxConcurrent of zero leaves searches unbounded.
type Config struct {
	DefaultLimit  int
	MaxResults    int
	MaxConcurrent int
	Cache         *cache.QueryCache
	Tracker       Tracker
	Tracer        *tracing.Tracer
	Metrics       *metrics.Metrics
}

type Handler struct {
	executor SearchExecutor
	cfg      Config
	inflight *semaphore.Weighted
	logger   *slog.Logger
}

func New(exec SearchExecutor, cfg Config) *Handler {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 10
	}
	if cfg.MaxResults < cfg.DefaultLimit {
		cfg.MaxResults = cfg.DefaultLimit
	}
	h := &Handler{
		executor: exec,
		cfg:      cfg,
		logger:   slog.Default().With("component", "search-handler"),
	}
	if cfg.MaxConcurrent > 0 {
		h.inflight = semaphore.NewWeighted(int64(cfg.MaxConcurrent))
	}
	return h
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("DELETE /api/v1/cache", h.CacheInvalidate)
}

type parseErrorResponse struct {
	Error  string `json:"error"`
	Offset int    `json:"offset"`
	Reason string `json:"reason"`
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	opts, err := h.options(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if h.inflight != nil {
		if !h.inflight.TryAcquire(1) {
			h.writeError(w, http.StatusServiceUnavailable, "too many concurrent searches")
			return
		}
		defer h.inflight.Release(1)
	}

	ctx, span := h.cfg.Tracer.Start(ctx, "search", logger.RequestID(ctx))
	defer span.End()
	span.SetAttr("query", query)

	event := analytics.SearchEvent{
		Query:     query,
		Reverse:   opts.Reverse,
		RequestID: logger.RequestID(ctx),
	}

	expr, err := h.executor.Prepare(query)
	if err != nil {
		h.observeInvalid()
		h.track(event, analytics.OutcomeInvalid, start)
		var pe *parser.ParseError
		if errors.As(err, &pe) {
			log.Info("query rejected", "query", query, "offset", pe.Offset, "reason", pe.Reason)
			h.writeJSON(w, http.StatusBadRequest, parseErrorResponse{
				Error:  "invalid query",
				Offset: pe.Offset,
				Reason: pe.Reason,
			})
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	event.Query = expr.String()

	var (
		result   *executor.SearchResult
		cacheHit bool
	)
	compute := func() (*executor.SearchResult, error) {
		return h.executor.Execute(ctx, expr, opts)
	}
	if h.cfg.Cache != nil {
		result, cacheHit, err = h.cfg.Cache.GetOrCompute(ctx, cache.Key(event.Query, opts), compute)
	} else {
		result, err = compute()
	}
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		if status == http.StatusBadRequest {
			h.observeInvalid()
			h.track(event, analytics.OutcomeInvalid, start)
			h.writeError(w, status, err.Error())
			return
		}
		log.Error("search execution failed", "query", event.Query, "error", err)
		h.observe(analytics.OutcomeError, "", start, 0)
		h.track(event, analytics.OutcomeError, start)
		h.writeError(w, status, "search failed")
		return
	}

	outcome := analytics.OutcomeHit
	if result.TotalHits == 0 {
		outcome = analytics.OutcomeZeroResult
	}
	cacheStatus := "disabled"
	if h.cfg.Cache != nil {
		cacheStatus = "miss"
		if cacheHit {
			cacheStatus = "hit"
		}
	}
	h.observe(outcome, cacheStatus, start, result.TotalHits)

	event.TotalHits = result.TotalHits
	event.Returned = len(result.Hits)
	event.ShardsFailed = result.ShardsFailed
	event.CacheHit = cacheHit
	h.track(event, outcome, start)

	span.SetAttr("total_hits", result.TotalHits)
	log.Info("search completed",
		"query", event.Query,
		"total_hits", result.TotalHits,
		"returned", len(result.Hits),
		"reverse", opts.Reverse,
		"cache", cacheStatus,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	w.Header().Set("X-Cache", cacheStatus)
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) options(r *http.Request) (executor.Options, error) {
	opts := executor.Options{Limit: h.cfg.DefaultLimit}
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return opts, fmt.Errorf("limit must be a positive integer")
		}
		opts.Limit = min(n, h.cfg.MaxResults)
	}
	if s := r.URL.Query().Get("reverse"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return opts, fmt.Errorf("reverse must be a boolean")
		}
		opts.Reverse = b
	}
	return opts, nil
}

func (h *Handler) observeInvalid() {
	if h.cfg.Metrics == nil {
		return
	}
	h.cfg.Metrics.QueryParseErrors.Inc()
	h.cfg.Metrics.SearchQueriesTotal.WithLabelValues(string(analytics.OutcomeInvalid)).Inc()
}

func (h *Handler) observe(outcome analytics.Outcome, cacheStatus string, start time.Time, hits int) {
	m := h.cfg.Metrics
	if m == nil {
		return
	}
	m.SearchQueriesTotal.WithLabelValues(string(outcome)).Inc()
	if outcome == analytics.OutcomeError {
		return
	}
	m.SearchLatency.WithLabelValues(cacheStatus).Observe(time.Since(start).Seconds())
	m.SearchHitsCount.Observe(float64(hits))
}

func (h *Handler) track(event analytics.SearchEvent, outcome analytics.Outcome, start time.Time) {
	if h.cfg.Tracker == nil {
		return
	}
	event.Outcome = outcome
	event.LatencyMs = time.Since(start).Milliseconds()
	event.Timestamp = time.Now().UTC()
	h.cfg.Tracker.Track(event)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cfg.Cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	if err := h.cfg.Cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
