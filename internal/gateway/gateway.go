// Package gateway is the single entry point for external clients. It proxies
// ingestion, search and analytics requests to their backends and answers
// document status lookups from the registry directly.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/Adithya-Monish-Kumar-K/concordance/internal/ingestion/registry"
	apperrors "github.com/Adithya-Monish-Kumar-K/concordance/pkg/errors"
)

// Config holds the base URLs of the backends.
type Config struct {
	IngestionURL string
	SearcherURL  string
	AnalyticsURL string
}

// DocumentLookup resolves a document's registry entry.
type DocumentLookup interface {
	Get(ctx context.Context, id string) (*registry.Info, error)
}

type Gateway struct {
	ingestion *httputil.ReverseProxy
	searcher  *httputil.ReverseProxy
	analytics *httputil.ReverseProxy
	docs      DocumentLookup
	logger    *slog.Logger
}

// New builds a gateway over the configured backends. docs may be nil, in
// which case document lookups answer 503.
func New(cfg Config, docs DocumentLookup) (*Gateway, error) {
	g := &Gateway{
		docs:   docs,
		logger: slog.Default().With("component", "gateway"),
	}
	var err error
	if g.ingestion, err = g.newProxy("ingestion", cfg.IngestionURL); err != nil {
		return nil, err
	}
	if g.searcher, err = g.newProxy("searcher", cfg.SearcherURL); err != nil {
		return nil, err
	}
	if g.analytics, err = g.newProxy("analytics", cfg.AnalyticsURL); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Gateway) newProxy(name, target string) (*httputil.ReverseProxy, error) {
	u, err := url.Parse(target)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid %s url %q", name, target)
	}
	p := httputil.NewSingleHostReverseProxy(u)
	p.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		g.logger.Error("backend unavailable", "backend", name, "path", r.URL.Path, "error", err)
		g.writeError(w, http.StatusBadGateway, name+" unavailable")
	}
	return p, nil
}

// Register adds the public routes to mux.
func (g *Gateway) Register(mux *http.ServeMux) {
	mux.Handle("POST /api/v1/documents", g.ingestion)
	mux.HandleFunc("GET /api/v1/documents/{id}", g.GetDocument)
	mux.Handle("GET /api/v1/search", g.searcher)
	mux.Handle("GET /api/v1/cache/stats", g.searcher)
	mux.Handle("DELETE /api/v1/cache", g.searcher)
	mux.Handle("GET /api/v1/analytics", g.analytics)
}

// GetDocument reports a document's registry entry, including whether it has
// been indexed yet.
func (g *Gateway) GetDocument(w http.ResponseWriter, r *http.Request) {
	if g.docs == nil {
		g.writeError(w, http.StatusServiceUnavailable, "document registry unavailable")
		return
	}
	id := r.PathValue("id")
	info, err := g.docs.Get(r.Context(), id)
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		if status == http.StatusInternalServerError {
			g.logger.Error("document lookup failed", "id", id, "error", err)
			g.writeError(w, status, "document lookup failed")
			return
		}
		g.writeError(w, status, err.Error())
		return
	}
	g.writeJSON(w, http.StatusOK, info)
}

func (g *Gateway) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		g.logger.Error("failed to write response", "error", err)
	}
}

func (g *Gateway) writeError(w http.ResponseWriter, status int, message string) {
	g.writeJSON(w, status, map[string]string{"error": message})
}
