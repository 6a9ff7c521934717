// Package tracing records in-process span trees through contexts. Ending a
// root span logs the whole tree as one debug record. A nil *Span is valid
// and records nothing, so unsampled requests pay only a context lookup.
package tracing

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
)

type spanKey struct{}

// Span is one timed step of a trace.
type Span struct {
	name    string
	traceID string
	parent  *Span
	start   time.Time

	mu       sync.Mutex
	duration time.Duration
	ended    bool
	attrs    map[string]any
	children []*Span
}

// Tracer decides which requests are traced.
type Tracer struct {
	enabled    bool
	sampleRate float64
}

func NewTracer(enabled bool, sampleRate float64) *Tracer {
	return &Tracer{enabled: enabled, sampleRate: sampleRate}
}

// Start begins a root span when the request is sampled. An empty traceID
// gets a fresh UUID.
func (t *Tracer) Start(ctx context.Context, name, traceID string) (context.Context, *Span) {
	if t == nil || !t.enabled || (t.sampleRate < 1 && rand.Float64() >= t.sampleRate) {
		return ctx, nil
	}
	if traceID == "" {
		traceID = uuid.NewString()
	}
	return StartSpan(ctx, name, traceID)
}

// StartSpan begins a root span unconditionally.
func StartSpan(ctx context.Context, name, traceID string) (context.Context, *Span) {
	s := newSpan(name, traceID, nil)
	return context.WithValue(ctx, spanKey{}, s), s
}

// StartChildSpan begins a child of the span in ctx. Without one it returns
// ctx unchanged and a nil span.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	parent := SpanFromContext(ctx)
	if parent == nil {
		return ctx, nil
	}
	child := newSpan(name, parent.traceID, parent)
	parent.mu.Lock()
	parent.children = append(parent.children, child)
	parent.mu.Unlock()
	return context.WithValue(ctx, spanKey{}, child), child
}

func newSpan(name, traceID string, parent *Span) *Span {
	return &Span{name: name, traceID: traceID, parent: parent, start: time.Now(), attrs: map[string]any{}}
}

func SpanFromContext(ctx context.Context) *Span {
	s, _ := ctx.Value(spanKey{}).(*Span)
	return s
}

// End fixes the span's duration; later calls are ignored. Ending a root
// span logs its tree.
func (s *Span) End() {
	if s == nil {
		return
	}
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	s.duration = time.Since(s.start)
	s.mu.Unlock()

	if s.parent == nil {
		slog.Debug("trace", "trace_id", s.traceID, "spans", s.Flatten())
	}
}

func (s *Span) SetAttr(key string, value any) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.attrs[key] = value
	s.mu.Unlock()
}

func (s *Span) TraceID() string {
	if s == nil {
		return ""
	}
	return s.traceID
}

// Record is one span of a flattened trace, in depth-first order.
type Record struct {
	Name       string         `json:"name"`
	Depth      int            `json:"depth"`
	DurationMs float64        `json:"duration_ms"`
	Ended      bool           `json:"ended"`
	Attrs      map[string]any `json:"attrs,omitempty"`
}

// Flatten lists s and its descendants depth first. Children are listed in
// the order they started.
func (s *Span) Flatten() []Record {
	if s == nil {
		return nil
	}
	var out []Record
	s.flatten(0, &out)
	return out
}

func (s *Span) flatten(depth int, out *[]Record) {
	s.mu.Lock()
	rec := Record{
		Name:       s.name,
		Depth:      depth,
		DurationMs: float64(s.duration.Microseconds()) / 1000,
		Ended:      s.ended,
	}
	if len(s.attrs) > 0 {
		rec.Attrs = make(map[string]any, len(s.attrs))
		for k, v := range s.attrs {
			rec.Attrs[k] = v
		}
	}
	children := append([]*Span(nil), s.children...)
	s.mu.Unlock()

	*out = append(*out, rec)
	for _, c := range children {
		c.flatten(depth+1, out)
	}
}
