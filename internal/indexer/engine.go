package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/concordance/internal/gcl"
	"github.com/Adithya-Monish-Kumar-K/concordance/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/concordance/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/concordance/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/concordance/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/concordance/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/concordance/pkg/metrics"
)

// Reserved annotation names every document receives.
const (
	AnnotationDoc   = "@doc"
	AnnotationTitle = "@title"
	AnnotationBody  = "@body"
)

// Document is the unit of indexing. Annotation ranges are token offsets
// within the document.
type Document struct {
	ID          string
	Title       string
	Body        string
	Annotations []Annotation
}

type Annotation struct {
	Name  string
	Start int
	End   int
	Value float64
}

// Engine owns one address space: documents receive consecutive position
// ranges, recent ones live in a memory index, and flushed ones in immutable
// segments.
type Engine struct {
	mu       sync.RWMutex
	memIndex *index.MemoryIndex
	frozen   *index.MemoryIndex
	next     gcl.Position
	ordinal  int64

	flushMu  sync.Mutex
	writer   *segment.Writer
	readers  []*segment.Reader
	readerMu sync.RWMutex

	postingsMu sync.Mutex
	postings   map[string]*gcl.SharedPostings

	tok     *tokenizer.Tokenizer
	cfg     config.IndexerConfig
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewEngine(cfg config.IndexerConfig, tok *tokenizer.Tokenizer) (*Engine, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating index data directory: %w", err)
	}
	e := &Engine{
		memIndex: index.NewMemoryIndex(),
		writer:   segment.NewWriter(cfg.DataDir),
		postings: make(map[string]*gcl.SharedPostings),
		tok:      tok,
		cfg:      cfg,
		logger:   slog.Default().With("component", "indexer", "data_dir", cfg.DataDir),
	}
	if err := e.loadExistingSegments(); err != nil {
		return nil, fmt.Errorf("loading existing segments: %w", err)
	}
	return e, nil
}

// SetMetrics attaches collectors. It must be called before the engine is
// shared between goroutines.
func (e *Engine) SetMetrics(m *metrics.Metrics) {
	e.metrics = m
}

// IndexDocument assigns doc the next address range and makes it searchable.
// A document without tokens is accepted and occupies no positions.
func (e *Engine) IndexDocument(doc Document) error {
	text := doc.Title
	if doc.Title != "" && doc.Body != "" {
		text += "\n"
	}
	text += doc.Body
	tokens := e.tok.Tokenize(text)
	if len(tokens) == 0 {
		e.logger.Debug("document has no tokens", "doc_id", doc.ID)
		return nil
	}
	user, err := userAnnotations(doc.Annotations, len(tokens))
	if err != nil {
		return fmt.Errorf("document %s: %w", doc.ID, err)
	}

	terms := make([]string, len(tokens))
	offsets := make([]int, len(tokens))
	titleTokens := 0
	for i, t := range tokens {
		terms[i] = t.Term
		offsets[i] = t.Offset
		if t.Offset < len(doc.Title) {
			titleTokens++
		}
	}

	e.mu.Lock()
	e.ordinal++
	base := e.next
	last := base + gcl.Position(len(tokens)) - 1
	e.next = last + 1
	rec := index.Document{
		ID:      doc.ID,
		Ordinal: e.ordinal,
		Start:   base,
		End:     last,
		Text:    text,
		Offsets: offsets,
	}
	anns := make([]index.Annotation, 0, len(user)+3)
	anns = append(anns, index.Annotation{Name: AnnotationDoc, Start: base, End: last, Value: float64(e.ordinal)})
	if titleTokens > 0 {
		anns = append(anns, index.Annotation{Name: AnnotationTitle, Start: base, End: base + gcl.Position(titleTokens) - 1})
	}
	if titleTokens < len(tokens) {
		anns = append(anns, index.Annotation{Name: AnnotationBody, Start: base + gcl.Position(titleTokens), End: last})
	}
	for _, a := range user {
		anns = append(anns, index.Annotation{
			Name:  a.Name,
			Start: base + gcl.Position(a.Start),
			End:   base + gcl.Position(a.End),
			Value: a.Value,
		})
	}
	mem := e.memIndex
	mem.AddDocument(rec, terms, anns)
	e.mu.Unlock()

	e.metrics.DocumentIndexed()
	e.logger.Debug("document indexed in memory",
		"doc_id", doc.ID,
		"start", base,
		"end", last,
		"mem_size", mem.Size(),
	)
	if mem.Size() >= e.cfg.SegmentMaxSize {
		e.logger.Info("memory index reached max size, flushing to disk",
			"size", mem.Size(),
			"threshold", e.cfg.SegmentMaxSize,
		)
		// the document stays searchable; the next flush retries the frozen index
		if err := e.Flush(); err != nil {
			e.logger.Error("threshold flush failed", "doc_id", doc.ID, "error", err)
		}
	}
	return nil
}

// userAnnotations validates annotations against a document of n tokens and
// orders them for appending. Within a name, intervals must not nest.
func userAnnotations(in []Annotation, n int) ([]Annotation, error) {
	out := make([]Annotation, 0, len(in))
	for _, a := range in {
		name := strings.TrimPrefix(a.Name, "@")
		if name == "" {
			return nil, fmt.Errorf("%w: annotation without a name", apperrors.ErrInvalidInput)
		}
		a.Name = "@" + name
		if a.Name == AnnotationDoc || a.Name == AnnotationTitle || a.Name == AnnotationBody {
			return nil, fmt.Errorf("%w: annotation name %s is reserved", apperrors.ErrInvalidInput, a.Name)
		}
		if a.Start < 0 || a.End < a.Start || a.End >= n {
			return nil, fmt.Errorf("%w: annotation %s [%d,%d] outside document of %d tokens",
				apperrors.ErrInvalidInput, a.Name, a.Start, a.End, n)
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Start < out[j].Start
	})
	for i := 1; i < len(out); i++ {
		prev, cur := out[i-1], out[i]
		if prev.Name == cur.Name && (cur.Start == prev.Start || cur.End <= prev.End) {
			return nil, fmt.Errorf("%w: annotations %s [%d,%d] and [%d,%d] nest",
				apperrors.ErrInvalidInput, cur.Name, prev.Start, prev.End, cur.Start, cur.End)
		}
	}
	return out, nil
}

// Flush writes the memory index to a new segment. Until the segment is
// registered the flushed documents stay visible through a frozen index; a
// failed write leaves them frozen and the next flush retries.
func (e *Engine) Flush() error {
	e.flushMu.Lock()
	defer e.flushMu.Unlock()

	e.mu.Lock()
	if e.frozen == nil {
		if e.memIndex.DocCount() == 0 {
			e.mu.Unlock()
			return nil
		}
		e.frozen = e.memIndex
		e.memIndex = index.NewMemoryIndex()
	}
	frozen := e.frozen
	e.mu.Unlock()

	err := e.writeSegment(frozen)
	e.metrics.FlushCompleted(err)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.frozen = nil
	e.mu.Unlock()
	return nil
}

func (e *Engine) writeSegment(frozen *index.MemoryIndex) error {
	segmentName, err := e.writer.Write(frozen.Snapshot(), frozen.Documents())
	if err != nil {
		return fmt.Errorf("writing segment: %w", err)
	}
	reader, err := segment.OpenReader(filepath.Join(e.cfg.DataDir, segmentName))
	if err != nil {
		return fmt.Errorf("opening new segment for reading: %w", err)
	}
	e.readerMu.Lock()
	e.readers = append(e.readers, reader)
	active := len(e.readers)
	e.readerMu.Unlock()
	e.logger.Info("segment flushed",
		"segment", segmentName,
		"terms", reader.Terms(),
		"docs", reader.DocCount(),
		"active_segments", active,
	)
	return nil
}

// Resolve returns the cursor over every occurrence of term. Annotation names
// (starting with @) are looked up verbatim; other terms are normalised with
// the engine's tokenizer. Unknown terms resolve to an empty cursor.
func (e *Engine) Resolve(term string) (*gcl.Cursor, error) {
	key := e.normalize(term)
	if key == "" {
		return gcl.NewEmpty(), nil
	}

	// memory first: a concurrent flush may then show the same postings twice,
	// which the merge suppresses, but never zero times.
	var mem []*index.Postings
	e.mu.RLock()
	for _, idx := range []*index.MemoryIndex{e.frozen, e.memIndex} {
		if idx == nil {
			continue
		}
		if p := idx.Postings(key); p != nil {
			mem = append(mem, p)
		}
	}
	e.mu.RUnlock()

	readers := e.segments()
	cursors := make([]*gcl.Cursor, 0, len(readers)+len(mem))
	for _, r := range readers {
		if !r.Has(key) {
			continue
		}
		c, err := e.segmentCursor(r, key)
		if err != nil {
			return nil, fmt.Errorf("resolving %q in segment %s: %w", term, r.Name(), err)
		}
		cursors = append(cursors, c)
	}
	for _, p := range mem {
		cursors = append(cursors, p.Cursor())
		e.metrics.PostingsLoaded("memory")
	}
	return gcl.NewMerge(cursors...), nil
}

func (e *Engine) normalize(term string) string {
	if strings.HasPrefix(term, "@") && len(term) > 1 {
		return term
	}
	return e.tok.Normalize(term)
}

// segmentCursor hands out cursors over one shared copy of a segment term's
// postings. The first caller loads them; concurrent callers get cursors that
// wait for that load on their first probe.
func (e *Engine) segmentCursor(r *segment.Reader, term string) (*gcl.Cursor, error) {
	key := r.Name() + "\x00" + term
	e.postingsMu.Lock()
	if sp, ok := e.postings[key]; ok {
		e.postingsMu.Unlock()
		e.metrics.PostingsLoaded("shared")
		return gcl.NewSharedArray(sp), nil
	}
	if e.cfg.PostingsCacheSize > 0 && len(e.postings) >= e.cfg.PostingsCacheSize {
		e.logger.Debug("postings cache full, resetting", "entries", len(e.postings))
		e.postings = make(map[string]*gcl.SharedPostings)
	}
	sp := gcl.NewSharedPostings()
	e.postings[key] = sp
	e.postingsMu.Unlock()

	p, err := r.Postings(term)
	if err != nil || p == nil {
		e.postingsMu.Lock()
		if e.postings[key] == sp {
			delete(e.postings, key)
		}
		e.postingsMu.Unlock()
		// release anyone already waiting; they see no matches
		sp.Publish(nil, nil, nil)
		if err != nil {
			e.logger.Error("loading postings failed", "segment", r.Name(), "term", term, "error", err)
			return nil, err
		}
		return gcl.NewEmpty(), nil
	}
	sp.Publish(p.Starts, p.Ends, p.Values)
	e.metrics.PostingsLoaded("segment")
	return gcl.NewSharedArray(sp), nil
}

func (e *Engine) segments() []*segment.Reader {
	e.readerMu.RLock()
	defer e.readerMu.RUnlock()
	readers := make([]*segment.Reader, len(e.readers))
	copy(readers, e.readers)
	return readers
}

// Document returns the document holding position p.
func (e *Engine) Document(p gcl.Position) (*index.Document, bool) {
	e.mu.RLock()
	for _, idx := range []*index.MemoryIndex{e.memIndex, e.frozen} {
		if idx == nil {
			continue
		}
		if d, ok := idx.Document(p); ok {
			e.mu.RUnlock()
			return d, true
		}
	}
	e.mu.RUnlock()
	for _, r := range e.segments() {
		if d, ok := r.Document(p); ok {
			return d, true
		}
	}
	return nil, false
}

// Translate returns the source text spanned by [p, q] and the ID of the
// document holding p. Intervals crossing a document boundary are cut at the
// end of the first document.
func (e *Engine) Translate(p, q gcl.Position) (docID, text string, ok bool) {
	d, ok := e.Document(p)
	if !ok {
		return "", "", false
	}
	return d.ID, d.Translate(p, q), true
}

// LastPosition is the highest assigned position, or -1 before the first
// document.
func (e *Engine) LastPosition() gcl.Position {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.next - 1
}

// DocCount is the number of documents with at least one token.
func (e *Engine) DocCount() int64 {
	e.mu.RLock()
	n := e.ordinal
	e.mu.RUnlock()
	return n
}

func (e *Engine) SegmentCount() int {
	e.readerMu.RLock()
	defer e.readerMu.RUnlock()
	return len(e.readers)
}

func (e *Engine) StartFlushLoop(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.FlushInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				e.logger.Info("flush loop stopping, performing final flush")
				if err := e.Flush(); err != nil {
					e.logger.Error("final flush failed", "error", err)
				}
				return
			case <-ticker.C:
				if err := e.Flush(); err != nil {
					e.logger.Error("periodic flush failed", "error", err)
				}
			}
		}
	}()
}

// StartReloadLoop periodically picks up segments written by another process
// sharing the data directory.
func (e *Engine) StartReloadLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := e.ReloadSegments(); err != nil {
					e.logger.Error("segment reload failed", "error", err)
				}
			}
		}
	}()
}

// ReloadSegments opens segment files that appeared since the last load and
// returns how many were added.
func (e *Engine) ReloadSegments() (int, error) {
	names, err := e.segmentFiles()
	if err != nil {
		return 0, err
	}
	loaded := make(map[string]struct{})
	for _, r := range e.segments() {
		loaded[r.Name()] = struct{}{}
	}
	var fresh []string
	for _, name := range names {
		if _, ok := loaded[name]; !ok {
			fresh = append(fresh, name)
		}
	}
	if len(fresh) == 0 {
		return 0, nil
	}
	readers := e.openSegments(fresh)
	e.adopt(readers)
	e.logger.Info("segments reloaded", "added", len(readers))
	return len(readers), nil
}

func (e *Engine) Close() error {
	if err := e.Flush(); err != nil {
		e.logger.Error("final flush on close failed", "error", err)
	}
	e.readerMu.Lock()
	defer e.readerMu.Unlock()
	for _, reader := range e.readers {
		if err := reader.Close(); err != nil {
			e.logger.Error("closing segment reader", "error", err)
		}
	}
	e.readers = nil
	return nil
}

func (e *Engine) segmentFiles() ([]string, error) {
	entries, err := os.ReadDir(e.cfg.DataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading data directory: %w", err)
	}
	names := make([]string, 0)
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), segment.Extension) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// openSegments opens names concurrently and returns the readers that opened,
// in name order. Unreadable segments are logged and skipped.
func (e *Engine) openSegments(names []string) []*segment.Reader {
	opened := make([]*segment.Reader, len(names))
	var g errgroup.Group
	g.SetLimit(4)
	for i, name := range names {
		g.Go(func() error {
			reader, err := segment.OpenReader(filepath.Join(e.cfg.DataDir, name))
			if err != nil {
				e.logger.Error("failed to open segment, skipping",
					"segment", name,
					"error", err,
				)
				return nil
			}
			opened[i] = reader
			return nil
		})
	}
	g.Wait()
	readers := make([]*segment.Reader, 0, len(opened))
	for _, r := range opened {
		if r != nil {
			readers = append(readers, r)
		}
	}
	return readers
}

// adopt registers readers and moves the address space past them.
func (e *Engine) adopt(readers []*segment.Reader) {
	e.mu.Lock()
	for _, r := range readers {
		if end := r.MaxPosition(); end != gcl.NegInf && end >= e.next {
			e.next = end + 1
		}
		e.ordinal += int64(r.DocCount())
	}
	e.mu.Unlock()
	e.readerMu.Lock()
	e.readers = append(e.readers, readers...)
	e.readerMu.Unlock()
}

func (e *Engine) loadExistingSegments() error {
	names, err := e.segmentFiles()
	if err != nil {
		return err
	}
	readers := e.openSegments(names)
	e.adopt(readers)
	for _, r := range readers {
		e.logger.Info("loaded existing segment",
			"segment", r.Name(),
			"terms", r.Terms(),
			"docs", r.DocCount(),
		)
	}
	e.logger.Info("segment recovery complete", "segments_loaded", len(readers))
	return nil
}
