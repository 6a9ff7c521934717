package indexer

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/concordance/internal/gcl"
	"github.com/Adithya-Monish-Kumar-K/concordance/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/concordance/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/concordance/pkg/errors"
)

const sonnet = "My verse, your virtues rare shall eternize,\nAnd"

func testConfig(dir string) config.IndexerConfig {
	return config.IndexerConfig{
		DataDir:           dir,
		SegmentMaxSize:    1 << 20,
		FlushInterval:     time.Hour,
		PostingsCacheSize: 16,
	}
}

func newTestEngine(t *testing.T, dir string) *Engine {
	t.Helper()
	e, err := NewEngine(testConfig(dir), tokenizer.New(tokenizer.Options{Stem: true}))
	require.NoError(t, err)
	return e
}

func resolve(t *testing.T, e *Engine, term string) *gcl.Cursor {
	t.Helper()
	c, err := e.Resolve(term)
	require.NoError(t, err)
	return c
}

func windowQuery(t *testing.T, e *Engine) *gcl.Cursor {
	return gcl.ContainedIn(
		gcl.NewFixedWidth(5),
		gcl.FollowedBy(resolve(t, e, "my"), resolve(t, e, "eternize")),
	)
}

func assertSonnetWindows(t *testing.T, e *Engine) {
	t.Helper()
	first := windowQuery(t, e).NextEnd(gcl.NegInf + 1)
	_, text, ok := e.Translate(first.Start, first.End)
	require.True(t, ok)
	assert.Equal(t, "My verse, your virtues rare ", text)

	last := windowQuery(t, e).PrevStart(gcl.PosInf - 1)
	_, text, ok = e.Translate(last.Start, last.End)
	require.True(t, ok)
	assert.Equal(t, "your virtues rare shall eternize,\n", text)
}

func TestEngineSonnetWindows(t *testing.T) {
	dir := t.TempDir()
	e := newTestEngine(t, dir)
	require.NoError(t, e.IndexDocument(Document{ID: "sonnet-81", Body: sonnet}))

	t.Run("memory", func(t *testing.T) { assertSonnetWindows(t, e) })

	require.NoError(t, e.Flush())
	assert.Equal(t, 1, e.SegmentCount())
	t.Run("segment", func(t *testing.T) { assertSonnetWindows(t, e) })

	require.NoError(t, e.Close())
	reopened := newTestEngine(t, dir)
	defer reopened.Close()
	t.Run("reopened", func(t *testing.T) { assertSonnetWindows(t, reopened) })
}

func TestEngineAssignsConsecutiveAddresses(t *testing.T) {
	e := newTestEngine(t, t.TempDir())
	defer e.Close()

	require.NoError(t, e.IndexDocument(Document{ID: "a", Title: "Hello", Body: "hello world"}))
	require.NoError(t, e.IndexDocument(Document{ID: "b", Body: "world"}))

	docs := gcl.Collect(resolve(t, e, "@doc"), 0)
	assert.Equal(t, []gcl.Match{
		{Start: 0, End: 2, Value: 1},
		{Start: 3, End: 3, Value: 2},
	}, docs)
	assert.Equal(t, []gcl.Match{{Start: 0, End: 0}}, gcl.Collect(resolve(t, e, "@title"), 0))
	assert.Equal(t, []gcl.Match{{Start: 1, End: 2}, {Start: 3, End: 3}}, gcl.Collect(resolve(t, e, "@body"), 0))
	assert.Equal(t, []gcl.Match{{Start: 0, End: 0}, {Start: 1, End: 1}}, gcl.Collect(resolve(t, e, "Hello"), 0))

	id, text, ok := e.Translate(3, 3)
	require.True(t, ok)
	assert.Equal(t, "b", id)
	assert.Equal(t, "world", text)
	assert.EqualValues(t, 2, e.DocCount())
	assert.Equal(t, gcl.Position(3), e.LastPosition())
}

func TestEngineAddressesSurviveRestart(t *testing.T) {
	dir := t.TempDir()
	e := newTestEngine(t, dir)
	require.NoError(t, e.IndexDocument(Document{ID: "a", Body: "one two three"}))
	require.NoError(t, e.Close())

	e = newTestEngine(t, dir)
	defer e.Close()
	require.NoError(t, e.IndexDocument(Document{ID: "b", Body: "four"}))

	assert.Equal(t, []gcl.Match{
		{Start: 0, End: 2, Value: 1},
		{Start: 3, End: 3, Value: 2},
	}, gcl.Collect(resolve(t, e, "@doc"), 0))
}

func TestEngineUnknownTermIsEmpty(t *testing.T) {
	e := newTestEngine(t, t.TempDir())
	defer e.Close()
	require.NoError(t, e.IndexDocument(Document{ID: "a", Body: "hello"}))

	assert.Empty(t, gcl.Collect(resolve(t, e, "absent"), 0))
	assert.Empty(t, gcl.Collect(resolve(t, e, "two words"), 0))
	assert.Empty(t, gcl.Collect(resolve(t, e, "@missing"), 0))
}

func TestEngineUserAnnotations(t *testing.T) {
	e := newTestEngine(t, t.TempDir())
	defer e.Close()

	err := e.IndexDocument(Document{
		ID:   "a",
		Body: "alpha beta gamma delta",
		Annotations: []Annotation{
			{Name: "speaker", Start: 2, End: 3, Value: 7},
			{Name: "@speaker", Start: 0, End: 1},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []gcl.Match{
		{Start: 0, End: 1},
		{Start: 2, End: 3, Value: 7},
	}, gcl.Collect(resolve(t, e, "@speaker"), 0))
}

func TestEngineRejectsBadAnnotations(t *testing.T) {
	tests := []struct {
		name string
		anns []Annotation
	}{
		{"nested", []Annotation{{Name: "x", Start: 0, End: 3}, {Name: "x", Start: 1, End: 2}}},
		{"same start", []Annotation{{Name: "x", Start: 0, End: 1}, {Name: "x", Start: 0, End: 2}}},
		{"out of range", []Annotation{{Name: "x", Start: 2, End: 9}}},
		{"reserved", []Annotation{{Name: "doc", Start: 0, End: 0}}},
		{"unnamed", []Annotation{{Name: "@", Start: 0, End: 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, t.TempDir())
			defer e.Close()
			err := e.IndexDocument(Document{ID: "a", Body: "alpha beta gamma delta", Annotations: tt.anns})
			require.ErrorIs(t, err, apperrors.ErrInvalidInput)
			assert.Zero(t, e.DocCount())
		})
	}
}

func TestEngineEmptyDocumentTakesNoPositions(t *testing.T) {
	e := newTestEngine(t, t.TempDir())
	defer e.Close()
	require.NoError(t, e.IndexDocument(Document{ID: "blank", Body: " ,;. "}))
	require.NoError(t, e.IndexDocument(Document{ID: "a", Body: "word"}))

	assert.Equal(t, []gcl.Match{{Start: 0, End: 0, Value: 1}}, gcl.Collect(resolve(t, e, "@doc"), 0))
}

func TestEngineReloadPicksUpForeignSegments(t *testing.T) {
	dir := t.TempDir()
	reader := newTestEngine(t, dir)
	defer reader.Close()

	writer := newTestEngine(t, dir)
	require.NoError(t, writer.IndexDocument(Document{ID: "a", Body: "hello world"}))
	require.NoError(t, writer.Flush())

	assert.Empty(t, gcl.Collect(resolve(t, reader, "world"), 0))
	added, err := reader.ReloadSegments()
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.Equal(t, []gcl.Match{{Start: 1, End: 1}}, gcl.Collect(resolve(t, reader, "world"), 0))

	added, err = reader.ReloadSegments()
	require.NoError(t, err)
	assert.Zero(t, added)
	require.NoError(t, writer.Close())
}

func TestEngineSharesSegmentPostings(t *testing.T) {
	e := newTestEngine(t, t.TempDir())
	defer e.Close()
	require.NoError(t, e.IndexDocument(Document{ID: "a", Body: "to be or not to be"}))
	require.NoError(t, e.Flush())

	var wg sync.WaitGroup
	results := make([][]gcl.Match, 16)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := e.Resolve("be")
			if err == nil {
				results[i] = gcl.Collect(c, 0)
			}
		}()
	}
	wg.Wait()
	for _, r := range results {
		assert.Equal(t, []gcl.Match{{Start: 1, End: 1}, {Start: 5, End: 5}}, r)
	}
	e.postingsMu.Lock()
	assert.Len(t, e.postings, 1)
	e.postingsMu.Unlock()
}

func TestEngineFlushKeepsConcurrentDocuments(t *testing.T) {
	e := newTestEngine(t, t.TempDir())
	defer e.Close()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, e.IndexDocument(Document{ID: "d", Body: "needle"}))
		}()
		if i%10 == 0 {
			assert.NoError(t, e.Flush())
		}
	}
	wg.Wait()
	require.NoError(t, e.Flush())
	assert.Len(t, gcl.Collect(resolve(t, e, "needle"), 0), 50)
}

func TestEngineFailedThresholdFlushKeepsDocumentOnce(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "shard")
	cfg := testConfig(dir)
	cfg.SegmentMaxSize = 1
	e, err := NewEngine(cfg, tokenizer.New(tokenizer.Options{}))
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(dir))
	require.NoError(t, os.WriteFile(dir, nil, 0o644))

	require.NoError(t, e.IndexDocument(Document{ID: "d1", Body: "hello world"}))
	assert.Equal(t, []gcl.Match{{Start: 0, End: 0}}, gcl.Collect(resolve(t, e, "hello"), 0))
	assert.Equal(t, 0, e.SegmentCount())

	require.NoError(t, os.Remove(dir))
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, e.Flush())
	assert.Equal(t, 1, e.SegmentCount())
	assert.Equal(t, []gcl.Match{{Start: 0, End: 0}}, gcl.Collect(resolve(t, e, "hello"), 0))
	assert.Equal(t, int64(1), e.DocCount())
	require.NoError(t, e.Close())
}
