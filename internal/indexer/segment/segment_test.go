package segment

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/concordance/internal/gcl"
	"github.com/Adithya-Monish-Kumar-K/concordance/internal/indexer/index"
)

func buildIndex() *index.MemoryIndex {
	m := index.NewMemoryIndex()
	m.AddDocument(index.Document{ID: "d1", Ordinal: 1, Start: 0, End: 2, Text: "hello big world", Offsets: []int{0, 6, 10}},
		[]string{"hello", "big", "world"},
		[]index.Annotation{{Name: "@doc", Start: 0, End: 2, Value: 1}})
	m.AddDocument(index.Document{ID: "d2", Ordinal: 2, Start: 3, End: 4, Text: "hello again", Offsets: []int{0, 6}},
		[]string{"hello", "again"},
		[]index.Annotation{{Name: "@doc", Start: 3, End: 4, Value: 2}})
	return m
}

func TestWriteAndRead(t *testing.T) {
	dir := t.TempDir()
	m := buildIndex()
	name, err := NewWriter(dir).Write(m.Snapshot(), m.Documents())
	require.NoError(t, err)
	assert.Equal(t, Extension, filepath.Ext(name))

	r, err := OpenReader(filepath.Join(dir, name))
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, name, r.Name())
	assert.Equal(t, 5, r.Terms())
	assert.Equal(t, uint32(2), r.DocCount())
	assert.Equal(t, gcl.Position(4), r.MaxPosition())

	hello, err := r.Postings("hello")
	require.NoError(t, err)
	assert.Equal(t, []gcl.Position{0, 3}, hello.Starts)
	assert.Nil(t, hello.Ends)

	docs, err := r.Postings("@doc")
	require.NoError(t, err)
	assert.Equal(t, []gcl.Position{2, 4}, docs.Ends)
	assert.Equal(t, []float64{1, 2}, docs.Values)

	missing, err := r.Postings("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
	assert.False(t, r.Has("nope"))
	assert.True(t, r.Has("again"))

	d, ok := r.Document(1)
	require.True(t, ok)
	assert.Equal(t, "big world", d.Translate(1, 2))
}

func TestWriteEmptySegmentFails(t *testing.T) {
	_, err := NewWriter(t.TempDir()).Write(nil, nil)
	assert.Error(t, err)
}

func TestFailedWriteRemovesTempFile(t *testing.T) {
	dir := t.TempDir()
	entries := []index.TermEntry{{
		Term:     "@score",
		Postings: &index.Postings{Starts: []gcl.Position{0}, Values: []float64{math.NaN()}},
	}}
	_, err := NewWriter(dir).Write(entries, nil)
	require.Error(t, err)

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestOpenRejectsCorruption(t *testing.T) {
	dir := t.TempDir()
	m := buildIndex()
	name, err := NewWriter(dir).Write(m.Snapshot(), m.Documents())
	require.NoError(t, err)
	path := filepath.Join(dir, name)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	r, err := OpenReader(path)
	require.NoError(t, err)
	dictOffset := r.header.DictOffset
	r.Close()

	corrupt := append([]byte(nil), data...)
	corrupt[dictOffset+2] ^= 0xFF
	require.NoError(t, os.WriteFile(path, corrupt, 0644))
	_, err = OpenReader(path)
	assert.ErrorContains(t, err, "checksum")

	corrupt = append([]byte(nil), data...)
	corrupt[0] = 0
	require.NoError(t, os.WriteFile(path, corrupt, 0644))
	_, err = OpenReader(path)
	assert.ErrorContains(t, err, "magic")
}
