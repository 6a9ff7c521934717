package index

import (
	"sort"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/concordance/internal/gcl"
)

// MemoryIndex accumulates postings for documents that have not been flushed
// to a segment. Documents must be added in address order.
type MemoryIndex struct {
	mu       sync.RWMutex
	postings map[string]*Postings
	docs     []Document
	size     int64
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		postings: make(map[string]*Postings),
	}
}

// AddDocument appends doc, the term at each of its positions, and its
// annotations. terms[i] sits at doc.Start+i.
func (m *MemoryIndex) AddDocument(doc Document, terms []string, annotations []Annotation) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, term := range terms {
		p := doc.Start + gcl.Position(i)
		m.posting(term).add(p, p, 0)
		m.size += 8
	}
	for _, a := range annotations {
		m.posting(a.Name).add(a.Start, a.End, a.Value)
		m.size += 24
	}
	m.docs = append(m.docs, doc)
	m.size += int64(len(doc.ID)+len(doc.Text)+len(doc.Offsets)*8) + 64
}

func (m *MemoryIndex) posting(term string) *Postings {
	p, exists := m.postings[term]
	if !exists {
		p = &Postings{Starts: make([]gcl.Position, 0, 4)}
		m.postings[term] = p
		m.size += int64(len(term)) + 48
	}
	return p
}

// Postings returns a stable view of term's postings, or nil.
func (m *MemoryIndex) Postings(term string) *Postings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, exists := m.postings[term]
	if !exists {
		return nil
	}
	return p.view()
}

func (m *MemoryIndex) Snapshot() []TermEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := make([]TermEntry, 0, len(m.postings))
	for term, p := range m.postings {
		entries = append(entries, TermEntry{Term: term, Postings: p.view()})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Term < entries[j].Term
	})
	return entries
}

func (m *MemoryIndex) Documents() []Document {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.docs[:len(m.docs):len(m.docs)]
}

func (m *MemoryIndex) Document(p gcl.Position) (*Document, bool) {
	return FindDocument(m.Documents(), p)
}

func (m *MemoryIndex) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

func (m *MemoryIndex) DocCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

func (m *MemoryIndex) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.postings = make(map[string]*Postings)
	m.docs = nil
	m.size = 0
}
