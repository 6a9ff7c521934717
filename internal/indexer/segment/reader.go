package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/concordance/internal/gcl"
	"github.com/Adithya-Monish-Kumar-K/concordance/internal/indexer/index"
)

// Reader serves one immutable segment. The dictionary and document table
// are held in memory; postings are read on demand.
type Reader struct {
	file     *os.File
	filePath string
	header   SegmentHeader
	dict     []DictEntry
	docs     []index.Document
}

func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening segment file: %w", err)
	}
	r, err := load(f, path)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func load(f *os.File, path string) (*Reader, error) {
	headerBytes := make([]byte, HeaderSize)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		return nil, fmt.Errorf("reading segment header: %w", err)
	}
	header := decodeHeader(headerBytes)
	if header.Magic != MagicBytes {
		return nil, fmt.Errorf("invalid segment file: bad magic bytes %x", header.Magic)
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported segment version %d", header.Version)
	}

	footer := make([]byte, FooterSize)
	if _, err := f.ReadAt(footer, header.DocsOffset+header.DocsSize); err != nil {
		return nil, fmt.Errorf("reading segment footer: %w", err)
	}

	dictBytes := make([]byte, header.DictSize)
	if _, err := f.ReadAt(dictBytes, header.DictOffset); err != nil {
		return nil, fmt.Errorf("reading dictionary: %w", err)
	}
	if crc32.ChecksumIEEE(dictBytes) != binary.LittleEndian.Uint32(footer[0:4]) {
		return nil, fmt.Errorf("dictionary checksum mismatch in %s", filepath.Base(path))
	}
	var dict []DictEntry
	if err := json.Unmarshal(dictBytes, &dict); err != nil {
		return nil, fmt.Errorf("parsing dictionary: %w", err)
	}

	docsBytes := make([]byte, header.DocsSize)
	if _, err := f.ReadAt(docsBytes, header.DocsOffset); err != nil {
		return nil, fmt.Errorf("reading documents: %w", err)
	}
	if crc32.ChecksumIEEE(docsBytes) != binary.LittleEndian.Uint32(footer[4:8]) {
		return nil, fmt.Errorf("document table checksum mismatch in %s", filepath.Base(path))
	}
	var docs []index.Document
	if err := json.Unmarshal(docsBytes, &docs); err != nil {
		return nil, fmt.Errorf("parsing documents: %w", err)
	}

	return &Reader{
		file:     f,
		filePath: path,
		header:   header,
		dict:     dict,
		docs:     docs,
	}, nil
}

func (r *Reader) lookup(term string) (DictEntry, bool) {
	idx := sort.Search(len(r.dict), func(i int) bool {
		return r.dict[i].Term >= term
	})
	if idx >= len(r.dict) || r.dict[idx].Term != term {
		return DictEntry{}, false
	}
	return r.dict[idx], true
}

func (r *Reader) Has(term string) bool {
	_, ok := r.lookup(term)
	return ok
}

// Postings reads term's postings from disk. It returns nil, nil when the term
// is not in the segment.
func (r *Reader) Postings(term string) (*index.Postings, error) {
	entry, ok := r.lookup(term)
	if !ok {
		return nil, nil
	}
	postingsBytes := make([]byte, entry.PostLen)
	if _, err := r.file.ReadAt(postingsBytes, r.header.PostOffset+entry.PostOffset); err != nil {
		return nil, fmt.Errorf("reading postings: %w", err)
	}
	var postings index.Postings
	if err := json.Unmarshal(postingsBytes, &postings); err != nil {
		return nil, fmt.Errorf("parsing postings: %w", err)
	}
	if len(postings.Starts) != entry.Count {
		return nil, fmt.Errorf("postings for %q hold %d entries, dictionary says %d", term, len(postings.Starts), entry.Count)
	}
	return &postings, nil
}

func (r *Reader) Documents() []index.Document {
	return r.docs
}

func (r *Reader) Document(p gcl.Position) (*index.Document, bool) {
	return index.FindDocument(r.docs, p)
}

// MaxPosition is the last address used by the segment, or NegInf when it
// holds no documents.
func (r *Reader) MaxPosition() gcl.Position {
	if len(r.docs) == 0 {
		return gcl.NegInf
	}
	return r.docs[len(r.docs)-1].End
}

func (r *Reader) Name() string {
	return filepath.Base(r.filePath)
}

func (r *Reader) Terms() int {
	return len(r.dict)
}

func (r *Reader) DocCount() uint32 {
	return r.header.DocCount
}

func (r *Reader) Close() error {
	return r.file.Close()
}
