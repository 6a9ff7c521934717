package gcl

import (
	"errors"
	"sync"
)

var ErrAlreadyPublished = errors.New("gcl: postings already published")

// SharedPostings is a one-shot buffer filled by a single producer and read
// by any number of cursors. Cursors created before Publish block on their
// first probe until the data is ready.
type SharedPostings struct {
	mu     sync.Mutex
	cond   *sync.Cond
	ready  bool
	starts []Position
	ends   []Position
	values []float64
}

func NewSharedPostings() *SharedPostings {
	sp := &SharedPostings{}
	sp.cond = sync.NewCond(&sp.mu)
	return sp
}

// Publish makes the postings visible to all waiting and future cursors. The
// slices follow the same rules as NewArray and must not be modified
// afterwards.
func (sp *SharedPostings) Publish(starts, ends []Position, values []float64) error {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	if sp.ready {
		return ErrAlreadyPublished
	}
	sp.starts, sp.ends, sp.values = starts, ends, values
	sp.ready = true
	sp.cond.Broadcast()
	return nil
}

func (sp *SharedPostings) Ready() bool {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return sp.ready
}

func (sp *SharedPostings) Len() int {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return len(sp.starts)
}

func (sp *SharedPostings) wait() ([]Position, []Position, []float64) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	for !sp.ready {
		sp.cond.Wait()
	}
	return sp.starts, sp.ends, sp.values
}

// sharedArray defers building its array until the first probe. After that
// it never touches the lock again.
type sharedArray struct {
	sp  *SharedPostings
	arr *array
}

// NewSharedArray returns an Array cursor over sp. Construction never blocks.
func NewSharedArray(sp *SharedPostings) *Cursor {
	return newCursor(&sharedArray{sp: sp})
}

func (s *sharedArray) await() *array {
	if s.arr == nil {
		s.arr = newArraySource(s.sp.wait())
	}
	return s.arr
}

func (s *sharedArray) nextStart(k Position) Match { return s.await().nextStart(k) }
func (s *sharedArray) nextEnd(k Position) Match   { return s.await().nextEnd(k) }
func (s *sharedArray) prevEnd(k Position) Match   { return s.await().prevEnd(k) }
func (s *sharedArray) prevStart(k Position) Match { return s.await().prevStart(k) }
