package report

import (
	"fmt"
	"io"
	"sort"
	"sync"
)

// LRUStore is an in-memory LRU cache that delegates to a backing Store on
// miss. With a nil backing store it is a bounded in-memory store.
type LRUStore struct {
	mu   sync.Mutex
	cap  int
	back Store

	// Doubly-linked list for LRU ordering (most recent at head).
	head, tail *lruEntry
	items      map[string]*lruEntry
}

type lruEntry struct {
	key  string
	rec  *Record
	prev *lruEntry
	next *lruEntry
}

// NewLRUStore creates an LRU cache with the given capacity that delegates
// to back on cache misses. Capacity must be >= 1; back may be nil.
func NewLRUStore(cap int, back Store) *LRUStore {
	if cap < 1 {
		cap = 1
	}
	return &LRUStore{
		cap:   cap,
		back:  back,
		items: make(map[string]*lruEntry, cap),
	}
}

// Save caches the record and writes it through to the backing store.
func (s *LRUStore) Save(rec *Record) error {
	s.mu.Lock()
	s.put(rec.ID, rec)
	s.mu.Unlock()

	if s.back == nil {
		return nil
	}
	return s.back.Save(rec)
}

// Load checks the cache first. On miss, loads from the backing store and
// promotes the record into the cache.
func (s *LRUStore) Load(runID string) (*Record, error) {
	s.mu.Lock()
	if e, ok := s.items[runID]; ok {
		s.moveToFront(e)
		r := e.rec
		s.mu.Unlock()
		return r, nil
	}
	s.mu.Unlock()

	if s.back == nil {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	rec, err := s.back.Load(runID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.put(runID, rec)
	s.mu.Unlock()
	return rec, nil
}

// List delegates to the backing store, or lists the cached records by
// start time when there is none.
func (s *LRUStore) List(limit int) ([]*Record, error) {
	if s.back != nil {
		return s.back.List(limit)
	}

	s.mu.Lock()
	out := make([]*Record, 0, len(s.items))
	for e := s.head; e != nil; e = e.next {
		out = append(out, e.rec)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Started.After(out[j].Started) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close closes the backing store if it holds resources.
func (s *LRUStore) Close() error {
	if c, ok := s.back.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// put inserts or refreshes an entry. s.mu must be held.
func (s *LRUStore) put(key string, rec *Record) {
	if e, ok := s.items[key]; ok {
		e.rec = rec
		s.moveToFront(e)
		return
	}
	e := &lruEntry{key: key, rec: rec}
	s.items[key] = e
	s.pushFront(e)
	if len(s.items) > s.cap {
		s.evict()
	}
}

func (s *LRUStore) pushFront(e *lruEntry) {
	e.prev = nil
	e.next = s.head
	if s.head != nil {
		s.head.prev = e
	}
	s.head = e
	if s.tail == nil {
		s.tail = e
	}
}

func (s *LRUStore) moveToFront(e *lruEntry) {
	if s.head == e {
		return
	}
	s.unlink(e)
	s.pushFront(e)
}

func (s *LRUStore) unlink(e *lruEntry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		s.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		s.tail = e.prev
	}
	e.prev = nil
	e.next = nil
}

func (s *LRUStore) evict() {
	if s.tail == nil {
		return
	}
	e := s.tail
	s.unlink(e)
	delete(s.items, e.key)
}
