package settings

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrClosed is returned by a store after Close.
var ErrClosed = errors.New("settings store closed")

// WatchFunc receives every committed change.
type WatchFunc func(key string, value []byte)

// Store is a key/value settings store with change notification.
type Store interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value and notifies watchers after the write commits.
	Set(ctx context.Context, key string, value []byte) error
	// Watch registers fn for change notifications; the returned func
	// unregisters it.
	Watch(fn WatchFunc) (cancel func())
	Close() error
}

// watchers is the notification registry shared by the store implementations.
type watchers struct {
	mu   sync.RWMutex
	next int
	fns  map[int]WatchFunc
}

func (w *watchers) add(fn WatchFunc) func() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.fns == nil {
		w.fns = make(map[int]WatchFunc)
	}
	id := w.next
	w.next++
	w.fns[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.fns, id)
			w.mu.Unlock()
		})
	}
}

// notify calls watchers in registration order, outside the lock.
func (w *watchers) notify(key string, value []byte) {
	w.mu.RLock()
	ids := make([]int, 0, len(w.fns))
	for id := range w.fns {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]WatchFunc, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, w.fns[id])
	}
	w.mu.RUnlock()

	for _, fn := range fns {
		fn(key, cloneBytes(value))
	}
}

func (w *watchers) clear() {
	w.mu.Lock()
	w.fns = nil
	w.mu.Unlock()
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// MemoryStore keeps settings in process memory.
type MemoryStore struct {
	watchers

	mu     sync.RWMutex
	values map[string][]byte
	closed bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string][]byte)}
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, false, ErrClosed
	}
	v, ok := s.values[key]
	return cloneBytes(v), ok, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.values[key] = cloneBytes(value)
	s.mu.Unlock()

	s.notify(key, value)
	return nil
}

func (s *MemoryStore) Watch(fn WatchFunc) func() {
	return s.add(fn)
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.clear()
	return nil
}
