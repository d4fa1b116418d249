// Package memory is a process-local implementation of the db contracts.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/kailas-cloud/knowmaps/internal/db"
)

// Store keeps keys and lists in maps guarded by one mutex.
type Store struct {
	mu    sync.RWMutex
	kv    map[string][]byte
	lists map[string][][]byte
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		kv:    make(map[string][]byte),
		lists: make(map[string][][]byte),
	}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() {}

// WaitForReady returns immediately.
func (s *Store) WaitForReady(context.Context, time.Duration) error { return nil }

// Get returns a copy of the value under key.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.kv[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return slices.Clone(v), nil
}

// Set stores a copy of value.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kv[key] = slices.Clone(value)
	return nil
}

// Del removes key from both keyspaces.
func (s *Store) Del(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.kv, key)
	delete(s.lists, key)
	return nil
}

// RPush appends values to the list at key.
func (s *Store) RPush(_ context.Context, key string, values ...[]byte) error {
	if len(values) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range values {
		s.lists[key] = append(s.lists[key], slices.Clone(v))
	}
	return nil
}

// LRange returns list elements between start and stop inclusive.
// Negative indexes count from the end, as in Redis.
func (s *Store) LRange(_ context.Context, key string, start, stop int64) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.lists[key]
	n := int64(len(list))
	if start < 0 {
		start = max(n+start, 0)
	}
	if stop < 0 {
		stop = n + stop
	}
	stop = min(stop, n-1)
	if n == 0 || start > stop {
		return [][]byte{}, nil
	}

	out := make([][]byte, 0, stop-start+1)
	for _, v := range list[start : stop+1] {
		out = append(out, slices.Clone(v))
	}
	return out, nil
}

var _ db.Store = (*Store)(nil)
