package embcache

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/knowmaps/internal/db"
	"github.com/kailas-cloud/knowmaps/internal/domain"
)

// --- Mocks ---

type mockEmbedder struct {
	result domain.EmbeddingResult
	err    error
	calls  int
	texts  []string
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.calls++
	m.texts = append(m.texts, text)
	return m.result, m.err
}

// memSnapshotter records every saved snapshot.
type memSnapshotter struct {
	mu      sync.Mutex
	initial map[string][]float32
	loadErr error
	saveErr error
	saves   int
	last    map[string][]float32
	saved   chan struct{}
}

func newMemSnapshotter() *memSnapshotter {
	return &memSnapshotter{saved: make(chan struct{}, 64)}
}

func (m *memSnapshotter) Load(_ context.Context) (map[string][]float32, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.initial, nil
}

func (m *memSnapshotter) Save(_ context.Context, entries map[string][]float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.last = make(map[string][]float32, len(entries))
	for k, v := range entries {
		m.last[k] = v
	}
	select {
	case m.saved <- struct{}{}:
	default:
	}
	return nil
}

func (m *memSnapshotter) lastSaved() map[string][]float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// mockKVStore implements the consumer interface for tests.
type mockKVStore struct {
	getFn func(ctx context.Context, key string) ([]byte, error)
	setFn func(ctx context.Context, key string, value []byte) error
}

func (m *mockKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockKVStore) Set(ctx context.Context, key string, value []byte) error {
	if m.setFn != nil {
		return m.setFn(ctx, key, value)
	}
	return nil
}

func openTestCache(t *testing.T, s Snapshotter) *Cache {
	t.Helper()
	c := Open(context.Background(), s, zap.NewNop())
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c
}
