package embedding

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/kailas-cloud/knowmaps/internal/domain"
)

// --- Mocks ---

type mockEmbedder struct {
	embedFn func(ctx context.Context, text string) (domain.EmbeddingResult, error)
	calls   atomic.Int32
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	m.calls.Add(1)
	if m.embedFn != nil {
		return m.embedFn(ctx, text)
	}
	return domain.EmbeddingResult{Embedding: []float32{1, 0, 0}, TotalTokens: 3}, nil
}

type mapCache struct {
	mu sync.Mutex
	m  map[string][]float32
}

func newMapCache() *mapCache { return &mapCache{m: map[string][]float32{}} }

func (c *mapCache) Get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[key]
	return v, ok
}

func (c *mapCache) Set(key string, v []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = v
}

type mockBudget struct {
	checkErr error
	recorded int64
}

func (b *mockBudget) Check(context.Context) error { return b.checkErr }
func (b *mockBudget) Record(tokens int64)         { b.recorded += tokens }
func (b *mockBudget) Remaining() int64            { return 100 - b.recorded }
