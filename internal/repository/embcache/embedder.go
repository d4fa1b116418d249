package embcache

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/knowmaps/internal/domain"
)

// TextKeyPrefix namespaces text embeddings inside the cache.
const TextKeyPrefix = "text::"

// store is the consumer interface for the embedding cache (ISP).
type store interface {
	Get(key string) ([]float32, bool)
	Set(key string, v []float32)
}

// CachedEmbedder memoizes text embeddings by lowercased text.
type CachedEmbedder struct {
	inner      domain.Embedder
	store      store
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// NewCachedEmbedder creates a caching decorator.
// cacheTotal is a counter vec with labels "kind" and "result" ("hit"/"miss"), passed explicitly.
func NewCachedEmbedder(
	inner domain.Embedder,
	s store,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedEmbedder {
	return &CachedEmbedder{
		inner:      inner,
		store:      s,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Embed returns a cached embedding or calls the inner embedder.
// Cache hit: TotalTokens = 0. Degraded results are returned but not cached,
// so the primary model gets another chance on the next call.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := TextKey(text)

	if vec, ok := c.store.Get(key); ok {
		c.incCache("hit")
		return domain.EmbeddingResult{Embedding: vec}, nil
	}

	c.incCache("miss")

	result, err := c.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}

	if result.Degraded {
		c.logger.Debug("Skipping cache for degraded embedding", zap.String("key", key))
		return result, nil
	}
	c.store.Set(key, result.Embedding)
	return result, nil
}

// TextKey builds the cache key for a piece of text.
func TextKey(text string) string {
	return TextKeyPrefix + strings.ToLower(text)
}

func (c *CachedEmbedder) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues("text", result).Inc()
	}
}
