package embedding

import (
	"context"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/knowmaps/internal/domain"
	"github.com/kailas-cloud/knowmaps/internal/domain/item"
)

// ItemKeyPrefix namespaces item embeddings inside the cache.
const ItemKeyPrefix = "item::"

const partSeparator = " • "

// vectorCache is the consumer interface for the embedding cache (ISP).
type vectorCache interface {
	Get(key string) ([]float32, bool)
	Set(key string, v []float32)
}

// ItemBuilder turns ItemMetadata into vectors, memoized by item id.
type ItemBuilder struct {
	embedder   domain.Embedder
	cache      vectorCache
	dim        int
	group      singleflight.Group
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// NewItemBuilder creates an item embedding builder. dim sizes the zero vector
// returned when every embedding path fails.
func NewItemBuilder(
	embedder domain.Embedder,
	cache vectorCache,
	dim int,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *ItemBuilder {
	return &ItemBuilder{
		embedder:   embedder,
		cache:      cache,
		dim:        dim,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Embed returns the item's vector. Concurrent calls for the same id share one
// embedder call. Embedding failure yields the zero vector and is not cached.
func (b *ItemBuilder) Embed(ctx context.Context, m item.Metadata) []float32 {
	key := ItemKey(m.ID)
	if v, ok := b.cache.Get(key); ok {
		b.inc("hit")
		return v
	}
	b.inc("miss")

	v, _, _ := b.group.Do(key, func() (any, error) {
		// a concurrent caller may have filled the cache while we waited
		if v, ok := b.cache.Get(key); ok {
			return v, nil
		}
		res, err := b.embedder.Embed(ctx, ItemText(m))
		if err != nil {
			b.logger.Warn("Item embedding failed, using zero vector",
				zap.String("item_id", m.ID),
				zap.Error(err),
			)
			return make([]float32, b.dim), nil
		}
		if !res.Degraded {
			b.cache.Set(key, res.Embedding)
		}
		return res.Embedding, nil
	})
	return v.([]float32)
}

// ItemKey builds the cache key for an item id.
func ItemKey(id string) string {
	return ItemKeyPrefix + id
}

// ItemText flattens item metadata into the text blob that gets embedded.
func ItemText(m item.Metadata) string {
	parts := make([]string, 0, 6)
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	add(m.Title)
	add(m.Description)
	if len(m.StyleTags) > 0 {
		add("Styles: " + strings.Join(m.StyleTags, ", "))
	}
	if len(m.Categories) > 0 {
		add("Categories: " + strings.Join(m.Categories, ", "))
	}
	if m.Location != "" {
		add("Location: " + m.Location)
	}
	if m.Price != nil {
		add("Price: " + strconv.FormatFloat(*m.Price, 'f', -1, 64))
	}
	return strings.Join(parts, partSeparator)
}

func (b *ItemBuilder) inc(result string) {
	if b.cacheTotal != nil {
		b.cacheTotal.WithLabelValues("item", result).Inc()
	}
}
