package detail

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/knowmaps/internal/domain/place"
)

// Provider fetches enrichment details for one candidate.
type Provider interface {
	FetchDetails(ctx context.Context, id string) (place.Details, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, id string) (place.Details, error)

// FetchDetails calls f.
func (f ProviderFunc) FetchDetails(ctx context.Context, id string) (place.Details, error) {
	return f(ctx, id)
}

// CachedProvider memoizes successful detail fetches in a bounded LRU.
// Errors are never cached.
type CachedProvider struct {
	inner Provider
	cache *lru.Cache[string, place.Details]
	total *prometheus.CounterVec
}

// NewCachedProvider wraps inner with an LRU of the given size.
// total, if non-nil, counts "hit"/"miss" by the result label.
func NewCachedProvider(inner Provider, size int, total *prometheus.CounterVec) (*CachedProvider, error) {
	cache, err := lru.New[string, place.Details](size)
	if err != nil {
		return nil, err
	}
	return &CachedProvider{inner: inner, cache: cache, total: total}, nil
}

// FetchDetails returns cached details or fetches and caches them.
func (c *CachedProvider) FetchDetails(ctx context.Context, id string) (place.Details, error) {
	if d, ok := c.cache.Get(id); ok {
		c.count("hit")
		return d, nil
	}
	c.count("miss")

	d, err := c.inner.FetchDetails(ctx, id)
	if err != nil {
		return place.Details{}, err
	}
	c.cache.Add(id, d)
	return d, nil
}

// Len returns the number of cached entries.
func (c *CachedProvider) Len() int { return c.cache.Len() }

func (c *CachedProvider) count(result string) {
	if c.total != nil {
		c.total.WithLabelValues(result).Inc()
	}
}
