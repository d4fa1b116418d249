package embcache

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Snapshotter durably stores the full key->vector map.
// Save must be atomic: either the whole map is stored or the previous state remains.
type Snapshotter interface {
	Load(ctx context.Context) (map[string][]float32, error)
	Save(ctx context.Context, entries map[string][]float32) error
}

// Cache is a thread-safe key->vector store with write-behind persistence.
// Set updates memory synchronously and schedules a full-state persist;
// bursts of Set calls coalesce into one snapshot of the latest state.
type Cache struct {
	mu      sync.RWMutex
	entries map[string][]float32
	dirty   uint64 // bumped on every Set
	saved   uint64 // dirty value covered by the last successful Save

	store        Snapshotter
	logger       *zap.Logger
	persistTotal *prometheus.CounterVec
	saveTimeout  time.Duration

	persistMu sync.Mutex // one Save at a time
	wake      chan struct{}
	stop      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// Option configures a Cache.
type Option func(*Cache)

// WithPersistMetrics records persist outcomes ("ok"/"error") on the given counter vec.
func WithPersistMetrics(total *prometheus.CounterVec) Option {
	return func(c *Cache) { c.persistTotal = total }
}

// WithSaveTimeout bounds a single background Save.
func WithSaveTimeout(d time.Duration) Option {
	return func(c *Cache) { c.saveTimeout = d }
}

// Open loads the prior durable state and starts the persister.
// A load failure is logged and the cache starts empty.
func Open(ctx context.Context, store Snapshotter, logger *zap.Logger, opts ...Option) *Cache {
	c := &Cache{
		entries:     make(map[string][]float32),
		store:       store,
		logger:      logger.With(zap.String("component", "embedding_cache")),
		saveTimeout: 10 * time.Second,
		wake:        make(chan struct{}, 1),
		stop:        make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}

	loaded, err := store.Load(ctx)
	switch {
	case err != nil:
		c.logger.Warn("Failed to load embedding cache, starting empty", zap.Error(err))
	case loaded != nil:
		c.entries = loaded
		c.logger.Info("Embedding cache loaded", zap.Int("entries", len(loaded)))
	}

	c.wg.Add(1)
	go c.persistLoop()
	return c
}

// Get returns the vector stored under key.
func (c *Cache) Get(key string) ([]float32, bool) {
	c.mu.RLock()
	v, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return slices.Clone(v), true
}

// Set stores v under key (last writer wins) and schedules persistence without blocking.
func (c *Cache) Set(key string, v []float32) {
	cp := slices.Clone(v)

	c.mu.Lock()
	c.entries[key] = cp
	c.dirty++
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default: // a persist is already pending and will pick this write up
	}
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Flush synchronously persists the current state if it has unsaved writes.
func (c *Cache) Flush(ctx context.Context) error {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	c.mu.RLock()
	if c.dirty == c.saved {
		c.mu.RUnlock()
		return nil
	}
	version := c.dirty
	snapshot := make(map[string][]float32, len(c.entries))
	for k, v := range c.entries {
		snapshot[k] = v // stored slices are never mutated in place
	}
	c.mu.RUnlock()

	if err := c.store.Save(ctx, snapshot); err != nil {
		c.incPersist("error")
		return err
	}
	c.incPersist("ok")

	c.mu.Lock()
	if version > c.saved {
		c.saved = version
	}
	c.mu.Unlock()
	return nil
}

// Close stops the persister and performs a final flush.
func (c *Cache) Close(ctx context.Context) error {
	c.stopOnce.Do(func() { close(c.stop) })
	c.wg.Wait()
	return c.Flush(ctx)
}

func (c *Cache) persistLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.stop:
			return
		case <-c.wake:
			ctx, cancel := context.WithTimeout(context.Background(), c.saveTimeout)
			if err := c.Flush(ctx); err != nil {
				c.logger.Warn("Failed to persist embedding cache", zap.Error(err))
			}
			cancel()
		}
	}
}

func (c *Cache) incPersist(result string) {
	if c.persistTotal != nil {
		c.persistTotal.WithLabelValues(result).Inc()
	}
}
