package search

import (
	"context"
	"sync"
	"time"

	"github.com/kailas-cloud/knowmaps/internal/domain"
)

// InFlightGuard tracks which dedup keys have a search running.
type InFlightGuard struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

// NewInFlightGuard creates an empty guard.
func NewInFlightGuard() *InFlightGuard {
	return &InFlightGuard{keys: make(map[string]struct{})}
}

// TryBegin marks key in progress. It returns false if key is already in progress.
func (g *InFlightGuard) TryBegin(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.keys[key]; busy {
		return false
	}
	g.keys[key] = struct{}{}
	return true
}

// End clears key.
func (g *InFlightGuard) End(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.keys, key)
}

// InFlight reports whether key is in progress.
func (g *InFlightGuard) InFlight(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.keys[key]
	return busy
}

// DefaultReselectWindow is the default ReselectDebounce window.
const DefaultReselectWindow = 200 * time.Millisecond

// ReselectDebounce suppresses a selection id that recurs within the window.
type ReselectDebounce struct {
	mu     sync.Mutex
	window time.Duration
	last   map[string]time.Time
	now    func() time.Time
}

// NewReselectDebounce creates a debounce with the given window.
func NewReselectDebounce(window time.Duration) *ReselectDebounce {
	if window <= 0 {
		window = DefaultReselectWindow
	}
	return &ReselectDebounce{
		window: window,
		last:   make(map[string]time.Time),
		now:    time.Now,
	}
}

// Allow reports whether id may be processed now and records the attempt.
// Suppressed attempts do not extend the window.
func (d *ReselectDebounce) Allow(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if at, ok := d.last[id]; ok && now.Sub(at) < d.window {
		return false
	}
	d.last[id] = now

	if len(d.last) > 1024 {
		for k, at := range d.last {
			if now.Sub(at) >= d.window {
				delete(d.last, k)
			}
		}
	}
	return true
}

// supersedeRegistry keeps the one active search per scope (a user) and
// cancels it when that scope starts a search with a different key.
type supersedeRegistry struct {
	mu     sync.Mutex
	active map[string]*activeSearch
}

type activeSearch struct {
	key    string
	cancel context.CancelCauseFunc
}

func newSupersedeRegistry() *supersedeRegistry {
	return &supersedeRegistry{active: make(map[string]*activeSearch)}
}

// begin registers a search and returns its context and a release func.
// A previous search in the same scope with a different key is cancelled
// with domain.ErrSearchSuperseded.
func (r *supersedeRegistry) begin(ctx context.Context, scope, key string) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(ctx)
	mine := &activeSearch{key: key, cancel: cancel}

	r.mu.Lock()
	if prev, ok := r.active[scope]; ok && prev.key != key {
		prev.cancel(domain.ErrSearchSuperseded)
	}
	r.active[scope] = mine
	r.mu.Unlock()

	return ctx, func() {
		r.mu.Lock()
		if r.active[scope] == mine {
			delete(r.active, scope)
		}
		r.mu.Unlock()
		cancel(context.Canceled)
	}
}
