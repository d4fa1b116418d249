// Package catalog indexes produced search results for O(1) lookup.
package catalog

import (
	"context"
	"slices"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kailas-cloud/knowmaps/internal/domain/intent"
	"github.com/kailas-cloud/knowmaps/internal/domain/item"
	"github.com/kailas-cloud/knowmaps/internal/domain/place"
)

// DefaultIntentCapacity bounds how many recent intents are kept for later selection.
const DefaultIntentCapacity = 1024

// Catalog is the item universe: every candidate and detail any search has produced.
// It implements search.ResultIndexer and profile.ItemLookup.
type Catalog struct {
	mu      sync.RWMutex
	items   map[string]item.Metadata
	places  map[string]place.Candidate
	details map[string]place.Details

	intents *lru.Cache[string, *intent.Intent]
}

// New creates an empty catalog keeping up to intentCapacity recent intents.
func New(intentCapacity int) *Catalog {
	if intentCapacity <= 0 {
		intentCapacity = DefaultIntentCapacity
	}
	intents, _ := lru.New[string, *intent.Intent](intentCapacity) // size > 0 never errors
	return &Catalog{
		items:   make(map[string]item.Metadata),
		places:  make(map[string]place.Candidate),
		details: make(map[string]place.Details),
		intents: intents,
	}
}

// UpdateIndex records every candidate and detail of the intent's fulfillment
// and stores a snapshot of the intent under its id.
// Details always win over bare candidates for the same id.
func (c *Catalog) UpdateIndex(_ context.Context, in *intent.Intent) error {
	f := &in.Fulfillment

	c.mu.Lock()
	for _, p := range f.Places {
		c.putCandidateLocked(p, item.FromCandidate(p))
	}
	for _, p := range f.Related {
		c.putCandidateLocked(p, item.FromCandidate(p))
	}
	for _, r := range f.Recommendations {
		c.putCandidateLocked(r, item.FromRecommendation(r))
	}
	for _, d := range f.Details {
		c.putDetailsLocked(d)
	}
	if f.SelectedDetails != nil {
		c.putDetailsLocked(*f.SelectedDetails)
	}
	c.mu.Unlock()

	c.intents.Add(in.ID, Clone(in))
	return nil
}

func (c *Catalog) putCandidateLocked(p place.Candidate, m item.Metadata) {
	if _, ok := c.details[p.ID]; ok {
		return
	}
	c.places[p.ID] = p
	c.items[p.ID] = m
}

func (c *Catalog) putDetailsLocked(d place.Details) {
	c.details[d.ID] = d
	c.places[d.ID] = d.Candidate
	c.items[d.ID] = item.FromDetails(d)
}

// Resolve returns the ranking metadata for an item id.
func (c *Catalog) Resolve(_ context.Context, itemID string) (item.Metadata, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.items[itemID]
	return m, ok
}

// Place returns the indexed candidate for an id.
func (c *Catalog) Place(id string) (place.Candidate, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.places[id]
	return p, ok
}

// Details returns indexed details for an id.
func (c *Catalog) Details(id string) (place.Details, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.details[id]
	return d, ok
}

// Intent returns a private copy of a recently indexed intent.
func (c *Catalog) Intent(id string) (*intent.Intent, bool) {
	in, ok := c.intents.Get(id)
	if !ok {
		return nil, false
	}
	return Clone(in), true
}

// Len returns the number of indexed items.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Clone copies an intent deeply enough that the copy's fulfillment lists can be
// mutated without affecting the original.
func Clone(in *intent.Intent) *intent.Intent {
	out := *in
	f := &out.Fulfillment
	f.Places = slices.Clone(f.Places)
	f.Details = slices.Clone(f.Details)
	f.Recommendations = slices.Clone(f.Recommendations)
	f.Related = slices.Clone(f.Related)
	f.Results = slices.Clone(f.Results)
	if f.SelectedPlace != nil {
		p := *f.SelectedPlace
		f.SelectedPlace = &p
	}
	if f.SelectedDetails != nil {
		d := *f.SelectedDetails
		f.SelectedDetails = &d
	}
	return &out
}
