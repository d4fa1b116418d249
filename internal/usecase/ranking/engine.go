// Package ranking scores items against a user vector and orders them.
package ranking

import (
	"context"
	"slices"

	"github.com/kailas-cloud/knowmaps/internal/domain/item"
	"github.com/kailas-cloud/knowmaps/internal/domain/vector"
)

// Scorer compares a user vector with an item vector.
// Implementations must return a value in [-1, 1], be symmetric, and return
// exactly 0 for empty, mismatched or zero-norm input.
type Scorer interface {
	Score(user, item []float32) float64
}

// CosineScorer scores by cosine similarity.
type CosineScorer struct{}

// Score returns the cosine similarity of user and item.
func (CosineScorer) Score(user, item []float32) float64 {
	return vector.Cosine(user, item)
}

// ProfileBuilder builds the user vector.
type ProfileBuilder interface {
	BuildUserVector(ctx context.Context, userID string, p item.Profile) []float32
}

// ItemEmbedder embeds candidate items.
type ItemEmbedder interface {
	Embed(ctx context.Context, m item.Metadata) []float32
}

// Scored pairs an item with its score.
type Scored struct {
	Item  item.Metadata
	Score float64
}

// Engine ranks items for a user.
type Engine struct {
	profiles ProfileBuilder
	items    ItemEmbedder
	scorer   Scorer
}

// NewEngine creates a ranking engine. A nil scorer defaults to cosine similarity.
func NewEngine(profiles ProfileBuilder, items ItemEmbedder, scorer Scorer) *Engine {
	if scorer == nil {
		scorer = CosineScorer{}
	}
	return &Engine{profiles: profiles, items: items, scorer: scorer}
}

// Score delegates to the configured scorer.
func (e *Engine) Score(user, item []float32) float64 {
	return e.scorer.Score(user, item)
}

// RankItems builds the user vector once, scores every item, and returns
// them sorted by descending score. Ties keep their input order.
func (e *Engine) RankItems(ctx context.Context, userID string, items []item.Metadata, p item.Profile) []Scored {
	if len(items) == 0 {
		return nil
	}
	user := e.profiles.BuildUserVector(ctx, userID, p)

	out := make([]Scored, len(items))
	for i, m := range items {
		out[i] = Scored{Item: m, Score: e.scorer.Score(user, e.items.Embed(ctx, m))}
	}
	slices.SortStableFunc(out, func(a, b Scored) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})
	return out
}
