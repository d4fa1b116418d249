// Package profile composes a user's preference vector from explicit ratings
// and the interaction log.
package profile

import (
	"context"

	"go.uber.org/zap"

	"github.com/kailas-cloud/knowmaps/internal/domain/item"
	"github.com/kailas-cloud/knowmaps/internal/domain/vector"
)

// Builder builds user vectors as a weighted average of signal vectors.
type Builder struct {
	text   TextEmbedder
	items  ItemEmbedder
	lookup ItemLookup
	dim    int
	logger *zap.Logger
}

// NewBuilder creates a user profile builder. dim is the embedding dimension.
func NewBuilder(text TextEmbedder, items ItemEmbedder, lookup ItemLookup, dim int, logger *zap.Logger) *Builder {
	return &Builder{text: text, items: items, lookup: lookup, dim: dim, logger: logger}
}

// CategoryText is the phrase embedded for a category preference.
func CategoryText(name string) string {
	return "Category preference: " + name
}

// EventText is the phrase embedded for an event preference.
func EventText(style, venue string) string {
	return "Event preference: " + style + " at " + venue
}

// BuildUserVector returns the L2-normalized weighted mean of every signal.
// Weights are max(rating, 0). With total weight 0 the raw accumulator is returned
// as is, and a zero mean stays zero.
func (b *Builder) BuildUserVector(ctx context.Context, userID string, p item.Profile) []float32 {
	acc := vector.NewAccumulator(b.dim)

	for _, c := range p.Categories {
		w := item.Weight(c.Rating)
		if w == 0 {
			continue
		}
		b.add(acc, b.embedText(ctx, CategoryText(c.Name)), w, "category")
	}

	for _, e := range p.Events {
		w := item.Weight(e.Rating)
		if w == 0 {
			continue
		}
		b.add(acc, b.embedText(ctx, EventText(e.Style, e.Venue)), w, "event")
	}

	for _, in := range p.Interactions {
		if in.UserID != userID {
			continue
		}
		w := item.Weight(in.Score)
		if w == 0 {
			continue
		}
		m, ok := b.lookup.Resolve(ctx, in.ItemID)
		if !ok {
			continue
		}
		b.add(acc, b.items.Embed(ctx, m), w, "interaction")
	}

	if acc.Weight() == 0 {
		return acc.Sum()
	}
	return vector.Normalize(acc.Mean())
}

func (b *Builder) embedText(ctx context.Context, text string) []float32 {
	res, err := b.text.Embed(ctx, text)
	if err != nil {
		b.logger.Warn("Preference embedding failed, contributing zero vector",
			zap.String("text", text), zap.Error(err))
		return make([]float32, b.dim)
	}
	return res.Embedding
}

func (b *Builder) add(acc *vector.Accumulator, v []float32, w float64, source string) {
	if !acc.Add(v, w) {
		b.logger.Warn("Dropping signal with unexpected dimension",
			zap.String("source", source),
			zap.Int("got", len(v)),
			zap.Int("want", b.dim),
		)
	}
}
