package profile

import (
	"context"

	"github.com/kailas-cloud/knowmaps/internal/domain"
	"github.com/kailas-cloud/knowmaps/internal/domain/item"
)

// TextEmbedder embeds preference phrases.
type TextEmbedder = domain.Embedder

// ItemEmbedder embeds resolved interaction items.
type ItemEmbedder interface {
	Embed(ctx context.Context, m item.Metadata) []float32
}

// ItemLookup resolves an interaction's item id.
type ItemLookup interface {
	Resolve(ctx context.Context, itemID string) (item.Metadata, bool)
}
