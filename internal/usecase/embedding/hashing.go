package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"strings"
	"unicode"

	"github.com/kailas-cloud/knowmaps/internal/domain"
	"github.com/kailas-cloud/knowmaps/internal/domain/vector"
)

// HashingEmbedder is a deterministic local embedder based on signed feature hashing
// of word unigrams and bigrams. Texts sharing words land close together, which is
// enough for ranking when no model is reachable.
type HashingEmbedder struct {
	dim int
}

// NewHashingEmbedder creates a hashing embedder producing vectors of the given dimension.
func NewHashingEmbedder(dim int) *HashingEmbedder {
	if dim <= 0 {
		dim = 384
	}
	return &HashingEmbedder{dim: dim}
}

// Dimensions returns the output vector length.
func (h *HashingEmbedder) Dimensions() int { return h.dim }

// Embed returns an L2-normalized vector. Text without word characters yields the zero vector.
func (h *HashingEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	v := make([]float32, h.dim)
	tokens := tokenize(text)
	for i, tok := range tokens {
		h.add(v, tok, 1)
		if i > 0 {
			h.add(v, tokens[i-1]+" "+tok, 0.5)
		}
	}
	return domain.EmbeddingResult{Embedding: vector.Normalize(v)}, nil
}

func (h *HashingEmbedder) add(v []float32, feature string, weight float32) {
	sum := sha256.Sum256([]byte(feature))
	idx := binary.LittleEndian.Uint64(sum[:8]) % uint64(h.dim)
	if sum[8]&1 == 1 {
		weight = -weight
	}
	v[idx] += weight
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
