package search

import (
	"context"

	"github.com/kailas-cloud/knowmaps/internal/domain/intent"
	"github.com/kailas-cloud/knowmaps/internal/domain/item"
	"github.com/kailas-cloud/knowmaps/internal/domain/place"
	"github.com/kailas-cloud/knowmaps/internal/usecase/ranking"
)

// IntentClassifier turns a caption into a kind and optional hints.
type IntentClassifier interface {
	Classify(ctx context.Context, caption string) (intent.Classification, error)
}

// PlaceSearchProvider answers keyword and category queries.
type PlaceSearchProvider interface {
	Search(ctx context.Context, req place.SearchRequest) ([]place.Candidate, error)
}

// RecommendationProvider answers personalized queries.
type RecommendationProvider interface {
	FetchRecommended(ctx context.Context, req place.SearchRequest) ([]place.Candidate, error)
}

// DetailFetcher enriches candidates under bounded concurrency.
type DetailFetcher interface {
	Fetch(ctx context.Context, id string) (place.Details, error)
	Prefetch(ctx context.Context, candidates []place.Candidate, skip func(id string) bool) []place.Details
}

// Ranker orders items for a user.
type Ranker interface {
	RankItems(ctx context.Context, userID string, items []item.Metadata, p item.Profile) []ranking.Scored
}

// ProfileSource loads a user's ranking signals.
type ProfileSource interface {
	Profile(ctx context.Context, userID string) (item.Profile, error)
}

// ResultIndexer is notified after every fulfillment mutation.
type ResultIndexer interface {
	UpdateIndex(ctx context.Context, in *intent.Intent) error
}

// AnalyticsSink receives fire-and-forget events.
type AnalyticsSink interface {
	Track(event string, props map[string]any)
	TrackError(err error, props map[string]any)
}
