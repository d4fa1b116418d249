package search

import (
	"github.com/kailas-cloud/knowmaps/internal/domain/intent"
	"github.com/kailas-cloud/knowmaps/internal/domain/place"
)

// mergeInto records both provider responses in f.
//
// Ids are unique across Places and Recommendations; an id present in both
// stays with the recommendations. Ids that already have details are not
// re-added as bare candidates. Non-empty recommendations become the primary list.
func mergeInto(f *intent.Fulfillment, places, recommendations []place.Candidate) {
	seen := make(map[string]struct{}, len(places)+len(recommendations)+len(f.Details))
	for _, d := range f.Details {
		seen[d.ID] = struct{}{}
	}

	f.Recommendations = uniqueCandidates(recommendations, seen)
	f.Places = uniqueCandidates(places, seen)

	switch {
	case len(f.Recommendations) > 0:
		f.Source = intent.SourceRecommendations
	case len(f.Places) > 0:
		f.Source = intent.SourcePlaces
	default:
		f.Source = intent.SourceNone
	}
}

func uniqueCandidates(in []place.Candidate, seen map[string]struct{}) []place.Candidate {
	out := make([]place.Candidate, 0, len(in))
	for _, c := range in {
		if c.ID == "" {
			continue
		}
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out
}
