package search

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/knowmaps/internal/domain/geo"
	"github.com/kailas-cloud/knowmaps/internal/domain/intent"
	"github.com/kailas-cloud/knowmaps/internal/domain/item"
	"github.com/kailas-cloud/knowmaps/internal/domain/place"
	"github.com/kailas-cloud/knowmaps/internal/usecase/ranking"
)

// --- Mocks ---

type mockClassifier struct {
	result intent.Classification
	err    error
	calls  int
}

func (m *mockClassifier) Classify(_ context.Context, _ string) (intent.Classification, error) {
	m.calls++
	return m.result, m.err
}

type mockPlaces struct {
	mu    sync.Mutex
	fn    func(ctx context.Context, req place.SearchRequest) ([]place.Candidate, error)
	calls int
	last  place.SearchRequest
}

func (m *mockPlaces) Search(ctx context.Context, req place.SearchRequest) ([]place.Candidate, error) {
	m.mu.Lock()
	m.calls++
	m.last = req
	m.mu.Unlock()
	return m.fn(ctx, req)
}

func (m *mockPlaces) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockRecommendations struct {
	mu    sync.Mutex
	fn    func(ctx context.Context, req place.SearchRequest) ([]place.Candidate, error)
	calls int
}

func (m *mockRecommendations) FetchRecommended(ctx context.Context, req place.SearchRequest) ([]place.Candidate, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return m.fn(ctx, req)
}

func (m *mockRecommendations) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockDetails prefetches the first window candidates from a fixed table.
type mockDetails struct {
	window  int
	details map[string]place.Details
	fail    map[string]bool
	fetched []string
}

func (m *mockDetails) Fetch(_ context.Context, id string) (place.Details, error) {
	m.fetched = append(m.fetched, id)
	if m.fail[id] {
		return place.Details{}, fmt.Errorf("details %s: upstream error", id)
	}
	if d, ok := m.details[id]; ok {
		return d, nil
	}
	return place.Details{Candidate: place.Candidate{ID: id}, Description: "fetched " + id}, nil
}

func (m *mockDetails) Prefetch(ctx context.Context, cands []place.Candidate, skip func(string) bool) []place.Details {
	var out []place.Details
	for _, c := range cands[:min(m.window, len(cands))] {
		if skip(c.ID) {
			continue
		}
		d, err := m.Fetch(ctx, c.ID)
		if err != nil {
			continue
		}
		out = append(out, d)
	}
	return out
}

// scoreRanker scores items from a fixed table and sorts descending, stable.
type scoreRanker struct {
	scores map[string]float64
	calls  int
	items  []item.Metadata
}

func (r *scoreRanker) RankItems(_ context.Context, _ string, items []item.Metadata, _ item.Profile) []ranking.Scored {
	r.calls++
	r.items = items
	out := make([]ranking.Scored, len(items))
	for i, it := range items {
		out[i] = ranking.Scored{Item: it, Score: r.scores[it.ID]}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Score > out[j-1].Score; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

type mockProfiles struct {
	profile item.Profile
	err     error
}

func (m *mockProfiles) Profile(context.Context, string) (item.Profile, error) {
	return m.profile, m.err
}

type mockIndexer struct {
	mu    sync.Mutex
	calls int
	last  *intent.Intent
}

func (m *mockIndexer) UpdateIndex(_ context.Context, in *intent.Intent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.last = in
	return nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []string
	errs   []error
}

func (s *recordingSink) Track(event string, _ map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) TrackError(err error, _ map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
}

func (s *recordingSink) has(event string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.events {
		if e == event {
			return true
		}
	}
	return false
}

func (s *recordingSink) errCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.errs)
}

// --- Fixtures ---

func makeCandidates(prefix string, n int) []place.Candidate {
	out := make([]place.Candidate, n)
	for i := range out {
		out[i] = place.Candidate{
			ID:         fmt.Sprintf("%s%d", prefix, i),
			Name:       fmt.Sprintf("%s place %d", prefix, i),
			Categories: []string{"Coffee Shop"},
		}
	}
	return out
}

func returning(c []place.Candidate, err error) func(context.Context, place.SearchRequest) ([]place.Candidate, error) {
	return func(context.Context, place.SearchRequest) ([]place.Candidate, error) { return c, err }
}

type fixture struct {
	places  *mockPlaces
	recs    *mockRecommendations
	details *mockDetails
	ranker  *scoreRanker
	indexer *mockIndexer
	sink    *recordingSink
	deps    Deps
}

func newFixture(places, recs []place.Candidate) *fixture {
	f := &fixture{
		places:  &mockPlaces{fn: returning(places, nil)},
		recs:    &mockRecommendations{fn: returning(recs, nil)},
		details: &mockDetails{window: 8},
		ranker:  &scoreRanker{scores: map[string]float64{}},
		indexer: &mockIndexer{},
		sink:    &recordingSink{},
	}
	f.deps = Deps{
		Places:          f.places,
		Recommendations: f.recs,
		Details:         f.details,
		Ranker:          f.ranker,
		Profiles:        &mockProfiles{},
		Indexer:         f.indexer,
		Analytics:       f.sink,
	}
	return f
}

func (f *fixture) service() *Service {
	return New(f.deps, Config{ProviderTimeout: time.Second}, zap.NewNop())
}

func coffeeIntent() *intent.Intent {
	return intent.New(
		intent.Request{Caption: "coffee", Kind: intent.KindSearch},
		intent.Context{Destination: intent.Destination{
			Name:       intent.CurrentLocation,
			Coordinate: geo.Coordinate{Lat: 37.77, Lng: -122.42},
		}},
	)
}

func resultIDs(in *intent.Intent) []string {
	out := make([]string, len(in.Fulfillment.Results))
	for i, r := range in.Fulfillment.Results {
		out[i] = r.Candidate.ID
	}
	return out
}
