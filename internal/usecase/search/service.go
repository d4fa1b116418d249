// Package search orchestrates one intent from classification to ranked results.
package search

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/knowmaps/internal/domain"
	"github.com/kailas-cloud/knowmaps/internal/domain/intent"
	"github.com/kailas-cloud/knowmaps/internal/domain/item"
	"github.com/kailas-cloud/knowmaps/internal/domain/place"
	"github.com/kailas-cloud/knowmaps/internal/metrics"
)

// DuplicateSuppressedEvent is tracked when an identical search is already running.
const DuplicateSuppressedEvent = "model.duplicateSearchSuppressed"

// Config tunes the orchestrator.
type Config struct {
	DefaultRadius    int
	DefaultLimit     int
	ProviderTimeout  time.Duration
	ReselectDebounce time.Duration
}

// Deps are the orchestrator's collaborators. Classifier, Profiles, Indexer and
// Analytics are optional.
type Deps struct {
	Classifier      IntentClassifier
	Places          PlaceSearchProvider
	Recommendations RecommendationProvider
	Details         DetailFetcher
	Ranker          Ranker
	Profiles        ProfileSource
	Indexer         ResultIndexer
	Analytics       AnalyticsSink
}

// Service is the search orchestrator.
type Service struct {
	deps      Deps
	cfg       Config
	guard     *InFlightGuard
	debounce  *ReselectDebounce
	supersede *supersedeRegistry
	logger    *zap.Logger
}

// New creates a search orchestrator.
func New(deps Deps, cfg Config, logger *zap.Logger) *Service {
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = 15 * time.Second
	}
	if deps.Analytics == nil {
		deps.Analytics = nopSink{}
	}
	return &Service{
		deps:      deps,
		cfg:       cfg,
		guard:     NewInFlightGuard(),
		debounce:  NewReselectDebounce(cfg.ReselectDebounce),
		supersede: newSupersedeRegistry(),
		logger:    logger.With(zap.String("component", "search")),
	}
}

// Guard exposes the in-flight guard.
func (s *Service) Guard() *InFlightGuard { return s.guard }

// Search runs the pipeline for in on behalf of userID and leaves the ordered
// results in in.Fulfillment.Results.
//
// Only validation errors fail the intent. Provider, detail, classification and
// embedding failures degrade to empty or unranked results. An identical search
// already in flight yields domain.ErrSearchInFlight; a newer search from the same
// user with a different key cancels this one with domain.ErrSearchSuperseded.
func (s *Service) Search(ctx context.Context, userID string, in *intent.Intent) error {
	log := s.logger.With(zap.String("intent_id", in.ID), zap.String("user_id", userID))

	if err := in.Validate(); err != nil {
		in.Fail(err)
		metrics.SearchesTotal.WithLabelValues(string(in.Request.Kind), "failed").Inc()
		s.deps.Analytics.TrackError(err, map[string]any{"intent_id": in.ID, "stage": "validate"})
		return err
	}

	s.classify(ctx, in, log)
	if err := in.Advance(intent.StateClassified); err != nil {
		return err
	}
	kind := in.Request.Kind

	key := in.Key()
	if kind.Deduplicated() {
		if !s.guard.TryBegin(key) {
			log.Info("Duplicate search suppressed", zap.String("key", key))
			metrics.SearchesTotal.WithLabelValues(string(kind), "suppressed").Inc()
			s.deps.Analytics.Track(DuplicateSuppressedEvent, map[string]any{"intent_id": in.ID, "key": key})
			return domain.ErrSearchInFlight
		}
		defer s.guard.End(key)
	}

	if userID != "" {
		var done func()
		ctx, done = s.supersede.begin(ctx, userID, key)
		defer done()
	}

	err := s.run(ctx, userID, in, log)
	switch {
	case err == nil:
		metrics.SearchesTotal.WithLabelValues(string(kind), "completed").Inc()
		s.index(ctx, in, log)
		return nil
	case errors.Is(err, domain.ErrSearchSuperseded):
		log.Info("Search superseded", zap.Stringer("state", in.State))
		metrics.SearchesTotal.WithLabelValues(string(kind), "superseded").Inc()
		return err
	default:
		return err
	}
}

func (s *Service) run(ctx context.Context, userID string, in *intent.Intent, log *zap.Logger) error {
	var places, recommendations []place.Candidate

	stages := []struct {
		state intent.State
		fn    func()
	}{
		{intent.StateDispatched, func() { places, recommendations = s.dispatch(ctx, in, log) }},
		{intent.StateMerging, func() { mergeInto(&in.Fulfillment, places, recommendations) }},
		{intent.StateDetailPrefetch, func() { s.prefetch(ctx, in, log) }},
		{intent.StateRanking, func() { s.rank(ctx, userID, in, log) }},
	}
	for _, st := range stages {
		if err := interrupted(ctx); err != nil {
			return err
		}
		if err := in.Advance(st.state); err != nil {
			return err
		}
		s.stage(in, st.state, st.fn)
	}
	if err := interrupted(ctx); err != nil {
		return err
	}
	return in.Advance(intent.StateCompleted)
}

// interrupted maps a cancelled search context to its cause.
func interrupted(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}
	if cause := context.Cause(ctx); errors.Is(cause, domain.ErrSearchSuperseded) {
		return domain.ErrSearchSuperseded
	}
	return ctx.Err()
}

func (s *Service) stage(in *intent.Intent, state intent.State, fn func()) {
	name := state.String()
	props := map[string]any{"intent_id": in.ID}
	s.deps.Analytics.Track("search."+name+".begin", props)
	start := time.Now()
	fn()
	metrics.SearchStageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	s.deps.Analytics.Track("search."+name+".end", props)
}

func (s *Service) classify(ctx context.Context, in *intent.Intent, log *zap.Logger) {
	if in.Request.Kind != "" || s.deps.Classifier == nil {
		if in.Request.Kind == "" {
			in.Request.Kind = intent.KindSearch
		}
		return
	}

	c, err := s.deps.Classifier.Classify(ctx, in.Request.Caption)
	if err != nil || !c.Kind.Valid() {
		if err == nil {
			err = fmt.Errorf("classifier returned unknown kind %q", c.Kind)
		}
		log.Warn("Classification failed, falling back to search", zap.Error(err))
		s.deps.Analytics.TrackError(err, map[string]any{"intent_id": in.ID, "stage": "classify"})
		in.Request.Kind = intent.KindSearch
		return
	}
	in.Request.Kind = c.Kind
	if in.Request.Hints == nil {
		in.Request.Hints = c.Hints
	}
}

// dispatch queries both providers in parallel and joins on both.
// Each failure is logged and becomes an empty result.
func (s *Service) dispatch(ctx context.Context, in *intent.Intent, log *zap.Logger) ([]place.Candidate, []place.Candidate) {
	if !in.Request.Kind.Dispatches() {
		return nil, nil
	}
	req := BuildSearchRequest(in, s.cfg.DefaultRadius, s.cfg.DefaultLimit)

	var places, recommendations []place.Candidate
	g, gctx := errgroup.WithContext(ctx)
	if s.deps.Places != nil {
		g.Go(func() error {
			places = s.fetch(gctx, in, "places", log, func(ctx context.Context) ([]place.Candidate, error) {
				return s.deps.Places.Search(ctx, req)
			})
			return nil
		})
	}
	if s.deps.Recommendations != nil {
		g.Go(func() error {
			recommendations = s.fetch(gctx, in, "recommendations", log, func(ctx context.Context) ([]place.Candidate, error) {
				return s.deps.Recommendations.FetchRecommended(ctx, req)
			})
			return nil
		})
	}
	_ = g.Wait()
	return places, recommendations
}

func (s *Service) fetch(
	ctx context.Context, in *intent.Intent, provider string, log *zap.Logger,
	call func(context.Context) ([]place.Candidate, error),
) []place.Candidate {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
	defer cancel()

	out, err := call(ctx)
	if err != nil {
		log.Warn("Provider fetch failed, using empty result",
			zap.String("provider", provider),
			zap.Error(err),
		)
		s.deps.Analytics.TrackError(err, map[string]any{
			"intent_id": in.ID, "stage": "dispatch", "provider": provider,
		})
		return nil
	}
	return out
}

// prefetch enriches the leading primary candidates. Details are only appended.
func (s *Service) prefetch(ctx context.Context, in *intent.Intent, log *zap.Logger) {
	f := &in.Fulfillment
	primary := f.Primary()
	if s.deps.Details == nil || len(primary) == 0 {
		return
	}

	known := func(id string) bool {
		_, ok := f.DetailsFor(id)
		return ok
	}
	for _, d := range s.deps.Details.Prefetch(ctx, primary, known) {
		f.AppendDetails(d)
	}

	if in.Request.Kind == intent.KindPlaceLookup {
		s.selectFirst(ctx, in, log)
	}
}

// selectFirst makes the best match of a place lookup the selected place.
func (s *Service) selectFirst(ctx context.Context, in *intent.Intent, log *zap.Logger) {
	f := &in.Fulfillment
	primary := f.Primary()
	first := primary[0]
	f.SelectedPlace = &first
	f.Related = slices.Clone(primary[1:])

	if d, ok := f.DetailsFor(first.ID); ok {
		f.SelectedDetails = &d
		return
	}
	d, err := s.deps.Details.Fetch(ctx, first.ID)
	if err != nil {
		log.Warn("Selected place details failed", zap.String("place_id", first.ID), zap.Error(err))
		return
	}
	f.AppendDetails(d)
	f.SelectedDetails = &d
}

// rank orders the primary candidates by similarity to the user's profile.
// With nothing to rank, provider order is kept.
func (s *Service) rank(ctx context.Context, userID string, in *intent.Intent, log *zap.Logger) {
	f := &in.Fulfillment
	primary := f.Primary()

	results := make([]intent.Result, len(primary))
	items := make([]item.Metadata, len(primary))
	for i, c := range primary {
		results[i] = intent.Result{Candidate: c}
		if d, ok := f.DetailsFor(c.ID); ok {
			results[i].Details = &d
			items[i] = item.FromDetails(d)
		} else if f.Source == intent.SourceRecommendations {
			items[i] = item.FromRecommendation(c)
		} else {
			items[i] = item.FromCandidate(c)
		}
	}
	f.Results = results
	f.Ranked = false

	if len(items) == 0 || s.deps.Ranker == nil {
		return
	}

	var profile item.Profile
	if s.deps.Profiles != nil {
		p, err := s.deps.Profiles.Profile(ctx, userID)
		if err != nil {
			log.Warn("Profile load failed, ranking without signals", zap.Error(err))
			s.deps.Analytics.TrackError(err, map[string]any{"intent_id": in.ID, "stage": "ranking"})
		} else {
			profile = p
		}
	}

	byID := make(map[string]intent.Result, len(results))
	for _, r := range results {
		byID[r.Candidate.ID] = r
	}
	ranked := make([]intent.Result, 0, len(results))
	for _, sc := range s.deps.Ranker.RankItems(ctx, userID, items, profile) {
		r, ok := byID[sc.Item.ID]
		if !ok {
			continue
		}
		r.Score = sc.Score
		ranked = append(ranked, r)
	}
	if len(ranked) != len(results) {
		log.Warn("Ranker dropped candidates, keeping provider order",
			zap.Int("candidates", len(results)),
			zap.Int("ranked", len(ranked)),
		)
		return
	}
	f.Results = ranked
	f.Ranked = true
}

func (s *Service) index(ctx context.Context, in *intent.Intent, log *zap.Logger) {
	if s.deps.Indexer == nil {
		return
	}
	if err := s.deps.Indexer.UpdateIndex(ctx, in); err != nil {
		log.Warn("Result index update failed", zap.Error(err))
	}
}

// SelectPlace records a candidate as the selected place and returns its details,
// fetching them lazily when the prefetch window did not cover it.
// A repeat selection within the debounce window returns domain.ErrSelectionDebounced.
// A failed detail fetch degrades to the bare candidate.
func (s *Service) SelectPlace(ctx context.Context, in *intent.Intent, placeID string) (place.Details, error) {
	if !s.debounce.Allow(in.ID + "|" + placeID) {
		return place.Details{}, domain.ErrSelectionDebounced
	}

	f := &in.Fulfillment
	c, ok := f.Candidate(placeID)
	if !ok {
		return place.Details{}, fmt.Errorf("place %q in intent %s: %w", placeID, in.ID, domain.ErrNotFound)
	}

	d, ok := f.DetailsFor(placeID)
	if !ok {
		d = place.Details{Candidate: c}
		if s.deps.Details != nil {
			fetched, err := s.deps.Details.Fetch(ctx, placeID)
			if err != nil {
				s.logger.Warn("Lazy detail fetch failed",
					zap.String("intent_id", in.ID),
					zap.String("place_id", placeID),
					zap.Error(err),
				)
				s.deps.Analytics.TrackError(err, map[string]any{
					"intent_id": in.ID, "stage": "select", "place_id": placeID,
				})
			} else {
				d = fetched
				f.AppendDetails(d)
			}
		}
	}

	f.SelectedPlace = &c
	f.SelectedDetails = &d
	s.index(ctx, in, s.logger.With(zap.String("intent_id", in.ID)))
	return d, nil
}

type nopSink struct{}

func (nopSink) Track(string, map[string]any)     {}
func (nopSink) TrackError(error, map[string]any) {}
