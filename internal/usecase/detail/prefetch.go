package detail

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/knowmaps/internal/domain/place"
)

// DefaultWindow is the number of leading candidates prefetched by default.
const DefaultWindow = 8

// Prefetcher enriches the leading candidates of a result list.
type Prefetcher struct {
	provider  Provider
	scheduler *Scheduler
	window    int
	logger    *zap.Logger
}

// NewPrefetcher creates a prefetcher for the first window candidates.
func NewPrefetcher(provider Provider, scheduler *Scheduler, window int, logger *zap.Logger) *Prefetcher {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Prefetcher{
		provider:  provider,
		scheduler: scheduler,
		window:    window,
		logger:    logger.With(zap.String("component", "detail_prefetcher")),
	}
}

// Window returns the number of candidates prefetched per search.
func (p *Prefetcher) Window() int { return p.window }

// Fetch returns details for one candidate, waiting for a scheduler slot.
func (p *Prefetcher) Fetch(ctx context.Context, id string) (place.Details, error) {
	var d place.Details
	err := p.scheduler.Do(ctx, func(ctx context.Context) error {
		var err error
		d, err = p.provider.FetchDetails(ctx, id)
		return err
	})
	return d, err
}

// Prefetch fetches details for the first window candidates, skipping ids in skip.
// Failed fetches are logged and left out. The result preserves candidate order.
func (p *Prefetcher) Prefetch(ctx context.Context, candidates []place.Candidate, skip func(id string) bool) []place.Details {
	n := min(p.window, len(candidates))
	if n == 0 {
		return nil
	}

	slots := make([]*place.Details, n) // one slot per goroutine
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range candidates[:n] {
		if skip != nil && skip(c.ID) {
			continue
		}
		g.Go(func() error {
			d, err := p.Fetch(gctx, c.ID)
			if err != nil {
				p.logger.Warn("Detail prefetch failed",
					zap.String("place_id", c.ID),
					zap.Error(err),
				)
				return nil
			}
			if d.ID == "" {
				d.Candidate = c.Clone()
			}
			slots[i] = &d
			return nil
		})
	}
	_ = g.Wait()

	out := make([]place.Details, 0, n)
	for _, d := range slots {
		if d != nil {
			out = append(out, *d)
		}
	}
	return out
}
