package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/knowmaps/internal/domain"
)

// DegradingEmbedder serves from the primary embedder and falls back to a
// lower-fidelity one when the primary fails. Fallback results are marked Degraded.
type DegradingEmbedder struct {
	primary   domain.Embedder
	fallback  domain.Embedder
	fallbacks *prometheus.CounterVec
	logger    *zap.Logger
}

// NewDegradingEmbedder creates the fallback decorator.
// fallbacks is a counter vec with label "reason", passed explicitly (nil disables it).
func NewDegradingEmbedder(
	primary, fallback domain.Embedder,
	fallbacks *prometheus.CounterVec,
	logger *zap.Logger,
) *DegradingEmbedder {
	return &DegradingEmbedder{
		primary:   primary,
		fallback:  fallback,
		fallbacks: fallbacks,
		logger:    logger,
	}
}

// Embed tries the primary, then the fallback. The caller's cancellation is never masked.
func (d *DegradingEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := d.primary.Embed(ctx, text)
	if err == nil {
		return res, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", ctxErr)
	}

	reason := "provider"
	if errors.Is(err, domain.ErrEmbeddingQuotaExceeded) {
		reason = "quota"
	}
	d.logger.Warn("Primary embedder unavailable, using fallback",
		zap.String("reason", reason),
		zap.Error(err),
	)

	fb, fbErr := d.fallback.Embed(ctx, text)
	if fbErr != nil {
		d.inc("failed")
		return domain.EmbeddingResult{}, fmt.Errorf("%w: primary: %w; fallback: %w",
			domain.ErrEmbeddingProviderError, err, fbErr)
	}
	d.inc(reason)
	fb.Degraded = true
	return fb, nil
}

// HealthCheck reports the primary's health; the fallback is always local.
func (d *DegradingEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := d.primary.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent decorator
	}
	return nil
}

func (d *DegradingEmbedder) inc(reason string) {
	if d.fallbacks != nil {
		d.fallbacks.WithLabelValues(reason).Inc()
	}
}
