// Package foursquare implements the place, recommendation and detail providers
// over the Foursquare Places HTTP API.
package foursquare

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/knowmaps/internal/domain"
	"github.com/kailas-cloud/knowmaps/internal/metrics"
)

const (
	// DefaultBaseURL is the public API host.
	DefaultBaseURL = "https://api.foursquare.com"
	// APIVersion pins response shapes.
	APIVersion = "20241227"

	providerName = "foursquare"
	maxBodyBytes = 4 << 20
)

// Operations, also used as breaker names and metric labels.
const (
	opSearch    = "search"
	opRecommend = "recommend"
	opDetails   = "details"
)

// Config holds client settings.
type Config struct {
	BaseURL         string
	APIKey          string
	Timeout         time.Duration
	RequestsPerSec  float64
	Burst           int
	BreakerFailures uint32
	BreakerOpen     time.Duration
	RecommendLimit  int
}

// StatusError is a non-2xx API response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("foursquare: HTTP %d: %s", e.StatusCode, e.Body)
}

// Client is a rate-limited, circuit-broken Foursquare API client.
type Client struct {
	http     *http.Client
	limiter  *rate.Limiter
	breakers map[string]*gobreaker.CircuitBreaker[[]byte]
	baseURL  string
	apiKey   string
	cfg      Config
	logger   *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// NewClient creates a client. Zero config values fall back to defaults.
func NewClient(cfg Config, logger *zap.Logger, opts ...ClientOption) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerOpen <= 0 {
		cfg.BreakerOpen = 30 * time.Second
	}
	if cfg.RecommendLimit <= 0 {
		cfg.RecommendLimit = 50
	}

	c := &Client{
		http:     &http.Client{Timeout: cfg.Timeout},
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), cfg.Burst),
		breakers: make(map[string]*gobreaker.CircuitBreaker[[]byte]),
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "foursquare")),
	}
	for _, op := range []string{opSearch, opRecommend, opDetails} {
		c.breakers[op] = c.newBreaker(op)
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) newBreaker(op string) *gobreaker.CircuitBreaker[[]byte] {
	name := providerName + "." + op
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     c.cfg.BreakerOpen,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= c.cfg.BreakerFailures
		},
		IsSuccessful: breakerSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerGauge(to))
		},
	})
}

// breakerSuccess counts client errors (bad ids, bad params) as healthy upstream behavior.
func breakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode < 500 && se.StatusCode != http.StatusTooManyRequests
	}
	return errors.Is(err, context.Canceled)
}

// HealthCheck reports ErrProviderUnavailable while any endpoint breaker is open.
// It never calls the API.
func (c *Client) HealthCheck(_ context.Context) error {
	for op, cb := range c.breakers {
		if cb.State() == gobreaker.StateOpen {
			return fmt.Errorf("foursquare %s: %w", op, domain.ErrProviderUnavailable)
		}
	}
	return nil
}

func breakerGauge(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// get performs one paced, breaker-guarded GET and returns the body.
func (c *Client) get(ctx context.Context, op, path string, query url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("foursquare %s: wait for rate limiter: %w", op, err)
	}

	start := time.Now()
	body, err := c.breakers[op].Execute(func() ([]byte, error) {
		return c.do(ctx, path, query)
	})
	metrics.ProviderRequestDuration.WithLabelValues(providerName, op).Observe(time.Since(start).Seconds())
	metrics.ProviderRequestsTotal.WithLabelValues(providerName, op, statusLabel(err)).Inc()

	if err != nil {
		return nil, c.classify(op, err)
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if query == nil {
		query = url.Values{}
	}
	query.Set("v", APIVersion)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 256)}
	}
	return body, nil
}

// classify maps transport failures onto domain sentinels.
func (c *Client) classify(op string, err error) error {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return fmt.Errorf("foursquare %s: %w: %w", op, domain.ErrProviderUnavailable, err)
	}
	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode == http.StatusNotFound:
			return fmt.Errorf("foursquare %s: %w: %w", op, domain.ErrNotFound, err)
		case se.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("foursquare %s: %w: %w", op, domain.ErrRateLimited, err)
		case se.StatusCode >= 500:
			return fmt.Errorf("foursquare %s: %w: %w", op, domain.ErrProviderUnavailable, err)
		}
	}
	return fmt.Errorf("foursquare %s: %w", op, err)
}

func statusLabel(err error) string {
	if err == nil {
		return "success"
	}
	var se *StatusError
	switch {
	case errors.As(err, &se):
		return strconv.Itoa(se.StatusCode)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "circuit_open"
	default:
		return "error"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
