// Package analytics delivers fire-and-forget product events.
package analytics

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// ErrorEvent is the event name used by TrackError.
const ErrorEvent = "error"

// Event is one tracked occurrence.
type Event struct {
	Name       string
	Properties map[string]any
	Err        error
	At         time.Time
}

// Sink buffers events and writes them from a single worker.
// Track and TrackError never block: when the buffer is full the event is dropped.
type Sink struct {
	events chan Event
	logger *zap.Logger
	total  *prometheus.CounterVec

	mu     sync.RWMutex // guards closed against concurrent sends
	closed bool
	done   chan struct{}
}

// Option configures a Sink.
type Option func(*Sink)

// WithMetrics counts events by name and delivery ("sent"/"dropped").
func WithMetrics(total *prometheus.CounterVec) Option {
	return func(s *Sink) { s.total = total }
}

// NewSink starts a sink with the given buffer size.
func NewSink(buffer int, logger *zap.Logger, opts ...Option) *Sink {
	if buffer <= 0 {
		buffer = 256
	}
	s := &Sink{
		events: make(chan Event, buffer),
		logger: logger.With(zap.String("component", "analytics")),
		done:   make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	go s.run()
	return s
}

// Track records a named event.
func (s *Sink) Track(event string, props map[string]any) {
	s.enqueue(Event{Name: event, Properties: maps.Clone(props), At: time.Now()})
}

// TrackError records a recovered failure.
func (s *Sink) TrackError(err error, props map[string]any) {
	s.enqueue(Event{Name: ErrorEvent, Properties: maps.Clone(props), Err: err, At: time.Now()})
}

func (s *Sink) enqueue(e Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.count(e.Name, "dropped")
		return
	}
	select {
	case s.events <- e:
	default:
		s.count(e.Name, "dropped")
	}
}

func (s *Sink) run() {
	defer close(s.done)
	for e := range s.events {
		fields := make([]zap.Field, 0, len(e.Properties)+3)
		fields = append(fields, zap.String("event", e.Name), zap.Time("at", e.At))
		for k, v := range e.Properties {
			fields = append(fields, zap.Any(k, v))
		}
		if e.Err != nil {
			fields = append(fields, zap.Error(e.Err))
			s.logger.Warn("Analytics error", fields...)
		} else {
			s.logger.Info("Analytics event", fields...)
		}
		s.count(e.Name, "sent")
	}
}

func (s *Sink) count(event, delivery string) {
	if s.total != nil {
		s.total.WithLabelValues(event, delivery).Inc()
	}
}

// Close stops accepting events and waits for the buffer to drain or ctx to end.
func (s *Sink) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Nop discards every event.
type Nop struct{}

// Track does nothing.
func (Nop) Track(string, map[string]any) {}

// TrackError does nothing.
func (Nop) TrackError(error, map[string]any) {}
