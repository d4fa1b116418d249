// Package detail bounds and memoizes place-detail enrichment.
package detail

import (
	"container/list"
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultConcurrency is the detail-fetch cap used when none is configured.
const DefaultConcurrency = 4

// Scheduler caps concurrent detail fetches. Waiters are served strictly in
// arrival order: Release hands the freed slot to the oldest waiter.
type Scheduler struct {
	mu      sync.Mutex
	limit   int
	active  int
	waiters list.List // of chan struct{}

	activeGauge  prometheus.Gauge
	waitingGauge prometheus.Gauge
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithGauges reports active and queued fetches.
func WithGauges(active, waiting prometheus.Gauge) SchedulerOption {
	return func(s *Scheduler) {
		s.activeGauge = active
		s.waitingGauge = waiting
	}
}

// NewScheduler creates a scheduler with at most limit outstanding fetches.
func NewScheduler(limit int, opts ...SchedulerOption) *Scheduler {
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	s := &Scheduler{limit: limit}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Limit returns the configured cap.
func (s *Scheduler) Limit() int { return s.limit }

// Acquire blocks until a slot is free or ctx is done.
// Every successful Acquire must be paired with exactly one Release.
func (s *Scheduler) Acquire(ctx context.Context) error {
	s.mu.Lock()
	if s.active < s.limit && s.waiters.Len() == 0 {
		s.active++
		s.reportLocked()
		s.mu.Unlock()
		return nil
	}
	ready := make(chan struct{})
	elem := s.waiters.PushBack(ready)
	s.reportLocked()
	s.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		select {
		case <-ready:
			// Slot was handed over while we were giving up; pass it on.
			s.mu.Unlock()
			s.Release()
		default:
			s.waiters.Remove(elem)
			s.reportLocked()
			s.mu.Unlock()
		}
		return ctx.Err()
	}
}

// Release frees a slot, transferring it to the oldest waiter if there is one.
func (s *Scheduler) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if front := s.waiters.Front(); front != nil {
		s.waiters.Remove(front)
		close(front.Value.(chan struct{}))
		s.reportLocked()
		return
	}
	if s.active == 0 {
		panic("detail: Release without Acquire")
	}
	s.active--
	s.reportLocked()
}

// Stats returns the active and waiting counts.
func (s *Scheduler) Stats() (active, waiting int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active, s.waiters.Len()
}

// Do runs fn while holding a slot.
func (s *Scheduler) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := s.Acquire(ctx); err != nil {
		return err
	}
	defer s.Release()
	return fn(ctx)
}

func (s *Scheduler) reportLocked() {
	if s.activeGauge != nil {
		s.activeGauge.Set(float64(s.active))
	}
	if s.waitingGauge != nil {
		s.waitingGauge.Set(float64(s.waiters.Len()))
	}
}
