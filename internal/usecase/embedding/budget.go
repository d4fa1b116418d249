package embedding

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/knowmaps/internal/domain"
)

// BudgetAction defines behavior when token budget is exceeded.
type BudgetAction string

const (
	// BudgetActionWarn logs a warning but allows the request.
	BudgetActionWarn BudgetAction = "warn"
	// BudgetActionReject blocks the request.
	BudgetActionReject BudgetAction = "reject"
)

// BudgetTracker is an in-memory daily token budget.
// The counter resets at UTC midnight.
type BudgetTracker struct {
	mu         sync.Mutex
	used       int64
	limit      int64
	action     BudgetAction
	provider   string
	lastReset  time.Time
	now        func() time.Time
	logger     *zap.Logger
	warnedDate time.Time
}

// NewBudgetTracker creates a budget tracker. A zero limit means unlimited.
func NewBudgetTracker(provider string, dailyLimit int64, action BudgetAction, logger *zap.Logger) *BudgetTracker {
	if action == "" {
		action = BudgetActionWarn
	}
	b := &BudgetTracker{
		limit:    dailyLimit,
		action:   action,
		provider: provider,
		now:      time.Now,
		logger:   logger,
	}
	b.lastReset = truncateToDay(b.now().UTC())
	return b
}

// Check verifies the budget allows a new request.
func (b *BudgetTracker) Check(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.resetIfNeeded()
	if b.limit <= 0 || b.used < b.limit {
		return nil
	}
	if b.action == BudgetActionReject {
		return domain.ErrEmbeddingQuotaExceeded
	}

	// warn once per day, then let requests through
	if !b.warnedDate.Equal(b.lastReset) {
		b.warnedDate = b.lastReset
		b.logger.Warn("Token budget exceeded",
			zap.String("provider", b.provider),
			zap.Int64("daily_used", b.used),
			zap.Int64("daily_limit", b.limit),
		)
	}
	return nil
}

// Record registers consumed tokens after a request.
func (b *BudgetTracker) Record(tokens int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetIfNeeded()
	b.used += tokens
}

// Remaining returns tokens left today (-1 if unlimited).
func (b *BudgetTracker) Remaining() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.resetIfNeeded()
	if b.limit <= 0 {
		return -1
	}
	return max(b.limit-b.used, 0)
}

func (b *BudgetTracker) resetIfNeeded() {
	today := truncateToDay(b.now().UTC())
	if today.After(b.lastReset) {
		b.used = 0
		b.lastReset = today
	}
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
