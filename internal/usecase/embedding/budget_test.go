package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/knowmaps/internal/domain"
)

func newTestTracker(limit int64, action BudgetAction, now *time.Time) *BudgetTracker {
	b := NewBudgetTracker("openai", limit, action, zap.NewNop())
	b.now = func() time.Time { return *now }
	b.lastReset = truncateToDay(now.UTC())
	return b
}

func TestBudgetTracker_Unlimited(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := newTestTracker(0, BudgetActionReject, &now)
	b.Record(1_000_000)

	if err := b.Check(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Remaining() != -1 {
		t.Errorf("Remaining = %d, want -1", b.Remaining())
	}
}

func TestBudgetTracker_Reject(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := newTestTracker(100, BudgetActionReject, &now)

	b.Record(60)
	if err := b.Check(context.Background()); err != nil {
		t.Fatalf("unexpected error under limit: %v", err)
	}
	b.Record(40)
	if err := b.Check(context.Background()); !errors.Is(err, domain.ErrEmbeddingQuotaExceeded) {
		t.Fatalf("expected quota error, got %v", err)
	}
	if b.Remaining() != 0 {
		t.Errorf("Remaining = %d, want 0", b.Remaining())
	}
}

func TestBudgetTracker_WarnAllows(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := newTestTracker(10, BudgetActionWarn, &now)
	b.Record(50)
	if err := b.Check(context.Background()); err != nil {
		t.Fatalf("warn mode should allow, got %v", err)
	}
}

func TestBudgetTracker_DailyReset(t *testing.T) {
	now := time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)
	b := newTestTracker(10, BudgetActionReject, &now)
	b.Record(10)
	if err := b.Check(context.Background()); err == nil {
		t.Fatal("expected exhausted budget")
	}

	now = now.Add(2 * time.Minute)
	if err := b.Check(context.Background()); err != nil {
		t.Fatalf("expected reset after midnight, got %v", err)
	}
	if b.Remaining() != 10 {
		t.Errorf("Remaining = %d, want 10", b.Remaining())
	}
}

func TestInstrumentedEmbedder_BudgetGate(t *testing.T) {
	inner := &mockEmbedder{}
	budget := &mockBudget{checkErr: domain.ErrEmbeddingQuotaExceeded}
	e := NewInstrumentedEmbedder(inner, "openai", "m", budget, zap.NewNop())

	_, err := e.Embed(context.Background(), "x")
	if !errors.Is(err, domain.ErrEmbeddingQuotaExceeded) {
		t.Fatalf("expected quota error, got %v", err)
	}
	if inner.calls.Load() != 0 {
		t.Error("inner must not be called when the budget rejects")
	}
}

func TestInstrumentedEmbedder_RecordsTokens(t *testing.T) {
	inner := &mockEmbedder{}
	budget := &mockBudget{}
	e := NewInstrumentedEmbedder(inner, "openai", "m", budget, zap.NewNop())

	if _, err := e.Embed(context.Background(), "x"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if budget.recorded != 3 {
		t.Errorf("recorded = %d, want 3", budget.recorded)
	}
}

func TestInstrumentedEmbedder_InnerError(t *testing.T) {
	boom := errors.New("timeout")
	inner := &mockEmbedder{embedFn: func(context.Context, string) (domain.EmbeddingResult, error) {
		return domain.EmbeddingResult{}, boom
	}}
	e := NewInstrumentedEmbedder(inner, "openai", "m", nil, zap.NewNop())

	if _, err := e.Embed(context.Background(), "x"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped inner error, got %v", err)
	}
}
