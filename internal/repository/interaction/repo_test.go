package interaction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/knowmaps/internal/db"
	"github.com/kailas-cloud/knowmaps/internal/db/memory"
	"github.com/kailas-cloud/knowmaps/internal/domain/item"
)

// --- Mocks ---

type failingStore struct {
	*memory.Store
	err error
}

func (f *failingStore) Get(context.Context, string) ([]byte, error) { return nil, f.err }

func (f *failingStore) LRange(context.Context, string, int64, int64) ([][]byte, error) {
	return nil, f.err
}

func newTestRepo() *Repo {
	r := New(memory.NewStore(), "test:")
	r.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return r
}

func TestAppend_AndProfile(t *testing.T) {
	r := newTestRepo()
	ctx := context.Background()

	if err := r.Append(ctx, item.Interaction{UserID: "u1", ItemID: "p1", Score: 2}); err != nil {
		t.Fatal(err)
	}
	if err := r.Append(ctx, item.Interaction{UserID: "u1", ItemID: "p2", Score: -1, Context: "saved"}); err != nil {
		t.Fatal(err)
	}
	if err := r.Append(ctx, item.Interaction{UserID: "u2", ItemID: "p3", Score: 1}); err != nil {
		t.Fatal(err)
	}
	if err := r.SetPreferences(ctx, "u1", Preferences{
		Categories: []item.CategoryPreference{{Name: "Coffee", Rating: 3}},
		Events:     []item.EventPreference{{Style: "Jazz", Venue: "Blue Note", Rating: 2}},
	}); err != nil {
		t.Fatal(err)
	}

	p, err := r.Profile(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Interactions) != 2 {
		t.Fatalf("expected 2 interactions, got %d", len(p.Interactions))
	}
	if p.Interactions[0].ItemID != "p1" || p.Interactions[1].ItemID != "p2" {
		t.Errorf("append order lost: %+v", p.Interactions)
	}
	if !p.Interactions[0].Timestamp.Equal(r.now()) {
		t.Errorf("timestamp not defaulted: %v", p.Interactions[0].Timestamp)
	}
	if p.Interactions[1].Context != "saved" {
		t.Errorf("context = %q", p.Interactions[1].Context)
	}
	if len(p.Categories) != 1 || p.Categories[0].Name != "Coffee" {
		t.Errorf("categories = %+v", p.Categories)
	}
	if len(p.Events) != 1 || p.Events[0].Venue != "Blue Note" {
		t.Errorf("events = %+v", p.Events)
	}
}

func TestProfile_UnknownUser(t *testing.T) {
	r := newTestRepo()
	p, err := r.Profile(context.Background(), "nobody")
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Categories)+len(p.Events)+len(p.Interactions) != 0 {
		t.Errorf("expected empty profile, got %+v", p)
	}
}

func TestAppend_Validation(t *testing.T) {
	r := newTestRepo()
	ctx := context.Background()
	if err := r.Append(ctx, item.Interaction{ItemID: "p1"}); !errors.Is(err, ErrUserRequired) {
		t.Errorf("expected ErrUserRequired, got %v", err)
	}
	if err := r.Append(ctx, item.Interaction{UserID: "u1"}); err == nil {
		t.Error("expected error for missing item id")
	}
	if err := r.SetPreferences(ctx, " ", Preferences{}); !errors.Is(err, ErrUserRequired) {
		t.Errorf("expected ErrUserRequired, got %v", err)
	}
}

func TestProfile_StoreErrors(t *testing.T) {
	boom := &db.Error{Op: db.OpGet, Err: errors.New("connection refused")}
	r := New(&failingStore{Store: memory.NewStore(), err: boom}, "")

	_, err := r.Profile(context.Background(), "u1")
	if err == nil {
		t.Fatal("expected error")
	}
	var dbErr *db.Error
	if !errors.As(err, &dbErr) || dbErr.Op != db.OpGet {
		t.Errorf("expected wrapped db.Error, got %v", err)
	}
}

func TestInteractions_CorruptEntry(t *testing.T) {
	s := memory.NewStore()
	r := New(s, "")
	_ = s.RPush(context.Background(), "interactions:u1", []byte("{not json"))

	if _, err := r.Interactions(context.Background(), "u1"); err == nil {
		t.Fatal("expected decode error")
	}
}
