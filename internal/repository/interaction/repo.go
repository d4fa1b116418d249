// Package interaction stores user interaction logs and explicit preferences.
package interaction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/kailas-cloud/knowmaps/internal/db"
	"github.com/kailas-cloud/knowmaps/internal/domain"
	"github.com/kailas-cloud/knowmaps/internal/domain/item"
)

// store is the consumer interface for the repository.
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	RPush(ctx context.Context, key string, values ...[]byte) error
	LRange(ctx context.Context, key string, start, stop int64) ([][]byte, error)
}

var (
	// ErrUserRequired is returned when a call has no user id.
	ErrUserRequired = domain.ErrUserRequired
	// ErrItemRequired is returned when an interaction has no item id.
	ErrItemRequired = errors.New("item id is required")
)

// Preferences are a user's explicit category and event ratings.
type Preferences struct {
	Categories []item.CategoryPreference `json:"categories,omitempty"`
	Events     []item.EventPreference    `json:"events,omitempty"`
}

// Repo persists interactions as an append-only list and preferences as one document per user.
type Repo struct {
	store  store
	prefix string
	now    func() time.Time
}

// New creates a repository. Keys are namespaced with prefix.
func New(s store, prefix string) *Repo {
	return &Repo{store: s, prefix: prefix, now: time.Now}
}

func (r *Repo) interactionsKey(userID string) string {
	return r.prefix + "interactions:" + userID
}

func (r *Repo) preferencesKey(userID string) string {
	return r.prefix + "preferences:" + userID
}

// Append adds one interaction to the user's log. A zero timestamp is set to now.
func (r *Repo) Append(ctx context.Context, in item.Interaction) error {
	if strings.TrimSpace(in.UserID) == "" {
		return ErrUserRequired
	}
	if strings.TrimSpace(in.ItemID) == "" {
		return ErrItemRequired
	}
	if in.Timestamp.IsZero() {
		in.Timestamp = r.now().UTC()
	}

	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode interaction: %w", err)
	}
	if err := r.store.RPush(ctx, r.interactionsKey(in.UserID), data); err != nil {
		return fmt.Errorf("append interaction: %w", err)
	}
	return nil
}

// Interactions returns the user's full log in append order.
func (r *Repo) Interactions(ctx context.Context, userID string) ([]item.Interaction, error) {
	raw, err := r.store.LRange(ctx, r.interactionsKey(userID), 0, -1)
	if err != nil {
		return nil, fmt.Errorf("read interactions: %w", err)
	}
	out := make([]item.Interaction, 0, len(raw))
	for i, data := range raw {
		var in item.Interaction
		if err := json.Unmarshal(data, &in); err != nil {
			return nil, fmt.Errorf("decode interaction %d: %w", i, err)
		}
		out = append(out, in)
	}
	return out, nil
}

// SetPreferences replaces the user's explicit preferences.
func (r *Repo) SetPreferences(ctx context.Context, userID string, p Preferences) error {
	if strings.TrimSpace(userID) == "" {
		return ErrUserRequired
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	if err := r.store.Set(ctx, r.preferencesKey(userID), data); err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}

// Preferences returns the user's explicit preferences. Unknown users have none.
func (r *Repo) Preferences(ctx context.Context, userID string) (Preferences, error) {
	data, err := r.store.Get(ctx, r.preferencesKey(userID))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return Preferences{}, nil
		}
		return Preferences{}, fmt.Errorf("load preferences: %w", err)
	}
	var p Preferences
	if err := json.Unmarshal(data, &p); err != nil {
		return Preferences{}, fmt.Errorf("decode preferences: %w", err)
	}
	return p, nil
}

// Profile assembles every ranking signal for a user.
func (r *Repo) Profile(ctx context.Context, userID string) (item.Profile, error) {
	if strings.TrimSpace(userID) == "" {
		return item.Profile{}, nil
	}
	prefs, err := r.Preferences(ctx, userID)
	if err != nil {
		return item.Profile{}, err
	}
	interactions, err := r.Interactions(ctx, userID)
	if err != nil {
		return item.Profile{}, err
	}
	return item.Profile{
		Categories:   prefs.Categories,
		Events:       prefs.Events,
		Interactions: interactions,
	}, nil
}
