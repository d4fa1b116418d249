// Package item defines the single input shape the ranking pipeline scores,
// plus the user signals a profile is built from.
package item

import (
	"slices"
	"time"

	"github.com/kailas-cloud/knowmaps/internal/domain/place"
)

// Metadata is the canonical recommendation input.
// Empty Description/Location and nil Price mean "absent".
type Metadata struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	StyleTags   []string `json:"style_tags,omitempty"`
	Categories  []string `json:"categories,omitempty"`
	Location    string   `json:"location,omitempty"`
	Price       *float64 `json:"price,omitempty"`
}

// FromCandidate adapts a place-search candidate. The formatted address doubles as description.
func FromCandidate(c place.Candidate) Metadata {
	return Metadata{
		ID:          c.ID,
		Title:       c.Name,
		Description: c.Address.Formatted,
		Categories:  slices.Clone(c.Categories),
		Location:    c.Address.Formatted,
	}
}

// FromRecommendation adapts a personalized-recommendation candidate.
// Category labels serve as both style tags and categories.
func FromRecommendation(c place.Candidate) Metadata {
	return Metadata{
		ID:         c.ID,
		Title:      c.Name,
		StyleTags:  slices.Clone(c.Categories),
		Categories: slices.Clone(c.Categories),
		Location:   c.Address.Formatted,
	}
}

// FromDetails adapts an enriched place. Tastes become style tags.
func FromDetails(d place.Details) Metadata {
	m := Metadata{
		ID:          d.ID,
		Title:       d.Name,
		Description: d.Description,
		StyleTags:   slices.Clone(d.Tastes),
		Categories:  slices.Clone(d.Categories),
		Location:    d.Address.Formatted,
	}
	if m.Description == "" {
		m.Description = d.Address.Formatted
	}
	if d.Price > 0 {
		p := float64(d.Price)
		m.Price = &p
	}
	return m
}

// Interaction is one entry of a user's append-only interaction log.
type Interaction struct {
	UserID    string    `json:"user_id"`
	ItemID    string    `json:"item_id"`
	Timestamp time.Time `json:"timestamp"`
	Score     float64   `json:"score"`
	Context   string    `json:"context,omitempty"`
}

// CategoryPreference is an explicit rating of a category.
type CategoryPreference struct {
	Name   string  `json:"name"`
	Rating float64 `json:"rating"`
}

// EventPreference is an explicit rating of an event style at a venue.
type EventPreference struct {
	Style  string  `json:"style"`
	Venue  string  `json:"venue"`
	Rating float64 `json:"rating"`
}

// Profile bundles the signals a user vector is built from.
type Profile struct {
	Categories   []CategoryPreference `json:"categories,omitempty"`
	Events       []EventPreference    `json:"events,omitempty"`
	Interactions []Interaction        `json:"interactions,omitempty"`
}

// Weight clamps a rating or score into a non-negative signal strength.
func Weight(x float64) float64 {
	return max(x, 0)
}
