// Package place holds provider-neutral place records and the typed provider query.
package place

import (
	"slices"

	"github.com/kailas-cloud/knowmaps/internal/domain/geo"
)

// Address holds the postal fields a provider returns for a place.
type Address struct {
	Formatted string `json:"formatted,omitempty"`
	Street    string `json:"street,omitempty"`
	Locality  string `json:"locality,omitempty"`
	Region    string `json:"region,omitempty"`
	Postcode  string `json:"postcode,omitempty"`
	Country   string `json:"country,omitempty"`
}

// Candidate is an unranked place returned by a provider.
// Treat values as immutable: enrichment produces a Details copy instead.
type Candidate struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Categories []string       `json:"categories,omitempty"`
	Coordinate geo.Coordinate `json:"coordinate"`
	Address    Address        `json:"address"`
	Distance   int            `json:"distance,omitempty"` // meters from the query point, 0 if unknown
}

// Clone returns a deep copy of c.
func (c Candidate) Clone() Candidate {
	c.Categories = slices.Clone(c.Categories)
	return c
}

// Details extends a Candidate with enrichment data.
type Details struct {
	Candidate

	Description string   `json:"description,omitempty"`
	Phone       string   `json:"phone,omitempty"`
	Website     string   `json:"website,omitempty"`
	Hours       string   `json:"hours,omitempty"`
	OpenNow     *bool    `json:"open_now,omitempty"`
	Price       int      `json:"price,omitempty"` // 1-4, 0 if unknown
	Rating      float64  `json:"rating,omitempty"`
	Tastes      []string `json:"tastes,omitempty"`
	Photos      []string `json:"photos,omitempty"`
	Tips        []string `json:"tips,omitempty"`
}

// Price tier bounds accepted by providers.
const (
	MinPrice = 1
	MaxPrice = 4
)

// Defaults applied to a SearchRequest when the caller leaves a field unset.
const (
	DefaultRadius = 20000
	DefaultLimit  = 50
)

// SearchRequest enumerates every option a place provider understands.
type SearchRequest struct {
	Query      string          `json:"query,omitempty"`
	LL         *geo.Coordinate `json:"ll,omitempty"`
	Near       string          `json:"near,omitempty"`
	Radius     int             `json:"radius"`
	Categories []string        `json:"categories,omitempty"`
	MinPrice   int             `json:"min_price"`
	MaxPrice   int             `json:"max_price"`
	OpenAt     string          `json:"open_at,omitempty"`
	OpenNow    bool            `json:"open_now,omitempty"`
	Tags       []string        `json:"tags,omitempty"`
	Limit      int             `json:"limit"`
}

// NewSearchRequest returns a request with default radius, limit and the full price range.
func NewSearchRequest() SearchRequest {
	return SearchRequest{
		Radius:   DefaultRadius,
		Limit:    DefaultLimit,
		MinPrice: MinPrice,
		MaxPrice: MaxPrice,
	}
}

// Normalize fills zero radius, limit and price bounds with defaults
// and clamps the price bounds into [MinPrice, MaxPrice].
func (r SearchRequest) Normalize() SearchRequest {
	if r.MinPrice == 0 {
		r.MinPrice = MinPrice
	}
	if r.MaxPrice == 0 {
		r.MaxPrice = MaxPrice
	}
	if r.Radius <= 0 {
		r.Radius = DefaultRadius
	}
	if r.Limit <= 0 {
		r.Limit = DefaultLimit
	}
	r.MinPrice, r.MaxPrice = ClampPrice(r.MinPrice, r.MaxPrice)
	return r
}

// ClampPrice clamps both bounds into [MinPrice, MaxPrice] and orders them.
func ClampPrice(minPrice, maxPrice int) (int, int) {
	minPrice = max(MinPrice, min(MaxPrice, minPrice))
	maxPrice = max(MinPrice, min(MaxPrice, maxPrice))
	if minPrice > maxPrice {
		minPrice, maxPrice = maxPrice, minPrice
	}
	return minPrice, maxPrice
}
