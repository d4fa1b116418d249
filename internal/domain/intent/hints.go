package intent

import "github.com/kailas-cloud/knowmaps/internal/domain/place"

// PriceRange is an inclusive price tier range.
type PriceRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// NewPriceRange clamps both bounds into the provider tier range and orders them.
func NewPriceRange(minPrice, maxPrice int) PriceRange {
	lo, hi := place.ClampPrice(minPrice, maxPrice)
	return PriceRange{Min: lo, Max: hi}
}

// Hints carries the structured signals a classifier extracted from a caption.
type Hints struct {
	Categories          []string    `json:"categories,omitempty"`
	Tastes              []string    `json:"tastes,omitempty"`
	Price               *PriceRange `json:"price,omitempty"`
	OpenAt              string      `json:"open_at,omitempty"`
	OpenNow             bool        `json:"open_now,omitempty"`
	PlaceName           string      `json:"place_name,omitempty"`
	LocationDescription string      `json:"location_description,omitempty"`
	Confidence          float64     `json:"confidence,omitempty"`
}

// Classification is what an intent classifier returns for a caption.
type Classification struct {
	Kind  Kind
	Hints *Hints
}
