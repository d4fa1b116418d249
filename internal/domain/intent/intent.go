// Package intent models one logical search operation: what was asked (Request),
// where (Context), and what has been found so far (Fulfillment).
package intent

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/knowmaps/internal/domain"
	"github.com/kailas-cloud/knowmaps/internal/domain/geo"
	"github.com/kailas-cloud/knowmaps/internal/domain/place"
)

// CurrentLocation is the destination name used when searching around the device position.
const CurrentLocation = "Current Location"

// Request is the caller's query.
type Request struct {
	Caption string `json:"caption"`
	Kind    Kind   `json:"kind"`
	Hints   *Hints `json:"hints,omitempty"`
	Radius  int    `json:"radius,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

// Destination is the named location a search is biased toward.
type Destination struct {
	Name       string         `json:"name"`
	Coordinate geo.Coordinate `json:"coordinate"`
}

// Context holds the location context of a request.
type Context struct {
	Destination Destination `json:"destination"`
}

// Result is one entry of the final ordered candidate list.
type Result struct {
	Candidate place.Candidate `json:"candidate"`
	Details   *place.Details  `json:"details,omitempty"`
	Score     float64         `json:"score"`
}

// Source names which provider list became the primary candidates.
type Source string

// Candidate sources.
const (
	SourceNone            Source = ""
	SourcePlaces          Source = "places"
	SourceRecommendations Source = "recommendations"
)

// Fulfillment accumulates results. Each field is owned by exactly one pipeline stage.
type Fulfillment struct {
	SelectedPlace   *place.Candidate  `json:"selected_place,omitempty"`
	SelectedDetails *place.Details    `json:"selected_details,omitempty"`
	Places          []place.Candidate `json:"places,omitempty"`
	Details         []place.Details   `json:"details,omitempty"`
	Recommendations []place.Candidate `json:"recommendations,omitempty"`
	Related         []place.Candidate `json:"related,omitempty"`
	Source          Source            `json:"source,omitempty"`
	Results         []Result          `json:"results,omitempty"`
	Ranked          bool              `json:"ranked"`
}

// DetailsFor returns the details recorded for a candidate id.
func (f *Fulfillment) DetailsFor(id string) (place.Details, bool) {
	for _, d := range f.Details {
		if d.ID == id {
			return d, true
		}
	}
	return place.Details{}, false
}

// AppendDetails records d unless details for the same id already exist.
func (f *Fulfillment) AppendDetails(d place.Details) bool {
	if _, ok := f.DetailsFor(d.ID); ok {
		return false
	}
	f.Details = append(f.Details, d)
	return true
}

// Primary returns the candidate list the merge stage promoted.
func (f *Fulfillment) Primary() []place.Candidate {
	if f.Source == SourceRecommendations {
		return f.Recommendations
	}
	return f.Places
}

// Candidate finds a candidate by id across every list of the fulfillment.
func (f *Fulfillment) Candidate(id string) (place.Candidate, bool) {
	for _, list := range [][]place.Candidate{f.Recommendations, f.Places, f.Related} {
		for _, c := range list {
			if c.ID == id {
				return c, true
			}
		}
	}
	if d, ok := f.DetailsFor(id); ok {
		return d.Candidate, true
	}
	return place.Candidate{}, false
}

// Intent is one logical search operation. It is owned by a single
// orchestrator invocation and is never shared between concurrent searches.
type Intent struct {
	ID          string      `json:"id"`
	Request     Request     `json:"request"`
	Context     Context     `json:"context"`
	Fulfillment Fulfillment `json:"fulfillment"`
	State       State       `json:"state"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	Err         error       `json:"-"`
}

// New creates an intent in StateCreated.
func New(req Request, ctx Context) *Intent {
	now := time.Now()
	return &Intent{
		ID:        uuid.NewString(),
		Request:   req,
		Context:   ctx,
		State:     StateCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Advance moves the intent to the next state.
func (in *Intent) Advance(to State) error {
	if !CanTransition(in.State, to) {
		return fmt.Errorf("illegal transition %s -> %s", in.State, to)
	}
	in.State = to
	in.UpdatedAt = time.Now()
	return nil
}

// Fail moves the intent to StateFailed and records the cause.
func (in *Intent) Fail(err error) {
	if in.State.Terminal() {
		return
	}
	in.State = StateFailed
	in.Err = err
	in.UpdatedAt = time.Now()
}

// Key identifies searches that should be deduplicated against each other.
func (in *Intent) Key() string {
	return MakeKey(in.Request.Caption, in.Context.Destination.Name, in.Request.Radius)
}

// MakeKey builds the in-flight dedup key: caption|destination|radius.
func MakeKey(caption, destination string, radius int) string {
	return fmt.Sprintf("%s|%s|%d", caption, destination, radius)
}

// Validate checks the request and context. All failures are *domain.ValidationError.
func (in *Intent) Validate() error {
	if strings.TrimSpace(in.Request.Caption) == "" {
		return domain.NewValidationError("caption", "must not be blank", domain.ErrEmptyCaption)
	}
	if in.Request.Kind != "" && !in.Request.Kind.Valid() {
		return domain.NewValidationError("kind", fmt.Sprintf("%q is not a known intent kind", in.Request.Kind), nil)
	}
	if in.Request.Radius < 0 {
		return domain.NewValidationError("radius", "must be >= 0", nil)
	}
	if in.Request.Limit < 0 {
		return domain.NewValidationError("limit", "must be >= 0", nil)
	}
	dest := in.Context.Destination
	if strings.TrimSpace(dest.Name) == "" && dest.Coordinate.IsZero() {
		return domain.NewValidationError("destination", "needs a name or a coordinate", domain.ErrMissingDestination)
	}
	if dest.Coordinate.IsZero() && strings.EqualFold(strings.TrimSpace(dest.Name), CurrentLocation) {
		return domain.NewValidationError("destination.coordinate", "current location needs a coordinate", domain.ErrMissingDestination)
	}
	if !dest.Coordinate.Valid() {
		return domain.NewValidationError("destination.coordinate", "is out of range", domain.ErrMissingDestination)
	}
	return nil
}
