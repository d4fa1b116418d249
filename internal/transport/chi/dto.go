package chi

import (
	"strings"
	"time"

	"github.com/kailas-cloud/knowmaps/internal/domain"
	"github.com/kailas-cloud/knowmaps/internal/domain/geo"
	"github.com/kailas-cloud/knowmaps/internal/domain/intent"
	"github.com/kailas-cloud/knowmaps/internal/domain/item"
	"github.com/kailas-cloud/knowmaps/internal/domain/place"
)

type destinationRequest struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
}

type searchRequest struct {
	UserID      string             `json:"user_id"`
	Caption     string             `json:"caption"`
	Kind        string             `json:"kind,omitempty"`
	Destination destinationRequest `json:"destination"`
	Radius      int                `json:"radius,omitempty"`
	Limit       int                `json:"limit,omitempty"`
	Hints       *intent.Hints      `json:"hints,omitempty"`
}

// toIntent builds a fresh intent. Caption and destination checks are left to the orchestrator.
func (r searchRequest) toIntent() (*intent.Intent, error) {
	if strings.TrimSpace(r.UserID) == "" {
		return nil, domain.NewValidationError("user_id", "must not be blank", domain.ErrUserRequired)
	}
	var kind intent.Kind
	if strings.TrimSpace(r.Kind) != "" {
		k, err := intent.ParseKind(r.Kind)
		if err != nil {
			return nil, err
		}
		kind = k
	}
	return intent.New(
		intent.Request{
			Caption: r.Caption,
			Kind:    kind,
			Hints:   r.Hints,
			Radius:  r.Radius,
			Limit:   r.Limit,
		},
		intent.Context{Destination: intent.Destination{
			Name:       r.Destination.Name,
			Coordinate: geo.Coordinate{Lat: r.Destination.Lat, Lng: r.Destination.Lng},
		}},
	), nil
}

type searchResponse struct {
	IntentID        string            `json:"intent_id"`
	State           string            `json:"state"`
	Kind            intent.Kind       `json:"kind"`
	Hints           *intent.Hints     `json:"hints,omitempty"`
	Source          intent.Source     `json:"source,omitempty"`
	Ranked          bool              `json:"ranked"`
	Results         []intent.Result   `json:"results"`
	SelectedPlace   *place.Candidate  `json:"selected_place,omitempty"`
	SelectedDetails *place.Details    `json:"selected_details,omitempty"`
	Related         []place.Candidate `json:"related,omitempty"`
	Error           string            `json:"error,omitempty"`
}

func intentToResponse(in *intent.Intent) searchResponse {
	f := in.Fulfillment
	resp := searchResponse{
		IntentID:        in.ID,
		State:           in.State.String(),
		Kind:            in.Request.Kind,
		Hints:           in.Request.Hints,
		Source:          f.Source,
		Ranked:          f.Ranked,
		Results:         f.Results,
		SelectedPlace:   f.SelectedPlace,
		SelectedDetails: f.SelectedDetails,
		Related:         f.Related,
	}
	if resp.Results == nil {
		resp.Results = []intent.Result{}
	}
	if in.Err != nil {
		resp.Error = in.Err.Error()
	}
	return resp
}

type interactionRequest struct {
	ItemID    string     `json:"item_id"`
	Score     float64    `json:"score"`
	Context   string     `json:"context,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

func (r interactionRequest) toInteraction(userID string) item.Interaction {
	rec := item.Interaction{
		UserID:  userID,
		ItemID:  r.ItemID,
		Score:   r.Score,
		Context: r.Context,
	}
	if r.Timestamp != nil {
		rec.Timestamp = r.Timestamp.UTC()
	} else {
		rec.Timestamp = time.Now().UTC()
	}
	return rec
}
