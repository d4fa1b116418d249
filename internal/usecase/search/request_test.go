package search

import (
	"slices"
	"testing"

	"github.com/kailas-cloud/knowmaps/internal/domain/geo"
	"github.com/kailas-cloud/knowmaps/internal/domain/intent"
	"github.com/kailas-cloud/knowmaps/internal/domain/place"
)

func TestBuildSearchRequest_Defaults(t *testing.T) {
	in := intent.New(intent.Request{Caption: " coffee "}, intent.Context{
		Destination: intent.Destination{Name: intent.CurrentLocation, Coordinate: geo.Coordinate{Lat: 48.85, Lng: 2.35}},
	})
	req := BuildSearchRequest(in, 0, 0)

	if req.Query != "coffee" {
		t.Errorf("query = %q", req.Query)
	}
	if req.LL == nil || req.LL.Lat != 48.85 {
		t.Errorf("ll = %+v", req.LL)
	}
	if req.Near != "" {
		t.Errorf("near = %q, want empty", req.Near)
	}
	if req.Radius != place.DefaultRadius || req.Limit != place.DefaultLimit {
		t.Errorf("radius/limit = %d/%d", req.Radius, req.Limit)
	}
	if req.MinPrice != place.MinPrice || req.MaxPrice != place.MaxPrice {
		t.Errorf("price = %d-%d", req.MinPrice, req.MaxPrice)
	}
}

func TestBuildSearchRequest_Overrides(t *testing.T) {
	in := intent.New(intent.Request{Caption: "coffee", Radius: 500, Limit: 10}, intent.Context{
		Destination: intent.Destination{Name: "Brooklyn"},
	})
	req := BuildSearchRequest(in, 1000, 20)
	if req.Radius != 500 || req.Limit != 10 {
		t.Errorf("radius/limit = %d/%d, want 500/10", req.Radius, req.Limit)
	}
	if req.Near != "Brooklyn" || req.LL != nil {
		t.Errorf("near = %q ll = %v", req.Near, req.LL)
	}

	in.Request.Radius, in.Request.Limit = 0, 0
	req = BuildSearchRequest(in, 1000, 20)
	if req.Radius != 1000 || req.Limit != 20 {
		t.Errorf("configured defaults ignored: %d/%d", req.Radius, req.Limit)
	}
}

func TestBuildSearchRequest_TastesAppended(t *testing.T) {
	in := intent.New(intent.Request{
		Caption: "quiet coffee",
		Hints:   &intent.Hints{Tastes: []string{"quiet", "wifi"}},
	}, intent.Context{Destination: intent.Destination{Name: "Paris"}})

	req := BuildSearchRequest(in, 0, 0)
	if req.Query != "quiet coffee wifi" {
		t.Errorf("query = %q", req.Query)
	}
	if !slices.Equal(req.Tags, []string{"quiet", "wifi"}) {
		t.Errorf("tags = %v", req.Tags)
	}
}

func TestBuildSearchRequest_LocationLookup(t *testing.T) {
	in := intent.New(intent.Request{
		Caption: "bars in the mission",
		Kind:    intent.KindLocationLookup,
		Hints:   &intent.Hints{LocationDescription: "Mission District, San Francisco"},
	}, intent.Context{Destination: intent.Destination{Coordinate: geo.Coordinate{Lat: 1, Lng: 1}}})

	req := BuildSearchRequest(in, 0, 0)
	if req.Near != "Mission District, San Francisco" || req.LL != nil {
		t.Errorf("near = %q ll = %v", req.Near, req.LL)
	}
}

func TestBuildSearchRequest_Categories(t *testing.T) {
	tests := []struct {
		name           string
		categories     []string
		wantQuery      string
		wantCategories []string
	}{
		{"labels join the query", []string{"coffee shop", "Bakery"}, "coffee coffee shop Bakery", nil},
		{"label already in caption", []string{"Coffee"}, "coffee", nil},
		{"numeric ids", []string{"13035", " 13065 "}, "coffee", []string{"13035", "13065"}},
		{"mixed", []string{"13035", "bakery"}, "coffee bakery", []string{"13035"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := intent.New(intent.Request{
				Caption: "coffee",
				Hints:   &intent.Hints{Categories: tc.categories},
			}, intent.Context{Destination: intent.Destination{Name: "Paris"}})

			req := BuildSearchRequest(in, 0, 0)
			if req.Query != tc.wantQuery {
				t.Errorf("query = %q, want %q", req.Query, tc.wantQuery)
			}
			if !slices.Equal(req.Categories, tc.wantCategories) {
				t.Errorf("categories = %v, want %v", req.Categories, tc.wantCategories)
			}
		})
	}
}
