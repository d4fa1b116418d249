package foursquare

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/knowmaps/internal/domain"
	"github.com/kailas-cloud/knowmaps/internal/domain/geo"
	"github.com/kailas-cloud/knowmaps/internal/domain/place"
)

// --- Helpers ---

type recordedRequest struct {
	path  string
	query url.Values
	auth  string
}

type fakeAPI struct {
	mu       sync.Mutex
	requests []recordedRequest
	handler  func(w http.ResponseWriter, r *http.Request)
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{
		path:  r.URL.Path,
		query: r.URL.Query(),
		auth:  r.Header.Get("Authorization"),
	})
	f.mu.Unlock()
	f.handler(w, r)
}

func (f *fakeAPI) recorded() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.requests)
}

func newTestClient(t *testing.T, handler func(w http.ResponseWriter, r *http.Request), mutate ...func(*Config)) (*Client, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{handler: handler}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	cfg := Config{
		BaseURL:         srv.URL,
		APIKey:          "fsq-test-key",
		RequestsPerSec:  1000,
		Burst:           100,
		BreakerFailures: 3,
		BreakerOpen:     time.Minute,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	return NewClient(cfg, zap.NewNop()), api
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

const twoResults = `{"results":[
 {"fsq_id":"a1","name":"Blue Bottle","categories":[{"id":13035,"name":"Coffee Shop"}],
  "geocodes":{"main":{"latitude":37.78,"longitude":-122.41}},
  "location":{"formatted_address":"66 Mint St","locality":"San Francisco","country":"US"},"distance":120},
 {"fsq_id":"","name":"no id"},
 {"fsq_id":"a2","name":"Sightglass"}
]}`

// --- Tests ---

func TestSearch_EncodesRequestAndMapsResults(t *testing.T) {
	c, api := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, twoResults)
	})

	req := place.SearchRequest{
		Query:      "coffee",
		LL:         &geo.Coordinate{Lat: 37.7749, Lng: -122.4194},
		Radius:     1500,
		Categories: []string{"13035", "13032"},
		MinPrice:   2,
		MaxPrice:   4,
		OpenNow:    true,
		Limit:      10,
	}
	got, err := c.Search(context.Background(), req)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates (id-less result dropped), got %d", len(got))
	}
	first := got[0]
	if first.ID != "a1" || first.Name != "Blue Bottle" || first.Distance != 120 {
		t.Errorf("unexpected candidate: %+v", first)
	}
	if !slices.Equal(first.Categories, []string{"Coffee Shop"}) {
		t.Errorf("categories: %v", first.Categories)
	}
	if first.Coordinate.Lat != 37.78 || first.Address.Locality != "San Francisco" {
		t.Errorf("location not mapped: %+v", first)
	}

	reqs := api.recorded()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(reqs))
	}
	r := reqs[0]
	if r.path != "/v3/places/search" {
		t.Errorf("path = %q", r.path)
	}
	if r.auth != "fsq-test-key" {
		t.Errorf("auth header = %q", r.auth)
	}
	want := map[string]string{
		"query":      "coffee",
		"ll":         "37.7749,-122.4194",
		"radius":     "1500",
		"categories": "13035,13032",
		"min_price":  "2",
		"open_now":   "true",
		"limit":      "10",
		"v":          APIVersion,
	}
	for k, v := range want {
		if got := r.query.Get(k); got != v {
			t.Errorf("param %s = %q, want %q", k, got, v)
		}
	}
	if r.query.Has("max_price") {
		t.Error("default max_price should be omitted")
	}
	if r.query.Has("near") {
		t.Error("near should be absent when only ll is set")
	}
}

func TestSearchParams_NearWinsAndCapsRadius(t *testing.T) {
	req := place.SearchRequest{
		Near:    "Lisbon",
		LL:      &geo.Coordinate{Lat: 1, Lng: 2},
		Radius:  250000,
		OpenAt:  "1T2000",
		OpenNow: true,
	}.Normalize()

	v := searchParams(req)
	if v.Get("near") != "Lisbon" {
		t.Errorf("near = %q", v.Get("near"))
	}
	if v.Has("ll") {
		t.Error("ll must not be sent with near")
	}
	if v.Get("radius") != "100000" {
		t.Errorf("radius = %q, want capped 100000", v.Get("radius"))
	}
	if v.Get("open_at") != "1T2000" || v.Has("open_now") {
		t.Errorf("open_at should replace open_now: %v", v)
	}
	if v.Has("query") || v.Has("min_price") || v.Has("max_price") {
		t.Errorf("unexpected defaults encoded: %v", v)
	}
}

func TestFetchRecommended_WidensRadiusUntilResults(t *testing.T) {
	c, api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("radius") == "30000" {
			writeJSON(w, http.StatusOK, twoResults)
			return
		}
		writeJSON(w, http.StatusOK, `{"results":[]}`)
	})

	req := place.SearchRequest{LL: &geo.Coordinate{Lat: 10, Lng: 20}, Radius: 5000}
	got, err := c.FetchRecommended(context.Background(), req)
	if err != nil {
		t.Fatalf("FetchRecommended: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}

	var radii []string
	for _, r := range api.recorded() {
		radii = append(radii, r.query.Get("radius"))
		if r.query.Get("sort") != "RELEVANCE" {
			t.Errorf("sort = %q", r.query.Get("sort"))
		}
	}
	if !slices.Equal(radii, []string{"5000", "20000", "30000"}) {
		t.Errorf("radii = %v", radii)
	}
}

func TestFetchRecommended_AllEmpty(t *testing.T) {
	c, api := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, `{"results":[]}`)
	}, func(cfg *Config) { cfg.RecommendLimit = 7 })

	got, err := c.FetchRecommended(context.Background(), place.SearchRequest{Near: "Oslo", Radius: 40000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no results, got %d", len(got))
	}
	reqs := api.recorded()
	if len(reqs) != 2 {
		t.Fatalf("expected 40000 then 50000, got %d requests", len(reqs))
	}
	if reqs[0].query.Get("limit") != "7" {
		t.Errorf("limit not capped: %q", reqs[0].query.Get("limit"))
	}
}

func TestExpandingRadii(t *testing.T) {
	tests := []struct {
		in   int
		want []int
	}{
		{1000, []int{1000, 20000, 30000, 50000}},
		{20000, []int{20000, 30000, 50000}},
		{60000, []int{60000}},
	}
	for _, tc := range tests {
		if got := expandingRadii(tc.in); !slices.Equal(got, tc.want) {
			t.Errorf("expandingRadii(%d) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestFetchDetails_MapsEnrichment(t *testing.T) {
	c, api := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, `{
			"fsq_id":"a1","name":"Blue Bottle",
			"description":"Third wave","tel":"+1 415","website":"https://bb.example",
			"hours":{"display":"Mon-Sun 7:00-18:00","open_now":true},
			"price":2,"rating":8.7,"tastes":["pour over"," ",""],
			"photos":[{"prefix":"https://img/","suffix":"/p.jpg"}],
			"tips":[{"text":"Try the New Orleans"}]
		}`)
	})

	d, err := c.FetchDetails(context.Background(), "a1")
	if err != nil {
		t.Fatalf("FetchDetails: %v", err)
	}
	if d.ID != "a1" || d.Description != "Third wave" || d.Phone != "+1 415" {
		t.Errorf("unexpected details: %+v", d)
	}
	if d.Hours != "Mon-Sun 7:00-18:00" || d.OpenNow == nil || !*d.OpenNow {
		t.Errorf("hours not mapped: %q %v", d.Hours, d.OpenNow)
	}
	if d.Price != 2 || d.Rating != 8.7 {
		t.Errorf("price/rating: %d %v", d.Price, d.Rating)
	}
	if !slices.Equal(d.Tastes, []string{"pour over"}) {
		t.Errorf("tastes: %v", d.Tastes)
	}
	if !slices.Equal(d.Photos, []string{"https://img/original/p.jpg"}) {
		t.Errorf("photos: %v", d.Photos)
	}
	if !slices.Equal(d.Tips, []string{"Try the New Orleans"}) {
		t.Errorf("tips: %v", d.Tips)
	}

	r := api.recorded()[0]
	if r.path != "/v3/places/a1" || r.query.Get("fields") != detailFields {
		t.Errorf("unexpected request: %s %v", r.path, r.query)
	}
}

func TestFetchDetails_FillsMissingID(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, `{"name":"Anon"}`)
	})
	d, err := c.FetchDetails(context.Background(), "x9")
	if err != nil {
		t.Fatalf("FetchDetails: %v", err)
	}
	if d.ID != "x9" {
		t.Errorf("ID = %q, want x9", d.ID)
	}
}

func TestFetchDetails_EmptyID(t *testing.T) {
	c, api := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, `{}`)
	})
	if _, err := c.FetchDetails(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty id")
	}
	if len(api.recorded()) != 0 {
		t.Error("no request expected")
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, domain.ErrNotFound},
		{http.StatusTooManyRequests, domain.ErrRateLimited},
		{http.StatusBadGateway, domain.ErrProviderUnavailable},
	}
	for _, tc := range tests {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, tc.status, `{"message":"nope"}`)
			})
			_, err := c.FetchDetails(context.Background(), "a1")
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			var se *StatusError
			if !errors.As(err, &se) || se.StatusCode != tc.status {
				t.Errorf("StatusError not preserved: %v", err)
			}
		})
	}
}

func TestMalformedBody(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, `{"results":`)
	})
	if _, err := c.Search(context.Background(), place.SearchRequest{Query: "x"}); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestBreaker_OpensAfterConsecutiveServerErrors(t *testing.T) {
	c, api := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusInternalServerError, `{}`)
	})

	for range 3 {
		if _, err := c.Search(context.Background(), place.SearchRequest{Query: "x"}); err == nil {
			t.Fatal("expected error")
		}
	}
	_, err := c.Search(context.Background(), place.SearchRequest{Query: "x"})
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("expected open breaker, got %v", err)
	}
	if n := len(api.recorded()); n != 3 {
		t.Errorf("open breaker must short-circuit, server saw %d requests", n)
	}

	if err := c.HealthCheck(context.Background()); !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Errorf("HealthCheck should report the open breaker, got %v", err)
	}

	// other endpoints keep their own breaker
	_, _ = c.FetchDetails(context.Background(), "a1")
	if n := len(api.recorded()); n != 4 {
		t.Errorf("details breaker should still be closed, server saw %d requests", n)
	}
}

func TestBreaker_IgnoresClientErrors(t *testing.T) {
	c, api := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, `{}`)
	})
	for range 5 {
		_, err := c.FetchDetails(context.Background(), "missing")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	}
	if n := len(api.recorded()); n != 5 {
		t.Errorf("404s must not trip the breaker, server saw %d requests", n)
	}
	if err := c.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck: %v", err)
	}
}

func TestRateLimiter_HonorsContext(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, `{"results":[]}`)
	}, func(cfg *Config) {
		cfg.RequestsPerSec = 0.001
		cfg.Burst = 1
	})

	if _, err := c.Search(context.Background(), place.SearchRequest{Query: "x"}); err != nil {
		t.Fatalf("first call within burst: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.Search(ctx, place.SearchRequest{Query: "x"}); err == nil {
		t.Fatal("expected limiter wait to fail")
	}
}
