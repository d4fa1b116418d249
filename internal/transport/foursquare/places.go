package foursquare

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/kailas-cloud/knowmaps/internal/domain/place"
)

// MaxNearRadius is the largest radius the API accepts alongside "near".
const MaxNearRadius = 100000

// recommendationRadii widen an empty recommendation query step by step.
var recommendationRadii = []int{20000, 30000, 50000}

const detailFields = "fsq_id,name,categories,geocodes,location,distance," +
	"description,tel,website,hours,price,rating,tastes,photos,tips"

// Search runs a keyword or category place search.
func (c *Client) Search(ctx context.Context, req place.SearchRequest) ([]place.Candidate, error) {
	results, err := c.search(ctx, opSearch, searchParams(req.Normalize()))
	if err != nil {
		return nil, err
	}
	c.logger.Debug("Place search completed",
		zap.String("query", req.Query),
		zap.Int("results", len(results)),
	)
	return results, nil
}

// FetchRecommended runs a relevance-sorted search, widening the radius
// while the result set stays empty.
func (c *Client) FetchRecommended(ctx context.Context, req place.SearchRequest) ([]place.Candidate, error) {
	req = req.Normalize()
	if req.Limit > c.cfg.RecommendLimit {
		req.Limit = c.cfg.RecommendLimit
	}

	for _, radius := range expandingRadii(req.Radius) {
		req.Radius = radius
		params := searchParams(req)
		params.Set("sort", "RELEVANCE")

		results, err := c.search(ctx, opRecommend, params)
		if err != nil {
			return nil, err
		}
		if len(results) > 0 {
			c.logger.Debug("Recommendations fetched",
				zap.Int("radius", radius),
				zap.Int("results", len(results)),
			)
			return results, nil
		}
	}
	return nil, nil
}

// FetchDetails loads the enriched record for one place.
func (c *Client) FetchDetails(ctx context.Context, id string) (place.Details, error) {
	if id == "" {
		return place.Details{}, fmt.Errorf("foursquare details: empty place id")
	}
	params := url.Values{}
	params.Set("fields", detailFields)

	body, err := c.get(ctx, opDetails, "/v3/places/"+url.PathEscape(id), params)
	if err != nil {
		return place.Details{}, err
	}

	var dto placeDTO
	if err := json.Unmarshal(body, &dto); err != nil {
		return place.Details{}, fmt.Errorf("foursquare details: decode: %w", err)
	}
	d := dto.toDetails()
	if d.ID == "" {
		d.ID = id
	}
	return d, nil
}

func (c *Client) search(ctx context.Context, op string, params url.Values) ([]place.Candidate, error) {
	body, err := c.get(ctx, op, "/v3/places/search", params)
	if err != nil {
		return nil, err
	}
	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("foursquare %s: decode: %w", op, err)
	}
	return toCandidates(resp.Results), nil
}

// searchParams encodes a normalized request. "near" wins over "ll"
// and default price bounds are omitted.
func searchParams(req place.SearchRequest) url.Values {
	v := url.Values{}
	if q := strings.TrimSpace(req.Query); q != "" {
		v.Set("query", q)
	}
	switch {
	case req.Near != "":
		v.Set("near", req.Near)
		v.Set("radius", strconv.Itoa(min(req.Radius, MaxNearRadius)))
	case req.LL != nil:
		v.Set("ll", req.LL.LL())
		v.Set("radius", strconv.Itoa(req.Radius))
	}
	if len(req.Categories) > 0 {
		v.Set("categories", strings.Join(req.Categories, ","))
	}
	if req.MinPrice > place.MinPrice {
		v.Set("min_price", strconv.Itoa(req.MinPrice))
	}
	if req.MaxPrice < place.MaxPrice {
		v.Set("max_price", strconv.Itoa(req.MaxPrice))
	}
	if req.OpenAt != "" {
		v.Set("open_at", req.OpenAt)
	} else if req.OpenNow {
		v.Set("open_now", "true")
	}
	v.Set("limit", strconv.Itoa(req.Limit))
	return v
}

// expandingRadii returns the requested radius followed by every wider fallback.
func expandingRadii(radius int) []int {
	out := []int{radius}
	for _, r := range recommendationRadii {
		if r > radius {
			out = append(out, r)
		}
	}
	return out
}
