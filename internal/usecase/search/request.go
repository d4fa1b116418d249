package search

import (
	"strings"

	"github.com/kailas-cloud/knowmaps/internal/domain/intent"
	"github.com/kailas-cloud/knowmaps/internal/domain/place"
)

// BuildSearchRequest derives the typed provider query from an intent.
//
// Tastes and category labels are appended to the query text. Only numeric
// category ids are sent as provider categories.
func BuildSearchRequest(in *intent.Intent, defaultRadius, defaultLimit int) place.SearchRequest {
	req := place.NewSearchRequest()
	if defaultRadius > 0 {
		req.Radius = defaultRadius
	}
	if defaultLimit > 0 {
		req.Limit = defaultLimit
	}
	if in.Request.Radius > 0 {
		req.Radius = in.Request.Radius
	}
	if in.Request.Limit > 0 {
		req.Limit = in.Request.Limit
	}

	query := strings.TrimSpace(in.Request.Caption)
	dest := in.Context.Destination
	if !dest.Coordinate.IsZero() {
		ll := dest.Coordinate
		req.LL = &ll
	} else if name := strings.TrimSpace(dest.Name); name != "" && name != intent.CurrentLocation {
		req.Near = name
	}

	if h := in.Request.Hints; h != nil {
		if in.Request.Kind == intent.KindPlaceLookup && h.PlaceName != "" {
			query = h.PlaceName
		}
		if in.Request.Kind == intent.KindLocationLookup && h.LocationDescription != "" {
			req.Near = h.LocationDescription
			req.LL = nil
		}
		for _, taste := range h.Tastes {
			query = appendTerm(query, taste)
		}
		req.Tags = append(req.Tags, h.Tastes...)
		for _, c := range h.Categories {
			c = strings.TrimSpace(c)
			if isCategoryID(c) {
				req.Categories = append(req.Categories, c)
			} else {
				query = appendTerm(query, c)
			}
		}
		if h.Price != nil {
			req.MinPrice, req.MaxPrice = h.Price.Min, h.Price.Max
		}
		req.OpenAt = h.OpenAt
		req.OpenNow = h.OpenNow
	}

	req.Query = query
	return req.Normalize()
}

func appendTerm(query, term string) string {
	if term == "" || strings.Contains(strings.ToLower(query), strings.ToLower(term)) {
		return query
	}
	return strings.TrimSpace(query + " " + term)
}

// isCategoryID reports whether s is a provider category id such as "13035".
func isCategoryID(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
