package foursquare

import (
	"strings"

	"github.com/kailas-cloud/knowmaps/internal/domain/geo"
	"github.com/kailas-cloud/knowmaps/internal/domain/place"
)

type searchResponse struct {
	Results []placeDTO `json:"results"`
}

type categoryDTO struct {
	ID   any    `json:"id"`
	Name string `json:"name"`
}

type geocodesDTO struct {
	Main struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"main"`
}

type locationDTO struct {
	FormattedAddress string `json:"formatted_address"`
	Address          string `json:"address"`
	Locality         string `json:"locality"`
	Region           string `json:"region"`
	Postcode         string `json:"postcode"`
	Country          string `json:"country"`
}

type hoursDTO struct {
	Display string `json:"display"`
	OpenNow *bool  `json:"open_now"`
}

type photoDTO struct {
	Prefix string `json:"prefix"`
	Suffix string `json:"suffix"`
}

type tipDTO struct {
	Text string `json:"text"`
}

type placeDTO struct {
	FsqID      string        `json:"fsq_id"`
	Name       string        `json:"name"`
	Categories []categoryDTO `json:"categories"`
	Geocodes   geocodesDTO   `json:"geocodes"`
	Location   locationDTO   `json:"location"`
	Distance   int           `json:"distance"`

	Description string     `json:"description"`
	Tel         string     `json:"tel"`
	Website     string     `json:"website"`
	Hours       *hoursDTO  `json:"hours"`
	Price       int        `json:"price"`
	Rating      float64    `json:"rating"`
	Tastes      []string   `json:"tastes"`
	Photos      []photoDTO `json:"photos"`
	Tips        []tipDTO   `json:"tips"`
}

func (p placeDTO) toCandidate() place.Candidate {
	c := place.Candidate{
		ID:   p.FsqID,
		Name: p.Name,
		Coordinate: geo.Coordinate{
			Lat: p.Geocodes.Main.Latitude,
			Lng: p.Geocodes.Main.Longitude,
		},
		Address: place.Address{
			Formatted: p.Location.FormattedAddress,
			Street:    p.Location.Address,
			Locality:  p.Location.Locality,
			Region:    p.Location.Region,
			Postcode:  p.Location.Postcode,
			Country:   p.Location.Country,
		},
		Distance: p.Distance,
	}
	for _, cat := range p.Categories {
		if name := strings.TrimSpace(cat.Name); name != "" {
			c.Categories = append(c.Categories, name)
		}
	}
	return c
}

func (p placeDTO) toDetails() place.Details {
	d := place.Details{
		Candidate:   p.toCandidate(),
		Description: p.Description,
		Phone:       p.Tel,
		Website:     p.Website,
		Price:       p.Price,
		Rating:      p.Rating,
	}
	if p.Hours != nil {
		d.Hours = p.Hours.Display
		d.OpenNow = p.Hours.OpenNow
	}
	for _, t := range p.Tastes {
		if t = strings.TrimSpace(t); t != "" {
			d.Tastes = append(d.Tastes, t)
		}
	}
	for _, ph := range p.Photos {
		if ph.Prefix != "" {
			d.Photos = append(d.Photos, ph.Prefix+"original"+ph.Suffix)
		}
	}
	for _, tip := range p.Tips {
		if tip.Text != "" {
			d.Tips = append(d.Tips, tip.Text)
		}
	}
	return d
}

func toCandidates(results []placeDTO) []place.Candidate {
	out := make([]place.Candidate, 0, len(results))
	for _, r := range results {
		if r.FsqID == "" {
			continue
		}
		out = append(out, r.toCandidate())
	}
	return out
}
