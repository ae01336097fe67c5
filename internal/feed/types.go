package feed

import (
	"time"

	"github.com/tripwind/dealfeed/internal/pricing"
)

// Destination is a catalog record for one bookable city. Reference data:
// the pipeline reads it, never writes it.
type Destination struct {
	ID              int                `json:"id"`
	IATACode        string             `json:"iataCode"`
	City            string             `json:"city"`
	Country         string             `json:"country"`
	Continent       string             `json:"continent"`
	BaseFlightPrice float64            `json:"baseFlightPrice"`
	BaseHotelPrice  float64            `json:"baseHotelPrice"`
	Currency        string             `json:"currency"`
	Vibes           []string           `json:"vibes"`
	Rating          float64            `json:"rating"`
	ReviewCount     int                `json:"reviewCount"`
	Affinities      map[string]float64 `json:"affinities,omitempty"`
	Popularity      float64            `json:"popularity"`
	Active          bool               `json:"-"`
}

// PrimaryVibe returns the first vibe tag, or "" when the record has none.
func (d Destination) PrimaryVibe() string {
	if len(d.Vibes) == 0 {
		return ""
	}
	return d.Vibes[0]
}

// MergedDestination joins a catalog record with its current quote for one
// origin. The quote is optional; without it the base flight price stands in.
type MergedDestination struct {
	Destination
	LivePrice      *float64   `json:"livePrice"`
	PriceDirection string     `json:"priceDirection,omitempty"`
	Airline        string     `json:"airline,omitempty"`
	Provider       string     `json:"provider,omitempty"`
	PriceFetchedAt *time.Time `json:"priceFetchedAt,omitempty"`
}

// EffectivePrice is the live quote price when present, else the base
// flight price.
func (m MergedDestination) EffectivePrice() float64 {
	if m.LivePrice != nil {
		return *m.LivePrice
	}
	return m.BaseFlightPrice
}

// Merge joins active catalog records with the quotes for one origin.
func Merge(records []Destination, quotes map[string]pricing.Quote) []MergedDestination {
	merged := make([]MergedDestination, 0, len(records))
	for _, rec := range records {
		m := MergedDestination{Destination: rec}
		if q, ok := quotes[rec.IATACode]; ok {
			price := q.Price
			fetched := q.FetchedAt
			m.LivePrice = &price
			m.PriceDirection = string(q.Direction)
			m.Airline = q.Airline
			m.Provider = q.Provider
			m.PriceFetchedAt = &fetched
		}
		merged = append(merged, m)
	}
	return merged
}
