package pricing

import (
	"math"
	"time"
)

// Direction classifies how a price moved against the previous stored quote.
type Direction string

const (
	DirectionUp     Direction = "up"
	DirectionDown   Direction = "down"
	DirectionStable Direction = "stable"
)

// directionThreshold is the relative move below which a price counts as
// stable.
const directionThreshold = 0.05

// Quote is one priced origin→destination offer from a single provider.
// At most one live quote exists per (origin, destination) pair.
type Quote struct {
	Origin        string    `json:"origin"`
	Destination   string    `json:"destination"`
	Price         float64   `json:"price"`
	Currency      string    `json:"currency"`
	Airline       string    `json:"airline"`
	Provider      string    `json:"provider"`
	FetchedAt     time.Time `json:"fetchedAt"`
	DepartDate    string    `json:"departDate,omitempty"`
	ReturnDate    string    `json:"returnDate,omitempty"`
	TripDays      int       `json:"tripDays,omitempty"`
	PreviousPrice *float64  `json:"previousPrice,omitempty"`
	Direction     Direction `json:"direction"`
}

// ClassifyDirection compares a new price against the previous one. Moves
// of 5% or less, and quotes with no history, are stable.
func ClassifyDirection(previous *float64, price float64) Direction {
	if previous == nil || *previous <= 0 {
		return DirectionStable
	}
	change := (price - *previous) / *previous
	if math.Abs(change) <= directionThreshold {
		return DirectionStable
	}
	if change > 0 {
		return DirectionUp
	}
	return DirectionDown
}
