package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// GameStats is the current game state of a stream, one row per stream.
type GameStats struct {
	ID          int64               `json:"id"`
	StreamID    int64               `json:"streamId"`
	Score       *string             `json:"score"`
	Duration    *int                `json:"duration"` // seconds
	Points      *int                `json:"points"`
	Distance    decimal.NullDecimal `json:"distance"` // miles
	LastUpdated time.Time           `json:"lastUpdated"`
}
