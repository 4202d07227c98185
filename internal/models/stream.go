package models

import "time"

type Location struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Name    string  `json:"name"`
	Address string  `json:"address"`
}

// Stream is a live broadcast session owned by one streaming user.
type Stream struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"userId"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	IsLive      bool       `json:"isLive"`
	ViewerCount int        `json:"viewerCount"`
	Sport       string     `json:"sport"`
	Location    *Location  `json:"location,omitempty"`
	StreamKey   string     `json:"-"`
	CreatedAt   time.Time  `json:"createdAt"`
	EndedAt     *time.Time `json:"endedAt,omitempty"`
}
