package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User represents the users table in the database.
type User struct {
	ID            int64           `json:"id"`
	Email         string          `json:"email"`
	PasswordHash  string          `json:"-"`
	FirstName     string          `json:"firstName,omitempty"`
	LastName      string          `json:"lastName,omitempty"`
	Avatar        string          `json:"avatar,omitempty"`
	Balance       decimal.Decimal `json:"balance"`
	IsOnline      bool            `json:"isOnline"`
	LastSeen      time.Time       `json:"lastSeen"`
	TotalWinnings decimal.Decimal `json:"totalWinnings"`
	TotalBets     int             `json:"totalBets"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

type Friendship struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	FriendID  int64     `json:"friendId"`
	Status    string    `json:"status"` // 'pending', 'accepted', 'blocked'
	CreatedAt time.Time `json:"createdAt"`
}

const (
	FriendshipPending  = "pending"
	FriendshipAccepted = "accepted"
	FriendshipBlocked  = "blocked"
)

// LeaderboardEntry is a user with their net proceeds from bets settled in the current day.
type LeaderboardEntry struct {
	User          *User
	DailyWinnings decimal.Decimal
}
