package models

import "time"

const (
	ChatTypeMessage         = "message"
	ChatTypeBetNotification = "bet_notification"
	ChatTypeSystem          = "system"
)

type ChatMessage struct {
	ID        int64     `json:"id"`
	StreamID  int64     `json:"streamId"`
	UserID    int64     `json:"userId"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
}
