package comm

import (
	"encoding/json"
	"time"

	"github.com/avvvet/rookies-services/internal/models"
)

// socket frame types
const (
	TypeAuth        = "auth"
	TypeAuthOK      = "auth_ok"
	TypeChat        = "chat"
	TypeChatHistory = "chat_history"
	TypeStatsUpdate = "stats_update"
	TypeBetPlaced   = "bet_placed"
	TypeBetResult   = "bet_result"
	TypePing        = "ping"
	TypePong        = "pong"
	TypeError       = "error"
)

// WSMessage is the envelope of every socket frame in both directions.
type WSMessage struct {
	Type  string          `json:"type"` // e.g. "auth", "chat"
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// NewMessage builds an outbound frame with v marshalled into data.
func NewMessage(msgType string, v any) (*WSMessage, error) {
	msg := &WSMessage{Type: msgType}
	if v == nil {
		return msg, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	msg.Data = data
	return msg, nil
}

func NewError(text string) *WSMessage {
	return &WSMessage{Type: TypeError, Error: text}
}

// client -> server payloads. auth and chat frames carry their fields at the
// top level of the frame, next to type.
type ClientFrame struct {
	Type     string `json:"type"`
	UserId   int64  `json:"userId,omitempty"`
	StreamId int64  `json:"streamId,omitempty"`
	Token    string `json:"token,omitempty"`
	Content  string `json:"content,omitempty"`
}

// UserData is the redacted user sent to clients; never carries credentials.
type UserData struct {
	ID            int64     `json:"id"`
	Email         string    `json:"email"`
	FirstName     string    `json:"firstName"`
	LastName      string    `json:"lastName"`
	Avatar        string    `json:"avatar,omitempty"`
	Balance       string    `json:"balance"`
	IsOnline      bool      `json:"isOnline"`
	LastSeen      time.Time `json:"lastSeen"`
	TotalWinnings string    `json:"totalWinnings"`
	TotalBets     int       `json:"totalBets"`
	CreatedAt     time.Time `json:"createdAt"`
}

// UserSummary is the shape returned by signup, login and /api/auth/user.
type UserSummary struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Balance   string `json:"balance"`
	Token     string `json:"token,omitempty"`
}

type BetData struct {
	ID           int64      `json:"id"`
	UserID       int64      `json:"userId"`
	StreamID     int64      `json:"streamId"`
	BetType      string     `json:"betType"`
	Description  string     `json:"description"`
	Amount       string     `json:"amount"`
	Odds         int        `json:"odds"`
	PotentialWin string     `json:"potentialWin"`
	Status       string     `json:"status"`
	Outcome      *string    `json:"outcome"`
	PlacedAt     time.Time  `json:"placedAt"`
	SettledAt    *time.Time `json:"settledAt"`
}

type ChatData struct {
	ID        int64     `json:"id"`
	StreamID  int64     `json:"streamId"`
	UserID    int64     `json:"userId"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
	User      *UserData `json:"user"`
}

type StatsData struct {
	ID          int64     `json:"id"`
	StreamID    int64     `json:"streamId"`
	Score       *string   `json:"score"`
	Duration    *int      `json:"duration"`
	Points      *int      `json:"points"`
	Distance    *string   `json:"distance"`
	LastUpdated time.Time `json:"lastUpdated"`
}

type BetPlacedData struct {
	Bet  BetData   `json:"bet"`
	User *UserData `json:"user"`
}

type BetResultData struct {
	Bet    BetData   `json:"bet"`
	User   *UserData `json:"user"`
	Result string    `json:"result"`
}

type LeaderboardRow struct {
	UserData
	Rank          int    `json:"rank"`
	DailyWinnings string `json:"dailyWinnings"`
}

func NewUserData(u *models.User) *UserData {
	if u == nil {
		return nil
	}
	return &UserData{
		ID:            u.ID,
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Avatar:        u.Avatar,
		Balance:       u.Balance.StringFixed(2),
		IsOnline:      u.IsOnline,
		LastSeen:      u.LastSeen,
		TotalWinnings: u.TotalWinnings.StringFixed(2),
		TotalBets:     u.TotalBets,
		CreatedAt:     u.CreatedAt,
	}
}

func NewUserSummary(u *models.User, token string) UserSummary {
	return UserSummary{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Balance:   u.Balance.StringFixed(2),
		Token:     token,
	}
}

func NewBetData(b *models.Bet) BetData {
	return BetData{
		ID:           b.ID,
		UserID:       b.UserID,
		StreamID:     b.StreamID,
		BetType:      b.BetType,
		Description:  b.Description,
		Amount:       b.Amount.StringFixed(2),
		Odds:         b.Odds,
		PotentialWin: b.PotentialWin.StringFixed(2),
		Status:       b.Status,
		Outcome:      b.Outcome,
		PlacedAt:     b.PlacedAt,
		SettledAt:    b.SettledAt,
	}
}

func NewChatData(m *models.ChatMessage, u *models.User) ChatData {
	return ChatData{
		ID:        m.ID,
		StreamID:  m.StreamID,
		UserID:    m.UserID,
		Message:   m.Message,
		Type:      m.Type,
		CreatedAt: m.CreatedAt,
		User:      NewUserData(u),
	}
}

func NewStatsData(s *models.GameStats) StatsData {
	d := StatsData{
		ID:          s.ID,
		StreamID:    s.StreamID,
		Score:       s.Score,
		Duration:    s.Duration,
		Points:      s.Points,
		LastUpdated: s.LastUpdated,
	}
	if s.Distance.Valid {
		dist := s.Distance.Decimal.StringFixed(2)
		d.Distance = &dist
	}
	return d
}
