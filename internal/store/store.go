package store

import (
	"context"
	"errors"
	"time"

	"github.com/avvvet/rookies-services/internal/models"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrEmailTaken        = errors.New("email already registered")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrBetAlreadySettled = errors.New("bet already settled")
	ErrInvalidSettlement = errors.New("invalid settlement status")
	ErrBalanceLimit      = errors.New("balance limit exceeded")
	ErrFriendshipExists  = errors.New("friendship already exists")
	ErrSelfFriendship    = errors.New("cannot befriend yourself")
)

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) (*models.User, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	SetOnline(ctx context.Context, id int64, online bool, at time.Time) error
	ListFriends(ctx context.Context, userID int64) ([]*models.User, error)
	AddFriend(ctx context.Context, userID, friendID int64) error
	// Leaderboard ranks users by net proceeds of bets settled in [since, until).
	Leaderboard(ctx context.Context, since, until time.Time, limit int) ([]models.LeaderboardEntry, error)
}

type StreamRepository interface {
	CreateStream(ctx context.Context, stream *models.Stream) (*models.Stream, error)
	GetStream(ctx context.Context, id int64) (*models.Stream, error)
	ListLiveStreams(ctx context.Context) ([]*models.Stream, error)
	SetLive(ctx context.Context, id int64, live bool, at time.Time) error
	SetViewerCount(ctx context.Context, id int64, count int) error
}

// BetRepository owns the ledger: the only writes to a user's balance happen
// inside PlaceBet and SettleBet, each atomically with the bet row change.
type BetRepository interface {
	// PlaceBet debits bet.Amount from the bettor and inserts the bet as
	// pending, or fails with ErrInsufficientFunds leaving nothing changed.
	PlaceBet(ctx context.Context, bet *models.Bet) (*models.Bet, *models.User, error)
	// SettleBet moves a pending bet to status and applies the resulting
	// credit. It fails with ErrBetAlreadySettled when the bet is not pending.
	SettleBet(ctx context.Context, id int64, status string, outcome *string, at time.Time) (*models.Bet, *models.User, error)
	GetBet(ctx context.Context, id int64) (*models.Bet, error)
	ListUserBets(ctx context.Context, userID int64) ([]*models.Bet, error)
	ListStreamBets(ctx context.Context, streamID int64) ([]*models.Bet, error)
}

type ChatRepository interface {
	CreateMessage(ctx context.Context, msg *models.ChatMessage) (*models.ChatMessage, error)
	// ListMessages returns the latest limit messages of a stream, oldest first.
	ListMessages(ctx context.Context, streamID int64, limit int) ([]*models.ChatMessage, error)
}

type StatsRepository interface {
	GetStats(ctx context.Context, streamID int64) (*models.GameStats, error)
	// UpsertStats creates or updates the stream's single stats row. Nil
	// fields of stats keep their stored value.
	UpsertStats(ctx context.Context, stats *models.GameStats) (*models.GameStats, error)
}

type SessionRepository interface {
	CreateSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// Store groups every repository the service needs.
type Store interface {
	UserRepository
	StreamRepository
	BetRepository
	ChatRepository
	StatsRepository
	SessionRepository
}

// settlementCredit is the amount returned to the bettor's balance when a
// pending bet moves to status.
func settlementCredit(bet *models.Bet, status string) (decimal.Decimal, error) {
	switch status {
	case models.BetWon:
		return bet.Amount.Add(bet.PotentialWin), nil
	case models.BetLost:
		return decimal.Zero, nil
	case models.BetCancelled:
		return bet.Amount, nil
	default:
		return decimal.Zero, ErrInvalidSettlement
	}
}

// creditFits reports whether crediting credit to balance and win to the
// lifetime winnings keeps both inside their money columns.
func creditFits(balance, winnings, credit, win decimal.Decimal) bool {
	return balance.Add(credit).LessThanOrEqual(models.MaxMoney) &&
		winnings.Add(win).LessThanOrEqual(models.MaxMoney)
}

// settlementWinnings is the amount added to the bettor's lifetime winnings.
func settlementWinnings(bet *models.Bet, status string) decimal.Decimal {
	if status == models.BetWon {
		return bet.PotentialWin
	}
	return decimal.Zero
}
