package models

import (
	"errors"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

const (
	BetPending   = "pending"
	BetWon       = "won"
	BetLost      = "lost"
	BetCancelled = "cancelled"
)

// MaxOdds and MaxMoney are the largest values the odds INTEGER and the
// NUMERIC(10,2) money columns hold.
const MaxOdds = math.MaxInt32

var MaxMoney = decimal.RequireFromString("99999999.99")

var (
	ErrZeroOdds       = errors.New("odds must be nonzero")
	ErrOddsOutOfRange = errors.New("odds must be between -2147483647 and 2147483647")
	ErrInvalidAmount  = errors.New("amount must be positive, at most 99999999.99, with at most 2 decimal places")
	ErrPayoutTooLarge = errors.New("stake plus potential win must not exceed 99999999.99")
)

var hundred = decimal.NewFromInt(100)

// Bet is a single wager on an in-stream event. Amount and Odds never change
// after creation; only Status, Outcome and SettledAt do.
type Bet struct {
	ID           int64           `json:"id"`
	UserID       int64           `json:"userId"`
	StreamID     int64           `json:"streamId"`
	BetType      string          `json:"betType"`
	Description  string          `json:"description"`
	Amount       decimal.Decimal `json:"amount"`
	Odds         int             `json:"odds"` // American odds, e.g. +180, -110
	PotentialWin decimal.Decimal `json:"potentialWin"`
	Status       string          `json:"status"` // 'pending', 'won', 'lost', 'cancelled'
	Outcome      *string         `json:"outcome"`
	PlacedAt     time.Time       `json:"placedAt"`
	SettledAt    *time.Time      `json:"settledAt"`
}

func (b *Bet) IsPending() bool {
	return b.Status == BetPending
}

// NetProceeds is what a settled bet added to or took from the bettor,
// relative to not having bet at all.
func (b *Bet) NetProceeds() decimal.Decimal {
	switch b.Status {
	case BetWon:
		return b.PotentialWin
	case BetLost:
		return b.Amount.Neg()
	default:
		return decimal.Zero
	}
}

// ValidAmount reports whether amount is a positive value no larger than
// MaxMoney with no more than two decimal places.
func ValidAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.LessThanOrEqual(MaxMoney) && amount.Equal(amount.Truncate(2))
}

// ValidOdds reports whether odds is nonzero and fits the odds column.
func ValidOdds(odds int) bool {
	return odds != 0 && odds <= MaxOdds && odds >= -MaxOdds
}

// PotentialWin computes the profit of a winning stake at American odds,
// rounded to 2 decimal places. The stake plus the profit must fit a money
// column, since that is what a win credits.
//
//	odds > 0: amount * odds / 100
//	odds < 0: amount * 100 / |odds|
func PotentialWin(amount decimal.Decimal, odds int) (decimal.Decimal, error) {
	if odds == 0 {
		return decimal.Zero, ErrZeroOdds
	}
	if !ValidOdds(odds) {
		return decimal.Zero, ErrOddsOutOfRange
	}
	if !ValidAmount(amount) {
		return decimal.Zero, ErrInvalidAmount
	}

	o := decimal.NewFromInt(int64(odds))
	var win decimal.Decimal
	if odds > 0 {
		win = amount.Mul(o).Div(hundred).Round(2)
	} else {
		win = amount.Mul(hundred).Div(o.Abs()).Round(2)
	}
	if amount.Add(win).GreaterThan(MaxMoney) {
		return decimal.Zero, ErrPayoutTooLarge
	}
	return win, nil
}

// IsSettlementStatus reports whether status is a terminal state a pending bet may move to.
func IsSettlementStatus(status string) bool {
	switch status {
	case BetWon, BetLost, BetCancelled:
		return true
	}
	return false
}
