package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avvvet/rookies-services/internal/comm"
	"github.com/avvvet/rookies-services/internal/metrics"
	"github.com/avvvet/rookies-services/internal/models"
	"github.com/avvvet/rookies-services/internal/store"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// BetOption is one of the fixed markets offered on every stream.
type BetOption struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Odds        int    `json:"odds"`
	Details     string `json:"details"`
}

var betOptions = []BetOption{
	{Type: "next_shot", Description: "Next Shot Made", Odds: 180, Details: "Player makes their next shot attempt"},
	{Type: "game_winner", Description: "Game Winner", Odds: -110, Details: "Team/Player wins the current game"},
	{Type: "score_over", Description: "Scores 30+ Points", Odds: 140, Details: "Player reaches 30 or more points this game"},
	{Type: "next_basket", Description: "Next 2 Points", Odds: 250, Details: "Player scores the next 2 points"},
	{Type: "duration_over", Description: "Game Over 25 Minutes", Odds: 120, Details: "Game duration exceeds 25 minutes"},
}

func BetOptions() []BetOption {
	out := make([]BetOption, len(betOptions))
	copy(out, betOptions)
	return out
}

var oneCent = decimal.New(1, -2)

func findBetOption(betType string) (BetOption, bool) {
	for _, o := range betOptions {
		if o.Type == betType {
			return o, true
		}
	}
	return BetOption{}, false
}

type PlaceBetInput struct {
	UserID       int64            `json:"userId"`
	StreamID     int64            `json:"streamId"`
	BetType      string           `json:"betType"`
	Description  string           `json:"description"`
	Amount       decimal.Decimal  `json:"amount"`
	Odds         int              `json:"odds"`
	PotentialWin *decimal.Decimal `json:"potentialWin"`
}

type SettleBetInput struct {
	Status  string  `json:"status"`
	Outcome *string `json:"outcome"`
}

type BetService struct {
	bets    store.BetRepository
	streams store.StreamRepository
	hub     Broadcaster
	events  BetEvents
	now     func() time.Time
}

func NewBetService(bets store.BetRepository, streams store.StreamRepository, hub Broadcaster, events BetEvents) *BetService {
	if hub == nil {
		hub = nopBroadcaster{}
	}
	if events == nil {
		events = nopEvents{}
	}
	return &BetService{
		bets:    bets,
		streams: streams,
		hub:     hub,
		events:  events,
		now:     time.Now,
	}
}

func (in *PlaceBetInput) validate() (decimal.Decimal, error) {
	v := newValidation("Invalid bet data")
	if in.UserID <= 0 {
		v.Add("userId", "required")
	}
	if in.StreamID <= 0 {
		v.Add("streamId", "required")
	}
	in.BetType = strings.TrimSpace(in.BetType)
	if in.BetType == "" {
		v.Add("betType", "required")
	}
	if !models.ValidAmount(in.Amount) {
		v.Add("amount", models.ErrInvalidAmount.Error())
	}
	switch {
	case in.Odds == 0:
		v.Add("odds", models.ErrZeroOdds.Error())
	case !models.ValidOdds(in.Odds):
		v.Add("odds", models.ErrOddsOutOfRange.Error())
	}
	if err := v.Err(); err != nil {
		return decimal.Zero, err
	}

	win, err := models.PotentialWin(in.Amount, in.Odds)
	if err != nil {
		v.Add("potentialWin", err.Error())
		return decimal.Zero, v
	}
	// clients rounding in binary floating point may land one cent off
	if in.PotentialWin != nil && in.PotentialWin.Sub(win).Abs().GreaterThan(oneCent) {
		v.Add("potentialWin", fmt.Sprintf("must be %s for %d odds", win.StringFixed(2), in.Odds))
		return decimal.Zero, v
	}
	return win, nil
}

// PlaceBet debits the stake and records a pending bet for callerID. The
// debit and the insert commit together or not at all.
func (s *BetService) PlaceBet(ctx context.Context, callerID int64, in PlaceBetInput) (*models.Bet, *models.User, error) {
	win, err := in.validate()
	if err != nil {
		metrics.BetsRejected.WithLabelValues("validation").Inc()
		return nil, nil, err
	}
	if callerID != in.UserID {
		metrics.BetsRejected.WithLabelValues("forbidden").Inc()
		return nil, nil, ErrForbidden
	}

	if _, err := s.streams.GetStream(ctx, in.StreamID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrStreamNotFound
		}
		return nil, nil, fmt.Errorf("get stream: %w", err)
	}

	description := strings.TrimSpace(in.Description)
	if description == "" {
		if opt, ok := findBetOption(in.BetType); ok {
			description = opt.Description
		}
	}

	bet, user, err := s.bets.PlaceBet(ctx, &models.Bet{
		UserID:       in.UserID,
		StreamID:     in.StreamID,
		BetType:      in.BetType,
		Description:  description,
		Amount:       in.Amount,
		Odds:         in.Odds,
		PotentialWin: win,
	})
	switch {
	case errors.Is(err, store.ErrInsufficientFunds):
		metrics.BetsRejected.WithLabelValues("insufficient_balance").Inc()
		return nil, nil, ErrInsufficientBalance
	case errors.Is(err, store.ErrBalanceLimit):
		metrics.BetsRejected.WithLabelValues("balance_limit").Inc()
		return nil, nil, ErrBalanceLimit
	case errors.Is(err, store.ErrNotFound):
		return nil, nil, ErrUserNotFound
	case err != nil:
		return nil, nil, fmt.Errorf("place bet: %w", err)
	}

	metrics.BetsPlaced.Inc()
	log.Infof("bet %d placed by user %d on stream %d: %s @ %d", bet.ID, user.ID, bet.StreamID, bet.Amount.StringFixed(2), bet.Odds)

	broadcast(s.hub, bet.StreamID, comm.TypeBetPlaced, comm.BetPlacedData{
		Bet:  comm.NewBetData(bet),
		User: comm.NewUserData(user),
	})
	s.events.BetPlaced(bet, user)

	return bet, user, nil
}

// SettleBet moves a pending bet to won, lost or cancelled and credits the
// bettor. Only the owner of the bet's stream may settle it.
func (s *BetService) SettleBet(ctx context.Context, callerID, betID int64, in SettleBetInput) (*models.Bet, *models.User, error) {
	if !models.IsSettlementStatus(in.Status) {
		v := newValidation("Invalid settlement")
		v.Add("status", "must be one of won, lost, cancelled")
		return nil, nil, v
	}

	bet, err := s.bets.GetBet(ctx, betID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrBetNotFound
		}
		return nil, nil, fmt.Errorf("get bet: %w", err)
	}

	stream, err := s.streams.GetStream(ctx, bet.StreamID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrStreamNotFound
		}
		return nil, nil, fmt.Errorf("get stream: %w", err)
	}
	if stream.UserID != callerID {
		return nil, nil, ErrForbidden
	}

	var outcome *string
	if in.Outcome != nil {
		if o := strings.TrimSpace(*in.Outcome); o != "" {
			outcome = &o
		}
	}

	settled, user, err := s.bets.SettleBet(ctx, betID, in.Status, outcome, s.now().UTC())
	switch {
	case errors.Is(err, store.ErrBetAlreadySettled):
		return nil, nil, ErrBetAlreadySettled
	case errors.Is(err, store.ErrBalanceLimit):
		return nil, nil, ErrBalanceLimit
	case errors.Is(err, store.ErrNotFound):
		return nil, nil, ErrBetNotFound
	case err != nil:
		return nil, nil, fmt.Errorf("settle bet: %w", err)
	}

	metrics.BetsSettled.WithLabelValues(settled.Status).Inc()
	log.Infof("bet %d settled %s, user %d balance %s", settled.ID, settled.Status, user.ID, user.Balance.StringFixed(2))

	broadcast(s.hub, settled.StreamID, comm.TypeBetResult, comm.BetResultData{
		Bet:    comm.NewBetData(settled),
		User:   comm.NewUserData(user),
		Result: settled.Status,
	})
	s.events.BetSettled(settled, user)

	return settled, user, nil
}

func (s *BetService) GetBet(ctx context.Context, id int64) (*models.Bet, error) {
	bet, err := s.bets.GetBet(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrBetNotFound
		}
		return nil, fmt.Errorf("get bet: %w", err)
	}
	return bet, nil
}

func (s *BetService) ListUserBets(ctx context.Context, userID int64) ([]*models.Bet, error) {
	return s.bets.ListUserBets(ctx, userID)
}

func (s *BetService) ListStreamBets(ctx context.Context, streamID int64) ([]*models.Bet, error) {
	if _, err := s.streams.GetStream(ctx, streamID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrStreamNotFound
		}
		return nil, fmt.Errorf("get stream: %w", err)
	}
	return s.bets.ListStreamBets(ctx, streamID)
}
