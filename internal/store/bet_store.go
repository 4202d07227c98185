package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avvvet/rookies-services/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const betColumns = `id, user_id, stream_id, bet_type, description, amount, odds, potential_win,
	status, outcome, placed_at, settled_at`

type BetStore struct {
	db *pgxpool.Pool
}

func NewBetStore(db *pgxpool.Pool) *BetStore {
	return &BetStore{db: db}
}

func scanBet(row pgx.Row) (*models.Bet, error) {
	b := &models.Bet{}
	err := row.Scan(
		&b.ID,
		&b.UserID,
		&b.StreamID,
		&b.BetType,
		&b.Description,
		&b.Amount,
		&b.Odds,
		&b.PotentialWin,
		&b.Status,
		&b.Outcome,
		&b.PlacedAt,
		&b.SettledAt,
	)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// PlaceBet locks the bettor's row for the length of the transaction, so
// concurrent placements by the same user see each other's debits.
func (s *BetStore) PlaceBet(ctx context.Context, bet *models.Bet) (*models.Bet, *models.User, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var balance decimal.Decimal
	err = tx.QueryRow(ctx, `SELECT balance FROM users WHERE id = $1 FOR UPDATE`, bet.UserID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("lock user balance: %w", err)
	}

	var streamExists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM streams WHERE id = $1)`, bet.StreamID).Scan(&streamExists); err != nil {
		return nil, nil, fmt.Errorf("stream check: %w", err)
	}
	if !streamExists {
		return nil, nil, ErrNotFound
	}

	if balance.LessThan(bet.Amount) {
		return nil, nil, ErrInsufficientFunds
	}
	if !creditFits(balance.Sub(bet.Amount), decimal.Zero, bet.Amount.Add(bet.PotentialWin), decimal.Zero) {
		return nil, nil, ErrBalanceLimit
	}

	created, err := scanBet(tx.QueryRow(ctx, `
		INSERT INTO bets (user_id, stream_id, bet_type, description, amount, odds, potential_win, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending')
		RETURNING `+betColumns,
		bet.UserID, bet.StreamID, bet.BetType, bet.Description, bet.Amount, bet.Odds, bet.PotentialWin))
	if err != nil {
		return nil, nil, fmt.Errorf("insert bet: %w", err)
	}

	user, err := scanUser(tx.QueryRow(ctx, `
		UPDATE users AS u
		SET balance = balance - $2, total_bets = total_bets + 1, updated_at = NOW()
		WHERE u.id = $1
		RETURNING `+userColumns,
		bet.UserID, bet.Amount))
	if err != nil {
		return nil, nil, fmt.Errorf("debit balance: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit tx: %w", err)
	}
	return created, user, nil
}

// SettleBet only moves bets that are still pending; the bet row lock makes a
// concurrent second settlement wait and then observe the new status.
func (s *BetStore) SettleBet(ctx context.Context, id int64, status string, outcome *string, at time.Time) (*models.Bet, *models.User, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	bet, err := scanBet(tx.QueryRow(ctx, `SELECT `+betColumns+` FROM bets WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("lock bet: %w", err)
	}
	if !bet.IsPending() {
		return nil, nil, ErrBetAlreadySettled
	}

	credit, err := settlementCredit(bet, status)
	if err != nil {
		return nil, nil, err
	}
	winnings := settlementWinnings(bet, status)

	var balance, totalWinnings decimal.Decimal
	err = tx.QueryRow(ctx, `SELECT balance, total_winnings FROM users WHERE id = $1 FOR UPDATE`, bet.UserID).Scan(&balance, &totalWinnings)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("lock user balance: %w", err)
	}
	if !creditFits(balance, totalWinnings, credit, winnings) {
		return nil, nil, ErrBalanceLimit
	}

	settled, err := scanBet(tx.QueryRow(ctx, `
		UPDATE bets
		SET status = $2, outcome = COALESCE($3, outcome), settled_at = $4
		WHERE id = $1 AND status = 'pending'
		RETURNING `+betColumns,
		id, status, outcome, at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrBetAlreadySettled
		}
		return nil, nil, fmt.Errorf("update bet status: %w", err)
	}

	user, err := scanUser(tx.QueryRow(ctx, `
		UPDATE users AS u
		SET balance = balance + $2, total_winnings = total_winnings + $3, updated_at = $4
		WHERE u.id = $1
		RETURNING `+userColumns,
		bet.UserID, credit, winnings, at))
	if err != nil {
		return nil, nil, fmt.Errorf("credit balance: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit tx: %w", err)
	}
	return settled, user, nil
}

func (s *BetStore) GetBet(ctx context.Context, id int64) (*models.Bet, error) {
	bet, err := scanBet(s.db.QueryRow(ctx, `SELECT `+betColumns+` FROM bets WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get bet by id: %w", err)
	}
	return bet, nil
}

func (s *BetStore) ListUserBets(ctx context.Context, userID int64) ([]*models.Bet, error) {
	return s.listBets(ctx, `SELECT `+betColumns+` FROM bets WHERE user_id = $1 ORDER BY id DESC`, userID)
}

func (s *BetStore) ListStreamBets(ctx context.Context, streamID int64) ([]*models.Bet, error) {
	return s.listBets(ctx, `SELECT `+betColumns+` FROM bets WHERE stream_id = $1 ORDER BY id DESC`, streamID)
}

func (s *BetStore) listBets(ctx context.Context, query string, args ...any) ([]*models.Bet, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bets := []*models.Bet{}
	for rows.Next() {
		bet, err := scanBet(rows)
		if err != nil {
			return nil, err
		}
		bets = append(bets, bet)
	}
	return bets, rows.Err()
}
