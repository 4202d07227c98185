package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avvvet/rookies-services/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `u.id, u.email, u.password, COALESCE(u.first_name, ''), COALESCE(u.last_name, ''),
	COALESCE(u.avatar, ''), u.balance, u.is_online, u.last_seen, u.total_winnings, u.total_bets,
	u.created_at, u.updated_at`

type UserStore struct {
	db *pgxpool.Pool
}

func NewUserStore(db *pgxpool.Pool) *UserStore {
	return &UserStore{db: db}
}

func scanUser(row pgx.Row, extra ...any) (*models.User, error) {
	u := &models.User{}
	dest := []any{
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.Avatar,
		&u.Balance,
		&u.IsOnline,
		&u.LastSeen,
		&u.TotalWinnings,
		&u.TotalBets,
		&u.CreatedAt,
		&u.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

func (s *UserStore) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO users AS u (email, password, first_name, last_name, avatar, balance)
		VALUES (LOWER(TRIM($1)), $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), $6)
		RETURNING ` + userColumns

	u, err := scanUser(s.db.QueryRow(ctx, query,
		user.Email, user.PasswordHash, user.FirstName, user.LastName, user.Avatar, user.Balance))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("could not create user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users u WHERE u.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users u WHERE u.email = LOWER(TRIM($1))`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return u, nil
}

func (s *UserStore) SetOnline(ctx context.Context, id int64, online bool, at time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE users SET is_online = $2, last_seen = $3, updated_at = $3
		WHERE id = $1
	`, id, online, at)
	if err != nil {
		return fmt.Errorf("failed to update online status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *UserStore) ListFriends(ctx context.Context, userID int64) ([]*models.User, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+userColumns+`
		FROM friendships f
		JOIN users u ON u.id = f.friend_id
		WHERE f.user_id = $1 AND f.status = 'accepted'
		ORDER BY u.id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	friends := []*models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		friends = append(friends, u)
	}
	return friends, rows.Err()
}

// AddFriend stores an accepted friendship in both directions.
func (s *UserStore) AddFriend(ctx context.Context, userID, friendID int64) error {
	if userID == friendID {
		return ErrSelfFriendship
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, pair := range [][2]int64{{userID, friendID}, {friendID, userID}} {
		_, err := tx.Exec(ctx, `
			INSERT INTO friendships (user_id, friend_id, status)
			VALUES ($1, $2, 'accepted')
		`, pair[0], pair[1])
		if err != nil {
			switch {
			case isUniqueViolation(err):
				return ErrFriendshipExists
			case isForeignKeyViolation(err):
				return ErrNotFound
			}
			return fmt.Errorf("failed to add friend: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (s *UserStore) Leaderboard(ctx context.Context, since, until time.Time, limit int) ([]models.LeaderboardEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+userColumns+`,
			SUM(CASE b.status
				WHEN 'won' THEN b.potential_win
				WHEN 'lost' THEN -b.amount
				ELSE 0
			END) AS daily_winnings
		FROM bets b
		JOIN users u ON u.id = b.user_id
		WHERE b.settled_at >= $1 AND b.settled_at < $2
		GROUP BY u.id
		ORDER BY daily_winnings DESC, u.id ASC
		LIMIT $3
	`, since, until, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []models.LeaderboardEntry{}
	for rows.Next() {
		var entry models.LeaderboardEntry
		u, err := scanUser(rows, &entry.DailyWinnings)
		if err != nil {
			return nil, err
		}
		entry.User = u
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
