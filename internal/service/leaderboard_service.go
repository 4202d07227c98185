package service

import (
	"context"
	"fmt"
	"time"

	"github.com/avvvet/rookies-services/internal/comm"
	"github.com/avvvet/rookies-services/internal/store"
)

type LeaderboardService struct {
	users store.UserRepository
	limit int
	loc   *time.Location
	now   func() time.Time
}

func NewLeaderboardService(users store.UserRepository, limit int, loc *time.Location) *LeaderboardService {
	if limit <= 0 {
		limit = 10
	}
	if loc == nil {
		loc = time.UTC
	}
	return &LeaderboardService{users: users, limit: limit, loc: loc, now: time.Now}
}

// DayBounds returns the start of the calendar day containing t in loc and
// the start of the next one.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// Daily ranks users by the net proceeds of bets settled today.
func (s *LeaderboardService) Daily(ctx context.Context) ([]comm.LeaderboardRow, error) {
	since, until := DayBounds(s.now(), s.loc)

	entries, err := s.users.Leaderboard(ctx, since.UTC(), until.UTC(), s.limit)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}

	rows := make([]comm.LeaderboardRow, 0, len(entries))
	for i, e := range entries {
		rows = append(rows, comm.LeaderboardRow{
			UserData:      *comm.NewUserData(e.User),
			Rank:          i + 1,
			DailyWinnings: e.DailyWinnings.StringFixed(2),
		})
	}
	return rows, nil
}
