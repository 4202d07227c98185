package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/avvvet/rookies-services/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const statsColumns = `id, stream_id, score, duration, points, distance, last_updated`

type StatsStore struct {
	db *pgxpool.Pool
}

func NewStatsStore(db *pgxpool.Pool) *StatsStore {
	return &StatsStore{db: db}
}

func scanStats(row pgx.Row) (*models.GameStats, error) {
	gs := &models.GameStats{}
	err := row.Scan(
		&gs.ID,
		&gs.StreamID,
		&gs.Score,
		&gs.Duration,
		&gs.Points,
		&gs.Distance,
		&gs.LastUpdated,
	)
	if err != nil {
		return nil, err
	}
	return gs, nil
}

func (s *StatsStore) GetStats(ctx context.Context, streamID int64) (*models.GameStats, error) {
	gs, err := scanStats(s.db.QueryRow(ctx, `SELECT `+statsColumns+` FROM game_stats WHERE stream_id = $1`, streamID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get game stats: %w", err)
	}
	return gs, nil
}

// UpsertStats merges in a single statement, so concurrent partial updates
// of different fields do not overwrite each other.
func (s *StatsStore) UpsertStats(ctx context.Context, stats *models.GameStats) (*models.GameStats, error) {
	gs, err := scanStats(s.db.QueryRow(ctx, `
		INSERT INTO game_stats (stream_id, score, duration, points, distance, last_updated)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (stream_id) DO UPDATE
		SET score = COALESCE(EXCLUDED.score, game_stats.score),
			duration = COALESCE(EXCLUDED.duration, game_stats.duration),
			points = COALESCE(EXCLUDED.points, game_stats.points),
			distance = COALESCE(EXCLUDED.distance, game_stats.distance),
			last_updated = NOW()
		RETURNING `+statsColumns,
		stats.StreamID, stats.Score, stats.Duration, stats.Points, stats.Distance))
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to upsert game stats: %w", err)
	}
	return gs, nil
}
