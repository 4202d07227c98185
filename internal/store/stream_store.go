package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avvvet/rookies-services/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const streamColumns = `id, user_id, title, COALESCE(description, ''), is_live, viewer_count, sport,
	location, COALESCE(stream_key, ''), created_at, ended_at`

type StreamStore struct {
	db *pgxpool.Pool
}

func NewStreamStore(db *pgxpool.Pool) *StreamStore {
	return &StreamStore{db: db}
}

func scanStream(row pgx.Row) (*models.Stream, error) {
	s := &models.Stream{}
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.Title,
		&s.Description,
		&s.IsLive,
		&s.ViewerCount,
		&s.Sport,
		&s.Location,
		&s.StreamKey,
		&s.CreatedAt,
		&s.EndedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *StreamStore) CreateStream(ctx context.Context, stream *models.Stream) (*models.Stream, error) {
	query := `
		INSERT INTO streams (user_id, title, description, is_live, sport, location, stream_key)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, NULLIF($7, ''))
		RETURNING ` + streamColumns

	created, err := scanStream(s.db.QueryRow(ctx, query,
		stream.UserID, stream.Title, stream.Description, stream.IsLive, stream.Sport, stream.Location, stream.StreamKey))
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}
	return created, nil
}

func (s *StreamStore) GetStream(ctx context.Context, id int64) (*models.Stream, error) {
	stream, err := scanStream(s.db.QueryRow(ctx, `SELECT `+streamColumns+` FROM streams WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get stream by id: %w", err)
	}
	return stream, nil
}

func (s *StreamStore) ListLiveStreams(ctx context.Context) ([]*models.Stream, error) {
	rows, err := s.db.Query(ctx, `SELECT `+streamColumns+` FROM streams WHERE is_live = TRUE ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	streams := []*models.Stream{}
	for rows.Next() {
		stream, err := scanStream(rows)
		if err != nil {
			return nil, err
		}
		streams = append(streams, stream)
	}
	return streams, rows.Err()
}

func (s *StreamStore) SetLive(ctx context.Context, id int64, live bool, at time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE streams
		SET is_live = $2, ended_at = CASE WHEN $2 THEN NULL ELSE $3::timestamptz END
		WHERE id = $1
	`, id, live, at)
	if err != nil {
		return fmt.Errorf("failed to update stream status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *StreamStore) SetViewerCount(ctx context.Context, id int64, count int) error {
	tag, err := s.db.Exec(ctx, `UPDATE streams SET viewer_count = $2 WHERE id = $1`, id, count)
	if err != nil {
		return fmt.Errorf("failed to update viewer count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
