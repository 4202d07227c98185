package store

import (
	"context"
	"fmt"

	"github.com/avvvet/rookies-services/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ChatStore struct {
	db *pgxpool.Pool
}

func NewChatStore(db *pgxpool.Pool) *ChatStore {
	return &ChatStore{db: db}
}

func (s *ChatStore) CreateMessage(ctx context.Context, msg *models.ChatMessage) (*models.ChatMessage, error) {
	msgType := msg.Type
	if msgType == "" {
		msgType = models.ChatTypeMessage
	}

	created := &models.ChatMessage{}
	err := s.db.QueryRow(ctx, `
		INSERT INTO chat_messages (stream_id, user_id, message, type)
		VALUES ($1, $2, $3, $4)
		RETURNING id, stream_id, user_id, message, type, created_at
	`, msg.StreamID, msg.UserID, msg.Message, msgType).Scan(
		&created.ID,
		&created.StreamID,
		&created.UserID,
		&created.Message,
		&created.Type,
		&created.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to create chat message: %w", err)
	}
	return created, nil
}

func (s *ChatStore) ListMessages(ctx context.Context, streamID int64, limit int) ([]*models.ChatMessage, error) {
	// newest limit rows, flipped back to chronological order
	rows, err := s.db.Query(ctx, `
		SELECT id, stream_id, user_id, message, type, created_at
		FROM (
			SELECT id, stream_id, user_id, message, type, created_at
			FROM chat_messages
			WHERE stream_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) latest
		ORDER BY created_at ASC, id ASC
	`, streamID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []*models.ChatMessage{}
	for rows.Next() {
		m := &models.ChatMessage{}
		if err := rows.Scan(&m.ID, &m.StreamID, &m.UserID, &m.Message, &m.Type, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
