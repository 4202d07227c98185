package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/avvvet/rookies-services/internal/comm"
	"github.com/avvvet/rookies-services/internal/metrics"
	"github.com/avvvet/rookies-services/internal/models"
	"github.com/avvvet/rookies-services/internal/store"
)

const MaxChatLength = 500

type ChatService struct {
	chats    store.ChatRepository
	users    store.UserRepository
	hub      Broadcaster
	backfill int
}

func NewChatService(chats store.ChatRepository, users store.UserRepository, hub Broadcaster, backfill int) *ChatService {
	if hub == nil {
		hub = nopBroadcaster{}
	}
	if backfill <= 0 {
		backfill = 50
	}
	return &ChatService{chats: chats, users: users, hub: hub, backfill: backfill}
}

// NormalizeChat trims content and caps it at MaxChatLength runes.
func NormalizeChat(content string) string {
	content = strings.TrimSpace(content)
	if r := []rune(content); len(r) > MaxChatLength {
		content = strings.TrimSpace(string(r[:MaxChatLength]))
	}
	return content
}

// Post persists a chat message from userID and broadcasts it to every
// connection on streamID, the sender's own included.
func (s *ChatService) Post(ctx context.Context, userID, streamID int64, content string) (*comm.ChatData, error) {
	content = NormalizeChat(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	msg, err := s.chats.CreateMessage(ctx, &models.ChatMessage{
		StreamID: streamID,
		UserID:   userID,
		Message:  content,
		Type:     models.ChatTypeMessage,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrStreamNotFound
		}
		return nil, fmt.Errorf("create message: %w", err)
	}
	metrics.ChatMessages.Inc()

	data := comm.NewChatData(msg, user)
	broadcast(s.hub, streamID, comm.TypeChat, data)
	return &data, nil
}

// History returns the latest messages of a stream, oldest first, each with
// its author embedded.
func (s *ChatService) History(ctx context.Context, streamID int64) ([]comm.ChatData, error) {
	msgs, err := s.chats.ListMessages(ctx, streamID, s.backfill)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	authors := make(map[int64]*models.User)
	out := make([]comm.ChatData, 0, len(msgs))
	for _, m := range msgs {
		u, ok := authors[m.UserID]
		if !ok {
			u, err = s.users.GetUser(ctx, m.UserID)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("get user: %w", err)
			}
			authors[m.UserID] = u
		}
		out = append(out, comm.NewChatData(m, u))
	}
	return out, nil
}
