package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avvvet/rookies-services/internal/models"
	"github.com/avvvet/rookies-services/internal/store"
	"github.com/google/uuid"
)

type CreateStreamInput struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Sport       string           `json:"sport"`
	Location    *models.Location `json:"location"`
}

type StreamService struct {
	streams store.StreamRepository
	now     func() time.Time
}

func NewStreamService(streams store.StreamRepository) *StreamService {
	return &StreamService{streams: streams, now: time.Now}
}

func (s *StreamService) ListLive(ctx context.Context) ([]*models.Stream, error) {
	return s.streams.ListLiveStreams(ctx)
}

func (s *StreamService) Get(ctx context.Context, id int64) (*models.Stream, error) {
	stream, err := s.streams.GetStream(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrStreamNotFound
		}
		return nil, fmt.Errorf("get stream: %w", err)
	}
	return stream, nil
}

// Create opens a live stream owned by ownerID.
func (s *StreamService) Create(ctx context.Context, ownerID int64, in CreateStreamInput) (*models.Stream, error) {
	v := newValidation("Invalid stream data")
	title := strings.TrimSpace(in.Title)
	if title == "" {
		v.Add("title", "required")
	} else if len(title) > 200 {
		v.Add("title", "too long")
	}
	sport := strings.ToLower(strings.TrimSpace(in.Sport))
	if sport == "" {
		sport = "basketball"
	}
	if in.Location != nil {
		if in.Location.Lat < -90 || in.Location.Lat > 90 {
			v.Add("location.lat", "out of range")
		}
		if in.Location.Lng < -180 || in.Location.Lng > 180 {
			v.Add("location.lng", "out of range")
		}
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	stream, err := s.streams.CreateStream(ctx, &models.Stream{
		UserID:      ownerID,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Sport:       sport,
		IsLive:      true,
		Location:    in.Location,
		StreamKey:   uuid.NewString(),
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("create stream: %w", err)
	}
	return stream, nil
}

// SetLive toggles liveness; only the owner may do so.
func (s *StreamService) SetLive(ctx context.Context, callerID, streamID int64, live bool) (*models.Stream, error) {
	stream, err := s.Get(ctx, streamID)
	if err != nil {
		return nil, err
	}
	if stream.UserID != callerID {
		return nil, ErrForbidden
	}
	if err := s.streams.SetLive(ctx, streamID, live, s.now().UTC()); err != nil {
		return nil, fmt.Errorf("set live: %w", err)
	}
	return s.Get(ctx, streamID)
}

func (s *StreamService) SetViewerCount(ctx context.Context, streamID int64, count int) error {
	if err := s.streams.SetViewerCount(ctx, streamID, count); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("set viewer count: %w", err)
	}
	return nil
}

// BetOptions lists the markets open on a stream.
func (s *StreamService) BetOptions(ctx context.Context, streamID int64) ([]BetOption, error) {
	if _, err := s.Get(ctx, streamID); err != nil {
		return nil, err
	}
	return BetOptions(), nil
}
