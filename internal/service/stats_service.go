package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/avvvet/rookies-services/internal/comm"
	"github.com/avvvet/rookies-services/internal/models"
	"github.com/avvvet/rookies-services/internal/store"
	"github.com/shopspring/decimal"
)

// maxDistance is the largest value a decimal(5,2) column holds.
var maxDistance = decimal.RequireFromString("999.99")

// StatsInput is a partial update; nil fields keep their stored value.
type StatsInput struct {
	Score    *string          `json:"score"`
	Duration *int             `json:"duration"`
	Points   *int             `json:"points"`
	Distance *decimal.Decimal `json:"distance"`
}

type StatsService struct {
	stats   store.StatsRepository
	streams store.StreamRepository
	hub     Broadcaster
}

func NewStatsService(stats store.StatsRepository, streams store.StreamRepository, hub Broadcaster) *StatsService {
	if hub == nil {
		hub = nopBroadcaster{}
	}
	return &StatsService{stats: stats, streams: streams, hub: hub}
}

func (s *StatsService) Get(ctx context.Context, streamID int64) (*models.GameStats, error) {
	st, err := s.stats.GetStats(ctx, streamID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoStats
		}
		return nil, fmt.Errorf("get stats: %w", err)
	}
	return st, nil
}

func (in StatsInput) validate() error {
	v := newValidation("Invalid stats data")
	if in.Duration != nil && (*in.Duration < 0 || *in.Duration > math.MaxInt32) {
		v.Add("duration", "must be between 0 and 2147483647")
	}
	if in.Points != nil && (*in.Points < 0 || *in.Points > math.MaxInt32) {
		v.Add("points", "must be between 0 and 2147483647")
	}
	if in.Distance != nil {
		if in.Distance.IsNegative() || in.Distance.GreaterThan(maxDistance) {
			v.Add("distance", "must be between 0 and 999.99")
		}
	}
	if in.Score != nil && len(*in.Score) > 64 {
		v.Add("score", "too long")
	}
	return v.Err()
}

// Update merges in into the stream's stats row and broadcasts the result as
// stats_update. Only the stream owner may update.
func (s *StatsService) Update(ctx context.Context, callerID, streamID int64, in StatsInput) (*models.GameStats, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	stream, err := s.streams.GetStream(ctx, streamID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrStreamNotFound
		}
		return nil, fmt.Errorf("get stream: %w", err)
	}
	if stream.UserID != callerID {
		return nil, ErrForbidden
	}

	// unset fields stay nil and keep their stored value
	next := &models.GameStats{StreamID: streamID}
	if in.Score != nil {
		score := strings.TrimSpace(*in.Score)
		next.Score = &score
	}
	if in.Duration != nil {
		d := *in.Duration
		next.Duration = &d
	}
	if in.Points != nil {
		p := *in.Points
		next.Points = &p
	}
	if in.Distance != nil {
		next.Distance = decimal.NewNullDecimal(in.Distance.Round(2))
	}

	saved, err := s.stats.UpsertStats(ctx, next)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrStreamNotFound
		}
		return nil, fmt.Errorf("upsert stats: %w", err)
	}

	broadcast(s.hub, streamID, comm.TypeStatsUpdate, comm.NewStatsData(saved))
	return saved, nil
}
