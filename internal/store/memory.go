package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/avvvet/rookies-services/internal/models"
	"github.com/shopspring/decimal"
)

// MemoryStore keeps every table in process memory. It is used by tests and
// by STORE_MODE=memory for single-binary runs. One mutex guards all tables,
// which serializes balance mutations the same way the postgres row lock does.
type MemoryStore struct {
	mu sync.Mutex

	nextUserID    int64
	nextStreamID  int64
	nextBetID     int64
	nextMessageID int64
	nextStatsID   int64

	users       map[int64]*models.User
	usersByMail map[string]int64
	friendships []models.Friendship
	streams     map[int64]*models.Stream
	bets        map[int64]*models.Bet
	messages    map[int64][]*models.ChatMessage // stream -> messages in insert order
	stats       map[int64]*models.GameStats     // stream -> stats
	sessions    map[string]*models.Session
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[int64]*models.User),
		usersByMail: make(map[string]int64),
		streams:     make(map[int64]*models.Stream),
		bets:        make(map[int64]*models.Bet),
		messages:    make(map[int64][]*models.ChatMessage),
		stats:       make(map[int64]*models.GameStats),
		sessions:    make(map[string]*models.Session),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func copyUser(u *models.User) *models.User {
	c := *u
	return &c
}

func copyBet(b *models.Bet) *models.Bet {
	c := *b
	if b.Outcome != nil {
		o := *b.Outcome
		c.Outcome = &o
	}
	if b.SettledAt != nil {
		t := *b.SettledAt
		c.SettledAt = &t
	}
	return &c
}

func copyStream(s *models.Stream) *models.Stream {
	c := *s
	if s.Location != nil {
		l := *s.Location
		c.Location = &l
	}
	if s.EndedAt != nil {
		t := *s.EndedAt
		c.EndedAt = &t
	}
	return &c
}

// users

func (m *MemoryStore) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	email := normalizeEmail(user.Email)
	if _, exists := m.usersByMail[email]; exists {
		return nil, ErrEmailTaken
	}

	now := time.Now().UTC()
	m.nextUserID++
	u := copyUser(user)
	u.ID = m.nextUserID
	u.Email = email
	u.CreatedAt = now
	u.UpdatedAt = now
	u.LastSeen = now

	m.users[u.ID] = u
	m.usersByMail[email] = u.ID
	return copyUser(u), nil
}

func (m *MemoryStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyUser(u), nil
}

func (m *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.usersByMail[normalizeEmail(email)]
	if !ok {
		return nil, ErrNotFound
	}
	return copyUser(m.users[id]), nil
}

func (m *MemoryStore) SetOnline(ctx context.Context, id int64, online bool, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.IsOnline = online
	u.LastSeen = at
	u.UpdatedAt = at
	return nil
}

func (m *MemoryStore) ListFriends(ctx context.Context, userID int64) ([]*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	friends := []*models.User{}
	for _, f := range m.friendships {
		if f.UserID != userID || f.Status != models.FriendshipAccepted {
			continue
		}
		if u, ok := m.users[f.FriendID]; ok {
			friends = append(friends, copyUser(u))
		}
	}
	sort.Slice(friends, func(i, j int) bool { return friends[i].ID < friends[j].ID })
	return friends, nil
}

func (m *MemoryStore) AddFriend(ctx context.Context, userID, friendID int64) error {
	if userID == friendID {
		return ErrSelfFriendship
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[userID]; !ok {
		return ErrNotFound
	}
	if _, ok := m.users[friendID]; !ok {
		return ErrNotFound
	}
	for _, f := range m.friendships {
		if f.UserID == userID && f.FriendID == friendID {
			return ErrFriendshipExists
		}
	}

	now := time.Now().UTC()
	for _, pair := range [][2]int64{{userID, friendID}, {friendID, userID}} {
		m.friendships = append(m.friendships, models.Friendship{
			ID:        int64(len(m.friendships) + 1),
			UserID:    pair[0],
			FriendID:  pair[1],
			Status:    models.FriendshipAccepted,
			CreatedAt: now,
		})
	}
	return nil
}

func (m *MemoryStore) Leaderboard(ctx context.Context, since, until time.Time, limit int) ([]models.LeaderboardEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	totals := make(map[int64]decimal.Decimal)
	for _, b := range m.bets {
		if b.SettledAt == nil || b.SettledAt.Before(since) || !b.SettledAt.Before(until) {
			continue
		}
		totals[b.UserID] = totals[b.UserID].Add(b.NetProceeds())
	}

	entries := make([]models.LeaderboardEntry, 0, len(totals))
	for userID, total := range totals {
		u, ok := m.users[userID]
		if !ok {
			continue
		}
		entries = append(entries, models.LeaderboardEntry{User: copyUser(u), DailyWinnings: total})
	}
	sort.Slice(entries, func(i, j int) bool {
		if c := entries[i].DailyWinnings.Cmp(entries[j].DailyWinnings); c != 0 {
			return c > 0
		}
		return entries[i].User.ID < entries[j].User.ID
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// streams

func (m *MemoryStore) CreateStream(ctx context.Context, stream *models.Stream) (*models.Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[stream.UserID]; !ok {
		return nil, ErrNotFound
	}

	m.nextStreamID++
	s := copyStream(stream)
	s.ID = m.nextStreamID
	s.CreatedAt = time.Now().UTC()
	m.streams[s.ID] = s
	return copyStream(s), nil
}

func (m *MemoryStore) GetStream(ctx context.Context, id int64) (*models.Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.streams[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyStream(s), nil
}

func (m *MemoryStore) ListLiveStreams(ctx context.Context) ([]*models.Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	live := []*models.Stream{}
	for _, s := range m.streams {
		if s.IsLive {
			live = append(live, copyStream(s))
		}
	}
	sort.Slice(live, func(i, j int) bool { return live[i].ID < live[j].ID })
	return live, nil
}

func (m *MemoryStore) SetLive(ctx context.Context, id int64, live bool, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.streams[id]
	if !ok {
		return ErrNotFound
	}
	s.IsLive = live
	if live {
		s.EndedAt = nil
	} else {
		ended := at
		s.EndedAt = &ended
	}
	return nil
}

func (m *MemoryStore) SetViewerCount(ctx context.Context, id int64, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.streams[id]
	if !ok {
		return ErrNotFound
	}
	s.ViewerCount = count
	return nil
}

// bets

func (m *MemoryStore) PlaceBet(ctx context.Context, bet *models.Bet) (*models.Bet, *models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[bet.UserID]
	if !ok {
		return nil, nil, ErrNotFound
	}
	if _, ok := m.streams[bet.StreamID]; !ok {
		return nil, nil, ErrNotFound
	}
	if u.Balance.LessThan(bet.Amount) {
		return nil, nil, ErrInsufficientFunds
	}
	if !creditFits(u.Balance.Sub(bet.Amount), decimal.Zero, bet.Amount.Add(bet.PotentialWin), decimal.Zero) {
		return nil, nil, ErrBalanceLimit
	}

	now := time.Now().UTC()
	u.Balance = u.Balance.Sub(bet.Amount)
	u.TotalBets++
	u.UpdatedAt = now

	m.nextBetID++
	b := copyBet(bet)
	b.ID = m.nextBetID
	b.Status = models.BetPending
	b.Outcome = nil
	b.SettledAt = nil
	b.PlacedAt = now
	m.bets[b.ID] = b

	return copyBet(b), copyUser(u), nil
}

func (m *MemoryStore) SettleBet(ctx context.Context, id int64, status string, outcome *string, at time.Time) (*models.Bet, *models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bets[id]
	if !ok {
		return nil, nil, ErrNotFound
	}
	if !b.IsPending() {
		return nil, nil, ErrBetAlreadySettled
	}
	credit, err := settlementCredit(b, status)
	if err != nil {
		return nil, nil, err
	}
	u, ok := m.users[b.UserID]
	if !ok {
		return nil, nil, ErrNotFound
	}
	if !creditFits(u.Balance, u.TotalWinnings, credit, settlementWinnings(b, status)) {
		return nil, nil, ErrBalanceLimit
	}

	settled := at
	b.Status = status
	b.SettledAt = &settled
	if outcome != nil {
		o := *outcome
		b.Outcome = &o
	}

	u.Balance = u.Balance.Add(credit)
	u.TotalWinnings = u.TotalWinnings.Add(settlementWinnings(b, status))
	u.UpdatedAt = at

	return copyBet(b), copyUser(u), nil
}

func (m *MemoryStore) GetBet(ctx context.Context, id int64) (*models.Bet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyBet(b), nil
}

func (m *MemoryStore) ListUserBets(ctx context.Context, userID int64) ([]*models.Bet, error) {
	return m.listBets(func(b *models.Bet) bool { return b.UserID == userID }), nil
}

func (m *MemoryStore) ListStreamBets(ctx context.Context, streamID int64) ([]*models.Bet, error) {
	return m.listBets(func(b *models.Bet) bool { return b.StreamID == streamID }), nil
}

// listBets returns matching bets, newest first.
func (m *MemoryStore) listBets(match func(*models.Bet) bool) []*models.Bet {
	m.mu.Lock()
	defer m.mu.Unlock()

	bets := []*models.Bet{}
	for _, b := range m.bets {
		if match(b) {
			bets = append(bets, copyBet(b))
		}
	}
	sort.Slice(bets, func(i, j int) bool { return bets[i].ID > bets[j].ID })
	return bets
}

// chat

func (m *MemoryStore) CreateMessage(ctx context.Context, msg *models.ChatMessage) (*models.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.streams[msg.StreamID]; !ok {
		return nil, ErrNotFound
	}

	m.nextMessageID++
	c := *msg
	c.ID = m.nextMessageID
	c.CreatedAt = time.Now().UTC()
	if c.Type == "" {
		c.Type = models.ChatTypeMessage
	}
	m.messages[c.StreamID] = append(m.messages[c.StreamID], &c)

	out := c
	return &out, nil
}

func (m *MemoryStore) ListMessages(ctx context.Context, streamID int64, limit int) ([]*models.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := m.messages[streamID]
	start := 0
	if limit > 0 && len(all) > limit {
		start = len(all) - limit
	}

	out := make([]*models.ChatMessage, 0, len(all)-start)
	for _, msg := range all[start:] {
		c := *msg
		out = append(out, &c)
	}
	return out, nil
}

// stats

func (m *MemoryStore) GetStats(ctx context.Context, streamID int64) (*models.GameStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.stats[streamID]
	if !ok {
		return nil, ErrNotFound
	}
	c := *s
	return &c, nil
}

func (m *MemoryStore) UpsertStats(ctx context.Context, stats *models.GameStats) (*models.GameStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.streams[stats.StreamID]; !ok {
		return nil, ErrNotFound
	}

	c := *stats
	if existing, ok := m.stats[stats.StreamID]; ok {
		c.ID = existing.ID
		if c.Score == nil {
			c.Score = existing.Score
		}
		if c.Duration == nil {
			c.Duration = existing.Duration
		}
		if c.Points == nil {
			c.Points = existing.Points
		}
		if !c.Distance.Valid {
			c.Distance = existing.Distance
		}
	} else {
		m.nextStatsID++
		c.ID = m.nextStatsID
	}
	c.LastUpdated = time.Now().UTC()
	m.stats[c.StreamID] = &c

	out := c
	return &out, nil
}

// sessions

func (m *MemoryStore) CreateSession(ctx context.Context, session *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := *session
	m.sessions[c.ID] = &c
	return nil
}

func (m *MemoryStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *s
	return &c, nil
}

func (m *MemoryStore) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, id)
	return nil
}

func (m *MemoryStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, s := range m.sessions {
		if s.Expired(now) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}
