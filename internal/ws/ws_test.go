package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/avvvet/rookies-services/internal/auth"
	"github.com/avvvet/rookies-services/internal/comm"
	"github.com/avvvet/rookies-services/internal/models"
	"github.com/avvvet/rookies-services/internal/service"
	"github.com/avvvet/rookies-services/internal/store"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	server   *httptest.Server
	store    *store.MemoryStore
	auth     *auth.Authenticator
	ws       *Ws
	users    *service.UserService
	streamA  *models.Stream
	streamB  *models.Stream
	alice    *models.User
	bob      *models.User
	aliceTok string
	bobTok   string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithConfig(t, Config{PingPeriod: time.Second, PongWait: 5 * time.Second, SendBuffer: 64})
}

func newHarnessWithConfig(t *testing.T, cfg Config) *harness {
	t.Helper()
	ctx := context.Background()
	h := &harness{store: store.NewMemoryStore()}
	h.auth = auth.New("ws-test", h.store, time.Hour)

	registry := NewRegistry(nil)
	h.users = service.NewUserService(h.store, decimal.NewFromInt(100))
	streams := service.NewStreamService(h.store)
	chat := service.NewChatService(h.store, h.store, registry, 50)
	stats := service.NewStatsService(h.store, h.store, registry)

	h.ws = NewWs(registry, cfg, Deps{
		Sessions: h.auth,
		Chat:     chat,
		Stats:    stats,
		Streams:  streams,
		Presence: h.users,
	})

	var err error
	h.alice, err = h.users.Signup(ctx, service.SignupInput{Email: "alice@example.com", Password: "secret1"})
	require.NoError(t, err)
	h.bob, err = h.users.Signup(ctx, service.SignupInput{Email: "bob@example.com", Password: "secret1"})
	require.NoError(t, err)
	h.streamA, err = streams.Create(ctx, h.alice.ID, service.CreateStreamInput{Title: "A"})
	require.NoError(t, err)
	h.streamB, err = streams.Create(ctx, h.alice.ID, service.CreateStreamInput{Title: "B"})
	require.NoError(t, err)

	score := "3-2"
	_, err = stats.Update(ctx, h.alice.ID, h.streamA.ID, service.StatsInput{Score: &score})
	require.NoError(t, err)

	h.aliceTok, _, err = h.auth.Issue(ctx, h.alice.ID)
	require.NoError(t, err)
	h.bobTok, _, err = h.auth.Issue(ctx, h.bob.ID)
	require.NoError(t, err)

	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	h.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, _ := h.auth.FromRequest(r)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		go h.ws.Serve(conn, session)
	}))
	t.Cleanup(h.server.Close)
	return h
}

func (h *harness) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.server.URL, "http")
	if token != "" {
		url += "?token=" + token
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func write(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(v))
}

func read(t *testing.T, conn *websocket.Conn) comm.WSMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var m comm.WSMessage
	require.NoError(t, conn.ReadJSON(&m))
	return m
}

// readUntil skips frames until one of msgType arrives.
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) comm.WSMessage {
	t.Helper()
	for i := 0; i < 10; i++ {
		if m := read(t, conn); m.Type == msgType {
			return m
		}
	}
	t.Fatalf("no %s frame received", msgType)
	return comm.WSMessage{}
}

func join(t *testing.T, conn *websocket.Conn, streamID int64) {
	t.Helper()
	write(t, conn, map[string]any{"type": "auth", "streamId": streamID})
	require.Equal(t, comm.TypeAuthOK, read(t, conn).Type)
	require.Equal(t, comm.TypeChatHistory, read(t, conn).Type)
}

func TestAuthSendsBackfill(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t, h.aliceTok)

	write(t, conn, map[string]any{"type": "auth", "userId": h.alice.ID, "streamId": h.streamA.ID})
	assert.Equal(t, comm.TypeAuthOK, read(t, conn).Type)

	history := read(t, conn)
	assert.Equal(t, comm.TypeChatHistory, history.Type)
	assert.JSONEq(t, "[]", string(history.Data))

	stats := read(t, conn)
	require.Equal(t, comm.TypeStatsUpdate, stats.Type)
	var data comm.StatsData
	require.NoError(t, json.Unmarshal(stats.Data, &data))
	assert.Equal(t, "3-2", *data.Score)

	require.Eventually(t, func() bool {
		u, err := h.store.GetUser(context.Background(), h.alice.ID)
		s, _ := h.store.GetStream(context.Background(), h.streamA.ID)
		return err == nil && u.IsOnline && s.ViewerCount == 1
	}, 2*time.Second, 20*time.Millisecond)
}

func TestChatFanOutByStream(t *testing.T) {
	h := newHarness(t)
	sender := h.dial(t, h.aliceTok)
	sameStream := h.dial(t, h.bobTok)
	otherStream := h.dial(t, h.bobTok)

	join(t, sender, h.streamA.ID)
	join(t, sameStream, h.streamA.ID)
	join(t, otherStream, h.streamB.ID)

	write(t, sender, map[string]any{"type": "chat", "content": "  nice shot  "})

	for _, conn := range []*websocket.Conn{sender, sameStream} {
		m := readUntil(t, conn, comm.TypeChat)
		var chat comm.ChatData
		require.NoError(t, json.Unmarshal(m.Data, &chat))
		assert.Equal(t, "nice shot", chat.Message)
		assert.Equal(t, h.alice.ID, chat.User.ID)
		assert.NotContains(t, string(m.Data), "passwordHash")
	}

	// the other stream only ever sees its own traffic
	write(t, otherStream, map[string]any{"type": "ping"})
	assert.Equal(t, comm.TypePong, readUntil(t, otherStream, comm.TypePong).Type)
}

func TestChatBeforeAuthIsIgnored(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t, h.aliceTok)

	write(t, conn, map[string]any{"type": "chat", "content": "too early"})
	write(t, conn, map[string]any{"type": "ping"})
	assert.Equal(t, comm.TypePong, read(t, conn).Type)

	msgs, err := h.store.ListMessages(context.Background(), h.streamA.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestBadFramesKeepConnectionOpen(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t, h.aliceTok)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	m := read(t, conn)
	assert.Equal(t, comm.TypeError, m.Type)
	assert.Equal(t, "Invalid message format", m.Error)

	write(t, conn, map[string]any{"type": "dance"})
	assert.Equal(t, comm.TypeError, read(t, conn).Type)

	write(t, conn, map[string]any{"type": "auth", "streamId": 999})
	assert.Equal(t, "Stream not found", read(t, conn).Error)

	write(t, conn, map[string]any{"type": "ping"})
	assert.Equal(t, comm.TypePong, read(t, conn).Type)
}

func TestAuthIdentityComesFromSession(t *testing.T) {
	h := newHarness(t)

	anon := h.dial(t, "")
	write(t, anon, map[string]any{"type": "auth", "userId": h.alice.ID, "streamId": h.streamA.ID})
	assert.Equal(t, "Not authenticated", read(t, anon).Error)

	// a frame token authenticates an anonymous upgrade
	write(t, anon, map[string]any{"type": "auth", "streamId": h.streamA.ID, "token": h.bobTok})
	assert.Equal(t, comm.TypeAuthOK, read(t, anon).Type)

	spoof := h.dial(t, h.bobTok)
	write(t, spoof, map[string]any{"type": "auth", "userId": h.alice.ID, "streamId": h.streamA.ID})
	assert.Equal(t, "User does not match session", read(t, spoof).Error)

	write(t, spoof, map[string]any{"type": "auth", "streamId": h.streamA.ID, "token": "forged"})
	assert.Equal(t, "Invalid session", read(t, spoof).Error)
}

func TestDisconnectMarksOfflineAfterLastConnection(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first := h.dial(t, h.bobTok)
	second := h.dial(t, h.bobTok)
	join(t, first, h.streamA.ID)
	join(t, second, h.streamA.ID)

	online := func() bool {
		u, err := h.store.GetUser(ctx, h.bob.ID)
		return err == nil && u.IsOnline
	}
	require.Eventually(t, online, 2*time.Second, 20*time.Millisecond)

	first.Close()
	require.Eventually(t, func() bool { return h.ws.Registry().StreamCount(h.streamA.ID) == 1 }, 2*time.Second, 20*time.Millisecond)
	assert.True(t, online())

	second.Close()
	require.Eventually(t, func() bool { return !online() }, 2*time.Second, 20*time.Millisecond)

	s, err := h.store.GetStream(ctx, h.streamA.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, s.ViewerCount)
}

func TestSilentConnectionIsReaped(t *testing.T) {
	h := newHarnessWithConfig(t, Config{PingPeriod: 100 * time.Millisecond, PongWait: 300 * time.Millisecond, SendBuffer: 64})
	ctx := context.Background()

	// the client stops reading after joining, so pings go unanswered
	conn := h.dial(t, h.bobTok)
	join(t, conn, h.streamB.ID)
	require.Equal(t, 1, h.ws.Registry().Len())

	u, err := h.store.GetUser(ctx, h.bob.ID)
	require.NoError(t, err)
	require.True(t, u.IsOnline)

	require.Eventually(t, func() bool { return h.ws.Registry().Len() == 0 }, 3*time.Second, 20*time.Millisecond)
	require.Eventually(t, func() bool {
		u, err := h.store.GetUser(ctx, h.bob.ID)
		return err == nil && !u.IsOnline
	}, 2*time.Second, 20*time.Millisecond)

	s, err := h.store.GetStream(ctx, h.streamB.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, s.ViewerCount)
}

func TestStaleDepartureKeepsReconnectedUserOnline(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	conn := h.dial(t, h.bobTok)
	join(t, conn, h.streamA.ID)

	// departure of an earlier connection whose snapshot saw no other
	// connection, delivered after the user already reconnected
	h.ws.handleDeparture(Departure{
		Association: Association{UserID: h.bob.ID, StreamID: h.streamA.ID},
	})

	u, err := h.store.GetUser(ctx, h.bob.ID)
	require.NoError(t, err)
	assert.True(t, u.IsOnline)

	s, err := h.store.GetStream(ctx, h.streamA.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, s.ViewerCount)
}
