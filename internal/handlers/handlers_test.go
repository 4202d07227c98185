package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/avvvet/rookies-services/internal/auth"
	"github.com/avvvet/rookies-services/internal/comm"
	"github.com/avvvet/rookies-services/internal/service"
	"github.com/avvvet/rookies-services/internal/store"
	"github.com/avvvet/rookies-services/internal/ws"
	"github.com/go-chi/chi"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type api struct {
	t      *testing.T
	server *httptest.Server
}

func newAPI(t *testing.T) *api {
	t.Helper()
	m := store.NewMemoryStore()
	a := auth.New("handlers-test", m, time.Hour)
	registry := ws.NewRegistry(nil)

	svc := Services{
		Users:       service.NewUserService(m, decimal.NewFromInt(100)),
		Streams:     service.NewStreamService(m),
		Bets:        service.NewBetService(m, m, registry, nil),
		Chat:        service.NewChatService(m, m, registry, 50),
		Stats:       service.NewStatsService(m, m, registry),
		Leaderboard: service.NewLeaderboardService(m, 10, time.UTC),
	}
	socket := ws.NewWs(registry, ws.Config{PingPeriod: time.Second, PongWait: 5 * time.Second}, ws.Deps{
		Sessions: a,
		Chat:     svc.Chat,
		Stats:    svc.Stats,
		Streams:  svc.Streams,
		Presence: svc.Users,
	})

	h := NewHandler(a, svc, socket, []string{"http://localhost:5173"}, false)
	r := chi.NewRouter()
	h.SetRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &api{t: t, server: srv}
}

type user struct {
	ID     int64
	Token  string
	client *http.Client
}

func (a *api) do(u *user, method, path string, body any) (int, []byte) {
	a.t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, a.server.URL+path, rd)
	require.NoError(a.t, err)
	req.Header.Set("Content-Type", "application/json")

	client := http.DefaultClient
	if u != nil {
		client = u.client
	}
	res, err := client.Do(req)
	require.NoError(a.t, err)
	defer res.Body.Close()
	out, err := io.ReadAll(res.Body)
	require.NoError(a.t, err)
	return res.StatusCode, out
}

// signup registers a user whose client keeps the session cookie.
func (a *api) signup(email string) *user {
	a.t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(a.t, err)
	u := &user{client: &http.Client{Jar: jar}}

	code, body := a.do(u, http.MethodPost, "/api/signup", map[string]string{"email": email, "password": "secret1", "firstName": "Test"})
	require.Equal(a.t, http.StatusOK, code, string(body))

	var summary comm.UserSummary
	require.NoError(a.t, json.Unmarshal(body, &summary))
	assert.Equal(a.t, "100.00", summary.Balance)
	require.NotEmpty(a.t, summary.Token)
	u.ID, u.Token = summary.ID, summary.Token
	return u
}

func (a *api) createStream(owner *user) int64 {
	a.t.Helper()
	code, body := a.do(owner, http.MethodPost, "/api/streams", map[string]any{"title": "Rucker Park 3v3", "sport": "basketball"})
	require.Equal(a.t, http.StatusCreated, code, string(body))
	var s struct {
		ID int64 `json:"id"`
	}
	require.NoError(a.t, json.Unmarshal(body, &s))
	return s.ID
}

func (a *api) balance(u *user) string {
	a.t.Helper()
	code, body := a.do(u, http.MethodGet, "/api/auth/user", nil)
	require.Equal(a.t, http.StatusOK, code)
	var summary comm.UserSummary
	require.NoError(a.t, json.Unmarshal(body, &summary))
	return summary.Balance
}

func (a *api) watch(u *user, streamID int64) *websocket.Conn {
	a.t.Helper()
	url := "ws" + strings.TrimPrefix(a.server.URL, "http") + "/ws"
	header := http.Header{"Authorization": []string{"Bearer " + u.Token}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(a.t, err)
	a.t.Cleanup(func() { conn.Close() })

	require.NoError(a.t, conn.WriteJSON(map[string]any{"type": "auth", "streamId": streamID}))
	a.next(conn, comm.TypeAuthOK)
	return conn
}

func (a *api) next(conn *websocket.Conn, msgType string) comm.WSMessage {
	a.t.Helper()
	for i := 0; i < 10; i++ {
		conn.SetReadDeadline(time.Now().Add(3 * time.Second))
		var m comm.WSMessage
		require.NoError(a.t, conn.ReadJSON(&m))
		if m.Type == msgType {
			return m
		}
	}
	a.t.Fatalf("no %s frame", msgType)
	return comm.WSMessage{}
}

func TestPlaceAndSettleOverHTTP(t *testing.T) {
	a := newAPI(t)
	owner := a.signup("owner@example.com")
	bettor := a.signup("bettor@example.com")
	streamID := a.createStream(owner)
	viewer := a.watch(owner, streamID)

	code, body := a.do(bettor, http.MethodPost, "/api/bets", map[string]any{
		"userId": bettor.ID, "streamId": streamID, "betType": "next_shot",
		"description": "Next Shot Made", "amount": "25.00", "odds": 180, "potentialWin": "45.00",
	})
	require.Equal(t, http.StatusOK, code, string(body))
	var bet comm.BetData
	require.NoError(t, json.Unmarshal(body, &bet))
	assert.Equal(t, "45.00", bet.PotentialWin)
	assert.Equal(t, "pending", bet.Status)
	assert.Equal(t, "75.00", a.balance(bettor))

	placed := a.next(viewer, comm.TypeBetPlaced)
	var placedData comm.BetPlacedData
	require.NoError(t, json.Unmarshal(placed.Data, &placedData))
	assert.Equal(t, bet.ID, placedData.Bet.ID)

	settlePath := fmt.Sprintf("/api/bets/%d/settle", bet.ID)
	code, _ = a.do(bettor, http.MethodPut, settlePath, map[string]string{"status": "won"})
	assert.Equal(t, http.StatusForbidden, code)

	code, body = a.do(owner, http.MethodPut, settlePath, map[string]string{"status": "won", "outcome": "swish"})
	require.Equal(t, http.StatusOK, code, string(body))
	assert.Equal(t, "145.00", a.balance(bettor))

	result := a.next(viewer, comm.TypeBetResult)
	var resultData comm.BetResultData
	require.NoError(t, json.Unmarshal(result.Data, &resultData))
	assert.Equal(t, "won", resultData.Result)
	assert.Equal(t, "145.00", resultData.User.Balance)

	code, _ = a.do(owner, http.MethodPut, settlePath, map[string]string{"status": "won"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "145.00", a.balance(bettor))

	code, body = a.do(nil, http.MethodGet, fmt.Sprintf("/api/users/%d/bets", bettor.ID), nil)
	require.Equal(t, http.StatusOK, code)
	var bets []comm.BetData
	require.NoError(t, json.Unmarshal(body, &bets))
	require.Len(t, bets, 1)
	assert.Equal(t, "25.00", bets[0].Amount)
	assert.Equal(t, 180, bets[0].Odds)
	assert.Equal(t, "45.00", bets[0].PotentialWin)

	code, body = a.do(nil, http.MethodGet, "/api/leaderboard", nil)
	require.Equal(t, http.StatusOK, code)
	var rows []comm.LeaderboardRow
	require.NoError(t, json.Unmarshal(body, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, bettor.ID, rows[0].ID)
	assert.Equal(t, "45.00", rows[0].DailyWinnings)
}

func TestPlaceBetRejections(t *testing.T) {
	a := newAPI(t)
	owner := a.signup("owner@example.com")
	bettor := a.signup("bettor@example.com")
	streamID := a.createStream(owner)

	bet := func(userID, stream int64, amount string, odds int) map[string]any {
		return map[string]any{"userId": userID, "streamId": stream, "betType": "game_winner", "amount": amount, "odds": odds}
	}

	code, body := a.do(bettor, http.MethodPost, "/api/bets", bet(bettor.ID, streamID, "110.00", -110))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, string(body), "Insufficient balance")
	assert.Equal(t, "100.00", a.balance(bettor))

	code, _ = a.do(bettor, http.MethodPost, "/api/bets", bet(owner.ID, streamID, "1.00", -110))
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = a.do(bettor, http.MethodPost, "/api/bets", bet(bettor.ID, 999, "1.00", -110))
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = a.do(nil, http.MethodPost, "/api/bets", bet(bettor.ID, streamID, "1.00", -110))
	assert.Equal(t, http.StatusUnauthorized, code)

	mismatch := bet(bettor.ID, streamID, "10.00", -110)
	mismatch["potentialWin"] = "10.00"
	code, body = a.do(bettor, http.MethodPost, "/api/bets", mismatch)
	assert.Equal(t, http.StatusBadRequest, code)
	var rsp Response
	require.NoError(t, json.Unmarshal(body, &rsp))
	require.NotEmpty(t, rsp.Errors)
	assert.Equal(t, "potentialWin", rsp.Errors[0].Field)

	code, _ = a.do(bettor, http.MethodPost, "/api/bets", bet(bettor.ID, streamID, "0", 100))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "100.00", a.balance(bettor))

	code, body = a.do(bettor, http.MethodPost, "/api/bets", bet(bettor.ID, streamID, "1.00", 3000000000))
	assert.Equal(t, http.StatusBadRequest, code)
	rsp = Response{}
	require.NoError(t, json.Unmarshal(body, &rsp))
	require.NotEmpty(t, rsp.Errors)
	assert.Equal(t, "odds", rsp.Errors[0].Field)
	assert.Equal(t, "100.00", a.balance(bettor))
}

func TestAuthFlow(t *testing.T) {
	a := newAPI(t)
	u := a.signup("Player@Example.com")

	code, _ := a.do(nil, http.MethodGet, "/api/auth/user", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body := a.do(nil, http.MethodPost, "/api/signup", map[string]string{"email": "player@example.com", "password": "secret1"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, string(body), "Email already registered")

	code, _ = a.do(nil, http.MethodPost, "/api/login", map[string]string{"email": "player@example.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body = a.do(nil, http.MethodPost, "/api/login", map[string]string{"email": "player@example.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, code)
	assert.NotContains(t, string(body), "secret1")

	code, body = a.do(nil, http.MethodGet, fmt.Sprintf("/api/users/%d", u.ID), nil)
	require.Equal(t, http.StatusOK, code)
	assert.NotContains(t, strings.ToLower(string(body)), "password")

	code, _ = a.do(u, http.MethodPost, "/api/logout", nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = a.do(u, http.MethodGet, "/api/auth/user", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = a.do(nil, http.MethodPost, "/api/signup", map[string]string{"email": "bad", "password": "1"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestStreamEndpoints(t *testing.T) {
	a := newAPI(t)
	owner := a.signup("owner@example.com")
	other := a.signup("other@example.com")
	streamID := a.createStream(owner)
	statsPath := fmt.Sprintf("/api/streams/%d/stats", streamID)

	code, body := a.do(nil, http.MethodGet, statsPath, nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, "{}", string(body))

	code, _ = a.do(other, http.MethodPut, statsPath, map[string]any{"score": "5-4"})
	assert.Equal(t, http.StatusForbidden, code)

	viewer := a.watch(other, streamID)
	code, _ = a.do(owner, http.MethodPut, statsPath, map[string]any{"score": "5-4", "points": 9, "distance": 1.25})
	require.Equal(t, http.StatusOK, code)
	update := a.next(viewer, comm.TypeStatsUpdate)
	var stats comm.StatsData
	require.NoError(t, json.Unmarshal(update.Data, &stats))
	assert.Equal(t, "5-4", *stats.Score)
	assert.Equal(t, "1.25", *stats.Distance)

	code, body = a.do(nil, http.MethodGet, fmt.Sprintf("/api/streams/%d/bet-options", streamID), nil)
	require.Equal(t, http.StatusOK, code)
	var options []service.BetOption
	require.NoError(t, json.Unmarshal(body, &options))
	assert.Len(t, options, 5)
	assert.Equal(t, 180, options[0].Odds)

	code, _ = a.do(nil, http.MethodGet, "/api/streams/999/bet-options", nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = a.do(nil, http.MethodGet, "/api/streams/abc", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	require.NoError(t, viewer.WriteJSON(map[string]any{"type": "chat", "content": "let's go"}))
	a.next(viewer, comm.TypeChat)
	code, body = a.do(nil, http.MethodGet, fmt.Sprintf("/api/streams/%d/messages", streamID), nil)
	require.Equal(t, http.StatusOK, code)
	var msgs []comm.ChatData
	require.NoError(t, json.Unmarshal(body, &msgs))
	require.Len(t, msgs, 1)
	assert.Equal(t, "let's go", msgs[0].Message)

	code, _ = a.do(other, http.MethodPut, fmt.Sprintf("/api/streams/%d/live", streamID), map[string]bool{"isLive": false})
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = a.do(owner, http.MethodPut, fmt.Sprintf("/api/streams/%d/live", streamID), map[string]bool{"isLive": false})
	assert.Equal(t, http.StatusOK, code)

	code, body = a.do(nil, http.MethodGet, "/api/streams", nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, "[]", string(body))
}

func TestFriendsEndpoints(t *testing.T) {
	a := newAPI(t)
	alice := a.signup("alice@example.com")
	bob := a.signup("bob@example.com")
	path := fmt.Sprintf("/api/users/%d/friends", alice.ID)

	code, _ := a.do(bob, http.MethodPost, path, map[string]int64{"friendId": bob.ID})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = a.do(alice, http.MethodPost, path, map[string]int64{"friendId": bob.ID})
	assert.Equal(t, http.StatusCreated, code)
	code, _ = a.do(alice, http.MethodPost, path, map[string]int64{"friendId": bob.ID})
	assert.Equal(t, http.StatusConflict, code)

	code, body := a.do(nil, http.MethodGet, fmt.Sprintf("/api/users/%d/friends", bob.ID), nil)
	require.Equal(t, http.StatusOK, code)
	var friends []comm.UserData
	require.NoError(t, json.Unmarshal(body, &friends))
	require.Len(t, friends, 1)
	assert.Equal(t, alice.ID, friends[0].ID)

	code, _ = a.do(nil, http.MethodGet, "/api/users/999/friends", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHealth(t *testing.T) {
	a := newAPI(t)
	code, body := a.do(nil, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), "running")
}
