package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/avvvet/rookies-services/internal/comm"
	"github.com/avvvet/rookies-services/internal/models"
	"github.com/avvvet/rookies-services/internal/service"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*models.Session, error)
}

type ChatFeed interface {
	Post(ctx context.Context, userID, streamID int64, content string) (*comm.ChatData, error)
	History(ctx context.Context, streamID int64) ([]comm.ChatData, error)
}

type StatsFeed interface {
	Get(ctx context.Context, streamID int64) (*models.GameStats, error)
}

type Streams interface {
	Get(ctx context.Context, id int64) (*models.Stream, error)
	SetViewerCount(ctx context.Context, streamID int64, count int) error
}

type Presence interface {
	SetPresence(ctx context.Context, userID int64, online bool) error
}

type Config struct {
	PingPeriod time.Duration
	PongWait   time.Duration
	SendBuffer int
}

type Deps struct {
	Sessions SessionResolver
	Chat     ChatFeed
	Stats    StatsFeed
	Streams  Streams
	Presence Presence
}

// Ws dispatches client frames and owns the connection registry.
type Ws struct {
	registry *Registry
	cfg      Config
	deps     Deps

	// presenceMu orders presence and viewer writes against the registry
	// counts they are derived from.
	presenceMu sync.Mutex
}

func NewWs(registry *Registry, cfg Config, deps Deps) *Ws {
	if cfg.PongWait <= 0 {
		cfg.PongWait = 60 * time.Second
	}
	if cfg.PingPeriod <= 0 || cfg.PingPeriod >= cfg.PongWait {
		cfg.PingPeriod = cfg.PongWait * 9 / 10
	}
	w := &Ws{registry: registry, cfg: cfg, deps: deps}
	registry.SetOnLeave(w.handleDeparture)
	return w
}

func (w *Ws) Registry() *Registry {
	return w.registry
}

// Serve runs a freshly upgraded connection until it closes. session is the
// identity resolved from the upgrade request, if any.
func (w *Ws) Serve(conn *websocket.Conn, session *models.Session) {
	c := NewClient(conn, w.cfg.SendBuffer, session)
	w.registry.Register(c)
	log.Infof("New WebSocket connection established: %s", c.ID)

	go w.writePump(c)
	w.readPump(c)
}

// SocketMessage handles one raw frame from a client. Bad frames are answered
// with an error frame; the connection stays open.
func (w *Ws) SocketMessage(c *Client, raw []byte) {
	frame := comm.ClientFrame{}
	if err := json.Unmarshal(raw, &frame); err != nil {
		log.Warnf("Failed to unmarshal message from socket %s: %v", c.ID, err)
		w.sendError(c, "Invalid message format")
		return
	}

	switch frame.Type {
	case comm.TypeAuth:
		w.handleAuth(c, frame)
	case comm.TypeChat:
		w.handleChat(c, frame)
	case comm.TypePing:
		w.send(c, comm.TypePong, nil)
	default:
		log.Warnf("unknown event received from socket %s: %q", c.ID, frame.Type)
		w.sendError(c, "Unknown message type")
	}
}

func (w *Ws) handleAuth(c *Client, frame comm.ClientFrame) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if frame.StreamId <= 0 {
		w.sendError(c, "streamId required")
		return
	}

	session := c.session
	if frame.Token != "" {
		s, err := w.deps.Sessions.Resolve(ctx, frame.Token)
		if err != nil {
			log.Debugf("auth token rejected for socket %s: %v", c.ID, err)
			w.sendError(c, "Invalid session")
			return
		}
		session = s
	}
	if session == nil {
		w.sendError(c, "Not authenticated")
		return
	}
	if frame.UserId != 0 && frame.UserId != session.UserID {
		log.Warnf("socket %s claimed user %d but session is user %d", c.ID, frame.UserId, session.UserID)
		w.sendError(c, "User does not match session")
		return
	}

	if _, err := w.deps.Streams.Get(ctx, frame.StreamId); err != nil {
		if errors.Is(err, service.ErrStreamNotFound) {
			w.sendError(c, "Stream not found")
			return
		}
		log.Errorf("Error loading stream %d: %s", frame.StreamId, err)
		w.sendError(c, "Failed to join stream")
		return
	}

	c.session = session
	prev, ok := w.registry.Authenticate(c, session.UserID, frame.StreamId)
	if !ok {
		return
	}

	w.presenceMu.Lock()
	if err := w.deps.Presence.SetPresence(ctx, session.UserID, true); err != nil {
		log.Errorf("Error marking user %d online: %s", session.UserID, err)
	}
	w.refreshViewers(ctx, frame.StreamId)
	if prev.Valid() && prev.StreamID != frame.StreamId {
		w.refreshViewers(ctx, prev.StreamID)
	}
	w.presenceMu.Unlock()

	log.Infof("socket %s authenticated as user %d on stream %d", c.ID, session.UserID, frame.StreamId)
	w.send(c, comm.TypeAuthOK, map[string]int64{"userId": session.UserID, "streamId": frame.StreamId})

	history, err := w.deps.Chat.History(ctx, frame.StreamId)
	if err != nil {
		log.Errorf("Error loading chat history for stream %d: %s", frame.StreamId, err)
	} else {
		w.send(c, comm.TypeChatHistory, history)
	}

	stats, err := w.deps.Stats.Get(ctx, frame.StreamId)
	switch {
	case err == nil:
		w.send(c, comm.TypeStatsUpdate, comm.NewStatsData(stats))
	case !errors.Is(err, service.ErrNoStats):
		log.Errorf("Error loading stats for stream %d: %s", frame.StreamId, err)
	}
}

func (w *Ws) handleChat(c *Client, frame comm.ClientFrame) {
	assoc, ok := w.registry.Association(c)
	if !ok {
		log.Debugf("chat from unauthenticated socket %s ignored", c.ID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := w.deps.Chat.Post(ctx, assoc.UserID, assoc.StreamID, frame.Content)
	switch {
	case err == nil, errors.Is(err, service.ErrEmptyMessage):
	default:
		log.Errorf("Error posting chat for user %d on stream %d: %s", assoc.UserID, assoc.StreamID, err)
		w.sendError(c, "Failed to send message")
	}
}

// handleDeparture re-reads the registry counts under presenceMu. The
// snapshot in d may be stale if the user reconnected in the meantime.
func (w *Ws) handleDeparture(d Departure) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	w.presenceMu.Lock()
	defer w.presenceMu.Unlock()

	if w.registry.UserConnectionCount(d.UserID) == 0 {
		if err := w.deps.Presence.SetPresence(ctx, d.UserID, false); err != nil {
			log.Errorf("Error marking user %d offline: %s", d.UserID, err)
		}
	}
	w.refreshViewers(ctx, d.StreamID)
}

// refreshViewers must be called with presenceMu held.
func (w *Ws) refreshViewers(ctx context.Context, streamID int64) {
	if err := w.deps.Streams.SetViewerCount(ctx, streamID, w.registry.StreamCount(streamID)); err != nil {
		log.Errorf("Error updating viewers of stream %d: %s", streamID, err)
	}
}

func (w *Ws) send(c *Client, msgType string, v any) {
	msg, err := comm.NewMessage(msgType, v)
	if err != nil {
		log.Errorf("Error building %s frame: %s", msgType, err)
		return
	}
	w.registry.Send(c, msg)
}

// sendError sends an error message back to the WebSocket client
func (w *Ws) sendError(c *Client, text string) {
	w.registry.Send(c, comm.NewError(text))
}
