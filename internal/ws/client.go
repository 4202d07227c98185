package ws

import (
	"time"

	"github.com/avvvet/rookies-services/internal/models"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 8192
)

// Client is one websocket connection. Only the writer goroutine touches
// conn for writes and only the reader goroutine reads from it.
type Client struct {
	ID      string
	conn    *websocket.Conn
	send    chan []byte
	session *models.Session // resolved at upgrade, may be nil
}

func NewClient(conn *websocket.Conn, buffer int, session *models.Session) *Client {
	if buffer <= 0 {
		buffer = 256
	}
	return &Client{
		ID:      uuid.New().String(),
		conn:    conn,
		send:    make(chan []byte, buffer),
		session: session,
	}
}

// enqueue never blocks; false means the queue is full.
func (c *Client) enqueue(payload []byte) bool {
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (w *Ws) readPump(c *Client) {
	defer func() {
		log.Infof("Closing WebSocket connection: %s", c.ID)
		w.registry.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(w.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(w.cfg.PongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warnf("WebSocket unexpected close error for socket %s: %v", c.ID, err)
			} else {
				log.Debugf("WebSocket connection closed for socket %s: %v", c.ID, err)
			}
			return
		}

		w.SocketMessage(c, raw)
	}
}

func (w *Ws) writePump(c *Client) {
	ticker := time.NewTicker(w.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debugf("write to socket %s failed: %v", c.ID, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
