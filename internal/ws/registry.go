package ws

import (
	"encoding/json"
	"sync"

	"github.com/avvvet/rookies-services/internal/comm"
	"github.com/avvvet/rookies-services/internal/metrics"
	log "github.com/sirupsen/logrus"
)

// Association binds a live connection to the user and stream it watches.
type Association struct {
	UserID   int64
	StreamID int64
}

func (a Association) Valid() bool {
	return a.UserID != 0 && a.StreamID != 0
}

// Departure describes an authenticated connection that just left, with the
// counts that remain after it.
type Departure struct {
	Association
	UserConnections int
	StreamViewers   int
}

type entry struct {
	client *Client
	assoc  Association
}

// Registry tracks every live connection and fans frames out by stream.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*entry
	onLeave func(Departure)
}

// NewRegistry returns an empty registry. onLeave, when set, runs after an
// authenticated connection is removed, outside the registry lock.
func NewRegistry(onLeave func(Departure)) *Registry {
	return &Registry{
		clients: make(map[string]*entry),
		onLeave: onLeave,
	}
}

func (r *Registry) SetOnLeave(fn func(Departure)) {
	r.mu.Lock()
	r.onLeave = fn
	r.mu.Unlock()
}

func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.clients[c.ID]; exists {
		return
	}
	r.clients[c.ID] = &entry{client: c}
	metrics.WSConnections.Inc()
}

// Authenticate associates c with (userID, streamID) and returns the
// association it replaced. ok is false when c is not registered.
func (r *Registry) Authenticate(c *Client, userID, streamID int64) (prev Association, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.clients[c.ID]
	if !ok {
		return Association{}, false
	}
	prev = e.assoc
	e.assoc = Association{UserID: userID, StreamID: streamID}
	return prev, true
}

func (r *Registry) Association(c *Client) (Association, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.clients[c.ID]
	if !ok || !e.assoc.Valid() {
		return Association{}, false
	}
	return e.assoc, true
}

// Unregister removes c and closes its send queue. Removing a connection
// twice is a no-op.
func (r *Registry) Unregister(c *Client) {
	r.mu.Lock()
	e, ok := r.clients[c.ID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.clients, c.ID)
	close(c.send)
	metrics.WSConnections.Dec()

	var dep *Departure
	if e.assoc.Valid() {
		dep = &Departure{
			Association:     e.assoc,
			UserConnections: r.userCountLocked(e.assoc.UserID),
			StreamViewers:   r.streamCountLocked(e.assoc.StreamID),
		}
	}
	onLeave := r.onLeave
	r.mu.Unlock()

	if dep != nil && onLeave != nil {
		onLeave(*dep)
	}
}

// Send enqueues msg for c alone. A full queue drops the connection.
func (r *Registry) Send(c *Client, msg *comm.WSMessage) bool {
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("Failed to marshal %s frame: %v", msg.Type, err)
		return false
	}

	r.mu.RLock()
	_, ok := r.clients[c.ID]
	delivered := ok && c.enqueue(payload)
	r.mu.RUnlock()

	if ok && !delivered {
		r.evict(c)
	}
	if delivered {
		metrics.WSMessagesSent.Inc()
	}
	return delivered
}

// Broadcast marshals msg once and enqueues it on every connection
// associated with streamID. It returns the number of connections reached.
func (r *Registry) Broadcast(streamID int64, msg *comm.WSMessage) int {
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("Failed to marshal %s frame: %v", msg.Type, err)
		return 0
	}

	var slow []*Client
	sent := 0

	r.mu.RLock()
	for _, e := range r.clients {
		if !e.assoc.Valid() || e.assoc.StreamID != streamID {
			continue
		}
		if e.client.enqueue(payload) {
			sent++
		} else {
			slow = append(slow, e.client)
		}
	}
	r.mu.RUnlock()

	for _, c := range slow {
		r.evict(c)
	}
	metrics.WSMessagesSent.Add(float64(sent))
	return sent
}

func (r *Registry) evict(c *Client) {
	log.Warnf("send queue full for socket %s, dropping connection", c.ID)
	metrics.WSSlowClients.Inc()
	r.Unregister(c)
}

// StreamCount is the number of connections watching streamID.
func (r *Registry) StreamCount(streamID int64) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.streamCountLocked(streamID)
}

// UserConnectionCount is the number of authenticated connections of userID.
func (r *Registry) UserConnectionCount(userID int64) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.userCountLocked(userID)
}

// CloseAll unregisters every connection, which makes each writer send a
// close frame.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	all := make([]*Client, 0, len(r.clients))
	for _, e := range r.clients {
		all = append(all, e.client)
	}
	r.mu.RUnlock()

	for _, c := range all {
		r.Unregister(c)
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

func (r *Registry) streamCountLocked(streamID int64) int {
	n := 0
	for _, e := range r.clients {
		if e.assoc.Valid() && e.assoc.StreamID == streamID {
			n++
		}
	}
	return n
}

func (r *Registry) userCountLocked(userID int64) int {
	n := 0
	for _, e := range r.clients {
		if e.assoc.Valid() && e.assoc.UserID == userID {
			n++
		}
	}
	return n
}
