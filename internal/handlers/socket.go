package handlers

import (
	"net/http"

	log "github.com/sirupsen/logrus"
)

// HandleWebSocket upgrades the request and hands the connection to the
// socket dispatcher. A session on the upgrade request is optional; clients
// may authenticate with a token in their auth frame instead.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	session, err := h.auth.FromRequest(r)
	if err != nil {
		session = nil
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("Failed to upgrade to WebSocket: %v", err)
		return
	}

	go h.ws.Serve(conn, session)
}
