package handlers

import (
	"net/http"

	"github.com/avvvet/rookies-services/internal/auth"
	log "github.com/sirupsen/logrus"
)

// RequireSession rejects requests without a live session with 401 and puts
// the session on the request context otherwise.
func (h *Handler) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := h.auth.FromRequest(r)
		if err != nil {
			log.Debugf("unauthenticated %s %s: %v", r.Method, r.URL.Path, err)
			h.CreateResponse(w, Response{Message: "Not authenticated", Code: http.StatusUnauthorized})
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithSession(r.Context(), session)))
	})
}

// callerID is the user behind the session RequireSession attached.
func callerID(r *http.Request) int64 {
	s, ok := auth.SessionFromContext(r.Context())
	if !ok {
		return 0
	}
	return s.UserID
}
