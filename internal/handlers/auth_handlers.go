package handlers

import (
	"net/http"

	"github.com/avvvet/rookies-services/internal/auth"
	"github.com/avvvet/rookies-services/internal/comm"
	"github.com/avvvet/rookies-services/internal/models"
	"github.com/avvvet/rookies-services/internal/service"
	log "github.com/sirupsen/logrus"
)

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var in service.SignupInput
	if !h.decode(w, r, &in) {
		return
	}

	user, err := h.svc.Users.Signup(r.Context(), in)
	if err != nil {
		h.fail(w, r, err, "Failed to create user")
		return
	}
	h.openSession(w, r, user)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var in service.LoginInput
	if !h.decode(w, r, &in) {
		return
	}

	user, err := h.svc.Users.Login(r.Context(), in)
	if err != nil {
		h.fail(w, r, err, "Failed to log in")
		return
	}
	h.openSession(w, r, user)
}

// openSession issues a session for user, sets the jwt cookie and answers
// with the user summary carrying the same token.
func (h *Handler) openSession(w http.ResponseWriter, r *http.Request, user *models.User) {
	token, session, err := h.auth.Issue(r.Context(), user.ID)
	if err != nil {
		h.fail(w, r, err, "Failed to create session")
		return
	}

	http.SetCookie(w, h.auth.Cookie(token, session.ExpiresAt, h.cookieSecure))
	h.writeJSON(w, http.StatusOK, comm.NewUserSummary(user, token))
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := auth.TokenFromRequest(r); token != "" {
		if err := h.auth.Revoke(r.Context(), token); err != nil {
			log.Errorf("Error revoking session: %v", err)
		}
	}

	http.SetCookie(w, h.auth.ClearCookie(h.cookieSecure))
	h.CreateResponse(w, Response{Message: "Logged out successfully", Code: http.StatusOK})
}

func (h *Handler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.Users.GetUser(r.Context(), callerID(r))
	if err != nil {
		h.fail(w, r, err, "Failed to fetch user")
		return
	}
	h.writeJSON(w, http.StatusOK, comm.NewUserSummary(user, ""))
}
