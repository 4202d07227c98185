package handlers

import (
	"net/http"

	"github.com/avvvet/rookies-services/internal/comm"
	"github.com/avvvet/rookies-services/internal/models"
)

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}

	user, err := h.svc.Users.GetUser(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "Failed to fetch user")
		return
	}
	h.writeJSON(w, http.StatusOK, comm.NewUserData(user))
}

func (h *Handler) ListFriends(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}

	friends, err := h.svc.Users.ListFriends(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "Failed to fetch friends")
		return
	}
	h.writeJSON(w, http.StatusOK, userViews(friends))
}

func (h *Handler) AddFriend(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}

	var body struct {
		FriendID int64 `json:"friendId"`
	}
	if !h.decode(w, r, &body) {
		return
	}

	if err := h.svc.Users.AddFriend(r.Context(), callerID(r), id, body.FriendID); err != nil {
		h.fail(w, r, err, "Failed to add friend")
		return
	}
	h.CreateResponse(w, Response{Message: "Friend added", Code: http.StatusCreated})
}

func (h *Handler) ListUserBets(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}

	if _, err := h.svc.Users.GetUser(r.Context(), id); err != nil {
		h.fail(w, r, err, "Failed to fetch bets")
		return
	}
	bets, err := h.svc.Bets.ListUserBets(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "Failed to fetch bets")
		return
	}
	h.writeJSON(w, http.StatusOK, betViews(bets))
}

func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.Leaderboard.Daily(r.Context())
	if err != nil {
		h.fail(w, r, err, "Failed to fetch leaderboard")
		return
	}
	h.writeJSON(w, http.StatusOK, rows)
}

func userViews(users []*models.User) []*comm.UserData {
	out := make([]*comm.UserData, 0, len(users))
	for _, u := range users {
		out = append(out, comm.NewUserData(u))
	}
	return out
}

func betViews(bets []*models.Bet) []comm.BetData {
	out := make([]comm.BetData, 0, len(bets))
	for _, b := range bets {
		out = append(out, comm.NewBetData(b))
	}
	return out
}
