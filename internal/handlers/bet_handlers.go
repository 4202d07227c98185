package handlers

import (
	"net/http"

	"github.com/avvvet/rookies-services/internal/comm"
	"github.com/avvvet/rookies-services/internal/service"
)

func (h *Handler) PlaceBet(w http.ResponseWriter, r *http.Request) {
	var in service.PlaceBetInput
	if !h.decode(w, r, &in) {
		return
	}

	bet, _, err := h.svc.Bets.PlaceBet(r.Context(), callerID(r), in)
	if err != nil {
		h.fail(w, r, err, "Failed to place bet")
		return
	}
	h.writeJSON(w, http.StatusOK, comm.NewBetData(bet))
}

func (h *Handler) SettleBet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}

	var in service.SettleBetInput
	if !h.decode(w, r, &in) {
		return
	}

	bet, user, err := h.svc.Bets.SettleBet(r.Context(), callerID(r), id, in)
	if err != nil {
		h.fail(w, r, err, "Failed to settle bet")
		return
	}
	h.writeJSON(w, http.StatusOK, comm.BetResultData{
		Bet:    comm.NewBetData(bet),
		User:   comm.NewUserData(user),
		Result: bet.Status,
	})
}
