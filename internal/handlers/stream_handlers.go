package handlers

import (
	"errors"
	"net/http"

	"github.com/avvvet/rookies-services/internal/comm"
	"github.com/avvvet/rookies-services/internal/service"
)

func (h *Handler) ListStreams(w http.ResponseWriter, r *http.Request) {
	streams, err := h.svc.Streams.ListLive(r.Context())
	if err != nil {
		h.fail(w, r, err, "Failed to fetch streams")
		return
	}
	h.writeJSON(w, http.StatusOK, streams)
}

func (h *Handler) GetStream(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}

	stream, err := h.svc.Streams.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "Failed to fetch stream")
		return
	}
	h.writeJSON(w, http.StatusOK, stream)
}

func (h *Handler) CreateStream(w http.ResponseWriter, r *http.Request) {
	var in service.CreateStreamInput
	if !h.decode(w, r, &in) {
		return
	}

	stream, err := h.svc.Streams.Create(r.Context(), callerID(r), in)
	if err != nil {
		h.fail(w, r, err, "Failed to create stream")
		return
	}
	h.writeJSON(w, http.StatusCreated, stream)
}

func (h *Handler) SetLive(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}

	var body struct {
		IsLive *bool `json:"isLive"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	if body.IsLive == nil {
		h.CreateResponse(w, Response{
			Message: "Invalid stream data",
			Code:    http.StatusBadRequest,
			Errors:  []service.FieldError{{Field: "isLive", Message: "required"}},
		})
		return
	}

	stream, err := h.svc.Streams.SetLive(r.Context(), callerID(r), id, *body.IsLive)
	if err != nil {
		h.fail(w, r, err, "Failed to update stream")
		return
	}
	h.writeJSON(w, http.StatusOK, stream)
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}

	stats, err := h.svc.Stats.Get(r.Context(), id)
	if errors.Is(err, service.ErrNoStats) {
		h.writeJSON(w, http.StatusOK, struct{}{})
		return
	}
	if err != nil {
		h.fail(w, r, err, "Failed to fetch stats")
		return
	}
	h.writeJSON(w, http.StatusOK, comm.NewStatsData(stats))
}

func (h *Handler) UpdateStats(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}

	var in service.StatsInput
	if !h.decode(w, r, &in) {
		return
	}

	stats, err := h.svc.Stats.Update(r.Context(), callerID(r), id, in)
	if err != nil {
		h.fail(w, r, err, "Failed to update stats")
		return
	}
	h.writeJSON(w, http.StatusOK, comm.NewStatsData(stats))
}

func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}

	if _, err := h.svc.Streams.Get(r.Context(), id); err != nil {
		h.fail(w, r, err, "Failed to fetch messages")
		return
	}
	messages, err := h.svc.Chat.History(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "Failed to fetch messages")
		return
	}
	h.writeJSON(w, http.StatusOK, messages)
}

func (h *Handler) ListStreamBets(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}

	bets, err := h.svc.Bets.ListStreamBets(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "Failed to fetch bets")
		return
	}
	h.writeJSON(w, http.StatusOK, betViews(bets))
}

func (h *Handler) BetOptions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}

	options, err := h.svc.Streams.BetOptions(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "Failed to fetch bet options")
		return
	}
	h.writeJSON(w, http.StatusOK, options)
}
