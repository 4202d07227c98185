package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/avvvet/rookies-services/internal/auth"
	"github.com/avvvet/rookies-services/internal/service"
	"github.com/avvvet/rookies-services/internal/ws"
	"github.com/go-chi/chi"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const maxBodyBytes = 1 << 20

type Services struct {
	Users       *service.UserService
	Streams     *service.StreamService
	Bets        *service.BetService
	Chat        *service.ChatService
	Stats       *service.StatsService
	Leaderboard *service.LeaderboardService
}

type Handler struct {
	auth         *auth.Authenticator
	svc          Services
	ws           *ws.Ws
	upgrader     websocket.Upgrader
	cookieSecure bool
}

type Response struct {
	Message string               `json:"message"`
	Code    int                  `json:"code"`
	Data    interface{}          `json:"data,omitempty"`
	Error   string               `json:"error,omitempty"`
	Errors  []service.FieldError `json:"errors,omitempty"`
}

func NewHandler(a *auth.Authenticator, svc Services, socket *ws.Ws, origins []string, cookieSecure bool) *Handler {
	h := &Handler{
		auth:         a,
		svc:          svc,
		ws:           socket,
		cookieSecure: cookieSecure,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     allowOrigins(origins),
		},
	}
	return h
}

// allowOrigins accepts requests without an Origin header (non-browser
// clients) and browsers from the configured origins.
func allowOrigins(origins []string) func(r *http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed["*"] || allowed[origin]
	}
}

func (h *Handler) CreateResponse(w http.ResponseWriter, rsp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rsp.Code)
	if err := json.NewEncoder(w).Encode(rsp); err != nil {
		log.Errorf("Failed to encode response: %v", err)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("Failed to encode response: %v", err)
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.CreateResponse(w, Response{
			Message: "Invalid request body",
			Code:    http.StatusBadRequest,
			Error:   err.Error(),
		})
		return false
	}
	return true
}

// idParam parses the {id} URL parameter, answering 400 when it is not a
// positive integer.
func (h *Handler) idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.CreateResponse(w, Response{
			Message: "Invalid id",
			Code:    http.StatusBadRequest,
			Errors:  []service.FieldError{{Field: "id", Message: "must be a positive integer"}},
		})
		return 0, false
	}
	return id, true
}

// fail maps service errors to status codes. Anything unrecognized is logged
// and reported as a 500 carrying only fallback.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		h.CreateResponse(w, Response{Message: verr.Message, Code: http.StatusBadRequest, Errors: verr.Errors})
	case errors.Is(err, service.ErrInsufficientBalance):
		h.CreateResponse(w, Response{Message: "Insufficient balance", Code: http.StatusBadRequest})
	case errors.Is(err, service.ErrBalanceLimit):
		h.CreateResponse(w, Response{Message: "Balance limit exceeded", Code: http.StatusBadRequest})
	case errors.Is(err, service.ErrEmailTaken):
		h.CreateResponse(w, Response{
			Message: "Email already registered",
			Code:    http.StatusBadRequest,
			Errors:  []service.FieldError{{Field: "email", Message: "already registered"}},
		})
	case errors.Is(err, service.ErrInvalidCredentials):
		h.CreateResponse(w, Response{Message: "Invalid credentials", Code: http.StatusUnauthorized})
	case errors.Is(err, service.ErrForbidden):
		h.CreateResponse(w, Response{Message: "Forbidden", Code: http.StatusForbidden})
	case errors.Is(err, service.ErrUserNotFound):
		h.CreateResponse(w, Response{Message: "User not found", Code: http.StatusNotFound})
	case errors.Is(err, service.ErrStreamNotFound):
		h.CreateResponse(w, Response{Message: "Stream not found", Code: http.StatusNotFound})
	case errors.Is(err, service.ErrBetNotFound):
		h.CreateResponse(w, Response{Message: "Bet not found", Code: http.StatusNotFound})
	case errors.Is(err, service.ErrBetAlreadySettled):
		h.CreateResponse(w, Response{Message: "Bet already settled", Code: http.StatusConflict})
	case errors.Is(err, service.ErrAlreadyFriends):
		h.CreateResponse(w, Response{Message: "Already friends", Code: http.StatusConflict})
	default:
		log.WithField("path", r.URL.Path).Errorf("%s: %v", fallback, err)
		h.CreateResponse(w, Response{Message: fallback, Code: http.StatusInternalServerError})
	}
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	h.CreateResponse(w, Response{
		Message: "rookies service is running at port " + os.Getenv("SERVICE_PORT"),
		Code:    http.StatusOK,
	})
}
