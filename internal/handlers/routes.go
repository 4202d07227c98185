package handlers

import (
	"github.com/go-chi/chi"
)

func (h *Handler) SetRoutes(r chi.Router) {
	r.Get("/health", h.HealthHandler)
	r.Get("/ws", h.HandleWebSocket)

	r.Route("/api", func(r chi.Router) {

		// public routes here
		r.Post("/signup", h.Signup)
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)

		r.Get("/leaderboard", h.Leaderboard)

		r.Get("/users/{id}", h.GetUser)
		r.Get("/users/{id}/friends", h.ListFriends)
		r.Get("/users/{id}/bets", h.ListUserBets)

		r.Get("/streams", h.ListStreams)
		r.Get("/streams/{id}", h.GetStream)
		r.Get("/streams/{id}/stats", h.GetStats)
		r.Get("/streams/{id}/messages", h.ListMessages)
		r.Get("/streams/{id}/bets", h.ListStreamBets)
		r.Get("/streams/{id}/bet-options", h.BetOptions)

		// Secure routes
		r.Group(func(r chi.Router) {
			r.Use(h.RequireSession)

			r.Get("/auth/user", h.CurrentUser)
			r.Post("/users/{id}/friends", h.AddFriend)

			r.Post("/streams", h.CreateStream)
			r.Put("/streams/{id}/live", h.SetLive)
			r.Put("/streams/{id}/stats", h.UpdateStats)

			r.Post("/bets", h.PlaceBet)
			r.Put("/bets/{id}/settle", h.SettleBet)
		})
	})
}
