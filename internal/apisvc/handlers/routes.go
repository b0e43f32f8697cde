package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/avvvet/ganggpt-services/internal/auth"
	"github.com/go-chi/chi"
	"github.com/go-chi/httprate"
	"github.com/go-chi/jwtauth"
)

func (h *Handler) SetRoutes(r *chi.Mux) {
	r.Route("/v1", func(r chi.Router) {

		// public routes here
		r.Get("/health", h.HealthHandler)
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)

		// Secure routes
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(h.tokenAuth))
			r.Use(auth.Authenticator)

			r.Get("/me", h.Me)
			r.Patch("/me", h.UpdateMe)

			r.Get("/players", h.ListPlayers)
			r.Get("/players/{id}", h.GetPlayer)

			r.Route("/factions", func(r chi.Router) {
				r.Get("/", h.ListFactions)
				r.Post("/", h.CreateFaction)
				r.Post("/leave", h.LeaveFaction)
				r.Post("/members/{playerId}/{action}", h.MemberAction)
				r.Get("/{id}", h.GetFaction)
				r.Delete("/{id}", h.DisbandFaction)
				r.Get("/{id}/members", h.FactionMembers)
				r.Post("/{id}/join", h.JoinFaction)
			})

			r.Route("/economy", func(r chi.Router) {
				r.Get("/balance", h.Balance)
				r.Get("/transactions", h.Transactions)
				r.Post("/transfer", h.Transfer)
				r.Post("/grant", h.Grant)
			})

			r.Route("/missions", func(r chi.Router) {
				r.Get("/", h.ListMissions)
				r.With(h.aiRateLimit()).Post("/generate", h.GenerateMission)
				r.Get("/{id}", h.GetMission)
				r.Post("/{id}/accept", h.AcceptMission)
				r.Post("/{id}/abandon", h.AbandonMission)
				r.With(auth.RequireRole(auth.RoleService, auth.RoleAdmin)).Post("/{id}/complete", h.CompleteMission)
			})

			r.Route("/companions", func(r chi.Router) {
				r.Get("/", h.ListCompanions)
				r.With(h.aiRateLimit()).Post("/{id}/chat", h.Chat)
				r.Get("/{id}/memories", h.Memories)
				r.Delete("/{id}/memories", h.Forget)
			})
		})
	})
}

// aiRateLimit throttles the AI backed routes per player.
func (h *Handler) aiRateLimit() func(http.Handler) http.Handler {
	return httprate.Limit(h.aiLimit, time.Minute, httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
		id, _, err := identity(r)
		if err != nil {
			return httprate.KeyByIP(r)
		}
		return "player:" + strconv.FormatInt(id, 10), nil
	}))
}
