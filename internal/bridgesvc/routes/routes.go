package routes

import (
	"github.com/avvvet/ganggpt-services/internal/auth"
	"github.com/avvvet/ganggpt-services/internal/bridgesvc/handlers"
	"github.com/avvvet/ganggpt-services/internal/bridgesvc/ws"
	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
)

func SetRoutes(r *chi.Mux, tokenAuth *jwtauth.JWTAuth, s *ws.Ws, port string) {
	h := handlers.NewHandler(s, port)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/health", h.HealthHandler)

		// game servers only
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(tokenAuth))
			r.Use(auth.Authenticator)
			r.Use(auth.RequireRole(auth.RoleService))

			r.Get("/bridge", h.HandleWebSocket)
			r.Post("/events", h.PostEvent)
		})
	})
}
