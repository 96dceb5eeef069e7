package api

import (
	"net/http"

	"github.com/craftlink/craftlink/internal/auth"
	"github.com/craftlink/craftlink/internal/console"
	"github.com/craftlink/craftlink/internal/gamelog"
	"github.com/craftlink/craftlink/internal/presence"
	"github.com/craftlink/craftlink/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Router assembles the ops API.
func Router(authSvc *auth.Service, sup *console.Supervisor, poller *presence.Poller, ring *gamelog.Ring, st *store.Store) http.Handler {
	authHandler := NewAuthHandler(authSvc)
	statusHandler := NewStatusHandler(sup, poller, ring)
	serversHandler := NewServersHandler(st)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(authSvc))

			r.Post("/auth/logout", authHandler.Logout)
			r.Get("/status", statusHandler.Status)
			r.Get("/events/recent", statusHandler.RecentEvents)
			r.Get("/servers", serversHandler.List)
			r.Post("/console", statusHandler.Console)
		})
	})

	return r
}
