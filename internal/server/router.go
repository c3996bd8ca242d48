// Package server wires handlers and middleware into the HTTP router.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ukydev/fleet-dashboard/internal/auth"
	"github.com/ukydev/fleet-dashboard/internal/db"
	"github.com/ukydev/fleet-dashboard/internal/handlers"
	"github.com/ukydev/fleet-dashboard/internal/metrics"
	"github.com/ukydev/fleet-dashboard/internal/middleware"
	"github.com/ukydev/fleet-dashboard/internal/share"
)

// Deps holds everything the router needs.
type Deps struct {
	Users     db.UserRepository
	Vehicles  db.VehicleRepository
	Hasher    auth.PasswordHasher
	Sessions  *auth.SessionManager
	Links     *share.Store
	Collector *metrics.Collector

	LoginRateLimitPerMin int
	TrustProxyHeaders    bool
}

// NewRouter builds the API router. Every /api route except login, register,
// logout and shared links requires a session. Share links are also served at
// /shared/{token}, the URL handed out by the share store.
func NewRouter(deps Deps) http.Handler {
	var rec metrics.Recorder = metrics.Nop{}
	if deps.Collector != nil {
		rec = deps.Collector
	}

	authHandler := handlers.NewAuthHandler(deps.Users, deps.Hasher, deps.Sessions, rec)
	vehicleHandler := handlers.NewVehicleHandler(deps.Vehicles, deps.Links)
	authMiddleware := middleware.NewAuthMiddleware(deps.Sessions)
	limiter := middleware.NewRateLimitMiddleware(deps.LoginRateLimitPerMin, deps.TrustProxyHeaders)

	r := chi.NewRouter()
	// Recoverer runs inside the logger so recovered panics are logged and
	// counted as 500s.
	r.Use(middleware.RequestLogger(rec))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	if deps.Collector != nil {
		r.Method(http.MethodGet, "/metrics", deps.Collector.Handler())
	}
	r.Get("/shared/{token}", vehicleHandler.Shared)

	r.Route("/api", func(r chi.Router) {
		r.With(limiter.RateLimit).Post("/auth/login", authHandler.Login)
		r.With(limiter.RateLimit).Post("/auth/register", authHandler.Register)
		r.Post("/auth/logout", authHandler.Logout)
		r.Get("/shared/{token}", vehicleHandler.Shared)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Get("/auth/verify", authHandler.Verify)
			r.Post("/auth/reset-password", authHandler.ResetPassword)
			r.Put("/auth/profile", authHandler.UpdateProfile)

			r.Route("/vehicles", func(r chi.Router) {
				r.Get("/", vehicleHandler.List)
				r.Post("/", vehicleHandler.Create)
				r.Get("/stats", vehicleHandler.Stats)
				r.Post("/share", vehicleHandler.Share)
				r.Get("/vin/{vin}", vehicleHandler.GetByVIN)
				r.Get("/{id}", vehicleHandler.Get)
				r.Put("/{id}", vehicleHandler.Update)
				r.Delete("/{id}", vehicleHandler.Delete)
			})
		})
	})

	return r
}
