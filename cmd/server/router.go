package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/digestly/digestly-api/internal/api"
	apiMiddleware "github.com/digestly/digestly-api/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes
// and middleware. It accepts the application dependencies to create handlers
// and register routes. Returns the configured router.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	// Apply standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	// Create API handlers using the application's services
	authHandler := api.NewAuthHandler(app.sessionService)
	noteHandler := api.NewNoteHandler(app.noteService)
	userHandler := api.NewUserHandler(app.userStore)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.sessionService)

	r.Route("/api", func(r chi.Router) {
		// Authentication endpoints (public)
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Post("/auth/logout", authHandler.Logout)
			r.Post("/auth/revoke-all", authHandler.RevokeAll)
			r.Get("/auth/me", authHandler.Me)

			// Note endpoints
			r.Post("/notes", noteHandler.CreateNote)
			r.Get("/notes", noteHandler.ListNotes)

			// Admin endpoints. Registered before /notes/{id} so chi matches
			// the literal segments first.
			r.Group(func(r chi.Router) {
				r.Use(authMiddleware.RequireAdmin)

				r.Get("/notes/all", noteHandler.ListAllNotes)
				r.Get("/notes/grouped-by-user", noteHandler.ListNotesGroupedByUser)
				r.Get("/users", userHandler.ListUsers)
				r.Put("/users/{id}/role", userHandler.UpdateUserRole)
			})

			r.Get("/notes/{id}", noteHandler.GetNote)
		})
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r
}
