package api

import (
	"github.com/go-chi/chi/v5"
)

// setupAPIRoutes mounts everything under /api. Reads of published content are public;
// writes, uploads and the access log dashboard need an admin token.
func setupAPIRoutes(r chi.Router, handlers *routeHandlers, authMiddleware authMiddleware) {
	r.Get("/projects", handlers.projectHandler.getAllProjects())
	r.Get("/projects/{id}", handlers.projectHandler.getProject())
	r.Get("/projects/{id}/content", handlers.projectHandler.getProjectContent())

	r.Post("/auth/login", handlers.authHandler.login())
	r.Post("/access-logs/client-ip", handlers.accessLogHandler.reportClientIP())

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.authenticate)

		r.Get("/auth/session", handlers.authHandler.session())

		r.Post("/projects", handlers.projectHandler.createProject())
		r.Post("/projects/upload", handlers.uploadHandler.uploadImage())
		r.Put("/projects/{id}", handlers.projectHandler.updateProject())
		r.Delete("/projects/{id}", handlers.projectHandler.deleteProject())

		r.Get("/access-logs/logs", handlers.accessLogHandler.getLogs())
		r.Get("/access-logs/stats", handlers.accessLogHandler.getStats())
	})
}
