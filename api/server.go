/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack, and route definitions. This
  is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the frontend

SECURITY NOTE:
  No authentication middleware; identity resolution is a deployment
  concern outside this service. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// School routes
		r.Route("/schools", func(r chi.Router) {
			r.Get("/", h.ListSchools)
			r.Post("/", h.CreateSchool)
			r.Get("/{id}", h.GetSchool)
			r.Delete("/{id}", h.DeleteSchool)

			r.Post("/{id}/policies", h.AddPolicy)
			r.Post("/{id}/policies/preset", h.ApplyPolicyPreset)
			r.Delete("/{id}/policies/{pid}", h.RemovePolicy)

			r.Get("/{id}/students", h.ListStudents)
			r.Post("/{id}/students", h.AddStudent)
			r.Delete("/{id}/students/{sid}", h.DeleteStudent)

			r.Get("/{id}/report", h.GetSchoolReport)
			r.Post("/{id}/report/refresh", h.RefreshSchoolReport)
			r.Get("/{id}/report/students/{sid}", h.GetStudentReport)
		})

		// Issuing routes
		r.Route("/students", func(r chi.Router) {
			r.Post("/{id}/log", h.LogUniform)
			r.Post("/{id}/distributions", h.AddDistribution)
		})

		// Stock routes
		r.Route("/batches", func(r chi.Router) {
			r.Get("/", h.ListBatches)
			r.Post("/", h.ReceiveBatch)
		})
		r.Get("/stock/check", h.CheckStock)
	})

	return r
}
