/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the admin frontend

ROUTE GROUPS:
  /api/structures/*     Fee structure catalogue
  /api/grades/*         Grades and assignment
  /api/invoices/*       Bulk generation and payments
  /api/students/*       Per-student invoice views
  /api/scenarios/*      Demo scenarios

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public;
  authentication is an external collaborator in this deployment.

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
		// Structure routes
		r.Route("/structures", func(r chi.Router) {
			r.Get("/", h.ListStructures)
			r.Post("/", h.CreateStructures)
			r.Get("/{id}", h.GetStructure)
			r.Put("/{id}", h.UpdateStructure)
			r.Delete("/{id}", h.DeleteStructure)
			r.Get("/{id}/grades", h.GetAssignedGrades)
		})

		// Grade routes
		r.Route("/grades", func(r chi.Router) {
			r.Get("/", h.ListGrades)
			r.Post("/", h.CreateGrade)
			r.Post("/{id}/assign", h.AssignGrade)
			r.Post("/{id}/unassign", h.UnassignGrade)
		})

		// Invoice routes
		r.Route("/invoices", func(r chi.Router) {
			r.Post("/generate", h.GenerateInvoices)
			r.Post("/{id}/payments", h.RecordPayment)
		})

		// Student routes
		r.Route("/students", func(r chi.Router) {
			r.Get("/{id}/invoices", h.ListStudentInvoices)
			r.Get("/{id}/summary", h.GetStudentSummary)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
