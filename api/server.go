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
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/requests/*       Procurement request lifecycle
  /api/line-items/*     Line item mutation
  /api/vendors/*        Vendor registry
  /api/contracts/*      Contracts and payments
  /api/payments/*       Payment settlement
  /api/budgets/*        Budget allocations
  /api/audit            Audit trail queries
  /healthz              Liveness probe

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.
  Front this service with an authenticating proxy.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

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
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Actor"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Request lifecycle
		r.Route("/requests", func(r chi.Router) {
			r.Get("/", h.ListRequests)
			r.Post("/", h.CreateRequest)
			r.Get("/number-preview", h.PreviewNumber)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetRequest)
				r.Put("/", h.UpdateRequest)
				r.Delete("/", h.DeleteRequest)
				r.Post("/transition", h.TransitionRequest)
				r.Get("/line-items", h.ListLineItems)
				r.Post("/line-items", h.AddLineItem)
				r.Get("/approvals", h.ListApprovals)
				r.Post("/approvals/{step}", h.DecideApproval)
				r.Get("/withholding", h.ComputeWithholding)
				r.Get("/contracts", h.ListRequestContracts)
			})
		})

		// Line items addressed by their own id
		r.Route("/line-items", func(r chi.Router) {
			r.Put("/{id}", h.UpdateLineItem)
			r.Delete("/{id}", h.DeleteLineItem)
		})

		// Vendor registry
		r.Route("/vendors", func(r chi.Router) {
			r.Get("/", h.ListVendors)
			r.Post("/", h.CreateVendor)
			r.Get("/{id}", h.GetVendor)
			r.Put("/{id}", h.UpdateVendor)
			r.Delete("/{id}", h.DeleteVendor)
		})

		// Contracts and payments
		r.Route("/contracts", func(r chi.Router) {
			r.Post("/", h.CreateContract)
			r.Get("/{id}", h.GetContract)
			r.Put("/{id}/status", h.UpdateContractStatus)
			r.Get("/{id}/payments", h.ListPayments)
			r.Post("/{id}/payments", h.CreatePayment)
		})
		r.Route("/payments", func(r chi.Router) {
			r.Post("/{id}/settle", h.SettlePayment)
			r.Post("/{id}/cancel", h.CancelPayment)
		})

		// Budget allocations
		r.Route("/budgets", func(r chi.Router) {
			r.Get("/", h.ListBudgets)
			r.Post("/", h.CreateBudget)
			r.Get("/{code}", h.GetBudget)
		})

		// Audit trail
		r.Get("/audit", h.QueryAudit)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
