/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/milestones/*     Milestones, linked goals, preview, plan, balance
  /api/goals/*          Linked goal updates
  /api/scenarios/*      Demo scenarios and reset (dev only)
  /metrics              Prometheus scrape endpoint (when configured)
  /                     API index page

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

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

// RouterOptions configures NewRouter.
type RouterOptions struct {
	// Origins allowed by CORS. Empty means the local dev origins.
	AllowedOrigins []string

	// Served at /metrics when non-nil.
	Metrics http.Handler
}

var defaultAllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = defaultAllowedOrigins
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Milestone routes
		r.Route("/milestones", func(r chi.Router) {
			r.Get("/", h.ListMilestones)
			r.Post("/", h.CreateMilestone)
			r.Get("/{id}", h.GetMilestone)
			r.Put("/{id}", h.UpdateMilestone)
			r.Delete("/{id}", h.DeleteMilestone)
			r.Get("/{id}/goals", h.ListGoals)
			r.Post("/{id}/goals", h.CreateGoal)
			r.Get("/{id}/preview", h.GetPreview)
			r.Get("/{id}/plan", h.GetPlan)
			r.Post("/{id}/balance", h.RunBalancer)
		})

		// Linked goal routes
		r.Route("/goals", func(r chi.Router) {
			r.Put("/{id}", h.UpdateGoal)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetStore)
		})
	})

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(indexPage))
	})

	return r
}

const indexPage = `<!DOCTYPE html>
<html>
<head><title>Milestone Balancer</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Milestone Balancer API</h1>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/milestones">/api/milestones</a> - List milestones</li>
<li><a href="/api/milestones?active=true">/api/milestones?active=true</a> - Active milestones</li>
<li><a href="/api/scenarios">/api/scenarios</a> - List scenarios</li>
<li><a href="/metrics">/metrics</a> - Prometheus metrics</li>
</ul>
</body>
</html>`
