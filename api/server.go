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
  5. httprate:   Per-IP rate limit on the check-in routes only, since
                 those are hit from shared kiosk devices

ROUTE GROUPS:
  /api/locations/*      Locations and rate tables
  /api/participants/*   Participant profiles
  /api/sessions/*       Session lifecycle and billing
  /api/checkin/*        Join/leave (rate limited)
  /api/memberships/*    Cost overrides
  /api/dashboard        Aggregate statistics
  /api/scenarios/*      Demo scenarios

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
)

// RouterOptions configures middleware knobs from the environment.
type RouterOptions struct {
	// AllowedOrigins for CORS. Empty means local development defaults.
	AllowedOrigins []string

	// CheckinRateLimit is requests per minute per IP on /api/checkin.
	// Zero disables rate limiting.
	CheckinRateLimit int
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

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
		// Location routes
		r.Route("/locations", func(r chi.Router) {
			r.Get("/", h.ListLocations)
			r.Post("/", h.CreateLocation)
			r.Get("/{id}", h.GetLocation)
			r.Put("/{id}/rates", h.UpdateRates)
		})

		// Participant routes
		r.Route("/participants", func(r chi.Router) {
			r.Get("/", h.ListParticipants)
			r.Post("/", h.CreateParticipant)
		})

		// Session routes
		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", h.ListSessions)
			r.Post("/", h.StartSession)
			r.Get("/{id}", h.GetSession)
			r.Post("/{id}/end", h.EndSession)
			r.Get("/{id}/preview", h.PreviewCosts)
			r.Post("/{id}/recompute", h.RecomputeCosts)
			r.Post("/{id}/settlement", h.RecordSettlement)
			r.Get("/{id}/reconciliation", h.Reconcile)
		})

		// Check-in routes
		r.Route("/checkin", func(r chi.Router) {
			if opts.CheckinRateLimit > 0 {
				r.Use(httprate.LimitByIP(opts.CheckinRateLimit, time.Minute))
			}
			r.Post("/join", h.Join)
			r.Post("/leave", h.Leave)
		})

		// Membership routes
		r.Route("/memberships", func(r chi.Router) {
			r.Put("/{id}/adjusted-cost", h.SetAdjustedCost)
		})

		// Admin routes
		r.Get("/dashboard", h.Dashboard)

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
