/**
 * @description
 * HTTP router for the billing service using go-chi/chi. All billing routes
 * are server-to-server and sit behind the internal API key.
 */
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new Chi router and registers billing routes.
func NewRouter(h *Handler, internalKey string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Internal-API-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Billing service is healthy"))
	})

	r.Route("/internal/billing", func(r chi.Router) {
		r.Use(InternalAuthMiddleware(internalKey))
		r.Post("/tick", h.handleRunTick)
		r.Post("/periods/start", h.handleStartPeriod)
		r.Get("/periods/{period}/snapshot", h.handleGetSnapshot)
		r.Get("/payments", h.handleListPayments)
		r.Post("/payments/{id}/confirm", h.handleConfirmPayment)
		r.Post("/payments/{id}/unconfirm", h.handleUnconfirmPayment)
		r.Get("/runs", h.handleListRuns)
	})

	return r
}
