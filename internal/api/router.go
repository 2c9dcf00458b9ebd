package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tdhoang/cost-ledger/internal/auth"
)

// Routes mounts the cost ledger endpoints behind the auth middleware.
func Routes(h *Handler, authMiddleware auth.Middleware) chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","service":"cost-ledger"}`))
	})

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)

		r.Get("/v1/costs", h.HandleList)
		r.Post("/v1/costs", h.HandleCreate)
		r.Post("/v1/costs/batch", h.HandleCreateBatch)
		r.Put("/v1/costs/{id}", h.HandleUpdate)
		r.Delete("/v1/costs/{id}", h.HandleDelete)

		r.Get("/v1/costs/summary", h.HandleSummary)
		r.Get("/v1/costs/trends", h.HandleTrends)
		r.Get("/v1/costs/filters", h.HandleFilters)
	})

	return r
}
