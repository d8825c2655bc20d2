package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter builds the service's HTTP surface.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/fulfillment", func(r chi.Router) {
		r.Post("/orders/{id}", handler.TriggerFulfillment)
		r.Post("/orders/{id}/retry", handler.RetryFulfillment)
		r.Get("/orders/{id}/runs", handler.ListRuns)
		r.Get("/orders/{id}/shipping-estimate", handler.EstimateShipping)
		r.Get("/runs/{id}", handler.GetRun)
	})

	r.Post("/webhooks/{provider}", handler.Webhook)

	r.Get("/providers", handler.ListProviders)
	r.Patch("/providers/{name}", handler.SetProviderEnabled)

	return r
}
