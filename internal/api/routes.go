package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger, h.metrics),
	)
	user := Chain(chain, RequireUser)

	// Workflows
	mux.Handle("GET /api/v1/workflows", chain(http.HandlerFunc(h.ListWorkflows)))
	mux.Handle("POST /api/v1/workflows/{type}/jobs", user(http.HandlerFunc(h.StartJob)))

	// Jobs
	mux.Handle("GET /api/v1/jobs", user(http.HandlerFunc(h.ListJobs)))
	mux.Handle("GET /api/v1/jobs/{id}", user(http.HandlerFunc(h.GetJob)))
	mux.Handle("POST /api/v1/jobs/{id}/resume", user(http.HandlerFunc(h.ResumeJob)))
	mux.Handle("POST /api/v1/jobs/{id}/cancel", user(http.HandlerFunc(h.CancelJob)))
	mux.Handle("POST /api/v1/jobs/{id}/consume", user(http.HandlerFunc(h.ConsumeJob)))

	// Providers
	mux.Handle("GET /api/v1/providers", chain(http.HandlerFunc(h.ListProviders)))
	mux.Handle("GET /api/v1/providers/{name}", chain(http.HandlerFunc(h.GetProvider)))
	mux.Handle("PUT /api/v1/providers/{name}", chain(http.HandlerFunc(h.PutProvider)))
	mux.Handle("DELETE /api/v1/providers/{name}", chain(http.HandlerFunc(h.DeleteProvider)))
}
