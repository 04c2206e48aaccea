package api

import (
	"encoding/json"
	"net/http"

	"github.com/shaiso/Reel/internal/domain"
	"github.com/shaiso/Reel/internal/provider"
)

// ListProviders возвращает конфигурации провайдеров.
// GET /api/v1/providers
func (h *Handler) ListProviders(w http.ResponseWriter, r *http.Request) {
	if !h.hasProviders(w) {
		return
	}

	configs, err := h.providers.ListProviders(r.Context())
	if HandleError(w, h.logger, err) {
		return
	}

	List(w, configs, len(configs))
}

// GetProvider возвращает конфигурацию провайдера.
// GET /api/v1/providers/{name}
func (h *Handler) GetProvider(w http.ResponseWriter, r *http.Request) {
	if !h.hasProviders(w) {
		return
	}

	cfg, err := h.providers.Provider(r.Context(), r.PathValue("name"))
	if HandleError(w, h.logger, err) {
		return
	}

	Success(w, cfg)
}

// PutProvider создаёт или заменяет конфигурацию провайдера.
// PUT /api/v1/providers/{name}
func (h *Handler) PutProvider(w http.ResponseWriter, r *http.Request) {
	if !h.hasProviders(w) {
		return
	}

	var cfg domain.ProviderConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	name := r.PathValue("name")
	if cfg.Name == "" {
		cfg.Name = name
	}
	if cfg.Name != name {
		BadRequest(w, "provider name does not match path")
		return
	}

	if HandleError(w, h.logger, provider.Validate(&cfg)) {
		return
	}

	if HandleError(w, h.logger, h.providers.UpsertProvider(r.Context(), &cfg)) {
		return
	}

	h.logger.Info("provider saved", "provider", cfg.Name, "async", cfg.IsAsync())
	Success(w, cfg)
}

// DeleteProvider удаляет конфигурацию провайдера.
// DELETE /api/v1/providers/{name}
func (h *Handler) DeleteProvider(w http.ResponseWriter, r *http.Request) {
	if !h.hasProviders(w) {
		return
	}

	name := r.PathValue("name")
	if HandleError(w, h.logger, h.providers.DeleteProvider(r.Context(), name)) {
		return
	}

	h.logger.Info("provider deleted", "provider", name)
	NoContent(w)
}

func (h *Handler) hasProviders(w http.ResponseWriter) bool {
	if h.providers == nil {
		NotFound(w, "provider store is not configured")
		return false
	}
	return true
}
