package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shaneholloman/automaker/internal/provider"
	apiTypes "github.com/shaneholloman/automaker/pkg/api"
)

// ---------------------------------------------------------------------------
// Provider endpoints
// ---------------------------------------------------------------------------

func (h *Handler) listProviders(w http.ResponseWriter, r *http.Request) {
	names := h.registry.Names()
	resp := apiTypes.ProviderListResponse{Providers: make([]apiTypes.ProviderInfo, 0, len(names))}
	for _, name := range names {
		p, err := h.registry.Get(name)
		if err != nil {
			continue
		}
		info := apiTypes.ProviderInfo{
			Name:      name,
			Tools:     p.SupportsFeature(provider.FeatureTools),
			Vision:    p.SupportsFeature(provider.FeatureVision),
			Streaming: p.SupportsFeature(provider.FeatureStreaming),
			History:   p.SupportsFeature(provider.FeatureHistory),
		}
		if def, ok := provider.DefaultModel(p.AvailableModels()); ok {
			info.DefaultModel = def.ID
		}
		resp.Providers = append(resp.Providers, info)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getProviderModels(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	p, err := h.registry.Get(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown provider", err.Error())
		return
	}

	models := p.AvailableModels()
	resp := apiTypes.ModelListResponse{
		Provider: name,
		Models:   make([]apiTypes.ModelInfo, 0, len(models)),
	}
	for _, m := range models {
		resp.Models = append(resp.Models, apiTypes.ModelInfo{
			ID:              m.ID,
			DisplayName:     m.DisplayName,
			ContextWindow:   m.ContextWindow,
			MaxOutputTokens: m.MaxOutputTokens,
			SupportsVision:  m.SupportsVision,
			SupportsTools:   m.SupportsTools,
			Tier:            m.Tier,
			IsDefault:       m.IsDefault,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getProviderStatus(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	p, err := h.registry.Get(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown provider", err.Error())
		return
	}

	status := p.DetectInstallation(r.Context())
	writeJSON(w, http.StatusOK, apiTypes.ProviderStatusResponse{
		Provider:      name,
		Installed:     status.Installed,
		Path:          status.Path,
		Version:       status.Version,
		Method:        status.Method,
		HasCredential: status.HasCredential,
		Authenticated: status.Authenticated,
	})
}
