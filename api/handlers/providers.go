package handlers

import (
	"net/http"
	"strings"

	"github.com/sanchez314c/agent-chat/agent"
	"github.com/sanchez314c/agent-chat/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// maxDiscoveryFanout bounds concurrent catalog lookups for /models.
const maxDiscoveryFanout = 4

// ProviderHandler serves provider listings, model catalogs, connection
// tests and credential management.
type ProviderHandler struct {
	manager *agent.Manager
	logger  *zap.Logger
}

// NewProviderHandler creates a ProviderHandler.
func NewProviderHandler(manager *agent.Manager, logger *zap.Logger) *ProviderHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProviderHandler{
		manager: manager,
		logger:  logger.With(zap.String("component", "provider_handler")),
	}
}

// providerResponse adds credential presence to agent.ProviderInfo.
type providerResponse struct {
	agent.ProviderInfo
	Configured bool `json:"configured"`
}

// credentialRequest is the body of PUT .../credential.
type credentialRequest struct {
	APIKey string `json:"api_key"`
}

// credentialStatus never carries the secret itself.
type credentialStatus struct {
	Provider   string `json:"provider"`
	Configured bool   `json:"configured"`
}

// testRequest optionally points a connection test at a local server.
type testRequest struct {
	LocalHost string `json:"local_host,omitempty"`
	LocalPort int    `json:"local_port,omitempty"`
}

// testResponse is the outcome of a connection test.
type testResponse struct {
	Provider string `json:"provider"`
	OK       bool   `json:"ok"`
}

// providerModels is one entry of the /models listing.
type providerModels struct {
	Provider string   `json:"provider"`
	Models   []string `json:"models"`
}

// HandleList serves GET /api/v1/providers.
// @Router /api/v1/providers [get]
func (h *ProviderHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	infos := h.manager.Providers()
	out := make([]providerResponse, 0, len(infos))
	for _, info := range infos {
		out = append(out, providerResponse{
			ProviderInfo: info,
			Configured:   !info.RequiresAuth || h.manager.HasCredential(r.Context(), info.ID),
		})
	}
	WriteSuccess(w, out)
}

// HandleModels serves GET /api/v1/providers/{id}/models.
// @Router /api/v1/providers/{id}/models [get]
func (h *ProviderHandler) HandleModels(w http.ResponseWriter, r *http.Request) {
	id, ok := h.providerID(w, r)
	if !ok {
		return
	}
	WriteSuccess(w, providerModels{Provider: id, Models: h.manager.ListModels(r.Context(), id)})
}

// HandleAllModels serves GET /api/v1/models, resolving every provider's
// catalog concurrently.
// @Router /api/v1/models [get]
func (h *ProviderHandler) HandleAllModels(w http.ResponseWriter, r *http.Request) {
	infos := h.manager.Providers()
	out := make([]providerModels, len(infos))

	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(maxDiscoveryFanout)
	for i, info := range infos {
		g.Go(func() error {
			out[i] = providerModels{Provider: info.ID, Models: h.manager.ListModels(ctx, info.ID)}
			return nil
		})
	}
	// ListModels never fails; it falls back to the static catalog
	_ = g.Wait()

	WriteSuccess(w, out)
}

// HandleTest serves POST /api/v1/providers/{id}/test.
// @Router /api/v1/providers/{id}/test [post]
func (h *ProviderHandler) HandleTest(w http.ResponseWriter, r *http.Request) {
	id, ok := h.providerID(w, r)
	if !ok {
		return
	}

	var req testRequest
	if r.ContentLength > 0 {
		if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
			return
		}
	}

	cfg := types.AgentConfig{ID: "connection-test", Provider: id}
	if req.LocalHost != "" || req.LocalPort != 0 {
		cfg.LocalServer = &types.LocalServerConfig{Host: req.LocalHost, Port: req.LocalPort}
	}
	okConn := h.manager.TestConnection(r.Context(), cfg)
	h.logger.Info("connection test", zap.String("provider", id), zap.Bool("ok", okConn))
	WriteSuccess(w, testResponse{Provider: id, OK: okConn})
}

// HandleGetCredential serves GET /api/v1/providers/{id}/credential. It only
// reports whether a credential is stored.
// @Router /api/v1/providers/{id}/credential [get]
func (h *ProviderHandler) HandleGetCredential(w http.ResponseWriter, r *http.Request) {
	id, ok := h.providerID(w, r)
	if !ok {
		return
	}
	WriteSuccess(w, credentialStatus{Provider: id, Configured: h.manager.HasCredential(r.Context(), id)})
}

// HandlePutCredential serves PUT /api/v1/providers/{id}/credential.
// @Router /api/v1/providers/{id}/credential [put]
func (h *ProviderHandler) HandlePutCredential(w http.ResponseWriter, r *http.Request) {
	id, ok := h.providerID(w, r)
	if !ok {
		return
	}
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req credentialRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	secret := strings.TrimSpace(req.APIKey)
	if secret == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "api_key is required", h.logger)
		return
	}

	if err := h.manager.SaveCredential(r.Context(), id, secret); err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteSuccess(w, credentialStatus{Provider: id, Configured: true})
}

// HandleDeleteCredential serves DELETE /api/v1/providers/{id}/credential.
// @Router /api/v1/providers/{id}/credential [delete]
func (h *ProviderHandler) HandleDeleteCredential(w http.ResponseWriter, r *http.Request) {
	id, ok := h.providerID(w, r)
	if !ok {
		return
	}
	if err := h.manager.DeleteCredential(r.Context(), id); err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	// an environment variable can still supply one
	WriteSuccess(w, credentialStatus{Provider: id, Configured: h.manager.HasCredential(r.Context(), id)})
}

// providerID extracts and checks the {id} path value. On failure the error
// response is already written.
func (h *ProviderHandler) providerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.ToLower(strings.TrimSpace(r.PathValue("id")))
	if id == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "provider id is required", h.logger)
		return "", false
	}
	if !h.manager.HasProvider(id) {
		WriteErrorMessage(w, http.StatusNotFound, types.ErrUnknownProvider, "unknown provider: "+id, h.logger)
		return "", false
	}
	return id, true
}
