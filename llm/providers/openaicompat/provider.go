// =============================================================================
// OpenAI-Compatible Adapter Base
// =============================================================================
// Shared adapter for all OpenAI-compatible providers. Providers only declare
// what differs (name, base URL, default model, headers, catalog).
// =============================================================================

package openaicompat

import (
	"strings"

	"github.com/sanchez314c/agent-chat/llm"
	"github.com/sanchez314c/agent-chat/llm/providers"
	"github.com/sanchez314c/agent-chat/types"
)

// Config holds the per-provider differences of an OpenAI-compatible adapter.
type Config struct {
	// ProviderName is the registry id (e.g. "deepseek").
	ProviderName string

	// DisplayName defaults to ProviderName.
	DisplayName string

	// BaseURL is the API root (e.g. "https://api.deepseek.com").
	BaseURL string

	// EndpointPath is the chat completions path. Defaults to "/v1/chat/completions".
	EndpointPath string

	// DefaultModel is used when an agent has no model selected.
	DefaultModel string

	// Models is the hardcoded fallback catalog.
	Models []string

	// BuildHeaders replaces the default "Authorization: Bearer <secret>".
	BuildHeaders func(secret string) map[string]string

	// Discovery describes the model listing endpoint, if any.
	Discovery *llm.Discovery
}

// New creates the adapter for an OpenAI-compatible provider.
func New(cfg Config) llm.Adapter {
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/v1/chat/completions"
	}
	if cfg.DisplayName == "" {
		cfg.DisplayName = cfg.ProviderName
	}
	headers := cfg.BuildHeaders
	if headers == nil {
		headers = llm.BearerHeaders
	}
	return llm.Adapter{
		ID:            cfg.ProviderName,
		Name:          cfg.DisplayName,
		Endpoint:      llm.StaticEndpoint(strings.TrimRight(cfg.BaseURL, "/") + cfg.EndpointPath),
		DefaultModel:  cfg.DefaultModel,
		Models:        cfg.Models,
		RequiresAuth:  true,
		Headers:       headers,
		BuildRequest:  BuildRequest,
		ParseResponse: ParseResponse,
		Discovery:     cfg.Discovery,
	}
}

// BuildRequest renders the Chat Completions body. Streaming is always off.
func BuildRequest(msgs []types.Message, model string, maxTokens int, temperature float64, extra llm.Params) any {
	body := map[string]any{
		"model":       model,
		"messages":    providers.ToWireMessages(msgs),
		"max_tokens":  maxTokens,
		"temperature": temperature,
		"stream":      false,
	}
	return providers.MergeParams(body, extra)
}

// ParseResponse returns choices[0].message.content.
func ParseResponse(body []byte) string {
	return providers.TextAt(body, "choices.0.message.content")
}

// ModelsDiscovery is the common GET /v1/models descriptor with bearer auth.
func ModelsDiscovery(baseURL string, filter func(string) bool, less func(a, b string) bool) *llm.Discovery {
	return &llm.Discovery{
		URL:          llm.StaticEndpoint(strings.TrimRight(baseURL, "/") + "/v1/models"),
		Auth:         llm.DiscoveryAuthBearer,
		AuthRequired: true,
		IDPath:       "data.#.id",
		Filter:       filter,
		Less:         less,
	}
}
