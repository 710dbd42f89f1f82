// Package ollama adapts a self-hosted Ollama server's /api/chat endpoint.
// The host and port come from the agent's local-server override.
package ollama

import (
	"github.com/sanchez314c/agent-chat/llm"
	"github.com/sanchez314c/agent-chat/llm/providers"
	"github.com/sanchez314c/agent-chat/types"
)

const (
	// DefaultPort is Ollama's stock listen port.
	DefaultPort = 11434
	// DefaultModel is used when an agent has no model selected.
	DefaultModel = "llama3.2"
)

// Models is the fallback catalog.
var Models = []string{"llama3.2", "llama3.1", "mistral", "phi3", "qwen2.5"}

// New returns the Ollama adapter.
func New() llm.Adapter {
	return llm.Adapter{
		ID:                llm.ProviderOllama,
		Name:              "Ollama (Local)",
		Endpoint:          llm.LocalEndpoint(DefaultPort, "/api/chat"),
		DefaultModel:      DefaultModel,
		Models:            Models,
		StrictAlternation: true,
		Headers:           llm.NoHeaders,
		BuildRequest:      BuildRequest,
		ParseResponse:     ParseResponse,
		Discovery: &llm.Discovery{
			URL:    llm.LocalEndpoint(DefaultPort, "/api/tags"),
			IDPath: "models.#.name",
		},
	}
}

// BuildRequest renders the /api/chat body. Sampling parameters live under
// "options".
func BuildRequest(msgs []types.Message, model string, maxTokens int, temperature float64, extra llm.Params) any {
	options := map[string]any{
		"num_predict": maxTokens,
		"temperature": temperature,
	}
	return map[string]any{
		"model":    model,
		"messages": providers.ToWireMessages(msgs),
		"stream":   false,
		"options":  providers.MergeParams(options, extra),
	}
}

// ParseResponse returns message.content.
func ParseResponse(body []byte) string {
	return providers.TextAt(body, "message.content")
}
