// Package pi adapts the Pi chat API. Pi has a single model and accepts no
// sampling parameters besides the caller's extras.
package pi

import (
	"github.com/sanchez314c/agent-chat/llm"
	"github.com/sanchez314c/agent-chat/llm/providers"
	"github.com/sanchez314c/agent-chat/types"
)

// Endpoint is the chat URL.
const Endpoint = "https://api.pi.ai/v1/chat"

// New returns the Pi adapter.
func New() llm.Adapter {
	return llm.Adapter{
		ID:           llm.ProviderPi,
		Name:         "Pi.ai",
		Endpoint:     llm.StaticEndpoint(Endpoint),
		DefaultModel: "pi",
		Models:       []string{"pi"},
		RequiresAuth: true,
		Headers: func(secret string) map[string]string {
			return map[string]string{"X-API-Key": secret}
		},
		BuildRequest:  BuildRequest,
		ParseResponse: ParseResponse,
	}
}

// BuildRequest renders {messages, ...extra}.
func BuildRequest(msgs []types.Message, _ string, _ int, _ float64, extra llm.Params) any {
	body := map[string]any{"messages": providers.ToWireMessages(msgs)}
	return providers.MergeParams(body, extra)
}

// ParseResponse returns the top-level message.
func ParseResponse(body []byte) string {
	return providers.TextAt(body, "message")
}
