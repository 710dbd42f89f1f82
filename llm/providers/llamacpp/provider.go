// Package llamacpp adapts the OpenAI-compatible server bundled with
// llama.cpp. The server rejects system turns and consecutive same-role
// turns, so the request builder normalizes the sequence itself.
package llamacpp

import (
	"github.com/sanchez314c/agent-chat/llm"
	"github.com/sanchez314c/agent-chat/llm/providers"
	"github.com/sanchez314c/agent-chat/llm/providers/openaicompat"
	"github.com/sanchez314c/agent-chat/types"
)

const (
	// DefaultPort is llama-server's stock listen port.
	DefaultPort = 8080
	// DefaultModel is the placeholder id; the server ignores it.
	DefaultModel = "local-model"
	// Greeting opens a sequence that would otherwise start with assistant.
	Greeting = "Hello, please respond to my message."
)

// New returns the llama.cpp adapter.
func New() llm.Adapter {
	return llm.Adapter{
		ID:                llm.ProviderLlamaCpp,
		Name:              "Llama.cpp (Local)",
		Endpoint:          llm.LocalEndpoint(DefaultPort, "/v1/chat/completions"),
		DefaultModel:      DefaultModel,
		Models:            []string{DefaultModel},
		StrictAlternation: true,
		Headers:           llm.NoHeaders,
		BuildRequest:      BuildRequest,
		ParseResponse:     openaicompat.ParseResponse,
	}
}

// Alternate drops system messages, merges consecutive same-role turns with a
// blank line and opens with a user greeting when the first turn is assistant.
func Alternate(msgs []types.Message) []providers.WireMessage {
	out := make([]providers.WireMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == types.RoleSystem {
			continue
		}
		role := providers.WireRole(m.Role)
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content += "\n\n" + m.Content
			continue
		}
		out = append(out, providers.WireMessage{Role: role, Content: m.Content})
	}
	if len(out) > 0 && out[0].Role == string(types.RoleAssistant) {
		out = append([]providers.WireMessage{{Role: string(types.RoleUser), Content: Greeting}}, out...)
	}
	return out
}

// BuildRequest renders the chat completions body without a model field.
func BuildRequest(msgs []types.Message, _ string, maxTokens int, temperature float64, extra llm.Params) any {
	body := map[string]any{
		"messages":    Alternate(msgs),
		"max_tokens":  maxTokens,
		"temperature": temperature,
		"stream":      false,
	}
	return providers.MergeParams(body, extra)
}
