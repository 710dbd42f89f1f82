// Package anthropic adapts the Anthropic Messages API.
//
// The system instruction travels in its own field: the first system message
// becomes "system" and every system message is dropped from "messages".
package anthropic

import (
	"github.com/sanchez314c/agent-chat/llm"
	"github.com/sanchez314c/agent-chat/llm/providers"
	"github.com/sanchez314c/agent-chat/types"
)

const (
	// Endpoint is the Messages API URL.
	Endpoint = "https://api.anthropic.com/v1/messages"
	// APIVersion is sent as the anthropic-version header.
	APIVersion = "2023-06-01"
	// DefaultModel is used when an agent has no model selected.
	DefaultModel = "claude-3-5-sonnet-20241022"
)

// Models is the fallback catalog. Anthropic publishes no listing endpoint.
var Models = []string{
	"claude-sonnet-4",
	"claude-opus-4",
	"claude-3-5-sonnet-20241022",
	"claude-3-5-haiku-20241022",
	"claude-3-opus-20240229",
	"claude-3-sonnet-20240229",
	"claude-3-haiku-20240307",
	"claude-3-5-sonnet-latest",
	"claude-3-5-haiku-latest",
	"claude-3-opus-latest",
	"claude-3-sonnet-latest",
	"claude-3-haiku-latest",
	"claude-2.1",
	"claude-2.0",
	"claude-instant-1.2",
	"claude-instant-1.2-100k",
}

// New returns the Anthropic adapter.
func New() llm.Adapter {
	return llm.Adapter{
		ID:            llm.ProviderAnthropic,
		Name:          "Anthropic",
		Endpoint:      llm.StaticEndpoint(Endpoint),
		DefaultModel:  DefaultModel,
		Models:        Models,
		RequiresAuth:  true,
		Headers:       headers,
		BuildRequest:  BuildRequest,
		ParseResponse: ParseResponse,
	}
}

func headers(secret string) map[string]string {
	return map[string]string{
		"x-api-key":         secret,
		"anthropic-version": APIVersion,
	}
}

// BuildRequest renders the Messages API body.
func BuildRequest(msgs []types.Message, model string, maxTokens int, temperature float64, extra llm.Params) any {
	system, turns := providers.SplitSystem(msgs)
	wire := make([]providers.WireMessage, 0, len(turns))
	for _, m := range turns {
		role := string(types.RoleUser)
		if m.Role == types.RoleAssistant {
			role = string(types.RoleAssistant)
		}
		wire = append(wire, providers.WireMessage{Role: role, Content: m.Content})
	}
	body := map[string]any{
		"model":       model,
		"max_tokens":  maxTokens,
		"temperature": temperature,
		"system":      system,
		"messages":    wire,
	}
	return providers.MergeParams(body, extra)
}

// ParseResponse returns content[0].text.
func ParseResponse(body []byte) string {
	return providers.TextAt(body, "content.0.text")
}
