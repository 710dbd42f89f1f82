// Package replicate adapts Meta Llama models hosted on Replicate's
// predictions API.
package replicate

import (
	"strings"

	"github.com/sanchez314c/agent-chat/llm"
	"github.com/sanchez314c/agent-chat/llm/providers"
	"github.com/sanchez314c/agent-chat/types"
	"github.com/tidwall/gjson"
)

const (
	// Endpoint is the predictions URL.
	Endpoint = "https://api.replicate.com/v1/predictions"
	// DefaultModel is used when an agent has no model selected.
	DefaultModel = "meta/llama-2-70b-chat"
)

// Models is the fallback catalog.
var Models = []string{"meta/llama-2-70b-chat", "meta/llama-2-13b-chat", "meta/llama-2-7b-chat"}

// New returns the Meta (via Replicate) adapter.
func New() llm.Adapter {
	return llm.Adapter{
		ID:            llm.ProviderMeta,
		Name:          "Meta (via Replicate)",
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
	return map[string]string{"Authorization": "Token " + secret}
}

// Version returns the version hash of "owner/name:version", or "latest".
func Version(model string) string {
	if _, v, ok := strings.Cut(model, ":"); ok && v != "" {
		return v
	}
	return "latest"
}

// BuildRequest renders the prediction body.
func BuildRequest(msgs []types.Message, model string, maxTokens int, temperature float64, extra llm.Params) any {
	input := map[string]any{
		"prompt":         providers.PromptTranscript(msgs),
		"max_new_tokens": maxTokens,
		"temperature":    temperature,
	}
	return map[string]any{
		"version": Version(model),
		"input":   providers.MergeParams(input, extra),
	}
}

// ParseResponse joins the streamed output tokens.
func ParseResponse(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}
	out := gjson.GetBytes(body, "output")
	switch {
	case out.IsArray():
		var sb strings.Builder
		for _, tok := range out.Array() {
			if tok.Type == gjson.String {
				sb.WriteString(tok.String())
			}
		}
		return sb.String()
	case out.Type == gjson.String:
		return out.String()
	}
	return ""
}
