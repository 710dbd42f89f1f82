// Package gemini adapts the Google Generative Language generateContent API.
//
// The model id is part of the path and the secret travels as the "key"
// query parameter, so no Authorization header is ever sent.
package gemini

import (
	"github.com/sanchez314c/agent-chat/llm"
	"github.com/sanchez314c/agent-chat/llm/providers"
	"github.com/sanchez314c/agent-chat/types"
)

const (
	// BaseURL is the endpoint prefix; the model is interpolated after it.
	BaseURL = "https://generativelanguage.googleapis.com/v1beta/models"
	// DefaultModel is used when an agent has no model selected.
	DefaultModel = "gemini-1.5-flash"
)

// Models is the fallback catalog.
var Models = []string{
	"gemini-2.5-pro",
	"gemini-2.5-pro-experimental",
	"gemini-2.5-pro-preview-06-05",
	"gemini-2.5-pro-preview-05-06",
	"gemini-2.5-flash",
	"gemini-2.5-flash-lite",
	"gemini-2.5-flash-lite-preview-06-17",
	"gemini-2.0-flash",
	"gemini-2.0-flash-experimental",
	"gemini-2.0-flash-lite",
	"gemini-2.0-flash-exp",
	"gemini-1.5-pro",
	"gemini-1.5-pro-002",
	"gemini-1.5-pro-001",
	"gemini-1.5-pro-latest",
	"gemini-1.5-flash",
	"gemini-1.5-flash-002",
	"gemini-1.5-flash-001",
	"gemini-1.5-flash-latest",
	"gemini-1.5-flash-8b",
	"gemini-1.5-flash-8b-latest",
	"gemini-1.0-pro",
	"gemini-1.0-pro-latest",
	"gemini-1.0-pro-001",
	"gemini-pro",
	"gemini-pro-vision",
	"gemma-3-4b",
	"gemma-3-4b-free",
	"gemma-3n-2b",
	"gemma-3n-2b-free",
	"gemma-3n-4b",
	"gemma-3n-4b-free",
	"gemma-3-12b",
	"gemma-3-12b-free",
	"gemma-3-27b",
	"gemma-3-27b-free",
	"gemma-2-27b",
	"gemma-2-9b",
	"gemma-2-9b-free",
}

// generationConfig uses camelCase field names.
var paramNames = map[string]string{
	"top_p":             "topP",
	"top_k":             "topK",
	"presence_penalty":  "presencePenalty",
	"frequency_penalty": "frequencyPenalty",
	"max_tokens":        "maxOutputTokens",
	"stop":              "stopSequences",
}

// New returns the Gemini adapter.
func New() llm.Adapter {
	return llm.Adapter{
		ID:             llm.ProviderGemini,
		Name:           "Google Gemini",
		Endpoint:       endpoint,
		DefaultModel:   DefaultModel,
		Models:         Models,
		RequiresAuth:   true,
		QueryAuthParam: "key",
		Headers:        llm.BearerHeaders,
		BuildRequest:   BuildRequest,
		ParseResponse:  ParseResponse,
		Discovery: &llm.Discovery{
			URL:        llm.StaticEndpoint(BaseURL),
			Auth:       llm.DiscoveryAuthQuery,
			IDPath:     "models.#.name",
			TrimPrefix: "models/",
			Filter:     llm.ContainsAny("gemini", "gemma"),
			Less:       llm.PreferContaining("2."),
		},
	}
}

func endpoint(model string, _ *types.LocalServerConfig) string {
	return BaseURL + "/" + model + ":generateContent"
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

// BuildRequest renders the generateContent body. System messages are not
// part of the turn sequence.
func BuildRequest(msgs []types.Message, _ string, maxTokens int, temperature float64, extra llm.Params) any {
	contents := make([]content, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == types.RoleSystem {
			continue
		}
		role := "user"
		if m.Role == types.RoleAssistant {
			role = "model"
		}
		contents = append(contents, content{Role: role, Parts: []part{{Text: m.Content}}})
	}
	cfg := map[string]any{
		"maxOutputTokens": maxTokens,
		"temperature":     temperature,
	}
	for k, v := range extra {
		if name, ok := paramNames[k]; ok {
			k = name
		}
		cfg[k] = v
	}
	return map[string]any{
		"contents":         contents,
		"generationConfig": cfg,
	}
}

// ParseResponse returns candidates[0].content.parts[0].text.
func ParseResponse(body []byte) string {
	return providers.TextAt(body, "candidates.0.content.parts.0.text")
}

