// Package huggingface adapts the Hugging Face Inference API text-generation
// task. The conversation is flattened into a single prompt.
package huggingface

import (
	"github.com/sanchez314c/agent-chat/llm"
	"github.com/sanchez314c/agent-chat/llm/providers"
	"github.com/sanchez314c/agent-chat/types"
	"github.com/tidwall/gjson"
)

const (
	// BaseURL is the endpoint prefix; the model id is appended.
	BaseURL = "https://api-inference.huggingface.co/models"
	// DefaultModel is used when an agent has no model selected.
	DefaultModel = "meta-llama/Llama-2-7b-chat-hf"
)

// Models is the fallback catalog.
var Models = []string{
	"meta-llama/Llama-2-7b-chat-hf",
	"meta-llama/Llama-2-13b-chat-hf",
	"mistralai/Mistral-7B-Instruct-v0.1",
	"google/flan-t5-xxl",
}

// Curated is served in place of a listing call; the hub has no chat-model
// filter worth querying.
var Curated = []string{
	"meta-llama/Llama-2-7b-chat-hf",
	"meta-llama/Llama-2-13b-chat-hf",
	"meta-llama/Llama-2-70b-chat-hf",
	"mistralai/Mistral-7B-Instruct-v0.1",
	"mistralai/Mixtral-8x7B-Instruct-v0.1",
	"google/flan-t5-xxl",
	"google/flan-ul2",
	"bigscience/bloom",
	"EleutherAI/gpt-neox-20b",
}

// New returns the Hugging Face adapter.
func New() llm.Adapter {
	return llm.Adapter{
		ID:            llm.ProviderHuggingFace,
		Name:          "HuggingFace",
		Endpoint:      endpoint,
		DefaultModel:  DefaultModel,
		Models:        Models,
		RequiresAuth:  true,
		Headers:       llm.BearerHeaders,
		BuildRequest:  BuildRequest,
		ParseResponse: ParseResponse,
		Discovery:     &llm.Discovery{Static: Curated},
	}
}

func endpoint(model string, _ *types.LocalServerConfig) string {
	if model == "" {
		model = DefaultModel
	}
	return BaseURL + "/" + model
}

// BuildRequest renders the text-generation body.
func BuildRequest(msgs []types.Message, _ string, maxTokens int, temperature float64, extra llm.Params) any {
	params := map[string]any{
		"max_new_tokens":   maxTokens,
		"temperature":      temperature,
		"return_full_text": false,
	}
	return map[string]any{
		"inputs":     providers.PromptTranscript(msgs),
		"parameters": providers.MergeParams(params, extra),
	}
}

// ParseResponse accepts both the array and the object wrapper.
func ParseResponse(body []byte) string {
	if gjson.ValidBytes(body) && gjson.ParseBytes(body).IsArray() {
		return providers.TextAt(body, "0.generated_text")
	}
	return providers.TextAt(body, "generated_text")
}
