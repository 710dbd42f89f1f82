// Package factory wires every provider adapter into a registry. It imports
// all provider sub-packages, which the llm package itself cannot do without
// an import cycle.
package factory

import (
	"fmt"
	"strings"

	"github.com/sanchez314c/agent-chat/llm"
	"github.com/sanchez314c/agent-chat/llm/providers/anthropic"
	"github.com/sanchez314c/agent-chat/llm/providers/gemini"
	"github.com/sanchez314c/agent-chat/llm/providers/huggingface"
	"github.com/sanchez314c/agent-chat/llm/providers/llamacpp"
	"github.com/sanchez314c/agent-chat/llm/providers/ollama"
	"github.com/sanchez314c/agent-chat/llm/providers/openaicompat"
	"github.com/sanchez314c/agent-chat/llm/providers/pi"
	"github.com/sanchez314c/agent-chat/llm/providers/replicate"
)

// aliases maps alternative spellings onto canonical provider ids.
var aliases = map[string]string{
	"claude":    llm.ProviderAnthropic,
	"google":    llm.ProviderGemini,
	"grok":      llm.ProviderXAI,
	"replicate": llm.ProviderMeta,
	"llama.cpp": llm.ProviderLlamaCpp,
	"hf":        llm.ProviderHuggingFace,
}

// constructors is ordered the way providers are presented to operators.
var constructors = []struct {
	id  string
	new func() llm.Adapter
}{
	{llm.ProviderOpenRouter, newOpenRouter},
	{llm.ProviderOpenAI, newOpenAI},
	{llm.ProviderAnthropic, anthropic.New},
	{llm.ProviderGemini, gemini.New},
	{llm.ProviderDeepSeek, newDeepSeek},
	{llm.ProviderGroq, newGroq},
	{llm.ProviderHuggingFace, huggingface.New},
	{llm.ProviderMeta, replicate.New},
	{llm.ProviderMistral, newMistral},
	{llm.ProviderPi, pi.New},
	{llm.ProviderTogether, newTogether},
	{llm.ProviderXAI, newXAI},
	{llm.ProviderOllama, ollama.New},
	{llm.ProviderLlamaCpp, llamacpp.New},
}

// Canonical resolves aliases and normalizes case.
func Canonical(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if id, ok := aliases[name]; ok {
		return id
	}
	return name
}

// SupportedProviders returns every canonical provider id.
func SupportedProviders() []string {
	out := make([]string, 0, len(constructors))
	for _, c := range constructors {
		out = append(out, c.id)
	}
	return out
}

// NewAdapter returns the adapter for name (aliases accepted).
func NewAdapter(name string) (llm.Adapter, error) {
	id := Canonical(name)
	for _, c := range constructors {
		if c.id == id {
			return c.new(), nil
		}
	}
	return llm.Adapter{}, fmt.Errorf("unsupported provider: %q", name)
}

// NewRegistry returns a registry holding all supported providers.
func NewRegistry() *llm.Registry {
	r := llm.NewRegistry()
	for _, c := range constructors {
		r.Register(c.new())
	}
	return r
}

// =============================================================================
// OpenAI-compatible providers
// =============================================================================

func newOpenRouter() llm.Adapter {
	return openaicompat.New(openaicompat.Config{
		ProviderName: llm.ProviderOpenRouter,
		DisplayName:  "OpenRouter",
		BaseURL:      "https://openrouter.ai",
		EndpointPath: "/api/v1/chat/completions",
		DefaultModel: "meta-llama/llama-3.1-8b-instruct:free",
		Models: []string{
			"meta-llama/llama-3.1-8b-instruct:free",
			"meta-llama/llama-3.1-70b-instruct:free",
			"microsoft/wizardlm-2-8x22b",
			"google/gemma-2-9b-it:free",
			"mistralai/mistral-7b-instruct:free",
		},
		BuildHeaders: func(secret string) map[string]string {
			return map[string]string{
				"Authorization": "Bearer " + secret,
				"HTTP-Referer":  "https://agentchat.local",
				"X-Title":       "AgentCHAT",
			}
		},
		Discovery: &llm.Discovery{
			URL:    llm.StaticEndpoint("https://openrouter.ai/api/v1/models"),
			IDPath: "data.#.id",
		},
	})
}

func newOpenAI() llm.Adapter {
	return openaicompat.New(openaicompat.Config{
		ProviderName: llm.ProviderOpenAI,
		DisplayName:  "OpenAI",
		BaseURL:      "https://api.openai.com",
		DefaultModel: "gpt-4o-mini",
		Models: []string{
			"gpt-4o",
			"gpt-4o-2024-11-20",
			"gpt-4o-2024-08-06",
			"gpt-4o-2024-05-13",
			"gpt-4o-mini",
			"gpt-4o-mini-2024-07-18",
			"gpt-4-turbo",
			"gpt-4-turbo-2024-04-09",
			"gpt-4-turbo-preview",
			"gpt-4-0125-preview",
			"gpt-4-1106-preview",
			"gpt-4",
			"gpt-4-0613",
			"gpt-3.5-turbo",
			"gpt-3.5-turbo-0125",
			"gpt-3.5-turbo-1106",
			"gpt-3.5-turbo-16k",
			"o1-preview",
			"o1-preview-2024-09-12",
			"o1-mini",
			"o1-mini-2024-09-12",
		},
		Discovery: openaicompat.ModelsDiscovery("https://api.openai.com",
			func(id string) bool { return strings.Contains(id, "gpt") || strings.Contains(id, "o1") },
			llm.PreferContaining("4o", "o1")),
	})
}

func newDeepSeek() llm.Adapter {
	return openaicompat.New(openaicompat.Config{
		ProviderName: llm.ProviderDeepSeek,
		DisplayName:  "DeepSeek",
		BaseURL:      "https://api.deepseek.com",
		DefaultModel: "deepseek-chat",
		Models:       []string{"deepseek-chat", "deepseek-coder"},
		Discovery:    openaicompat.ModelsDiscovery("https://api.deepseek.com", nil, nil),
	})
}

func newGroq() llm.Adapter {
	return openaicompat.New(openaicompat.Config{
		ProviderName: llm.ProviderGroq,
		DisplayName:  "Groq",
		BaseURL:      "https://api.groq.com/openai",
		DefaultModel: "llama3-8b-8192",
		Models:       []string{"llama3-70b-8192", "llama3-8b-8192", "mixtral-8x7b-32768", "gemma-7b-it"},
		Discovery:    openaicompat.ModelsDiscovery("https://api.groq.com/openai", nil, nil),
	})
}

func newMistral() llm.Adapter {
	return openaicompat.New(openaicompat.Config{
		ProviderName: llm.ProviderMistral,
		DisplayName:  "Mistral AI",
		BaseURL:      "https://api.mistral.ai",
		DefaultModel: "mistral-small-latest",
		Models:       []string{"mistral-small-latest", "mistral-medium-latest", "mistral-large-latest"},
		Discovery:    openaicompat.ModelsDiscovery("https://api.mistral.ai", nil, nil),
	})
}

func newTogether() llm.Adapter {
	d := openaicompat.ModelsDiscovery("https://api.together.xyz", llm.ContainsAny("chat"), nil)
	// Together returns a bare array instead of {"data": [...]}.
	d.IDPath = "#.id"
	return openaicompat.New(openaicompat.Config{
		ProviderName: llm.ProviderTogether,
		DisplayName:  "Together AI",
		BaseURL:      "https://api.together.xyz",
		DefaultModel: "meta-llama/Llama-3-70b-chat-hf",
		Models: []string{
			"meta-llama/Llama-3-70b-chat-hf",
			"meta-llama/Llama-3-8b-chat-hf",
			"mistralai/Mixtral-8x7B-Instruct-v0.1",
			"NousResearch/Nous-Hermes-2-Mixtral-8x7B-DPO",
		},
		Discovery: d,
	})
}

func newXAI() llm.Adapter {
	return openaicompat.New(openaicompat.Config{
		ProviderName: llm.ProviderXAI,
		DisplayName:  "xAI (Grok)",
		BaseURL:      "https://api.x.ai",
		DefaultModel: "grok-1",
		Models:       []string{"grok-1", "grok-2"},
	})
}
