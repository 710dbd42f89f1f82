package llm

import (
	"net/url"
	"strings"

	"github.com/sanchez314c/agent-chat/types"
)

// Provider ids. The set is closed and known at compile time.
const (
	ProviderOpenRouter  = "openrouter"
	ProviderOpenAI      = "openai"
	ProviderAnthropic   = "anthropic"
	ProviderGemini      = "gemini"
	ProviderDeepSeek    = "deepseek"
	ProviderGroq        = "groq"
	ProviderHuggingFace = "huggingface"
	ProviderMeta        = "meta"
	ProviderMistral     = "mistral"
	ProviderPi          = "pi"
	ProviderTogether    = "together"
	ProviderXAI         = "xai"
	ProviderOllama      = "ollama"
	ProviderLlamaCpp    = "llamacpp"
)

// Params carries extra sampling parameters merged into a request body.
// Caller-supplied keys always win over adapter defaults.
type Params map[string]any

// Clone returns a shallow copy of p.
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// EndpointFunc resolves the request URL for a model. rt is nil unless the
// caller supplied a local-server override.
type EndpointFunc func(model string, rt *types.LocalServerConfig) string

// StaticEndpoint returns an EndpointFunc that always resolves to u.
func StaticEndpoint(u string) EndpointFunc {
	return func(string, *types.LocalServerConfig) string { return u }
}

// RequestBuilder turns a prepared message list into a provider-native body.
type RequestBuilder func(msgs []types.Message, model string, maxTokens int, temperature float64, extra Params) any

// ResponseParser extracts the completion text from a provider-native body.
// It must return "" instead of failing on partial or malformed input.
type ResponseParser func(body []byte) string

// Adapter is the immutable per-provider record of endpoint, header and
// transform functions. Adding a provider means adding one Adapter value.
type Adapter struct {
	ID           string
	Name         string
	Endpoint     EndpointFunc
	DefaultModel string
	// Models is the hardcoded fallback catalog.
	Models []string

	RequiresAuth bool
	// QueryAuthParam moves the secret from the headers into the URL query.
	QueryAuthParam string
	// StrictAlternation marks backends that reject consecutive same-role turns.
	StrictAlternation bool

	Headers       func(secret string) map[string]string
	BuildRequest  RequestBuilder
	ParseResponse ResponseParser

	// Discovery is nil for providers without a listing endpoint.
	Discovery *Discovery
}

// URL resolves the endpoint and applies query authentication when the
// adapter carries its secret in the URL.
func (a Adapter) URL(model string, rt *types.LocalServerConfig, secret string) string {
	endpoint := a.Endpoint(model, rt)
	if a.QueryAuthParam == "" || secret == "" {
		return endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return endpoint
	}
	q := u.Query()
	q.Set(a.QueryAuthParam, secret)
	u.RawQuery = q.Encode()
	return u.String()
}

// RequestHeaders returns the full header set for one call.
func (a Adapter) RequestHeaders(secret string) map[string]string {
	headers := map[string]string{"Content-Type": "application/json"}
	if a.Headers != nil {
		for k, v := range a.Headers(secret) {
			headers[k] = v
		}
	}
	if a.QueryAuthParam != "" {
		for k := range headers {
			if strings.EqualFold(k, "Authorization") {
				delete(headers, k)
			}
		}
	}
	return headers
}

// FallbackModels returns a copy of the hardcoded catalog.
func (a Adapter) FallbackModels() []string {
	out := make([]string, len(a.Models))
	copy(out, a.Models)
	return out
}

// BearerHeaders is the common Authorization: Bearer header builder.
func BearerHeaders(secret string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + secret}
}

// NoHeaders is used by local adapters that send no credentials.
func NoHeaders(string) map[string]string { return nil }
