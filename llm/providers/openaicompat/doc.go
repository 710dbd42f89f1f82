// Package openaicompat builds adapters for every provider that speaks the
// OpenAI Chat Completions schema.
//
// OpenRouter, OpenAI, DeepSeek, Groq, Mistral, Together and xAI share the
// same body and response shape. Instead of one package per provider they
// each get an llm.Adapter from New and only declare what differs:
//
//   - Provider id, display name and default model
//   - Base URL and endpoint path
//   - Extra headers (OpenRouter attribution headers)
//   - Fallback models and the discovery descriptor
//
// Usage:
//
//	a := openaicompat.New(openaicompat.Config{
//	    ProviderName: "deepseek",
//	    DisplayName:  "DeepSeek",
//	    BaseURL:      "https://api.deepseek.com",
//	    DefaultModel: "deepseek-chat",
//	    Models:       []string{"deepseek-chat", "deepseek-coder"},
//	})
package openaicompat
