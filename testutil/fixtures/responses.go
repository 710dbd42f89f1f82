// =============================================================================
// Fixtures: provider response bodies
// =============================================================================
package fixtures

import (
	"encoding/json"
	"fmt"
)

// ChatCompletionBody returns an OpenAI-style completion body.
func ChatCompletionBody(content string) string {
	return ChatCompletionBodyWithUsage(content, 10, 20)
}

// ChatCompletionBodyWithUsage sets the token counts of the usage block.
func ChatCompletionBodyWithUsage(content string, promptTokens, completionTokens int) string {
	body := map[string]any{
		"id":     "chatcmpl-test",
		"object": "chat.completion",
		"choices": []any{
			map[string]any{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			},
		},
		"usage": map[string]any{
			"prompt_tokens":     promptTokens,
			"completion_tokens": completionTokens,
			"total_tokens":      promptTokens + completionTokens,
		},
	}
	return mustMarshal(body)
}

// AnthropicBody returns a Messages API body with one text block.
func AnthropicBody(content string) string {
	return mustMarshal(map[string]any{
		"id":      "msg_test",
		"type":    "message",
		"role":    "assistant",
		"content": []any{map[string]any{"type": "text", "text": content}},
		"usage":   map[string]any{"input_tokens": 10, "output_tokens": 20},
	})
}

// GeminiBody returns a generateContent body with one candidate.
func GeminiBody(content string) string {
	return mustMarshal(map[string]any{
		"candidates": []any{
			map[string]any{
				"content": map[string]any{
					"role":  "model",
					"parts": []any{map[string]any{"text": content}},
				},
			},
		},
	})
}

// ErrorBody returns the nested {"error":{"message":...}} shape.
func ErrorBody(message string) string {
	return mustMarshal(map[string]any{
		"error": map[string]any{"message": message, "type": "invalid_request_error"},
	})
}

// ModelsBody returns a {"data":[{"id":...}]} listing.
func ModelsBody(ids ...string) string {
	data := make([]any, len(ids))
	for i, id := range ids {
		data[i] = map[string]any{"id": id, "object": "model"}
	}
	return mustMarshal(map[string]any{"object": "list", "data": data})
}

func mustMarshal(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("fixtures: %v", err))
	}
	return string(b)
}
