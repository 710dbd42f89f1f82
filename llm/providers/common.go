package providers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/sanchez314c/agent-chat/llm"
	"github.com/sanchez314c/agent-chat/types"
	"github.com/tidwall/gjson"
)

// WireMessage is the {role, content} pair shared by most chat schemas.
type WireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// WireRole maps a conversation role onto the three roles providers accept.
// Operator entries always travel as user.
func WireRole(r types.Role) string {
	if r == types.RoleOperator {
		return string(types.RoleUser)
	}
	return string(r)
}

// ToWireMessages converts messages for OpenAI-style schemas.
func ToWireMessages(msgs []types.Message) []WireMessage {
	out := make([]WireMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, WireMessage{Role: WireRole(m.Role), Content: m.Content})
	}
	return out
}

// MergeParams copies extra into body. Caller keys overwrite adapter defaults.
func MergeParams(body map[string]any, extra llm.Params) map[string]any {
	for k, v := range extra {
		body[k] = v
	}
	return body
}

// TextAt returns the string at a gjson path, or "" on any mismatch.
func TextAt(body []byte, path string) string {
	if !gjson.ValidBytes(body) {
		return ""
	}
	r := gjson.GetBytes(body, path)
	if r.Type != gjson.String {
		return ""
	}
	return r.String()
}

// ReadErrorMessage extracts a human-readable message from an error body.
// It tries error.message, a bare error string and message before falling
// back to the HTTP status line ("429 Too Many Requests").
func ReadErrorMessage(body []byte, status string) string {
	if gjson.ValidBytes(body) {
		for _, path := range []string{"error.message", "error", "message"} {
			r := gjson.GetBytes(body, path)
			if r.Type == gjson.String && strings.TrimSpace(r.String()) != "" {
				return r.String()
			}
		}
	}
	if status != "" {
		return status
	}
	return "request failed"
}

// StatusText renders a status code the way net/http formats Response.Status.
func StatusText(code int) string {
	return fmt.Sprintf("%d %s", code, http.StatusText(code))
}

// MapHTTPError maps a non-2xx status onto a structured error.
func MapHTTPError(status int, msg string, provider string) *types.Error {
	var code types.ErrorCode
	retryable := false
	switch {
	case status == http.StatusUnauthorized:
		code = types.ErrUnauthorized
	case status == http.StatusForbidden:
		code = types.ErrForbidden
	case status == http.StatusTooManyRequests:
		code = types.ErrRateLimited
		retryable = true
	case status == http.StatusNotFound:
		code = types.ErrModelNotFound
	case status == http.StatusBadRequest:
		code = types.ErrInvalidRequest
	case status == http.StatusServiceUnavailable, status == http.StatusBadGateway, status == http.StatusGatewayTimeout:
		code = types.ErrServiceUnavailable
		retryable = true
	default:
		code = types.ErrUpstreamError
		retryable = status >= 500
	}
	return types.NewError(code, msg).
		WithHTTPStatus(status).
		WithRetryable(retryable).
		WithProvider(provider)
}

// SplitSystem returns the first system message content and every
// non-system message, in order.
func SplitSystem(msgs []types.Message) (string, []types.Message) {
	system := ""
	found := false
	rest := make([]types.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == types.RoleSystem {
			if !found {
				system = m.Content
				found = true
			}
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}

// PromptTranscript flattens messages into "role: content" lines for
// completion-style endpoints that take a single prompt string.
func PromptTranscript(msgs []types.Message) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, WireRole(m.Role)+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}
