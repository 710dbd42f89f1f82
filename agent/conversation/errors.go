package conversation

import (
	"errors"
	"net/http"
	"strings"

	"github.com/sanchez314c/agent-chat/types"
)

// ErrInvalidState is returned when an operation is not allowed in the
// current run state.
var ErrInvalidState = errors.New("invalid conversation state")

// ErrEmptyInjection is returned by Inject for blank content.
var ErrEmptyInjection = errors.New("operator message is empty")

const (
	defaultFailure     = "Failed to get agent response"
	configureHint      = ". Please configure it in the agent settings."
	invalidKeyMessage  = "Invalid API key. Please check your API key configuration."
	rateLimitedMessage = "Rate limit exceeded. Please wait a moment and try again."
)

// ClassifyError turns a turn failure into the one-line message shown to the
// operator.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	var (
		code   types.ErrorCode
		status int
	)
	if e, ok := types.AsError(err); ok {
		msg = e.Message
		code = e.Code
		status = e.HTTPStatus
	}

	switch {
	case code == types.ErrMissingCredential || strings.Contains(msg, "No API key found"):
		return msg + configureHint
	case code == types.ErrUnauthorized || status == http.StatusUnauthorized ||
		strings.Contains(msg, "401") || strings.Contains(msg, "Unauthorized"):
		return invalidKeyMessage
	case code == types.ErrRateLimited || status == http.StatusTooManyRequests || strings.Contains(msg, "429"):
		return rateLimitedMessage
	case strings.TrimSpace(msg) == "":
		return defaultFailure
	default:
		return msg
	}
}
