package tokenizer

import (
	"strings"
	"sync"

	"github.com/sanchez314c/agent-chat/types"
)

// Tokenizer counts tokens for one model family.
type Tokenizer interface {
	// CountTokens returns the token count of text.
	CountTokens(text string) (int, error)

	// CountMessages returns the token count of a chat prompt, including
	// the per-message framing overhead.
	CountMessages(messages []types.Message) (int, error)

	// Name identifies the tokenizer in logs.
	Name() string
}

const (
	// messageOverhead approximates the role and separator tokens around
	// every chat message.
	messageOverhead = 4
	// replyPrimer approximates the tokens that prime the assistant reply.
	replyPrimer = 3
)

var (
	registryMu sync.RWMutex
	registry   = map[string]Tokenizer{}
)

// Register makes t the tokenizer for model and every model it prefixes.
func Register(model string, t Tokenizer) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[model] = t
}

// ForModel returns the registered tokenizer whose name is the longest
// prefix of model, or an estimator when none matches.
func ForModel(model string) Tokenizer {
	registryMu.RLock()
	defer registryMu.RUnlock()

	if t, ok := registry[model]; ok {
		return t
	}
	var (
		best    Tokenizer
		bestLen int
	)
	for prefix, t := range registry {
		if len(prefix) > bestLen && strings.HasPrefix(model, prefix) {
			best, bestLen = t, len(prefix)
		}
	}
	if best != nil {
		return best
	}
	return NewEstimator()
}

func init() {
	RegisterOpenAI()
}
