package tokenizer

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"github.com/sanchez314c/agent-chat/types"
)

// openAIEncodings maps model prefixes to their BPE encoding.
var openAIEncodings = map[string]string{
	"gpt-4o":        "o200k_base",
	"gpt-4.1":       "o200k_base",
	"gpt-5":         "o200k_base",
	"o1":            "o200k_base",
	"o3":            "o200k_base",
	"o4":            "o200k_base",
	"gpt-4":         "cl100k_base",
	"gpt-3.5-turbo": "cl100k_base",
}

// Tiktoken counts with OpenAI's BPE tables. The table is loaded on first
// use; when it cannot be loaded the estimator answers instead.
type Tiktoken struct {
	encoding string

	once     sync.Once
	enc      *tiktoken.Tiktoken
	initErr  error
	fallback Estimator
}

// NewTiktoken returns a tokenizer for encoding, e.g. "cl100k_base".
func NewTiktoken(encoding string) *Tiktoken {
	return &Tiktoken{encoding: encoding}
}

// RegisterOpenAI registers tiktoken for every known OpenAI model prefix.
func RegisterOpenAI() {
	byEncoding := map[string]*Tiktoken{}
	for prefix, encoding := range openAIEncodings {
		t, ok := byEncoding[encoding]
		if !ok {
			t = NewTiktoken(encoding)
			byEncoding[encoding] = t
		}
		Register(prefix, t)
	}
}

func (t *Tiktoken) load() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("load tiktoken encoding %s: %w", t.encoding, err)
			return
		}
		t.enc = enc
	})
	return t.initErr
}

// Err reports why the BPE table could not be loaded, if it could not.
func (t *Tiktoken) Err() error {
	return t.load()
}

func (t *Tiktoken) CountTokens(text string) (int, error) {
	if err := t.load(); err != nil {
		return t.fallback.CountTokens(text)
	}
	return len(t.enc.Encode(text, nil, nil)), nil
}

func (t *Tiktoken) CountMessages(messages []types.Message) (int, error) {
	if err := t.load(); err != nil {
		return t.fallback.CountMessages(messages)
	}
	total := replyPrimer
	for _, m := range messages {
		total += messageOverhead
		total += len(t.enc.Encode(m.Content, nil, nil))
		total += len(t.enc.Encode(string(m.Role), nil, nil))
	}
	return total, nil
}

func (t *Tiktoken) Name() string {
	return "tiktoken[" + t.encoding + "]"
}
