package tokenizer

import (
	"unicode/utf8"

	"github.com/sanchez314c/agent-chat/types"
)

// Estimator approximates token counts from character classes. CJK text is
// counted at about 1.5 characters per token and everything else at about 4.
type Estimator struct{}

// NewEstimator returns the character-based fallback.
func NewEstimator() *Estimator { return &Estimator{} }

func (Estimator) CountTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	total := utf8.RuneCountInString(text)
	cjk := 0
	for _, r := range text {
		if isCJK(r) {
			cjk++
		}
	}
	estimated := int(float64(cjk)/1.5 + float64(total-cjk)/4.0)
	if estimated == 0 {
		estimated = 1
	}
	return estimated, nil
}

func (e Estimator) CountMessages(messages []types.Message) (int, error) {
	total := replyPrimer
	for _, m := range messages {
		n, err := e.CountTokens(m.Content)
		if err != nil {
			return 0, err
		}
		total += n + messageOverhead
	}
	return total, nil
}

func (Estimator) Name() string { return "estimator" }

func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) || // unified ideographs
		(r >= 0x3400 && r <= 0x4DBF) || // extension A
		(r >= 0x20000 && r <= 0x2A6DF) || // extension B
		(r >= 0xF900 && r <= 0xFAFF) || // compatibility ideographs
		(r >= 0x3000 && r <= 0x303F) || // symbols and punctuation
		(r >= 0xFF00 && r <= 0xFFEF) // half and full width forms
}
