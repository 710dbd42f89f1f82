// Package tokenizer estimates how many tokens a prepared prompt costs.
// OpenAI-family models are counted with tiktoken; every other model gets a
// character-based estimate that weights CJK text separately.
package tokenizer
