package types

import (
	"errors"
	"fmt"
	"strings"
)

// LocalServerConfig points a local provider at a non-default host or port.
type LocalServerConfig struct {
	Host string `json:"host,omitempty" yaml:"host" toml:"host"`
	Port int    `json:"port,omitempty" yaml:"port" toml:"port"`
}

// AgentConfig describes one side of a two-agent conversation.
// It is passed by value so a running turn never observes later edits.
type AgentConfig struct {
	ID          string  `json:"id" yaml:"id" toml:"id"`
	Name        string  `json:"name" yaml:"name" toml:"name"`
	Provider    string  `json:"provider" yaml:"provider" toml:"provider"`
	Model       string  `json:"model" yaml:"model" toml:"model"`
	Persona     string  `json:"persona" yaml:"persona" toml:"persona"`
	Temperature float64 `json:"temperature" yaml:"temperature" toml:"temperature"`
	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens" toml:"max_tokens"`

	// Optional sampling parameters. Nil means "not sent".
	TopP             *float64 `json:"top_p,omitempty" yaml:"top_p" toml:"top_p"`
	TopK             *int     `json:"top_k,omitempty" yaml:"top_k" toml:"top_k"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty" yaml:"presence_penalty" toml:"presence_penalty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty" yaml:"frequency_penalty" toml:"frequency_penalty"`
	ReasoningEffort  string   `json:"reasoning_effort,omitempty" yaml:"reasoning_effort" toml:"reasoning_effort"`

	LocalServer *LocalServerConfig `json:"local_server,omitempty" yaml:"local_server" toml:"local_server"`
}

// Validate checks that the agent can be scheduled.
func (c AgentConfig) Validate() error {
	var errs []error
	if strings.TrimSpace(c.ID) == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if strings.TrimSpace(c.Provider) == "" {
		errs = append(errs, errors.New("provider is required"))
	}
	if c.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("max_tokens must be >= 0, got %d", c.MaxTokens))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, fmt.Errorf("temperature must be within [0, 2], got %v", c.Temperature))
	}
	if len(errs) > 0 {
		return fmt.Errorf("agent %q: %w", c.ID, errors.Join(errs...))
	}
	return nil
}

// DisplayName returns Name, falling back to ID.
func (c AgentConfig) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}

// Float64Ptr returns a pointer to v.
func Float64Ptr(v float64) *float64 { return &v }

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }
