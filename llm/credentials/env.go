package credentials

import (
	"context"
	"errors"
	"os"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
)

// envVars maps provider ids to the environment variables consulted first.
var envVars = map[string]string{
	"anthropic":   "ANTHROPIC_API_KEY",
	"openai":      "OPENAI_API_KEY",
	"gemini":      "GEMINI_API_KEY",
	"groq":        "GROQ_API_KEY",
	"together":    "TOGETHER_AI_API_KEY",
	"deepseek":    "DEEPSEEK_API_KEY",
	"mistral":     "MISTRAL_API_KEY",
	"openrouter":  "OPENROUTER_API_KEY",
	"xai":         "XAI_API_KEY",
	"meta":        "META_AI_API_KEY",
	"pi":          "PI_AI_API_KEY",
	"huggingface": "HUGGINGFACE_API_KEY",
}

// EnvVar returns the environment variable name for providerID.
func EnvVar(providerID string) (string, bool) {
	name, ok := envVars[providerID]
	return name, ok
}

// EnvProviders lists provider ids with an environment mapping, sorted.
func EnvProviders() []string {
	ids := make([]string, 0, len(envVars))
	for id := range envVars {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// EnvStore answers Get from the process environment and falls through to
// the backing store. Writes always go to the backing store.
type EnvStore struct {
	backing Store
	lookup  func(string) (string, bool)
}

// NewEnvStore layers environment lookups over backing. backing may be nil.
func NewEnvStore(backing Store) *EnvStore {
	return &EnvStore{backing: backing, lookup: os.LookupEnv}
}

// WithLookup replaces the environment source.
func (s *EnvStore) WithLookup(lookup func(string) (string, bool)) *EnvStore {
	s.lookup = lookup
	return s
}

// Get returns the environment value when set, else the backing value.
func (s *EnvStore) Get(ctx context.Context, providerID string) (string, error) {
	if name, ok := envVars[providerID]; ok {
		if v, ok := s.lookup(name); ok && v != "" {
			return v, nil
		}
	}
	if s.backing == nil {
		return "", ErrNotFound
	}
	return s.backing.Get(ctx, providerID)
}

// Set writes to the backing store.
func (s *EnvStore) Set(ctx context.Context, providerID, secret string) error {
	if s.backing == nil {
		return errors.New("credential store is read-only")
	}
	return s.backing.Set(ctx, providerID, secret)
}

// Delete removes from the backing store. An environment value stays visible.
func (s *EnvStore) Delete(ctx context.Context, providerID string) error {
	if s.backing == nil {
		return errors.New("credential store is read-only")
	}
	return s.backing.Delete(ctx, providerID)
}

// Close closes the backing store when it holds resources.
func (s *EnvStore) Close() error {
	if c, ok := s.backing.(Closer); ok {
		return c.Close()
	}
	return nil
}

// StatsCollector forwards to the backing store.
func (s *EnvStore) StatsCollector() prometheus.Collector {
	if c, ok := StatsCollector(s.backing); ok {
		return c
	}
	return nil
}

// Ping checks the backing store.
func (s *EnvStore) Ping(ctx context.Context) error {
	if s.backing == nil {
		return nil
	}
	return Ping(ctx, s.backing)
}
