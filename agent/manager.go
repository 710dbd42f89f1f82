package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/sanchez314c/agent-chat/internal/metrics"
	"github.com/sanchez314c/agent-chat/llm"
	"github.com/sanchez314c/agent-chat/llm/catalog"
	"github.com/sanchez314c/agent-chat/llm/client"
	"github.com/sanchez314c/agent-chat/llm/credentials"
	"github.com/sanchez314c/agent-chat/llm/tokenizer"
	"github.com/sanchez314c/agent-chat/types"
	"go.uber.org/zap"
)

// ProviderInfo describes one registered provider for listings.
type ProviderInfo struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	DefaultModel string   `json:"default_model"`
	RequiresAuth bool     `json:"requires_auth"`
	Discovery    bool     `json:"discovery"`
	Fallback     []string `json:"fallback_models"`
}

// Manager turns agent configurations into protocol calls and fronts the
// credential store and model catalog for a single conversation.
type Manager struct {
	registry *llm.Registry
	client   *client.Client
	catalog  *catalog.Resolver
	store    credentials.Store

	window   int
	steering string

	metrics *metrics.Collector
	logger  *zap.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithMetrics records credential operations.
func WithMetrics(c *metrics.Collector) ManagerOption {
	return func(m *Manager) { m.metrics = c }
}

// WithContextWindow sets how many history entries each turn sees.
func WithContextWindow(n int) ManagerOption {
	return func(m *Manager) { m.window = n }
}

// WithSteeringAgent sets the agent that receives operator messages.
func WithSteeringAgent(id string) ManagerOption {
	return func(m *Manager) { m.steering = id }
}

// NewManager creates a manager. resolver and store may be nil when model
// listing or credential management are not needed.
func NewManager(registry *llm.Registry, cl *client.Client, resolver *catalog.Resolver, store credentials.Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		registry: registry,
		client:   cl,
		catalog:  resolver,
		store:    store,
		window:   DefaultContextWindow,
		steering: DefaultSteeringAgentID,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(zap.String("component", "agent_manager"))
	return m
}

// Respond asks cfg's provider for the next message given history. Operator
// messages reach only steeringID; empty means the manager's default.
func (m *Manager) Respond(ctx context.Context, cfg types.AgentConfig, history []types.Message, steeringID string) (*client.Result, error) {
	adapter, ok := m.registry.Lookup(cfg.Provider)
	if !ok {
		return nil, types.NewError(types.ErrUnknownProvider, fmt.Sprintf("unknown provider: %s", cfg.Provider)).
			WithProvider(cfg.Provider)
	}
	model := cfg.Model
	if model == "" {
		model = adapter.DefaultModel
	}

	steering := steeringID
	if steering == "" {
		steering = m.steering
	}
	msgs := Prepare(cfg, history, PrepareOptions{
		Window:            m.window,
		SteeringAgentID:   steering,
		StrictAlternation: adapter.StrictAlternation,
	})
	tok := tokenizer.ForModel(model)
	promptTokens, err := tok.CountMessages(msgs)
	if err != nil {
		m.logger.Warn("token estimate failed", zap.String("tokenizer", tok.Name()), zap.Error(err))
	} else {
		m.metrics.RecordPromptTokens(adapter.ID, model, promptTokens)
	}
	m.logger.Debug("prepared turn",
		zap.String("agent_id", cfg.ID),
		zap.String("provider", adapter.ID),
		zap.String("model", model),
		zap.Int("messages", len(msgs)),
		zap.Int("prompt_tokens", promptTokens),
		zap.String("tokenizer", tok.Name()),
		zap.Bool("strict_alternation", adapter.StrictAlternation))

	return m.client.Send(ctx, client.Request{
		Provider:    adapter.ID,
		Messages:    msgs,
		Model:       model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		Extra:       ExtraParams(cfg),
		Runtime:     cfg.LocalServer,
	})
}

// ExtraParams returns the optional sampling parameters cfg sets.
func ExtraParams(cfg types.AgentConfig) llm.Params {
	extra := llm.Params{}
	if cfg.PresencePenalty != nil {
		extra["presence_penalty"] = *cfg.PresencePenalty
	}
	if cfg.FrequencyPenalty != nil {
		extra["frequency_penalty"] = *cfg.FrequencyPenalty
	}
	if cfg.TopP != nil {
		extra["top_p"] = *cfg.TopP
	}
	if cfg.TopK != nil {
		extra["top_k"] = *cfg.TopK
	}
	if cfg.ReasoningEffort != "" {
		extra["reasoning_effort"] = cfg.ReasoningEffort
	}
	return extra
}

// CheckCredentials returns a configuration error for the first agent whose
// provider requires a credential that is not stored.
func (m *Manager) CheckCredentials(ctx context.Context, agents ...types.AgentConfig) error {
	for _, a := range agents {
		adapter, ok := m.registry.Lookup(a.Provider)
		if !ok {
			return types.NewError(types.ErrUnknownProvider, fmt.Sprintf("unknown provider: %s", a.Provider)).
				WithProvider(a.Provider)
		}
		if !adapter.RequiresAuth {
			continue
		}
		if m.store == nil || !credentials.Has(ctx, m.store, adapter.ID) {
			return types.NewMissingCredentialError(adapter.ID)
		}
	}
	return nil
}

// TestConnection probes cfg's provider with a minimal prompt.
func (m *Manager) TestConnection(ctx context.Context, cfg types.AgentConfig) bool {
	return m.client.TestConnection(ctx, cfg.Provider, cfg.LocalServer)
}

// ListModels returns the provider's model catalog, never empty for a known
// provider.
func (m *Manager) ListModels(ctx context.Context, providerID string) []string {
	if m.catalog == nil {
		adapter, ok := m.registry.Lookup(providerID)
		if !ok {
			return nil
		}
		return adapter.FallbackModels()
	}
	return m.catalog.ListModels(ctx, providerID)
}

// DefaultModel returns the provider's default model, or "" when unknown.
func (m *Manager) DefaultModel(providerID string) string {
	adapter, ok := m.registry.Lookup(providerID)
	if !ok {
		return ""
	}
	return adapter.DefaultModel
}

// HasProvider reports whether providerID is registered.
func (m *Manager) HasProvider(providerID string) bool {
	return m.registry.Has(providerID)
}

// Providers lists the registered providers in registration order.
func (m *Manager) Providers() []ProviderInfo {
	adapters := m.registry.Adapters()
	out := make([]ProviderInfo, 0, len(adapters))
	for _, a := range adapters {
		out = append(out, ProviderInfo{
			ID:           a.ID,
			Name:         a.Name,
			DefaultModel: a.DefaultModel,
			RequiresAuth: a.RequiresAuth,
			Discovery:    a.Discovery != nil,
			Fallback:     a.FallbackModels(),
		})
	}
	return out
}

// =============================================================================
// Credentials
// =============================================================================

var errNoStore = errors.New("no credential store configured")

// SaveCredential stores secret for providerID and drops its cached catalog
// so the next listing runs authenticated discovery.
func (m *Manager) SaveCredential(ctx context.Context, providerID, secret string) error {
	if err := m.knownProvider(providerID); err != nil {
		return err
	}
	err := errNoStore
	if m.store != nil {
		err = m.store.Set(ctx, providerID, secret)
	}
	m.metrics.RecordCredentialOp("set", err)
	if err != nil {
		return fmt.Errorf("save credential for %s: %w", providerID, err)
	}
	if m.catalog != nil {
		m.catalog.Invalidate(ctx, providerID)
	}
	m.logger.Info("credential saved", zap.String("provider", providerID))
	return nil
}

// Credential returns the stored secret for providerID.
func (m *Manager) Credential(ctx context.Context, providerID string) (string, error) {
	if err := m.knownProvider(providerID); err != nil {
		return "", err
	}
	if m.store == nil {
		m.metrics.RecordCredentialOp("get", errNoStore)
		return "", errNoStore
	}
	secret, err := m.store.Get(ctx, providerID)
	if errors.Is(err, credentials.ErrNotFound) {
		m.metrics.RecordCredentialOp("get", nil)
		return "", err
	}
	m.metrics.RecordCredentialOp("get", err)
	return secret, err
}

// HasCredential reports whether a non-empty secret is stored.
func (m *Manager) HasCredential(ctx context.Context, providerID string) bool {
	return m.store != nil && credentials.Has(ctx, m.store, providerID)
}

// DeleteCredential removes the stored secret for providerID.
func (m *Manager) DeleteCredential(ctx context.Context, providerID string) error {
	if err := m.knownProvider(providerID); err != nil {
		return err
	}
	err := errNoStore
	if m.store != nil {
		err = m.store.Delete(ctx, providerID)
	}
	m.metrics.RecordCredentialOp("delete", err)
	if err != nil {
		return fmt.Errorf("delete credential for %s: %w", providerID, err)
	}
	if m.catalog != nil {
		m.catalog.Invalidate(ctx, providerID)
	}
	m.logger.Info("credential deleted", zap.String("provider", providerID))
	return nil
}

func (m *Manager) knownProvider(id string) error {
	if !m.registry.Has(id) {
		return types.NewError(types.ErrUnknownProvider, fmt.Sprintf("unknown provider: %s", id)).WithProvider(id)
	}
	return nil
}
