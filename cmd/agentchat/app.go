package main

import (
	"context"
	"fmt"

	"github.com/sanchez314c/agent-chat/agent"
	"github.com/sanchez314c/agent-chat/config"
	"github.com/sanchez314c/agent-chat/internal/cache"
	"github.com/sanchez314c/agent-chat/internal/metrics"
	"github.com/sanchez314c/agent-chat/llm"
	"github.com/sanchez314c/agent-chat/llm/catalog"
	"github.com/sanchez314c/agent-chat/llm/client"
	"github.com/sanchez314c/agent-chat/llm/credentials"
	"github.com/sanchez314c/agent-chat/llm/factory"
	"github.com/sanchez314c/agent-chat/types"
	"go.uber.org/zap"
)

// app holds the components every command shares.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	metrics  *metrics.Collector
	registry *llm.Registry
	store    credentials.Store
	shared   *cache.Manager
	resolver *catalog.Resolver
	client   *client.Client
	manager  *agent.Manager
}

// newApp builds the provider stack from cfg. collector may be nil.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, collector *metrics.Collector) (*app, error) {
	store, err := credentials.Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	registry := factory.NewRegistry()

	resolverOpts := []catalog.Option{
		catalog.WithLogger(logger),
		catalog.WithMetrics(collector),
	}
	resolverOpts = append(resolverOpts, localServers(cfg.Catalog)...)

	var shared *cache.Manager
	if cfg.Catalog.SharedCache {
		cacheCfg := cache.DefaultConfig()
		cacheCfg.DefaultTTL = cfg.Catalog.SharedCacheTTL
		shared, err = cache.Open(ctx, cfg.Redis, cacheCfg, logger)
		if err != nil {
			_ = credentials.Close(store)
			return nil, fmt.Errorf("open shared catalog cache: %w", err)
		}
		resolverOpts = append(resolverOpts, catalog.WithSharedCache(shared, cfg.Catalog.SharedCacheTTL))
	}
	resolver := catalog.NewResolver(registry, store, resolverOpts...)

	cl := client.New(registry, store,
		client.WithLogger(logger),
		client.WithMetrics(collector),
	)

	manager := agent.NewManager(registry, cl, resolver, store,
		agent.WithContextWindow(cfg.Conversation.ContextWindow),
		agent.WithSteeringAgent(cfg.Conversation.SteeringAgent),
		agent.WithLogger(logger),
		agent.WithMetrics(collector),
	)

	return &app{
		cfg:      cfg,
		logger:   logger,
		metrics:  collector,
		registry: registry,
		store:    store,
		shared:   shared,
		resolver: resolver,
		client:   cl,
		manager:  manager,
	}, nil
}

// localServers points catalog discovery at the configured self-hosted
// servers.
func localServers(cfg config.CatalogConfig) []catalog.Option {
	var opts []catalog.Option
	if cfg.OllamaHost != "" || cfg.OllamaPort != 0 {
		opts = append(opts, catalog.WithLocalServer(llm.ProviderOllama,
			types.LocalServerConfig{Host: cfg.OllamaHost, Port: cfg.OllamaPort}))
	}
	if cfg.LlamaCppHost != "" || cfg.LlamaCppPort != 0 {
		opts = append(opts, catalog.WithLocalServer(llm.ProviderLlamaCpp,
			types.LocalServerConfig{Host: cfg.LlamaCppHost, Port: cfg.LlamaCppPort}))
	}
	return opts
}

// providerID canonicalizes a provider name given on the command line.
func (a *app) providerID(name string) (string, error) {
	id := factory.Canonical(name)
	if !a.manager.HasProvider(id) {
		return "", fmt.Errorf("unknown provider %q (supported: %v)", name, factory.SupportedProviders())
	}
	return id, nil
}

// Close releases the credential store and the shared catalog cache.
func (a *app) Close() error {
	err := credentials.Close(a.store)
	if a.shared != nil {
		if cerr := a.shared.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
