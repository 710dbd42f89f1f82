// Package catalog resolves the list of chat models a provider offers.
//
// Lookups never fail: any problem reaching a provider's listing endpoint
// yields the adapter's hardcoded catalog instead.
package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sanchez314c/agent-chat/internal/metrics"
	"github.com/sanchez314c/agent-chat/internal/tlsutil"
	"github.com/sanchez314c/agent-chat/llm"
	"github.com/sanchez314c/agent-chat/llm/credentials"
	"github.com/sanchez314c/agent-chat/types"
	"go.uber.org/zap"
)

// maxListingBytes caps how much of a listing body is read.
const maxListingBytes = 8 << 20

// Lookup outcomes reported to metrics.
const (
	OutcomeCacheHit = "cache_hit"
	OutcomeShared   = "shared_hit"
	OutcomeFetched  = "fetched"
	OutcomeStatic   = "static"
	OutcomeFallback = "fallback"
	OutcomeInFlight = "in_flight"
)

// SharedCache holds discovered lists across processes. internal/cache
// provides a Redis implementation.
type SharedCache interface {
	GetJSON(ctx context.Context, key string, dest any) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Resolver caches discovered model lists per provider for the process
// lifetime. At most one listing call per provider is in flight; concurrent
// callers get the fallback list instead of waiting.
type Resolver struct {
	registry *llm.Registry
	store    credentials.Store
	client   *http.Client
	metrics  *metrics.Collector
	logger   *zap.Logger

	shared    SharedCache
	sharedTTL time.Duration

	mu       sync.Mutex
	local    map[string]*types.LocalServerConfig
	cache    map[string][]string
	inFlight map[string]bool
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithHTTPClient overrides the listing client.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Resolver) { r.client = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics records lookup outcomes.
func WithMetrics(m *metrics.Collector) Option {
	return func(r *Resolver) { r.metrics = m }
}

// WithSharedCache consults c before calling a listing endpoint and stores
// fetched lists in it for ttl. Fallback lists are never shared.
func WithSharedCache(c SharedCache, ttl time.Duration) Option {
	return func(r *Resolver) {
		r.shared = c
		r.sharedTTL = ttl
	}
}

// WithLocalServer points discovery for providerID at a non-default server.
func WithLocalServer(providerID string, rt types.LocalServerConfig) Option {
	return func(r *Resolver) { r.local[providerID] = &rt }
}

// NewResolver creates a resolver over registry. store may be nil, in which
// case every authenticated listing falls back.
func NewResolver(registry *llm.Registry, store credentials.Store, opts ...Option) *Resolver {
	r := &Resolver{
		registry: registry,
		store:    store,
		client:   tlsutil.DiscoveryClient(),
		logger:   zap.NewNop(),
		local:    make(map[string]*types.LocalServerConfig),
		cache:    make(map[string][]string),
		inFlight: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(zap.String("component", "model_catalog"))
	return r
}

// ListModels returns the model ids for providerID. Unknown providers yield
// nil.
func (r *Resolver) ListModels(ctx context.Context, providerID string) []string {
	adapter, ok := r.registry.Lookup(providerID)
	if !ok {
		return nil
	}

	r.mu.Lock()
	if cached, ok := r.cache[providerID]; ok {
		r.mu.Unlock()
		r.metrics.RecordCatalogLookup(providerID, OutcomeCacheHit)
		return clone(cached)
	}
	if r.inFlight[providerID] {
		r.mu.Unlock()
		r.metrics.RecordCatalogLookup(providerID, OutcomeInFlight)
		return adapter.FallbackModels()
	}
	if adapter.Discovery == nil {
		r.mu.Unlock()
		r.metrics.RecordCatalogLookup(providerID, OutcomeFallback)
		return adapter.FallbackModels()
	}
	r.inFlight[providerID] = true
	rt := r.local[providerID]
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.inFlight, providerID)
		r.mu.Unlock()
	}()

	models, outcome := r.lookupShared(ctx, providerID)
	if models == nil {
		models, outcome = r.discover(ctx, adapter, rt)
		if outcome == OutcomeFetched {
			r.storeShared(ctx, providerID, models)
		}
	}

	r.mu.Lock()
	r.cache[providerID] = clone(models)
	r.mu.Unlock()

	r.metrics.RecordCatalogLookup(providerID, outcome)
	return models
}

// FallbackModels returns the hardcoded catalog for providerID.
func (r *Resolver) FallbackModels(providerID string) []string {
	adapter, ok := r.registry.Lookup(providerID)
	if !ok {
		return nil
	}
	return adapter.FallbackModels()
}

// Cached returns the cached list, if any.
func (r *Resolver) Cached(providerID string) ([]string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	models, ok := r.cache[providerID]
	if !ok {
		return nil, false
	}
	return clone(models), true
}

// Invalidate drops the cached list, locally and in the shared cache, so
// the next lookup fetches again.
func (r *Resolver) Invalidate(ctx context.Context, providerID string) {
	r.mu.Lock()
	delete(r.cache, providerID)
	r.mu.Unlock()

	if r.shared == nil {
		return
	}
	if err := r.shared.Delete(ctx, providerID); err != nil {
		r.logger.Warn("shared catalog invalidate failed",
			zap.String("provider", providerID), zap.Error(err))
	}
}

func (r *Resolver) lookupShared(ctx context.Context, providerID string) ([]string, string) {
	if r.shared == nil {
		return nil, ""
	}
	var models []string
	if err := r.shared.GetJSON(ctx, providerID, &models); err != nil {
		// misses are routine; anything else only costs a listing call
		r.logger.Debug("shared catalog lookup missed",
			zap.String("provider", providerID), zap.Error(err))
		return nil, ""
	}
	if len(models) == 0 {
		return nil, ""
	}
	return models, OutcomeShared
}

func (r *Resolver) storeShared(ctx context.Context, providerID string, models []string) {
	if r.shared == nil {
		return
	}
	if err := r.shared.SetJSON(ctx, providerID, models, r.sharedTTL); err != nil {
		r.logger.Warn("shared catalog store failed",
			zap.String("provider", providerID), zap.Error(err))
	}
}

func (r *Resolver) discover(ctx context.Context, adapter llm.Adapter, rt *types.LocalServerConfig) ([]string, string) {
	d := adapter.Discovery
	if d.Static != nil {
		return clone(d.Static), OutcomeStatic
	}

	log := r.logger.With(zap.String("provider", adapter.ID))

	ids, err := r.fetch(ctx, adapter, rt)
	if err != nil {
		log.Debug("model discovery failed, using fallback", zap.Error(err))
		return adapter.FallbackModels(), OutcomeFallback
	}
	if len(ids) == 0 {
		log.Debug("model discovery returned no chat models, using fallback")
		return adapter.FallbackModels(), OutcomeFallback
	}

	log.Debug("models discovered", zap.Int("count", len(ids)))
	return ids, OutcomeFetched
}

func (r *Resolver) fetch(ctx context.Context, adapter llm.Adapter, rt *types.LocalServerConfig) ([]string, error) {
	d := adapter.Discovery

	secret := ""
	if d.Auth != llm.DiscoveryAuthNone && r.store != nil {
		if s, err := r.store.Get(ctx, adapter.ID); err == nil {
			secret = s
		}
	}
	if d.AuthRequired && secret == "" {
		return nil, fmt.Errorf("no credential for %s", adapter.ID)
	}

	endpoint := d.URL(adapter.DefaultModel, rt)
	if d.Auth == llm.DiscoveryAuthQuery && secret != "" {
		endpoint = withQueryParam(endpoint, queryParam(adapter), secret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build listing request: %w", err)
	}
	if d.Auth == llm.DiscoveryAuthBearer && secret != "" {
		req.Header.Set("Authorization", "Bearer "+secret)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxListingBytes))
		return nil, fmt.Errorf("listing returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxListingBytes))
	if err != nil {
		return nil, fmt.Errorf("read listing: %w", err)
	}
	return d.ExtractIDs(body), nil
}

func queryParam(a llm.Adapter) string {
	if a.QueryAuthParam != "" {
		return a.QueryAuthParam
	}
	return "key"
}

func withQueryParam(endpoint, key, value string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return endpoint
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}

func clone(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
