package catalog

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sanchez314c/agent-chat/internal/cache"
	"github.com/sanchez314c/agent-chat/llm"
	"github.com/sanchez314c/agent-chat/testutil/fixtures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newSharedCache(t *testing.T) (*miniredis.Miniredis, *cache.Manager) {
	t.Helper()
	mr := miniredis.RunT(t)
	m := cache.NewManager(redis.NewClient(&redis.Options{Addr: mr.Addr()}), cache.DefaultConfig(), zap.NewNop())
	t.Cleanup(func() { _ = m.Close() })
	return mr, m
}

func TestSharedCache_SecondResolverSkipsListing(t *testing.T) {
	srv := newListingServer(t, http.StatusOK, fixtures.ModelsBody("m1", "m2"))
	reg := llm.NewRegistry(testAdapter("p", &llm.Discovery{URL: llm.StaticEndpoint(srv.URL), IDPath: "data.#.id"}))
	_, shared := newSharedCache(t)
	ctx := context.Background()

	first := NewResolver(reg, nil, WithSharedCache(shared, time.Minute))
	assert.Equal(t, []string{"m1", "m2"}, first.ListModels(ctx, "p"))

	second := NewResolver(reg, nil, WithSharedCache(shared, time.Minute))
	assert.Equal(t, []string{"m1", "m2"}, second.ListModels(ctx, "p"))
	assert.Equal(t, int32(1), srv.calls.Load())

	// the shared hit also fills the local cache
	cached, ok := second.Cached("p")
	require.True(t, ok)
	assert.Equal(t, []string{"m1", "m2"}, cached)
}

func TestSharedCache_FallbackNotShared(t *testing.T) {
	srv := newListingServer(t, http.StatusInternalServerError, `oops`)
	reg := llm.NewRegistry(testAdapter("p", &llm.Discovery{URL: llm.StaticEndpoint(srv.URL), IDPath: "data.#.id"}))
	mr, shared := newSharedCache(t)

	r := NewResolver(reg, nil, WithSharedCache(shared, time.Minute))
	assert.Equal(t, fallback, r.ListModels(context.Background(), "p"))
	assert.False(t, mr.Exists("agentchat:catalog:p"))
}

func TestSharedCache_Expiry(t *testing.T) {
	srv := newListingServer(t, http.StatusOK, `{"data":[{"id":"m1"}]}`)
	reg := llm.NewRegistry(testAdapter("p", &llm.Discovery{URL: llm.StaticEndpoint(srv.URL), IDPath: "data.#.id"}))
	mr, shared := newSharedCache(t)
	ctx := context.Background()

	NewResolver(reg, nil, WithSharedCache(shared, time.Minute)).ListModels(ctx, "p")
	mr.FastForward(2 * time.Minute)
	NewResolver(reg, nil, WithSharedCache(shared, time.Minute)).ListModels(ctx, "p")
	assert.Equal(t, int32(2), srv.calls.Load())
}

func TestSharedCache_Invalidate(t *testing.T) {
	srv := newListingServer(t, http.StatusOK, `{"data":[{"id":"m1"}]}`)
	reg := llm.NewRegistry(testAdapter("p", &llm.Discovery{URL: llm.StaticEndpoint(srv.URL), IDPath: "data.#.id"}))
	mr, shared := newSharedCache(t)
	ctx := context.Background()

	r := NewResolver(reg, nil, WithSharedCache(shared, time.Minute))
	r.ListModels(ctx, "p")
	require.True(t, mr.Exists("agentchat:catalog:p"))

	r.Invalidate(ctx, "p")
	assert.False(t, mr.Exists("agentchat:catalog:p"))
	_, ok := r.Cached("p")
	assert.False(t, ok)
}

type brokenCache struct{}

func (brokenCache) GetJSON(context.Context, string, any) error { return errors.New("down") }
func (brokenCache) SetJSON(context.Context, string, any, time.Duration) error {
	return errors.New("down")
}
func (brokenCache) Delete(context.Context, ...string) error { return errors.New("down") }

func TestSharedCache_FailuresAreIgnored(t *testing.T) {
	srv := newListingServer(t, http.StatusOK, `{"data":[{"id":"m1"}]}`)
	reg := llm.NewRegistry(testAdapter("p", &llm.Discovery{URL: llm.StaticEndpoint(srv.URL), IDPath: "data.#.id"}))

	r := NewResolver(reg, nil, WithSharedCache(brokenCache{}, time.Minute))
	assert.Equal(t, []string{"m1"}, r.ListModels(context.Background(), "p"))
	assert.NotPanics(t, func() { r.Invalidate(context.Background(), "p") })
}
