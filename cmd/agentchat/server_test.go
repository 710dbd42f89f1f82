package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sanchez314c/agent-chat/api/handlers"
	"github.com/sanchez314c/agent-chat/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testAPIKey = "operator-key"

type envelope struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *handlers.ErrorInfo `json:"error"`
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Server.APIKeys = []string{testAPIKey}
	cfg.Credentials.EnvOverride = false
	cfg.Export.Dir = t.TempDir()

	s := NewServer(cfg, zap.NewNop())
	require.NoError(t, s.initComponents(context.Background()))
	s.initHandlers()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		_ = s.orchestrator.Close()
		_ = s.app.Close()
	})
	return s.handler(ctx, s.routes())
}

func call(t *testing.T, h http.Handler, method, path, body string, authed bool) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	if authed {
		r.Header.Set("X-API-Key", testAPIKey)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

func TestServer_HealthIsPublic(t *testing.T) {
	h := newTestServer(t)

	w, _ := call(t, h, http.MethodGet, "/health", "", false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"conversation":"idle"`)

	w, _ = call(t, h, http.MethodGet, "/ready", "", false)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = call(t, h, http.MethodGet, "/version", "", false)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServer_RequiresAPIKey(t *testing.T) {
	h := newTestServer(t)

	w, _ := call(t, h, http.MethodGet, "/api/v1/providers", "", false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, env := call(t, h, http.MethodGet, "/api/v1/providers", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	assert.Contains(t, string(env.Data), `"id":"openrouter"`)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestServer_CredentialRoutes(t *testing.T) {
	h := newTestServer(t)

	w, env := call(t, h, http.MethodGet, "/api/v1/providers/nope/credential", "", true)
	assert.Equal(t, http.StatusNotFound, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNKNOWN_PROVIDER", env.Error.Code)

	w, _ = call(t, h, http.MethodPut, "/api/v1/providers/openai/credential", `{"api_key":"sk-1"}`, true)
	require.Equal(t, http.StatusOK, w.Code)

	w, env = call(t, h, http.MethodGet, "/api/v1/providers/openai/credential", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"provider":"openai","configured":true}`, string(env.Data))
	assert.NotContains(t, w.Body.String(), "sk-1")

	w, env = call(t, h, http.MethodDelete, "/api/v1/providers/openai/credential", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"provider":"openai","configured":false}`, string(env.Data))
}

func TestServer_ConversationRoutes(t *testing.T) {
	h := newTestServer(t)

	w, env := call(t, h, http.MethodGet, "/api/v1/conversation", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"state":"idle"`)

	w, env = call(t, h, http.MethodPost, "/api/v1/conversation/pause", "", true)
	assert.Equal(t, http.StatusConflict, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_TRANSITION", env.Error.Code)

	w, _ = call(t, h, http.MethodGet, "/api/v1/conversation/export", "", true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = call(t, h, http.MethodPut, "/api/v1/conversation", `{"title":"Renamed","max_turns":3}`, true)
	require.Equal(t, http.StatusOK, w.Code)

	w, env = call(t, h, http.MethodGet, "/api/v1/conversation", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"title":"Renamed"`)
	assert.Contains(t, string(env.Data), `"max_turns":3`)

	w, _ = call(t, h, http.MethodDelete, "/api/v1/conversation", "", true)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
