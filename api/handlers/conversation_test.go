package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/sanchez314c/agent-chat/agent"
	"github.com/sanchez314c/agent-chat/agent/conversation"
	"github.com/sanchez314c/agent-chat/llm"
	"github.com/sanchez314c/agent-chat/llm/client"
	"github.com/sanchez314c/agent-chat/testutil"
	"github.com/sanchez314c/agent-chat/testutil/fixtures"
	"github.com/sanchez314c/agent-chat/testutil/mocks"
	"github.com/sanchez314c/agent-chat/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memSink struct {
	mu    sync.Mutex
	saved []string
}

func (s *memSink) Save(ctx context.Context, markdown string) (conversation.SaveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, markdown)
	return conversation.SaveResult{Path: "/exports/chat.md"}, nil
}

type conversationFixture struct {
	mux  *http.ServeMux
	srv  *mocks.ProviderServer
	orch *conversation.Orchestrator
}

func newConversationFixture(t *testing.T, opts ...ConversationOption) *conversationFixture {
	t.Helper()
	srv := mocks.NewProviderServer(t)
	reg := llm.NewRegistry(srv.Adapter("fake", true))
	store := mocks.NewSpyStore().WithSecret("fake", "sk-test")
	mgr := agent.NewManager(reg, client.New(reg, store), nil, store)

	orch, err := conversation.New(mgr, conversation.Settings{
		Title:         "Handler chat",
		Agents:        fixtures.AgentPair("fake"),
		SystemPrompt:  "Stay in character.",
		InitialPrompt: "Let's talk.",
		MaxTurns:      2,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = orch.Close() })

	h := NewConversationHandler(orch, append(opts, WithConversationLogger(zap.NewNop()))...)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/conversation", h.HandleGet)
	mux.HandleFunc("PUT /api/v1/conversation", h.HandleConfigure)
	mux.HandleFunc("POST /api/v1/conversation/start", h.HandleStart)
	mux.HandleFunc("POST /api/v1/conversation/pause", h.HandlePause)
	mux.HandleFunc("POST /api/v1/conversation/resume", h.HandleResume)
	mux.HandleFunc("POST /api/v1/conversation/stop", h.HandleStop)
	mux.HandleFunc("POST /api/v1/conversation/reset", h.HandleReset)
	mux.HandleFunc("POST /api/v1/conversation/inject", h.HandleInject)
	mux.HandleFunc("GET /api/v1/conversation/messages", h.HandleMessages)
	mux.HandleFunc("GET /api/v1/conversation/export", h.HandleExport)
	mux.HandleFunc("POST /api/v1/conversation/save", h.HandleSave)
	mux.HandleFunc("GET /api/v1/conversation/events", h.HandleEvents)

	return &conversationFixture{mux: mux, srv: srv, orch: orch}
}

func (f *conversationFixture) do(t *testing.T, method, path, body string, out any) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, r)

	if out != nil && w.Code == http.StatusOK {
		var env struct {
			Data json.RawMessage `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
		require.NoError(t, json.Unmarshal(env.Data, out))
	}
	return w
}

func (f *conversationFixture) wait(t *testing.T) {
	t.Helper()
	require.NoError(t, f.orch.Wait(testutil.TestContextWithTimeout(t, 5*time.Second)))
}

// =============================================================================
// Settings
// =============================================================================

func TestConversationHandler_Configure(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"partial update", `{"title":"Renamed","turn_delay":"250ms"}`, http.StatusOK},
		{"bad duration", `{"turn_delay":"soon"}`, http.StatusBadRequest},
		{"negative duration", `{"turn_delay":"-1s"}`, http.StatusBadRequest},
		{"zero turns", `{"max_turns":0}`, http.StatusBadRequest},
		{"unknown field", `{"turns":3}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newConversationFixture(t)
			w := f.do(t, http.MethodPut, "/api/v1/conversation", tt.body, nil)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}

	t.Run("omitted fields are kept", func(t *testing.T) {
		f := newConversationFixture(t)
		var snap conversation.Snapshot
		w := f.do(t, http.MethodPut, "/api/v1/conversation", `{"max_turns":6}`, &snap)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 6, snap.MaxTurns)

		s := f.orch.Settings()
		assert.Equal(t, "Handler chat", s.Title)
		assert.Equal(t, "Let's talk.", s.InitialPrompt)
		assert.Equal(t, "agent1", s.Agents[0].ID)
	})

	t.Run("steering agent", func(t *testing.T) {
		f := newConversationFixture(t)
		w := f.do(t, http.MethodPut, "/api/v1/conversation", `{"steering_agent":"carol"}`, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = f.do(t, http.MethodPut, "/api/v1/conversation", `{"steering_agent":"agent2"}`, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		// renamed agents keep the steering position
		agents := `{"agents":[{"id":"alice","provider":"fake"},{"id":"bob","provider":"fake"}]}`
		w = f.do(t, http.MethodPut, "/api/v1/conversation", agents, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "bob", f.orch.Settings().SteeringAgent)
		assert.Equal(t, "bob", f.orch.Settings().SteeringID())
	})
}

// =============================================================================
// Lifecycle
// =============================================================================

func TestConversationHandler_RunToCompletion(t *testing.T) {
	f := newConversationFixture(t)

	var snap conversation.Snapshot
	w := f.do(t, http.MethodPost, "/api/v1/conversation/start", "", &snap)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	f.wait(t)

	var msgs []types.Message
	w = f.do(t, http.MethodGet, "/api/v1/conversation/messages", "", &msgs)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, msgs, 4)
	assert.Equal(t, []types.Role{types.RoleSystem, types.RoleUser, types.RoleAssistant, types.RoleAssistant}, testutil.Roles(msgs))
	assert.Equal(t, "response 1", msgs[2].Content)
	assert.Equal(t, "agent2", msgs[3].AgentID)

	w = f.do(t, http.MethodGet, "/api/v1/conversation", "", &snap)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, types.StateIdle, snap.State)
	assert.Equal(t, 2, snap.CompletedTurns)
	assert.Equal(t, "Let's talk.", snap.Summary)

	// configuring is allowed again once the run ends
	w = f.do(t, http.MethodPut, "/api/v1/conversation", `{"max_turns":4}`, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/conversation/reset", "", &snap)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, snap.Conversation.Messages)
}

func TestConversationHandler_PauseInjectResume(t *testing.T) {
	f := newConversationFixture(t)
	f.srv.Hold()

	w := f.do(t, http.MethodPost, "/api/v1/conversation/start", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	_, ok := testutil.WaitForChannel(f.srv.Arrived(), 5*time.Second)
	require.True(t, ok, "first turn never reached the provider")

	// settings are frozen while a run is active
	w = f.do(t, http.MethodPut, "/api/v1/conversation", `{"title":"Nope"}`, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	var snap conversation.Snapshot
	w = f.do(t, http.MethodPost, "/api/v1/conversation/pause", "", &snap)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, types.StatePaused, snap.State)

	w = f.do(t, http.MethodPost, "/api/v1/conversation/inject", `{"content":"   "}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var msg types.Message
	w = f.do(t, http.MethodPost, "/api/v1/conversation/inject", `{"content":"Change the subject."}`, &msg)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, types.RoleOperator, msg.Role)
	assert.Equal(t, "Change the subject.", msg.Content)

	f.srv.Release()
	f.wait(t)
	assert.Equal(t, types.StatePaused, f.orch.State())

	w = f.do(t, http.MethodPost, "/api/v1/conversation/resume", "", &snap)
	require.Equal(t, http.StatusOK, w.Code)
	f.wait(t)

	assert.Equal(t, types.StateIdle, f.orch.State())
	assert.Equal(t, 2, f.srv.Calls())
	roles := testutil.Roles(f.orch.Messages())
	assert.Contains(t, roles, types.RoleOperator)
}

func TestConversationHandler_InvalidTransitions(t *testing.T) {
	f := newConversationFixture(t)

	for _, path := range []string{"pause", "resume"} {
		w := f.do(t, http.MethodPost, "/api/v1/conversation/"+path, "", nil)
		assert.Equal(t, http.StatusConflict, w.Code, path)
		assert.Contains(t, w.Body.String(), "INVALID_TRANSITION")
	}

	w := f.do(t, http.MethodPost, "/api/v1/conversation/inject", `{"content":"hello"}`, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	// stop is accepted from any state
	w = f.do(t, http.MethodPost, "/api/v1/conversation/stop", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestConversationHandler_StartWithoutCredential(t *testing.T) {
	srv := mocks.NewProviderServer(t)
	reg := llm.NewRegistry(srv.Adapter("fake", true))
	store := mocks.NewSpyStore()
	mgr := agent.NewManager(reg, client.New(reg, store), nil, store)
	orch, err := conversation.New(mgr, conversation.Settings{
		Agents:        fixtures.AgentPair("fake"),
		InitialPrompt: "Hi",
		MaxTurns:      1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = orch.Close() })
	h := NewConversationHandler(orch)

	w := httptest.NewRecorder()
	h.HandleStart(w, httptest.NewRequest(http.MethodPost, "/api/v1/conversation/start", nil))

	assert.Equal(t, http.StatusPreconditionFailed, w.Code)
	assert.Contains(t, w.Body.String(), "MISSING_CREDENTIAL")
	assert.Equal(t, 0, srv.Calls())
	assert.Equal(t, types.StateIdle, orch.State())
}

// =============================================================================
// Export
// =============================================================================

func TestConversationHandler_Export(t *testing.T) {
	sink := &memSink{}
	f := newConversationFixture(t, WithFileSink(sink))

	w := f.do(t, http.MethodGet, "/api/v1/conversation/export", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = f.do(t, http.MethodPost, "/api/v1/conversation/save", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/v1/conversation/start", "", nil).Code)
	f.wait(t)

	w = f.do(t, http.MethodGet, "/api/v1/conversation/export", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/markdown; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "conversation.md")
	assert.Contains(t, w.Body.String(), "response 2")

	var res conversation.SaveResult
	w = f.do(t, http.MethodPost, "/api/v1/conversation/save", "", &res)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/exports/chat.md", res.Path)
	require.Len(t, sink.saved, 1)
	assert.Contains(t, sink.saved[0], "response 1")
}

func TestConversationHandler_SaveWithoutSink(t *testing.T) {
	f := newConversationFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/conversation/save", "", nil)
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

// =============================================================================
// Event stream
// =============================================================================

func TestConversationHandler_Events(t *testing.T) {
	f := newConversationFixture(t)
	f.srv.Hold()
	ts := httptest.NewServer(f.mux)
	t.Cleanup(ts.Close)

	ctx := testutil.TestContextWithTimeout(t, 10*time.Second)
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/api/v1/conversation/events", nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	var first struct {
		Type     string                `json:"type"`
		Snapshot conversation.Snapshot `json:"snapshot"`
	}
	require.NoError(t, wsjson.Read(ctx, conn, &first))
	assert.Equal(t, "snapshot", first.Type)
	assert.Equal(t, types.StateIdle, first.Snapshot.State)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/v1/conversation/start", "", nil).Code)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/v1/conversation/inject", `{"content":"Over to you."}`, nil).Code)

	var injected *types.Message
	for injected == nil {
		var ev conversation.Event
		require.NoError(t, wsjson.Read(ctx, conn, &ev))
		if ev.Type == conversation.EventMessage && ev.Message != nil && ev.Message.Role == types.RoleOperator {
			injected = ev.Message
		}
	}
	assert.Equal(t, "Over to you.", injected.Content)

	f.srv.Release()
	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))
}

func TestConversationHandler_EventsEndOnClose(t *testing.T) {
	f := newConversationFixture(t)
	ts := httptest.NewServer(f.mux)
	t.Cleanup(ts.Close)

	ctx := testutil.TestContextWithTimeout(t, 10*time.Second)
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/api/v1/conversation/events", nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	var frame map[string]any
	require.NoError(t, wsjson.Read(ctx, conn, &frame))
	assert.Equal(t, "snapshot", frame["type"])

	require.NoError(t, f.orch.Close())

	err = wsjson.Read(ctx, conn, &frame)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))
}
