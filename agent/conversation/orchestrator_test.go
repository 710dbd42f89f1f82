package conversation_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/sanchez314c/agent-chat/agent/conversation"
	"github.com/sanchez314c/agent-chat/config"
	"github.com/sanchez314c/agent-chat/llm/client"
	"github.com/sanchez314c/agent-chat/testutil"
	"github.com/sanchez314c/agent-chat/testutil/fixtures"
	"github.com/sanchez314c/agent-chat/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

var leakOpts = []goleak.Option{
	goleak.IgnoreAnyFunction("net/http.(*persistConn).readLoop"),
	goleak.IgnoreAnyFunction("net/http.(*persistConn).writeLoop"),
}

// =============================================================================
// Scripted responder
// =============================================================================

type responderCall struct {
	agent    types.AgentConfig
	history  []types.Message
	steering string
	at       time.Time
}

type scriptedResponder struct {
	mu      sync.Mutex
	calls   []responderCall
	errs    map[int]error
	holds   map[int]chan struct{}
	credErr error
	started chan int
}

func newScriptedResponder() *scriptedResponder {
	return &scriptedResponder{
		errs:    make(map[int]error),
		holds:   make(map[int]chan struct{}),
		started: make(chan int, 64),
	}
}

// hold makes call idx block until the returned function is called.
func (r *scriptedResponder) hold(idx int) func() {
	ch := make(chan struct{})
	r.mu.Lock()
	r.holds[idx] = ch
	r.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (r *scriptedResponder) failAt(idx int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs[idx] = err
}

func (r *scriptedResponder) Respond(ctx context.Context, cfg types.AgentConfig, history []types.Message, steeringID string) (*client.Result, error) {
	r.mu.Lock()
	idx := len(r.calls)
	r.calls = append(r.calls, responderCall{agent: cfg, history: history, steering: steeringID, at: time.Now()})
	hold := r.holds[idx]
	err := r.errs[idx]
	r.mu.Unlock()

	r.started <- idx
	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &client.Result{
		Content:  fmt.Sprintf("%s reply %d", cfg.ID, idx),
		Provider: cfg.Provider,
		Model:    cfg.Model,
	}, nil
}

func (r *scriptedResponder) CheckCredentials(context.Context, ...types.AgentConfig) error {
	return r.credErr
}

func (r *scriptedResponder) Calls() []responderCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]responderCall(nil), r.calls...)
}

func (r *scriptedResponder) waitCall(t *testing.T, idx int) {
	t.Helper()
	got, ok := testutil.WaitForChannel(r.started, 5*time.Second)
	require.True(t, ok, "call %d never started", idx)
	require.Equal(t, idx, got)
}

// =============================================================================
// Helpers
// =============================================================================

func testSettings(maxTurns int) conversation.Settings {
	return conversation.Settings{
		Title:         "Test chat",
		Agents:        fixtures.AgentPair("fake"),
		SystemPrompt:  "Stay in character.",
		InitialPrompt: "Let's talk.",
		MaxTurns:      maxTurns,
	}
}

func newOrchestrator(t *testing.T, r conversation.Responder, s conversation.Settings) *conversation.Orchestrator {
	t.Helper()
	o, err := conversation.New(r, s)
	require.NoError(t, err)
	t.Cleanup(func() { _ = o.Close() })
	return o
}

func waitLoop(t *testing.T, o *conversation.Orchestrator) {
	t.Helper()
	require.NoError(t, o.Wait(testutil.TestContextWithTimeout(t, 5*time.Second)))
}

func assistantAgents(msgs []types.Message) []string {
	var ids []string
	for _, m := range msgs {
		if m.Role == types.RoleAssistant {
			ids = append(ids, m.AgentID)
		}
	}
	return ids
}

// =============================================================================
// Tests
// =============================================================================

func TestOrchestrator_TurnAttribution(t *testing.T) {
	defer goleak.VerifyNone(t, leakOpts...)

	r := newScriptedResponder()
	o := newOrchestrator(t, r, testSettings(4))

	require.NoError(t, o.Start(testutil.TestContext(t)))
	waitLoop(t, o)

	assert.Equal(t, types.StateIdle, o.State())
	msgs := o.Messages()
	require.Len(t, msgs, 6)
	assert.Equal(t, types.RoleSystem, msgs[0].Role)
	assert.Equal(t, "Stay in character.", msgs[0].Content)
	assert.Equal(t, types.RoleUser, msgs[1].Role)
	assert.Empty(t, msgs[1].AgentID)
	assert.Equal(t, []string{"agent1", "agent2", "agent1", "agent2"}, assistantAgents(msgs))
	assert.Equal(t, "fake", msgs[2].Provider)
	assert.Equal(t, "test-model", msgs[2].Model)

	snap := o.Snapshot()
	assert.Equal(t, 4, snap.CompletedTurns)
	assert.Equal(t, 4, snap.MaxTurns)
	assert.Equal(t, "Let's talk.", snap.Summary)
	require.NoError(t, o.Close())
}

func TestOrchestrator_HistoryGrowsEachTurn(t *testing.T) {
	r := newScriptedResponder()
	o := newOrchestrator(t, r, testSettings(3))

	require.NoError(t, o.Start(testutil.TestContext(t)))
	waitLoop(t, o)

	calls := r.Calls()
	require.Len(t, calls, 3)
	for i, c := range calls {
		assert.Len(t, c.history, 2+i, "call %d", i)
	}
	assert.Equal(t, "agent1", calls[0].agent.ID)
	assert.Equal(t, "agent2", calls[1].agent.ID)
}

func TestOrchestrator_StartRequiresCredentials(t *testing.T) {
	r := newScriptedResponder()
	r.credErr = types.NewMissingCredentialError("fake")
	o := newOrchestrator(t, r, testSettings(2))

	err := o.Start(testutil.TestContext(t))
	require.Error(t, err)
	assert.True(t, types.IsConfigurationError(err))
	assert.Equal(t, types.StateIdle, o.State())
	assert.Empty(t, o.Messages())
	assert.Empty(t, r.Calls())
}

func TestOrchestrator_StartWhileRunning(t *testing.T) {
	defer goleak.VerifyNone(t, leakOpts...)

	r := newScriptedResponder()
	release := r.hold(0)
	o := newOrchestrator(t, r, testSettings(2))
	ctx := testutil.TestContext(t)

	require.NoError(t, o.Start(ctx))
	r.waitCall(t, 0)
	assert.ErrorIs(t, o.Start(ctx), conversation.ErrInvalidState)

	require.NoError(t, o.Pause())
	assert.ErrorIs(t, o.Start(ctx), conversation.ErrInvalidState)

	o.Stop()
	release()
	waitLoop(t, o)
	require.NoError(t, o.Close())
}

func TestOrchestrator_StopKeepsInFlightResponse(t *testing.T) {
	r := newScriptedResponder()
	release := r.hold(0)
	o := newOrchestrator(t, r, testSettings(4))

	require.NoError(t, o.Start(testutil.TestContext(t)))
	r.waitCall(t, 0)
	o.Stop()
	assert.Equal(t, types.StateIdle, o.State())

	release()
	waitLoop(t, o)

	msgs := o.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "agent1 reply 0", msgs[2].Content)
	assert.Len(t, r.Calls(), 1)
	assert.Equal(t, types.StateIdle, o.State())
}

func TestOrchestrator_PauseResume(t *testing.T) {
	r := newScriptedResponder()
	release := r.hold(1)
	o := newOrchestrator(t, r, testSettings(4))

	require.NoError(t, o.Start(testutil.TestContext(t)))
	r.waitCall(t, 0)
	r.waitCall(t, 1)
	require.NoError(t, o.Pause())
	assert.ErrorIs(t, o.Pause(), conversation.ErrInvalidState)

	release()
	waitLoop(t, o)
	assert.Equal(t, types.StatePaused, o.State())
	assert.Equal(t, 2, o.Snapshot().CompletedTurns)
	require.Len(t, o.Messages(), 4)

	require.NoError(t, o.Resume())
	waitLoop(t, o)

	assert.Equal(t, types.StateIdle, o.State())
	assert.Len(t, r.Calls(), 4, "the paused turn must not be sent again")
	assert.Equal(t, []string{"agent1", "agent2", "agent1", "agent2"}, assistantAgents(o.Messages()))
}

func TestOrchestrator_ResumeWhileCallInFlight(t *testing.T) {
	r := newScriptedResponder()
	release := r.hold(0)
	o := newOrchestrator(t, r, testSettings(2))

	require.NoError(t, o.Start(testutil.TestContext(t)))
	r.waitCall(t, 0)
	require.NoError(t, o.Pause())
	require.NoError(t, o.Resume())

	release()
	waitLoop(t, o)

	assert.Equal(t, types.StateIdle, o.State())
	assert.Len(t, r.Calls(), 2)
	assert.Equal(t, []string{"agent1", "agent2"}, assistantAgents(o.Messages()))
}

func TestOrchestrator_PauseResumeKeepsTurnDelay(t *testing.T) {
	const delay = 400 * time.Millisecond
	r := newScriptedResponder()
	release := r.hold(0)
	s := testSettings(2)
	s.TurnDelay = delay
	o := newOrchestrator(t, r, s)

	require.NoError(t, o.Start(testutil.TestContext(t)))
	r.waitCall(t, 0)
	require.NoError(t, o.Pause())
	require.NoError(t, o.Resume())

	released := time.Now()
	release()
	r.waitCall(t, 1)
	waitLoop(t, o)

	assert.GreaterOrEqual(t, r.Calls()[1].at.Sub(released), delay)
	assert.Equal(t, []string{"agent1", "agent2"}, assistantAgents(o.Messages()))
}

func TestOrchestrator_PauseResumeDuringDelay(t *testing.T) {
	const delay = 400 * time.Millisecond
	r := newScriptedResponder()
	s := testSettings(2)
	s.TurnDelay = delay
	o := newOrchestrator(t, r, s)

	require.NoError(t, o.Start(testutil.TestContext(t)))
	r.waitCall(t, 0)
	require.Eventually(t, func() bool { return o.Snapshot().CompletedTurns == 1 },
		5*time.Second, 5*time.Millisecond)
	require.NoError(t, o.Pause())
	require.NoError(t, o.Resume())

	r.waitCall(t, 1)
	waitLoop(t, o)

	calls := r.Calls()
	require.Len(t, calls, 2)
	assert.GreaterOrEqual(t, calls[1].at.Sub(calls[0].at), delay)
}

func TestOrchestrator_FailureMovesToError(t *testing.T) {
	r := newScriptedResponder()
	r.failAt(1, types.NewError(types.ErrRateLimited, "slow down").WithHTTPStatus(http.StatusTooManyRequests))
	o := newOrchestrator(t, r, testSettings(4))
	events, cancel := o.Subscribe(0)
	defer cancel()

	require.NoError(t, o.Start(testutil.TestContext(t)))
	waitLoop(t, o)

	snap := o.Snapshot()
	assert.Equal(t, types.StateError, snap.State)
	assert.Equal(t, "Rate limit exceeded. Please wait a moment and try again.", snap.LastError)
	assert.Equal(t, 1, snap.CompletedTurns)
	assert.Len(t, snap.Conversation.Messages, 3)
	assert.Len(t, r.Calls(), 2, "a failed turn is not retried")

	var sawError bool
	for len(events) > 0 {
		if ev := <-events; ev.Type == conversation.EventError {
			sawError = true
			assert.Equal(t, 1, ev.Turn)
		}
	}
	assert.True(t, sawError)

	require.NoError(t, o.Resume())
	waitLoop(t, o)
	assert.Equal(t, types.StateIdle, o.State())
	assert.Empty(t, o.Snapshot().LastError)
	assert.Equal(t, []string{"agent1", "agent2", "agent1", "agent2"}, assistantAgents(o.Messages()))
}

func TestOrchestrator_StartFromError(t *testing.T) {
	r := newScriptedResponder()
	r.failAt(0, errors.New("boom"))
	o := newOrchestrator(t, r, testSettings(1))
	ctx := testutil.TestContext(t)

	require.NoError(t, o.Start(ctx))
	waitLoop(t, o)
	require.Equal(t, types.StateError, o.State())
	assert.Equal(t, "boom", o.Snapshot().LastError)

	require.NoError(t, o.Start(ctx))
	waitLoop(t, o)
	assert.Equal(t, types.StateIdle, o.State())
	assert.Len(t, o.Messages(), 3)
}

func TestOrchestrator_Inject(t *testing.T) {
	r := newScriptedResponder()
	release := r.hold(0)
	o := newOrchestrator(t, r, testSettings(2))

	_, err := o.Inject("too early")
	assert.ErrorIs(t, err, conversation.ErrInvalidState)

	require.NoError(t, o.Start(testutil.TestContext(t)))
	r.waitCall(t, 0)

	_, err = o.Inject("   ")
	assert.ErrorIs(t, err, conversation.ErrEmptyInjection)

	msg, err := o.Inject("  talk about cats ")
	require.NoError(t, err)
	assert.Equal(t, types.RoleOperator, msg.Role)
	assert.True(t, msg.IsOperator)
	assert.Equal(t, "talk about cats", msg.Content)

	release()
	waitLoop(t, o)

	msgs := o.Messages()
	require.Len(t, msgs, 5)
	assert.Equal(t, types.RoleOperator, msgs[2].Role)

	calls := r.Calls()
	require.Len(t, calls, 2)
	last := calls[1].history[len(calls[1].history)-1]
	assert.Equal(t, "agent1 reply 0", last.Content)
	assert.Equal(t, types.RoleOperator, calls[1].history[2].Role)
}

func TestOrchestrator_RestartDiscardsStaleResponse(t *testing.T) {
	defer goleak.VerifyNone(t, leakOpts...)

	r := newScriptedResponder()
	release := r.hold(0)
	o := newOrchestrator(t, r, testSettings(2))
	ctx := testutil.TestContext(t)

	require.NoError(t, o.Start(ctx))
	r.waitCall(t, 0)
	o.Stop()
	require.NoError(t, o.Start(ctx))

	// the new run must not issue a call while the old one is in flight
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, r.Calls(), 1)

	release()
	waitLoop(t, o)

	msgs := o.Messages()
	require.Len(t, msgs, 4)
	for _, m := range msgs {
		assert.NotEqual(t, "agent1 reply 0", m.Content)
	}
	assert.Equal(t, []string{"agent1", "agent2"}, assistantAgents(msgs))
	require.NoError(t, o.Close())
}

func TestOrchestrator_ResetAndConfigure(t *testing.T) {
	r := newScriptedResponder()
	release := r.hold(0)
	o := newOrchestrator(t, r, testSettings(1))
	ctx := testutil.TestContext(t)
	firstID := o.Snapshot().Conversation.ID

	require.NoError(t, o.Start(ctx))
	r.waitCall(t, 0)
	assert.ErrorIs(t, o.Reset(), conversation.ErrInvalidState)
	assert.ErrorIs(t, o.Configure(testSettings(3)), conversation.ErrInvalidState)
	release()
	waitLoop(t, o)

	require.NoError(t, o.Reset())
	snap := o.Snapshot()
	assert.NotEqual(t, firstID, snap.Conversation.ID)
	assert.Empty(t, snap.Conversation.Messages)
	assert.Equal(t, "Empty conversation", snap.Summary)

	bad := testSettings(0)
	assert.Error(t, o.Configure(bad))

	next := testSettings(6)
	next.Title = "Renamed"
	next.Agents[1].Name = "Critic"
	require.NoError(t, o.Configure(next))
	assert.Equal(t, 6, o.Settings().MaxTurns)
	snap = o.Snapshot()
	assert.Equal(t, "Renamed", snap.Conversation.Title)
	assert.Equal(t, "Critic", snap.Conversation.Agents[1].Name)
}

func TestOrchestrator_Events(t *testing.T) {
	r := newScriptedResponder()
	o := newOrchestrator(t, r, testSettings(2))
	events, cancel := o.Subscribe(128)
	defer cancel()

	require.NoError(t, o.Start(testutil.TestContext(t)))
	waitLoop(t, o)

	var (
		states   []types.RunState
		messages int
	)
	for len(events) > 0 {
		ev := <-events
		switch ev.Type {
		case conversation.EventState:
			states = append(states, ev.State)
		case conversation.EventMessage:
			messages++
		}
	}
	assert.Equal(t, []types.RunState{types.StateRunning, types.StateIdle}, states)
	assert.Equal(t, 4, messages)
}

func TestOrchestrator_Close(t *testing.T) {
	defer goleak.VerifyNone(t, leakOpts...)

	r := newScriptedResponder()
	r.hold(0)
	o, err := conversation.New(r, testSettings(2))
	require.NoError(t, err)
	events, _ := o.Subscribe(0)

	require.NoError(t, o.Start(testutil.TestContext(t)))
	r.waitCall(t, 0)

	require.NoError(t, o.Close())
	require.NoError(t, o.Close())
	assert.Equal(t, types.StateIdle, o.State())
	assert.Len(t, o.Messages(), 2)
	assert.ErrorIs(t, o.Start(testutil.TestContext(t)), conversation.ErrClosed)

	for range events {
	}
}

func TestOrchestrator_SubscribeAfterClose(t *testing.T) {
	o := newOrchestrator(t, newScriptedResponder(), testSettings(1))
	require.NoError(t, o.Close())

	events, cancel := o.Subscribe(0)
	_, ok := testutil.WaitForChannel(events, time.Second)
	assert.False(t, ok, "feed of a closed orchestrator must be closed")
	assert.NotPanics(t, cancel)
}

func TestOrchestrator_SteeringAgent(t *testing.T) {
	r := newScriptedResponder()
	s := testSettings(2)
	s.Agents = [2]types.AgentConfig{fixtures.Agent("alice", "fake"), fixtures.Agent("bob", "fake")}
	o := newOrchestrator(t, r, s)

	require.NoError(t, o.Start(testutil.TestContext(t)))
	waitLoop(t, o)
	for _, c := range r.Calls() {
		assert.Equal(t, "alice", c.steering)
	}

	// a steering id left over from the default agents is rejected
	s.SteeringAgent = "agent1"
	assert.Error(t, o.Configure(s))

	s.SteeringAgent = "bob"
	require.NoError(t, o.Configure(s))
	require.NoError(t, o.Start(testutil.TestContext(t)))
	waitLoop(t, o)
	calls := r.Calls()
	require.Len(t, calls, 4)
	assert.Equal(t, "bob", calls[3].steering)
}

func TestOrchestrator_Save(t *testing.T) {
	r := newScriptedResponder()
	o := newOrchestrator(t, r, testSettings(1))
	ctx := testutil.TestContext(t)
	sink := &memorySink{}

	_, err := o.Save(ctx, sink)
	assert.ErrorIs(t, err, conversation.ErrEmptyConversation)

	require.NoError(t, o.Start(ctx))
	waitLoop(t, o)

	res, err := o.Save(ctx, sink)
	require.NoError(t, err)
	assert.Equal(t, "mem://1", res.Path)
	require.Len(t, sink.saved, 1)
	assert.Contains(t, sink.saved[0], "# Test chat")
	assert.Contains(t, sink.saved[0], "agent1 reply 0")

	sink.err = errors.New("disk full")
	_, err = o.Save(ctx, sink)
	assert.ErrorIs(t, err, sink.err)

	sink.err = nil
	sink.cancel = true
	res, err = o.Save(ctx, sink)
	require.NoError(t, err)
	assert.True(t, res.Cancelled)
}

type memorySink struct {
	saved  []string
	err    error
	cancel bool
}

func (s *memorySink) Save(_ context.Context, markdown string) (conversation.SaveResult, error) {
	if s.err != nil {
		return conversation.SaveResult{}, s.err
	}
	if s.cancel {
		return conversation.SaveResult{Cancelled: true}, nil
	}
	s.saved = append(s.saved, markdown)
	return conversation.SaveResult{Path: fmt.Sprintf("mem://%d", len(s.saved))}, nil
}

func TestNew_InvalidSettings(t *testing.T) {
	s := testSettings(2)
	s.Agents[1].ID = "agent1"
	_, err := conversation.New(newScriptedResponder(), s)
	assert.Error(t, err)
}

func TestSettingsFrom(t *testing.T) {
	s := conversation.SettingsFrom(config.DefaultConversationConfig())

	assert.Equal(t, 10, s.MaxTurns)
	assert.Equal(t, 2*time.Second, s.TurnDelay)
	assert.Equal(t, "agent1", s.Agents[0].ID)
	assert.Equal(t, "agent2", s.Agents[1].ID)
	assert.Equal(t, config.DefaultInitialPrompt, s.InitialPrompt)
	assert.Equal(t, "agent1", s.SteeringAgent)
	assert.NoError(t, s.Validate())
}

func TestSettings_SteeringID(t *testing.T) {
	s := testSettings(1)
	assert.Equal(t, "agent1", s.SteeringID())
	s.SteeringAgent = "agent2"
	assert.Equal(t, "agent2", s.SteeringID())
}

func TestSettings_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*conversation.Settings)
	}{
		{name: "zero turns", mutate: func(s *conversation.Settings) { s.MaxTurns = 0 }},
		{name: "negative delay", mutate: func(s *conversation.Settings) { s.TurnDelay = -time.Second }},
		{name: "missing provider", mutate: func(s *conversation.Settings) { s.Agents[0].Provider = "" }},
		{name: "duplicate ids", mutate: func(s *conversation.Settings) { s.Agents[1].ID = s.Agents[0].ID }},
		{name: "unknown steering agent", mutate: func(s *conversation.Settings) { s.SteeringAgent = "carol" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testSettings(2)
			tt.mutate(&s)
			assert.Error(t, s.Validate())
		})
	}
}
