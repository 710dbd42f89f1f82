package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sanchez314c/agent-chat/config"
	"github.com/sanchez314c/agent-chat/internal/metrics"
	"github.com/sanchez314c/agent-chat/internal/telemetry"
	"github.com/sanchez314c/agent-chat/llm/client"
	"github.com/sanchez314c/agent-chat/types"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ErrClosed is returned by operations on a closed orchestrator.
var ErrClosed = errors.New("orchestrator is closed")

// Responder produces one agent turn. agent.Manager implements it.
type Responder interface {
	// Respond prepares history for cfg, routing operator messages only to
	// steeringID, and returns the provider's reply.
	Respond(ctx context.Context, cfg types.AgentConfig, history []types.Message, steeringID string) (*client.Result, error)
	CheckCredentials(ctx context.Context, agents ...types.AgentConfig) error
}

// =============================================================================
// Settings
// =============================================================================

// Settings is the operator-editable part of a conversation.
type Settings struct {
	Title         string               `json:"title"`
	Agents        [2]types.AgentConfig `json:"agents"`
	SystemPrompt  string               `json:"system_prompt"`
	InitialPrompt string               `json:"initial_prompt"`
	MaxTurns      int                  `json:"max_turns"`
	// SteeringAgent is the id of the agent that sees operator messages.
	// Empty means the first agent.
	SteeringAgent string `json:"steering_agent,omitempty"`
	// TurnDelay is the pause between turns during which the operator can
	// inject or pause.
	TurnDelay time.Duration `json:"turn_delay"`
}

// SettingsFrom converts the conversation section of the configuration.
func SettingsFrom(cfg config.ConversationConfig) Settings {
	return Settings{
		Title:         cfg.Title,
		Agents:        cfg.Agents(),
		SystemPrompt:  cfg.SystemPrompt,
		InitialPrompt: cfg.InitialPrompt,
		MaxTurns:      cfg.MaxTurns,
		SteeringAgent: cfg.SteeringAgent,
		TurnDelay:     cfg.TurnDelay,
	}
}

// SteeringID returns the id of the agent that receives operator messages.
func (s Settings) SteeringID() string {
	if s.SteeringAgent == "" {
		return s.Agents[0].ID
	}
	return s.SteeringAgent
}

// Validate checks that the settings can drive a run.
func (s Settings) Validate() error {
	var errs []error
	if s.MaxTurns <= 0 {
		errs = append(errs, fmt.Errorf("max_turns must be positive, got %d", s.MaxTurns))
	}
	if s.TurnDelay < 0 {
		errs = append(errs, fmt.Errorf("turn_delay must not be negative, got %s", s.TurnDelay))
	}
	for _, a := range s.Agents {
		if err := a.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.Agents[0].ID != "" && s.Agents[0].ID == s.Agents[1].ID {
		errs = append(errs, fmt.Errorf("agents must have distinct ids, both are %q", s.Agents[0].ID))
	}
	if id := s.SteeringAgent; id != "" && id != s.Agents[0].ID && id != s.Agents[1].ID {
		errs = append(errs, fmt.Errorf("steering_agent %q matches neither agent id", id))
	}
	return errors.Join(errs...)
}

// Snapshot is a consistent copy of the orchestrator's state.
type Snapshot struct {
	Conversation   *types.Conversation `json:"conversation"`
	State          types.RunState      `json:"state"`
	Turn           int                 `json:"turn"`
	CompletedTurns int                 `json:"completed_turns"`
	MaxTurns       int                 `json:"max_turns"`
	LastError      string              `json:"last_error,omitempty"`
	Summary        string              `json:"summary"`
}

// =============================================================================
// Orchestrator
// =============================================================================

// Orchestrator runs the turn loop of one two-agent conversation and applies
// operator actions to it. Turn n goes to the first agent when n is even and
// to the second when odd. At most one turn is in flight at a time.
type Orchestrator struct {
	responder Responder
	metrics   *metrics.Collector
	tracer    trace.Tracer
	logger    *zap.Logger

	// ctx outlives operator requests; Close cancels it.
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	settings  Settings
	conv      *types.Conversation
	state     types.RunState
	turn      int
	completed int
	lastErr   string
	closed    bool

	// generation changes on Start and Reset; a loop from an older
	// generation never appends.
	generation uint64
	// nextTurnAt is the earliest time the next turn may be sent. Every
	// loop honors it, including one launched by Resume.
	nextTurnAt time.Time
	active     bool
	loopDone   chan struct{}
	wake       chan struct{}

	subs    map[int]chan Event
	nextSub int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics records turns, transitions and injections.
func WithMetrics(m *metrics.Collector) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// New creates an idle orchestrator with an empty conversation.
func New(responder Responder, settings Settings, opts ...Option) (*Orchestrator, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid conversation settings: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		responder: responder,
		tracer:    telemetry.Tracer("agent/conversation"),
		logger:    zap.NewNop(),
		ctx:       ctx,
		cancel:    cancel,
		settings:  settings,
		state:     types.StateIdle,
		wake:      make(chan struct{}, 1),
		subs:      make(map[int]chan Event),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.conv = o.newConversation()
	o.logger = o.logger.With(zap.String("component", "orchestrator"))
	return o, nil
}

func (o *Orchestrator) newConversation() *types.Conversation {
	s := o.settings
	return types.NewConversation(s.Title, s.Agents, s.SystemPrompt, s.InitialPrompt)
}

// =============================================================================
// Operator actions
// =============================================================================

// Start seeds the history with the system and initial prompts and runs the
// loop from turn 0. It is accepted from idle and error. Missing credentials
// are reported before anything changes.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if err := o.startableLocked(); err != nil {
		o.mu.Unlock()
		return err
	}
	agents := o.settings.Agents
	o.mu.Unlock()

	if err := o.responder.CheckCredentials(ctx, agents[0], agents[1]); err != nil {
		o.logger.Warn("start rejected", zap.Error(err))
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.startableLocked(); err != nil {
		return err
	}

	o.generation++
	o.conv.Agents = o.settings.Agents
	o.conv.SystemPrompt = o.settings.SystemPrompt
	o.conv.InitialPrompt = o.settings.InitialPrompt
	o.conv.Messages = nil
	o.conv.Append(
		types.NewSystemMessage(o.settings.SystemPrompt),
		types.NewUserMessage(o.settings.InitialPrompt),
	)
	o.turn, o.completed, o.lastErr = 0, 0, ""
	o.nextTurnAt = time.Time{}

	o.publish(Event{Type: EventReset})
	for i := range o.conv.Messages {
		msg := o.conv.Messages[i]
		o.publish(Event{Type: EventMessage, Turn: -1, Message: &msg})
	}
	o.setStateLocked(types.StateRunning)
	o.launchLocked(0)

	o.logger.Info("conversation started",
		zap.String("conversation_id", o.conv.ID),
		zap.Int("max_turns", o.settings.MaxTurns))
	return nil
}

func (o *Orchestrator) startableLocked() error {
	switch {
	case o.closed:
		return ErrClosed
	case o.state == types.StateRunning:
		return fmt.Errorf("%w: conversation is already running", ErrInvalidState)
	case o.state == types.StatePaused:
		return fmt.Errorf("%w: conversation is paused, resume it instead", ErrInvalidState)
	}
	return nil
}

// Pause stops the loop after the turn in flight. A response that lands while
// paused is still appended and counts as completed.
func (o *Orchestrator) Pause() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != types.StateRunning {
		return fmt.Errorf("%w: cannot pause a %s conversation", ErrInvalidState, o.state)
	}
	o.setStateLocked(types.StatePaused)
	o.notify()
	return nil
}

// Resume continues from the number of completed turns. It is accepted from
// paused and error; the turn that was in flight is never sent again.
func (o *Orchestrator) Resume() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	if o.state != types.StatePaused && o.state != types.StateError {
		return fmt.Errorf("%w: cannot resume a %s conversation", ErrInvalidState, o.state)
	}
	if len(o.conv.Messages) == 0 {
		return fmt.Errorf("%w: conversation has not been started", ErrInvalidState)
	}
	o.lastErr = ""
	o.setStateLocked(types.StateRunning)
	if !o.active {
		o.launchLocked(o.completed)
	}
	o.logger.Info("conversation resumed", zap.Int("turn", o.completed))
	return nil
}

// Stop returns to idle from any state. A response already in flight is
// still appended, but no further turn follows.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.setStateLocked(types.StateIdle)
	o.notify()
}

// Inject appends an operator message. It is accepted while running or
// paused; the steering agent sees it on its next turn.
func (o *Orchestrator) Inject(content string) (types.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return types.Message{}, ErrEmptyInjection
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != types.StateRunning && o.state != types.StatePaused {
		return types.Message{}, fmt.Errorf("%w: cannot inject into a %s conversation", ErrInvalidState, o.state)
	}
	msg := types.NewOperatorMessage(content)
	o.conv.Append(msg)
	o.metrics.RecordInjection()
	o.publish(Event{Type: EventMessage, Turn: o.turn, Message: &msg})
	o.logger.Info("operator message injected", zap.Int("turn", o.turn))
	return msg, nil
}

// Reset discards the history and starts a new conversation. It is accepted
// from idle and error.
func (o *Orchestrator) Reset() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != types.StateIdle && o.state != types.StateError {
		return fmt.Errorf("%w: cannot reset a %s conversation", ErrInvalidState, o.state)
	}
	o.generation++
	o.conv = o.newConversation()
	o.turn, o.completed, o.lastErr = 0, 0, ""
	o.setStateLocked(types.StateIdle)
	o.publish(Event{Type: EventReset})
	o.notify()
	return nil
}

// Configure replaces the settings. It is accepted from idle and error and
// takes effect on the next Start.
func (o *Orchestrator) Configure(s Settings) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid conversation settings: %w", err)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != types.StateIdle && o.state != types.StateError {
		return fmt.Errorf("%w: cannot configure a %s conversation", ErrInvalidState, o.state)
	}
	o.settings = s
	if s.Title != "" {
		o.conv.Title = s.Title
	}
	o.conv.Agents = s.Agents
	o.conv.SystemPrompt = s.SystemPrompt
	o.conv.InitialPrompt = s.InitialPrompt
	return nil
}

// Close stops the conversation, aborts any call in flight and waits for the
// loop to exit. Subscriptions are ended.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	o.setStateLocked(types.StateIdle)
	o.notify()
	o.cancel()
	done := o.loopDone
	o.closeSubscribers()
	o.mu.Unlock()

	if done != nil {
		<-done
	}
	return nil
}

// =============================================================================
// Queries
// =============================================================================

// State returns the live run state.
func (o *Orchestrator) State() types.RunState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Settings returns the current settings.
func (o *Orchestrator) Settings() Settings {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.settings
}

// Messages returns a copy of the history.
func (o *Orchestrator) Messages() []types.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return types.CloneMessages(o.conv.Messages)
}

// Snapshot returns a deep copy of the conversation together with the run
// state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Snapshot{
		Conversation:   o.conv.Clone(),
		State:          o.state,
		Turn:           o.turn,
		CompletedTurns: o.completed,
		MaxTurns:       o.settings.MaxTurns,
		LastError:      o.lastErr,
		Summary:        Summary(o.conv.Messages),
	}
}

// Summary returns a one-line summary of the conversation.
func (o *Orchestrator) Summary() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Summary(o.conv.Messages)
}

// ExportMarkdown renders the conversation as markdown.
func (o *Orchestrator) ExportMarkdown() string {
	o.mu.Lock()
	conv := o.conv.Clone()
	o.mu.Unlock()
	return ExportMarkdown(conv, time.Now())
}

// Save exports the conversation through sink.
func (o *Orchestrator) Save(ctx context.Context, sink FileSink) (SaveResult, error) {
	o.mu.Lock()
	conv := o.conv.Clone()
	o.mu.Unlock()

	if len(conv.Messages) == 0 {
		return SaveResult{}, ErrEmptyConversation
	}
	res, err := sink.Save(ctx, ExportMarkdown(conv, time.Now()))
	if err != nil {
		o.logger.Error("failed to save conversation", zap.Error(err))
		return SaveResult{}, fmt.Errorf("save conversation: %w", err)
	}
	if res.Cancelled {
		o.logger.Info("conversation save cancelled")
	} else {
		o.logger.Info("conversation saved", zap.String("path", res.Path))
	}
	return res, nil
}

// Wait blocks until the current loop exits or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context) error {
	o.mu.Lock()
	done := o.loopDone
	o.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// =============================================================================
// Turn loop
// =============================================================================

// launchLocked starts a loop at turn. The loop waits for its predecessor
// before issuing any call.
func (o *Orchestrator) launchLocked(turn int) {
	select {
	case <-o.wake:
	default:
	}
	prev := o.loopDone
	done := make(chan struct{})
	o.loopDone = done
	o.active = true
	go o.run(o.generation, prev, done, turn)
}

func (o *Orchestrator) run(gen uint64, prev <-chan struct{}, done chan struct{}, turn int) {
	defer close(done)

	if prev != nil {
		select {
		case <-prev:
		case <-o.ctx.Done():
		}
	}

	for {
		o.mu.Lock()
		if o.generation != gen {
			o.finishLocked(done)
			o.mu.Unlock()
			return
		}
		if turn >= o.settings.MaxTurns {
			if o.state == types.StateRunning || o.state == types.StatePaused {
				o.setStateLocked(types.StateIdle)
				o.logger.Info("conversation completed", zap.Int("turns", turn))
			}
			o.finishLocked(done)
			o.mu.Unlock()
			return
		}
		if o.state != types.StateRunning {
			o.finishLocked(done)
			o.mu.Unlock()
			return
		}
		if wait := time.Until(o.nextTurnAt); wait > 0 {
			o.mu.Unlock()
			if !o.sleep(wait) {
				o.mu.Lock()
				o.finishLocked(done)
				o.mu.Unlock()
				return
			}
			// woken or elapsed: re-check the live state and the remaining delay
			continue
		}
		o.turn = turn
		responder := o.settings.Agents[turn%2]
		history := types.CloneMessages(o.conv.Messages)
		convID := o.conv.ID
		delay := o.settings.TurnDelay
		steering := o.settings.SteeringID()
		o.mu.Unlock()

		res, err := o.respond(convID, turn, responder, history, steering)

		o.mu.Lock()
		if o.generation != gen {
			o.finishLocked(done)
			o.mu.Unlock()
			o.logger.Info("discarding response from superseded run", zap.Int("turn", turn))
			return
		}
		if err != nil {
			o.failLocked(turn, responder, err)
			o.finishLocked(done)
			o.mu.Unlock()
			return
		}

		msg := types.NewAssistantMessage(res.Content).WithAgent(responder.ID, responder.Provider, res.Model)
		o.conv.Append(msg)
		o.completed = turn + 1
		o.nextTurnAt = time.Now().Add(delay)
		o.publish(Event{Type: EventMessage, Turn: turn, Message: &msg})
		if o.state != types.StateRunning {
			o.logger.Info("response appended after run left running",
				zap.Int("turn", turn),
				zap.String("state", string(o.state)))
			o.finishLocked(done)
			o.mu.Unlock()
			return
		}
		turn++
		o.mu.Unlock()
	}
}

func (o *Orchestrator) respond(convID string, turn int, cfg types.AgentConfig, history []types.Message, steering string) (*client.Result, error) {
	ctx, span := o.tracer.Start(o.ctx, "conversation.turn", trace.WithAttributes(
		telemetry.AttrConversationID.String(convID),
		telemetry.AttrAgentID.String(cfg.ID),
		telemetry.AttrProvider.String(cfg.Provider),
		telemetry.AttrTurn.Int(turn),
	))
	start := time.Now()

	res, err := o.responder.Respond(ctx, cfg, history, steering)

	status := "success"
	if err != nil {
		status = "error"
	}
	o.metrics.RecordTurn(cfg.ID, cfg.Provider, status, time.Since(start))
	telemetry.EndSpan(span, err)

	o.logger.Debug("turn finished",
		zap.Int("turn", turn),
		zap.String("agent_id", cfg.ID),
		zap.String("status", status),
		zap.Duration("duration", time.Since(start)))
	return res, err
}

// failLocked records a failed turn. Only a live run moves to error; a
// failure that lands after Stop is just logged.
func (o *Orchestrator) failLocked(turn int, cfg types.AgentConfig, err error) {
	msg := ClassifyError(err)
	o.logger.Warn("turn failed",
		zap.Int("turn", turn),
		zap.String("agent_id", cfg.ID),
		zap.String("provider", cfg.Provider),
		zap.Error(err))
	if o.state != types.StateRunning && o.state != types.StatePaused {
		return
	}
	o.lastErr = msg
	o.setStateLocked(types.StateError)
	o.publish(Event{Type: EventError, Turn: turn, Error: msg})
}

// finishLocked marks the loop owning done as exited.
func (o *Orchestrator) finishLocked(done chan struct{}) {
	if o.loopDone == done {
		o.active = false
	}
}

func (o *Orchestrator) setStateLocked(to types.RunState) {
	from := o.state
	if from == to {
		return
	}
	o.state = to
	o.metrics.RecordStateTransition(string(from), string(to))
	o.publish(Event{Type: EventState, Turn: o.turn, State: to, Previous: from})
	o.logger.Debug("state changed", zap.String("from", string(from)), zap.String("to", string(to)))
}

// sleep waits up to d. It returns early when an operator action wakes the
// loop and reports false once the orchestrator is closed. A wake-up does not
// end the delay; the caller re-checks the state and the time left.
func (o *Orchestrator) sleep(d time.Duration) bool {
	if d <= 0 {
		return o.ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-o.wake:
		return true
	case <-o.ctx.Done():
		return false
	}
}

func (o *Orchestrator) notify() {
	select {
	case o.wake <- struct{}{}:
	default:
	}
}
