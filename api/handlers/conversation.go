package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/sanchez314c/agent-chat/agent/conversation"
	"github.com/sanchez314c/agent-chat/types"
	"go.uber.org/zap"
)

const wsWriteTimeout = 10 * time.Second

// ConversationHandler exposes the orchestrator's operator actions.
type ConversationHandler struct {
	orch    *conversation.Orchestrator
	sink    conversation.FileSink
	origins []string
	logger  *zap.Logger
}

// ConversationOption configures a ConversationHandler.
type ConversationOption func(*ConversationHandler)

// WithFileSink enables POST /conversation/save.
func WithFileSink(sink conversation.FileSink) ConversationOption {
	return func(h *ConversationHandler) { h.sink = sink }
}

// WithOriginPatterns allows cross-origin websocket clients matching
// patterns.
func WithOriginPatterns(patterns ...string) ConversationOption {
	return func(h *ConversationHandler) { h.origins = patterns }
}

// WithConversationLogger sets the logger.
func WithConversationLogger(l *zap.Logger) ConversationOption {
	return func(h *ConversationHandler) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewConversationHandler creates a ConversationHandler for orch.
func NewConversationHandler(orch *conversation.Orchestrator, opts ...ConversationOption) *ConversationHandler {
	h := &ConversationHandler{orch: orch, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With(zap.String("component", "conversation_handler"))
	return h
}

// =============================================================================
// Request types
// =============================================================================

// settingsRequest is a partial update of conversation.Settings. Omitted
// fields keep their current value.
type settingsRequest struct {
	Title         *string               `json:"title,omitempty"`
	Agents        *[2]types.AgentConfig `json:"agents,omitempty"`
	SystemPrompt  *string               `json:"system_prompt,omitempty"`
	InitialPrompt *string               `json:"initial_prompt,omitempty"`
	MaxTurns      *int                  `json:"max_turns,omitempty"`
	SteeringAgent *string               `json:"steering_agent,omitempty"`
	// TurnDelay is a Go duration string such as "2s".
	TurnDelay *string `json:"turn_delay,omitempty"`
}

func (req settingsRequest) apply(s conversation.Settings) (conversation.Settings, error) {
	if req.Title != nil {
		s.Title = *req.Title
	}
	if req.Agents != nil {
		// replacing the agents keeps the steering position unless a new
		// steering agent is named
		for i, a := range s.Agents {
			if s.SteeringAgent != "" && a.ID == s.SteeringAgent {
				s.SteeringAgent = req.Agents[i].ID
				break
			}
		}
		s.Agents = *req.Agents
	}
	if req.SteeringAgent != nil {
		s.SteeringAgent = *req.SteeringAgent
	}
	if req.SystemPrompt != nil {
		s.SystemPrompt = *req.SystemPrompt
	}
	if req.InitialPrompt != nil {
		s.InitialPrompt = *req.InitialPrompt
	}
	if req.MaxTurns != nil {
		s.MaxTurns = *req.MaxTurns
	}
	if req.TurnDelay != nil {
		d, err := time.ParseDuration(*req.TurnDelay)
		if err != nil {
			return s, fmt.Errorf("invalid turn_delay: %w", err)
		}
		s.TurnDelay = d
	}
	return s, nil
}

// injectRequest is the body of POST /conversation/inject.
type injectRequest struct {
	Content string `json:"content"`
}

// snapshotFrame opens every event stream.
type snapshotFrame struct {
	Type     string                `json:"type"`
	Snapshot conversation.Snapshot `json:"snapshot"`
}

// =============================================================================
// State
// =============================================================================

// HandleGet serves GET /api/v1/conversation.
// @Router /api/v1/conversation [get]
func (h *ConversationHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, h.orch.Snapshot())
}

// HandleConfigure serves PUT /api/v1/conversation.
// @Router /api/v1/conversation [put]
func (h *ConversationHandler) HandleConfigure(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var req settingsRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	settings, err := req.apply(h.orch.Settings())
	if err != nil {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, err.Error(), h.logger)
		return
	}
	if err := settings.Validate(); err != nil {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, err.Error(), h.logger)
		return
	}
	if err := h.orch.Configure(settings); err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteSuccess(w, h.orch.Snapshot())
}

// HandleStart serves POST /api/v1/conversation/start.
// @Router /api/v1/conversation/start [post]
func (h *ConversationHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	h.act(w, func() error { return h.orch.Start(r.Context()) })
}

// HandlePause serves POST /api/v1/conversation/pause.
// @Router /api/v1/conversation/pause [post]
func (h *ConversationHandler) HandlePause(w http.ResponseWriter, r *http.Request) {
	h.act(w, h.orch.Pause)
}

// HandleResume serves POST /api/v1/conversation/resume.
// @Router /api/v1/conversation/resume [post]
func (h *ConversationHandler) HandleResume(w http.ResponseWriter, r *http.Request) {
	h.act(w, h.orch.Resume)
}

// HandleStop serves POST /api/v1/conversation/stop.
// @Router /api/v1/conversation/stop [post]
func (h *ConversationHandler) HandleStop(w http.ResponseWriter, r *http.Request) {
	h.act(w, func() error {
		h.orch.Stop()
		return nil
	})
}

// HandleReset serves POST /api/v1/conversation/reset.
// @Router /api/v1/conversation/reset [post]
func (h *ConversationHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	h.act(w, h.orch.Reset)
}

func (h *ConversationHandler) act(w http.ResponseWriter, fn func() error) {
	if err := fn(); err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteSuccess(w, h.orch.Snapshot())
}

// =============================================================================
// Messages
// =============================================================================

// HandleInject serves POST /api/v1/conversation/inject.
// @Router /api/v1/conversation/inject [post]
func (h *ConversationHandler) HandleInject(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var req injectRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	msg, err := h.orch.Inject(req.Content)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteSuccess(w, msg)
}

// HandleMessages serves GET /api/v1/conversation/messages.
// @Router /api/v1/conversation/messages [get]
func (h *ConversationHandler) HandleMessages(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, h.orch.Messages())
}

// =============================================================================
// Export
// =============================================================================

// HandleExport serves GET /api/v1/conversation/export as markdown.
// @Router /api/v1/conversation/export [get]
func (h *ConversationHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	if len(h.orch.Messages()) == 0 {
		WriteServiceError(w, conversation.ErrEmptyConversation, h.logger)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="conversation.md"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(h.orch.ExportMarkdown()))
}

// HandleSave serves POST /api/v1/conversation/save.
// @Router /api/v1/conversation/save [post]
func (h *ConversationHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	if h.sink == nil {
		WriteErrorMessage(w, http.StatusNotImplemented, types.ErrInvalidRequest, "saving is not configured", h.logger)
		return
	}
	res, err := h.orch.Save(r.Context(), h.sink)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteSuccess(w, res)
}

// =============================================================================
// Event stream
// =============================================================================

// HandleEvents serves GET /api/v1/conversation/events as a websocket feed.
// The first frame is a snapshot; every orchestrator event follows.
// @Router /api/v1/conversation/events [get]
func (h *ConversationHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	// the server write timeout would otherwise cut long-lived feeds
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	events, unsubscribe := h.orch.Subscribe(0)
	defer unsubscribe()

	// the feed is one-way; CloseRead handles control frames
	ctx := conn.CloseRead(r.Context())

	if err := h.write(ctx, conn, snapshotFrame{Type: "snapshot", Snapshot: h.orch.Snapshot()}); err != nil {
		return
	}
	h.logger.Debug("event subscriber connected", zap.String("remote", r.RemoteAddr))

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "conversation closed")
				return
			}
			if err := h.write(ctx, conn, ev); err != nil {
				return
			}
		}
	}
}

func (h *ConversationHandler) write(ctx context.Context, conn *websocket.Conn, v any) error {
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, conn, v); err != nil {
		h.logger.Debug("event subscriber gone", zap.Error(err))
		return err
	}
	return nil
}
