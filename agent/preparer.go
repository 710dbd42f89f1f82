package agent

import (
	"time"

	"github.com/sanchez314c/agent-chat/types"
)

const (
	// DefaultContextWindow is how many trailing history entries an agent sees.
	DefaultContextWindow = 10
	// DefaultSteeringAgentID is the agent that receives operator messages.
	DefaultSteeringAgentID = "agent1"

	// PersonaMessageID marks the synthetic persona message.
	PersonaMessageID = "system"
	// OperatorPrefix tags operator messages delivered to the steering agent.
	OperatorPrefix = "[OPERATOR MESSAGE]: "

	greetingMessageID = "initial-user"
	greeting          = "Hello, let's start our conversation."
)

// PrepareOptions tunes Prepare. Zero values select the defaults.
type PrepareOptions struct {
	// Window is the number of trailing history entries kept.
	Window int
	// SteeringAgentID is the only agent that sees operator messages.
	SteeringAgentID string
	// StrictAlternation runs RepairAlternation on the conversation part.
	StrictAlternation bool
}

func (o PrepareOptions) withDefaults() PrepareOptions {
	if o.Window <= 0 {
		o.Window = DefaultContextWindow
	}
	if o.SteeringAgentID == "" {
		o.SteeringAgentID = DefaultSteeringAgentID
	}
	return o
}

// Prepare builds the message list sent for cfg's turn.
//
// The result starts with the persona as a system message, followed by any
// other system messages from the window, followed by the conversation seen
// from cfg's side: its own replies as assistant, everything else as user.
// Operator messages reach only the steering agent. history is not modified.
func Prepare(cfg types.AgentConfig, history []types.Message, opts PrepareOptions) []types.Message {
	opts = opts.withDefaults()

	window := history
	if len(window) > opts.Window {
		window = window[len(window)-opts.Window:]
	}

	head := make([]types.Message, 0, 2)
	head = append(head, types.Message{
		ID:        PersonaMessageID,
		Role:      types.RoleSystem,
		Content:   cfg.Persona,
		Timestamp: time.Now(),
	})

	parts := make([]types.Message, 0, len(window))
	for _, msg := range window {
		switch {
		case msg.Role == types.RoleSystem:
			if msg.ID != PersonaMessageID {
				head = append(head, msg)
			}
		case msg.Role == types.RoleOperator:
			if cfg.ID != opts.SteeringAgentID {
				continue
			}
			msg.Role = types.RoleUser
			msg.Content = OperatorPrefix + msg.Content
			parts = append(parts, msg)
		case msg.AgentID == cfg.ID:
			msg.Role = types.RoleAssistant
			parts = append(parts, msg)
		default:
			msg.Role = types.RoleUser
			parts = append(parts, msg)
		}
	}

	if opts.StrictAlternation {
		parts = RepairAlternation(parts)
	}
	return append(head, parts...)
}

// RepairAlternation merges consecutive same-role messages, joining their
// content with a blank line, and prepends a user greeting when the result
// would start with an assistant message. msgs is not modified.
func RepairAlternation(msgs []types.Message) []types.Message {
	if len(msgs) == 0 {
		return msgs
	}

	fixed := make([]types.Message, 0, len(msgs)+1)
	for _, msg := range msgs {
		if n := len(fixed); n > 0 && fixed[n-1].Role == msg.Role {
			fixed[n-1].Content += "\n\n" + msg.Content
			continue
		}
		fixed = append(fixed, msg)
	}

	if fixed[0].Role == types.RoleAssistant {
		fixed = append([]types.Message{{
			ID:        greetingMessageID,
			Role:      types.RoleUser,
			Content:   greeting,
			Timestamp: time.Now(),
		}}, fixed...)
	}
	return fixed
}
