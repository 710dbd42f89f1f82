package types

import (
	"time"

	"github.com/google/uuid"
)

// RunState is the lifecycle state of a conversation run.
type RunState string

const (
	StateIdle    RunState = "idle"
	StateRunning RunState = "running"
	StatePaused  RunState = "paused"
	StateError   RunState = "error"
)

// DefaultConversationTitle is used when a conversation has no title.
const DefaultConversationTitle = "AgentCHAT Conversation"

// Conversation is the shared history of a two-agent exchange.
// Turn n belongs to Agents[0] when n is even and Agents[1] when odd,
// counted from the first agent response.
type Conversation struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Messages      []Message      `json:"messages"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	Agents        [2]AgentConfig `json:"agents"`
	SystemPrompt  string         `json:"system_prompt"`
	InitialPrompt string         `json:"initial_prompt"`
}

// NewConversation creates an empty conversation for the two agents.
func NewConversation(title string, agents [2]AgentConfig, systemPrompt, initialPrompt string) *Conversation {
	if title == "" {
		title = DefaultConversationTitle
	}
	now := time.Now()
	return &Conversation{
		ID:            uuid.NewString(),
		Title:         title,
		CreatedAt:     now,
		UpdatedAt:     now,
		Agents:        agents,
		SystemPrompt:  systemPrompt,
		InitialPrompt: initialPrompt,
	}
}

// Clone returns a deep copy of the conversation.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Messages = CloneMessages(c.Messages)
	return &cp
}

// Append adds messages and bumps UpdatedAt.
func (c *Conversation) Append(msgs ...Message) {
	c.Messages = append(c.Messages, msgs...)
	c.UpdatedAt = time.Now()
}

// AgentByID returns the agent with the given id.
func (c *Conversation) AgentByID(id string) (AgentConfig, bool) {
	for _, a := range c.Agents {
		if a.ID == id {
			return a, true
		}
	}
	return AgentConfig{}, false
}
