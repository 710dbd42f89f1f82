// =============================================================================
// Fixtures: agents and histories
// =============================================================================
package fixtures

import (
	"time"

	"github.com/sanchez314c/agent-chat/types"
)

// Agent returns a minimal agent on provider.
func Agent(id, provider string) types.AgentConfig {
	return types.AgentConfig{
		ID:          id,
		Name:        "Agent " + id[len(id)-1:],
		Provider:    provider,
		Model:       "test-model",
		Persona:     "You are " + id + ".",
		Temperature: 0.5,
		MaxTokens:   100,
	}
}

// AgentPair returns agent1 and agent2, both on provider.
func AgentPair(provider string) [2]types.AgentConfig {
	return [2]types.AgentConfig{Agent("agent1", provider), Agent("agent2", provider)}
}

// History returns a short exchange seeded the way a run starts:
// system prompt, initial prompt, then alternating agent replies.
func History(replies ...string) []types.Message {
	base := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
	msgs := []types.Message{
		{ID: "sys", Role: types.RoleSystem, Content: "Stay in character.", Timestamp: base},
		{ID: "init", Role: types.RoleUser, Content: "Let's talk.", Timestamp: base},
	}
	for i, r := range replies {
		agentID := "agent1"
		if i%2 == 1 {
			agentID = "agent2"
		}
		msgs = append(msgs, types.Message{
			ID:        "reply-" + string(rune('a'+i)),
			Role:      types.RoleAssistant,
			Content:   r,
			AgentID:   agentID,
			Timestamp: base.Add(time.Duration(i+1) * time.Second),
		})
	}
	return msgs
}
