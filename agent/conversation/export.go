package conversation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sanchez314c/agent-chat/types"
)

const (
	summaryLength  = 100
	emptySummary   = "Empty conversation"
	timeOfDay      = "15:04:05"
	generatedStamp = "2006-01-02 15:04:05"
)

// ErrEmptyConversation is returned when there is nothing to save.
var ErrEmptyConversation = errors.New("conversation has no messages")

// SaveResult is what a FileSink reports for one save.
type SaveResult struct {
	Path      string `json:"path,omitempty"`
	Cancelled bool   `json:"cancelled,omitempty"`
}

// FileSink persists an exported transcript. The orchestrator only produces
// markdown text and never touches the filesystem itself.
type FileSink interface {
	Save(ctx context.Context, markdown string) (SaveResult, error)
}

// Summary returns the first 100 characters of the first message that is
// neither a system message nor an operator injection.
func Summary(msgs []types.Message) string {
	for _, m := range msgs {
		if m.Role == types.RoleSystem || m.Role == types.RoleOperator {
			continue
		}
		runes := []rune(m.Content)
		if len(runes) <= summaryLength {
			return m.Content
		}
		return string(runes[:summaryLength]) + "..."
	}
	return emptySummary
}

// ExportMarkdown renders conv as a markdown transcript stamped with
// generated.
func ExportMarkdown(conv *types.Conversation, generated time.Time) string {
	title := conv.Title
	if title == "" {
		title = types.DefaultConversationTitle
	}

	lines := []string{
		"# " + title,
		"",
		"**Generated:** " + generated.Format(generatedStamp),
		"",
		"## Conversation",
		"",
	}
	for _, m := range conv.Messages {
		switch {
		case m.Role == types.RoleSystem:
			lines = append(lines, "**System:** "+m.Content)
		case m.Role == types.RoleOperator:
			lines = append(lines, "**[Operator Injection]:** "+m.Content)
		case m.Role == types.RoleUser && m.AgentID == "":
			lines = append(lines, "**Initial Prompt** *("+m.Timestamp.Format(timeOfDay)+")*: "+m.Content)
		default:
			lines = append(lines, "**"+speakerName(conv, m.AgentID)+"** *("+m.Timestamp.Format(timeOfDay)+")*: "+m.Content)
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

// speakerName resolves an agent id to its display name. Ids that match
// neither agent fall back to the first agent when they contain "1".
func speakerName(conv *types.Conversation, agentID string) string {
	if a, ok := conv.AgentByID(agentID); ok {
		return a.DisplayName()
	}
	if strings.Contains(agentID, "1") {
		return conv.Agents[0].DisplayName()
	}
	return conv.Agents[1].DisplayName()
}
