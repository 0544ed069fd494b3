package export

import (
	"sort"
	"time"

	"github.com/tkrueger/chatlens/internal"
)

// conversationDocument is the flattened export shape: the conversation
// itself plus the derived analytics the dashboard shows for it, so exported
// files stand alone without re-running the analysis.
type conversationDocument struct {
	ID        string                        `json:"id" yaml:"id"`
	Title     string                        `json:"title,omitempty" yaml:"title,omitempty"`
	CreatedAt string                        `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
	Category  string                        `json:"category" yaml:"category"`
	Saved     bool                          `json:"saved,omitempty" yaml:"saved,omitempty"`
	Notes     string                        `json:"notes,omitempty" yaml:"notes,omitempty"`
	Workflows []string                      `json:"workflows,omitempty" yaml:"workflows,omitempty"`
	Tools     []internal.ToolUsage          `json:"tools,omitempty" yaml:"tools,omitempty"`
	Metrics   *internal.ConversationMetrics `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Messages  []messageDocument             `json:"messages" yaml:"messages"`
}

// messageDocument is one message flattened for export: consolidated display
// text instead of the raw content fragments.
type messageDocument struct {
	Role      string   `json:"role" yaml:"role"`
	Timestamp string   `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	Content   string   `json:"content" yaml:"content"`
	Tools     []string `json:"tools,omitempty" yaml:"tools,omitempty"`
	TimedOut  bool     `json:"timedOut,omitempty" yaml:"timedOut,omitempty"`
}

// buildDocument flattens a conversation and its derived analytics.
func buildDocument(conv *internal.Conversation) conversationDocument {
	doc := conversationDocument{
		ID:       conv.ID,
		Title:    conv.Title,
		Category: internal.CategorizeOrDefault(conv.Messages),
		Saved:    conv.Saved,
		Notes:    conv.Notes,
		Tools:    internal.ExtractToolUsage([]*internal.Conversation{conv}),
		Metrics:  internal.ComputeMetrics(conv),
	}
	if !conv.CreatedAt.IsZero() {
		doc.CreatedAt = conv.CreatedAt.UTC().Format(time.RFC3339)
	}
	for workflow := range internal.ExtractWorkflows(conv.Messages) {
		doc.Workflows = append(doc.Workflows, workflow)
	}
	sort.Strings(doc.Workflows)

	sorted := conv.SortedMessages()
	timeouts := internal.DetectSessionTimeouts(conv.Messages)
	for i := range sorted {
		msg := &sorted[i]
		entry := messageDocument{
			Role:    msg.CanonicalRole(),
			Content: internal.ConsolidateContent(msg.Content).Text,
		}
		if ts := msg.EffectiveTimestamp(); !ts.IsZero() {
			entry.Timestamp = ts.UTC().Format(time.RFC3339)
		}
		for tool := range internal.MessageTools(msg) {
			entry.Tools = append(entry.Tools, tool)
		}
		sort.Strings(entry.Tools)
		if i < len(timeouts) {
			entry.TimedOut = timeouts[i]
		}
		doc.Messages = append(doc.Messages, entry)
	}
	return doc
}
