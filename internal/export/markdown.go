package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/tkrueger/chatlens/internal"
)

// MarkdownExporter exports conversations in Markdown format
type MarkdownExporter struct{}

// Export exports a conversation to Markdown format
func (e *MarkdownExporter) Export(conv *internal.Conversation, w io.Writer) error {
	doc := buildDocument(conv)

	// Header
	title := doc.Title
	if title == "" {
		title = doc.ID
	}
	_, _ = fmt.Fprintf(w, "# %s\n\n", title)

	_, _ = fmt.Fprintf(w, "**ID:** %s  \n", doc.ID)
	if doc.CreatedAt != "" {
		_, _ = fmt.Fprintf(w, "**Created:** %s  \n", doc.CreatedAt)
	}
	_, _ = fmt.Fprintf(w, "**Category:** %s  \n", doc.Category)
	_, _ = fmt.Fprintf(w, "**Messages:** %d\n\n", len(doc.Messages))

	if doc.Notes != "" {
		_, _ = fmt.Fprintf(w, "**Notes:** %s\n\n", doc.Notes)
	}
	if len(doc.Workflows) > 0 {
		_, _ = fmt.Fprintf(w, "**Workflows:** %s\n\n", strings.Join(doc.Workflows, ", "))
	}
	if len(doc.Tools) > 0 {
		_, _ = fmt.Fprintf(w, "## Tools\n\n")
		for _, tool := range doc.Tools {
			_, _ = fmt.Fprintf(w, "- `%s` × %d\n", tool.Name, tool.Count)
		}
		_, _ = fmt.Fprintf(w, "\n")
	}
	if doc.Metrics != nil {
		_, _ = fmt.Fprintf(w, "## Metrics\n\n")
		_, _ = fmt.Fprintf(w, "- Duration: %.2f minutes\n", doc.Metrics.DurationMinutes)
		if doc.Metrics.TimeToFirstResponseSeconds > 0 {
			_, _ = fmt.Fprintf(w, "- Time to first response: %.2f seconds\n", doc.Metrics.TimeToFirstResponseSeconds)
		}
		_, _ = fmt.Fprintf(w, "- User messages: %d\n", doc.Metrics.UserMessages)
		_, _ = fmt.Fprintf(w, "- Assistant messages: %d\n\n", doc.Metrics.AssistantMessages)
	}

	_, _ = fmt.Fprintf(w, "---\n\n")
	_, _ = fmt.Fprintf(w, "## Messages\n\n")

	// Messages
	for i, msg := range doc.Messages {
		timestamp := ""
		if msg.Timestamp != "" {
			timestamp = fmt.Sprintf(" (%s)", msg.Timestamp)
		}

		// Escape markdown in content if needed
		content := escapeMarkdown(msg.Content)

		_, _ = fmt.Fprintf(w, "**%s:**%s\n\n%s\n\n", msg.Role, timestamp, content)

		if msg.TimedOut {
			_, _ = fmt.Fprintf(w, "*[session timeout]*\n\n")
		}

		// Add horizontal rule after each message (except the last one)
		if i < len(doc.Messages)-1 {
			_, _ = fmt.Fprintf(w, "---\n\n")
		}
	}

	return nil
}

// escapeMarkdown escapes markdown special characters
func escapeMarkdown(text string) string {
	// Basic escaping - preserve code blocks
	lines := strings.Split(text, "\n")
	var result []string
	inCodeBlock := false

	for _, line := range lines {
		if strings.HasPrefix(line, "```") {
			inCodeBlock = !inCodeBlock
			result = append(result, line)
		} else if inCodeBlock {
			result = append(result, line)
		} else {
			// Escape markdown syntax outside code blocks
			line = strings.ReplaceAll(line, "**", "\\*\\*")
			line = strings.ReplaceAll(line, "__", "\\_\\_")
			result = append(result, line)
		}
	}

	return strings.Join(result, "\n")
}

// Extension returns the file extension for this format
func (e *MarkdownExporter) Extension() string {
	return "md"
}
