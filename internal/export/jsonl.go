package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/tkrueger/chatlens/internal"
)

// JSONLExporter exports conversations in JSONL format (one message per line)
type JSONLExporter struct{}

// Export exports a conversation to JSONL format
func (e *JSONLExporter) Export(conv *internal.Conversation, w io.Writer) error {
	enc := json.NewEncoder(w)

	doc := buildDocument(conv)
	for _, msg := range doc.Messages {
		obj := map[string]interface{}{
			"conversationId": doc.ID,
			"role":           msg.Role,
			"content":        msg.Content,
		}
		if msg.Timestamp != "" {
			obj["timestamp"] = msg.Timestamp
		}
		if len(msg.Tools) > 0 {
			obj["tools"] = msg.Tools
		}

		// Encode to single line
		if err := enc.Encode(obj); err != nil {
			return fmt.Errorf("failed to encode message: %w", err)
		}
	}

	return nil
}

// Extension returns the file extension for this format
func (e *JSONLExporter) Extension() string {
	return "jsonl"
}
