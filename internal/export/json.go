package export

import (
	"encoding/json"
	"io"

	"github.com/tkrueger/chatlens/internal"
)

// JSONExporter exports conversations in JSON format (pretty-printed)
type JSONExporter struct{}

// Export exports a conversation to JSON format
func (e *JSONExporter) Export(conv *internal.Conversation, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(buildDocument(conv))
}

// Extension returns the file extension for this format
func (e *JSONExporter) Extension() string {
	return "json"
}
