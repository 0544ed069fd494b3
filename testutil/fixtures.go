package testutil

import (
	"testing"
	"time"
)

// MessageJSON builds one message object for a payload fixture. The content is
// a single text item, the shape the backend sends for plain turns.
func MessageJSON(id, role, text string, sentAt time.Time) map[string]interface{} {
	msg := map[string]interface{}{
		"id":      id,
		"role":    role,
		"content": []map[string]interface{}{{"kind": "text", "text": text}},
	}
	if !sentAt.IsZero() {
		msg["sentAt"] = sentAt.UTC().Format(time.RFC3339)
	}
	return msg
}

// ConversationJSON builds a conversation payload as the backend serves it.
func ConversationJSON(t *testing.T, id, title string, messages ...map[string]interface{}) []byte {
	t.Helper()
	if messages == nil {
		messages = []map[string]interface{}{}
	}
	return JSONMarshal(t, map[string]interface{}{
		"id":       id,
		"title":    title,
		"messages": messages,
	})
}

// ThreadJSON builds one thread object for a thread-response fixture.
func ThreadJSON(id, conversationID string, createdAt time.Time, messages ...map[string]interface{}) map[string]interface{} {
	thread := map[string]interface{}{
		"id": id,
	}
	if conversationID != "" {
		thread["conversationId"] = conversationID
	}
	if !createdAt.IsZero() {
		thread["createdAt"] = createdAt.UTC().Format(time.RFC3339)
	}
	if len(messages) > 0 {
		thread["messages"] = messages
	}
	return thread
}

// ThreadsJSON builds a thread-response payload.
func ThreadsJSON(t *testing.T, threads ...map[string]interface{}) []byte {
	t.Helper()
	if threads == nil {
		threads = []map[string]interface{}{}
	}
	return JSONMarshal(t, map[string]interface{}{"threads": threads})
}

// AttributesJSON builds an attribute-processing result payload.
func AttributesJSON(t *testing.T, threadID, status string, attrs map[string]interface{}) []byte {
	t.Helper()
	payload := map[string]interface{}{"threadId": threadID}
	if status != "" {
		payload["status"] = status
	}
	if len(attrs) > 0 {
		payload["attributes"] = attrs
	}
	return JSONMarshal(t, payload)
}

// AttributeResultJSON builds one result object for a bulk-attributes fixture.
func AttributeResultJSON(threadID, status string, attrs map[string]interface{}) map[string]interface{} {
	result := map[string]interface{}{"threadId": threadID}
	if status != "" {
		result["status"] = status
	}
	if len(attrs) > 0 {
		result["attributes"] = attrs
	}
	return result
}

// BulkAttributesJSON builds a bulk attribute-processing payload.
func BulkAttributesJSON(t *testing.T, results ...map[string]interface{}) []byte {
	t.Helper()
	if results == nil {
		results = []map[string]interface{}{}
	}
	return JSONMarshal(t, map[string]interface{}{"results": results})
}

// ThreadID builds a composite thread id in the namespace/uuid form the
// backend uses.
func ThreadID(namespace string) string {
	return namespace + "/a1b2c3d4-e5f6-4a5b-8c7d-9e0f1a2b3c4d"
}
