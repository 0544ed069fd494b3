package internal

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// PayloadKind identifies which backend schema an uploaded JSON document
// matches.
type PayloadKind string

const (
	PayloadConversation   PayloadKind = "conversation"
	PayloadThreads        PayloadKind = "threads"
	PayloadAttributes     PayloadKind = "attributes"
	PayloadBulkAttributes PayloadKind = "bulk-attributes"
)

// DetectedPayload holds a successfully detected upload. Exactly one of the
// typed fields is populated, matching Kind.
type DetectedPayload struct {
	Kind         PayloadKind
	Conversation *Conversation
	Threads      *ThreadsResponse
	Attributes   *AttributesResponse
	Bulk         *BulkAttributesResponse
}

// Describe returns a short human-readable summary of the payload.
func (p *DetectedPayload) Describe() string {
	switch p.Kind {
	case PayloadConversation:
		return fmt.Sprintf("conversation %s (%d messages)", p.Conversation.ID, len(p.Conversation.Messages))
	case PayloadThreads:
		return fmt.Sprintf("thread response (%d threads)", len(p.Threads.Threads))
	case PayloadAttributes:
		return fmt.Sprintf("attributes for thread %s", p.Attributes.ThreadID)
	case PayloadBulkAttributes:
		return fmt.Sprintf("bulk attributes (%d results)", len(p.Bulk.Results))
	}
	return "unknown payload"
}

// DetectPayload determines which backend schema the raw JSON matches. There
// is no declared type tag, so detection is structural: the distinguishing
// top-level key decides the schema, checked in order of specificity
// ("threads", then "results", then "threadId", then conversation shape).
// name identifies the source file in error messages.
func DetectPayload(name string, data []byte) (*DetectedPayload, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, &SchemaError{File: name, Reason: "file is empty"}
	}
	if trimmed[0] != '{' {
		return nil, &SchemaError{File: name, Reason: "top-level JSON is not an object"}
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return nil, &SchemaError{File: name, Reason: fmt.Sprintf("not valid JSON: %v", err)}
	}

	switch {
	case hasKey(probe, "threads"):
		return detectThreads(name, trimmed, probe)
	case hasKey(probe, "results"):
		return detectBulkAttributes(name, trimmed)
	case hasKey(probe, "threadId"):
		return detectAttributes(name, trimmed)
	case hasKey(probe, "id") && hasKey(probe, "messages"):
		return detectConversation(name, trimmed, probe)
	}
	return nil, &SchemaError{File: name, Reason: "no known schema matches: expected a conversation, thread response, or attribute result"}
}

func hasKey(probe map[string]json.RawMessage, key string) bool {
	raw, ok := probe[key]
	return ok && string(bytes.TrimSpace(raw)) != "null"
}

func detectThreads(name string, data []byte, probe map[string]json.RawMessage) (*DetectedPayload, error) {
	if !looksLikeArray(probe["threads"]) {
		return nil, &SchemaError{File: name, Field: "threads", Reason: "must be an array of threads"}
	}
	var resp ThreadsResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &SchemaError{File: name, Field: "threads", Reason: fmt.Sprintf("failed to decode: %v", err)}
	}
	for i, t := range resp.Threads {
		if t.ID == "" {
			return nil, &SchemaError{File: name, Field: fmt.Sprintf("threads[%d].id", i), Reason: "thread id is required"}
		}
		if _, _, err := ParseThreadID(t.ID); err != nil {
			return nil, &SchemaError{File: name, Field: fmt.Sprintf("threads[%d].id", i), Reason: fmt.Sprintf("malformed thread id %q", t.ID)}
		}
	}
	return &DetectedPayload{Kind: PayloadThreads, Threads: &resp}, nil
}

func detectBulkAttributes(name string, data []byte) (*DetectedPayload, error) {
	var resp BulkAttributesResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &SchemaError{File: name, Field: "results", Reason: fmt.Sprintf("failed to decode: %v", err)}
	}
	for i, r := range resp.Results {
		if r.ThreadID == "" {
			return nil, &SchemaError{File: name, Field: fmt.Sprintf("results[%d].threadId", i), Reason: "thread id is required"}
		}
	}
	return &DetectedPayload{Kind: PayloadBulkAttributes, Bulk: &resp}, nil
}

func detectAttributes(name string, data []byte) (*DetectedPayload, error) {
	var resp AttributesResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &SchemaError{File: name, Field: "threadId", Reason: fmt.Sprintf("failed to decode: %v", err)}
	}
	if resp.ThreadID == "" {
		return nil, &SchemaError{File: name, Field: "threadId", Reason: "thread id is required"}
	}
	return &DetectedPayload{Kind: PayloadAttributes, Attributes: &resp}, nil
}

func detectConversation(name string, data []byte, probe map[string]json.RawMessage) (*DetectedPayload, error) {
	if !looksLikeArray(probe["messages"]) {
		return nil, &SchemaError{File: name, Field: "messages", Reason: "must be an array of messages"}
	}
	var conv Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, &SchemaError{File: name, Field: "messages", Reason: fmt.Sprintf("failed to decode: %v", err)}
	}
	if conv.ID == "" {
		return nil, &SchemaError{File: name, Field: "id", Reason: "conversation id is required"}
	}
	return &DetectedPayload{Kind: PayloadConversation, Conversation: &conv}, nil
}

func looksLikeArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}
