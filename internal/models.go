package internal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Canonical message roles. The backend emits "status" for some operational
// messages; ingestion folds it into "system".
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleStatus    = "status"
)

// CanonicalRole normalizes a raw role string: "status" becomes "system",
// everything else is lowercased and trimmed.
func CanonicalRole(role string) string {
	r := strings.ToLower(strings.TrimSpace(role))
	if r == RoleStatus {
		return RoleSystem
	}
	return r
}

// Timestamp accepts the two timestamp shapes the backend emits: RFC3339
// strings and unix-millisecond numbers. The zero value means absent or
// unparseable.
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps a time.Time.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// UnmarshalJSON tolerates strings, numbers and null. Unparseable values
// decode to the zero timestamp rather than failing the whole document.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		t.Time = time.Time{}
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			t.Time = time.Time{}
			return nil
		}
		t.Time = ParseTimestamp(s)
		return nil
	}
	var num float64
	if err := json.Unmarshal(trimmed, &num); err != nil {
		t.Time = time.Time{}
		return nil
	}
	t.Time = timeFromEpoch(int64(num))
	return nil
}

// MarshalJSON writes RFC3339 with sub-second precision preserved.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// ParseTimestamp parses the timestamp string shapes seen in backend payloads.
// Returns the zero time when nothing matches.
func ParseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return timeFromEpoch(n)
	}
	return time.Time{}
}

// timeFromEpoch interprets an integer as unix milliseconds, or unix seconds
// for values too small to be a millisecond count.
func timeFromEpoch(n int64) time.Time {
	if n <= 0 {
		return time.Time{}
	}
	if n < 1_000_000_000_000 {
		return time.Unix(n, 0).UTC()
	}
	return time.UnixMilli(n).UTC()
}

// Message is a single exchange turn as returned by the conversation API.
// Timestamp fields vary with payload age, so consumers go through
// EffectiveTimestamp/OrderTimestamp instead of reading a field directly.
type Message struct {
	ID              string            `json:"id,omitempty"`
	Role            string            `json:"role"`
	Content         ContentList       `json:"content,omitempty"`
	SentAt          Timestamp         `json:"sentAt,omitempty"`
	CreatedAt       Timestamp         `json:"createdAt,omitempty"`
	CreatedAtLegacy Timestamp         `json:"created_at,omitempty"`
	ToolCalls       []MessageToolCall `json:"tool_calls,omitempty"`
}

// CanonicalRole returns the message role with "status" folded into "system".
func (m *Message) CanonicalRole() string {
	return CanonicalRole(m.Role)
}

// IsOperational reports whether the message is a system/status turn.
func (m *Message) IsOperational() bool {
	return m.CanonicalRole() == RoleSystem
}

// EffectiveTimestamp returns the first populated timestamp in the order the
// backend is known to fill them: created_at, createdAt, sentAt.
func (m *Message) EffectiveTimestamp() time.Time {
	if !m.CreatedAtLegacy.IsZero() {
		return m.CreatedAtLegacy.Time
	}
	if !m.CreatedAt.IsZero() {
		return m.CreatedAt.Time
	}
	return m.SentAt.Time
}

// OrderTimestamp returns the timestamp used for chronological sorting:
// sentAt, falling back to createdAt, then created_at.
func (m *Message) OrderTimestamp() time.Time {
	if !m.SentAt.IsZero() {
		return m.SentAt.Time
	}
	if !m.CreatedAt.IsZero() {
		return m.CreatedAt.Time
	}
	return m.CreatedAtLegacy.Time
}

// SortMessagesChronological returns a copy of msgs in ascending order of
// OrderTimestamp. Messages without a timestamp sort after timestamped ones;
// ties keep their original order.
func SortMessagesChronological(msgs []Message) []Message {
	sorted := make([]Message, len(msgs))
	copy(sorted, msgs)
	sort.SliceStable(sorted, func(i, j int) bool {
		ti, tj := sorted[i].OrderTimestamp(), sorted[j].OrderTimestamp()
		if ti.IsZero() {
			return false
		}
		if tj.IsZero() {
			return true
		}
		return ti.Before(tj)
	})
	return sorted
}

// ContentList is a message's content sequence. Older payloads send a bare
// string for single-fragment messages; it decodes as one text item.
type ContentList []MessageContent

// UnmarshalJSON accepts an array of content items, a bare string, or null.
func (c *ContentList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		*c = nil
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*c = ContentList{{Kind: ContentKindText, Text: s}}
		return nil
	}
	var items []MessageContent
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return err
	}
	*c = items
	return nil
}

// Content kinds observed in backend payloads. Unknown kinds are kept and
// rendered generically, never dropped.
const (
	ContentKindText     = "text"
	ContentKindUI       = "ui"
	ContentKindLinkout  = "linkout"
	ContentKindToolUse  = "tool_use"
	ContentKindToolCall = "tool_call"
)

// MessageContent is one item of a message's content sequence. The backend is
// loosely typed: the same logical field appears under several names depending
// on payload age, so every variant is kept and resolved via accessors.
type MessageContent struct {
	Kind         string          `json:"kind,omitempty"`
	Type         string          `json:"type,omitempty"`
	Text         string          `json:"text,omitempty"`
	Content      string          `json:"content,omitempty"`
	Name         string          `json:"name,omitempty"`
	ToolName     string          `json:"tool_name,omitempty"`
	URL          string          `json:"url,omitempty"`
	UI           *UIDescriptor   `json:"ui,omitempty"`
	ToolUse      *NamedCall      `json:"tool_use,omitempty"`
	ToolCall     *NamedCall      `json:"tool_call,omitempty"`
	Tool         *NamedCall      `json:"tool,omitempty"`
	FunctionCall *NamedCall      `json:"function_call,omitempty"`
	Input        json.RawMessage `json:"input,omitempty"`
}

// EffectiveKind resolves the item's kind: the explicit kind field, then the
// type field, then a structural guess from whichever payload field is set.
func (c *MessageContent) EffectiveKind() string {
	if c.Kind != "" {
		return c.Kind
	}
	if c.Type != "" {
		return c.Type
	}
	switch {
	case c.ToolUse != nil:
		return ContentKindToolUse
	case c.ToolCall != nil:
		return ContentKindToolCall
	case c.UI != nil:
		return ContentKindUI
	case c.URL != "":
		return ContentKindLinkout
	case c.Text != "" || c.Content != "":
		return ContentKindText
	}
	return ""
}

// IsText reports whether the item contributes to the message's display text.
func (c *MessageContent) IsText() bool {
	return c.EffectiveKind() == ContentKindText
}

// TextValue returns the populated text field; payloads fill either text or
// content, so both are checked.
func (c *MessageContent) TextValue() string {
	if c.Text != "" {
		return c.Text
	}
	return c.Content
}

// UIDescriptor describes an interactive UI component the bot pushed into the
// conversation.
type UIDescriptor struct {
	Namespace    string          `json:"namespace,omitempty"`
	Identifier   string          `json:"identifier,omitempty"`
	Interactive  bool            `json:"interactive,omitempty"`
	Final        bool            `json:"final,omitempty"`
	State        json.RawMessage `json:"state,omitempty"`
	InitialState json.RawMessage `json:"initialState,omitempty"`
}

// NamedCall is the common {name, input} shape shared by the tool-invocation
// field variants.
type NamedCall struct {
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// MessageToolCall is the message-level tool call entry carried by some
// assistant payloads.
type MessageToolCall struct {
	ID       string       `json:"id,omitempty"`
	Type     string       `json:"type,omitempty"`
	Function FunctionStub `json:"function"`
}

// FunctionStub carries the function name and raw argument payload of a
// message-level tool call.
type FunctionStub struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Conversation is the top-level unit of display and analysis. Saved and
// Notes are client-side annotations merged in at read time; they are never
// written back to the source payload.
type Conversation struct {
	ID            string    `json:"id"`
	Title         string    `json:"title,omitempty"`
	CreatedAt     Timestamp `json:"createdAt,omitempty"`
	LastMessageAt Timestamp `json:"lastMessageAt,omitempty"`
	Messages      []Message `json:"messages"`
	ThreadIDs     []string  `json:"threadIds,omitempty"`

	Saved bool   `json:"saved,omitempty"`
	Notes string `json:"notes,omitempty"`
}

// DisplayTitle returns the title, falling back to the id.
func (c *Conversation) DisplayTitle() string {
	if c.Title != "" {
		return c.Title
	}
	if c.ID != "" {
		return c.ID
	}
	return "Untitled"
}

// SortedMessages returns the conversation's messages in chronological order.
func (c *Conversation) SortedMessages() []Message {
	return SortMessagesChronological(c.Messages)
}

// FirstUserMessage returns the chronologically first user-role message, or
// nil if there is none.
func (c *Conversation) FirstUserMessage() *Message {
	return FirstMessageWithRole(c.Messages, RoleUser)
}

// FirstMessageWithRole returns the chronologically first message with the
// given canonical role.
func FirstMessageWithRole(msgs []Message, role string) *Message {
	sorted := SortMessagesChronological(msgs)
	for i := range sorted {
		if sorted[i].CanonicalRole() == role {
			return &sorted[i]
		}
	}
	return nil
}

// Thread is a namespaced sub-grouping of a conversation's messages. Its id
// has the composite form "<namespace>/<uuid>".
type Thread struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId,omitempty"`
	CreatedAt      Timestamp `json:"createdAt,omitempty"`
	Messages       []Message `json:"messages,omitempty"`
}

// ParseThreadID splits a composite thread id into its namespace and uuid
// parts, validating the uuid.
func ParseThreadID(id string) (string, uuid.UUID, error) {
	idx := strings.LastIndex(id, "/")
	if idx <= 0 || idx == len(id)-1 {
		return "", uuid.Nil, fmt.Errorf("invalid thread id %q: expected <namespace>/<uuid>", id)
	}
	u, err := uuid.Parse(id[idx+1:])
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("invalid thread id %q: %w", id, err)
	}
	return id[:idx], u, nil
}

// ThreadSummary is the compact cache representation of a thread: enough to
// rebuild dashboard aggregates without holding full message payloads.
type ThreadSummary struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId,omitempty"`
	CreatedAt      Timestamp `json:"createdAt,omitempty"`
	UIEventCount   int       `json:"uiEventCount"`
	LinkoutCount   int       `json:"linkoutCount"`
	HasError       bool      `json:"hasError"`
}

// SummarizeThread compacts a thread into its cache summary form.
func SummarizeThread(t Thread) ThreadSummary {
	s := ThreadSummary{
		ID:             t.ID,
		ConversationID: t.ConversationID,
		CreatedAt:      t.CreatedAt,
	}
	for _, msg := range t.Messages {
		for i := range msg.Content {
			switch msg.Content[i].EffectiveKind() {
			case ContentKindUI:
				s.UIEventCount++
			case ContentKindLinkout:
				s.LinkoutCount++
			}
		}
	}
	s.HasError = HasErrorIndicators(t.Messages)
	return s
}

// SummarizeThreads compacts a batch of threads.
func SummarizeThreads(threads []Thread) []ThreadSummary {
	summaries := make([]ThreadSummary, 0, len(threads))
	for _, t := range threads {
		summaries = append(summaries, SummarizeThread(t))
	}
	return summaries
}

// ThreadsResponse is the POST /thread response envelope.
type ThreadsResponse struct {
	Threads []Thread `json:"threads"`
}

// AttributesResponse is the attribute-processing result for one thread.
type AttributesResponse struct {
	ThreadID       string                 `json:"threadId"`
	ConversationID string                 `json:"conversationId,omitempty"`
	Status         string                 `json:"status,omitempty"`
	Attributes     map[string]interface{} `json:"attributes,omitempty"`
}

// BulkAttributesResponse wraps the per-thread results of a bulk attribute
// run.
type BulkAttributesResponse struct {
	Results []AttributesResponse `json:"results"`
}
