package cmd

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/tkrueger/chatlens/internal"
)

func TestShowCommand(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{
			name:    "show without conversation ID",
			args:    []string{"show"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rootCmd.SetArgs(tt.args)
			rootCmd.SetOut(&bytes.Buffer{})
			rootCmd.SetErr(&bytes.Buffer{})

			err := rootCmd.Execute()
			if (err != nil) != tt.wantErr {
				t.Errorf("showCmd.Execute() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestShowCommand_FlagParsing(t *testing.T) {
	t.Setenv("CHATLENS_STORE", filepath.Join(t.TempDir(), "chatlens.db"))

	tests := []struct {
		name string
		args []string
	}{
		{
			name: "show with limit flag",
			args: []string{"show", "conv-missing", "--limit", "10"},
		},
		{
			name: "show with since flag",
			args: []string{"show", "conv-missing", "--since", "2024-01-01T00:00:00Z"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rootCmd.SetArgs(tt.args)
			rootCmd.SetOut(&bytes.Buffer{})
			rootCmd.SetErr(&bytes.Buffer{})

			// Flags must parse; the lookup itself fails against the empty store
			_ = rootCmd.Execute()
		})
	}

	limit = 0
	since = ""
}

func TestDisplayConversationHeader(t *testing.T) {
	saved := internal.CreateTestConversation("conv-saved", 2)
	saved.Saved = true
	saved.Notes = "promising lead"

	tests := []struct {
		name   string
		conv   *internal.Conversation
		source internal.DataSource
	}{
		{
			name:   "nil conversation",
			conv:   nil,
			source: internal.SourceLocal,
		},
		{
			name:   "conversation with all fields",
			conv:   internal.CreateTestConversation("conv-1", 4),
			source: internal.SourceRemote,
		},
		{
			name:   "saved conversation with notes",
			conv:   saved,
			source: internal.SourceLocal,
		},
		{
			name:   "conversation without created date",
			conv:   &internal.Conversation{ID: "conv-2", Title: "Untimed"},
			source: internal.SourceLocal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Test that function doesn't panic
			displayConversationHeader(tt.conv, tt.source)
		})
	}
}

func TestDisplayMessage(t *testing.T) {
	sentAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		index    int
		msg      internal.Message
		total    int
		timedOut bool
	}{
		{
			name:  "user message",
			index: 1,
			msg:   internal.CreateTestMessage("m1", internal.RoleUser, "Hello, world!", sentAt),
			total: 2,
		},
		{
			name:  "assistant message",
			index: 2,
			msg:   internal.CreateTestMessage("m2", internal.RoleAssistant, "Hi there!", sentAt),
			total: 2,
		},
		{
			name:  "empty message",
			index: 1,
			msg:   internal.CreateTestMessage("m1", internal.RoleUser, "", sentAt),
			total: 1,
		},
		{
			name:  "message without timestamp",
			index: 1,
			msg:   internal.Message{ID: "m1", Role: internal.RoleUser},
			total: 1,
		},
		{
			name:  "operational message",
			index: 1,
			msg:   internal.CreateTestMessage("m1", "status", "workflow-travel-agent", sentAt),
			total: 1,
		},
		{
			name:     "message followed by session timeout",
			index:    1,
			msg:      internal.CreateTestMessage("m1", internal.RoleUser, "anyone there?", sentAt),
			total:    2,
			timedOut: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Test that function doesn't panic
			displayMessage(tt.index, tt.msg, tt.total, tt.timedOut)
		})
	}
}

func TestWrapText(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		width       int
		wantContain string
	}{
		{
			name:        "short text",
			text:        "Hello world",
			width:       80,
			wantContain: "Hello world",
		},
		{
			name:        "long text",
			text:        "This is a very long line of text that should be wrapped when it exceeds the specified width limit",
			width:       20,
			wantContain: "This is a very",
		},
		{
			name:        "text with newlines",
			text:        "Line 1\nLine 2\nLine 3",
			width:       80,
			wantContain: "Line 1",
		},
		{
			name:        "empty text",
			text:        "",
			width:       80,
			wantContain: "",
		},
		{
			name:        "single long word",
			text:        "supercalifragilisticexpialidocious",
			width:       10,
			wantContain: "supercalifragilisticexpialidocious",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := wrapText(tt.text, tt.width)
			if tt.wantContain != "" && len(result) == 0 && len(tt.text) > 0 {
				t.Errorf("wrapText() returned empty string for non-empty input")
			}
			// Just verify it doesn't panic and returns something reasonable
			_ = result
		})
	}
}
