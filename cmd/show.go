package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/tkrueger/chatlens/internal"
)

var (
	limit int
	since string
)

var (
	// Styles for show command
	convHeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")).
			Padding(0, 1).
			MarginBottom(1)

	convMetaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			MarginBottom(1)

	userMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("39")).
				Bold(true).
				Padding(0, 1)

	assistantMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("135")).
				Bold(true).
				Padding(0, 1)

	messageContentStyle = lipgloss.NewStyle().
				Padding(0, 2).
				MarginBottom(1)

	timestampStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	timeoutStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Italic(true).
			Padding(0, 2)

	toolLineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Padding(0, 2)
)

// showCmd represents the show command
var showCmd = &cobra.Command{
	Use:   "show <conversation-id>",
	Short: "Show messages for a specific conversation",
	Long: `Display a conversation with its category, tool calls, session-timeout
markers and annotations. Reads uploaded data when present, the remote API
otherwise.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conversationID := args[0]

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		dataset, err := newDataset(cfg, store)
		if err != nil {
			return err
		}

		conv, source, err := dataset.GetConversation(context.Background(), conversationID)
		if err != nil {
			return fmt.Errorf("failed to load conversation: %w", err)
		}

		if err := dataset.Annotations().MarkViewed(conv.ID); err != nil {
			internal.LogWarn("Failed to mark conversation viewed: %v", err)
		}

		displayConversationHeader(conv, source)

		messages := conv.SortedMessages()
		timeouts := internal.DetectSessionTimeouts(conv.Messages)

		// Filter by timestamp if --since is provided
		if since != "" {
			sinceTime, err := time.Parse(time.RFC3339, since)
			if err != nil {
				return fmt.Errorf("invalid --since timestamp format (expected RFC3339): %w", err)
			}
			filteredMsgs := make([]internal.Message, 0, len(messages))
			filteredTimeouts := make([]bool, 0, len(timeouts))
			for i, msg := range messages {
				ts := msg.EffectiveTimestamp()
				if !ts.IsZero() && !ts.Before(sinceTime) {
					filteredMsgs = append(filteredMsgs, msg)
					filteredTimeouts = append(filteredTimeouts, timeouts[i])
				}
			}
			messages = filteredMsgs
			timeouts = filteredTimeouts
		}

		// Apply limit if specified
		totalFiltered := len(messages)
		if limit > 0 && limit < len(messages) {
			messages = messages[:limit]
			timeouts = timeouts[:limit]
		}

		// Display messages
		for i, msg := range messages {
			displayMessage(i+1, msg, totalFiltered, timeouts[i])
		}

		// Show remaining count if limit was applied
		if limit > 0 && limit < totalFiltered {
			remaining := totalFiltered - limit
			fmt.Println()
			fmt.Println(lipgloss.NewStyle().
				Foreground(lipgloss.Color("243")).
				Italic(true).
				Render(fmt.Sprintf("... (%d more message(s))", remaining)))
		}

		return nil
	},
}

func displayConversationHeader(conv *internal.Conversation, source internal.DataSource) {
	if conv == nil {
		return
	}
	header := convHeaderStyle.Render(fmt.Sprintf("💬 %s", conv.DisplayTitle()))
	fmt.Println(header)

	// Create metadata line
	var metaParts []string
	if !conv.CreatedAt.IsZero() {
		metaParts = append(metaParts, fmt.Sprintf("Created: %s", conv.CreatedAt.UTC().Format(time.RFC3339)))
	}
	metaParts = append(metaParts, fmt.Sprintf("Messages: %d", len(conv.Messages)))
	metaParts = append(metaParts, fmt.Sprintf("Category: %s", internal.CategorizeOrDefault(conv.Messages)))
	metaParts = append(metaParts, fmt.Sprintf("Source: %s", source))
	if conv.Saved {
		metaParts = append(metaParts, "💾 saved")
	}

	meta := convMetaStyle.Render(strings.Join(metaParts, " • "))
	fmt.Println(meta)

	if conv.Notes != "" {
		fmt.Println(convMetaStyle.Render("📝 " + conv.Notes))
	}
	if internal.HasErrorIndicators(conv.Messages) {
		fmt.Println(timeoutStyle.Render("⚠ operational messages report errors"))
	}

	fmt.Println()
}

func displayMessage(index int, msg internal.Message, total int, timedOut bool) {
	var roleStyle lipgloss.Style
	var roleLabel string

	switch msg.CanonicalRole() {
	case internal.RoleUser:
		roleStyle = userMessageStyle
		roleLabel = "👤 User"
	case internal.RoleAssistant:
		roleStyle = assistantMessageStyle
		roleLabel = "🤖 Assistant"
	default:
		roleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
		roleLabel = fmt.Sprintf("🔧 %s", msg.CanonicalRole())
	}

	// Message header
	header := roleStyle.Render(roleLabel) + " " + timestampStyle.Render(fmt.Sprintf("[%d/%d]", index, total))
	if ts := msg.EffectiveTimestamp(); !ts.IsZero() {
		header += " " + timestampStyle.Render(ts.Format("15:04:05"))
	}

	fmt.Println(header)

	// Message content
	consolidated := internal.ConsolidateContent(msg.Content)
	content := strings.TrimSpace(consolidated.Text)
	if content != "" {
		// Wrap long lines
		content = wrapText(content, 80)
		fmt.Println(messageContentStyle.Render(content))
	} else {
		fmt.Println(messageContentStyle.Foreground(lipgloss.Color("240")).Render("(empty message)"))
	}

	if len(consolidated.OtherContents) > 0 {
		var kinds []string
		for _, item := range consolidated.OtherContents {
			kind := item.EffectiveKind()
			if kind == "" {
				kind = "unknown"
			}
			kinds = append(kinds, kind)
		}
		fmt.Println(timestampStyle.Render("  [" + strings.Join(kinds, ", ") + "]"))
	}

	tools := internal.MessageTools(&msg)
	if len(tools) > 0 {
		names := make([]string, 0, len(tools))
		for name := range tools {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Println(toolLineStyle.Render("🛠 " + strings.Join(names, ", ")))
	}

	if timedOut {
		fmt.Println(timeoutStyle.Render("⏱ session timeout after this message"))
	}

	fmt.Println()
}

func wrapText(text string, width int) string {
	lines := strings.Split(text, "\n")
	var wrapped []string

	for _, line := range lines {
		if len(line) <= width {
			wrapped = append(wrapped, line)
			continue
		}

		// Wrap long lines
		words := strings.Fields(line)
		currentLine := ""
		for _, word := range words {
			if len(currentLine)+len(word)+1 > width {
				if currentLine != "" {
					wrapped = append(wrapped, currentLine)
					currentLine = word
				} else {
					wrapped = append(wrapped, word)
					currentLine = ""
				}
			} else {
				if currentLine == "" {
					currentLine = word
				} else {
					currentLine += " " + word
				}
			}
		}
		if currentLine != "" {
			wrapped = append(wrapped, currentLine)
		}
	}

	return strings.Join(wrapped, "\n")
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().IntVarP(&limit, "limit", "n", 0, "Limit number of messages to show")
	showCmd.Flags().StringVar(&since, "since", "", "Show messages since timestamp (ISO8601)")
}
