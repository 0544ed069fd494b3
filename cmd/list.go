package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/tkrueger/chatlens/internal"
)

var (
	listCategory  string
	listSavedOnly bool
	listLimit     int
)

var (
	// Styles
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	dateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	categoryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135")).
			Italic(true)

	badgeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations",
	Long: `List all conversations from the uploaded data, with categories,
message counts and annotations.`,
	RunE: func(cmd *cobra.Command, args []string) error {
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

		convs, err := dataset.Conversations()
		if err != nil {
			return fmt.Errorf("failed to load conversations: %w", err)
		}

		if listSavedOnly {
			filtered := convs[:0]
			for _, conv := range convs {
				if conv.Saved {
					filtered = append(filtered, conv)
				}
			}
			convs = filtered
		}
		if listCategory != "" {
			filtered := convs[:0]
			for _, conv := range convs {
				if strings.EqualFold(internal.CategorizeOrDefault(conv.Messages), listCategory) {
					filtered = append(filtered, conv)
				}
			}
			convs = filtered
		}
		if listLimit > 0 && len(convs) > listLimit {
			convs = convs[:listLimit]
		}

		viewed, err := dataset.Annotations().ViewedSet()
		if err != nil {
			internal.LogWarn("Failed to load viewed set: %v", err)
			viewed = map[string]bool{}
		}

		displayConversations(convs, viewed)
		return nil
	},
}

func displayConversations(convs []*internal.Conversation, viewed map[string]bool) {
	if len(convs) == 0 {
		fmt.Println(headerStyle.Render("📋 No conversations found"))
		return
	}

	header := headerStyle.Render(fmt.Sprintf("📋 Found %d conversation(s)", len(convs)))
	fmt.Println(header)
	fmt.Println()

	// Use tabwriter for aligned columns with better spacing
	w := tabwriter.NewWriter(lipgloss.DefaultRenderer().Output(), 0, 0, 3, ' ', tabwriter.AlignRight)

	// Header row
	_, _ = fmt.Fprintln(w, titleStyle.Render("ID")+"\t"+titleStyle.Render("Title")+"\t"+titleStyle.Render("Category")+"\t"+titleStyle.Render("Messages")+"\t"+titleStyle.Render("Created")+"\t"+titleStyle.Render("Flags")+"\t")
	_, _ = fmt.Fprintln(w, strings.Repeat("─", 120))

	for _, conv := range convs {
		title := conv.DisplayTitle()

		// Truncate long titles but keep them readable
		if len(title) > 50 {
			title = title[:47] + "..."
		}
		titleColor := lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
		title = titleColor.Render(title)

		category := categoryStyle.Render(internal.CategorizeOrDefault(conv.Messages))

		msgCount := countStyle.Render(strconv.Itoa(len(conv.Messages)))

		created := dateStyle.Render("—")
		if !conv.CreatedAt.IsZero() {
			created = dateStyle.Render(formatRelativeDate(conv.CreatedAt.Time))
		}

		var flags []string
		if conv.Saved {
			flags = append(flags, "💾")
		}
		if conv.Notes != "" {
			flags = append(flags, "📝")
		}
		if !viewed[conv.ID] {
			flags = append(flags, badgeStyle.Render("NEW"))
		}

		// Show short ID (first 8 chars) for readability
		shortID := conv.ID
		if len(shortID) > 8 {
			shortID = shortID[:8]
		}
		id := idStyle.Render(shortID)

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t\n", id, title, category, msgCount, created, strings.Join(flags, " "))
	}

	_ = w.Flush()
	fmt.Println()
	fmt.Println(idStyle.Render("💡 Tip: Use the full ID (e.g., ") +
		lipgloss.NewStyle().Foreground(lipgloss.Color("62")).Render(convs[0].ID) +
		idStyle.Render(") with `chatlens show <id>`"))
}

// formatRelativeDate renders a timestamp compactly relative to now.
func formatRelativeDate(t time.Time) string {
	now := time.Now()
	diff := now.Sub(t)
	switch {
	case diff < 24*time.Hour:
		return t.Format("Today 15:04")
	case diff < 7*24*time.Hour:
		return t.Format("Mon 15:04")
	case diff < 365*24*time.Hour:
		return t.Format("Jan 02 15:04")
	default:
		return t.Format("2006-01-02")
	}
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringVar(&listCategory, "category", "", "Only show conversations with this category")
	listCmd.Flags().BoolVar(&listSavedOnly, "saved", false, "Only show saved conversations")
	listCmd.Flags().IntVar(&listLimit, "limit", 0, "Maximum number of conversations to show (0 = all)")
}
