package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/tkrueger/chatlens/internal"
)

var cacheClear bool

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the fetch caches",
	Long: `Show the live thread-range and conversation cache contents for the
active environment, or clear them with --clear. Expired entries are purged
automatically and never shown.`,
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

		threadCache := internal.NewThreadRangeCache(store)
		convCache := internal.NewConversationCache(store)

		if cacheClear {
			if err := threadCache.Clear(); err != nil {
				return fmt.Errorf("failed to clear thread cache: %w", err)
			}
			if err := convCache.Clear(); err != nil {
				return fmt.Errorf("failed to clear conversation cache: %w", err)
			}
			internal.PrintSuccess("Caches cleared")
			return nil
		}

		entries := threadCache.Entries()
		fmt.Println(headerStyle.Render(fmt.Sprintf("🗃 Thread cache: %d live range(s)", len(entries))))
		if len(entries) > 0 {
			w := tabwriter.NewWriter(lipgloss.DefaultRenderer().Output(), 0, 0, 3, ' ', 0)
			_, _ = fmt.Fprintln(w, titleStyle.Render("Range")+"\t"+titleStyle.Render("Threads")+"\t"+titleStyle.Render("Fetched")+"\t"+titleStyle.Render("Expires")+"\t")
			for _, entry := range entries {
				rangeLabel := fmt.Sprintf("%s - %s",
					entry.Start.UTC().Format("2006-01-02 15:04"),
					entry.End.UTC().Format("2006-01-02 15:04"))
				_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%s\t\n",
					rangeLabel,
					len(entry.Summaries),
					dateStyle.Render(entry.FetchedAt.UTC().Format("15:04:05")),
					dateStyle.Render(entry.ExpiresAt.UTC().Format("15:04:05")))
			}
			_ = w.Flush()
		}
		fmt.Println()

		fmt.Println(headerStyle.Render(fmt.Sprintf("💬 Conversation cache: %d cached conversation(s)", convCache.Size())))

		total, err := store.TotalBytes()
		if err != nil {
			internal.LogWarn("Failed to read store size: %v", err)
		} else {
			fmt.Println(dateStyle.Render(fmt.Sprintf("Store size: %d bytes (environment: %s)", total, store.Environment())))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.Flags().BoolVar(&cacheClear, "clear", false, "Clear both caches")
}
