package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/tkrueger/chatlens/internal"
)

var (
	fetchFrom       string
	fetchTo         string
	fetchAttributes bool
	fetchAPIKey     string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [conversation-id]",
	Short: "Fetch conversations or thread ranges from the remote API",
	Long: `Fetch data from the chatbot backend.

With a conversation id, fetches that conversation (and caches it for
subsequent show commands). Without one, fetches all threads in the --from/--to
range through the range cache, so overlapping re-fetches only hit the
network for missing subranges.`,
	Args: cobra.MaximumNArgs(1),
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

		if fetchAPIKey != "" {
			if err := store.Set(internal.KeyAPIKey, fetchAPIKey); err != nil {
				return fmt.Errorf("failed to persist API key: %w", err)
			}
			internal.PrintSuccess(fmt.Sprintf("API key stored for %s", store.Environment()))
		}

		dataset, err := newDataset(cfg, store)
		if err != nil {
			return err
		}

		if len(args) == 1 {
			return fetchConversation(cmd.Context(), dataset, args[0])
		}
		return fetchThreadRange(cmd.Context(), dataset)
	},
}

func fetchConversation(ctx context.Context, dataset *internal.Dataset, id string) error {
	var conv *internal.Conversation
	var source internal.DataSource
	err := internal.ShowProgress(ctx, fmt.Sprintf("Fetching conversation %s", id), func() error {
		var fetchErr error
		conv, source, fetchErr = dataset.GetConversation(context.Background(), id)
		return fetchErr
	})
	if err != nil {
		return fmt.Errorf("failed to fetch conversation: %w", err)
	}

	internal.PrintSuccess(fmt.Sprintf("Fetched %s (%d messages, source: %s)", conv.DisplayTitle(), len(conv.Messages), source))
	fmt.Println(idStyle.Render("💡 View it with `chatlens show " + conv.ID + "`"))
	return nil
}

func fetchThreadRange(ctx context.Context, dataset *internal.Dataset) error {
	end := time.Now().UTC()
	start := end.Add(-24 * time.Hour)
	if fetchFrom != "" {
		t, err := parseDateFlag(fetchFrom, false)
		if err != nil {
			return fmt.Errorf("invalid --from: %w", err)
		}
		start = t
	}
	if fetchTo != "" {
		t, err := parseDateFlag(fetchTo, true)
		if err != nil {
			return fmt.Errorf("invalid --to: %w", err)
		}
		end = t
	}
	rng := internal.TimeRange{Start: start, End: end}

	var summaries []internal.ThreadSummary
	var source internal.DataSource
	err := internal.ShowProgress(ctx, fmt.Sprintf("Fetching threads %s - %s", start.Format("2006-01-02 15:04"), end.Format("2006-01-02 15:04")), func() error {
		var fetchErr error
		summaries, source, fetchErr = dataset.FetchThreadSummaries(context.Background(), rng)
		return fetchErr
	})
	if err != nil {
		return fmt.Errorf("failed to fetch threads: %w", err)
	}

	internal.PrintSuccess(fmt.Sprintf("Fetched %d thread(s) (source: %s)", len(summaries), source))

	if len(summaries) > 0 {
		w := tabwriter.NewWriter(lipgloss.DefaultRenderer().Output(), 0, 0, 3, ' ', 0)
		_, _ = fmt.Fprintln(w, titleStyle.Render("Thread")+"\t"+titleStyle.Render("Conversation")+"\t"+titleStyle.Render("Created")+"\t"+titleStyle.Render("Errors")+"\t")
		for _, s := range summaries {
			created := "—"
			if !s.CreatedAt.IsZero() {
				created = s.CreatedAt.UTC().Format("2006-01-02 15:04")
			}
			errMark := ""
			if s.HasError {
				errMark = "⚠"
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n", s.ID, s.ConversationID, dateStyle.Render(created), errMark)
		}
		_ = w.Flush()
	}

	if fetchAttributes && len(summaries) > 0 {
		ids := make([]string, 0, len(summaries))
		for _, s := range summaries {
			ids = append(ids, s.ID)
		}
		var bulk *internal.BulkAttributesResponse
		err := internal.ShowProgress(ctx, fmt.Sprintf("Processing attributes for %d thread(s)", len(ids)), func() error {
			var attrErr error
			bulk, attrErr = dataset.ProcessAttributesBulk(context.Background(), ids)
			return attrErr
		})
		if err != nil {
			return fmt.Errorf("failed to process attributes: %w", err)
		}
		for _, result := range bulk.Results {
			status := result.Status
			if status == "" {
				status = "ok"
			}
			fmt.Printf("  %s: %s (%d attribute(s))\n", result.ThreadID, status, len(result.Attributes))
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().StringVar(&fetchFrom, "from", "", "Range start (2006-01-02 or RFC3339, default 24h ago)")
	fetchCmd.Flags().StringVar(&fetchTo, "to", "", "Range end (2006-01-02 or RFC3339, default now)")
	fetchCmd.Flags().BoolVar(&fetchAttributes, "attributes", false, "Trigger bulk attribute processing for fetched threads")
	fetchCmd.Flags().StringVar(&fetchAPIKey, "api-key", "", "Store this API key for the active environment before fetching")
}
