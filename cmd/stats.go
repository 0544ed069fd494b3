package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/tkrueger/chatlens/internal"
)

var (
	statsFrom   string
	statsTo     string
	statsJSON   bool
	statsHourly bool
)

var (
	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	barStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	rateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")).
			Bold(true)
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate statistics for a date range",
	Long: `Compute usage statistics over a date range: tool and workflow
frequency, response latency, error rates, conversion rates, and per-day or
per-hour conversation histograms.

Reads uploaded data when present; otherwise fetches thread summaries for
the range from the remote API (served from cache when fresh).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		start, end, err := resolveStatsRange()
		if err != nil {
			return err
		}

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

		source, err := dataset.Source()
		if err != nil {
			return err
		}

		var convs []*internal.Conversation
		var summaries []internal.ThreadSummary
		if source == internal.SourceLocal {
			convs, err = dataset.Conversations()
			if err != nil {
				return err
			}
			data, err := dataset.Importer().LoadUploadedData()
			if err != nil {
				return err
			}
			summaries = internal.SummarizeThreads(data.Threads)
		} else {
			rng := internal.TimeRange{Start: start, End: end}
			err = internal.ShowProgress(cmd.Context(), fmt.Sprintf("Fetching threads %s - %s", start.Format("2006-01-02"), end.Format("2006-01-02")), func() error {
				var fetchErr error
				summaries, _, fetchErr = dataset.FetchThreadSummaries(context.Background(), rng)
				return fetchErr
			})
			if err != nil {
				return fmt.Errorf("failed to fetch threads: %w", err)
			}
		}

		stats := internal.ComputeDashboardStats(convs, summaries, start, end)

		if statsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		}

		displayStats(stats, source)
		return nil
	},
}

// resolveStatsRange parses --from/--to, defaulting to the trailing 7 days.
func resolveStatsRange() (time.Time, time.Time, error) {
	end := time.Now().UTC()
	start := end.Add(-7 * 24 * time.Hour)

	if statsFrom != "" {
		t, err := parseDateFlag(statsFrom, false)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --from: %w", err)
		}
		start = t
	}
	if statsTo != "" {
		t, err := parseDateFlag(statsTo, true)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --to: %w", err)
		}
		end = t
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("--to (%s) is before --from (%s)", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return start, end, nil
}

// parseDateFlag accepts a date or an RFC3339 timestamp. Bare end dates
// extend to the end of the day.
func parseDateFlag(s string, isEnd bool) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		if isEnd {
			return t.Add(24*time.Hour - time.Second).UTC(), nil
		}
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected 2006-01-02 or RFC3339, got %q", s)
	}
	return t.UTC(), nil
}

func displayStats(stats *internal.DashboardStats, source internal.DataSource) {
	header := headerStyle.Render(fmt.Sprintf("📊 Stats %s - %s (%s)",
		stats.Start.Format("2006-01-02"), stats.End.Format("2006-01-02"), source))
	fmt.Println(header)
	fmt.Println()

	w := tabwriter.NewWriter(lipgloss.DefaultRenderer().Output(), 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintf(w, "Conversations\t%s\n", countStyle.Render(fmt.Sprintf("%d", stats.TotalConversations)))
	_, _ = fmt.Fprintf(w, "Threads\t%s\n", countStyle.Render(fmt.Sprintf("%d", stats.TotalThreads)))
	_, _ = fmt.Fprintf(w, "Messages\t%s\n", countStyle.Render(fmt.Sprintf("%d", stats.TotalMessages)))
	if stats.AvgDurationMinutes > 0 {
		_, _ = fmt.Fprintf(w, "Avg duration\t%s\n", countStyle.Render(fmt.Sprintf("%.2f min", stats.AvgDurationMinutes)))
	}
	if stats.AvgTimeToFirstResponseSecs > 0 {
		_, _ = fmt.Fprintf(w, "Avg first response\t%s\n", countStyle.Render(fmt.Sprintf("%.2f s", stats.AvgTimeToFirstResponseSecs)))
	}
	_, _ = fmt.Fprintf(w, "Errors\t%s\n", countStyle.Render(fmt.Sprintf("%d (%.2f%%)", stats.ErrorCount, stats.ErrorRate)))
	_ = w.Flush()
	fmt.Println()

	if len(stats.ToolUsage) > 0 {
		fmt.Println(sectionStyle.Render("🛠 Tool usage"))
		tw := tabwriter.NewWriter(lipgloss.DefaultRenderer().Output(), 0, 0, 3, ' ', 0)
		_, _ = fmt.Fprintln(tw, titleStyle.Render("Tool")+"\t"+titleStyle.Render("Count")+"\t"+titleStyle.Render("Avg Response")+"\t")
		for _, tool := range stats.ToolUsage {
			avg := "—"
			if tool.AvgResponseTime > 0 {
				avg = fmt.Sprintf("%.2fs", tool.AvgResponseTime)
			}
			_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\t\n", tool.Name, tool.Count, avg)
		}
		_ = tw.Flush()
		fmt.Println()
	}

	if len(stats.WorkflowUsage) > 0 {
		fmt.Println(sectionStyle.Render("🔀 Workflow usage"))
		tw := tabwriter.NewWriter(lipgloss.DefaultRenderer().Output(), 0, 0, 3, ' ', 0)
		_, _ = fmt.Fprintln(tw, titleStyle.Render("Workflow")+"\t"+titleStyle.Render("Conversations")+"\t"+titleStyle.Render("Share")+"\t")
		for _, wf := range stats.WorkflowUsage {
			_, _ = fmt.Fprintf(tw, "%s\t%d\t%.2f%%\t\n", wf.Workflow, wf.Count, wf.Percentage)
		}
		_ = tw.Flush()
		fmt.Println()
	}

	fmt.Println(sectionStyle.Render("📈 Conversion rates"))
	fmt.Printf("  Contact rate: %s\n", rateStyle.Render(fmt.Sprintf("%.2f%%", stats.Rates.ContactRate)))
	fmt.Printf("  Travel agent rate: %s\n", rateStyle.Render(fmt.Sprintf("%.2f%%", stats.Rates.TravelAgentRate)))
	fmt.Println()

	if statsHourly {
		fmt.Println(sectionStyle.Render("🕐 Conversations per hour"))
		displayHourlyHistogram(stats.PerHour)
	} else {
		fmt.Println(sectionStyle.Render("📅 Conversations per day"))
		displayDailyHistogram(stats.PerDay)
	}
}

func displayDailyHistogram(buckets []internal.DailyCount) {
	max := 0
	for _, b := range buckets {
		if b.Conversations > max {
			max = b.Conversations
		}
	}
	for _, b := range buckets {
		fmt.Printf("  %s %s %d\n", dateStyle.Render(b.Date), barStyle.Render(histogramBar(b.Conversations, max)), b.Conversations)
	}
}

func displayHourlyHistogram(buckets []internal.HourlyCount) {
	max := 0
	for _, b := range buckets {
		if b.Conversations > max {
			max = b.Conversations
		}
	}
	for _, b := range buckets {
		if b.Conversations == 0 {
			continue
		}
		fmt.Printf("  %s %s %d\n", dateStyle.Render(b.Hour), barStyle.Render(histogramBar(b.Conversations, max)), b.Conversations)
	}
}

// histogramBar scales a count to a bar of at most 40 cells.
func histogramBar(count, max int) string {
	if max == 0 || count == 0 {
		return ""
	}
	width := count * 40 / max
	if width == 0 {
		width = 1
	}
	return strings.Repeat("█", width)
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().StringVar(&statsFrom, "from", "", "Range start (2006-01-02 or RFC3339, default 7 days ago)")
	statsCmd.Flags().StringVar(&statsTo, "to", "", "Range end (2006-01-02 or RFC3339, default now)")
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Print statistics as JSON")
	statsCmd.Flags().BoolVar(&statsHourly, "hourly", false, "Show the per-hour histogram instead of per-day")
}
