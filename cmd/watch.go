package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tkrueger/chatlens/internal"
)

var (
	watchSchedule string
	watchWindow   time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the thread cache warm on a schedule",
	Long: `Run a foreground refresher that re-fetches the trailing time window on a
cron schedule, keeping the range cache warm for subsequent stats and fetch
commands. Stops on Ctrl-C.

Schedules use standard cron syntax or the @every form:
  chatlens watch --schedule "@every 15m"
  chatlens watch --schedule "0 * * * *" --window 48h`,
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

		source, err := dataset.Source()
		if err != nil {
			return err
		}
		if source == internal.SourceLocal {
			return fmt.Errorf("uploaded data is active, nothing to refresh: clear it with `chatlens import --clear`")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		refresher := internal.NewRefresher(dataset, watchSchedule, watchWindow, func(result internal.RefreshResult) {
			if result.Err != nil {
				internal.PrintError(fmt.Sprintf("Refresh failed: %v", result.Err))
				return
			}
			internal.PrintInfo(fmt.Sprintf("Refreshed %s - %s: %d thread(s)",
				result.Range.Start.Format("2006-01-02 15:04"),
				result.Range.End.Format("2006-01-02 15:04"),
				len(result.Summaries)))
		})

		if err := refresher.Start(ctx); err != nil {
			return err
		}
		defer refresher.Stop()

		// Prime the cache immediately rather than waiting for the first tick.
		refresher.RunOnce(ctx)

		internal.PrintInfo(fmt.Sprintf("Watching (schedule: %s, window: %s), Ctrl-C to stop", watchSchedule, watchWindow))
		<-ctx.Done()
		fmt.Println()
		internal.PrintInfo("Stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&watchSchedule, "schedule", "@every 15m", "Refresh schedule (cron syntax or @every)")
	watchCmd.Flags().DurationVar(&watchWindow, "window", internal.DefaultRefreshWindow, "Trailing window to refresh")
}
