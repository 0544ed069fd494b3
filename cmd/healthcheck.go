package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/tkrueger/chatlens/internal"
)

var (
	healthcheckPing bool
)

var (
	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42")).
		Bold(true)

	warnStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("214")).
		Bold(true)

	failStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("196")).
		Bold(true)

	stepStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("39"))
)

// healthcheckCmd represents the healthcheck command
var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Check if chatlens can reach its config, store and backend",
	Long: `Check the health of chatlens by verifying:
  • Configuration loading
  • Store database access
  • API credentials
  • Active data source (uploaded payloads or remote API)
  • Cache state

With --ping the remote API is probed with a small thread fetch. This command
is useful for debugging setup issues, especially in CI/CD environments.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(sectionStyle.Render("🔍 Chatlens Health Check"))
		fmt.Println()

		// Step 1: Load configuration
		fmt.Println(stepStyle.Render("Step 1: Loading configuration..."))
		cfg, err := loadConfig()
		if err != nil {
			fmt.Println(failStyle.Render("❌ Failed to load configuration:"), err)
			os.Exit(1)
		}
		envName, envCfg := cfg.ActiveEnvironment()
		fmt.Println(okStyle.Render("✅ Configuration loaded"))
		if verbose {
			shownPath := configPath
			if shownPath == "" {
				shownPath = internal.DefaultConfigPath()
			}
			fmt.Printf("   Config file: %s\n", shownPath)
			fmt.Printf("   Environment: %s\n", envName)
			fmt.Printf("   Base URL: %s\n", envCfg.BaseURL)
		}
		fmt.Println()

		// Step 2: Open the store
		fmt.Println(stepStyle.Render("Step 2: Opening store database..."))
		store, err := openStore(cfg)
		if err != nil {
			fmt.Println(failStyle.Render("❌ Failed to open store:"), err)
			os.Exit(1)
		}
		defer func() { _ = store.Close() }()
		fmt.Println(okStyle.Render("✅ Store database accessible"))
		if verbose {
			fmt.Printf("   Path: %s\n", cfg.StorePath)
			if total, err := store.TotalBytes(); err == nil {
				fmt.Printf("   Size: %d bytes\n", total)
			}
		}
		fmt.Println()

		// Step 3: Check API credentials
		fmt.Println(stepStyle.Render("Step 3: Checking API credentials..."))
		apiKey, err := cfg.ResolveAPIKey(store)
		if err != nil {
			fmt.Println(warnStyle.Render("⚠️  Could not read stored API key:"), err)
		}
		keyPresent := apiKey != ""
		if keyPresent {
			fmt.Println(okStyle.Render("✅ API key configured"))
			if verbose {
				source := "store"
				if envCfg.APIKey != "" {
					source = "config/environment"
				}
				fmt.Printf("   Source: %s\n", source)
			}
		} else {
			fmt.Println(warnStyle.Render("⚠️  No API key configured"))
			fmt.Println("   Set one with 'chatlens fetch --api-key <key>' or CHATLENS_API_KEY")
		}
		fmt.Println()

		// Step 4: Determine the data source
		fmt.Println(stepStyle.Render("Step 4: Checking data source..."))
		dataset, err := newDataset(cfg, store)
		if err != nil {
			fmt.Println(failStyle.Render("❌ Failed to initialize dataset:"), err)
			os.Exit(1)
		}
		blob, err := dataset.Importer().LoadUploadedData()
		if err != nil {
			fmt.Println(failStyle.Render("❌ Failed to read uploaded data:"), err)
			os.Exit(1)
		}
		localMode := !blob.IsEmpty()
		if localMode {
			fmt.Println(okStyle.Render("✅ Uploaded data active (local mode)"))
			if verbose {
				fmt.Printf("   Conversations: %d\n", len(blob.Conversations))
				fmt.Printf("   Threads: %d\n", len(blob.Threads))
				fmt.Printf("   Attribute results: %d\n", len(blob.Attributes))
				if !blob.UpdatedAt.IsZero() {
					fmt.Printf("   Last import: %s\n", blob.UpdatedAt.Format(time.RFC3339))
				}
			}
		} else {
			fmt.Println(stepStyle.Render("ℹ️  No uploaded data, remote mode active"))
			if verbose {
				fmt.Printf("   Backend: %s\n", envCfg.BaseURL)
			}
		}
		fmt.Println()

		// Step 5: Cache state
		fmt.Println(stepStyle.Render("Step 5: Checking caches..."))
		threadEntries := dataset.ThreadCache().Entries()
		convCount := dataset.ConversationCache().Size()
		fmt.Println(okStyle.Render(fmt.Sprintf("✅ Caches readable: %d thread range(s), %d conversation(s)", len(threadEntries), convCount)))
		fmt.Println()

		// Step 6 (optional): probe the remote API
		pingFailed := false
		if healthcheckPing {
			fmt.Println(stepStyle.Render("Step 6: Probing the remote API..."))
			if localMode {
				fmt.Println(stepStyle.Render("ℹ️  Skipped: uploaded data is active"))
			} else if !keyPresent {
				fmt.Println(warnStyle.Render("⚠️  Skipped: no API key configured"))
			} else {
				client := internal.NewAPIClient(envCfg.BaseURL, apiKey)
				ctx, cancel := context.WithTimeout(cmd.Context(), internal.DefaultRequestTimeout)
				threads, err := client.FetchThreads(ctx, internal.TimeRange{
					Start: time.Now().Add(-15 * time.Minute),
					End:   time.Now(),
				})
				cancel()
				if err != nil {
					pingFailed = true
					var apiErr *internal.APIError
					if errors.As(err, &apiErr) && (apiErr.Status == 401 || apiErr.Status == 403) {
						fmt.Println(failStyle.Render("❌ API rejected the credentials:"), err)
					} else {
						fmt.Println(failStyle.Render("❌ API unreachable:"), err)
					}
				} else {
					fmt.Println(okStyle.Render(fmt.Sprintf("✅ API reachable: %d thread(s) in the last 15 minutes", len(threads))))
				}
			}
			fmt.Println()
		}

		// Summary
		fmt.Println(sectionStyle.Render("📊 Summary"))
		fmt.Println()

		switch {
		case pingFailed:
			fmt.Println(failStyle.Render("❌ Health check failed"))
			fmt.Println("   • Local setup is working")
			fmt.Println("   • The remote API could not be reached")
			return fmt.Errorf("health check failed: remote API unreachable")
		case localMode:
			fmt.Println(okStyle.Render("✅ Health check passed!"))
			fmt.Println(okStyle.Render("   • Store: Accessible"))
			fmt.Println(okStyle.Render(fmt.Sprintf("   • Data: %d uploaded conversation(s), %d thread(s)", len(blob.Conversations), len(blob.Threads))))
			return nil
		case keyPresent:
			fmt.Println(okStyle.Render("✅ Health check passed!"))
			fmt.Println(okStyle.Render("   • Store: Accessible"))
			fmt.Println(okStyle.Render("   • Credentials: Configured"))
			return nil
		default:
			fmt.Println(warnStyle.Render("⚠️  Setup incomplete"))
			fmt.Println("   • Store is accessible")
			fmt.Println("   • No API key and no uploaded data")
			fmt.Println("   • Fetching from the backend will fail until one is provided")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(healthcheckCmd)
	healthcheckCmd.Flags().BoolVar(&healthcheckPing, "ping", false, "Probe the remote API with a small thread fetch")
}
