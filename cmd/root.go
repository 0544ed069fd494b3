package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tkrueger/chatlens/internal"
)

var (
	verbose    bool
	envFlag    string
	configPath string
	storePath  string
	version    string = "dev"
	commit     string = "unknown"
	date       string = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "chatlens",
	Short: "Inspect and analyze chatbot conversations",
	Long: `A CLI dashboard for chatbot conversation analytics.

This tool fetches conversations and threads from the chatbot backend (or
reads uploaded JSON payloads), lets you annotate and save chats, and
computes usage statistics over a time range.

Features:
  • List conversations with categories, annotations and message counts
  • View individual conversations with tool calls and timeout markers
  • Aggregate statistics: tools, workflows, response times, conversion rates
  • Per-day and per-hour conversation histograms
  • Range-aware caching of thread fetches with TTL expiry
  • Import backend JSON payloads for fully offline analysis
  • Export in multiple formats (JSONL, Markdown, YAML, JSON)

Quick Start:
  chatlens import dump.json              # Import a backend payload
  chatlens list                          # List conversations
  chatlens show <conversation-id>        # View a conversation
  chatlens stats --from 2024-01-01 --to 2024-01-07

For detailed usage, see: https://github.com/tkrueger/chatlens`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		internal.SetVerbose(verbose)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&envFlag, "env", "", "Environment to use (staging or production)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file location (default ~/.chatlens/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "Store database location (default ~/.chatlens/chatlens.db)")

	// Set version template to ensure --version flag works
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

// loadConfig reads the config file and applies the persistent flag
// overrides.
func loadConfig() (*internal.Config, error) {
	cfg, err := internal.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if envFlag != "" {
		if !internal.ValidEnvironment(envFlag) {
			return nil, fmt.Errorf("unknown environment %q (expected %s or %s)", envFlag, internal.EnvStaging, internal.EnvProduction)
		}
		cfg.Environment = envFlag
	}
	if storePath != "" {
		cfg.StorePath = storePath
	}
	return cfg, nil
}

// openStore opens the store for the configured environment.
func openStore(cfg *internal.Config) (*internal.Store, error) {
	store, err := internal.OpenStore(cfg.StorePath, cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return store, nil
}

// newDataset wires the store and API client into a dataset.
func newDataset(cfg *internal.Config, store *internal.Store) (*internal.Dataset, error) {
	_, envCfg := cfg.ActiveEnvironment()
	apiKey, err := cfg.ResolveAPIKey(store)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve API key: %w", err)
	}
	client := internal.NewAPIClient(envCfg.BaseURL, apiKey)
	return internal.NewDataset(store, client), nil
}
