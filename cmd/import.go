package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tkrueger/chatlens/internal"
)

var importClear bool

var importCmd = &cobra.Command{
	Use:   "import <file>...",
	Short: "Import backend JSON payloads for offline analysis",
	Long: `Import JSON files exported from the chatbot backend.

Each file's schema is auto-detected (conversation, thread response, or
attribute result) and validated before it is accepted. Invalid files are
reported with a reason and skipped; valid files still import. While
uploaded data is present, all commands read from it and never touch the
network.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if importClear {
			return nil
		}
		return cobra.MinimumNArgs(1)(cmd, args)
	},
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

		importer := internal.NewImporter(store)

		if importClear {
			if err := importer.ClearUploadedData(); err != nil {
				return fmt.Errorf("failed to clear uploaded data: %w", err)
			}
			internal.PrintSuccess("Uploaded data cleared, remote mode active")
			if len(args) == 0 {
				return nil
			}
		}

		result, err := importer.ImportFiles(args)
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}

		for _, accepted := range result.Accepted {
			internal.PrintSuccess(fmt.Sprintf("%s: %s", accepted.Name, accepted.Summary))
		}
		for _, rejected := range result.Rejected {
			internal.PrintError(fmt.Sprintf("%s: %s", rejected.Name, rejected.Reason))
		}

		if len(result.Accepted) == 0 {
			return fmt.Errorf("no files imported (%d rejected)", len(result.Rejected))
		}
		if len(result.Rejected) > 0 {
			internal.PrintWarning(fmt.Sprintf("Imported %d file(s), rejected %d", len(result.Accepted), len(result.Rejected)))
		} else {
			internal.PrintInfo(fmt.Sprintf("Imported %d file(s), local mode active", len(result.Accepted)))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().BoolVar(&importClear, "clear", false, "Clear previously uploaded data (returns to remote mode)")
}
