package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tkrueger/chatlens/internal"
	"github.com/tkrueger/chatlens/internal/export"
)

var (
	format          string
	outputDir       string
	exportID        string
	exportCategory  string
	exportSavedOnly bool
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export conversations to file",
	Long: `Export conversations to various formats (jsonl, md, yaml, json).

Exported files include the derived analytics (category, tool usage,
metrics, timeout markers) alongside the messages. You can export all
conversations from the uploaded data, filter by category or saved flag, or
export a specific conversation by ID (fetching it if necessary).`,
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

		var conversations []*internal.Conversation
		if exportID != "" {
			conv, _, err := dataset.GetConversation(context.Background(), exportID)
			if err != nil {
				return fmt.Errorf("conversation not found: %s (use 'chatlens list' to see available conversations): %w", exportID, err)
			}
			conversations = []*internal.Conversation{conv}
		} else {
			conversations, err = dataset.Conversations()
			if err != nil {
				return fmt.Errorf("failed to load conversations: %w", err)
			}
		}

		// Filter by saved flag if specified
		if exportSavedOnly {
			filtered := make([]*internal.Conversation, 0)
			for _, conv := range conversations {
				if conv.Saved {
					filtered = append(filtered, conv)
				}
			}
			conversations = filtered
		}

		// Filter by category if specified
		if exportCategory != "" {
			filtered := make([]*internal.Conversation, 0)
			for _, conv := range conversations {
				if strings.EqualFold(internal.CategorizeOrDefault(conv.Messages), exportCategory) {
					filtered = append(filtered, conv)
				}
			}
			conversations = filtered
		}

		// Create exporter
		exporter, err := export.NewExporter(format)
		if err != nil {
			return err
		}

		// Ensure output directory exists
		if err := os.MkdirAll(outputDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}

		// Export conversations with progress
		ctx := context.Background()
		err = internal.ShowProgress(ctx, fmt.Sprintf("Exporting %d conversation(s) to %s", len(conversations), outputDir), func() error {
			for _, conv := range conversations {
				if conv == nil {
					internal.LogWarn("Skipping nil conversation")
					continue
				}
				filename := fmt.Sprintf("conversation_%s.%s", conv.ID, exporter.Extension())
				path := filepath.Join(outputDir, filename)

				file, err := os.Create(path)
				if err != nil {
					internal.LogError("Failed to create file %s: %v", path, err)
					continue
				}

				if err := exporter.Export(conv, file); err != nil {
					_ = file.Close()
					internal.LogError("Failed to export conversation %s: %v", conv.ID, err)
					continue
				}

				if err := file.Close(); err != nil {
					internal.LogWarn("Failed to close file %s: %v", path, err)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		internal.PrintSuccess(fmt.Sprintf("Export complete: %d conversation(s) exported to %s", len(conversations), outputDir))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&format, "format", "f", "jsonl", "Export format (jsonl, md, yaml, json)")
	exportCmd.Flags().StringVarP(&outputDir, "out", "o", "./exports", "Output directory")
	exportCmd.Flags().StringVar(&exportID, "id", "", "Export a specific conversation by ID")
	exportCmd.Flags().StringVar(&exportCategory, "category", "", "Only export conversations with this category")
	exportCmd.Flags().BoolVar(&exportSavedOnly, "saved", false, "Only export saved conversations")
}
