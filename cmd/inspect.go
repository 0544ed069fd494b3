package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tkrueger/chatlens/internal"
)

var (
	inspectSample int
)

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect <files...>",
	Short: "Detect the schema of payload files without importing them",
	Long: `Inspect backend JSON payload files and report how they would be ingested.

This command provides detailed information about:
  • Which schema each file matches (conversation, thread response,
    attribute result, bulk attribute result)
  • Counts and identifiers found in the payload
  • Sample entries from each file
  • Why unrecognized files would be rejected by 'chatlens import'

Nothing is written to the store.

Examples:
  chatlens inspect dump.json                # Inspect a single payload
  chatlens inspect exports/*.json           # Inspect a whole directory
  chatlens inspect --sample 5 threads.json  # Show 5 sample entries`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		recognized := 0
		for _, name := range args {
			data, err := os.ReadFile(name)
			if err != nil {
				fmt.Printf("⚠️  %s: %v\n\n", name, err)
				continue
			}

			payload, err := internal.DetectPayload(name, data)
			if err != nil {
				fmt.Printf("❌ %s would be rejected: %v\n\n", name, err)
				continue
			}

			recognized++
			inspectPayload(name, len(data), payload)
			fmt.Println()
		}

		fmt.Printf("📊 %d file(s) inspected, %d recognized\n", len(args), recognized)
		if recognized == 0 {
			return fmt.Errorf("no recognizable payloads in %d file(s)", len(args))
		}
		return nil
	},
}

func inspectPayload(name string, size int, payload *internal.DetectedPayload) {
	fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	fmt.Printf("📦 File: %s (%d bytes)\n", name, size)
	fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	fmt.Printf("📐 Schema: %s\n\n", payload.Describe())

	switch payload.Kind {
	case internal.PayloadConversation:
		conv := payload.Conversation
		fmt.Printf("  • ID: %s\n", conv.ID)
		fmt.Printf("  • Title: %s\n", conv.DisplayTitle())
		if !conv.CreatedAt.IsZero() {
			fmt.Printf("  • Created: %s\n", conv.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		fmt.Printf("  • Messages: %d\n", len(conv.Messages))
		messages := conv.SortedMessages()
		if inspectSample > 0 && len(messages) > 0 {
			fmt.Printf("\n📄 Sample messages (first %d):\n", inspectSample)
			for i, msg := range messages {
				if i >= inspectSample {
					fmt.Printf("  ... and %d more\n", len(messages)-inspectSample)
					break
				}
				text := internal.ConsolidateContent(msg.Content).Text
				fmt.Printf("  [%d] %s: %s\n", i+1, msg.CanonicalRole(), previewText(text, 80))
			}
		}

	case internal.PayloadThreads:
		threads := payload.Threads.Threads
		if inspectSample > 0 && len(threads) > 0 {
			fmt.Printf("📄 Sample threads (first %d):\n", inspectSample)
			for i, thread := range threads {
				if i >= inspectSample {
					fmt.Printf("  ... and %d more\n", len(threads)-inspectSample)
					break
				}
				summary := internal.SummarizeThread(thread)
				errMark := ""
				if summary.HasError {
					errMark = " ⚠️"
				}
				fmt.Printf("  [%d] %s: %d message(s), conversation %s%s\n",
					i+1, thread.ID, len(thread.Messages), summary.ConversationID, errMark)
			}
		}

	case internal.PayloadAttributes:
		inspectAttributeResult("  ", *payload.Attributes)

	case internal.PayloadBulkAttributes:
		results := payload.Bulk.Results
		if inspectSample > 0 && len(results) > 0 {
			fmt.Printf("📄 Sample results (first %d):\n", inspectSample)
			for i, result := range results {
				if i >= inspectSample {
					fmt.Printf("  ... and %d more\n", len(results)-inspectSample)
					break
				}
				fmt.Printf("  [%d]\n", i+1)
				inspectAttributeResult("    ", result)
			}
		}
	}
}

func inspectAttributeResult(indent string, result internal.AttributesResponse) {
	fmt.Printf("%s• Thread: %s\n", indent, result.ThreadID)
	if result.ConversationID != "" {
		fmt.Printf("%s• Conversation: %s\n", indent, result.ConversationID)
	}
	if result.Status != "" {
		fmt.Printf("%s• Status: %s\n", indent, result.Status)
	}
	if len(result.Attributes) > 0 {
		keys := make([]string, 0, len(result.Attributes))
		for key := range result.Attributes {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		fmt.Printf("%s• Attributes (%d): %s\n", indent, len(keys), strings.Join(keys, ", "))
	}
}

// previewText collapses a message to a single trimmed line for display.
func previewText(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return "(empty)"
	}
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().IntVar(&inspectSample, "sample", 3, "Number of sample entries to show per file")
}
