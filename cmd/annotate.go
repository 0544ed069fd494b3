package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tkrueger/chatlens/internal"
)

var (
	annotateSave      bool
	annotateUnsave    bool
	annotateNote      string
	annotateClearNote bool
)

var annotateCmd = &cobra.Command{
	Use:   "annotate <conversation-id>",
	Short: "Save conversations and attach notes",
	Long: `Manage client-side annotations: mark a conversation as saved, or attach
a free-text note. Annotations live in the local store, scoped to the active
environment, and are never written back to the backend.

Without flags, shows the conversation's current annotations.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conversationID := args[0]

		if annotateSave && annotateUnsave {
			return fmt.Errorf("--save and --unsave are mutually exclusive")
		}
		if annotateNote != "" && annotateClearNote {
			return fmt.Errorf("--note and --clear-note are mutually exclusive")
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

		annotations := internal.NewAnnotations(store)

		changed := false
		if annotateSave || annotateUnsave {
			if err := annotations.SetSaved(conversationID, annotateSave); err != nil {
				return fmt.Errorf("failed to update saved flag: %w", err)
			}
			if annotateSave {
				internal.PrintSuccess("Conversation saved")
			} else {
				internal.PrintSuccess("Conversation unsaved")
			}
			changed = true
		}
		if annotateNote != "" || annotateClearNote {
			note := annotateNote
			if annotateClearNote {
				note = ""
			}
			if err := annotations.SetNote(conversationID, note); err != nil {
				return fmt.Errorf("failed to update note: %w", err)
			}
			if note == "" {
				internal.PrintSuccess("Note cleared")
			} else {
				internal.PrintSuccess("Note saved")
			}
			changed = true
		}

		if changed {
			return nil
		}

		saved, err := annotations.IsSaved(conversationID)
		if err != nil {
			return fmt.Errorf("failed to read annotations: %w", err)
		}
		note, err := annotations.Note(conversationID)
		if err != nil {
			return fmt.Errorf("failed to read annotations: %w", err)
		}

		fmt.Println(headerStyle.Render("📌 " + conversationID))
		if saved {
			fmt.Println("  💾 saved")
		} else {
			fmt.Println(dateStyle.Render("  not saved"))
		}
		if note != "" {
			fmt.Println("  📝 " + note)
		} else {
			fmt.Println(dateStyle.Render("  no note"))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(annotateCmd)
	annotateCmd.Flags().BoolVar(&annotateSave, "save", false, "Mark the conversation as saved")
	annotateCmd.Flags().BoolVar(&annotateUnsave, "unsave", false, "Remove the saved mark")
	annotateCmd.Flags().StringVar(&annotateNote, "note", "", "Attach a free-text note")
	annotateCmd.Flags().BoolVar(&annotateClearNote, "clear-note", false, "Remove the note")
}
