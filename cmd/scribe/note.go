package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scribepad/scribe/internal/ui"
)

var noteCmd = &cobra.Command{
	Use:   "note",
	Short: "Create, list, and remove notes",
}

var noteBody string

var noteAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Create a note",
	Long: `Create a note in the local store.

The note is written locally immediately and queued for delivery; no
connectivity is required.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(nil)
		if err != nil {
			return err
		}
		defer a.Close()

		title := strings.Join(args, " ")
		n, err := a.engine.CreateNote(title, noteBody)
		if err != nil {
			return fmt.Errorf("failed to create note: %w", err)
		}

		fmt.Printf("%s created %s\n", ui.RenderPass("✓"), ui.RenderAccent(n.UUID))
		return nil
	},
}

var noteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notes in the local store",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(nil)
		if err != nil {
			return err
		}
		defer a.Close()

		notes, err := a.store.GetAllNotes()
		if err != nil {
			return fmt.Errorf("failed to read notes: %w", err)
		}
		if len(notes) == 0 {
			fmt.Println("No notes")
			return nil
		}

		sort.Slice(notes, func(i, j int) bool { return notes[i].Title < notes[j].Title })

		for _, n := range notes {
			marker := ui.RenderPass("✓")
			if n.Dirty() {
				marker = ui.RenderWarn("~")
			}
			if !n.Synced() {
				marker = ui.RenderDim("·")
			}
			fmt.Printf("%s %s %s\n", marker, ui.RenderAccent(n.UUID), n.Title)
		}
		return nil
	},
}

var noteRmCmd = &cobra.Command{
	Use:   "rm <uuid>",
	Short: "Delete a note",
	Long: `Delete a note from the local store.

If the note exists on the server, its remote deletion is queued; a note the
server has never seen leaves no trace.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(nil)
		if err != nil {
			return err
		}
		defer a.Close()

		uuid := args[0]
		n, err := a.store.GetNote(uuid)
		if err != nil {
			return fmt.Errorf("failed to read note: %w", err)
		}
		if n == nil {
			return fmt.Errorf("no note with uuid %s", uuid)
		}

		if err := a.engine.DeleteNote(uuid); err != nil {
			return fmt.Errorf("failed to delete note: %w", err)
		}

		fmt.Printf("%s deleted %s\n", ui.RenderPass("✓"), ui.RenderAccent(uuid))
		return nil
	},
}

func init() {
	noteAddCmd.Flags().StringVar(&noteBody, "body", "", "note body text")

	noteCmd.AddCommand(noteAddCmd)
	noteCmd.AddCommand(noteListCmd)
	noteCmd.AddCommand(noteRmCmd)
}
