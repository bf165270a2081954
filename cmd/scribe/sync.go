package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/scribepad/scribe/internal/ui"
)

var syncFull bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync pass now",
	Long: `Drain the outgoing queue in a single pass.

With --full, the complete remote note list is fetched first and reconciled
against the local store before the queue is drained.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(nil)
		if err != nil {
			return err
		}
		defer a.Close()

		if !a.tokens.IsAuthenticated() {
			return fmt.Errorf("not logged in; run 'scribe login' first")
		}

		ctx := cmd.Context()
		pendingBefore, parkedBefore := a.queue.Counts()

		start := time.Now()
		if syncFull {
			if err := a.engine.ForceFullSync(ctx); err != nil {
				return fmt.Errorf("full sync failed: %w", err)
			}
		} else {
			a.engine.SyncNow(ctx)
		}

		pending, parked := a.queue.Counts()
		fmt.Printf("%s synced in %v (pending %d -> %d, parked %d -> %d)\n",
			ui.RenderPass("✓"), time.Since(start).Round(time.Millisecond),
			pendingBefore, pending, parkedBefore, parked)

		if parked > 0 {
			fmt.Printf("%s %d items parked after repeated failures; see 'scribe status'\n",
				ui.RenderWarn("!"), parked)
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queue and connectivity state",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(nil)
		if err != nil {
			return err
		}
		defer a.Close()

		st := a.engine.Status()
		count, err := a.store.NoteCount()
		if err != nil {
			count = -1
		}

		fmt.Println(ui.RenderTitle("scribe status"))
		fmt.Printf("  notes:     %s\n", ui.RenderAccent(fmt.Sprintf("%d", count)))
		fmt.Printf("  pending:   %s\n", ui.RenderAccent(fmt.Sprintf("%d", st.Pending)))
		if st.Parked > 0 {
			fmt.Printf("  parked:    %s\n", ui.RenderFail(fmt.Sprintf("%d", st.Parked)))
		} else {
			fmt.Printf("  parked:    %s\n", ui.RenderAccent("0"))
		}
		fmt.Printf("  session:   %s\n", renderBool(st.Authenticated, "logged in", "logged out"))
		fmt.Printf("  network:   %s\n", renderBool(st.Online, "online", "offline"))

		for _, it := range a.queue.RetryItems() {
			fmt.Printf("  %s %s %s: %s\n",
				ui.RenderFail("✗"), it.Action, it.NoteUUID, ui.RenderDim(it.ErrorMessage))
		}
		return nil
	},
}

var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Retry parked items immediately",
	Long:  "Move every parked item back to the primary queue, ignoring cooldowns, and run a pass.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(nil)
		if err != nil {
			return err
		}
		defer a.Close()

		moved := a.engine.RetryFailed(cmd.Context())
		if moved == 0 {
			fmt.Println("Nothing to retry")
			return nil
		}
		fmt.Printf("%s retried %d items\n", ui.RenderPass("✓"), moved)
		return nil
	},
}

var clearErrorsCmd = &cobra.Command{
	Use:   "clear-errors",
	Short: "Discard parked items",
	Long: `Drop every parked item from the retry queue.

The local copies of the affected notes are untouched; only their pending
remote deliveries are abandoned.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(nil)
		if err != nil {
			return err
		}
		defer a.Close()

		cleared := a.engine.ClearErrors()
		fmt.Printf("Cleared %d parked items\n", cleared)
		return nil
	},
}

func renderBool(v bool, yes, no string) string {
	if v {
		return ui.RenderPass(yes)
	}
	return ui.RenderFail(no)
}

func init() {
	syncCmd.Flags().BoolVar(&syncFull, "full", false, "fetch and reconcile the full remote list first")
}
