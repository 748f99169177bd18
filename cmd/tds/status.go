package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rthompson/todosync/internal/model"
	"github.com/rthompson/todosync/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync state of the local working set",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		tasks := a.engine.Tasks()
		counts := map[model.SyncStatus]int{}
		for _, t := range tasks {
			counts[t.SyncStatus]++
		}

		fmt.Println(ui.RenderTitle("todosync status"))
		fmt.Printf("  Lists:  %d\n", len(a.engine.Containers()))
		fmt.Printf("  Tasks:  %d\n", len(tasks))

		if savedAt, err := a.cache.SavedAt(cmd.Context()); err == nil && !savedAt.IsZero() {
			fmt.Printf("  Snapshot saved: %s (%s ago)\n",
				savedAt.Local().Format(time.RFC822),
				time.Since(savedAt).Round(time.Minute))
		} else {
			fmt.Printf("  Snapshot saved: %s\n", ui.RenderDim("never"))
		}

		unsynced := counts[model.StatusLocalOnly] + counts[model.StatusPendingCreate] +
			counts[model.StatusPendingUpdate] + counts[model.StatusFailed]
		if unsynced == 0 {
			fmt.Printf("  %s All tasks synced\n", ui.RenderPass("ok"))
			return nil
		}

		fmt.Printf("  %s %d tasks not synced\n", ui.RenderWarn("!"), unsynced)
		if n := counts[model.StatusLocalOnly]; n > 0 {
			fmt.Printf("    local only:     %d\n", n)
		}
		if n := counts[model.StatusPendingCreate]; n > 0 {
			fmt.Printf("    pending create: %d\n", n)
		}
		if n := counts[model.StatusPendingUpdate]; n > 0 {
			fmt.Printf("    pending update: %d\n", n)
		}
		if n := counts[model.StatusFailed]; n > 0 {
			fmt.Printf("    %s %d (run \"tds retry <id>\")\n", ui.RenderErr("failed:"), n)
		}
		return nil
	},
}
