package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rthompson/todosync/internal/ui"
)

var doneCmd = &cobra.Command{
	Use:   "done <task-id>",
	Short: "Toggle a task's completed state",
	Long: `Toggle completion. The change applies locally first and is pushed to the
remote service; if the push fails the task reverts to its previous state.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		localID, err := resolveTask(a, args[0])
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		task, err := a.engine.ToggleComplete(ctx, localID)
		a.persist(ctx)
		if err != nil {
			return fmt.Errorf("change reverted: %w", err)
		}

		if task.Completed {
			fmt.Printf("%s Completed %s\n", ui.RenderPass("ok"), task.Title)
		} else {
			fmt.Printf("%s Reopened %s\n", ui.RenderPass("ok"), task.Title)
		}
		return nil
	},
}
