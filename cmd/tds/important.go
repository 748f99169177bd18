package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rthompson/todosync/internal/ui"
)

var importantCmd = &cobra.Command{
	Use:   "important <task-id>",
	Short: "Toggle a task's important flag",
	Args:  cobra.ExactArgs(1),
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
		task, err := a.engine.ToggleImportant(ctx, localID)
		a.persist(ctx)
		if err != nil {
			return fmt.Errorf("change reverted: %w", err)
		}

		if task.Important {
			fmt.Printf("%s Marked important: %s\n", ui.RenderPass("ok"), task.Title)
		} else {
			fmt.Printf("%s Unmarked important: %s\n", ui.RenderPass("ok"), task.Title)
		}
		return nil
	},
}
