package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rthompson/todosync/internal/ui"
)

var retryCmd = &cobra.Command{
	Use:   "retry <task-id>",
	Short: "Re-push a task whose create failed",
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
		task, rerr := a.engine.RetryCreate(ctx, localID)
		a.persist(ctx)
		if rerr != nil {
			return fmt.Errorf("retry failed: %w", rerr)
		}

		fmt.Printf("%s Pushed %s\n", ui.RenderPass("ok"), task.Title)
		return nil
	},
}
