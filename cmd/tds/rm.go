package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rthompson/todosync/internal/ui"
)

var rmCmd = &cobra.Command{
	Use:   "rm <task-id>",
	Short: "Delete a task",
	Long: `Delete a task. Removal is local-immediate: the task disappears from the
working set before the remote delete is attempted, and a remote failure
does not bring it back.`,
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
		task, _ := a.engine.Task(localID)

		ctx := cmd.Context()
		derr := a.engine.DeleteTask(ctx, localID)
		a.persist(ctx)

		fmt.Printf("%s Deleted %s\n", ui.RenderPass("ok"), task.Title)
		if derr != nil {
			fmt.Printf("%s Remote delete failed; the task may reappear elsewhere: %v\n", ui.RenderWarn("!"), derr)
		}
		return nil
	},
}
