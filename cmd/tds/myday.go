package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rthompson/todosync/internal/ui"
)

var mydayRemove bool

var mydayCmd = &cobra.Command{
	Use:   "myday <task-id>",
	Short: "Flag a task for My Day",
	Long: `Flag (or with --remove, unflag) a task for the My Day view. The flag is
purely local: it is never sent to the remote service and it survives
full refreshes.`,
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
		task, err := a.engine.FlagForToday(ctx, localID, !mydayRemove)
		a.persist(ctx)
		if err != nil {
			return err
		}

		if task.FlaggedForToday {
			fmt.Printf("%s Added to My Day: %s\n", ui.RenderPass("ok"), task.Title)
		} else {
			fmt.Printf("%s Removed from My Day: %s\n", ui.RenderPass("ok"), task.Title)
		}
		return nil
	},
}

func init() {
	mydayCmd.Flags().BoolVar(&mydayRemove, "remove", false, "remove the task from My Day")
}
