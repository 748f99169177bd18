package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rthompson/todosync/internal/remote"
	"github.com/rthompson/todosync/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run a full refresh against the remote service",
	Long: `Fetch all lists and their tasks from the remote service and merge them
into the local working set. Tasks with unsynced local changes are never
overwritten by the refresh. Lists that fail to fetch keep their previous
local tasks.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		fmt.Printf("%s Syncing...\n", ui.RenderAccent("*"))
		result, err := a.engine.RunFullSync(ctx)
		if err != nil {
			if remote.IsAuth(err) {
				return fmt.Errorf("not authenticated: %w", err)
			}
			return fmt.Errorf("sync failed: %w", err)
		}

		a.persist(ctx)

		fmt.Printf("%s Synced %d lists, %d tasks in %v\n",
			ui.RenderPass("ok"),
			result.Containers, result.Tasks,
			result.Duration.Round(time.Millisecond))
		for _, name := range result.FailedContainers {
			fmt.Printf("%s List %q failed to refresh; kept previous tasks\n", ui.RenderWarn("!"), name)
		}
		return nil
	},
}
