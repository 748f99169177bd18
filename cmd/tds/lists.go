package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rthompson/todosync/internal/ui"
)

var listsCmd = &cobra.Command{
	Use:   "lists",
	Short: "Show task lists",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		containers := a.engine.Containers()
		if len(containers) == 0 {
			fmt.Println(ui.RenderDim("(no lists; run \"tds sync\" or \"tds lists add\")"))
			return nil
		}
		for _, c := range containers {
			var note string
			if !c.Synced() {
				note = " " + ui.RenderDim("[local only]")
			}
			fmt.Printf("  %s %s (%d)%s\n", ui.RenderDim(shortID(c.LocalID)), ui.RenderTitle(c.Name), c.TaskCount, note)
		}
		return nil
	},
}

var listsAddCmd = &cobra.Command{
	Use:   "add <name...>",
	Short: "Create a task list",
	Long: `Create a list locally and on the remote service. If the remote create
fails the list stays local-only; its tasks stay local too until the list
syncs. An existing list with the same name is not reused.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		name := strings.Join(args, " ")
		ctx := cmd.Context()
		c, cerr := a.engine.CreateContainer(ctx, name)
		a.persist(ctx)

		if cerr != nil {
			fmt.Printf("%s Created %q locally; remote create failed: %v\n", ui.RenderWarn("!"), name, cerr)
			return nil
		}
		fmt.Printf("%s Created list %s %s\n", ui.RenderPass("ok"), ui.RenderDim(shortID(c.LocalID)), c.Name)
		return nil
	},
}

var listsRmCmd = &cobra.Command{
	Use:   "rm <list>",
	Short: "Remove a list and its tasks from the local working set",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		containerID, err := resolveContainer(a, args[0])
		if err != nil {
			return err
		}
		c, _ := a.engine.Container(containerID)

		a.engine.DeleteContainer(containerID)
		a.persist(cmd.Context())

		fmt.Printf("%s Removed %s locally\n", ui.RenderPass("ok"), c.Name)
		if c.Synced() {
			fmt.Printf("%s The list still exists remotely and returns on the next sync\n", ui.RenderDim("note"))
		}
		return nil
	},
}

func init() {
	listsCmd.AddCommand(listsAddCmd)
	listsCmd.AddCommand(listsRmCmd)
}
