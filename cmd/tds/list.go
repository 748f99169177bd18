package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rthompson/todosync/internal/model"
	"github.com/rthompson/todosync/internal/ui"
	"github.com/rthompson/todosync/internal/views"
)

var (
	listToday     bool
	listImportant bool
	listPlanned   bool
	listAll       bool
)

var listCmd = &cobra.Command{
	Use:   "list [list-name]",
	Short: "Show tasks from the local working set",
	Long: `Show tasks without touching the network. With a list name, shows that
list including completed tasks. The --today, --important and --planned
views exclude completed tasks.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		tasks := a.engine.Tasks()

		var shown []model.Task
		var heading string
		switch {
		case len(args) == 1:
			containerID, err := resolveContainer(a, args[0])
			if err != nil {
				return err
			}
			c, _ := a.engine.Container(containerID)
			shown = views.ByContainer(tasks, containerID)
			heading = c.Name
		case listToday:
			shown = views.Today(tasks)
			heading = "My Day"
		case listImportant:
			shown = views.Important(tasks)
			heading = "Important"
		case listPlanned:
			shown = views.Planned(tasks)
			heading = "Planned"
		default:
			shown = tasks
			heading = "All tasks"
			if !listAll {
				shown = views.Incomplete(tasks)
			}
		}

		fmt.Println(ui.RenderTitle(heading))
		if len(shown) == 0 {
			fmt.Println(ui.RenderDim("  (no tasks)"))
			return nil
		}
		for _, t := range shown {
			printTask(a, t)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().BoolVar(&listToday, "today", false, "show the My Day view")
	listCmd.Flags().BoolVar(&listImportant, "important", false, "show important tasks")
	listCmd.Flags().BoolVar(&listPlanned, "planned", false, "show tasks with a due date")
	listCmd.Flags().BoolVarP(&listAll, "all", "a", false, "include completed tasks")
}

func printTask(a *app, t model.Task) {
	mark := "[ ]"
	title := t.Title
	if t.Completed {
		mark = "[x]"
		title = ui.RenderDone(title)
	}

	var badges string
	if t.Important {
		badges += " " + ui.RenderWarn("!")
	}
	if t.FlaggedForToday {
		badges += " " + ui.RenderAccent("@today")
	}
	if t.DueAt != nil {
		badges += " " + ui.RenderDim("due "+t.DueAt.Format("2006-01-02"))
	}
	switch t.SyncStatus {
	case model.StatusSynced:
	case model.StatusFailed:
		badges += " " + ui.RenderErr("[sync failed]")
	default:
		badges += " " + ui.RenderDim("["+string(t.SyncStatus)+"]")
	}

	fmt.Printf("  %s %s %s%s\n", ui.RenderDim(shortID(t.LocalID)), mark, title, badges)
}
