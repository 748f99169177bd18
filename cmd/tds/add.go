package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/rthompson/todosync/internal/model"
	"github.com/rthompson/todosync/internal/ui"
)

var (
	addNotes     string
	addDue       string
	addReminder  string
	addImportant bool
	addMyDay     bool
	addList      string
)

var addCmd = &cobra.Command{
	Use:   "add [title...]",
	Short: "Create a task",
	Long: `Create a task in a list. The task appears locally immediately; if the
list is synced remotely the task is also pushed to the remote service.
When the push fails the task is kept locally with a failed status and
can be re-pushed with "tds retry".

Without a title an interactive form opens.

Due dates and reminders accept natural language:
  tds add "file taxes" --due "next friday"
  tds add "standup notes" --due tomorrow --reminder "tomorrow 9am"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		title := strings.Join(args, " ")
		listRef := addList

		if title == "" {
			if err := addForm(a, &title, &listRef); err != nil {
				return err
			}
		}

		draft := model.Draft{
			Title:     title,
			Notes:     addNotes,
			Important: addImportant,
		}
		if addDue != "" {
			due, err := parseWhen(addDue)
			if err != nil {
				return fmt.Errorf("cannot parse due date %q: %w", addDue, err)
			}
			draft.DueAt = &due
		}
		if addReminder != "" {
			rem, err := parseWhen(addReminder)
			if err != nil {
				return fmt.Errorf("cannot parse reminder %q: %w", addReminder, err)
			}
			draft.ReminderAt = &rem
		}

		containerID, err := pickContainer(a, listRef)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		task, cerr := a.engine.CreateTask(ctx, containerID, draft)
		if cerr != nil && task.LocalID == "" {
			return cerr
		}

		if addMyDay && task.LocalID != "" {
			if flagged, ferr := a.engine.FlagForToday(ctx, task.LocalID, true); ferr == nil {
				task = flagged
			}
		}

		a.persist(ctx)

		if cerr != nil {
			fmt.Printf("%s Added %s locally; push failed: %v\n", ui.RenderWarn("!"), shortID(task.LocalID), cerr)
			fmt.Printf("  Run %s to try again\n", ui.RenderAccent("tds retry "+shortID(task.LocalID)))
			return nil
		}
		fmt.Printf("%s Added %s %s\n", ui.RenderPass("ok"), ui.RenderDim(shortID(task.LocalID)), task.Title)
		return nil
	},
}

func init() {
	addCmd.Flags().StringVarP(&addNotes, "notes", "n", "", "task notes")
	addCmd.Flags().StringVar(&addDue, "due", "", "due date (natural language)")
	addCmd.Flags().StringVar(&addReminder, "reminder", "", "reminder time (natural language)")
	addCmd.Flags().BoolVarP(&addImportant, "important", "i", false, "mark important")
	addCmd.Flags().BoolVar(&addMyDay, "myday", false, "flag for My Day")
	addCmd.Flags().StringVarP(&addList, "list", "l", "", "target list (name or ID)")
}

// pickContainer resolves the target list, falling back to the first
// known list when none is named.
func pickContainer(a *app, ref string) (string, error) {
	if ref != "" {
		return resolveContainer(a, ref)
	}
	containers := a.engine.Containers()
	if len(containers) == 0 {
		return "", fmt.Errorf("no lists available; run \"tds sync\" or \"tds lists add\" first")
	}
	return containers[0].LocalID, nil
}

func addForm(a *app, title, listRef *string) error {
	containers := a.engine.Containers()
	options := make([]huh.Option[string], 0, len(containers))
	for _, c := range containers {
		options = append(options, huh.NewOption(c.Name, c.LocalID))
	}

	fields := []huh.Field{
		huh.NewInput().
			Title("Task").
			Value(title).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return fmt.Errorf("title is required")
				}
				return nil
			}),
		huh.NewText().Title("Notes").Value(&addNotes),
		huh.NewInput().Title("Due (e.g. \"next friday\", blank for none)").Value(&addDue),
		huh.NewConfirm().Title("Important?").Value(&addImportant),
	}
	if len(options) > 0 {
		fields = append(fields, huh.NewSelect[string]().Title("List").Options(options...).Value(listRef))
	}

	return huh.NewForm(huh.NewGroup(fields...)).Run()
}

// parseWhen parses a natural-language date relative to now.
func parseWhen(text string) (time.Time, error) {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	res, err := w.Parse(text, time.Now())
	if err != nil {
		return time.Time{}, err
	}
	if res == nil {
		return time.Time{}, fmt.Errorf("unrecognized date expression")
	}
	return res.Time, nil
}
