// Package views computes derived, filtered task views from a store
// snapshot.
//
// Every function is pure and stateless: it takes an explicit snapshot and
// returns a new slice, preserving the snapshot's order. There is no
// independent storage behind a view; it is always recomputed.
package views

import "github.com/rthompson/todosync/internal/model"

// Predicate selects tasks for a view.
type Predicate func(model.Task) bool

// Today returns tasks flagged for today and not completed.
func Today(tasks []model.Task) []model.Task {
	return filter(tasks, func(t model.Task) bool {
		return t.FlaggedForToday && !t.Completed
	})
}

// Important returns important, not completed tasks.
func Important(tasks []model.Task) []model.Task {
	return filter(tasks, func(t model.Task) bool {
		return t.Important && !t.Completed
	})
}

// Planned returns tasks with a due date and not completed.
func Planned(tasks []model.Task) []model.Task {
	return filter(tasks, func(t model.Task) bool {
		return t.DueAt != nil && !t.Completed
	})
}

// Incomplete returns every task not yet completed, across all containers.
// This backs the default "all tasks" view.
func Incomplete(tasks []model.Task) []model.Task {
	return filter(tasks, func(t model.Task) bool {
		return !t.Completed
	})
}

// ByContainer returns the tasks owned by the given container, completed
// ones included. This backs a concrete container view, not a virtual one.
func ByContainer(tasks []model.Task, containerID string) []model.Task {
	return filter(tasks, func(t model.Task) bool {
		return t.ContainerID == containerID
	})
}

// Completed returns completed tasks matching base. It backs the
// "completed" sub-section of any view; base nil means all tasks.
func Completed(tasks []model.Task, base Predicate) []model.Task {
	return filter(tasks, func(t model.Task) bool {
		if !t.Completed {
			return false
		}
		return base == nil || base(t)
	})
}

func filter(tasks []model.Task, keep Predicate) []model.Task {
	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}
