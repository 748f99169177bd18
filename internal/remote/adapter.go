// Package remote defines the narrow interface over the remote task
// service's wire protocol, and its Microsoft Graph To Do implementation.
//
// Every operation is a single network round trip that can fail. The
// adapter owns no state and never retries internally; retry policy belongs
// to the caller.
package remote

import (
	"context"

	"github.com/rthompson/todosync/internal/model"
)

// Adapter is the contract the sync engine programs against.
//
// Returned tasks and containers carry only remote-sourced fields: RemoteID,
// Title/Name, Completed, Important, Notes, DueAt, ReminderAt. LocalID and
// SyncStatus are assigned by the local store during the merge.
//
// Every call fails with a *CallError wrapping one of the package sentinel
// errors (ErrAuth, ErrNotFound, ErrValidation, ErrNetwork, ErrUnknown).
type Adapter interface {
	// ListContainers fetches all task containers.
	ListContainers(ctx context.Context) ([]model.Container, error)

	// ListTasks fetches all tasks of one container.
	ListTasks(ctx context.Context, containerRemoteID string) ([]model.Task, error)

	// CreateTask creates a task and returns it with the remote-assigned
	// identifier.
	CreateTask(ctx context.Context, containerRemoteID string, draft model.Draft) (model.Task, error)

	// UpdateTask applies a partial edit to an existing task. Fields the
	// remote service does not know about (FlaggedForToday) are ignored by
	// implementations.
	UpdateTask(ctx context.Context, containerRemoteID, taskRemoteID string, patch model.Patch) (model.Task, error)

	// DeleteTask removes a task. Deleting an already-absent task returns
	// an error wrapping ErrNotFound.
	DeleteTask(ctx context.Context, containerRemoteID, taskRemoteID string) error

	// CreateContainer creates a named container and returns it with the
	// remote-assigned identifier. No dedup by name is performed.
	CreateContainer(ctx context.Context, name string) (model.Container, error)
}
