// Package engine orchestrates synchronization between the local store and
// the remote task service.
//
// The engine owns the store: all writes to it go through engine methods,
// so a full-refresh merge and a user mutation never interleave their
// writes. User-facing operations apply optimistically - the local change
// lands before the remote round trip - with a per-operation failure
// policy:
//
//   - full refresh: fails closed, local state untouched, phase -> Offline
//   - update-style mutations: roll back to the exact prior value
//   - create: task retained with status Failed, user content kept
//   - delete: local removal stands, remote failure is surfaced only
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rthompson/todosync/internal/model"
	"github.com/rthompson/todosync/internal/remote"
	"github.com/rthompson/todosync/internal/store"
)

// Notifier receives engine events. Implementations must not call back
// into the engine synchronously.
type Notifier interface {
	// PhaseChanged fires on every sync phase transition.
	PhaseChanged(session model.SyncSession)

	// TaskChanged fires after a task is created, updated, or deleted in
	// the local store. Action is one of "created", "updated", "deleted".
	TaskChanged(localID, action string)

	// SyncCompleted fires after a full refresh reached the Synced phase.
	SyncCompleted(result FullSyncResult)
}

// FullSyncResult summarizes one full refresh.
type FullSyncResult struct {
	Containers int `json:"containers"`
	Tasks      int `json:"tasks"`

	// FailedContainers lists the names of containers whose task listing
	// failed; their previously synced tasks were left untouched.
	FailedContainers []string `json:"failed_containers,omitempty"`

	Duration time.Duration `json:"duration"`
}

// Engine is the synchronization engine. Create with New.
type Engine struct {
	store  *store.Store
	remote remote.Adapter
	logger *log.Logger
	notif  Notifier

	// refreshMu serializes full refreshes. Two overlapping refresh
	// requests run sequentially, never interleaved.
	refreshMu sync.Mutex

	sessionMu sync.Mutex
	session   model.SyncSession

	failedDeletes atomic.Int64
}

// New creates an Engine over the given store and remote adapter.
//
// The store must be used exclusively through the returned engine for
// writes; readers may snapshot it at any time. If logger is nil, a default
// logger writing to stderr is used.
func New(st *store.Store, adapter remote.Adapter, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(os.Stderr, "[engine] ", log.LstdFlags)
	}
	return &Engine{
		store:   st,
		remote:  adapter,
		logger:  logger,
		session: model.SyncSession{Phase: model.PhaseOffline},
	}
}

// SetNotifier attaches an event notifier. Call before the first operation.
func (e *Engine) SetNotifier(n Notifier) {
	e.notif = n
}

// Session returns the current synchronization status.
func (e *Engine) Session() model.SyncSession {
	e.sessionMu.Lock()
	defer e.sessionMu.Unlock()
	return e.session
}

// Tasks returns a snapshot of all tasks in insertion order.
func (e *Engine) Tasks() []model.Task {
	return e.store.Tasks()
}

// Containers returns a snapshot of all containers in insertion order.
func (e *Engine) Containers() []model.Container {
	return e.store.Containers()
}

// Task returns a copy of one task by local ID.
func (e *Engine) Task(localID string) (model.Task, bool) {
	return e.store.Task(localID)
}

// Container returns a copy of one container by local ID.
func (e *Engine) Container(localID string) (model.Container, bool) {
	return e.store.Container(localID)
}

// FailedDeletes returns the number of remote deletes that failed after the
// local removal was already applied. A retry queue could drain these; the
// current policy is fire-and-forget.
func (e *Engine) FailedDeletes() int64 {
	return e.failedDeletes.Load()
}

// RunFullSync pulls all containers and their tasks from the remote service
// and merges them into the store.
//
// The container listing is the gate: if it fails, the store is left
// untouched and the phase flips to Offline. Per-container task listings
// are fetched concurrently; a single container's failure skips only that
// container's merge (its previously synced tasks stay as they were) and
// the refresh still reports Synced.
func (e *Engine) RunFullSync(ctx context.Context) (FullSyncResult, error) {
	e.refreshMu.Lock()
	defer e.refreshMu.Unlock()

	start := time.Now()
	e.setPhase(model.PhaseSyncing, nil)

	containers, err := e.remote.ListContainers(ctx)
	if err != nil {
		e.setPhase(model.PhaseOffline, nil)
		return FullSyncResult{}, fmt.Errorf("failed to list containers: %w", err)
	}

	// Fan out one task listing per container. No concurrency cap and no
	// cancellation of siblings on failure.
	type listing struct {
		container model.Container
		tasks     []model.Task
		err       error
	}
	results := make(chan listing, len(containers))
	for _, c := range containers {
		go func(c model.Container) {
			tasks, err := e.remote.ListTasks(ctx, c.RemoteID)
			results <- listing{container: c, tasks: tasks, err: err}
		}(c)
	}

	fetched := make(map[string][]model.Task, len(containers)) // by container remote ID
	var failed []string
	for range containers {
		l := <-results
		if l.err != nil {
			e.logger.Printf("WARNING: failed to list tasks for container %q: %v", l.container.Name, l.err)
			failed = append(failed, l.container.Name)
			continue
		}
		fetched[l.container.RemoteID] = l.tasks
	}

	// Merge step. Serialized against all other store writes; merges for
	// two containers never interleave.
	e.store.UpsertContainers(containers)

	taskCount := 0
	for _, c := range containers {
		tasks, ok := fetched[c.RemoteID]
		if !ok {
			continue // listing failed, leave previously synced tasks alone
		}
		local, found := e.store.ContainerByRemoteID(c.RemoteID)
		if !found {
			continue
		}
		if err := e.store.UpsertTasksForContainer(local.LocalID, tasks); err != nil {
			e.logger.Printf("WARNING: merge failed for container %q: %v", c.Name, err)
			failed = append(failed, c.Name)
			continue
		}
		taskCount += len(tasks)
	}

	now := time.Now()
	e.setPhase(model.PhaseSynced, &now)

	result := FullSyncResult{
		Containers:       len(containers),
		Tasks:            taskCount,
		FailedContainers: failed,
		Duration:         time.Since(start),
	}
	e.logger.Printf("Full sync complete: containers=%d tasks=%d failed=%d in %v",
		result.Containers, result.Tasks, len(failed), result.Duration.Round(time.Millisecond))
	if e.notif != nil {
		e.notif.SyncCompleted(result)
	}
	return result, nil
}

// UpdateTask applies a partial edit optimistically and confirms it with
// the remote service.
//
// The local store reflects the change before the network round trip. If
// the task has no remote ID, or the patch only touches local-only fields,
// the mutation is terminal with no remote call. On remote failure every
// patched field rolls back to its exact pre-mutation value and the error
// is returned; the caller sees the change snap back.
func (e *Engine) UpdateTask(ctx context.Context, localID string, patch model.Patch) (model.Task, error) {
	if patch.IsZero() {
		t, ok := e.store.Task(localID)
		if !ok {
			return model.Task{}, fmt.Errorf("task %s: %w", localID, store.ErrNotFound)
		}
		return t, nil
	}

	remoteBound := patch.RemoteVisible()
	old, updated, err := e.store.Mutate(localID, func(t model.Task) model.Task {
		next := patch.Apply(t)
		if t.RemoteID != "" && remoteBound {
			next.SyncStatus = model.StatusPendingUpdate
		}
		return next
	})
	if err != nil {
		return model.Task{}, err
	}
	e.notifyTask(localID, "updated")

	if old.RemoteID == "" || !remoteBound {
		// Pure local mutation, terminal.
		return updated, nil
	}

	containerRemoteID, err := e.containerRemoteID(updated.ContainerID)
	if err != nil {
		e.rollback(localID, old)
		return model.Task{}, err
	}

	if _, err := e.remote.UpdateTask(ctx, containerRemoteID, old.RemoteID, patch); err != nil {
		e.rollback(localID, old)
		e.logger.Printf("Update failed for task %s, rolled back: %v", localID, err)
		return model.Task{}, fmt.Errorf("remote update failed: %w", err)
	}

	final, _, err := e.store.Mutate(localID, func(t model.Task) model.Task {
		t.SyncStatus = model.StatusSynced
		return t
	})
	if err != nil {
		// Task vanished between the remote call and the confirm step
		// (deleted by a rapid user action); the delete wins.
		if errors.Is(err, store.ErrNotFound) {
			return updated, nil
		}
		return model.Task{}, err
	}
	e.notifyTask(localID, "updated")
	return final, nil
}

// ToggleComplete flips the completed bit.
func (e *Engine) ToggleComplete(ctx context.Context, localID string) (model.Task, error) {
	t, ok := e.store.Task(localID)
	if !ok {
		return model.Task{}, fmt.Errorf("task %s: %w", localID, store.ErrNotFound)
	}
	completed := !t.Completed
	return e.UpdateTask(ctx, localID, model.Patch{Completed: &completed})
}

// ToggleImportant flips the important bit.
func (e *Engine) ToggleImportant(ctx context.Context, localID string) (model.Task, error) {
	t, ok := e.store.Task(localID)
	if !ok {
		return model.Task{}, fmt.Errorf("task %s: %w", localID, store.ErrNotFound)
	}
	important := !t.Important
	return e.UpdateTask(ctx, localID, model.Patch{Important: &important})
}

// FlagForToday sets or clears the purely local "today" flag. No remote
// call is ever made for this field.
func (e *Engine) FlagForToday(ctx context.Context, localID string, flagged bool) (model.Task, error) {
	return e.UpdateTask(ctx, localID, model.Patch{FlaggedForToday: &flagged})
}

// CreateTask inserts a task immediately and attempts the remote create.
//
// The task is visible (and referenced by its local ID) before the network
// round trip. If the container has no remote counterpart the task is
// LocalOnly and no call is made. On remote success the existing task is
// upgraded in place: remote ID attached, status Synced, local ID
// unchanged. On remote failure the task is kept with status Failed so the
// user's content survives; RetryCreate can re-attempt it.
func (e *Engine) CreateTask(ctx context.Context, containerLocalID string, draft model.Draft) (model.Task, error) {
	if err := draft.Validate(); err != nil {
		return model.Task{}, fmt.Errorf("invalid draft: %w", err)
	}
	container, ok := e.store.Container(containerLocalID)
	if !ok {
		return model.Task{}, fmt.Errorf("container %s: %w", containerLocalID, store.ErrNotFound)
	}

	status := model.StatusLocalOnly
	if container.Synced() {
		status = model.StatusPendingCreate
	}
	now := time.Now()
	task := model.Task{
		LocalID:     model.NewLocalID(),
		Title:       draft.Title,
		Notes:       draft.Notes,
		Important:   draft.Important,
		DueAt:       draft.DueAt,
		ReminderAt:  draft.ReminderAt,
		ContainerID: containerLocalID,
		SyncStatus:  status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.store.InsertTask(task); err != nil {
		return model.Task{}, err
	}
	e.notifyTask(task.LocalID, "created")

	if !container.Synced() {
		return task, nil
	}

	created, err := e.remote.CreateTask(ctx, container.RemoteID, draft)
	if err != nil {
		_, retained, merr := e.store.Mutate(task.LocalID, func(t model.Task) model.Task {
			t.SyncStatus = model.StatusFailed
			return t
		})
		if merr == nil {
			task = retained
			e.notifyTask(task.LocalID, "updated")
		}
		e.logger.Printf("Create failed for task %s, retained locally: %v", task.LocalID, err)
		return task, fmt.Errorf("remote create failed: %w", err)
	}

	_, upgraded, err := e.store.Mutate(task.LocalID, func(t model.Task) model.Task {
		t.RemoteID = created.RemoteID
		t.SyncStatus = model.StatusSynced
		return t
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Deleted locally while the create was in flight. The local
			// delete wins; the remote copy will be dropped by the next
			// full refresh... except it was never Synced locally, so
			// issue the delete now, best effort.
			if derr := e.remote.DeleteTask(ctx, container.RemoteID, created.RemoteID); derr != nil {
				e.logger.Printf("WARNING: failed to delete orphaned remote task %s: %v", created.RemoteID, derr)
			}
			return model.Task{}, fmt.Errorf("task %s: %w", task.LocalID, store.ErrNotFound)
		}
		return model.Task{}, err
	}
	e.notifyTask(task.LocalID, "updated")
	return upgraded, nil
}

// RetryCreate re-attempts the remote create for a task left in the Failed
// state by an earlier CreateTask.
func (e *Engine) RetryCreate(ctx context.Context, localID string) (model.Task, error) {
	task, ok := e.store.Task(localID)
	if !ok {
		return model.Task{}, fmt.Errorf("task %s: %w", localID, store.ErrNotFound)
	}
	if task.SyncStatus != model.StatusFailed {
		return model.Task{}, fmt.Errorf("task %s is %s, not %s", localID, task.SyncStatus, model.StatusFailed)
	}
	container, ok := e.store.Container(task.ContainerID)
	if !ok || !container.Synced() {
		return model.Task{}, fmt.Errorf("task %s: container has no remote counterpart", localID)
	}

	draft := model.Draft{
		Title:      task.Title,
		Notes:      task.Notes,
		Important:  task.Important,
		DueAt:      task.DueAt,
		ReminderAt: task.ReminderAt,
	}
	created, err := e.remote.CreateTask(ctx, container.RemoteID, draft)
	if err != nil {
		return task, fmt.Errorf("remote create failed: %w", err)
	}

	_, upgraded, err := e.store.Mutate(localID, func(t model.Task) model.Task {
		t.RemoteID = created.RemoteID
		t.SyncStatus = model.StatusSynced
		return t
	})
	if err != nil {
		return model.Task{}, err
	}
	e.notifyTask(localID, "updated")
	return upgraded, nil
}

// DeleteTask removes a task locally and, if it had a remote counterpart,
// issues the remote delete.
//
// The local removal always stands: a remote failure is counted, logged and
// returned, never undone. Deleting an unknown local ID is a no-op. A
// remote not-found is treated as success (already deleted elsewhere).
func (e *Engine) DeleteTask(ctx context.Context, localID string) error {
	task, ok := e.store.Task(localID)
	if !ok {
		return nil
	}
	containerRemoteID := ""
	if c, ok := e.store.Container(task.ContainerID); ok {
		containerRemoteID = c.RemoteID
	}

	e.store.Remove(localID)
	e.notifyTask(localID, "deleted")

	if task.RemoteID == "" || containerRemoteID == "" {
		return nil
	}

	if err := e.remote.DeleteTask(ctx, containerRemoteID, task.RemoteID); err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			return nil
		}
		e.failedDeletes.Add(1)
		e.logger.Printf("Remote delete failed for task %s (local removal stands): %v", localID, err)
		return fmt.Errorf("task removed locally, remote delete failed: %w", err)
	}
	return nil
}

// CreateContainer inserts a container immediately and attempts the remote
// create. No dedup by name: creating the same name twice yields two
// containers. On remote failure the container stays local-only and the
// error is returned.
func (e *Engine) CreateContainer(ctx context.Context, name string) (model.Container, error) {
	container := model.Container{
		LocalID: model.NewLocalID(),
		Name:    name,
	}
	if err := e.store.InsertContainer(container); err != nil {
		return model.Container{}, err
	}

	created, err := e.remote.CreateContainer(ctx, name)
	if err != nil {
		e.logger.Printf("Create failed for container %s, retained locally: %v", container.LocalID, err)
		return container, fmt.Errorf("remote create failed: %w", err)
	}

	upgraded, err := e.store.MutateContainer(container.LocalID, func(c model.Container) model.Container {
		c.RemoteID = created.RemoteID
		return c
	})
	if err != nil {
		return model.Container{}, err
	}
	return upgraded, nil
}

// DeleteContainer removes a container and its tasks from the local store.
// The removal is local-only: remote cascade behavior belongs to the remote
// service and is not assumed here.
func (e *Engine) DeleteContainer(localID string) {
	e.store.Remove(localID)
}

// containerRemoteID resolves the remote ID of a task's container.
func (e *Engine) containerRemoteID(containerLocalID string) (string, error) {
	c, ok := e.store.Container(containerLocalID)
	if !ok {
		return "", fmt.Errorf("container %s: %w", containerLocalID, store.ErrNotFound)
	}
	if c.RemoteID == "" {
		return "", fmt.Errorf("container %s has no remote counterpart", containerLocalID)
	}
	return c.RemoteID, nil
}

// rollback restores a task to its pre-mutation value. A not-found error is
// ignored: the task was deleted while the remote call was in flight and
// the delete wins.
func (e *Engine) rollback(localID string, prior model.Task) {
	_, _, err := e.store.Mutate(localID, func(model.Task) model.Task {
		return prior
	})
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		e.logger.Printf("WARNING: rollback failed for task %s: %v", localID, err)
		return
	}
	if err == nil {
		e.notifyTask(localID, "updated")
	}
}

// setPhase updates the session phase and notifies.
func (e *Engine) setPhase(phase model.SyncPhase, syncedAt *time.Time) {
	e.sessionMu.Lock()
	e.session.Phase = phase
	if syncedAt != nil {
		e.session.LastSyncedAt = syncedAt
	}
	session := e.session
	e.sessionMu.Unlock()

	if e.notif != nil {
		e.notif.PhaseChanged(session)
	}
}

func (e *Engine) notifyTask(localID, action string) {
	if e.notif != nil {
		e.notif.TaskChanged(localID, action)
	}
}
