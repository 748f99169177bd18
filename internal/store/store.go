// Package store holds the merged local view of containers and tasks.
//
// The store is the only shared mutable resource in the engine. It is owned
// exclusively by the sync engine, which serializes all writes; every
// mutation is a single atomic step under one mutex, so readers always
// observe a consistent snapshot. The store never talks to the network.
package store

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rthompson/todosync/internal/model"
)

// ErrNotFound is returned when an operation references an unknown local ID.
//
// Unlike the remote not-found error, this one indicates a programmer error:
// callers hold local IDs handed out by the store and those are never
// invalidated behind their back except by an explicit Remove.
var ErrNotFound = errors.New("local entity not found")

// Store is the in-memory authoritative representation of containers and
// tasks. Iteration order is insertion order.
type Store struct {
	mu sync.Mutex

	containerOrder []string
	containers     map[string]model.Container

	taskOrder []string
	tasks     map[string]model.Task
}

// New creates an empty store.
func New() *Store {
	return &Store{
		containers: make(map[string]model.Container),
		tasks:      make(map[string]model.Task),
	}
}

// InsertContainer adds a new container. The container must carry a fresh
// LocalID; inserting a duplicate is an error.
func (s *Store) InsertContainer(c model.Container) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid container: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.containers[c.LocalID]; ok {
		return fmt.Errorf("container %s already exists", c.LocalID)
	}
	s.containers[c.LocalID] = c
	s.containerOrder = append(s.containerOrder, c.LocalID)
	return nil
}

// InsertTask adds a new task. The owning container must exist.
func (s *Store) InsertTask(t model.Task) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.containers[t.ContainerID]; !ok {
		return fmt.Errorf("container %s: %w", t.ContainerID, ErrNotFound)
	}
	if _, ok := s.tasks[t.LocalID]; ok {
		return fmt.Errorf("task %s already exists", t.LocalID)
	}
	s.tasks[t.LocalID] = t.Clone()
	s.taskOrder = append(s.taskOrder, t.LocalID)
	return nil
}

// UpsertContainers merges a full remote container listing.
//
// Containers whose RemoteID matches an existing one are refreshed in place:
// the LocalID and the UI-only DisplayHint survive, the name is taken from
// the remote payload. Remote containers seen for the first time are
// appended with fresh LocalIDs. Local-only containers (no RemoteID) are
// preserved untouched. Previously synced containers absent from the new
// listing are removed, unless they still hold unsynced local work, in
// which case they are kept so that work is never discarded.
func (s *Store) UpsertContainers(remote []model.Container) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byRemoteID := make(map[string]string, len(s.containers)) // remoteID -> localID
	for id, c := range s.containers {
		if c.RemoteID != "" {
			byRemoteID[c.RemoteID] = id
		}
	}

	seen := make(map[string]bool, len(remote)) // localIDs refreshed or added
	for _, rc := range remote {
		if rc.RemoteID == "" {
			continue
		}
		if localID, ok := byRemoteID[rc.RemoteID]; ok {
			existing := s.containers[localID]
			existing.Name = rc.Name
			s.containers[localID] = existing
			seen[localID] = true
			continue
		}
		fresh := model.Container{
			LocalID:  model.NewLocalID(),
			RemoteID: rc.RemoteID,
			Name:     rc.Name,
		}
		s.containers[fresh.LocalID] = fresh
		s.containerOrder = append(s.containerOrder, fresh.LocalID)
		seen[fresh.LocalID] = true
	}

	// Drop previously synced containers missing from the new listing.
	for _, id := range append([]string(nil), s.containerOrder...) {
		c := s.containers[id]
		if c.RemoteID == "" || seen[id] {
			continue
		}
		if s.hasUnsyncedTasksLocked(id) {
			continue
		}
		s.removeContainerLocked(id)
	}
}

// UpsertTasksForContainer merges a fresh remote task listing for one
// container.
//
// Every task whose SyncStatus is Synced is replaced by the matching remote
// task (by RemoteID) or removed if no longer present remotely. Tasks in
// any other status are preserved unconditionally: a merge must never
// discard or mutate unsynced local work, and a remote task whose RemoteID
// already belongs to an unsynced local task (an update or delete still in
// flight) is skipped rather than inserted alongside it. The purely local
// FlaggedForToday bit survives a refresh of a matched task.
func (s *Store) UpsertTasksForContainer(containerID string, remote []model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.containers[containerID]; !ok {
		return fmt.Errorf("container %s: %w", containerID, ErrNotFound)
	}

	byRemoteID := make(map[string]string) // remoteID -> localID, any status
	synced := make(map[string]bool)
	for id, t := range s.tasks {
		if t.ContainerID == containerID && t.RemoteID != "" {
			byRemoteID[t.RemoteID] = id
			if t.SyncStatus == model.StatusSynced {
				synced[id] = true
			}
		}
	}

	matched := make(map[string]bool, len(remote)) // localIDs refreshed
	for _, rt := range remote {
		if rt.RemoteID == "" {
			continue
		}
		if localID, ok := byRemoteID[rt.RemoteID]; ok {
			matched[localID] = true
			if !synced[localID] {
				// Pending local work owns this remote ID; leave it alone.
				continue
			}
			fresh := rt.Clone()
			fresh.LocalID = localID
			fresh.ContainerID = containerID
			fresh.SyncStatus = model.StatusSynced
			fresh.FlaggedForToday = s.tasks[localID].FlaggedForToday
			fresh.CreatedAt = s.tasks[localID].CreatedAt
			s.tasks[localID] = fresh
			continue
		}
		fresh := rt.Clone()
		fresh.LocalID = model.NewLocalID()
		fresh.ContainerID = containerID
		fresh.SyncStatus = model.StatusSynced
		s.tasks[fresh.LocalID] = fresh
		s.taskOrder = append(s.taskOrder, fresh.LocalID)
		matched[fresh.LocalID] = true
	}

	// Remove previously synced tasks gone from the remote set.
	for _, localID := range byRemoteID {
		if synced[localID] && !matched[localID] {
			s.removeTaskLocked(localID)
		}
	}
	return nil
}

// Mutate applies fn to the task with the given local ID and returns both
// the prior and the new value, so a failed remote write can roll back to
// the exact pre-mutation state.
func (s *Store) Mutate(localID string, fn func(model.Task) model.Task) (old, updated model.Task, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.tasks[localID]
	if !ok {
		return model.Task{}, model.Task{}, fmt.Errorf("task %s: %w", localID, ErrNotFound)
	}
	old = cur.Clone()
	updated = fn(cur.Clone())
	if updated.LocalID != old.LocalID {
		return model.Task{}, model.Task{}, fmt.Errorf("task %s: local ID must not change", localID)
	}
	if err := updated.Validate(); err != nil {
		return model.Task{}, model.Task{}, fmt.Errorf("mutation produced invalid task: %w", err)
	}
	s.tasks[localID] = updated.Clone()
	return old, updated, nil
}

// MutateContainer applies fn to the container with the given local ID.
func (s *Store) MutateContainer(localID string, fn func(model.Container) model.Container) (model.Container, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.containers[localID]
	if !ok {
		return model.Container{}, fmt.Errorf("container %s: %w", localID, ErrNotFound)
	}
	updated := fn(cur)
	if updated.LocalID != cur.LocalID {
		return model.Container{}, fmt.Errorf("container %s: local ID must not change", localID)
	}
	if err := updated.Validate(); err != nil {
		return model.Container{}, fmt.Errorf("mutation produced invalid container: %w", err)
	}
	s.containers[localID] = updated
	return updated, nil
}

// Remove deletes the task or container with the given local ID. Removing
// a container cascades removal of its tasks locally; remote cascade is the
// remote service's own concern. Removing an absent ID is a no-op.
func (s *Store) Remove(localID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[localID]; ok {
		s.removeTaskLocked(localID)
		return
	}
	if _, ok := s.containers[localID]; ok {
		s.removeContainerLocked(localID)
	}
}

// Task returns a copy of the task with the given local ID.
func (s *Store) Task(localID string) (model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[localID]
	if !ok {
		return model.Task{}, false
	}
	return t.Clone(), true
}

// Container returns a copy of the container with the given local ID, with
// TaskCount computed from the current contents.
func (s *Store) Container(localID string) (model.Container, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.containers[localID]
	if !ok {
		return model.Container{}, false
	}
	c.TaskCount = s.taskCountLocked(localID)
	return c, true
}

// ContainerByRemoteID returns the container with the given remote ID.
func (s *Store) ContainerByRemoteID(remoteID string) (model.Container, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.containerOrder {
		c := s.containers[id]
		if c.RemoteID != "" && c.RemoteID == remoteID {
			c.TaskCount = s.taskCountLocked(id)
			return c, true
		}
	}
	return model.Container{}, false
}

// Tasks returns a snapshot of all tasks in insertion order.
func (s *Store) Tasks() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Task, 0, len(s.taskOrder))
	for _, id := range s.taskOrder {
		out = append(out, s.tasks[id].Clone())
	}
	return out
}

// Containers returns a snapshot of all containers in insertion order, with
// TaskCount computed.
func (s *Store) Containers() []model.Container {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Container, 0, len(s.containerOrder))
	for _, id := range s.containerOrder {
		c := s.containers[id]
		c.TaskCount = s.taskCountLocked(id)
		out = append(out, c)
	}
	return out
}

// Replace swaps the entire store contents. Used to seed the store from an
// offline snapshot at startup, before any sync has run.
func (s *Store) Replace(containers []model.Container, tasks []model.Task) error {
	byID := make(map[string]bool, len(containers))
	for i := range containers {
		if err := containers[i].Validate(); err != nil {
			return fmt.Errorf("invalid container: %w", err)
		}
		byID[containers[i].LocalID] = true
	}
	for i := range tasks {
		if err := tasks[i].Validate(); err != nil {
			return fmt.Errorf("invalid task: %w", err)
		}
		if !byID[tasks[i].ContainerID] {
			return fmt.Errorf("task %s references container %s: %w",
				tasks[i].LocalID, tasks[i].ContainerID, ErrNotFound)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.containerOrder = s.containerOrder[:0]
	s.containers = make(map[string]model.Container, len(containers))
	for _, c := range containers {
		s.containers[c.LocalID] = c
		s.containerOrder = append(s.containerOrder, c.LocalID)
	}
	s.taskOrder = s.taskOrder[:0]
	s.tasks = make(map[string]model.Task, len(tasks))
	for _, t := range tasks {
		s.tasks[t.LocalID] = t.Clone()
		s.taskOrder = append(s.taskOrder, t.LocalID)
	}
	return nil
}

// removeTaskLocked removes a task. Caller holds s.mu.
func (s *Store) removeTaskLocked(localID string) {
	delete(s.tasks, localID)
	for i, id := range s.taskOrder {
		if id == localID {
			s.taskOrder = append(s.taskOrder[:i], s.taskOrder[i+1:]...)
			break
		}
	}
}

// removeContainerLocked removes a container and its tasks. Caller holds s.mu.
func (s *Store) removeContainerLocked(localID string) {
	for _, id := range append([]string(nil), s.taskOrder...) {
		if s.tasks[id].ContainerID == localID {
			s.removeTaskLocked(id)
		}
	}
	delete(s.containers, localID)
	for i, id := range s.containerOrder {
		if id == localID {
			s.containerOrder = append(s.containerOrder[:i], s.containerOrder[i+1:]...)
			break
		}
	}
}

// hasUnsyncedTasksLocked reports whether the container holds any task that
// a merge is not allowed to discard. Caller holds s.mu.
func (s *Store) hasUnsyncedTasksLocked(containerID string) bool {
	for _, t := range s.tasks {
		if t.ContainerID == containerID && t.SyncStatus != model.StatusSynced {
			return true
		}
	}
	return false
}

// taskCountLocked counts tasks owned by the container. Caller holds s.mu.
func (s *Store) taskCountLocked(containerID string) int {
	n := 0
	for _, t := range s.tasks {
		if t.ContainerID == containerID {
			n++
		}
	}
	return n
}
