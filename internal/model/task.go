// Package model defines the task and container entities held by the local
// store, together with the per-entity synchronization status that drives
// the engine's reconciliation decisions.
package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SyncStatus marks where a task stands in the local/remote reconciliation
// lifecycle. The remote identifier and the status move together: a task
// with a remote ID is at least Synced-shaped, a task without one has never
// been confirmed by the remote service.
type SyncStatus string

const (
	// StatusLocalOnly marks a task that will never be synced because its
	// container has no remote counterpart.
	StatusLocalOnly SyncStatus = "local_only"

	// StatusPendingCreate marks a task inserted locally whose remote
	// create has not been confirmed yet.
	StatusPendingCreate SyncStatus = "pending_create"

	// StatusPendingUpdate marks a task whose local edit has not been
	// confirmed by the remote service yet.
	StatusPendingUpdate SyncStatus = "pending_update"

	// StatusSynced marks a task that matches the last known remote state.
	StatusSynced SyncStatus = "synced"

	// StatusPendingDelete marks a task whose remote delete is in flight.
	StatusPendingDelete SyncStatus = "pending_delete"

	// StatusFailed marks a task whose remote create failed. The task is
	// retained locally so the user keeps their content and may retry.
	StatusFailed SyncStatus = "failed"
)

// Task is a unit of work.
//
// LocalID is assigned once at creation and never changes; the UI references
// tasks by it across the pending-create -> synced upgrade. RemoteID is
// assigned at most once, when the remote service confirms a create.
type Task struct {
	LocalID  string `json:"local_id"`
	RemoteID string `json:"remote_id,omitempty"`

	Title     string `json:"title"`
	Notes     string `json:"notes,omitempty"`
	Completed bool   `json:"completed"`
	Important bool   `json:"important"`

	// FlaggedForToday is a purely local concept ("My Day"). It has no
	// remote equivalent and is never sent to the remote adapter.
	FlaggedForToday bool `json:"flagged_for_today"`

	DueAt      *time.Time `json:"due_at,omitempty"`
	ReminderAt *time.Time `json:"reminder_at,omitempty"`

	// ContainerID is the LocalID of the owning container.
	ContainerID string `json:"container_id"`

	SyncStatus SyncStatus `json:"sync_status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewLocalID allocates a fresh local identifier. Local IDs are opaque and
// never reused.
func NewLocalID() string {
	return uuid.NewString()
}

// Validate checks field values and the remote-ID/status invariant.
func (t *Task) Validate() error {
	if t.LocalID == "" {
		return fmt.Errorf("local_id is required")
	}
	if t.Title == "" {
		return fmt.Errorf("title is required")
	}
	if t.ContainerID == "" {
		return fmt.Errorf("container_id is required")
	}
	switch t.SyncStatus {
	case StatusLocalOnly, StatusPendingCreate, StatusFailed:
		if t.RemoteID != "" {
			return fmt.Errorf("task %s: status %s requires no remote_id", t.LocalID, t.SyncStatus)
		}
	case StatusSynced, StatusPendingUpdate, StatusPendingDelete:
		if t.RemoteID == "" {
			return fmt.Errorf("task %s: status %s requires a remote_id", t.LocalID, t.SyncStatus)
		}
	default:
		return fmt.Errorf("task %s: unknown sync status %q", t.LocalID, t.SyncStatus)
	}
	return nil
}

// Clone returns a deep copy of the task. Pointer-typed timestamps are
// copied so a clone can be held as a rollback value while the original is
// mutated.
func (t Task) Clone() Task {
	c := t
	if t.DueAt != nil {
		due := *t.DueAt
		c.DueAt = &due
	}
	if t.ReminderAt != nil {
		rem := *t.ReminderAt
		c.ReminderAt = &rem
	}
	return c
}

// Draft carries the user-supplied fields of a task create request.
type Draft struct {
	Title      string
	Notes      string
	Important  bool
	DueAt      *time.Time
	ReminderAt *time.Time
}

// Validate checks the draft before a task is allocated from it.
func (d *Draft) Validate() error {
	if d.Title == "" {
		return fmt.Errorf("title is required")
	}
	return nil
}

// Patch describes a partial task edit. Nil pointers leave the field
// untouched; ClearDue/ClearReminder unset the corresponding timestamp.
type Patch struct {
	Title           *string
	Notes           *string
	Completed       *bool
	Important       *bool
	FlaggedForToday *bool

	DueAt    *time.Time
	ClearDue bool

	ReminderAt    *time.Time
	ClearReminder bool
}

// Apply returns a copy of t with the patch applied. UpdatedAt is bumped.
func (p Patch) Apply(t Task) Task {
	out := t.Clone()
	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.Notes != nil {
		out.Notes = *p.Notes
	}
	if p.Completed != nil {
		out.Completed = *p.Completed
	}
	if p.Important != nil {
		out.Important = *p.Important
	}
	if p.FlaggedForToday != nil {
		out.FlaggedForToday = *p.FlaggedForToday
	}
	if p.ClearDue {
		out.DueAt = nil
	} else if p.DueAt != nil {
		due := *p.DueAt
		out.DueAt = &due
	}
	if p.ClearReminder {
		out.ReminderAt = nil
	} else if p.ReminderAt != nil {
		rem := *p.ReminderAt
		out.ReminderAt = &rem
	}
	out.UpdatedAt = time.Now()
	return out
}

// IsZero reports whether the patch changes nothing.
func (p Patch) IsZero() bool {
	return p.Title == nil && p.Notes == nil && p.Completed == nil &&
		p.Important == nil && p.FlaggedForToday == nil &&
		p.DueAt == nil && !p.ClearDue &&
		p.ReminderAt == nil && !p.ClearReminder
}

// RemoteVisible reports whether the patch touches any field the remote
// service knows about. A patch that only flips FlaggedForToday is terminal
// locally and must not trigger a remote call.
func (p Patch) RemoteVisible() bool {
	return p.Title != nil || p.Notes != nil || p.Completed != nil ||
		p.Important != nil ||
		p.DueAt != nil || p.ClearDue ||
		p.ReminderAt != nil || p.ClearReminder
}
