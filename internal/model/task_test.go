package model

import (
	"testing"
	"time"
)

func validTask() Task {
	return Task{
		LocalID:     NewLocalID(),
		Title:       "Write report",
		ContainerID: "c1",
		SyncStatus:  StatusLocalOnly,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
}

func TestTaskValidate(t *testing.T) {
	task := validTask()
	if err := task.Validate(); err != nil {
		t.Fatalf("valid task rejected: %v", err)
	}

	missing := validTask()
	missing.Title = ""
	if err := missing.Validate(); err == nil {
		t.Error("expected error for empty title")
	}

	noContainer := validTask()
	noContainer.ContainerID = ""
	if err := noContainer.Validate(); err == nil {
		t.Error("expected error for missing container")
	}
}

func TestTaskValidateRemoteIDInvariant(t *testing.T) {
	// Statuses with no remote counterpart must not carry a remote ID.
	for _, s := range []SyncStatus{StatusLocalOnly, StatusPendingCreate, StatusFailed} {
		task := validTask()
		task.SyncStatus = s
		if err := task.Validate(); err != nil {
			t.Errorf("status %s without remote_id rejected: %v", s, err)
		}
		task.RemoteID = "rt1"
		if err := task.Validate(); err == nil {
			t.Errorf("status %s with remote_id accepted", s)
		}
	}

	// Remote-bound statuses require a remote ID.
	for _, s := range []SyncStatus{StatusSynced, StatusPendingUpdate, StatusPendingDelete} {
		task := validTask()
		task.SyncStatus = s
		if err := task.Validate(); err == nil {
			t.Errorf("status %s without remote_id accepted", s)
		}
		task.RemoteID = "rt1"
		if err := task.Validate(); err != nil {
			t.Errorf("status %s with remote_id rejected: %v", s, err)
		}
	}

	unknown := validTask()
	unknown.SyncStatus = "bogus"
	if err := unknown.Validate(); err == nil {
		t.Error("unknown status accepted")
	}
}

func TestTaskCloneIsDeep(t *testing.T) {
	due := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	task := validTask()
	task.DueAt = &due

	clone := task.Clone()
	*clone.DueAt = clone.DueAt.Add(24 * time.Hour)

	if !task.DueAt.Equal(due) {
		t.Errorf("mutating clone changed original DueAt to %v", task.DueAt)
	}
}

func TestPatchApply(t *testing.T) {
	task := validTask()
	task.Title = "old"
	task.UpdatedAt = time.Now().Add(-time.Hour)

	title := "new"
	done := true
	updated := Patch{Title: &title, Completed: &done}.Apply(task)

	if updated.Title != "new" || !updated.Completed {
		t.Errorf("patch not applied: %+v", updated)
	}
	if updated.LocalID != task.LocalID {
		t.Error("patch changed LocalID")
	}
	if !updated.UpdatedAt.After(task.UpdatedAt) {
		t.Error("UpdatedAt not bumped")
	}
	if task.Title != "old" {
		t.Error("Apply mutated its input")
	}
}

func TestPatchClearDue(t *testing.T) {
	due := time.Now()
	task := validTask()
	task.DueAt = &due

	updated := Patch{ClearDue: true}.Apply(task)
	if updated.DueAt != nil {
		t.Errorf("ClearDue left DueAt = %v", updated.DueAt)
	}
}

func TestPatchIsZero(t *testing.T) {
	if !(Patch{}).IsZero() {
		t.Error("empty patch not zero")
	}
	title := "x"
	if (Patch{Title: &title}).IsZero() {
		t.Error("title patch reported zero")
	}
	if (Patch{ClearReminder: true}).IsZero() {
		t.Error("clear-reminder patch reported zero")
	}
}

func TestPatchRemoteVisible(t *testing.T) {
	flag := true
	if (Patch{FlaggedForToday: &flag}).RemoteVisible() {
		t.Error("My Day flag must not be remote visible")
	}
	if (Patch{Completed: &flag}).RemoteVisible() == false {
		t.Error("completed change must be remote visible")
	}
	if !(Patch{ClearDue: true}).RemoteVisible() {
		t.Error("clearing due date must be remote visible")
	}
}

func TestDraftValidate(t *testing.T) {
	d := Draft{Title: "ok"}
	if err := d.Validate(); err != nil {
		t.Fatalf("valid draft rejected: %v", err)
	}
	empty := Draft{}
	if err := empty.Validate(); err == nil {
		t.Error("empty draft accepted")
	}
}
