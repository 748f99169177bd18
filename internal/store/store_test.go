package store

import (
	"errors"
	"testing"
	"time"

	"github.com/rthompson/todosync/internal/model"
)

// newStoreWithContainer creates a store holding one synced container.
func newStoreWithContainer(t *testing.T) (*Store, model.Container) {
	t.Helper()
	s := New()
	c := model.Container{
		LocalID:  model.NewLocalID(),
		RemoteID: "rl1",
		Name:     "Tasks",
	}
	if err := s.InsertContainer(c); err != nil {
		t.Fatalf("failed to insert container: %v", err)
	}
	return s, c
}

func syncedTask(containerID, remoteID, title string) model.Task {
	now := time.Now()
	return model.Task{
		LocalID:     model.NewLocalID(),
		RemoteID:    remoteID,
		Title:       title,
		ContainerID: containerID,
		SyncStatus:  model.StatusSynced,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func localTask(containerID, title string, status model.SyncStatus) model.Task {
	now := time.Now()
	return model.Task{
		LocalID:     model.NewLocalID(),
		Title:       title,
		ContainerID: containerID,
		SyncStatus:  status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestInsertTaskRequiresContainer(t *testing.T) {
	s := New()
	err := s.InsertTask(localTask("missing", "orphan", model.StatusLocalOnly))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInsertTaskRejectsDuplicate(t *testing.T) {
	s, c := newStoreWithContainer(t)
	task := localTask(c.LocalID, "once", model.StatusLocalOnly)
	if err := s.InsertTask(task); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if err := s.InsertTask(task); err == nil {
		t.Fatal("duplicate insert accepted")
	}
}

func TestUpsertContainersRefreshesInPlace(t *testing.T) {
	s, c := newStoreWithContainer(t)

	s.UpsertContainers([]model.Container{{RemoteID: "rl1", Name: "Renamed"}})

	got, ok := s.Container(c.LocalID)
	if !ok {
		t.Fatal("container lost its local ID across refresh")
	}
	if got.Name != "Renamed" {
		t.Errorf("Name = %q, want Renamed", got.Name)
	}
}

func TestUpsertContainersRemovesAbsentSynced(t *testing.T) {
	s, c := newStoreWithContainer(t)

	s.UpsertContainers([]model.Container{{RemoteID: "rl2", Name: "Other"}})

	if _, ok := s.Container(c.LocalID); ok {
		t.Error("absent synced container survived refresh")
	}
	if _, ok := s.ContainerByRemoteID("rl2"); !ok {
		t.Error("new remote container not added")
	}
}

func TestUpsertContainersKeepsContainerWithUnsyncedWork(t *testing.T) {
	s, c := newStoreWithContainer(t)
	if err := s.InsertTask(localTask(c.LocalID, "draft", model.StatusFailed)); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	s.UpsertContainers(nil)

	if _, ok := s.Container(c.LocalID); !ok {
		t.Error("container holding failed task was discarded")
	}
}

func TestUpsertContainersPreservesLocalOnly(t *testing.T) {
	s := New()
	local := model.Container{LocalID: model.NewLocalID(), Name: "Scratch"}
	if err := s.InsertContainer(local); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	s.UpsertContainers([]model.Container{{RemoteID: "rl1", Name: "Tasks"}})

	if _, ok := s.Container(local.LocalID); !ok {
		t.Error("local-only container discarded by refresh")
	}
}

func TestUpsertTasksReplacesSyncedOnly(t *testing.T) {
	s, c := newStoreWithContainer(t)
	synced := syncedTask(c.LocalID, "rt1", "old title")
	pending := localTask(c.LocalID, "unsent edit", model.StatusPendingCreate)
	failed := localTask(c.LocalID, "kept draft", model.StatusFailed)
	for _, task := range []model.Task{synced, pending, failed} {
		if err := s.InsertTask(task); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	err := s.UpsertTasksForContainer(c.LocalID, []model.Task{
		{RemoteID: "rt1", Title: "new title", SyncStatus: model.StatusSynced},
		{RemoteID: "rt2", Title: "brand new", SyncStatus: model.StatusSynced},
	})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	got, ok := s.Task(synced.LocalID)
	if !ok {
		t.Fatal("synced task lost its local ID")
	}
	if got.Title != "new title" {
		t.Errorf("Title = %q, want refreshed value", got.Title)
	}

	for _, keep := range []model.Task{pending, failed} {
		got, ok := s.Task(keep.LocalID)
		if !ok {
			t.Fatalf("unsynced task %q discarded by merge", keep.Title)
		}
		if got.Title != keep.Title || got.SyncStatus != keep.SyncStatus {
			t.Errorf("unsynced task mutated: %+v", got)
		}
	}

	if len(s.Tasks()) != 4 {
		t.Errorf("task count = %d, want 4", len(s.Tasks()))
	}
}

func TestUpsertTasksRemovesGoneSynced(t *testing.T) {
	s, c := newStoreWithContainer(t)
	gone := syncedTask(c.LocalID, "rt1", "deleted elsewhere")
	if err := s.InsertTask(gone); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	if err := s.UpsertTasksForContainer(c.LocalID, nil); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if _, ok := s.Task(gone.LocalID); ok {
		t.Error("remotely deleted task survived refresh")
	}
}

func TestUpsertTasksPreservesMyDayFlag(t *testing.T) {
	s, c := newStoreWithContainer(t)
	flagged := syncedTask(c.LocalID, "rt1", "flagged")
	flagged.FlaggedForToday = true
	if err := s.InsertTask(flagged); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	err := s.UpsertTasksForContainer(c.LocalID, []model.Task{
		{RemoteID: "rt1", Title: "flagged", SyncStatus: model.StatusSynced},
	})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	got, _ := s.Task(flagged.LocalID)
	if !got.FlaggedForToday {
		t.Error("My Day flag lost across refresh")
	}
}

func TestUpsertTasksSkipsRemoteMatchingPendingWork(t *testing.T) {
	s, c := newStoreWithContainer(t)
	pending := syncedTask(c.LocalID, "rt1", "local edit")
	pending.SyncStatus = model.StatusPendingUpdate
	if err := s.InsertTask(pending); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	// The listing carries the pre-edit remote copy of the same task.
	err := s.UpsertTasksForContainer(c.LocalID, []model.Task{
		{RemoteID: "rt1", Title: "stale remote copy", SyncStatus: model.StatusSynced},
	})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	tasks := s.Tasks()
	if len(tasks) != 1 {
		t.Fatalf("got %d tasks, want 1 (remote copy must not duplicate the pending task)", len(tasks))
	}
	got := tasks[0]
	if got.LocalID != pending.LocalID {
		t.Errorf("surviving task is %s, want the pending one %s", got.LocalID, pending.LocalID)
	}
	if got.Title != "local edit" || got.SyncStatus != model.StatusPendingUpdate {
		t.Errorf("pending task mutated by refresh: %+v", got)
	}
}

func TestMutateReturnsPriorValue(t *testing.T) {
	s, c := newStoreWithContainer(t)
	task := syncedTask(c.LocalID, "rt1", "before")
	if err := s.InsertTask(task); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	old, updated, err := s.Mutate(task.LocalID, func(t model.Task) model.Task {
		t.Title = "after"
		return t
	})
	if err != nil {
		t.Fatalf("mutate failed: %v", err)
	}
	if old.Title != "before" || updated.Title != "after" {
		t.Errorf("old=%q updated=%q", old.Title, updated.Title)
	}

	got, _ := s.Task(task.LocalID)
	if got.Title != "after" {
		t.Errorf("stored title = %q", got.Title)
	}
}

func TestMutateRejectsLocalIDChange(t *testing.T) {
	s, c := newStoreWithContainer(t)
	task := syncedTask(c.LocalID, "rt1", "fixed identity")
	if err := s.InsertTask(task); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	_, _, err := s.Mutate(task.LocalID, func(t model.Task) model.Task {
		t.LocalID = "different"
		return t
	})
	if err == nil {
		t.Fatal("LocalID change accepted")
	}
}

func TestMutateRejectsInvalidResult(t *testing.T) {
	s, c := newStoreWithContainer(t)
	task := syncedTask(c.LocalID, "rt1", "valid")
	if err := s.InsertTask(task); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	_, _, err := s.Mutate(task.LocalID, func(t model.Task) model.Task {
		t.RemoteID = "" // synced without remote_id violates the invariant
		return t
	})
	if err == nil {
		t.Fatal("invalid mutation accepted")
	}

	got, _ := s.Task(task.LocalID)
	if got.RemoteID != "rt1" {
		t.Error("failed mutation modified the stored task")
	}
}

func TestRemoveContainerCascades(t *testing.T) {
	s, c := newStoreWithContainer(t)
	task := localTask(c.LocalID, "goes with the list", model.StatusLocalOnly)
	if err := s.InsertTask(task); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	s.Remove(c.LocalID)

	if _, ok := s.Task(task.LocalID); ok {
		t.Error("task survived container removal")
	}
	if len(s.Containers()) != 0 {
		t.Error("container survived removal")
	}
}

func TestRemoveUnknownIsNoOp(t *testing.T) {
	s := New()
	s.Remove("nope") // must not panic
}

func TestTasksInsertionOrder(t *testing.T) {
	s, c := newStoreWithContainer(t)
	titles := []string{"first", "second", "third"}
	for _, title := range titles {
		if err := s.InsertTask(localTask(c.LocalID, title, model.StatusLocalOnly)); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	got := s.Tasks()
	for i, title := range titles {
		if got[i].Title != title {
			t.Errorf("position %d = %q, want %q", i, got[i].Title, title)
		}
	}
}

func TestContainerTaskCount(t *testing.T) {
	s, c := newStoreWithContainer(t)
	for i := 0; i < 3; i++ {
		if err := s.InsertTask(localTask(c.LocalID, "t", model.StatusLocalOnly)); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}
	got, _ := s.Container(c.LocalID)
	if got.TaskCount != 3 {
		t.Errorf("TaskCount = %d, want 3", got.TaskCount)
	}
}

func TestReplaceRejectsOrphanTask(t *testing.T) {
	s := New()
	err := s.Replace(nil, []model.Task{localTask("ghost", "orphan", model.StatusLocalOnly)})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
