package daemon

import (
	"context"
	"io"
	"log"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rthompson/todosync/internal/engine"
	"github.com/rthompson/todosync/internal/model"
	"github.com/rthompson/todosync/internal/remote"
	"github.com/rthompson/todosync/internal/store"
)

// countingRemote is a minimal Adapter that counts container listings.
type countingRemote struct {
	listings atomic.Int64
}

func (c *countingRemote) ListContainers(ctx context.Context) ([]model.Container, error) {
	c.listings.Add(1)
	return nil, nil
}

func (c *countingRemote) ListTasks(ctx context.Context, containerRemoteID string) ([]model.Task, error) {
	return nil, nil
}

func (c *countingRemote) CreateTask(ctx context.Context, containerRemoteID string, draft model.Draft) (model.Task, error) {
	return model.Task{}, nil
}

func (c *countingRemote) UpdateTask(ctx context.Context, containerRemoteID, taskRemoteID string, patch model.Patch) (model.Task, error) {
	return model.Task{}, nil
}

func (c *countingRemote) DeleteTask(ctx context.Context, containerRemoteID, taskRemoteID string) error {
	return nil
}

func (c *countingRemote) CreateContainer(ctx context.Context, name string) (model.Container, error) {
	return model.Container{}, nil
}

var _ remote.Adapter = (*countingRemote)(nil)

func testEngine(fake *countingRemote) *engine.Engine {
	return engine.New(store.New(), fake, log.New(io.Discard, "", 0))
}

func TestNewRequiresEngine(t *testing.T) {
	if _, err := New(nil, nil, nil); err == nil {
		t.Fatal("nil engine accepted")
	}
}

func TestNewRequiresReloadWithConfigFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConfigFile = "/tmp/config.yaml"
	if _, err := New(testEngine(&countingRemote{}), nil, cfg); err == nil {
		t.Fatal("config file without reload func accepted")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.SyncInterval <= 0 || cfg.DebounceInterval <= 0 {
		t.Errorf("defaults not positive: %+v", cfg)
	}
}

func TestStartRunsPeriodicRefresh(t *testing.T) {
	fake := &countingRemote{}
	cfg := DefaultConfig()
	cfg.SyncInterval = 20 * time.Millisecond
	cfg.Logger = log.New(io.Discard, "", 0)

	d, err := New(testEngine(fake), nil, cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// One initial refresh plus at least one tick.
	if got := fake.listings.Load(); got < 2 {
		t.Errorf("refresh ran %d times, want at least 2", got)
	}
}
