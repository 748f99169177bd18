// Package daemon runs the sync engine on a schedule.
//
// The daemon:
//  1. Performs a full refresh on startup and on a fixed interval
//  2. Saves an offline snapshot after each successful refresh
//  3. Watches the config file and picks up interval changes without restart
//  4. Handles graceful shutdown
package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rthompson/todosync/internal/cache"
	"github.com/rthompson/todosync/internal/engine"
)

// ReloadFunc re-reads the configuration and returns the current sync
// interval. Called after the watched config file changes.
type ReloadFunc func() (time.Duration, error)

// Config holds configuration for the daemon.
type Config struct {
	// SyncInterval is how often to run a full refresh.
	SyncInterval time.Duration

	// DebounceInterval is how long to wait after a config file event
	// before reloading. This batches rapid editor writes together.
	DebounceInterval time.Duration

	// ConfigFile is the path to watch for configuration changes.
	// Empty disables watching.
	ConfigFile string

	// Reload re-reads the config. Required when ConfigFile is set.
	Reload ReloadFunc

	// Logger for daemon activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		SyncInterval:     5 * time.Minute,
		DebounceInterval: 500 * time.Millisecond,
		Logger:           log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon schedules full refreshes against the engine.
type Daemon struct {
	engine *engine.Engine
	snap   *cache.Cache // may be nil
	config *Config

	watcher    *fsnotify.Watcher
	pendingMu  sync.Mutex
	pendingAt  time.Time
	intervalCh chan time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Daemon. snap may be nil to disable snapshot writes.
func New(eng *engine.Engine, snap *cache.Cache, config *Config) (*Daemon, error) {
	if eng == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[daemon] ", log.LstdFlags)
	}
	if config.SyncInterval <= 0 {
		config.SyncInterval = 5 * time.Minute
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = 500 * time.Millisecond
	}
	if config.ConfigFile != "" && config.Reload == nil {
		return nil, fmt.Errorf("reload func required when watching a config file")
	}

	var watcher *fsnotify.Watcher
	if config.ConfigFile != "" {
		var err error
		watcher, err = fsnotify.NewWatcher()
		if err != nil {
			return nil, fmt.Errorf("failed to create watcher: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		engine:     eng,
		snap:       snap,
		config:     config,
		watcher:    watcher,
		intervalCh: make(chan time.Duration, 1),
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// Start begins the daemon's operation. This blocks until ctx is cancelled.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Printf("Starting daemon (interval %v)", d.config.SyncInterval)

	// Initial refresh. A failure here is not fatal: the daemon keeps its
	// schedule and the next tick retries.
	d.refresh(ctx)

	if d.watcher != nil {
		// Watch the directory, not the file: editors replace config
		// files by rename, which drops a file-level watch.
		dir := filepath.Dir(d.config.ConfigFile)
		if err := d.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch config directory: %w", err)
		}
		d.config.Logger.Printf("Watching config: %s", d.config.ConfigFile)

		d.wg.Add(2)
		go d.watchConfigEvents()
		go d.processConfigChanges()
	}

	d.wg.Add(1)
	go d.syncLoop(ctx)

	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon.
func (d *Daemon) Stop() error {
	d.config.Logger.Println("Stopping daemon")

	d.cancel()

	if d.watcher != nil {
		if err := d.watcher.Close(); err != nil {
			d.config.Logger.Printf("Error closing watcher: %v", err)
		}
	}

	d.wg.Wait()

	d.config.Logger.Println("Daemon stopped")
	return nil
}

// syncLoop runs full refreshes on the configured interval. Interval
// updates from the config watcher reset the ticker.
func (d *Daemon) syncLoop(ctx context.Context) {
	defer d.wg.Done()

	interval := d.config.SyncInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case next := <-d.intervalCh:
			if next > 0 && next != interval {
				d.config.Logger.Printf("Sync interval changed: %v -> %v", interval, next)
				interval = next
				ticker.Reset(interval)
			}

		case <-ticker.C:
			d.refresh(ctx)
		}
	}
}

// refresh runs one full refresh and saves the snapshot on success.
func (d *Daemon) refresh(ctx context.Context) {
	result, err := d.engine.RunFullSync(ctx)
	if err != nil {
		d.config.Logger.Printf("Refresh failed: %v", err)
		return
	}
	if len(result.FailedContainers) > 0 {
		d.config.Logger.Printf("Refresh partial: %d containers failed", len(result.FailedContainers))
	}

	if d.snap == nil {
		return
	}
	if err := d.snap.SaveSnapshot(ctx, d.engine.Containers(), d.engine.Tasks()); err != nil {
		d.config.Logger.Printf("Warning: failed to save snapshot: %v", err)
	}
}

// watchConfigEvents monitors filesystem events on the config file and
// queues a reload.
func (d *Daemon) watchConfigEvents() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if filepath.Clean(event.Name) != filepath.Clean(d.config.ConfigFile) {
				continue
			}
			d.pendingMu.Lock()
			d.pendingAt = time.Now()
			d.pendingMu.Unlock()

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// processConfigChanges reloads the config once events have settled for a
// debounce interval.
func (d *Daemon) processConfigChanges() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.DebounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			d.pendingMu.Lock()
			pending := !d.pendingAt.IsZero() && time.Since(d.pendingAt) >= d.config.DebounceInterval
			if pending {
				d.pendingAt = time.Time{}
			}
			d.pendingMu.Unlock()

			if !pending {
				continue
			}

			interval, err := d.config.Reload()
			if err != nil {
				d.config.Logger.Printf("Config reload failed: %v", err)
				continue
			}
			select {
			case d.intervalCh <- interval:
			default:
			}
		}
	}
}
