// Package cache provides an embedded SQLite snapshot of the last merged
// store state.
//
// The in-memory store stays authoritative; the cache exists so the CLI can
// show the last known containers and tasks while Offline, before any
// refresh has run. It is written after a successful full sync and read
// once at startup - never an online write path.
//
// The database runs in embedded mode with WAL for concurrent reads.
package cache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rthompson/todosync/internal/model"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Cache wraps the snapshot database connection.
type Cache struct {
	conn *sql.DB
	path string
}

// Open creates a snapshot database connection at the specified path.
//
// If the database doesn't exist, it is created along with the schema.
// The caller MUST call Close() when done.
func Open(path string) (*Cache, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping cache database: %w", err)
	}

	c := &Cache{conn: conn, path: path}

	// WAL for concurrent reads, plus a busy timeout so a second process
	// doesn't fail immediately on a held lock.
	if _, err := c.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := c.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := c.conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := c.InitSchema(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// Close closes the database connection after a WAL checkpoint.
func (c *Cache) Close() error {
	if c.conn == nil {
		return nil
	}
	if _, err := c.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}
	if err := c.conn.Close(); err != nil {
		return fmt.Errorf("failed to close cache database: %w", err)
	}
	c.conn = nil
	return nil
}

// InitSchema creates the snapshot schema if it doesn't exist. Idempotent.
func (c *Cache) InitSchema() error {
	return c.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the snapshot schema with context support.
func (c *Cache) InitSchemaContext(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS containers (
		local_id TEXT PRIMARY KEY,
		remote_id TEXT,
		name TEXT NOT NULL,
		display_hint TEXT,
		position INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tasks (
		local_id TEXT PRIMARY KEY,
		remote_id TEXT,
		title TEXT NOT NULL,
		notes TEXT,
		completed INTEGER NOT NULL DEFAULT 0,
		important INTEGER NOT NULL DEFAULT 0,
		flagged_for_today INTEGER NOT NULL DEFAULT 0,
		due_at TEXT,
		reminder_at TEXT,
		container_id TEXT NOT NULL,
		sync_status TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		position INTEGER NOT NULL,
		FOREIGN KEY (container_id) REFERENCES containers(local_id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_container ON tasks(container_id);
	CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(sync_status);
	`

	if _, err := c.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize cache schema: %w", err)
	}
	return nil
}

// SaveSnapshot replaces the entire snapshot with the given store contents.
// Slice order is preserved and restored by LoadSnapshot.
func (c *Cache) SaveSnapshot(ctx context.Context, containers []model.Container, tasks []model.Task) error {
	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM tasks"); err != nil {
		return fmt.Errorf("failed to clear tasks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM containers"); err != nil {
		return fmt.Errorf("failed to clear containers: %w", err)
	}

	for i, container := range containers {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO containers (local_id, remote_id, name, display_hint, position)
			VALUES (?, ?, ?, ?, ?)`,
			container.LocalID,
			container.RemoteID,
			container.Name,
			container.DisplayHint,
			i,
		)
		if err != nil {
			return fmt.Errorf("failed to insert container %s: %w", container.LocalID, err)
		}
	}

	for i, task := range tasks {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO tasks (
				local_id, remote_id, title, notes,
				completed, important, flagged_for_today,
				due_at, reminder_at, container_id, sync_status,
				created_at, updated_at, position
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			task.LocalID,
			task.RemoteID,
			task.Title,
			task.Notes,
			boolToInt(task.Completed),
			boolToInt(task.Important),
			boolToInt(task.FlaggedForToday),
			timeToNullString(task.DueAt),
			timeToNullString(task.ReminderAt),
			task.ContainerID,
			string(task.SyncStatus),
			task.CreatedAt.Format(time.RFC3339),
			task.UpdatedAt.Format(time.RFC3339),
			i,
		)
		if err != nil {
			return fmt.Errorf("failed to insert task %s: %w", task.LocalID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES ('saved_at', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		time.Now().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("failed to record snapshot time: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads the stored snapshot in its original order.
func (c *Cache) LoadSnapshot(ctx context.Context) ([]model.Container, []model.Task, error) {
	rows, err := c.conn.QueryContext(ctx, `
		SELECT local_id, remote_id, name, display_hint
		FROM containers ORDER BY position ASC`)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query containers: %w", err)
	}
	defer rows.Close()

	var containers []model.Container
	for rows.Next() {
		var container model.Container
		var remoteID, hint sql.NullString
		if err := rows.Scan(&container.LocalID, &remoteID, &container.Name, &hint); err != nil {
			return nil, nil, fmt.Errorf("failed to scan container: %w", err)
		}
		container.RemoteID = remoteID.String
		container.DisplayHint = hint.String
		containers = append(containers, container)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating containers: %w", err)
	}

	taskRows, err := c.conn.QueryContext(ctx, `
		SELECT local_id, remote_id, title, notes,
		       completed, important, flagged_for_today,
		       due_at, reminder_at, container_id, sync_status,
		       created_at, updated_at
		FROM tasks ORDER BY position ASC`)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer taskRows.Close()

	var tasks []model.Task
	for taskRows.Next() {
		var task model.Task
		var remoteID, notes, dueAt, reminderAt sql.NullString
		var completed, important, flagged int
		var status, createdAt, updatedAt string

		err := taskRows.Scan(
			&task.LocalID,
			&remoteID,
			&task.Title,
			&notes,
			&completed,
			&important,
			&flagged,
			&dueAt,
			&reminderAt,
			&task.ContainerID,
			&status,
			&createdAt,
			&updatedAt,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan task: %w", err)
		}

		task.RemoteID = remoteID.String
		task.Notes = notes.String
		task.Completed = completed != 0
		task.Important = important != 0
		task.FlaggedForToday = flagged != 0
		task.SyncStatus = model.SyncStatus(status)
		task.DueAt = nullStringToTime(dueAt)
		task.ReminderAt = nullStringToTime(reminderAt)
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			task.CreatedAt = t
		}
		if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
			task.UpdatedAt = t
		}

		tasks = append(tasks, task)
	}
	if err := taskRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating tasks: %w", err)
	}

	return containers, tasks, nil
}

// SavedAt returns the time of the last snapshot, or the zero time if no
// snapshot has been saved.
func (c *Cache) SavedAt(ctx context.Context) (time.Time, error) {
	var value string
	err := c.conn.QueryRowContext(ctx,
		"SELECT value FROM meta WHERE key = 'saved_at'").Scan(&value)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read snapshot time: %w", err)
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse snapshot time: %w", err)
	}
	return t, nil
}

// boolToInt converts a bool to its SQLite representation.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// timeToNullString converts a time pointer to a nullable string for SQL.
func timeToNullString(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: t.Format(time.RFC3339), Valid: true}
}

// nullStringToTime converts a nullable SQL string to a time pointer.
func nullStringToTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return nil
	}
	return &t
}
