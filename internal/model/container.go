package model

import "fmt"

// Container is a named grouping of tasks (a "list").
type Container struct {
	LocalID  string `json:"local_id"`
	RemoteID string `json:"remote_id,omitempty"`

	Name string `json:"name"`

	// DisplayHint is a UI-only icon/color hint. Never sent remote.
	DisplayHint string `json:"display_hint,omitempty"`

	// TaskCount is derived from the store contents and never stored
	// authoritatively.
	TaskCount int `json:"-"`
}

// Validate checks field values.
func (c *Container) Validate() error {
	if c.LocalID == "" {
		return fmt.Errorf("local_id is required")
	}
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	return nil
}

// Synced reports whether the container has a remote counterpart. Tasks
// created in an unsynced container are local-only.
func (c *Container) Synced() bool {
	return c.RemoteID != ""
}
