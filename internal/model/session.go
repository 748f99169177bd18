package model

import "time"

// SyncPhase is the process-wide synchronization state.
type SyncPhase string

const (
	// PhaseOffline means no full refresh has succeeded yet, or the most
	// recent one failed at the container-list step.
	PhaseOffline SyncPhase = "offline"

	// PhaseSyncing means a full refresh is in flight.
	PhaseSyncing SyncPhase = "syncing"

	// PhaseSynced means the last full refresh succeeded.
	PhaseSynced SyncPhase = "synced"
)

// SyncSession is the process-wide synchronization status surfaced to the
// UI. There is no terminal phase; the engine is re-entrant for the
// lifetime of the process.
type SyncSession struct {
	Phase        SyncPhase  `json:"phase"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
}
