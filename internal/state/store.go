// Package state records fuzzing runs and their findings in SQLite.
//
// Note: Core types are defined in pkg/core. This package re-exports them
// via type aliases.
package state

import (
	"github.com/leapstack-labs/leapfuzz/pkg/core"
)

// Type aliases - these types are defined in pkg/core.
type (
	// Store is an alias for core.Store.
	Store = core.Store

	// RunStatus is an alias for core.RunStatus.
	RunStatus = core.RunStatus

	// Run is an alias for core.Run.
	Run = core.Run

	// RunCounters is an alias for core.RunCounters.
	RunCounters = core.RunCounters

	// Finding is an alias for core.Finding.
	Finding = core.Finding
)

// Re-export status constants from core.
const (
	RunStatusRunning   = core.RunStatusRunning
	RunStatusCompleted = core.RunStatusCompleted
	RunStatusFailed    = core.RunStatusFailed
	RunStatusCancelled = core.RunStatusCancelled
)

var _ Store = (*SQLiteStore)(nil)
