package core

import "time"

// Store defines the interface for run and finding persistence.
type Store interface {
	Open(path string) error
	Close() error
	InitSchema() error

	// Run operations
	CreateRun(seed uint64, target string) (*Run, error)
	GetRun(id string) (*Run, error)
	CompleteRun(id string, status RunStatus, counters RunCounters, errMsg string) error
	ListRuns(limit int) ([]*Run, error)

	// Finding operations
	RecordFinding(f *Finding) error
	ListFindings(runID string) ([]*Finding, error)
}

// RunStatus represents the status of a fuzzing run.
type RunStatus string

// Run status constants.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// RunCounters are the statement totals of a run.
type RunCounters struct {
	Statements int64
	Failures   int64
}

// Run represents one fuzzing session.
type Run struct {
	ID          string
	Seed        uint64
	Target      string
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	RunCounters
	Error string
}

// Finding is an oracle divergence recorded during a run.
type Finding struct {
	ID           string
	RunID        string
	Step         int64
	Oracle       string
	FirstSQL     string
	SecondSQL    string
	FirstDigest  string
	SecondDigest string
	Detail       string
	CreatedAt    time.Time
}
