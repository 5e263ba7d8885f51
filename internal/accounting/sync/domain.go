package sync

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus enumerates synchronization run states.
type RunStatus string

const (
	RunInProgress RunStatus = "IN_PROGRESS"
	RunCompleted  RunStatus = "COMPLETED"
	RunFailed     RunStatus = "FAILED"
	// RunCancelled is reserved for cooperative cancellation between pages;
	// nothing sets it yet.
	RunCancelled RunStatus = "CANCELLED"
)

// Run is one synchronization attempt against the registry. Every run gets its
// own identifier, so concurrent manual and scheduled triggers are logged as
// separate rows instead of fighting over a singleton flag.
type Run struct {
	ID           uuid.UUID
	StartedAt    time.Time
	FinishedAt   *time.Time
	Status       RunStatus
	Downloaded   int
	Saved        int
	ErrorCount   int
	ErrorMessage string
	Manual       bool
	Duration     time.Duration
}

// Summary is the caller-facing outcome of one run.
type Summary struct {
	RunID      uuid.UUID     `json:"run_id"`
	Status     RunStatus     `json:"status"`
	Downloaded int           `json:"downloaded"`
	Saved      int           `json:"saved"`
	ErrorCount int           `json:"error_count"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
}
