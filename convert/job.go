// Package convert schedules FLAC to Opus conversions across a bounded pool
// of workers and keeps the state of every job.
package convert

import (
	"fmt"
	"path/filepath"
	"time"
)

// Status is the lifecycle state of a job
type Status int

const (
	StatusPending Status = iota
	StatusConverting
	StatusCompleted
	StatusFailed
	StatusSkipped
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusConverting:
		return "converting"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	case StatusCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Terminal reports whether a job in this state will not change again
// within a run
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusSkipped, StatusCancelled:
		return true
	}
	return false
}

// isValidTransition enforces the job state machine edges
func isValidTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusConverting
	case StatusConverting:
		return to.Terminal()
	default:
		return false
	}
}

// Job is one input file and the state of its conversion
type Job struct {
	InputPath  string
	RelPath    string
	OutputPath string
	Size       int64
	Status     Status
	Progress   int // percent, meaningful while converting
	Error      string
	Started    time.Time
	Finished   time.Time
}

// Name is the input file name without its directory
func (j Job) Name() string {
	return filepath.Base(j.InputPath)
}

// Elapsed is how long the job ran, or has been running as of now
func (j Job) Elapsed(now time.Time) time.Duration {
	switch {
	case j.Started.IsZero():
		return 0
	case j.Finished.IsZero():
		return now.Sub(j.Started)
	}
	return j.Finished.Sub(j.Started)
}
