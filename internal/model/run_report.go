package model

import (
	"strconv"
	"strings"
	"time"
)

// WaitErrorExitCode is the distinguished exit code reported for a stage
// whose termination status could not be retrieved: the stage never
// started or its wait call failed. Real exit codes land in [0,255], so
// the value is out of band.
const WaitErrorExitCode = -1

// Termination labels returned by StageResult.Termination.
const (
	TerminationExited      = "exited"
	TerminationSignaled    = "signaled"
	TerminationLaunchError = "launch error"
	TerminationWaitError   = "wait error"
)

// RunReport is the record of one pipeline run.
type RunReport struct {
	// ID is the history database row id, zero until the run is saved.
	ID int64 `json:"id,omitempty"`

	// Fingerprint is the hex SHA3-256 digest of the run's token list.
	// It identifies a pipeline shape across runs.
	Fingerprint string `json:"fingerprint"`

	// Command is the full token list joined for display, separator
	// tokens included.
	Command string `json:"command"`

	// Separator is the token that split the stages.
	Separator string `json:"separator"`

	// StartedAt and FinishedAt bracket the run from parsing to the last
	// collected exit status.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Stages holds one result per stage, in launch order.
	Stages []StageResult `json:"stages"`
}

// StageResult is the terminal status of one stage.
type StageResult struct {
	// Index is the stage's position in the pipeline, starting at zero.
	Index int `json:"index"`

	// Command is the stage's command line.
	Command string `json:"command"`

	// PID is the stage's process id, zero when the stage never started.
	PID int `json:"pid"`

	// ExitCode is the stage's exit code: the program's own code in
	// [0,255] for a normal exit, 128 plus the signal number for a signal
	// death, 127 or 126 for an executable that could not be started, or
	// WaitErrorExitCode when the status could not be retrieved.
	ExitCode int `json:"exit_code"`

	// Signal is the signal name, for example "SIGTERM", when the stage
	// died from a signal.
	Signal string `json:"signal,omitempty"`

	// LaunchError describes an executable that could not be started.
	LaunchError string `json:"launch_error,omitempty"`

	// WaitError describes a termination status that could not be
	// retrieved.
	WaitError string `json:"wait_error,omitempty"`
}

// NewRunReport creates a report for the given token list. Stage results
// are appended as the run's wait phase collects them.
func NewRunReport(tokens []string, separator string) *RunReport {
	return &RunReport{
		Fingerprint: Fingerprint(tokens),
		Command:     strings.Join(tokens, " "),
		Separator:   separator,
		StartedAt:   time.Now(),
		Stages:      make([]StageResult, 0),
	}
}

// ShortFingerprint returns the first 12 hex digits of the fingerprint
// for compact display.
func (r *RunReport) ShortFingerprint() string {
	if len(r.Fingerprint) < 12 {
		return r.Fingerprint
	}
	return r.Fingerprint[:12]
}

// Duration returns how long the run took. It is zero until the run
// finishes.
func (r *RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// StageCount returns the number of stage results collected so far.
func (r *RunReport) StageCount() int {
	return len(r.Stages)
}

// ExitCodes returns every stage's exit code in stage order as a compact
// one-line string, such as "0,1,143".
func (r *RunReport) ExitCodes() string {
	codes := make([]string, len(r.Stages))
	for i, s := range r.Stages {
		codes[i] = strconv.Itoa(s.ExitCode)
	}
	return strings.Join(codes, ",")
}

// Termination classifies how the stage ended: exited, signaled, launch
// error, or wait error.
func (s *StageResult) Termination() string {
	switch {
	case s.LaunchError != "":
		return TerminationLaunchError
	case s.WaitError != "":
		return TerminationWaitError
	case s.Signal != "":
		return TerminationSignaled
	default:
		return TerminationExited
	}
}
