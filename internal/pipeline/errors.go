package pipeline

import "errors"

// Fatal pipeline errors. The controller aborts the whole run when one of
// these is returned. Per-stage termination statuses are reported in the
// run's report instead and never surface as errors.
var (
	// ErrNoPrograms is returned when the token list contains no tokens
	// at all, so there is nothing to run.
	ErrNoPrograms = errors.New("no programs specified: provide at least one command")

	// ErrEmptyStage is returned when a separator leaves a stage without
	// a command: a leading, doubled, or trailing separator.
	ErrEmptyStage = errors.New("empty stage: each separator needs a command on both sides")

	// ErrTooManyStages is returned when the token list holds more stages
	// than the configured maximum.
	ErrTooManyStages = errors.New("too many stages")

	// ErrPipeCreation is returned when the OS refuses to allocate a pipe
	// between two adjacent stages.
	ErrPipeCreation = errors.New("pipe creation failed")

	// ErrProcessCreation is returned when a stage process cannot be
	// created for a reason other than a missing or unrunnable
	// executable. Missing executables fail only their own stage.
	ErrProcessCreation = errors.New("process creation failed")

	// ErrControllerUsed is returned when Run is called on a controller
	// that already ran. A controller drives exactly one pipeline.
	ErrControllerUsed = errors.New("controller already used: create a new controller per run")

	// ErrDescriptorState is returned when a descriptor slot is moved to
	// a state it cannot reach, such as closing an already closed slot.
	ErrDescriptorState = errors.New("descriptor slot in invalid state")
)
