package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/nao1215/runpipe/internal/config"
	"github.com/nao1215/runpipe/internal/model"
)

// state tracks the controller through one run.
type state int

const (
	stateCreated state = iota
	stateParsed
	statePipesAllocated
	stateLaunching
	stateWaiting
	stateDone
	stateAborted
)

// String returns the state name for logging.
func (s state) String() string {
	switch s {
	case stateCreated:
		return "created"
	case stateParsed:
		return "parsed"
	case statePipesAllocated:
		return "pipes allocated"
	case stateLaunching:
		return "launching"
	case stateWaiting:
		return "waiting"
	case stateDone:
		return "done"
	case stateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Controller runs one pipeline end to end: parse, connect, launch every
// stage in index order, then wait on every stage in index order. A
// controller is single use and not safe for concurrent use; concurrency
// comes from the child processes themselves.
type Controller struct {
	// separator is the literal token that splits stages.
	separator string

	// maxStages bounds how many stages one run may hold.
	maxStages int

	// stdin is inherited by the first stage, stdout by the last stage,
	// and stderr by every stage. The run's diagnostic lines also go to
	// stderr.
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	// logger carries operational detail. The stderr diagnostics above
	// are the user-facing contract and are always written.
	logger *slog.Logger

	// newPipe allocates the pipes connecting adjacent stages.
	newPipe pipeFunc

	state  state
	stages []*stage
}

// Option configures a Controller.
type Option func(*Controller)

// WithSeparator sets the token that splits stages. Empty values are
// ignored.
func WithSeparator(separator string) Option {
	return func(c *Controller) {
		if separator != "" {
			c.separator = separator
		}
	}
}

// WithMaxStages sets the stage limit. Values below one are ignored.
func WithMaxStages(n int) Option {
	return func(c *Controller) {
		if n >= 1 {
			c.maxStages = n
		}
	}
}

// WithStdin sets the reader the first stage inherits.
func WithStdin(r io.Reader) Option {
	return func(c *Controller) {
		c.stdin = r
	}
}

// WithStdout sets the writer the last stage inherits.
func WithStdout(w io.Writer) Option {
	return func(c *Controller) {
		c.stdout = w
	}
}

// WithStderr sets the writer every stage inherits and the destination
// for the run's diagnostic lines.
func WithStderr(w io.Writer) Option {
	return func(c *Controller) {
		c.stderr = w
	}
}

// WithLogger sets a custom logger for the controller.
// If not set, the default logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// New creates a Controller with the default separator, stage limit, and
// standard streams.
func New(opts ...Option) *Controller {
	c := &Controller{
		separator: config.DefaultSeparator,
		maxStages: config.DefaultMaxStages,
		stdin:     os.Stdin,
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		newPipe:   os.Pipe,
		state:     stateCreated,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Run executes the token list as one pipeline. It returns a report with
// one result per stage, and a non-nil error only for fatal conditions:
// malformed input, pipe allocation failure, or process creation failure.
// Per-stage failures, including non-zero exits, signal deaths, and
// missing executables, are recorded in the report and never abort the
// run.
//
// The context is consulted before parsing and again before the launch
// phase. Once stages are launched the run waits for every one of them;
// there is no cancellation mid-pipeline, and a hung stage hangs the run.
func (c *Controller) Run(ctx context.Context, tokens []string) (*model.RunReport, error) {
	if c.state != stateCreated {
		return nil, ErrControllerUsed
	}

	report := model.NewRunReport(tokens, c.separator)

	if err := ctx.Err(); err != nil {
		c.state = stateAborted
		return nil, err
	}

	stages, err := parseTokens(tokens, c.separator, c.maxStages)
	if err != nil {
		c.state = stateAborted
		return nil, err
	}
	c.stages = stages
	c.state = stateParsed
	c.logger.Debug("parsed pipeline",
		"stages", len(stages),
		"separator", c.separator,
	)

	if err := connectStages(c.stages, c.newPipe); err != nil {
		c.abort(0)
		return nil, err
	}
	c.state = statePipesAllocated

	if err := ctx.Err(); err != nil {
		c.abort(0)
		return nil, err
	}

	c.state = stateLaunching
	for i := range c.stages {
		fmt.Fprintf(c.stderr, "Starting program %d:%s\n", i, c.stages[i].name())
		if err := c.launch(i); err != nil {
			c.abort(i)
			return nil, err
		}
	}

	c.state = stateWaiting
	for i, s := range c.stages {
		fmt.Fprintf(c.stderr, "Waiting for program %d:%s\n", i, s.name())
		result := c.waitOn(i)
		report.Stages = append(report.Stages, result)
		fmt.Fprintf(c.stderr, "Program %d:%s exited with %d\n", i, s.name(), result.ExitCode)
	}
	c.state = stateDone
	report.FinishedAt = time.Now()

	fmt.Fprintln(c.stderr, "Parent: Everything is good.")
	c.logger.Debug("pipeline complete",
		"stages", len(c.stages),
		"duration", report.Duration(),
	)
	return report, nil
}

// abort marks the run failed and releases every pipe endpoint still open
// for stages from index onward. Stages already running are left to
// finish on their own; the process is about to exit with the fatal
// error.
func (c *Controller) abort(index int) {
	c.state = stateAborted
	c.releaseFrom(index)
}

// releaseFrom closes every pipe endpoint still open for stages from
// index to the end of the pipeline. Endpoints already handed to children
// and slots that never held one are left alone.
func (c *Controller) releaseFrom(index int) {
	for _, s := range c.stages[index:] {
		if s.in.isOpen() {
			if err := s.in.close(); err != nil {
				c.logger.Warn("failed to close pipe endpoint",
					"command", s.commandLine(),
					"error", err,
				)
			}
		}
		if s.out.isOpen() {
			if err := s.out.close(); err != nil {
				c.logger.Warn("failed to close pipe endpoint",
					"command", s.commandLine(),
					"error", err,
				)
			}
		}
	}
}
