package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/runpipe/internal/model"
)

// BatchRunner executes several independent pipelines with a bounded
// number running at once. Each pipeline gets a fresh Controller from the
// factory; controllers are single use.
type BatchRunner struct {
	// factory creates the controller for one pipeline. It is called once
	// per pipeline so no controller state leaks between runs.
	factory func() *Controller

	// jobs is the maximum number of pipelines running at once.
	jobs int

	// logger is used for batch-level logging.
	logger *slog.Logger

	// mu serializes result callbacks.
	mu sync.Mutex
}

// BatchOption configures a BatchRunner.
type BatchOption func(*BatchRunner)

// WithJobs sets how many pipelines may run at once. The default is 1,
// which runs pipelines one after another. Values below one are ignored.
func WithJobs(n int) BatchOption {
	return func(b *BatchRunner) {
		if n > 0 {
			b.jobs = n
		}
	}
}

// WithBatchLogger sets a custom logger for batch runs.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchRunner) {
		b.logger = logger
	}
}

// NewBatchRunner creates a BatchRunner that builds one controller per
// pipeline with the given factory.
func NewBatchRunner(factory func() *Controller, opts ...BatchOption) *BatchRunner {
	b := &BatchRunner{
		factory: factory,
		jobs:    1,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	return b
}

// RunAll executes every token list as its own pipeline, at most jobs at
// a time, and calls callback once per pipeline with its position in the
// input, its report, and its fatal error if any. Callbacks are
// serialized, so they may touch shared state; the report is nil when the
// pipeline failed before producing one. A failed pipeline does not stop
// the rest of the batch; the returned error reports cancellation only.
func (b *BatchRunner) RunAll(ctx context.Context, pipelines [][]string, callback func(index int, report *model.RunReport, err error)) error {
	b.logger.Info("starting batch run",
		"pipelines", len(pipelines),
		"jobs", b.jobs,
	)
	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.jobs)

	for i, tokens := range pipelines {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			report, err := b.factory().Run(ctx, tokens)
			if err != nil {
				b.logger.Warn("pipeline failed",
					"index", i,
					"error", err,
				)
			}

			b.mu.Lock()
			callback(i, report, err)
			b.mu.Unlock()
			return nil
		})
	}

	err := g.Wait()
	b.logger.Info("batch run complete",
		"pipelines", len(pipelines),
		"elapsed", time.Since(start),
	)
	return err
}
