package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nao1215/runpipe/internal/config"
	"github.com/nao1215/runpipe/internal/history"
	"github.com/nao1215/runpipe/internal/model"
	"github.com/nao1215/runpipe/internal/pipeline"
	"github.com/spf13/cobra"
)

// NewBatchCmd creates the batch command.
func NewBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch --file FILE",
		Short: "Run several pipelines listed in a file",
		Long: `Batch reads one pipeline per line from a file and runs each line as its
own pipeline, with a bounded number running at once.

Every line is split on whitespace into the same tokens the run command
takes on the command line, separator tokens included. Blank lines and
lines starting with "#" are skipped.

Stage output still goes to runpipe's stdout, so with --jobs above one
the output of concurrent pipelines can interleave. Progress lines go to
stderr.

Examples:
  # Run every pipeline in the file, one at a time
  runpipe batch --file pipelines.txt

  # Run up to four pipelines at once
  runpipe batch --file pipelines.txt --jobs 4

Pipeline file example:
  # count lines per source file
  cat main.go -- wc -l
  cat parser.go -- wc -l`,
		RunE: runBatchCmd,
	}

	// Batch input flags
	cmd.Flags().StringP("file", "f", "",
		"File with one pipeline per line (required)")
	cmd.Flags().IntP("jobs", "j", config.DefaultJobs,
		"Number of pipelines to run at once")

	// Shared pipeline flags
	cmd.Flags().StringP("separator", "s", config.DefaultSeparator,
		"Token that separates pipeline stages")
	cmd.Flags().Int("max-stages", config.DefaultMaxStages,
		"Maximum number of stages one pipeline may hold")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .runpipe.yml in current or home directory)")

	// History flags
	cmd.Flags().Bool("save", true,
		"Record each run in the history database")
	cmd.Flags().String("db-dir", "",
		"History database directory (default: runpipe under the XDG data directory)")

	return cmd
}

// runBatchCmd executes the batch command.
func runBatchCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildBatchConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	batchFile, err := cmd.Flags().GetString("file")
	if err != nil {
		return err
	}
	if batchFile == "" {
		return errors.New("no pipeline file specified (use --file)")
	}

	pipelines, err := readPipelineFile(batchFile)
	if err != nil {
		return err
	}
	if len(pipelines) == 0 {
		return fmt.Errorf("no pipelines found in %s (file is empty or holds only comments)", batchFile)
	}

	// Set up structured logging
	logger := setupLogger(cfg.Verbose)
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	return runBatch(ctx, cfg, pipelines, logger)
}

// buildBatchConfig creates a Config from the configuration file and the
// batch command flags.
func buildBatchConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()

	// The configuration file is applied first so that explicitly set
	// flags win over file settings.
	if err := applyConfigFile(cmd, cfg); err != nil {
		return nil, err
	}
	if err := applySharedFlags(cmd, cfg); err != nil {
		return nil, err
	}

	var err error
	cfg.Jobs, err = cmd.Flags().GetInt("jobs")
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// readPipelineFile reads one pipeline per line from path. Each line is
// split on whitespace into pipeline tokens. Blank lines and lines
// starting with "#" are skipped.
func readPipelineFile(path string) ([][]string, error) {
	f, err := os.Open(path) //nolint:gosec // User-provided batch file path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to open pipeline file: %w", err)
	}
	defer f.Close()

	var pipelines [][]string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		pipelines = append(pipelines, strings.Fields(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read pipeline file: %w", err)
	}

	return pipelines, nil
}

// runBatch executes every pipeline with a bounded number running at
// once and reports per-pipeline progress on stderr.
func runBatch(ctx context.Context, cfg *config.Config, pipelines [][]string, logger *slog.Logger) error {
	fmt.Fprintf(os.Stderr, "Starting batch run of %d pipelines (jobs: %d)...\n\n",
		len(pipelines), cfg.Jobs)

	startTime := time.Now()

	// Open the history database once for the whole batch. History is a
	// convenience, so open failures degrade to a warning.
	var db *history.DB
	if cfg.SaveHistory {
		var err error
		db, err = history.Open(cfg.DBDir, history.DefaultOptions())
		if err != nil {
			logger.Warn("failed to open history database, runs will not be recorded",
				"dir", cfg.DBDir, "error", err)
		} else {
			defer db.Close()
		}
	}

	// Each pipeline gets a fresh controller because controllers are
	// single use.
	runner := pipeline.NewBatchRunner(
		func() *pipeline.Controller {
			return pipeline.New(
				pipeline.WithSeparator(cfg.Separator),
				pipeline.WithMaxStages(cfg.MaxStages),
				pipeline.WithLogger(logger),
			)
		},
		pipeline.WithJobs(cfg.Jobs),
		pipeline.WithBatchLogger(logger),
	)

	// Callbacks are serialized by the runner, so failed needs no lock.
	var failed int
	err := runner.RunAll(ctx, pipelines, func(index int, runReport *model.RunReport, runErr error) {
		if runErr != nil {
			failed++
			fmt.Fprintf(os.Stderr, "[%d/%d] pipeline failed: %v\n", index+1, len(pipelines), runErr)
			return
		}

		fmt.Fprintf(os.Stderr, "[%d/%d] %s (exit codes: %s)\n",
			index+1, len(pipelines), runReport.Command, runReport.ExitCodes())

		if err := saveRunReport(ctx, db, runReport, logger); err != nil {
			logger.Error("failed to save run report",
				"fingerprint", runReport.ShortFingerprint(), "error", err)
		}
	})

	elapsed := time.Since(startTime)
	fmt.Fprintf(os.Stderr, "\nBatch run completed in %s (%d/%d succeeded)\n",
		elapsed.Round(time.Millisecond), len(pipelines)-failed, len(pipelines))

	return err
}
