package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/nao1215/runpipe/internal/config"
	"github.com/nao1215/runpipe/internal/history"
	"github.com/nao1215/runpipe/internal/log"
	"github.com/nao1215/runpipe/internal/model"
	"github.com/nao1215/runpipe/internal/pipeline"
	"github.com/nao1215/runpipe/internal/report"
	"github.com/spf13/cobra"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run PROGRAM [ARG...] [-- PROGRAM [ARG...]]...",
		Short: "Launch a pipeline of programs and report their exit statuses",
		Long: `Run launches every program in the pipeline, connecting each stage's
stdout to the next stage's stdin the way a shell runs "a | b | c". It
waits for all programs and reports how each one exited.

Stages are separated by the "--" token. The first stage reads runpipe's
stdin and the last stage writes to runpipe's stdout. Diagnostics and the
post-run summary go to stderr, so they never mix with pipeline data.

A stage that cannot be launched does not abort the pipeline: it is
recorded with exit code 127 (not found) or 126 (not executable) and the
neighbouring stages see end-of-file.

Examples:
  # Count the files in the current directory
  runpipe run ls -- wc -l

  # Three stages with a custom separator
  runpipe run --separator :: cat access.log :: grep -i error :: wc -l

  # Put -- before the first program when it starts with a dash
  runpipe run -- grep -i error -- wc -l

  # Run a pipeline defined in .runpipe.yml
  runpipe run --pipeline count-errors

  # Print a JSON summary after the run
  runpipe run --report json ls -- wc -l

Configuration file (.runpipe.yml) example:
  defaults:
    max_stages: 16
    report: simple
  pipelines:
    count-errors:
      - grep
      - -i
      - error
      - "--"
      - wc
      - -l`,
		Args: cobra.ArbitraryArgs,
		RunE: runRunCmd,
	}

	// Flag parsing stops at the first program token so stage arguments
	// and separator tokens reach the pipeline parser untouched.
	cmd.Flags().SetInterspersed(false)

	// Pipeline shape flags
	cmd.Flags().StringP("separator", "s", config.DefaultSeparator,
		"Token that separates pipeline stages")
	cmd.Flags().Int("max-stages", config.DefaultMaxStages,
		"Maximum number of stages one pipeline may hold")
	cmd.Flags().StringP("pipeline", "p", "",
		"Run a named pipeline from the configuration file")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .runpipe.yml in current or home directory)")

	// Report flags
	cmd.Flags().StringP("report", "r", "",
		"Post-run summary format: simple, json, or markdown (default: no summary)")
	cmd.Flags().String("report-file", "",
		"Write the summary to the specified file as well (creates directories if needed)")

	// History flags
	cmd.Flags().Bool("save", true,
		"Record the run in the history database")
	cmd.Flags().String("db-dir", "",
		"History database directory (default: runpipe under the XDG data directory)")

	return cmd
}

// runRunCmd executes the run command.
func runRunCmd(cmd *cobra.Command, args []string) error {
	// Build config from the configuration file and flags
	cfg, err := buildRunConfig(cmd, args)
	if err != nil {
		return err
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
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

	return runPipeline(ctx, cfg, logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildRunConfig creates a Config from the configuration file and the
// run command flags.
func buildRunConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
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

	if cmd.Flags().Changed("report") {
		cfg.Report, err = cmd.Flags().GetString("report")
		if err != nil {
			return nil, err
		}
	}

	cfg.ReportFile, err = cmd.Flags().GetString("report-file")
	if err != nil {
		return nil, err
	}

	// Resolve the pipeline tokens from positional arguments or from a
	// named pipeline in the configuration file.
	pipelineName, err := cmd.Flags().GetString("pipeline")
	if err != nil {
		return nil, err
	}

	cfg.Tokens, err = resolveTokens(cfg, pipelineName, args)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyConfigFile locates the configuration file and folds its settings
// into cfg.
// If user explicitly specified a config file path, error if not found.
// If no path specified, silently skip when no file is found.
func applyConfigFile(cmd *cobra.Command, cfg *config.Config) error {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	cfg.ConfigFilePath = path

	explicitConfigPath := path != ""
	configPath := config.FindConfigFile(path)

	if configPath == "" {
		if explicitConfigPath {
			return fmt.Errorf("configuration file not found: %s", path)
		}
		return nil
	}

	file, err := config.LoadConfigFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config file %s: %w", configPath, err)
	}
	cfg.ApplyFile(file)

	return nil
}

// applySharedFlags folds the flags shared by the run and batch commands
// into cfg. Only flags the user explicitly set are applied, so file
// settings survive for the rest.
func applySharedFlags(cmd *cobra.Command, cfg *config.Config) error {
	var err error

	if cmd.Flags().Changed("separator") {
		cfg.Separator, err = cmd.Flags().GetString("separator")
		if err != nil {
			return err
		}
	}

	if cmd.Flags().Changed("max-stages") {
		cfg.MaxStages, err = cmd.Flags().GetInt("max-stages")
		if err != nil {
			return err
		}
	}

	if cmd.Flags().Changed("save") {
		cfg.SaveHistory, err = cmd.Flags().GetBool("save")
		if err != nil {
			return err
		}
	}

	if cmd.Flags().Changed("db-dir") {
		cfg.DBDir, err = cmd.Flags().GetString("db-dir")
		if err != nil {
			return err
		}
	}

	cfg.Verbose = getVerboseFlag(cmd)

	return nil
}

// resolveTokens returns the pipeline token list from positional
// arguments or from the named pipeline. The two sources are mutually
// exclusive.
func resolveTokens(cfg *config.Config, pipelineName string, args []string) ([]string, error) {
	if pipelineName == "" {
		if len(args) == 0 {
			return nil, config.ErrNoPipeline
		}
		return args, nil
	}

	if len(args) > 0 {
		return nil, fmt.Errorf("cannot combine --pipeline %s with program tokens on the command line", pipelineName)
	}

	if cfg.Pipelines == nil {
		return nil, fmt.Errorf("%w: %q (no configuration file found)", config.ErrPipelineNotFound, pipelineName)
	}

	tokens, ok := cfg.Pipelines.GetPipeline(pipelineName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", config.ErrPipelineNotFound, pipelineName)
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: pipeline %q is empty", config.ErrNoPipeline, pipelineName)
	}

	return tokens, nil
}

// setupLogger creates the process-wide logger. Launched command lines
// pass through it, so credential-looking values are masked.
func setupLogger(verbose bool) *slog.Logger {
	return log.NewLogger(os.Stderr, verbose)
}

// runPipeline executes one pipeline run and handles its report and
// history record.
func runPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting pipeline run",
		"tokens", len(cfg.Tokens),
		"separator", cfg.Separator,
		"maxStages", cfg.MaxStages,
		"saveHistory", cfg.SaveHistory,
	)

	// Open the history database if saving is enabled. History is a
	// convenience, so open failures degrade to a warning instead of
	// killing the run.
	var db *history.DB
	if cfg.SaveHistory {
		var err error
		db, err = history.Open(cfg.DBDir, history.DefaultOptions())
		if err != nil {
			logger.Warn("failed to open history database, run will not be recorded",
				"dir", cfg.DBDir, "error", err)
		} else {
			defer db.Close()
			logger.Info("history database opened", "dir", cfg.DBDir)
		}
	}

	controller := pipeline.New(
		pipeline.WithSeparator(cfg.Separator),
		pipeline.WithMaxStages(cfg.MaxStages),
		pipeline.WithLogger(logger),
	)

	runReport, err := controller.Run(ctx, cfg.Tokens)
	if err != nil {
		return err
	}

	// Generate and output the post-run summary
	if err := outputRunReport(cfg, runReport); err != nil {
		logger.Error("report failed", "fingerprint", runReport.ShortFingerprint(), "error", err)
	}

	// Save to the history database if enabled
	if err := saveRunReport(ctx, db, runReport, logger); err != nil {
		logger.Error("failed to save run report", "fingerprint", runReport.ShortFingerprint(), "error", err)
	}

	return nil
}

// outputRunReport writes the post-run summary in the requested format.
// The summary goes to stderr because stdout carries the last stage's
// output. With --report-file the same summary is also written to a
// file.
func outputRunReport(cfg *config.Config, runReport *model.RunReport) error {
	if cfg.Report == "" && cfg.ReportFile == "" {
		return nil
	}

	format := cfg.Report
	if format == "" {
		format = config.ReportSimple
	}

	var writers []report.Writer
	if cfg.Report != "" {
		writers = append(writers, newReportWriter(os.Stderr, format, cfg.Verbose))
	}

	if cfg.ReportFile != "" {
		// Create directories if they don't exist
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		// Summaries carry full command lines, which can hold sensitive
		// arguments, so the file is readable by the owner only (0600).
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		writers = append(writers, newReportWriter(f, format, cfg.Verbose))
	}

	_, err := report.NewMultiWriter(writers...).Write(runReport)
	return err
}

// newReportWriter builds the report writer for one output format.
func newReportWriter(output io.Writer, format string, verbose bool) report.Writer {
	switch format {
	case config.ReportJSON:
		return report.NewFullJSONWriter(output, getVersion(), report.WithPrettyPrint())
	case config.ReportMarkdown:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(verbose))
	}
}

// saveRunReport records the run in the history database.
// If db is nil, this function is a no-op.
func saveRunReport(ctx context.Context, db *history.DB, runReport *model.RunReport, logger *slog.Logger) error {
	if db == nil {
		return nil
	}

	id, err := db.SaveRun(ctx, runReport)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	logger.Info("run recorded in history",
		"id", id,
		"fingerprint", runReport.ShortFingerprint(),
	)
	return nil
}
