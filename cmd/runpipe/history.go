package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/nao1215/runpipe/internal/config"
	"github.com/nao1215/runpipe/internal/history"
	"github.com/nao1215/runpipe/internal/model"
	"github.com/nao1215/runpipe/internal/report"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// NewHistoryCmd creates the history command.
// This command inspects runs recorded in the history database.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded pipeline runs",
		Long: `History lists pipeline runs recorded by the run and batch commands,
newest first.

Every run is stored with its full command line, its stage results, and
timestamps, so past exit statuses stay inspectable long after the
terminal scrollback is gone.

Examples:
  # List the most recent runs
  runpipe history

  # List the last 50 runs
  runpipe history --limit 50

  # Show the full report for one run
  runpipe history --run-id 12

  # Machine-readable output
  runpipe history --json`,
		RunE: runHistoryCmd,
	}

	// Listing flags
	cmd.Flags().IntP("limit", "n", config.DefaultHistoryLimit,
		"Maximum number of runs to list")
	cmd.Flags().Int64P("run-id", "i", 0,
		"Show the full report for the run with this ID (use the list to see IDs)")

	// Output format flags
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output in Markdown format (mutually exclusive with --json)")

	// Database location
	cmd.Flags().String("db-dir", "",
		"History database directory (default: runpipe under the XDG data directory)")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}

	runID, err := cmd.Flags().GetInt64("run-id")
	if err != nil {
		return err
	}

	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}

	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}

	// Open database
	db, err := history.Open(dbDir, history.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()

	if runID > 0 {
		return showRun(ctx, db, runID, jsonOutput, markdownOutput)
	}

	return listRuns(ctx, db, limit, jsonOutput, markdownOutput)
}

// showRun prints the full report for a single recorded run.
func showRun(ctx context.Context, db *history.DB, runID int64, jsonOutput, markdownOutput bool) error {
	runReport, err := db.GetRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to get run %d: %w", runID, err)
	}
	if runReport == nil {
		return fmt.Errorf("run with ID %d not found (use 'runpipe history' to see available IDs)", runID)
	}

	var writer report.Writer
	switch {
	case jsonOutput:
		writer = report.NewJSONWriter(os.Stdout, report.WithPrettyPrint())
	case markdownOutput:
		writer = report.NewMarkdownWriter(os.Stdout)
	default:
		writer = report.NewSimpleWriter(os.Stdout)
	}

	_, err = writer.Write(runReport)
	return err
}

// listRuns lists the most recent recorded runs, newest first.
func listRuns(ctx context.Context, db *history.DB, limit int, jsonOutput, markdownOutput bool) error {
	reports, err := db.RecentRuns(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(reports) == 0 {
		fmt.Println("No recorded runs found.")
		fmt.Println("\nUse 'runpipe run PROGRAM -- PROGRAM' to run and record a pipeline.")
		return nil
	}

	if jsonOutput {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(reports)
	}

	if markdownOutput {
		return listRunsMarkdown(reports)
	}

	return listRunsText(reports)
}

// listRunsText prints the run list as an aligned text table. The
// command column is truncated to the terminal width so every run stays
// on one line.
func listRunsText(reports []*model.RunReport) error {
	fmt.Printf("Run history (%d runs):\n\n", len(reports))
	fmt.Printf("  %-6s  %-19s  %-10s  %-6s  %-12s  %s\n",
		"ID", "Finished", "Duration", "Stages", "Exit Codes", "Command")
	fmt.Println("  " + strings.Repeat("-", 76))

	width := terminalWidth()
	for _, r := range reports {
		fmt.Printf("  %-6d  %-19s  %-10s  %-6d  %-12s  %s\n",
			r.ID,
			r.FinishedAt.Local().Format("2006-01-02 15:04:05"),
			r.Duration().Round(time.Millisecond),
			r.StageCount(),
			r.ExitCodes(),
			truncateCommand(r.Command, width),
		)
	}

	fmt.Println("\nUse 'runpipe history --run-id <id>' to see the full report for a run.")

	return nil
}

// listRunsMarkdown prints the run list as a Markdown table.
func listRunsMarkdown(reports []*model.RunReport) error {
	fmt.Printf("# Run History (%d runs)\n\n", len(reports))

	fmt.Println("| ID | Finished | Duration | Stages | Exit Codes | Command |")
	fmt.Println("|----|----------|----------|--------|------------|---------|")
	for _, r := range reports {
		fmt.Printf("| %d | %s | %s | %d | %s | `%s` |\n",
			r.ID,
			r.FinishedAt.Local().Format("2006-01-02 15:04"),
			r.Duration().Round(time.Millisecond),
			r.StageCount(),
			r.ExitCodes(),
			r.Command,
		)
	}

	return nil
}

// terminalWidth returns the width of the terminal attached to stdout in
// columns, or 0 when stdout is not a terminal.
func terminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 0
	}
	width, _, err := term.GetSize(fd)
	if err != nil {
		return 0
	}
	return width
}

// truncateCommand shortens a command line so a table row fits on one
// terminal line. A width of 0 or less disables truncation.
func truncateCommand(command string, width int) string {
	// The columns before the command take roughly this many characters.
	const prefixWidth = 64

	if width <= 0 {
		return command
	}

	maxLen := width - prefixWidth
	if maxLen < 16 {
		maxLen = 16
	}
	if len(command) <= maxLen {
		return command
	}

	return command[:maxLen-3] + "..."
}
