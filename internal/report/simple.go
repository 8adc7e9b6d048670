package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/runpipe/internal/model"
)

// SimpleWriter outputs human-readable text reports. The format is plain
// ASCII so it displays in any terminal and pipes cleanly to files and
// other tools.
type SimpleWriter struct {
	baseWriter

	// verbose adds the full fingerprint and the separator token to the
	// header instead of the short forms.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional run details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		verbose:    false,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the run report in human-readable format.
func (w *SimpleWriter) Write(report *model.RunReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeStages(&sb, report)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the run summary header.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.RunReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                         PIPELINE RUN REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fingerprint := report.ShortFingerprint()
	if w.verbose {
		fingerprint = report.Fingerprint
	}

	sb.WriteString(fmt.Sprintf("Command:     %s\n", report.Command))
	sb.WriteString(fmt.Sprintf("Fingerprint: %s\n", fingerprint))
	sb.WriteString(fmt.Sprintf("Started:     %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST")))
	sb.WriteString(fmt.Sprintf("Duration:    %s\n", report.Duration()))
	sb.WriteString(fmt.Sprintf("Stages:      %d\n", report.StageCount()))
	if w.verbose {
		sb.WriteString(fmt.Sprintf("Separator:   %s\n", report.Separator))
	}
	sb.WriteString("\n")
}

// writeStages writes one block per stage result.
func (w *SimpleWriter) writeStages(sb *strings.Builder, report *model.RunReport) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("STAGE RESULTS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	for i := range report.Stages {
		w.writeStage(sb, &report.Stages[i])
	}
}

// writeStage writes a single stage's result block.
func (w *SimpleWriter) writeStage(sb *strings.Builder, result *model.StageResult) {
	sb.WriteString(fmt.Sprintf("  [%d] %s\n", result.Index, result.Command))
	sb.WriteString(fmt.Sprintf("      PID:    %d\n", result.PID))

	switch result.Termination() {
	case model.TerminationSignaled:
		sb.WriteString(fmt.Sprintf("      Status: %s (%s, code %d)\n", terminationLabel(result), result.Signal, result.ExitCode))
	default:
		sb.WriteString(fmt.Sprintf("      Status: %s (code %d)\n", terminationLabel(result), result.ExitCode))
	}

	if result.LaunchError != "" {
		sb.WriteString(fmt.Sprintf("      Error:  %s\n", result.LaunchError))
	}
	if result.WaitError != "" {
		sb.WriteString(fmt.Sprintf("      Error:  %s\n", result.WaitError))
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
