package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"

	"github.com/nao1215/runpipe/internal/model"
)

// MarkdownWriter outputs run reports in Markdown format, suited for
// documentation and sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the run report in Markdown format.
func (w *MarkdownWriter) Write(report *model.RunReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeStages(md, report)
	w.writeAlert(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the run summary table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.RunReport) {
	md.H1("Pipeline Run Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Command", "`" + report.Command + "`"},
			{"Fingerprint", "`" + report.ShortFingerprint() + "`"},
			{"Started", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", report.Duration().String()},
			{"Stages", strconv.Itoa(report.StageCount())},
		},
	})
	md.PlainText("")
}

// writeStages writes one table row per stage result.
func (w *MarkdownWriter) writeStages(md *markdown.Markdown, report *model.RunReport) {
	md.H2("Stage Results")
	md.PlainText("")

	rows := make([][]string, len(report.Stages))
	for i := range report.Stages {
		result := &report.Stages[i]

		detail := "-"
		switch {
		case result.Signal != "":
			detail = result.Signal
		case result.LaunchError != "":
			detail = truncateString(result.LaunchError, 60)
		case result.WaitError != "":
			detail = truncateString(result.WaitError, 60)
		}

		rows[i] = []string{
			strconv.Itoa(result.Index),
			"`" + result.Command + "`",
			strconv.Itoa(result.PID),
			terminationLabel(result),
			strconv.Itoa(result.ExitCode),
			detail,
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"#", "Command", "PID", "Status", "Exit Code", "Detail"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeAlert writes an alert summarizing how the stages ended.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.RunReport) {
	failed := 0
	for i := range report.Stages {
		if report.Stages[i].ExitCode != 0 {
			failed++
		}
	}

	if failed > 0 {
		md.Warningf("%d of %d stage(s) did not exit cleanly. Exit codes: %s.",
			failed, report.StageCount(), report.ExitCodes())
	} else {
		md.Tip("All stages exited cleanly.")
	}
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [runpipe](https://github.com/nao1215/runpipe)*")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
