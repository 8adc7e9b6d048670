package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and by the command
// layer, and can be matched with errors.Is().
var (
	// ErrNoPipeline is returned when there is nothing to run: no tokens
	// on the command line, no --pipeline name, and no batch file lines.
	ErrNoPipeline = errors.New("no pipeline specified: provide program tokens or use --pipeline")

	// ErrPipelineNotFound is returned when --pipeline names a pipeline
	// that the configuration file does not define.
	ErrPipelineNotFound = errors.New("pipeline not found in configuration file")

	// ErrEmptySeparator is returned when the separator token is empty.
	// An empty separator could never match a command-line token.
	ErrEmptySeparator = errors.New("invalid separator: must not be empty")

	// ErrInvalidMaxStages is returned when the stage limit is not positive.
	// A limit of zero would reject every pipeline.
	ErrInvalidMaxStages = errors.New("invalid max stages: must be positive")

	// ErrInvalidJobs is returned when the batch concurrency is not positive.
	// Zero jobs would mean no pipelines run at all.
	ErrInvalidJobs = errors.New("invalid jobs: must be positive")

	// ErrInvalidReportFormat is returned when --report names an unknown
	// format. Valid formats are simple, json, and markdown.
	ErrInvalidReportFormat = errors.New("invalid report format: must be simple, json, or markdown")
)
