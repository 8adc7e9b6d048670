package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// DefaultSeparator is the literal token that marks the boundary
	// between two stages' argument lists on the command line.
	DefaultSeparator = "--"

	// DefaultMaxStages bounds how many stages one pipeline may hold.
	// The limit is configurable via the --max-stages flag or the
	// configuration file.
	DefaultMaxStages = 10

	// DefaultJobs is the number of pipelines run concurrently in batch
	// mode. One job means pipelines run back to back.
	DefaultJobs = 1

	// DefaultHistoryLimit is how many past runs the history listing
	// shows when --limit is not given.
	DefaultHistoryLimit = 20

	// AppName is the application name used for XDG directory paths.
	AppName = "runpipe"
)

// Report format names accepted by the --report flag and the
// configuration file.
const (
	// ReportSimple is the human-readable plain text report.
	ReportSimple = "simple"

	// ReportJSON is the machine-readable JSON report.
	ReportJSON = "json"

	// ReportMarkdown is the GitHub Flavored Markdown report.
	ReportMarkdown = "markdown"
)

// Config holds all configuration options for runpipe.
// It is populated from built-in defaults, then the optional
// configuration file, then CLI flags, and passed through the
// application via dependency injection rather than global state.
type Config struct {
	// Separator is the literal token that splits one stage's argument
	// list from the next.
	Separator string

	// MaxStages bounds how many stages one run may hold.
	MaxStages int

	// Jobs is the number of pipelines run concurrently in batch mode.
	// Pipelines inside a batch are independent; stages within one
	// pipeline still launch sequentially.
	Jobs int

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .runpipe.yml in the current
	// directory and then in the user's home directory.
	ConfigFilePath string

	// Pipelines holds named pipelines loaded from the config file.
	// This is populated by LoadConfigFile and consulted by the
	// --pipeline flag.
	Pipelines *File

	// Report selects the post-run summary format: ReportSimple,
	// ReportJSON, or ReportMarkdown. Empty means no summary.
	Report string

	// ReportFile is an additional output file path for the report.
	// When set, the report is written to this file as well as to the
	// terminal. Parent directories are created if they don't exist.
	ReportFile string

	// Tokens is the pipeline token list to run, separator tokens
	// included.
	Tokens []string

	// DBDir is the directory path for the run history database.
	// Defaults to the XDG data directory (~/.local/share/runpipe on
	// Linux).
	DBDir string

	// SaveHistory indicates whether finished runs are saved to the
	// history database. Save failures are logged, never fatal to the
	// run.
	SaveHistory bool
}

// NewConfig creates a new Config with default values.
// Users can override specific values after creation.
func NewConfig() *Config {
	return &Config{
		Separator:   DefaultSeparator,
		MaxStages:   DefaultMaxStages,
		Jobs:        DefaultJobs,
		DBDir:       XDGDataDir(),
		SaveHistory: true,
	}
}

// XDGDataDir returns the XDG data directory for runpipe.
// On Linux: ~/.local/share/runpipe
// On macOS: ~/Library/Application Support/runpipe
// On Windows: %LOCALAPPDATA%\runpipe
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first error found; fixing one error often makes
// others irrelevant.
func (c *Config) Validate() error {
	// An empty separator could never match a token
	if c.Separator == "" {
		return ErrEmptySeparator
	}

	// The stage limit must allow at least one stage
	if c.MaxStages <= 0 {
		return ErrInvalidMaxStages
	}

	// Jobs must be positive; zero would mean no pipelines run
	if c.Jobs <= 0 {
		return ErrInvalidJobs
	}

	switch c.Report {
	case "", ReportSimple, ReportJSON, ReportMarkdown:
	default:
		return ErrInvalidReportFormat
	}

	return nil
}
