package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/runpipe/internal/config"
	"github.com/nao1215/runpipe/internal/history"
	"github.com/nao1215/runpipe/internal/model"
)

// TestNewRunCmd tests the run command creation.
func TestNewRunCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRunCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if !strings.HasPrefix(cmd.Use, "run ") {
			t.Errorf("expected use to start with 'run ', got %q", cmd.Use)
		}
	})

	t.Run("has short description", func(t *testing.T) {
		t.Parallel()
		if cmd.Short == "" {
			t.Error("expected non-empty short description")
		}
	})

	t.Run("has long description", func(t *testing.T) {
		t.Parallel()
		if cmd.Long == "" {
			t.Error("expected non-empty long description")
		}
	})

	t.Run("has separator flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("separator")
		if flag == nil {
			t.Fatal("expected separator flag")
		}
		if flag.Shorthand != "s" {
			t.Errorf("expected shorthand 's', got %q", flag.Shorthand)
		}
		if flag.DefValue != config.DefaultSeparator {
			t.Errorf("expected default %q, got %q", config.DefaultSeparator, flag.DefValue)
		}
	})

	t.Run("has max-stages flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("max-stages")
		if flag == nil {
			t.Fatal("expected max-stages flag")
		}
		if flag.DefValue != "10" {
			t.Errorf("expected default '10', got %q", flag.DefValue)
		}
	})

	t.Run("has pipeline flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("pipeline")
		if flag == nil {
			t.Fatal("expected pipeline flag")
		}
		if flag.Shorthand != "p" {
			t.Errorf("expected shorthand 'p', got %q", flag.Shorthand)
		}
	})

	t.Run("has config flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("config")
		if flag == nil {
			t.Fatal("expected config flag")
		}
		if flag.Shorthand != "c" {
			t.Errorf("expected shorthand 'c', got %q", flag.Shorthand)
		}
	})

	t.Run("has report flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("report")
		if flag == nil {
			t.Fatal("expected report flag")
		}
		if flag.Shorthand != "r" {
			t.Errorf("expected shorthand 'r', got %q", flag.Shorthand)
		}
		if flag.DefValue != "" {
			t.Errorf("expected empty default, got %q", flag.DefValue)
		}
	})

	t.Run("has report-file flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("report-file")
		if flag == nil {
			t.Fatal("expected report-file flag")
		}
	})

	t.Run("has save flag defaulting to true", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("save")
		if flag == nil {
			t.Fatal("expected save flag")
		}
		if flag.DefValue != "true" {
			t.Errorf("expected default 'true', got %q", flag.DefValue)
		}
	})

	t.Run("has db-dir flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("db-dir")
		if flag == nil {
			t.Fatal("expected db-dir flag")
		}
	})

	t.Run("keeps stage tokens out of flag parsing", func(t *testing.T) {
		t.Parallel()
		// Tokens after the first program must stay positional even when
		// they look like flags, so "grep -i error -- wc -l" survives.
		cmd := NewRunCmd()
		if err := cmd.Flags().Parse([]string{"grep", "-i", "error", "--", "wc", "-l"}); err != nil {
			t.Fatalf("unexpected parse error: %v", err)
		}

		got := cmd.Flags().Args()
		want := []string{"grep", "-i", "error", "--", "wc", "-l"}
		if len(got) != len(want) {
			t.Fatalf("expected %d args, got %d (%v)", len(want), len(got), got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("arg %d: expected %q, got %q", i, want[i], got[i])
			}
		}
	})
}

// TestSetupLogger tests the logger setup.
func TestSetupLogger(t *testing.T) {
	t.Parallel()

	t.Run("creates logger for verbose mode", func(t *testing.T) {
		t.Parallel()
		logger := setupLogger(true)
		if logger == nil {
			t.Error("expected non-nil logger")
		}
	})

	t.Run("creates logger for non-verbose mode", func(t *testing.T) {
		t.Parallel()
		logger := setupLogger(false)
		if logger == nil {
			t.Error("expected non-nil logger")
		}
	})
}

// TestGetVerboseFlag tests the verbose flag retrieval.
func TestGetVerboseFlag(t *testing.T) {
	t.Run("returns false when flag not set", func(t *testing.T) {
		cmd := NewRunCmd()
		result := getVerboseFlag(cmd)
		if result {
			t.Error("expected false when flag not set")
		}
	})

	t.Run("returns value from parent verbose flag", func(t *testing.T) {
		root := NewRootCmd()
		// Set verbose flag to true
		_ = root.PersistentFlags().Set("verbose", "true")

		// Get run subcommand
		runCmd, _, err := root.Find([]string{"run"})
		if err != nil {
			t.Fatalf("failed to find run command: %v", err)
		}

		result := getVerboseFlag(runCmd)
		if !result {
			t.Error("expected true from parent verbose flag")
		}
	})
}

// isolateConfigDiscovery points the working directory and home at fresh
// temp directories so no real .runpipe.yml leaks into the test.
func isolateConfigDiscovery(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
}

// TestBuildRunConfig tests configuration building from flags.
func TestBuildRunConfig(t *testing.T) {
	t.Run("builds config with default values", func(t *testing.T) {
		isolateConfigDiscovery(t)

		cmd := NewRunCmd()
		cfg, err := buildRunConfig(cmd, []string{"ls", "--", "wc", "-l"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg == nil {
			t.Fatal("expected non-nil config")
		}
		if len(cfg.Tokens) != 4 || cfg.Tokens[0] != "ls" {
			t.Errorf("expected tokens [ls -- wc -l], got %v", cfg.Tokens)
		}
		if cfg.Separator != config.DefaultSeparator {
			t.Errorf("expected separator %q, got %q", config.DefaultSeparator, cfg.Separator)
		}
		if cfg.MaxStages != config.DefaultMaxStages {
			t.Errorf("expected max stages %d, got %d", config.DefaultMaxStages, cfg.MaxStages)
		}
		if !cfg.SaveHistory {
			t.Error("expected SaveHistory to be true by default")
		}
		if cfg.Report != "" {
			t.Errorf("expected empty report format, got %q", cfg.Report)
		}
	})

	t.Run("builds config with custom separator", func(t *testing.T) {
		isolateConfigDiscovery(t)

		cmd := NewRunCmd()
		_ = cmd.Flags().Set("separator", "::")
		cfg, err := buildRunConfig(cmd, []string{"ls", "::", "wc"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.Separator != "::" {
			t.Errorf("expected separator '::', got %q", cfg.Separator)
		}
	})

	t.Run("builds config with custom max stages", func(t *testing.T) {
		isolateConfigDiscovery(t)

		cmd := NewRunCmd()
		_ = cmd.Flags().Set("max-stages", "3")
		cfg, err := buildRunConfig(cmd, []string{"ls"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.MaxStages != 3 {
			t.Errorf("expected max stages 3, got %d", cfg.MaxStages)
		}
	})

	t.Run("builds config with report format and file", func(t *testing.T) {
		isolateConfigDiscovery(t)

		cmd := NewRunCmd()
		_ = cmd.Flags().Set("report", "json")
		_ = cmd.Flags().Set("report-file", "/tmp/report.json")
		cfg, err := buildRunConfig(cmd, []string{"ls"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.Report != "json" {
			t.Errorf("expected report 'json', got %q", cfg.Report)
		}
		if cfg.ReportFile != "/tmp/report.json" {
			t.Errorf("expected ReportFile '/tmp/report.json', got %q", cfg.ReportFile)
		}
	})

	t.Run("builds config with save disabled", func(t *testing.T) {
		isolateConfigDiscovery(t)

		cmd := NewRunCmd()
		_ = cmd.Flags().Set("save", "false")
		cfg, err := buildRunConfig(cmd, []string{"ls"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.SaveHistory {
			t.Error("expected SaveHistory to be false")
		}
	})

	t.Run("returns error when nothing to run", func(t *testing.T) {
		isolateConfigDiscovery(t)

		cmd := NewRunCmd()
		_, err := buildRunConfig(cmd, nil)
		if !errors.Is(err, config.ErrNoPipeline) {
			t.Errorf("expected ErrNoPipeline, got %v", err)
		}
	})

	t.Run("applies settings from config file", func(t *testing.T) {
		isolateConfigDiscovery(t)
		configPath := filepath.Join(t.TempDir(), "runpipe.yml")

		content := []byte(`
defaults:
  separator: "::"
  max_stages: 5
  save_history: false
  report: markdown
pipelines:
  count-lines:
    - cat
    - main.go
    - "::"
    - wc
    - -l
`)
		if err := os.WriteFile(configPath, content, 0o600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		cmd := NewRunCmd()
		_ = cmd.Flags().Set("config", configPath)
		cfg, err := buildRunConfig(cmd, []string{"ls", "::", "wc"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.Separator != "::" {
			t.Errorf("expected separator '::', got %q", cfg.Separator)
		}
		if cfg.MaxStages != 5 {
			t.Errorf("expected max stages 5, got %d", cfg.MaxStages)
		}
		if cfg.SaveHistory {
			t.Error("expected SaveHistory false from config file")
		}
		if cfg.Report != "markdown" {
			t.Errorf("expected report 'markdown', got %q", cfg.Report)
		}
	})

	t.Run("explicit flags win over config file", func(t *testing.T) {
		isolateConfigDiscovery(t)
		configPath := filepath.Join(t.TempDir(), "runpipe.yml")

		content := []byte(`
defaults:
  separator: "::"
  max_stages: 5
`)
		if err := os.WriteFile(configPath, content, 0o600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		cmd := NewRunCmd()
		_ = cmd.Flags().Set("config", configPath)
		_ = cmd.Flags().Set("separator", "|>")
		cfg, err := buildRunConfig(cmd, []string{"ls", "|>", "wc"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.Separator != "|>" {
			t.Errorf("expected flag separator '|>' to win, got %q", cfg.Separator)
		}
		if cfg.MaxStages != 5 {
			t.Errorf("expected file max stages 5 to survive, got %d", cfg.MaxStages)
		}
	})

	t.Run("returns error for missing explicit config file", func(t *testing.T) {
		isolateConfigDiscovery(t)

		cmd := NewRunCmd()
		_ = cmd.Flags().Set("config", "/nonexistent/runpipe.yml")
		_, err := buildRunConfig(cmd, []string{"ls"})
		if err == nil {
			t.Fatal("expected error for missing config file")
		}
		if !strings.Contains(err.Error(), "not found") {
			t.Errorf("expected 'not found' error, got %v", err)
		}
	})

	t.Run("returns error for invalid config file", func(t *testing.T) {
		isolateConfigDiscovery(t)
		configPath := filepath.Join(t.TempDir(), "invalid.yml")

		content := []byte(`{invalid yaml`)
		if err := os.WriteFile(configPath, content, 0o600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		cmd := NewRunCmd()
		_ = cmd.Flags().Set("config", configPath)
		_, err := buildRunConfig(cmd, []string{"ls"})
		if err == nil {
			t.Fatal("expected error for invalid config file")
		}
	})

	t.Run("resolves named pipeline from config file", func(t *testing.T) {
		isolateConfigDiscovery(t)
		configPath := filepath.Join(t.TempDir(), "runpipe.yml")

		content := []byte(`
pipelines:
  count-lines:
    - cat
    - main.go
    - "--"
    - wc
    - -l
`)
		if err := os.WriteFile(configPath, content, 0o600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		cmd := NewRunCmd()
		_ = cmd.Flags().Set("config", configPath)
		_ = cmd.Flags().Set("pipeline", "count-lines")
		cfg, err := buildRunConfig(cmd, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []string{"cat", "main.go", "--", "wc", "-l"}
		if len(cfg.Tokens) != len(want) {
			t.Fatalf("expected %d tokens, got %d (%v)", len(want), len(cfg.Tokens), cfg.Tokens)
		}
		for i := range want {
			if cfg.Tokens[i] != want[i] {
				t.Errorf("token %d: expected %q, got %q", i, want[i], cfg.Tokens[i])
			}
		}
	})

	t.Run("returns error for unknown pipeline name", func(t *testing.T) {
		isolateConfigDiscovery(t)
		configPath := filepath.Join(t.TempDir(), "runpipe.yml")

		content := []byte(`
pipelines:
  count-lines:
    - wc
    - -l
`)
		if err := os.WriteFile(configPath, content, 0o600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		cmd := NewRunCmd()
		_ = cmd.Flags().Set("config", configPath)
		_ = cmd.Flags().Set("pipeline", "no-such-pipeline")
		_, err := buildRunConfig(cmd, nil)
		if !errors.Is(err, config.ErrPipelineNotFound) {
			t.Errorf("expected ErrPipelineNotFound, got %v", err)
		}
	})

	t.Run("rejects pipeline name combined with program tokens", func(t *testing.T) {
		isolateConfigDiscovery(t)

		cmd := NewRunCmd()
		_ = cmd.Flags().Set("pipeline", "count-lines")
		_, err := buildRunConfig(cmd, []string{"ls"})
		if err == nil {
			t.Fatal("expected error when combining --pipeline with tokens")
		}
		if !strings.Contains(err.Error(), "cannot combine") {
			t.Errorf("expected 'cannot combine' error, got %v", err)
		}
	})
}

// TestResolveTokens tests pipeline token resolution.
func TestResolveTokens(t *testing.T) {
	t.Parallel()

	t.Run("returns positional args unchanged", func(t *testing.T) {
		t.Parallel()
		cfg := config.NewConfig()
		tokens, err := resolveTokens(cfg, "", []string{"ls", "--", "wc"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(tokens) != 3 {
			t.Errorf("expected 3 tokens, got %d", len(tokens))
		}
	})

	t.Run("returns ErrNoPipeline with no source", func(t *testing.T) {
		t.Parallel()
		cfg := config.NewConfig()
		_, err := resolveTokens(cfg, "", nil)
		if !errors.Is(err, config.ErrNoPipeline) {
			t.Errorf("expected ErrNoPipeline, got %v", err)
		}
	})

	t.Run("returns ErrPipelineNotFound without config file", func(t *testing.T) {
		t.Parallel()
		cfg := config.NewConfig()
		_, err := resolveTokens(cfg, "count-lines", nil)
		if !errors.Is(err, config.ErrPipelineNotFound) {
			t.Errorf("expected ErrPipelineNotFound, got %v", err)
		}
	})

	t.Run("returns ErrNoPipeline for empty named pipeline", func(t *testing.T) {
		t.Parallel()
		cfg := config.NewConfig()
		cfg.Pipelines = &config.File{
			Pipelines: map[string][]string{"empty": {}},
		}
		_, err := resolveTokens(cfg, "empty", nil)
		if !errors.Is(err, config.ErrNoPipeline) {
			t.Errorf("expected ErrNoPipeline, got %v", err)
		}
	})
}

// testRunReport builds a finished two-stage report for output tests.
func testRunReport() *model.RunReport {
	report := model.NewRunReport([]string{"echo", "hello", "--", "wc", "-c"}, "--")
	report.StartedAt = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	report.FinishedAt = report.StartedAt.Add(120 * time.Millisecond)
	report.Stages = []model.StageResult{
		{Index: 0, Command: "echo hello", PID: 4211, ExitCode: 0},
		{Index: 1, Command: "wc -c", PID: 4212, ExitCode: 0},
	}
	return report
}

// TestOutputRunReport tests the post-run summary output.
func TestOutputRunReport(t *testing.T) {
	t.Run("no format and no file is a no-op", func(t *testing.T) {
		cfg := config.NewConfig()

		if err := outputRunReport(cfg, testRunReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("writes simple report to file", func(t *testing.T) {
		tmpDir := t.TempDir()
		outputPath := filepath.Join(tmpDir, "report.txt")

		cfg := config.NewConfig()
		cfg.ReportFile = outputPath

		if err := outputRunReport(cfg, testRunReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		content, err := os.ReadFile(outputPath)
		if err != nil {
			t.Fatalf("failed to read file: %v", err)
		}
		if !strings.Contains(string(content), "PIPELINE RUN REPORT") {
			t.Error("expected simple report header in file")
		}
		if !strings.Contains(string(content), "echo hello") {
			t.Error("expected stage command in file")
		}
	})

	t.Run("writes JSON report with version metadata", func(t *testing.T) {
		tmpDir := t.TempDir()
		outputPath := filepath.Join(tmpDir, "report.json")

		cfg := config.NewConfig()
		cfg.Report = config.ReportJSON
		cfg.ReportFile = outputPath

		if err := outputRunReport(cfg, testRunReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		content, err := os.ReadFile(outputPath)
		if err != nil {
			t.Fatalf("failed to read file: %v", err)
		}

		var result map[string]any
		if err := json.Unmarshal(content, &result); err != nil {
			t.Fatalf("failed to parse JSON: %v", err)
		}
		version, ok := result["version"].(string)
		if !ok || version == "" {
			t.Error("expected non-empty version field in JSON report")
		}
		if result["report"] == nil {
			t.Error("expected report field in JSON report")
		}
	})

	t.Run("writes markdown report to file", func(t *testing.T) {
		tmpDir := t.TempDir()
		outputPath := filepath.Join(tmpDir, "report.md")

		cfg := config.NewConfig()
		cfg.Report = config.ReportMarkdown
		cfg.ReportFile = outputPath

		if err := outputRunReport(cfg, testRunReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		content, err := os.ReadFile(outputPath)
		if err != nil {
			t.Fatalf("failed to read file: %v", err)
		}
		if !strings.Contains(string(content), "# Pipeline Run Report") {
			t.Error("expected markdown header in file")
		}
	})

	t.Run("creates parent directories", func(t *testing.T) {
		tmpDir := t.TempDir()
		outputPath := filepath.Join(tmpDir, "subdir", "nested", "report.txt")

		cfg := config.NewConfig()
		cfg.ReportFile = outputPath

		if err := outputRunReport(cfg, testRunReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if _, err := os.Stat(outputPath); os.IsNotExist(err) {
			t.Error("expected output file to be created in nested directory")
		}
	})
}

// TestSaveRunReport tests the history save helper.
func TestSaveRunReport(t *testing.T) {
	t.Run("nil database is a no-op", func(t *testing.T) {
		t.Parallel()

		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		if err := saveRunReport(context.Background(), nil, testRunReport(), logger); err != nil {
			t.Errorf("expected nil error for nil db, got %v", err)
		}
	})

	t.Run("saves run to database", func(t *testing.T) {
		tmpDir := t.TempDir()

		db, err := history.Open(tmpDir, history.DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		if err := saveRunReport(context.Background(), db, testRunReport(), logger); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		runs, err := db.RecentRuns(context.Background(), 10)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(runs) != 1 {
			t.Errorf("expected 1 recorded run, got %d", len(runs))
		}
	})
}
