// Package main provides the entry point for the runpipe CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for runpipe.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runpipe",
		Short: "Launch a pipeline of external programs connected by pipes",
		Long: `Runpipe launches a chain of external programs connected stdin-to-stdout,
the way a shell runs "a | b | c", then waits for every program and
reports how each one exited.

Pipeline stages are separated by the "--" token by default. The first
stage reads runpipe's stdin and the last stage writes to runpipe's
stdout, so a pipeline's output can be piped onward like any command.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewBatchCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
