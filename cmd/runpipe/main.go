// Package main provides the entry point for the runpipe CLI.
//
// Runpipe launches a chain of external programs connected by pipes, the
// way a shell runs "a | b | c". It waits for every program in the chain
// and reports how each one exited.
//
// Usage:
//
//	runpipe run PROGRAM [ARG...] [-- PROGRAM [ARG...]]...
//	runpipe batch --file pipelines.txt
//
// See --help for all available options.
package main

// main is the entry point for runpipe.
func main() {
	Execute()
}
