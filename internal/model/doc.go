// Package model defines the data structures shared across the pipeline
// runner.
//
// RunReport is the record of one pipeline run: the command line, its
// fingerprint, timing, and one StageResult per stage. The controller
// produces it, the report writers render it, and the history store
// persists it; keeping the types here keeps those packages free of each
// other.
//
// The models are designed to be serializable to JSON for report output
// and database storage.
package model
