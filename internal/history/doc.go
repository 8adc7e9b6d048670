// Package history provides SQLite-based storage for past pipeline runs.
//
// Every run is stored relationally: one row in the runs table plus one
// row per stage in the stage_results table, keyed by the run id. The
// history command lists and reloads runs from here.
//
// The store uses modernc.org/sqlite, a CGO-free driver, so the database
// is a single file and the binary cross-compiles cleanly. WAL mode keeps
// concurrent reads cheap.
package history
