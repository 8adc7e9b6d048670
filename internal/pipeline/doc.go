// Package pipeline builds and runs chains of external programs connected
// stdin to stdout, the way a shell runs `a | b | c`.
//
// A Controller owns one run end to end: it parses a flat token list into
// stages, allocates one OS pipe per adjacent stage pair, starts every
// stage in index order, then waits on each stage in index order and
// reports its exit status. Stage connections are inherited file
// descriptors, so pipeline data never passes through this process.
//
// Per-stage failures (non-zero exits, signal deaths, unrunnable
// executables) are recorded in the run report and never abort a run.
// Only malformed input and OS-level resource failures are fatal.
//
// BatchRunner executes several independent pipelines concurrently with a
// bounded job limit.
package pipeline
