// Package logging assembles structured slog loggers and formatting helpers
// used across the encode pipeline.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes attribute helpers so pipeline code tags log lines with
// consistent keys (component, run ID, input file, stage). The package also
// provides a no-op logger for tests and wiring code that cannot fail, plus a
// progress sampler that keeps encode progress from flooding the logs.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits data with the same shape and routing guarantees.
package logging
