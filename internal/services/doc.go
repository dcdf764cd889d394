// Package services defines the shared error taxonomy consumed across the
// encode pipeline.
//
// Key responsibilities:
//   - Sentinel error markers that classify failures by pipeline stage
//     (probe, capability, plan, execution, cancellation).
//   - The Wrap helper that attaches stage and operation context to an error
//     while preserving the marker for errors.Is classification.
//   - Stage classification so batch accounting and reports stay uniform no
//     matter which stage produced the failure.
//
// Use these helpers when wiring new pipeline logic so per-file failures carry
// the file, the stage, and a human-readable cause everywhere they surface.
package services
