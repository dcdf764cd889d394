// Package batch coordinates sequential encodes over a set of inputs.
//
// Each input is probed, planned, named, and executed independently; a
// failure in any stage produces a per-file report and the batch moves
// on. Cancellation is the one exception: it ends the current encode and
// marks the rest of the batch untouched. Every attempt is written
// through to the history ledger as it finishes.
package batch
