// Package encode drives ffmpeg for a resolved plan: one or two passes,
// a live progress stream parsed from the encoder's key-value channel,
// hardware verification against the real input with software fallback,
// and post-encode size verification for size-targeted plans. Partial
// outputs and two-pass statistics never survive a failed or cancelled
// run.
package encode
