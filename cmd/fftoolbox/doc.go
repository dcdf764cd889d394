// Package main hosts the fftoolbox CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into the
// probe, plan, and batch-encode operations of the internal packages:
// source inspection, preset resolution, hardware capability reports,
// encode history, and configuration scaffolding. It centralizes
// configuration resolution and progress rendering so subcommands can
// focus on user experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the
// internal packages first, then surface it through dedicated commands
// or flags here.
package main
