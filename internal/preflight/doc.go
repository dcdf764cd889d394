// Package preflight provides readiness checks for the tools and
// directories an encode run depends on.
//
// The check command renders every result; the encode path runs the
// required subset before taking the run lock so a doomed batch fails in
// milliseconds instead of after the first probe.
package preflight
