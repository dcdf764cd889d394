// Package plan turns a chosen preset plus probed source facts into a
// complete encode plan: codec, rate control, resolution cap, filter
// chain, and pass count. Size-targeted presets derive their video
// bitrate in closed form and walk the resolution ladder down until the
// bitrate is viable for the output size, failing the plan when no rung
// can absorb the budget.
package plan
