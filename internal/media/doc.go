// Package media converts raw ffprobe inspections into the source facts the
// planner consumes: codec, resolution, duration, bitrate, frame rate.
//
// A Profile is immutable once probed. Missing facts that downstream math can
// derive (average bitrate, frame rate) are reported as zero rather than
// failing the probe; a missing or undecodable video stream fails it.
package media
