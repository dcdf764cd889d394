package plan

import "fftoolbox/internal/media"

// TargetVideoKbps derives the video bitrate that lands the muxed output
// under targetBytes. The safety factor leaves headroom for container
// overhead and rate-control overshoot; audio is paid for off the top.
// The result may be zero or negative for absurd targets; callers decide
// feasibility against the ladder floor.
func TargetVideoKbps(targetBytes int64, durationSeconds float64, audioKbps int, safety float64) int {
	if durationSeconds <= 0 || targetBytes <= 0 {
		return 0
	}
	kbps := float64(targetBytes) * 8 * safety / durationSeconds / 1000
	return int(kbps - float64(audioKbps))
}

// SmartCRF picks a constant-quality level from the source's bit
// density. Dense sources (mezzanine and capture formats) tolerate
// aggressive quality levels; already-lean sources get gentler ones so
// the output does not collapse.
func SmartCRF(bitsPerPixel float64) int {
	switch {
	case bitsPerPixel > 0.5:
		return 18
	case bitsPerPixel > 0.1:
		return 20
	case bitsPerPixel > 0.04:
		return 22
	case bitsPerPixel > 0.02:
		return 24
	default:
		return 26
	}
}

// SmartCap recommends a resolution cap for sources whose bitrate is too
// low to justify their pixel count. A zero width means the source keeps
// its native resolution.
func SmartCap(profile media.Profile) (width, height int, reason string) {
	density := profile.BitsPerPixel()
	kbps := profile.EffectiveBitrateBps() / 1000
	switch {
	case profile.Width >= 3840 && density < 0.05:
		return 1920, 1080, "4K source at low bitrate"
	case profile.Width >= 2560 && density < 0.04:
		return 1920, 1080, "1440p source at moderate bitrate"
	case profile.Width >= 1920 && kbps < 1500:
		return 1280, 720, "1080p source at low bitrate"
	default:
		return 0, 0, ""
	}
}
