package plan

import (
	"strings"

	"fftoolbox/internal/media"
)

// Thresholds for the suggestion rules, in decimal bytes.
const (
	largeFileBytes = 1_000_000_000
	smallFileBytes = 500_000_000
)

// Suggest picks the preset to pre-select for a probed source. The rules
// run top-down and the first match wins, so the suggestion for a given
// profile never changes between runs:
//
//  1. professional mezzanine codec: resolve_cleanup
//  2. large file at 1080p or above: whatsapp
//  3. already lean H.264/H.265: quick
//  4. otherwise: web_1080p
func Suggest(profile media.Profile) string {
	if media.IsProfessionalCodec(profile.VideoCodec) {
		return "resolve_cleanup"
	}
	if profile.SizeBytes > largeFileBytes && profile.Height >= 1080 {
		return "whatsapp"
	}
	if isDeliveryCodec(profile.VideoCodec) && profile.SizeBytes > 0 && profile.SizeBytes < smallFileBytes {
		return "quick"
	}
	return "web_1080p"
}

func isDeliveryCodec(codec string) bool {
	switch strings.ToLower(codec) {
	case "h264", "hevc", "h265":
		return true
	default:
		return false
	}
}
