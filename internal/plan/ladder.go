package plan

import "fmt"

// Rung is one step of the resolution ladder.
type Rung struct {
	Width   int
	Height  int
	Label   string
	MinKbps int
}

// Ladder lists output resolutions in descending order with the minimum
// video bitrate each needs to look acceptable in H.264.
var Ladder = []Rung{
	{3840, 2160, "2160p", 8000},
	{2560, 1440, "1440p", 4000},
	{1920, 1080, "1080p", 1500},
	{1280, 720, "720p", 500},
	{854, 480, "480p", 200},
	{640, 360, "360p", 100},
	{426, 240, "240p", 80},
	{256, 144, "144p", 80},
}

// MinViableKbps is the absolute floor below which no resolution can
// absorb the bitrate budget.
const MinViableKbps = 80

// capForBitrate returns the largest ladder rung that fits inside the
// start box and whose bitrate minimum the derived rate satisfies. The
// boolean is false when the rate is below the absolute floor. A true
// result with found=false means the source is smaller than every rung
// and should keep its native size.
func capForBitrate(kbps, startWidth, startHeight int) (rung Rung, found, viable bool) {
	if kbps < MinViableKbps {
		return Rung{}, false, false
	}
	for _, r := range Ladder {
		if r.Width > startWidth || r.Height > startHeight {
			continue
		}
		if kbps >= r.MinKbps {
			return r, true, true
		}
	}
	return Rung{}, false, true
}

// fitWithin scales the source dimensions to fit inside the cap box,
// preserving aspect and forcing even dimensions. ok is false when the
// source already fits and no scaling is needed.
func fitWithin(srcWidth, srcHeight, maxWidth, maxHeight int) (width, height int, ok bool) {
	if srcWidth <= 0 || srcHeight <= 0 || maxWidth <= 0 || maxHeight <= 0 {
		return 0, 0, false
	}
	if srcWidth <= maxWidth && srcHeight <= maxHeight {
		return 0, 0, false
	}
	ratio := float64(maxWidth) / float64(srcWidth)
	if alt := float64(maxHeight) / float64(srcHeight); alt < ratio {
		ratio = alt
	}
	width = int(float64(srcWidth)*ratio) / 2 * 2
	height = int(float64(srcHeight)*ratio) / 2 * 2
	return width, height, true
}

// scaleFilter renders the ffmpeg scale expression for a concrete
// target size.
func scaleFilter(width, height int) string {
	return fmt.Sprintf("scale=%d:%d:flags=lanczos", width, height)
}

// evenDimensionFilter keeps encoders happy with sources whose width or
// height is odd.
const evenDimensionFilter = "scale=trunc(iw/2)*2:trunc(ih/2)*2"
