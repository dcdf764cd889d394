package plan

import (
	"fmt"

	"fftoolbox/internal/services"
)

// Kind discriminates how a preset's parameters are completed at resolve
// time.
type Kind int

const (
	// KindStatic presets carry every parameter in the catalog entry.
	KindStatic Kind = iota
	// KindSmart computes CRF and resolution from the probed source.
	KindSmart
	// KindTargetSize takes the desired output size in megabytes from
	// the goal.
	KindTargetSize
	// KindTargetPercent takes the desired output size as a percentage
	// of the source from the goal.
	KindTargetPercent
	// KindRemux copies the video stream and recodes only audio.
	KindRemux
	// KindCustom takes a full parameter set from the goal.
	KindCustom
)

// RateControl is the rate-control mode a resolved plan uses.
type RateControl string

const (
	RateControlCRF    RateControl = "crf"
	RateControlTarget RateControl = "target_bitrate"
	RateControlCopy   RateControl = "copy"
)

// Preset is a named encode recipe. A zero CRF means the preset does not
// use constant-quality mode; no catalog entry encodes losslessly.
type Preset struct {
	ID          string
	Name        string
	Group       string
	Description string
	Kind        Kind
	VideoCodec  string
	CRF         int
	Speed       string
	AudioCodec  string
	AudioKbps   int
	MaxWidth    int
	MaxHeight   int
	TargetMB    float64
}

// catalog holds the built-in presets in menu order.
var catalog = []Preset{
	{
		ID: "smart", Name: "Smart Recommended", Group: "Smart",
		Description: "analyzes the source and picks CRF and resolution automatically",
		Kind:        KindSmart,
		VideoCodec:  "libx264", Speed: "slow", AudioCodec: "aac", AudioKbps: 128,
	},
	{
		ID: "whatsapp", Name: "WhatsApp", Group: "Sharing",
		Description: "two-pass, stays under the 100 MB video limit, 720p max",
		Kind:        KindStatic,
		VideoCodec:  "libx264", Speed: "slow", AudioCodec: "aac", AudioKbps: 96,
		MaxWidth: 1280, MaxHeight: 720, TargetMB: 95,
	},
	{
		ID: "telegram", Name: "Telegram", Group: "Sharing",
		Description: "1080p max, CRF 22, high quality for Telegram's 2 GB limit",
		Kind:        KindStatic,
		VideoCodec:  "libx264", CRF: 22, Speed: "slow", AudioCodec: "aac", AudioKbps: 192,
		MaxWidth: 1920, MaxHeight: 1080,
	},
	{
		ID: "resolve_cleanup", Name: "Resolve Cleanup", Group: "Professional",
		Description: "ProRes/DNxHR deliveries to near-lossless H.264, keeps resolution",
		Kind:        KindStatic,
		VideoCodec:  "libx264", CRF: 18, Speed: "slow", AudioCodec: "aac", AudioKbps: 192,
	},
	{
		ID: "archive_h265", Name: "Archive H.265", Group: "Professional",
		Description: "CRF 18 HEVC with the Apple hvc1 tag for long-term storage",
		Kind:        KindStatic,
		VideoCodec:  "libx265", CRF: 18, Speed: "slow", AudioCodec: "aac", AudioKbps: 192,
	},
	{
		ID: "web_1080p", Name: "Web 1080p", Group: "Web",
		Description: "CRF 23, 1080p max, fast-start layout for upload platforms",
		Kind:        KindStatic,
		VideoCodec:  "libx264", CRF: 23, Speed: "slow", AudioCodec: "aac", AudioKbps: 128,
		MaxWidth: 1920, MaxHeight: 1080,
	},
	{
		ID: "compress_light", Name: "Compress Light", Group: "Compression",
		Description: "CRF 20, barely visible loss, roughly a quarter smaller",
		Kind:        KindStatic,
		VideoCodec:  "libx264", CRF: 20, Speed: "medium", AudioCodec: "aac", AudioKbps: 192,
	},
	{
		ID: "compress_medium", Name: "Compress Medium", Group: "Compression",
		Description: "CRF 26, watchable loss, roughly half the size",
		Kind:        KindStatic,
		VideoCodec:  "libx264", CRF: 26, Speed: "medium", AudioCodec: "aac", AudioKbps: 128,
	},
	{
		ID: "compress_heavy", Name: "Compress Heavy", Group: "Compression",
		Description: "CRF 32 at 720p max, maximum shrink with visible loss",
		Kind:        KindStatic,
		VideoCodec:  "libx264", CRF: 32, Speed: "fast", AudioCodec: "aac", AudioKbps: 64,
		MaxWidth: 1280, MaxHeight: 720,
	},
	{
		ID: "target_mb", Name: "Target Size", Group: "Exact Control",
		Description: "two-pass encode that lands under an exact megabyte budget",
		Kind:        KindTargetSize,
		VideoCodec:  "libx264", Speed: "slow", AudioCodec: "aac", AudioKbps: 128,
	},
	{
		ID: "target_percent", Name: "Target Percent", Group: "Exact Control",
		Description: "two-pass encode sized to a percentage of the source",
		Kind:        KindTargetPercent,
		VideoCodec:  "libx264", Speed: "slow", AudioCodec: "aac", AudioKbps: 128,
	},
	{
		ID: "quick", Name: "Quick Convert", Group: "Utility",
		Description: "CRF 23 at medium speed for fast turnarounds",
		Kind:        KindStatic,
		VideoCodec:  "libx264", CRF: 23, Speed: "medium", AudioCodec: "aac", AudioKbps: 128,
	},
	{
		ID: "fix_audio", Name: "Fix Audio", Group: "Utility",
		Description: "copies the video stream untouched and recodes audio to AAC",
		Kind:        KindRemux,
		VideoCodec:  "copy", AudioCodec: "aac", AudioKbps: 192,
	},
	{
		ID: "custom", Name: "Custom", Group: "Custom",
		Description: "every parameter chosen by hand",
		Kind:        KindCustom,
	},
}

// Catalog returns the built-in presets in display order. Callers must
// not mutate the returned slice.
func Catalog() []Preset {
	return catalog
}

// Lookup finds a built-in preset by ID.
func Lookup(id string) (Preset, error) {
	for _, p := range catalog {
		if p.ID == id {
			return p, nil
		}
	}
	return Preset{}, services.Wrap(services.ErrNotFound, "plan", "lookup preset", fmt.Sprintf("unknown preset %q", id), nil)
}

// IsTwoPass reports whether the preset resolves to a two-pass encode.
// Only size-targeted presets run two passes.
func (p Preset) IsTwoPass() bool {
	switch p.Kind {
	case KindTargetSize, KindTargetPercent:
		return true
	case KindStatic:
		return p.TargetMB > 0
	default:
		return false
	}
}
