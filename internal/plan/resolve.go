package plan

import (
	"fmt"
	"log/slog"
	"strings"

	"fftoolbox/internal/config"
	"fftoolbox/internal/hwaccel"
	"fftoolbox/internal/logging"
	"fftoolbox/internal/media"
	"fftoolbox/internal/services"
)

// CustomMode selects how a custom spec controls quality.
type CustomMode string

const (
	CustomModeCRF     CustomMode = "crf"
	CustomModeSize    CustomMode = "size"
	CustomModePercent CustomMode = "percent"
)

// CustomSpec carries a fully hand-picked parameter set, the file-based
// equivalent of answering every interactive question.
type CustomSpec struct {
	VideoCodec  string     `json:"video_codec"`
	Mode        CustomMode `json:"mode"`
	CRF         int        `json:"crf"`
	TargetMB    float64    `json:"target_mb,omitempty"`
	Percent     float64    `json:"percent,omitempty"`
	Speed       string     `json:"speed,omitempty"`
	MaxWidth    int        `json:"max_width,omitempty"`
	MaxHeight   int        `json:"max_height,omitempty"`
	AudioCodec  string     `json:"audio_codec"`
	AudioKbps   int        `json:"audio_kbps,omitempty"`
	Deinterlace bool       `json:"deinterlace,omitempty"`
	Denoise     bool       `json:"denoise,omitempty"`
}

// Validate checks the spec for internal consistency.
func (c CustomSpec) Validate() error {
	fail := func(msg string) error {
		return services.Wrap(services.ErrValidation, "plan", "validate custom spec", msg, nil)
	}
	if strings.TrimSpace(c.VideoCodec) == "" {
		return fail("video codec is required")
	}
	if c.VideoCodec != "copy" {
		switch c.Mode {
		case CustomModeCRF:
			if c.CRF < 0 || c.CRF > 51 {
				return fail(fmt.Sprintf("crf %d outside 0-51", c.CRF))
			}
		case CustomModeSize:
			if c.TargetMB <= 0 {
				return fail("target size must be positive")
			}
		case CustomModePercent:
			if c.Percent <= 0 || c.Percent > 100 {
				return fail("percent must be in (0, 100]")
			}
		default:
			return fail(fmt.Sprintf("unknown quality mode %q", c.Mode))
		}
	}
	if strings.TrimSpace(c.AudioCodec) == "" {
		return fail("audio codec is required")
	}
	if c.AudioCodec != "copy" && c.AudioCodec != "flac" && c.AudioKbps <= 0 {
		return fail("audio bitrate must be positive")
	}
	if (c.MaxWidth > 0) != (c.MaxHeight > 0) {
		return fail("resolution cap needs both width and height")
	}
	return nil
}

// Goal is the per-run intent that completes a preset: the preset choice
// plus whatever the preset's kind requires.
type Goal struct {
	PresetID    string
	TargetMB    float64
	Percent     float64
	Custom      *CustomSpec
	AllAudio    bool
	Deinterlace bool
	Denoise     bool
}

// EncodePlan is the fully resolved recipe for one input file. Every
// parameter the encoder invocation needs is fixed here; execution adds
// only the output path and pass bookkeeping.
type EncodePlan struct {
	Input      string
	PresetID   string
	PresetName string

	VideoCodec  string
	Backend     hwaccel.Backend
	RateControl RateControl
	CRF         int
	VideoKbps   int
	Speed       string

	AudioCodec string
	AudioKbps  int
	AllAudio   bool

	Filters     []string
	ScaleWidth  int
	ScaleHeight int

	Passes          int
	TargetSizeBytes int64

	DurationSeconds float64
	SourceWidth     int
	SourceHeight    int
	SourceSizeBytes int64

	Notes []string
}

// TwoPass reports whether the plan runs an analysis pass first.
func (p EncodePlan) TwoPass() bool { return p.Passes == 2 }

// OutputHeight returns the vertical resolution the encode will produce.
func (p EncodePlan) OutputHeight() int {
	if p.ScaleHeight > 0 {
		return p.ScaleHeight
	}
	return p.SourceHeight
}

// Resolution renders the planned output size for display.
func (p EncodePlan) Resolution() string {
	if p.ScaleWidth > 0 {
		return fmt.Sprintf("%dx%d", p.ScaleWidth, p.ScaleHeight)
	}
	if p.SourceWidth > 0 {
		return fmt.Sprintf("%dx%d", p.SourceWidth, p.SourceHeight)
	}
	return "unknown"
}

// Resolver turns presets and probed profiles into encode plans.
type Resolver struct {
	safety   float64
	allAudio bool
	logger   *slog.Logger
}

// NewResolver builds a resolver using the configured safety factor and
// audio-track policy.
func NewResolver(cfg *config.Config, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Resolver{
		safety:   cfg.Encode.SafetyFactor,
		allAudio: cfg.Encode.AllAudioTracks,
		logger:   logging.NewComponentLogger(logger, "plan"),
	}
}

// Resolve completes the chosen preset against the probed source and the
// discovered hardware capabilities. Per-file plan failures are wrapped
// as plan errors; infeasible size targets additionally match
// services.ErrInfeasibleTarget.
func (r *Resolver) Resolve(profile media.Profile, goal Goal, caps []hwaccel.Capability) (EncodePlan, error) {
	preset, err := Lookup(goal.PresetID)
	if err != nil {
		return EncodePlan{}, services.Wrap(services.ErrPlan, "plan", "resolve", "preset lookup failed", err)
	}

	p := EncodePlan{
		Input:           profile.Path,
		PresetID:        preset.ID,
		PresetName:      preset.Name,
		Backend:         hwaccel.BackendNone,
		AllAudio:        goal.AllAudio || r.allAudio,
		DurationSeconds: profile.DurationSeconds,
		SourceWidth:     profile.Width,
		SourceHeight:    profile.Height,
		SourceSizeBytes: profile.SizeBytes,
	}

	codec := preset.VideoCodec
	crf := preset.CRF
	speed := preset.Speed
	audioCodec := preset.AudioCodec
	audioKbps := preset.AudioKbps
	capWidth, capHeight := preset.MaxWidth, preset.MaxHeight
	deinterlace := goal.Deinterlace
	denoise := goal.Denoise
	var targetBytes int64

	planErr := func(operation, msg string, cause error) error {
		return services.Wrap(services.ErrPlan, "plan", operation, msg, cause)
	}

	switch preset.Kind {
	case KindStatic:
		if preset.TargetMB > 0 {
			targetBytes = int64(preset.TargetMB * 1_000_000)
		}
	case KindSmart:
		density := profile.BitsPerPixel()
		crf = SmartCRF(density)
		if w, h, reason := SmartCap(profile); w > 0 {
			capWidth, capHeight = w, h
			p.Notes = append(p.Notes, fmt.Sprintf("%s, downscaling to %dx%d", reason, w, h))
		}
		p.Notes = append(p.Notes, fmt.Sprintf("source %d kb/s, density %.4f, selected CRF %d",
			profile.EffectiveBitrateBps()/1000, density, crf))
	case KindTargetSize:
		if goal.TargetMB <= 0 {
			return EncodePlan{}, planErr("resolve target", "target size in MB is required", nil)
		}
		targetBytes = int64(goal.TargetMB * 1_000_000)
	case KindTargetPercent:
		if goal.Percent <= 0 || goal.Percent > 100 {
			return EncodePlan{}, planErr("resolve target", "percent must be in (0, 100]", nil)
		}
		if profile.SizeBytes <= 0 {
			return EncodePlan{}, planErr("resolve target", "source size unknown, cannot target a percentage", nil)
		}
		targetBytes = int64(float64(profile.SizeBytes) * goal.Percent / 100)
	case KindRemux:
		// Video stream is copied; nothing to derive.
	case KindCustom:
		if goal.Custom == nil {
			return EncodePlan{}, planErr("resolve custom", "custom parameters are required", nil)
		}
		if err := goal.Custom.Validate(); err != nil {
			return EncodePlan{}, services.Wrap(services.ErrPlan, "plan", "resolve custom", "invalid custom spec", err)
		}
		c := goal.Custom
		codec = c.VideoCodec
		speed = c.Speed
		audioCodec = c.AudioCodec
		audioKbps = c.AudioKbps
		capWidth, capHeight = c.MaxWidth, c.MaxHeight
		deinterlace = deinterlace || c.Deinterlace
		denoise = denoise || c.Denoise
		switch c.Mode {
		case CustomModeCRF:
			crf = c.CRF
		case CustomModeSize:
			targetBytes = int64(c.TargetMB * 1_000_000)
		case CustomModePercent:
			if profile.SizeBytes <= 0 {
				return EncodePlan{}, planErr("resolve custom", "source size unknown, cannot target a percentage", nil)
			}
			targetBytes = int64(float64(profile.SizeBytes) * c.Percent / 100)
		}
	}

	// Hardware encoders are only reachable through custom specs; fall
	// back to the matching software encoder when the host never
	// verified the backend.
	if hwaccel.IsHardwareEncoder(codec) {
		if backend, ok := supportedBackend(caps, codec); ok {
			p.Backend = backend
		} else {
			fallback := hwaccel.SoftwareFallback(codec)
			p.Notes = append(p.Notes, fmt.Sprintf("hardware encoder %s unavailable, using %s", codec, fallback))
			codec = fallback
		}
	}

	switch {
	case codec == "copy":
		p.RateControl = RateControlCopy
		p.Passes = 1
	case targetBytes > 0:
		kbps := TargetVideoKbps(targetBytes, profile.DurationSeconds, audioKbps, r.safety)
		boundWidth, boundHeight := profile.Width, profile.Height
		if capWidth > 0 && capWidth < boundWidth {
			boundWidth = capWidth
		}
		if capHeight > 0 && capHeight < boundHeight {
			boundHeight = capHeight
		}
		rung, found, viable := capForBitrate(kbps, boundWidth, boundHeight)
		if !viable {
			detail := fmt.Sprintf("derived video bitrate %d kb/s below the %d kb/s floor", kbps, MinViableKbps)
			return EncodePlan{}, services.Wrap(services.ErrInfeasibleTarget, "plan", "derive bitrate", detail, nil)
		}
		if found && (rung.Width < boundWidth || rung.Height < boundHeight) {
			capWidth, capHeight = rung.Width, rung.Height
			p.Notes = append(p.Notes, fmt.Sprintf("video budget %d kb/s supports at most %s, capping at %dx%d",
				kbps, rung.Label, rung.Width, rung.Height))
		}
		p.RateControl = RateControlTarget
		p.VideoKbps = kbps
		p.TargetSizeBytes = targetBytes
		p.Passes = 2
	default:
		p.RateControl = RateControlCRF
		p.CRF = crf
		p.Passes = 1
	}

	p.VideoCodec = codec
	if !hwaccel.IsHardwareEncoder(codec) && codec != "copy" {
		p.Speed = speed
	}
	p.AudioCodec = audioCodec
	if audioCodec != "copy" && audioCodec != "flac" {
		p.AudioKbps = audioKbps
	}

	if codec != "copy" {
		p.Filters = buildFilters(&p, profile, capWidth, capHeight, deinterlace, denoise)
	}

	r.logger.Debug("plan resolved",
		logging.String(logging.FieldInput, profile.Path),
		logging.String(logging.FieldPreset, p.PresetID),
		logging.String("codec", p.VideoCodec),
		logging.String("rate_control", string(p.RateControl)),
		logging.Int("passes", p.Passes),
	)
	return p, nil
}

// buildFilters assembles the -vf chain in fixed order: deinterlace,
// denoise, scale. Sources that keep their size still get the even
// dimension guard.
func buildFilters(p *EncodePlan, profile media.Profile, capWidth, capHeight int, deinterlace, denoise bool) []string {
	var filters []string
	if deinterlace {
		filters = append(filters, "yadif=mode=1")
	}
	if denoise {
		filters = append(filters, "hqdn3d=4:3:6:4.5")
	}
	if capWidth > 0 {
		if w, h, ok := fitWithin(profile.Width, profile.Height, capWidth, capHeight); ok {
			filters = append(filters, scaleFilter(w, h))
			p.ScaleWidth, p.ScaleHeight = w, h
		}
	}
	hasScale := false
	for _, f := range filters {
		if strings.HasPrefix(f, "scale=") {
			hasScale = true
			break
		}
	}
	if !hasScale {
		filters = append(filters, evenDimensionFilter)
	}
	return filters
}

func supportedBackend(caps []hwaccel.Capability, encoder string) (hwaccel.Backend, bool) {
	for _, capability := range caps {
		if capability.Supports(encoder) {
			return capability.Backend, true
		}
	}
	return hwaccel.BackendNone, false
}
