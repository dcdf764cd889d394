package plan_test

import (
	"errors"
	"strings"
	"testing"

	"fftoolbox/internal/config"
	"fftoolbox/internal/hwaccel"
	"fftoolbox/internal/media"
	"fftoolbox/internal/plan"
	"fftoolbox/internal/services"
)

func newResolver(t *testing.T) *plan.Resolver {
	t.Helper()
	cfg := config.Default()
	return plan.NewResolver(&cfg, nil)
}

func sourceProfile() media.Profile {
	return media.Profile{
		Path:            "/videos/input.mp4",
		Container:       "mov,mp4,m4a,3gp,3g2,mj2",
		VideoCodec:      "h264",
		AudioCodec:      "aac",
		Width:           1920,
		Height:          1080,
		DurationSeconds: 600,
		BitrateBps:      8_000_000,
		SizeBytes:       600_000_000,
		AudioTracks:     1,
	}
}

func TestResolveStaticCRFPreset(t *testing.T) {
	r := newResolver(t)
	p, err := r.Resolve(sourceProfile(), plan.Goal{PresetID: "web_1080p"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if p.RateControl != plan.RateControlCRF || p.CRF != 23 {
		t.Fatalf("rate control = %s crf %d, want crf 23", p.RateControl, p.CRF)
	}
	if p.Passes != 1 {
		t.Fatalf("passes = %d, want 1", p.Passes)
	}
	if p.VideoCodec != "libx264" || p.Speed != "slow" {
		t.Fatalf("codec/speed = %s/%s", p.VideoCodec, p.Speed)
	}
	if p.AudioCodec != "aac" || p.AudioKbps != 128 {
		t.Fatalf("audio = %s %d", p.AudioCodec, p.AudioKbps)
	}
	// 1080p source within the 1080p cap: no scale, just the even guard.
	if p.ScaleWidth != 0 {
		t.Fatalf("unexpected scale %dx%d", p.ScaleWidth, p.ScaleHeight)
	}
	if len(p.Filters) != 1 || !strings.Contains(p.Filters[0], "trunc(iw/2)") {
		t.Fatalf("filters = %v", p.Filters)
	}
}

func TestResolveNeverUpscales(t *testing.T) {
	src := sourceProfile()
	src.Width, src.Height = 854, 480

	r := newResolver(t)
	p, err := r.Resolve(src, plan.Goal{PresetID: "telegram"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if p.ScaleWidth != 0 || p.ScaleHeight != 0 {
		t.Fatalf("480p source must not be scaled toward a 1080p cap, got %dx%d", p.ScaleWidth, p.ScaleHeight)
	}
	for _, f := range p.Filters {
		if strings.Contains(f, "lanczos") {
			t.Fatalf("unexpected scale filter %q", f)
		}
	}
}

func TestResolveScalesDownToCap(t *testing.T) {
	src := sourceProfile()
	src.Width, src.Height = 3840, 2160

	r := newResolver(t)
	p, err := r.Resolve(src, plan.Goal{PresetID: "web_1080p"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if p.ScaleWidth != 1920 || p.ScaleHeight != 1080 {
		t.Fatalf("scale = %dx%d, want 1920x1080", p.ScaleWidth, p.ScaleHeight)
	}
	found := false
	for _, f := range p.Filters {
		if f == "scale=1920:1080:flags=lanczos" {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing lanczos scale filter in %v", p.Filters)
	}
}

func TestResolvePortraitSourceKeepsAspect(t *testing.T) {
	src := sourceProfile()
	src.Width, src.Height = 1080, 1920

	r := newResolver(t)
	p, err := r.Resolve(src, plan.Goal{PresetID: "web_1080p"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	// Height exceeds the 1080 cap; the fit keeps aspect and even dims.
	if p.ScaleWidth != 606 || p.ScaleHeight != 1080 {
		t.Fatalf("scale = %dx%d, want 606x1080", p.ScaleWidth, p.ScaleHeight)
	}
}

func TestResolveSizeTargetDerivesBitrate(t *testing.T) {
	src := sourceProfile()
	r := newResolver(t)
	p, err := r.Resolve(src, plan.Goal{PresetID: "target_mb", TargetMB: 100}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if p.RateControl != plan.RateControlTarget {
		t.Fatalf("rate control = %s, want target", p.RateControl)
	}
	if p.Passes != 2 {
		t.Fatalf("passes = %d, want 2", p.Passes)
	}
	if p.TargetSizeBytes != 100_000_000 {
		t.Fatalf("target bytes = %d", p.TargetSizeBytes)
	}
	// Convergence: video+audio over the duration lands near the target.
	totalBits := float64(p.VideoKbps+p.AudioKbps) * 1000 * src.DurationSeconds
	bytes := totalBits / 8
	if bytes > 100_000_000 || bytes < 90_000_000 {
		t.Fatalf("derived budget %f bytes misses the 100 MB target", bytes)
	}
	if p.CRF != 0 {
		t.Fatalf("size-targeted plan must not carry a CRF, got %d", p.CRF)
	}
}

func TestResolveSizeTargetStepsDownLadder(t *testing.T) {
	src := sourceProfile()
	// 22 MB over 10 minutes leaves ~153 kb/s of video after audio: too
	// little for 1080p or 480p, enough for 360p.
	r := newResolver(t)
	p, err := r.Resolve(src, plan.Goal{PresetID: "target_mb", TargetMB: 22}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if p.ScaleWidth != 640 || p.ScaleHeight != 360 {
		t.Fatalf("scale = %dx%d, want 640x360", p.ScaleWidth, p.ScaleHeight)
	}
	if len(p.Notes) == 0 {
		t.Fatal("expected a note describing the ladder step-down")
	}
}

func TestResolveInfeasibleTarget(t *testing.T) {
	src := sourceProfile()
	r := newResolver(t)
	_, err := r.Resolve(src, plan.Goal{PresetID: "target_mb", TargetMB: 1}, nil)
	if err == nil {
		t.Fatal("expected infeasible target error")
	}
	if !errors.Is(err, services.ErrInfeasibleTarget) {
		t.Fatalf("want ErrInfeasibleTarget, got %v", err)
	}
	if !errors.Is(err, services.ErrPlan) {
		t.Fatalf("infeasible target must classify as a plan error, got %v", err)
	}
}

func TestResolvePercentTarget(t *testing.T) {
	src := sourceProfile()
	r := newResolver(t)
	p, err := r.Resolve(src, plan.Goal{PresetID: "target_percent", Percent: 30}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if p.TargetSizeBytes != 180_000_000 {
		t.Fatalf("target bytes = %d, want 180000000", p.TargetSizeBytes)
	}
	if p.Passes != 2 {
		t.Fatalf("passes = %d, want 2", p.Passes)
	}

	if _, err := r.Resolve(src, plan.Goal{PresetID: "target_percent", Percent: 120}, nil); err == nil {
		t.Fatal("expected error for percent above 100")
	}
}

func TestResolveWhatsAppPreset(t *testing.T) {
	src := sourceProfile()
	src.Width, src.Height = 3840, 2160
	src.DurationSeconds = 300

	r := newResolver(t)
	p, err := r.Resolve(src, plan.Goal{PresetID: "whatsapp"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if p.TargetSizeBytes != 95_000_000 {
		t.Fatalf("target bytes = %d, want 95000000", p.TargetSizeBytes)
	}
	if p.Passes != 2 {
		t.Fatal("whatsapp preset must run two passes")
	}
	if p.ScaleWidth != 1280 || p.ScaleHeight != 720 {
		t.Fatalf("scale = %dx%d, want 1280x720", p.ScaleWidth, p.ScaleHeight)
	}
	if p.AudioKbps != 96 {
		t.Fatalf("audio kbps = %d, want 96", p.AudioKbps)
	}
	if p.OutputHeight() != 720 {
		t.Fatalf("output height = %d, want 720", p.OutputHeight())
	}
}

func TestResolveRemuxPreset(t *testing.T) {
	src := sourceProfile()
	r := newResolver(t)
	p, err := r.Resolve(src, plan.Goal{PresetID: "fix_audio"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if p.RateControl != plan.RateControlCopy {
		t.Fatalf("rate control = %s, want copy", p.RateControl)
	}
	if p.VideoCodec != "copy" || p.Passes != 1 {
		t.Fatalf("codec/passes = %s/%d", p.VideoCodec, p.Passes)
	}
	if len(p.Filters) != 0 {
		t.Fatalf("remux must not carry filters, got %v", p.Filters)
	}
	if p.AudioCodec != "aac" || p.AudioKbps != 192 {
		t.Fatalf("audio = %s %d", p.AudioCodec, p.AudioKbps)
	}
	if p.Speed != "" {
		t.Fatalf("remux must not carry a speed preset, got %q", p.Speed)
	}
}

func TestResolveSmartPreset(t *testing.T) {
	// Dense mezzanine source: high bitrate per pixel selects CRF 18.
	src := media.Profile{
		Path:            "/videos/master.mov",
		VideoCodec:      "prores",
		Width:           1920,
		Height:          1080,
		DurationSeconds: 120,
		BitrateBps:      1_200_000_000,
		SizeBytes:       18_000_000_000,
	}
	r := newResolver(t)
	p, err := r.Resolve(src, plan.Goal{PresetID: "smart"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if p.CRF != 18 {
		t.Fatalf("crf = %d, want 18 for dense source", p.CRF)
	}
	if len(p.Notes) == 0 {
		t.Fatal("smart plan should note its analysis")
	}

	// Lean 4K source: gentle CRF and a 1080p downscale recommendation.
	lean := media.Profile{
		Path:            "/videos/lean.mp4",
		VideoCodec:      "hevc",
		Width:           3840,
		Height:          2160,
		DurationSeconds: 600,
		BitrateBps:      6_000_000,
		SizeBytes:       450_000_000,
	}
	p, err = r.Resolve(lean, plan.Goal{PresetID: "smart"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if p.CRF != 26 {
		t.Fatalf("crf = %d, want 26 for lean source", p.CRF)
	}
	if p.ScaleWidth != 1920 || p.ScaleHeight != 1080 {
		t.Fatalf("scale = %dx%d, want 1920x1080", p.ScaleWidth, p.ScaleHeight)
	}
}

func TestResolveCustomHardwareFallsBackToSoftware(t *testing.T) {
	src := sourceProfile()
	goal := plan.Goal{
		PresetID: "custom",
		Custom: &plan.CustomSpec{
			VideoCodec: "hevc_nvenc",
			Mode:       plan.CustomModeCRF,
			CRF:        22,
			Speed:      "medium",
			AudioCodec: "aac",
			AudioKbps:  128,
		},
	}

	r := newResolver(t)

	// No capabilities at all: deterministic software fallback, no error.
	p, err := r.Resolve(src, goal, nil)
	if err != nil {
		t.Fatal(err)
	}
	if p.VideoCodec != "libx265" {
		t.Fatalf("codec = %s, want libx265 fallback", p.VideoCodec)
	}
	if p.Backend != hwaccel.BackendNone {
		t.Fatalf("backend = %s, want none", p.Backend)
	}
	noteFound := false
	for _, n := range p.Notes {
		if strings.Contains(n, "hevc_nvenc") {
			noteFound = true
		}
	}
	if !noteFound {
		t.Fatal("fallback should leave a note")
	}

	// Backend verified: the hardware encoder is kept and speed dropped.
	caps := []hwaccel.Capability{{Backend: hwaccel.BackendNVENC, Encoders: []string{"h264_nvenc", "hevc_nvenc"}}}
	p, err = r.Resolve(src, goal, caps)
	if err != nil {
		t.Fatal(err)
	}
	if p.VideoCodec != "hevc_nvenc" || p.Backend != hwaccel.BackendNVENC {
		t.Fatalf("codec/backend = %s/%s", p.VideoCodec, p.Backend)
	}
	if p.Speed != "" {
		t.Fatalf("hardware encoders take no speed preset, got %q", p.Speed)
	}
}

func TestResolveCustomValidation(t *testing.T) {
	src := sourceProfile()
	r := newResolver(t)

	if _, err := r.Resolve(src, plan.Goal{PresetID: "custom"}, nil); err == nil {
		t.Fatal("custom preset without a spec must fail")
	}

	bad := plan.Goal{PresetID: "custom", Custom: &plan.CustomSpec{VideoCodec: "libx264", Mode: plan.CustomModeCRF, CRF: 99, AudioCodec: "aac", AudioKbps: 128}}
	_, err := r.Resolve(src, bad, nil)
	if err == nil {
		t.Fatal("crf 99 must fail validation")
	}
	if !errors.Is(err, services.ErrPlan) {
		t.Fatalf("validation failure should classify as plan error, got %v", err)
	}
}

func TestResolveUnknownPreset(t *testing.T) {
	r := newResolver(t)
	_, err := r.Resolve(sourceProfile(), plan.Goal{PresetID: "nope"}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrPlan) || !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("unknown preset should be a plan and not-found error, got %v", err)
	}
}

// Resolve of a 4K mezzanine delivery: CRF mode, one pass, software
// H.264, native resolution kept.
func TestResolveProResDelivery(t *testing.T) {
	src := media.Profile{
		Path:            "/videos/delivery.mov",
		VideoCodec:      "prores",
		Width:           3840,
		Height:          2160,
		DurationSeconds: 180,
		BitrateBps:      440_000_000,
		SizeBytes:       10_000_000_000,
	}
	if got := plan.Suggest(src); got != "resolve_cleanup" {
		t.Fatalf("suggestion = %s, want resolve_cleanup", got)
	}

	r := newResolver(t)
	p, err := r.Resolve(src, plan.Goal{PresetID: "resolve_cleanup"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if p.RateControl != plan.RateControlCRF || p.CRF != 18 {
		t.Fatalf("rate control = %s crf %d, want crf 18", p.RateControl, p.CRF)
	}
	if p.Passes != 1 {
		t.Fatalf("passes = %d, want 1", p.Passes)
	}
	if p.VideoCodec != "libx264" {
		t.Fatalf("codec = %s, want libx264", p.VideoCodec)
	}
	if p.ScaleWidth != 0 {
		t.Fatalf("delivery cleanup keeps native 4K, got scale %dx%d", p.ScaleWidth, p.ScaleHeight)
	}
}

func TestTargetVideoKbps(t *testing.T) {
	// 100 MB over 600 s at 128 kb/s audio with 0.96 safety:
	// 100e6*8*0.96/600/1000 = 1280 kb/s total, minus audio = 1152.
	got := plan.TargetVideoKbps(100_000_000, 600, 128, 0.96)
	if got != 1152 {
		t.Fatalf("kbps = %d, want 1152", got)
	}
	if plan.TargetVideoKbps(100_000_000, 0, 128, 0.96) != 0 {
		t.Fatal("zero duration must yield zero")
	}
}
