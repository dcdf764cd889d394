package encode

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"fftoolbox/internal/plan"
)

// Rate-control envelope multipliers applied around the derived bitrate.
const (
	maxrateFactor = 1.3
	bufsizeFactor = 2.0
)

// BuildArgs renders the full ffmpeg argument list for one pass of a
// plan. pass is 0 for single-pass encodes, 1 for the analysis pass and
// 2 for the final pass; passLogPrefix scopes the two-pass statistics.
// The argument order is fixed so identical plans produce identical
// command lines.
func BuildArgs(p plan.EncodePlan, outputPath string, pass int, passLogPrefix string) []string {
	args := []string{"-hide_banner", "-y", "-nostdin", "-i", p.Input}

	if p.RateControl == plan.RateControlCopy {
		args = append(args, mapArgs(p.AllAudio)...)
		args = append(args, "-c:v", "copy")
		args = append(args, audioArgs(p)...)
		args = append(args, "-movflags", "+faststart")
		args = append(args, progressArgs()...)
		return append(args, outputPath)
	}

	if len(p.Filters) > 0 {
		args = append(args, "-vf", strings.Join(p.Filters, ","))
	}
	args = append(args, mapArgs(p.AllAudio)...)
	args = append(args, codecArgs(p.VideoCodec)...)

	switch p.RateControl {
	case plan.RateControlTarget:
		kbps := p.VideoKbps
		args = append(args,
			"-b:v", rateArg(kbps),
			"-maxrate", rateArg(int(float64(kbps)*maxrateFactor)),
			"-bufsize", rateArg(int(float64(kbps)*bufsizeFactor)),
		)
	case plan.RateControlCRF:
		args = append(args, "-crf", strconv.Itoa(p.CRF))
	}

	if p.Speed != "" {
		args = append(args, "-preset", p.Speed)
	}

	switch pass {
	case 1:
		// Analysis pass: audio stripped, output discarded.
		args = append(args, "-pass", "1", "-passlogfile", passLogPrefix, "-an", "-f", "mp4")
		args = append(args, progressArgs()...)
		return append(args, os.DevNull)
	case 2:
		args = append(args, "-pass", "2", "-passlogfile", passLogPrefix)
	}

	args = append(args, audioArgs(p)...)
	args = append(args, "-movflags", "+faststart")
	args = append(args, progressArgs()...)
	return append(args, outputPath)
}

// trialArgs builds a one-second probe of the real input through the
// plan's encoder, discarded to the null muxer. It proves the hardware
// path accepts this source's resolution and pixel format before the
// full encode commits to it.
func trialArgs(p plan.EncodePlan) []string {
	args := []string{"-hide_banner", "-v", "error", "-nostdin", "-i", p.Input}
	if len(p.Filters) > 0 {
		args = append(args, "-vf", strings.Join(p.Filters, ","))
	}
	args = append(args, "-map", "0:v:0", "-c:v", p.VideoCodec, "-an", "-t", "1", "-f", "null", "-")
	return args
}

func mapArgs(allAudio bool) []string {
	if allAudio {
		return []string{"-map", "0:v", "-map", "0:a"}
	}
	return []string{"-map", "0:v", "-map", "0:a?"}
}

func codecArgs(codec string) []string {
	switch codec {
	case "libx264":
		return []string{"-c:v", "libx264", "-profile:v", "high", "-pix_fmt", "yuv420p"}
	case "libx265":
		return []string{"-c:v", "libx265", "-pix_fmt", "yuv420p", "-tag:v", "hvc1"}
	default:
		return []string{"-c:v", codec, "-pix_fmt", "yuv420p"}
	}
}

func audioArgs(p plan.EncodePlan) []string {
	switch p.AudioCodec {
	case "copy":
		return []string{"-c:a", "copy"}
	case "flac":
		return []string{"-c:a", "flac"}
	default:
		return []string{"-c:a", p.AudioCodec, "-b:a", rateArg(p.AudioKbps)}
	}
}

func progressArgs() []string {
	return []string{"-progress", "pipe:1", "-nostats"}
}

func rateArg(kbps int) string {
	return fmt.Sprintf("%dk", kbps)
}
