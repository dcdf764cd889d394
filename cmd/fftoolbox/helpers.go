package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"fftoolbox/internal/plan"
)

// formatBytes renders a byte count in decimal units, matching how size
// targets are specified.
func formatBytes(n int64) string {
	if n <= 0 {
		return "-"
	}
	return humanize.Bytes(uint64(n))
}

func formatSeconds(seconds float64) string {
	if seconds <= 0 {
		return "-"
	}
	return time.Duration(seconds * float64(time.Second)).Round(time.Second).String()
}

func formatPercent(value float64) string {
	return fmt.Sprintf("%.1f%%", value)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

// describeRateControl renders a preset's quality mode for catalog
// listings.
func describeRateControl(p plan.Preset) string {
	switch p.Kind {
	case plan.KindSmart:
		return "smart crf"
	case plan.KindTargetSize:
		if p.TargetMB > 0 {
			return fmt.Sprintf("target %.0f MB", p.TargetMB)
		}
		return "target size"
	case plan.KindTargetPercent:
		return "target percent"
	case plan.KindRemux:
		return "video copy"
	case plan.KindCustom:
		return "custom"
	default:
		if p.TargetMB > 0 {
			return fmt.Sprintf("target %.0f MB", p.TargetMB)
		}
		return fmt.Sprintf("crf %d", p.CRF)
	}
}

func describeResolutionCap(maxWidth, maxHeight int) string {
	if maxWidth <= 0 {
		return "source"
	}
	return fmt.Sprintf("%dx%d", maxWidth, maxHeight)
}

func describeAudio(codec string, kbps int) string {
	switch {
	case codec == "":
		return "-"
	case codec == "copy" || codec == "flac" || kbps <= 0:
		return codec
	default:
		return fmt.Sprintf("%s %dk", codec, kbps)
	}
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
