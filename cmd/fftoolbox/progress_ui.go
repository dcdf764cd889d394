package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"

	"fftoolbox/internal/batch"
	"fftoolbox/internal/encode"
	"fftoolbox/internal/hwaccel"
	"fftoolbox/internal/logging"
	"fftoolbox/internal/plan"
)

// progressUI renders per-file encode progress: an in-place bar on a
// terminal, sampled plain lines otherwise. One instance serves a whole
// batch; the bar is rebuilt per file.
type progressUI struct {
	out     io.Writer
	tty     bool
	bar     *progressbar.ProgressBar
	sampler *logging.ProgressSampler
}

func newProgressUI(out io.Writer) *progressUI {
	return &progressUI{
		out:     out,
		tty:     shouldColorize(out),
		sampler: logging.NewProgressSampler(10),
	}
}

func (ui *progressUI) fileStart(index, total int, input string, p plan.EncodePlan, outputPath string) {
	fmt.Fprintf(ui.out, "[%d/%d] %s -> %s\n", index+1, total, input, outputPath)
	fmt.Fprintf(ui.out, "%s%s: %s\n", statusIndent, p.PresetID, planSummary(p))

	ui.sampler.Reset()
	if !ui.tty {
		return
	}
	ui.bar = progressbar.NewOptions(100,
		progressbar.OptionSetWriter(ui.out),
		progressbar.OptionSetDescription(passLabel(1, p.Passes)),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

func (ui *progressUI) progress(s encode.Snapshot) {
	if ui.bar != nil {
		ui.bar.Describe(fmt.Sprintf("%s %s", passLabel(s.Pass, passCount(s)), speedETA(s)))
		_ = ui.bar.Set(int(s.Percent))
		return
	}
	if ui.sampler.ShouldLog(s.Percent, fmt.Sprintf("%s-%d", s.Stage, s.Pass)) {
		fmt.Fprintf(ui.out, "%s%s %5.1f%% %s\n", statusIndent, s.Stage, s.Percent, speedETA(s))
	}
}

func (ui *progressUI) fileDone(rep batch.FileReport) {
	if ui.bar != nil {
		_ = ui.bar.Finish()
		ui.bar = nil
	}
	switch rep.Status {
	case encode.StatusSuccess:
		fmt.Fprintf(ui.out, "%sdone in %s: %s -> %s (saved %s)\n",
			statusIndent, formatSeconds(rep.Seconds),
			formatBytes(rep.InputBytes), formatBytes(rep.OutputBytes),
			formatPercent(rep.SavedPercent))
	case encode.StatusCancelled:
		fmt.Fprintf(ui.out, "%scancelled\n", statusIndent)
	default:
		fmt.Fprintf(ui.out, "%sfailed at %s: %v\n", statusIndent, rep.Stage, rep.Err)
	}
	for _, note := range rep.Notes {
		fmt.Fprintf(ui.out, "%snote: %s\n", statusIndent, note)
	}
}

// planSummary renders the resolved parameters a user cares about before
// the encode starts.
func planSummary(p plan.EncodePlan) string {
	parts := []string{p.VideoCodec}
	switch p.RateControl {
	case plan.RateControlCRF:
		parts = append(parts, fmt.Sprintf("crf %d", p.CRF))
	case plan.RateControlTarget:
		parts = append(parts, fmt.Sprintf("%d kbps two-pass", p.VideoKbps))
	case plan.RateControlCopy:
		parts = append(parts, "stream copy")
	}
	if p.RateControl != plan.RateControlCopy {
		parts = append(parts, p.Resolution())
	}
	if p.Backend != hwaccel.BackendNone && p.Backend != "" {
		parts = append(parts, strings.ToUpper(string(p.Backend)))
	}
	return strings.Join(parts, ", ")
}

func passLabel(pass, total int) string {
	if total < 2 {
		return "encoding"
	}
	if pass == 1 {
		return "pass 1/2 analyzing"
	}
	return "pass 2/2 encoding"
}

// passCount infers the pass total from the snapshot stage names the
// executor emits.
func passCount(s encode.Snapshot) int {
	if strings.HasPrefix(s.Stage, "pass") {
		return 2
	}
	return 1
}

func speedETA(s encode.Snapshot) string {
	var b strings.Builder
	if s.Speed > 0 {
		fmt.Fprintf(&b, "%.2fx", s.Speed)
	}
	if s.ETAKnown() && !s.Final {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "eta %s", formatSeconds(s.ETASeconds))
	}
	return b.String()
}
