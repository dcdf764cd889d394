package encode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fftoolbox/internal/hwaccel"
	"fftoolbox/internal/logging"
	"fftoolbox/internal/plan"
	"fftoolbox/internal/services"
)

func newStubExecutor() *Executor {
	return &Executor{
		binary:       "ffmpeg",
		verifySize:   true,
		retryFactor:  0.90,
		trialTimeout: time.Second,
		logger:       logging.NewNop(),
	}
}

func writeFakeOutput(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.WriteFile(path, bytes.Repeat([]byte{0xAB}, size), 0o644); err != nil {
		t.Fatalf("write fake output: %v", err)
	}
}

func emit(onStdout func(string), lines ...string) {
	if onStdout == nil {
		return
	}
	for _, line := range lines {
		onStdout(line)
	}
}

func argValue(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func singlePassPlan(input string) plan.EncodePlan {
	return plan.EncodePlan{
		Input:           input,
		PresetID:        "quick",
		VideoCodec:      "libx264",
		Backend:         hwaccel.BackendNone,
		RateControl:     plan.RateControlCRF,
		CRF:             23,
		Speed:           "medium",
		AudioCodec:      "aac",
		AudioKbps:       128,
		Passes:          1,
		DurationSeconds: 10,
		SourceSizeBytes: 5_000_000,
	}
}

func TestExecuteSinglePassSuccess(t *testing.T) {
	e := newStubExecutor()
	out := filepath.Join(t.TempDir(), "nested", "clip_quick.mp4")

	e.run = func(ctx context.Context, args []string, onStdout func(string)) (string, error) {
		writeFakeOutput(t, args[len(args)-1], 2048)
		emit(onStdout,
			"out_time_us=5000000", "speed=1.5x", "progress=continue",
			"out_time_us=10000000", "speed=1.5x", "progress=end",
		)
		return "", nil
	}

	var snapshots []Snapshot
	res, err := e.Execute(context.Background(), singlePassPlan("/videos/clip.mp4"), out, func(s Snapshot) {
		snapshots = append(snapshots, s)
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Status != StatusSuccess {
		t.Fatalf("Status = %s, want success", res.Status)
	}
	if res.OutputBytes != 2048 {
		t.Fatalf("OutputBytes = %d, want 2048", res.OutputBytes)
	}
	if res.InputBytes != 5_000_000 {
		t.Fatalf("InputBytes = %d, want plan source size", res.InputBytes)
	}
	if res.PresetID != "quick" || res.Input != "/videos/clip.mp4" || res.Output != out {
		t.Fatalf("result identity fields wrong: %+v", res)
	}
	if len(snapshots) != 2 {
		t.Fatalf("got %d snapshots, want 2", len(snapshots))
	}
	if snapshots[0].Final || !snapshots[1].Final {
		t.Fatalf("snapshot finality wrong: %+v", snapshots)
	}
	if snapshots[1].Percent != 100 {
		t.Fatalf("final Percent = %v, want 100", snapshots[1].Percent)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("output missing after success: %v", err)
	}
}

func TestExecuteTwoPassRunsAnalysisThenEncode(t *testing.T) {
	e := newStubExecutor()
	out := filepath.Join(t.TempDir(), "talk_whatsapp.mp4")

	var argsByCall [][]string
	e.run = func(ctx context.Context, args []string, onStdout func(string)) (string, error) {
		argsByCall = append(argsByCall, args)
		if argValue(args, "-pass") == "2" {
			writeFakeOutput(t, args[len(args)-1], 1024)
		}
		emit(onStdout, "out_time_us=10000000", "speed=1.0x", "progress=end")
		return "", nil
	}

	p := plan.EncodePlan{
		Input:           "/videos/talk.mov",
		PresetID:        "whatsapp",
		VideoCodec:      "libx264",
		Backend:         hwaccel.BackendNone,
		RateControl:     plan.RateControlTarget,
		VideoKbps:       800,
		Speed:           "medium",
		AudioCodec:      "aac",
		AudioKbps:       96,
		Passes:          2,
		TargetSizeBytes: 10_000_000,
		DurationSeconds: 10,
	}

	var passes []int
	res, err := e.Execute(context.Background(), p, out, func(s Snapshot) {
		passes = append(passes, s.Pass)
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Status != StatusSuccess || res.Passes != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(argsByCall) != 2 {
		t.Fatalf("got %d ffmpeg invocations, want 2", len(argsByCall))
	}

	first, second := argsByCall[0], argsByCall[1]
	if argValue(first, "-pass") != "1" || argValue(second, "-pass") != "2" {
		t.Fatalf("pass order wrong: %v then %v", argValue(first, "-pass"), argValue(second, "-pass"))
	}
	if first[len(first)-1] != os.DevNull {
		t.Fatalf("analysis pass should discard output, wrote to %s", first[len(first)-1])
	}
	if !strings.Contains(strings.Join(first, " "), "-an") {
		t.Fatal("analysis pass should drop audio")
	}
	if second[len(second)-1] != out {
		t.Fatalf("final pass wrote to %s, want %s", second[len(second)-1], out)
	}

	prefix := argValue(first, "-passlogfile")
	if prefix == "" || prefix != argValue(second, "-passlogfile") {
		t.Fatalf("pass log prefixes differ: %q vs %q", prefix, argValue(second, "-passlogfile"))
	}
	if !strings.Contains(prefix, "fftoolbox-") {
		t.Fatalf("pass log prefix %q not in a scoped temp dir", prefix)
	}
	if _, err := os.Stat(filepath.Dir(prefix)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("pass log directory should be removed, stat err = %v", err)
	}

	if len(passes) == 0 || passes[0] != 1 || passes[len(passes)-1] != 2 {
		t.Fatalf("snapshot pass sequence wrong: %v", passes)
	}
}

func TestExecuteRetriesWhenOutputExceedsTarget(t *testing.T) {
	e := newStubExecutor()
	out := filepath.Join(t.TempDir(), "talk_target_mb.mp4")

	sizes := []int{1_200_000, 900_000}
	var finalPassRates []string
	e.run = func(ctx context.Context, args []string, onStdout func(string)) (string, error) {
		if argValue(args, "-pass") == "2" {
			writeFakeOutput(t, args[len(args)-1], sizes[len(finalPassRates)])
			finalPassRates = append(finalPassRates, argValue(args, "-b:v"))
		}
		emit(onStdout, "progress=end")
		return "", nil
	}

	p := plan.EncodePlan{
		Input:           "/videos/talk.mov",
		PresetID:        "target_mb",
		VideoCodec:      "libx264",
		RateControl:     plan.RateControlTarget,
		VideoKbps:       700,
		Speed:           "medium",
		AudioCodec:      "aac",
		AudioKbps:       32,
		Passes:          2,
		TargetSizeBytes: 1_000_000,
		DurationSeconds: 10,
	}

	res, err := e.Execute(context.Background(), p, out, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.Retried {
		t.Fatal("expected a size-verification retry")
	}
	if res.OutputBytes != 900_000 {
		t.Fatalf("OutputBytes = %d, want retry output size", res.OutputBytes)
	}
	if len(finalPassRates) != 2 {
		t.Fatalf("got %d full encodes, want 2", len(finalPassRates))
	}

	retryKbps := plan.TargetVideoKbps(p.TargetSizeBytes, p.DurationSeconds, p.AudioKbps, 0.90)
	if retryKbps <= 0 || retryKbps >= p.VideoKbps {
		t.Fatalf("retry budget %d should be positive and tighter than %d", retryKbps, p.VideoKbps)
	}
	if want := fmt.Sprintf("%dk", retryKbps); finalPassRates[1] != want {
		t.Fatalf("retry bitrate = %s, want %s", finalPassRates[1], want)
	}
	if joined := strings.Join(res.Notes, "; "); !strings.Contains(joined, "re-encoded") {
		t.Fatalf("notes should record the retry: %v", res.Notes)
	}
}

func TestExecuteKeepsOversizedOutputAfterRetry(t *testing.T) {
	e := newStubExecutor()
	out := filepath.Join(t.TempDir(), "stubborn.mp4")

	attempt := 0
	e.run = func(ctx context.Context, args []string, onStdout func(string)) (string, error) {
		if argValue(args, "-pass") == "2" {
			attempt++
			writeFakeOutput(t, args[len(args)-1], 1_500_000)
		}
		emit(onStdout, "progress=end")
		return "", nil
	}

	p := plan.EncodePlan{
		Input:           "/videos/talk.mov",
		PresetID:        "target_mb",
		VideoCodec:      "libx264",
		RateControl:     plan.RateControlTarget,
		VideoKbps:       700,
		AudioCodec:      "aac",
		AudioKbps:       32,
		Passes:          2,
		TargetSizeBytes: 1_000_000,
		DurationSeconds: 10,
	}

	res, err := e.Execute(context.Background(), p, out, nil)
	if err != nil {
		t.Fatalf("still-oversized output should not fail the encode: %v", err)
	}
	if attempt != 2 {
		t.Fatalf("got %d attempts, want exactly 2", attempt)
	}
	if res.Status != StatusSuccess || !res.Retried {
		t.Fatalf("unexpected result: %+v", res)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("oversized output should be kept: %v", err)
	}
}

func TestExecuteFailureRemovesPartialOutput(t *testing.T) {
	e := newStubExecutor()
	out := filepath.Join(t.TempDir(), "broken_quick.mp4")

	e.run = func(ctx context.Context, args []string, onStdout func(string)) (string, error) {
		writeFakeOutput(t, args[len(args)-1], 10)
		return "x264 [error]: malformed input\nConversion failed!", errors.New("exit status 1")
	}

	res, err := e.Execute(context.Background(), singlePassPlan("/videos/broken.mp4"), out, nil)
	if !errors.Is(err, services.ErrExecution) {
		t.Fatalf("err = %v, want ErrExecution", err)
	}
	if !strings.Contains(err.Error(), "Conversion failed!") {
		t.Fatalf("error should carry the stderr tail: %v", err)
	}
	if res.Status != StatusFailed {
		t.Fatalf("Status = %s, want failed", res.Status)
	}
	if !services.IsTerminalFailure(err) {
		t.Fatal("execution failure should be terminal")
	}
	if _, statErr := os.Stat(out); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("partial output should be removed, stat err = %v", statErr)
	}
}

func TestExecuteCancellation(t *testing.T) {
	e := newStubExecutor()
	out := filepath.Join(t.TempDir(), "cancelled_quick.mp4")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.run = func(ctx context.Context, args []string, onStdout func(string)) (string, error) {
		writeFakeOutput(t, args[len(args)-1], 10)
		cancel()
		return "", ctx.Err()
	}

	res, err := e.Execute(ctx, singlePassPlan("/videos/long.mp4"), out, nil)
	if !errors.Is(err, services.ErrCancelled) {
		t.Fatalf("err = %v, want ErrCancelled", err)
	}
	if res.Status != StatusCancelled {
		t.Fatalf("Status = %s, want cancelled", res.Status)
	}
	if services.IsTerminalFailure(err) {
		t.Fatal("cancellation should not count as a terminal failure")
	}
	if _, statErr := os.Stat(out); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("partial output should be removed, stat err = %v", statErr)
	}
}

func TestExecuteHardwareTrialFallsBackToSoftware(t *testing.T) {
	e := newStubExecutor()
	out := filepath.Join(t.TempDir(), "clip_custom.mp4")

	var trialCodec, encodeCodec string
	e.run = func(ctx context.Context, args []string, onStdout func(string)) (string, error) {
		if argValue(args, "-f") == "null" {
			trialCodec = argValue(args, "-c:v")
			return "No capable devices found", errors.New("exit status 1")
		}
		encodeCodec = argValue(args, "-c:v")
		writeFakeOutput(t, args[len(args)-1], 512)
		emit(onStdout, "progress=end")
		return "", nil
	}

	p := singlePassPlan("/videos/clip.mp4")
	p.PresetID = "custom"
	p.VideoCodec = "hevc_nvenc"
	p.Backend = hwaccel.BackendNVENC

	res, err := e.Execute(context.Background(), p, out, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if trialCodec != "hevc_nvenc" {
		t.Fatalf("trial ran with %q, want hevc_nvenc", trialCodec)
	}
	if encodeCodec != "libx265" {
		t.Fatalf("encode ran with %q, want software fallback libx265", encodeCodec)
	}
	if res.Status != StatusSuccess {
		t.Fatalf("Status = %s, want success", res.Status)
	}
	if joined := strings.Join(res.Notes, "; "); !strings.Contains(joined, "rejected this source") {
		t.Fatalf("notes should record the fallback: %v", res.Notes)
	}
}

func TestExecuteHardwareTrialSuccessKeepsEncoder(t *testing.T) {
	e := newStubExecutor()
	out := filepath.Join(t.TempDir(), "clip_custom.mp4")

	var encodeCodec string
	e.run = func(ctx context.Context, args []string, onStdout func(string)) (string, error) {
		if argValue(args, "-f") == "null" {
			return "", nil
		}
		encodeCodec = argValue(args, "-c:v")
		writeFakeOutput(t, args[len(args)-1], 512)
		emit(onStdout, "progress=end")
		return "", nil
	}

	p := singlePassPlan("/videos/clip.mp4")
	p.VideoCodec = "h264_nvenc"
	p.Backend = hwaccel.BackendNVENC

	res, err := e.Execute(context.Background(), p, out, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if encodeCodec != "h264_nvenc" {
		t.Fatalf("encode ran with %q, want h264_nvenc", encodeCodec)
	}
	if len(res.Notes) != 0 {
		t.Fatalf("no fallback note expected: %v", res.Notes)
	}
}

func TestExecuteFailsWhenNoOutputProduced(t *testing.T) {
	e := newStubExecutor()
	out := filepath.Join(t.TempDir(), "ghost_quick.mp4")

	e.run = func(ctx context.Context, args []string, onStdout func(string)) (string, error) {
		emit(onStdout, "progress=end")
		return "", nil
	}

	_, err := e.Execute(context.Background(), singlePassPlan("/videos/clip.mp4"), out, nil)
	if !errors.Is(err, services.ErrExecution) {
		t.Fatalf("err = %v, want ErrExecution", err)
	}
	if !strings.Contains(err.Error(), "no output") {
		t.Fatalf("error should explain the missing output: %v", err)
	}
}

func TestTailBufferKeepsOnlyTail(t *testing.T) {
	tb := newTailBuffer(8)
	tb.Write([]byte("abcdef"))
	tb.Write([]byte("ghij"))
	if got := tb.String(); got != "cdefghij" {
		t.Fatalf("tail = %q, want %q", got, "cdefghij")
	}
}

func TestLastLines(t *testing.T) {
	in := "one\ntwo\nthree\nfour\nfive\n"
	if got := lastLines(in, 3); got != "three; four; five" {
		t.Fatalf("lastLines = %q", got)
	}
	if got := lastLines("solo", 3); got != "solo" {
		t.Fatalf("lastLines single = %q", got)
	}
}
