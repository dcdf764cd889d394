package encode

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"fftoolbox/internal/config"
	"fftoolbox/internal/hwaccel"
	"fftoolbox/internal/logging"
	"fftoolbox/internal/plan"
	"fftoolbox/internal/services"
)

// Status is the terminal state of one encode attempt.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Result is the outcome of executing one plan.
type Result struct {
	Input       string
	Output      string
	PresetID    string
	Status      Status
	Err         error
	InputBytes  int64
	OutputBytes int64
	WallSeconds float64
	Passes      int
	Retried     bool
	Notes       []string
}

const (
	snapshotBuffer  = 16
	stderrTailLimit = 64 * 1024
	waitDelay       = 5 * time.Second
)

// runFunc abstracts ffmpeg invocation for testability. It feeds stdout
// lines to onStdout as they arrive and returns the stderr tail.
type runFunc func(ctx context.Context, args []string, onStdout func(string)) (string, error)

// Executor runs resolved plans against the configured ffmpeg binary,
// one at a time.
type Executor struct {
	binary       string
	verifySize   bool
	retryFactor  float64
	trialTimeout time.Duration
	logger       *slog.Logger
	run          runFunc
}

// NewExecutor builds an executor bound to the configured binary.
func NewExecutor(cfg *config.Config, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = logging.NewNop()
	}
	e := &Executor{
		binary:       cfg.FFmpegBinary(),
		verifySize:   cfg.Encode.VerifySize,
		retryFactor:  cfg.Encode.RetryFactor,
		trialTimeout: time.Duration(cfg.Hardware.ProbeTimeoutSeconds) * time.Second,
		logger:       logging.NewComponentLogger(logger, "executor"),
	}
	e.run = e.runFFmpeg
	return e
}

// Execute runs the plan's passes into outputPath, streaming progress
// snapshots to onProgress. A non-nil error always accompanies a failed
// or cancelled result; partial outputs are removed before returning.
func (e *Executor) Execute(ctx context.Context, p plan.EncodePlan, outputPath string, onProgress func(Snapshot)) (Result, error) {
	start := time.Now()
	res := Result{
		Input:      p.Input,
		Output:     outputPath,
		PresetID:   p.PresetID,
		InputBytes: p.SourceSizeBytes,
		Passes:     p.Passes,
		Notes:      append([]string(nil), p.Notes...),
	}
	fail := func(err error) (Result, error) {
		e.removePartial(outputPath)
		res.Status = statusFor(err)
		res.Err = err
		res.WallSeconds = time.Since(start).Seconds()
		return res, err
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fail(services.Wrap(services.ErrExecution, "encode", "prepare output", "cannot create output directory", err))
	}

	// A verified backend can still reject this particular source, so
	// prove it on one second of the real input before committing.
	if p.Backend != hwaccel.BackendNone {
		if err := e.verifyHardware(ctx, p); err != nil {
			if ctx.Err() != nil {
				return fail(services.Wrap(services.ErrCancelled, "encode", "verify hardware", "encode interrupted", ctx.Err()))
			}
			fallback := hwaccel.SoftwareFallback(p.VideoCodec)
			e.logger.Warn("hardware encoder rejected this source, using software",
				logging.String(logging.FieldInput, p.Input),
				logging.String("encoder", p.VideoCodec),
				logging.String("fallback", fallback),
				logging.Error(err),
			)
			res.Notes = append(res.Notes, fmt.Sprintf("%s rejected this source, encoded with %s", p.VideoCodec, fallback))
			p.VideoCodec = fallback
			p.Backend = hwaccel.BackendNone
		}
	}

	if err := e.runPasses(ctx, p, outputPath, onProgress); err != nil {
		return fail(err)
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return fail(services.Wrap(services.ErrExecution, "encode", "verify output", "encoder exited cleanly but produced no output", err))
	}
	res.OutputBytes = info.Size()

	// Rate control can overshoot a size target through B-frame and
	// container overhead. One re-encode with a tighter budget settles
	// it.
	if e.verifySize && p.TargetSizeBytes > 0 && res.OutputBytes > p.TargetSizeBytes {
		retry := p
		retry.VideoKbps = plan.TargetVideoKbps(p.TargetSizeBytes, p.DurationSeconds, p.AudioKbps, e.retryFactor)
		e.logger.Warn("output exceeds size target, re-encoding with tighter budget",
			logging.String(logging.FieldOutput, outputPath),
			logging.Int64("output_bytes", res.OutputBytes),
			logging.Int64("target_bytes", p.TargetSizeBytes),
			logging.Int("retry_kbps", retry.VideoKbps),
		)
		if err := e.runPasses(ctx, retry, outputPath, onProgress); err != nil {
			return fail(err)
		}
		res.Retried = true
		res.Notes = append(res.Notes, "size target missed on first attempt, re-encoded with tighter budget")
		info, err := os.Stat(outputPath)
		if err != nil {
			return fail(services.Wrap(services.ErrExecution, "encode", "verify output", "retry produced no output", err))
		}
		res.OutputBytes = info.Size()
		if res.OutputBytes > p.TargetSizeBytes {
			e.logger.Warn("output still exceeds size target after retry",
				logging.String(logging.FieldOutput, outputPath),
				logging.Int64("output_bytes", res.OutputBytes),
				logging.Int64("target_bytes", p.TargetSizeBytes),
			)
		}
	}

	res.Status = StatusSuccess
	res.WallSeconds = time.Since(start).Seconds()
	e.logger.Info("encode complete",
		logging.String(logging.FieldInput, p.Input),
		logging.String(logging.FieldOutput, outputPath),
		logging.String(logging.FieldPreset, p.PresetID),
		logging.Int64("output_bytes", res.OutputBytes),
		logging.Float64("wall_seconds", res.WallSeconds),
	)
	return res, nil
}

// runPasses executes the plan's one or two passes. Two-pass statistics
// live in a temporary directory scoped to this call and are removed on
// every exit path.
func (e *Executor) runPasses(ctx context.Context, p plan.EncodePlan, outputPath string, onProgress func(Snapshot)) error {
	if !p.TwoPass() {
		stage := "encode"
		if p.RateControl == plan.RateControlCopy {
			stage = "remux"
		}
		return e.runPass(ctx, BuildArgs(p, outputPath, 0, ""), stage, 0, p.DurationSeconds, onProgress)
	}

	tmpDir, err := os.MkdirTemp("", "fftoolbox-")
	if err != nil {
		return services.Wrap(services.ErrExecution, "encode", "prepare passes", "cannot create pass log directory", err)
	}
	defer os.RemoveAll(tmpDir)
	prefix := filepath.Join(tmpDir, "ff2pass")

	if err := e.runPass(ctx, BuildArgs(p, outputPath, 1, prefix), "pass1", 1, p.DurationSeconds, onProgress); err != nil {
		return err
	}
	return e.runPass(ctx, BuildArgs(p, outputPath, 2, prefix), "pass2", 2, p.DurationSeconds, onProgress)
}

// runPass spawns one ffmpeg invocation and forwards its progress
// stream. The process runs on a feeder goroutine while this goroutine
// drains the bounded snapshot channel; slow consumers drop snapshots
// rather than stall the encoder.
func (e *Executor) runPass(ctx context.Context, args []string, stage string, pass int, durationSeconds float64, onProgress func(Snapshot)) error {
	parser := newProgressParser(stage, pass, durationSeconds)
	snapshots := make(chan Snapshot, snapshotBuffer)
	errCh := make(chan error, 1)

	go func() {
		tail, err := e.run(ctx, args, func(line string) {
			if s, ok := parser.feed(line); ok {
				select {
				case snapshots <- s:
				default:
				}
			}
		})
		errCh <- classifyRunError(ctx, err, tail, stage)
		close(snapshots)
	}()

	for s := range snapshots {
		if onProgress != nil {
			onProgress(s)
		}
	}
	return <-errCh
}

func (e *Executor) verifyHardware(ctx context.Context, p plan.EncodePlan) error {
	trialCtx, cancel := context.WithTimeout(ctx, e.trialTimeout)
	defer cancel()
	tail, err := e.run(trialCtx, trialArgs(p), nil)
	if err != nil {
		if t := strings.TrimSpace(tail); t != "" {
			return fmt.Errorf("%w: %s", err, lastLines(t, 4))
		}
		return err
	}
	return nil
}

// runFFmpeg is the production run hook. The process gets its own group
// so cancellation kills every encoder thread and helper, not just the
// leader.
func (e *Executor) runFFmpeg(ctx context.Context, args []string, onStdout func(string)) (string, error) {
	cmd := exec.CommandContext(ctx, e.binary, args...)
	tail := newTailBuffer(stderrTailLimit)
	cmd.Stderr = tail
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return os.ErrProcessDone
		}
		return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	}
	cmd.WaitDelay = waitDelay

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start %s: %w", e.binary, err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)
	for scanner.Scan() {
		if onStdout != nil {
			onStdout(scanner.Text())
		}
	}
	scanErr := scanner.Err()

	if err := cmd.Wait(); err != nil {
		return tail.String(), err
	}
	if scanErr != nil {
		return tail.String(), fmt.Errorf("scan progress stream: %w", scanErr)
	}
	return tail.String(), nil
}

func (e *Executor) removePartial(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		e.logger.Warn("failed to remove partial output",
			logging.String(logging.FieldOutput, path),
			logging.Error(err),
		)
	}
}

func classifyRunError(ctx context.Context, err error, stderrTail, stage string) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return services.Wrap(services.ErrCancelled, "encode", stage, "encode interrupted", ctx.Err())
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return services.Wrap(services.ErrTimeout, "encode", stage, "encode timed out", ctx.Err())
	}

	detail := "ffmpeg failed"
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		detail = fmt.Sprintf("ffmpeg exited with code %d", exitErr.ExitCode())
	}
	if tail := strings.TrimSpace(stderrTail); tail != "" {
		detail = detail + ": " + lastLines(tail, 6)
	}
	return services.Wrap(services.ErrExecution, "encode", stage, detail, err)
}

func statusFor(err error) Status {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, services.ErrCancelled):
		return StatusCancelled
	default:
		return StatusFailed
	}
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.Join(lines, "; ")
}

// tailBuffer keeps the last capacity bytes written through it, so a
// chatty encoder cannot grow an error report without bound.
type tailBuffer struct {
	mu       sync.Mutex
	buf      []byte
	capacity int
}

func newTailBuffer(capacity int) *tailBuffer {
	return &tailBuffer{capacity: capacity}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.capacity {
		t.buf = t.buf[len(t.buf)-t.capacity:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
