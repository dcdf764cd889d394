package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"

	"fftoolbox/internal/config"
	"fftoolbox/internal/encode"
	"fftoolbox/internal/history"
	"fftoolbox/internal/hwaccel"
	"fftoolbox/internal/logging"
	"fftoolbox/internal/media"
	"fftoolbox/internal/naming"
	"fftoolbox/internal/plan"
	"fftoolbox/internal/services"
)

// WhatsApp rejects videos over 100 MB; together with a 720p cap that is
// the compatibility bar the report flags.
const whatsAppMaxBytes = 100_000_000

// FileReport is the outcome of one batch input.
type FileReport struct {
	Input        string
	Output       string
	PresetID     string
	Status       encode.Status
	Stage        string
	Err          error
	InputBytes   int64
	OutputBytes  int64
	SavedPercent float64
	WhatsAppOK   bool
	Passes       int
	Retried      bool
	Seconds      float64
	Notes        []string
}

// Summary aggregates a finished batch.
type Summary struct {
	RunID     string
	Reports   []FileReport
	Succeeded int
	Failed    int
	Cancelled int
}

// Total returns the number of inputs the batch accounted for.
func (s Summary) Total() int { return len(s.Reports) }

// AllSucceeded reports whether every file finished cleanly.
func (s Summary) AllSucceeded() bool {
	return s.Succeeded > 0 && s.Failed == 0 && s.Cancelled == 0
}

// Headline renders the one-line batch verdict.
func (s Summary) Headline() string {
	total := s.Total()
	switch {
	case s.Cancelled > 0:
		return fmt.Sprintf("cancelled: %d of %d files completed", s.Succeeded, total)
	case s.Failed > 0:
		return fmt.Sprintf("completed with errors: %d of %d files failed", s.Failed, total)
	case total == 1:
		return "1 file succeeded"
	default:
		return fmt.Sprintf("all %d files succeeded", total)
	}
}

func (s *Summary) add(rep FileReport) {
	s.Reports = append(s.Reports, rep)
	switch rep.Status {
	case encode.StatusSuccess:
		s.Succeeded++
	case encode.StatusCancelled:
		s.Cancelled++
	default:
		s.Failed++
	}
}

// Options carries per-run settings and observer hooks.
type Options struct {
	// OutputDir overrides the destination; empty falls back to the
	// configured default, then to each input's own directory.
	OutputDir string

	// OnFileStart fires after planning, before the encode. index is
	// zero-based.
	OnFileStart func(index, total int, input string, p plan.EncodePlan, outputPath string)
	// OnProgress receives encoder snapshots for the current file.
	OnProgress func(encode.Snapshot)
	// OnFileDone fires after each file's report is final.
	OnFileDone func(FileReport)
}

// Narrow views of the pipeline stages, kept as interfaces so tests can
// drive the coordinator without binaries.
type prober interface {
	Probe(ctx context.Context, path string) (media.Profile, error)
}

type resolver interface {
	Resolve(profile media.Profile, goal plan.Goal, caps []hwaccel.Capability) (plan.EncodePlan, error)
}

type executor interface {
	Execute(ctx context.Context, p plan.EncodePlan, outputPath string, onProgress func(encode.Snapshot)) (encode.Result, error)
}

type capabilitySource interface {
	Discover(ctx context.Context) []hwaccel.Capability
}

// Coordinator runs batches one file at a time.
type Coordinator struct {
	cfg    *config.Config
	logger *slog.Logger

	probe prober
	plans resolver
	exec  executor
	caps  capabilitySource
	store *history.Store
}

// New wires a coordinator from the production pipeline pieces. store
// may be nil to skip history.
func New(cfg *config.Config, logger *slog.Logger, store *history.Store) *Coordinator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Coordinator{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "batch"),
		probe:  media.NewProber(cfg, logger),
		plans:  plan.NewResolver(cfg, logger),
		exec:   encode.NewExecutor(cfg, logger),
		caps:   hwaccel.NewNegotiator(cfg, logger),
		store:  store,
	}
}

// Run encodes every input sequentially and returns one report per
// entry. Per-file failures never abort the batch; the returned error is
// non-nil only when no input was usable at all.
func (c *Coordinator) Run(ctx context.Context, inputs []string, goal plan.Goal, opts Options) (Summary, error) {
	entries, err := ExpandInputs(inputs)
	if err != nil {
		return Summary{}, err
	}

	usable := 0
	for _, e := range entries {
		if e.Err == nil {
			usable++
		}
	}

	summary := Summary{RunID: uuid.NewString()}

	var caps []hwaccel.Capability
	if usable > 0 && c.cfg.Hardware.Enabled {
		caps = c.caps.Discover(ctx)
	}

	c.logger.Info("batch starting",
		logging.String(logging.FieldRunID, summary.RunID),
		logging.Int("files", usable),
		logging.String(logging.FieldPreset, goal.PresetID),
	)

	namer := naming.New()
	total := len(entries)
	for i, entry := range entries {
		var rep FileReport
		switch {
		case entry.Err != nil:
			rep = failedReport(entry.Path, goal.PresetID, entry.Err)
		case ctx.Err() != nil:
			rep = failedReport(entry.Path, goal.PresetID,
				services.Wrap(services.ErrCancelled, "batch", "run", "batch interrupted before this file", ctx.Err()))
		default:
			rep = c.encodeOne(ctx, i, total, entry.Path, goal, caps, namer, opts)
		}
		summary.add(rep)
		c.record(ctx, summary.RunID, rep)
		if opts.OnFileDone != nil {
			opts.OnFileDone(rep)
		}
	}

	c.pruneHistory(ctx)
	c.logger.Info("batch finished",
		logging.String(logging.FieldRunID, summary.RunID),
		logging.Int("succeeded", summary.Succeeded),
		logging.Int("failed", summary.Failed),
		logging.Int("cancelled", summary.Cancelled),
	)

	if usable == 0 {
		return summary, services.Wrap(services.ErrValidation, "batch", "expand inputs", "no usable inputs", nil)
	}
	return summary, nil
}

func (c *Coordinator) encodeOne(ctx context.Context, index, total int, input string, goal plan.Goal, caps []hwaccel.Capability, namer *naming.Namer, opts Options) FileReport {
	profile, err := c.probe.Probe(ctx, input)
	if err != nil {
		return failedReport(input, goal.PresetID, err)
	}

	fileGoal := goal
	var notes []string
	if fileGoal.PresetID == "" {
		fileGoal.PresetID = plan.Suggest(profile)
		notes = append(notes, "auto-selected preset "+fileGoal.PresetID)
	}

	encPlan, err := c.plans.Resolve(profile, fileGoal, caps)
	if err != nil {
		rep := failedReport(input, fileGoal.PresetID, err)
		rep.InputBytes = profile.SizeBytes
		rep.Notes = notes
		return rep
	}

	outputPath := namer.Claim(c.outputDir(opts.OutputDir, input), input, encPlan.PresetID)
	if opts.OnFileStart != nil {
		opts.OnFileStart(index, total, input, encPlan, outputPath)
	}

	res, err := c.exec.Execute(ctx, encPlan, outputPath, opts.OnProgress)
	rep := FileReport{
		Input:       input,
		Output:      outputPath,
		PresetID:    encPlan.PresetID,
		Status:      res.Status,
		InputBytes:  profile.SizeBytes,
		OutputBytes: res.OutputBytes,
		Passes:      res.Passes,
		Retried:     res.Retried,
		Seconds:     res.WallSeconds,
		Notes:       append(notes, res.Notes...),
	}
	if err != nil {
		rep.Err = err
		rep.Stage = services.Stage(err)
		rep.Output = ""
		return rep
	}

	if rep.InputBytes > 0 {
		rep.SavedPercent = 100 * float64(rep.InputBytes-rep.OutputBytes) / float64(rep.InputBytes)
	}
	height := encPlan.OutputHeight()
	rep.WhatsAppOK = rep.OutputBytes > 0 && rep.OutputBytes <= whatsAppMaxBytes && height > 0 && height <= 720
	return rep
}

func (c *Coordinator) outputDir(override, input string) string {
	if override != "" {
		return override
	}
	if c.cfg.Paths.OutputDir != "" {
		return c.cfg.Paths.OutputDir
	}
	return filepath.Dir(input)
}

// record writes one report through to history. Runs on a detached
// context so the cancelled tail of a batch is still on record.
func (c *Coordinator) record(ctx context.Context, runID string, rep FileReport) {
	if c.store == nil || !c.cfg.History.Enabled {
		return
	}
	rec := history.Record{
		RunID:           runID,
		Input:           rep.Input,
		PresetID:        rep.PresetID,
		Status:          string(rep.Status),
		Stage:           rep.Stage,
		InputBytes:      rep.InputBytes,
		OutputBytes:     rep.OutputBytes,
		SavedPercent:    rep.SavedPercent,
		DurationSeconds: rep.Seconds,
		Passes:          rep.Passes,
		Retried:         rep.Retried,
	}
	if rep.Status == encode.StatusSuccess {
		rec.Output = rep.Output
	}
	if rep.Err != nil {
		rec.ErrorMessage = rep.Err.Error()
	}
	if _, err := c.store.Append(context.WithoutCancel(ctx), rec); err != nil {
		c.logger.Warn("failed to record history entry",
			logging.String(logging.FieldInput, rep.Input),
			logging.Error(err),
		)
	}
}

func (c *Coordinator) pruneHistory(ctx context.Context) {
	if c.store == nil || !c.cfg.History.Enabled || c.cfg.History.KeepRuns <= 0 {
		return
	}
	removed, err := c.store.Prune(context.WithoutCancel(ctx), c.cfg.History.KeepRuns)
	if err != nil {
		c.logger.Warn("history prune failed", logging.Error(err))
		return
	}
	if removed > 0 {
		c.logger.Debug("pruned history", logging.Int64("removed", removed))
	}
}

func failedReport(input, presetID string, err error) FileReport {
	status := encode.StatusFailed
	if errors.Is(err, services.ErrCancelled) {
		status = encode.StatusCancelled
	}
	return FileReport{
		Input:    input,
		PresetID: presetID,
		Status:   status,
		Stage:    services.Stage(err),
		Err:      err,
	}
}
