package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"fftoolbox/internal/batch"
	"fftoolbox/internal/config"
	"fftoolbox/internal/encode"
	"fftoolbox/internal/history"
	"fftoolbox/internal/logging"
	"fftoolbox/internal/plan"
	"fftoolbox/internal/services"
)

// promptListLimit caps how many expanded inputs the confirmation prompt
// prints before eliding.
const promptListLimit = 10

func newEncodeCommand(cmdCtx *commandContext) *cobra.Command {
	var (
		presetID    string
		targetMB    float64
		percent     float64
		outputDir   string
		allAudio    bool
		deinterlace bool
		denoise     bool
		noHardware  bool
		assumeYes   bool
	)

	cmd := &cobra.Command{
		Use:   "encode [flags] FILE|DIR...",
		Short: "Encode files or directories with a preset",
		Long: `Encode runs the full pipeline over each input: probe, plan, name, execute.
Directories expand (non-recursively) to the accepted video extensions.
A failed file never aborts the batch; the summary reports every outcome.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			if noHardware {
				clone := *cfg
				clone.Hardware.Enabled = false
				cfg = &clone
			}

			goal, err := buildGoal(cfg, presetID, targetMB, percent, allAudio, deinterlace, denoise)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !assumeYes {
				ok, err := confirmEncode(cmd, args, goal)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(out, "aborted")
					return nil
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			lock := encode.NewRunLock(cfg.LockPath())
			if err := lock.Acquire(); err != nil {
				return err
			}
			defer func() { _ = lock.Release() }()

			logger, err := logging.NewForRun(cfg.Logging.Level, cfg.Logging.Format, cfg.Paths.LogDir)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			var store *history.Store
			if cfg.History.Enabled {
				store, err = history.Open(cfg)
				if err != nil {
					logger.Warn("encode history unavailable", logging.Error(err))
					store = nil
				} else {
					defer store.Close()
				}
			}

			ui := newProgressUI(out)
			coordinator := batch.New(cfg, logger, store)
			summary, runErr := coordinator.Run(ctx, args, goal, batch.Options{
				OutputDir:   outputDir,
				OnFileStart: ui.fileStart,
				OnProgress:  ui.progress,
				OnFileDone:  ui.fileDone,
			})
			if len(summary.Reports) == 0 {
				return runErr
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, renderBatchSummary(summary))

			switch {
			case runErr != nil:
				return runErr
			case summary.Cancelled > 0:
				fmt.Fprintln(cmd.ErrOrStderr(), summary.Headline())
				return context.Canceled
			case summary.Failed > 0:
				return errors.New(summary.Headline())
			default:
				fmt.Fprintln(out, summary.Headline())
				return nil
			}
		},
	}

	cmd.Flags().StringVarP(&presetID, "preset", "p", "", "Preset ID or saved preset name (default: suggested per file)")
	cmd.Flags().Float64Var(&targetMB, "target-mb", 0, "Target output size in MB (implies the target_mb preset)")
	cmd.Flags().Float64Var(&percent, "percent", 0, "Target output size as a percent of the source (implies target_percent)")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Directory for outputs (default: configured dir, then next to each input)")
	cmd.Flags().BoolVar(&allAudio, "all-audio", false, "Keep every audio track instead of the first")
	cmd.Flags().BoolVar(&deinterlace, "deinterlace", false, "Apply yadif deinterlacing")
	cmd.Flags().BoolVar(&denoise, "denoise", false, "Apply hqdn3d denoising")
	cmd.Flags().BoolVar(&noHardware, "no-hardware", false, "Skip hardware encoders for this run")
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}

// buildGoal validates the flag combination and resolves the preset
// choice, falling back to saved presets for unknown IDs.
func buildGoal(cfg *config.Config, presetID string, targetMB, percent float64, allAudio, deinterlace, denoise bool) (plan.Goal, error) {
	fail := func(msg string) (plan.Goal, error) {
		return plan.Goal{}, services.Wrap(services.ErrValidation, "cli", "build goal", msg, nil)
	}

	presetID = strings.TrimSpace(presetID)
	if targetMB > 0 && percent > 0 {
		return fail("--target-mb and --percent are mutually exclusive")
	}
	if presetID == "" && targetMB > 0 {
		presetID = "target_mb"
	}
	if presetID == "" && percent > 0 {
		presetID = "target_percent"
	}

	goal := plan.Goal{
		PresetID:    presetID,
		TargetMB:    targetMB,
		Percent:     percent,
		AllAudio:    allAudio,
		Deinterlace: deinterlace,
		Denoise:     denoise,
	}
	if presetID == "" {
		return goal, nil
	}

	preset, err := plan.Lookup(presetID)
	if err != nil {
		saved, savedErr := plan.LoadSaved(cfg.Paths.PresetDir, presetID)
		if savedErr != nil {
			return fail(fmt.Sprintf("unknown preset %q: not built in and no saved preset matches", presetID))
		}
		spec := saved.Spec
		goal.PresetID = "custom"
		goal.Custom = &spec
		return goal, nil
	}

	switch preset.Kind {
	case plan.KindTargetSize:
		if preset.TargetMB <= 0 && targetMB <= 0 {
			return fail(fmt.Sprintf("preset %s needs --target-mb", presetID))
		}
	case plan.KindTargetPercent:
		if percent <= 0 {
			return fail(fmt.Sprintf("preset %s needs --percent", presetID))
		}
	case plan.KindCustom:
		return fail("the custom preset runs from a saved spec; create one with `presets save` or `presets import`")
	default:
		if targetMB > 0 {
			return fail(fmt.Sprintf("preset %s does not take --target-mb", presetID))
		}
		if percent > 0 {
			return fail(fmt.Sprintf("preset %s does not take --percent", presetID))
		}
	}
	return goal, nil
}

// confirmEncode shows the expanded inputs and asks before running.
// Without a terminal on stdin there is nobody to ask, so it proceeds.
func confirmEncode(cmd *cobra.Command, inputs []string, goal plan.Goal) (bool, error) {
	in := cmd.InOrStdin()
	file, isFile := in.(*os.File)
	if !isFile || !(isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())) {
		return true, nil
	}

	entries, err := batch.ExpandInputs(inputs)
	if err != nil {
		return false, err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "About to encode %d file(s) with %s:\n", len(entries), goalLabel(goal))
	for i, entry := range entries {
		if i == promptListLimit {
			fmt.Fprintf(out, "%s... and %d more\n", statusIndent, len(entries)-promptListLimit)
			break
		}
		if entry.Err != nil {
			fmt.Fprintf(out, "%s%s (unreadable: %v)\n", statusIndent, entry.Path, entry.Err)
			continue
		}
		fmt.Fprintf(out, "%s%s\n", statusIndent, entry.Path)
	}
	fmt.Fprint(out, "Proceed? [y/N] ")

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func goalLabel(goal plan.Goal) string {
	switch {
	case goal.Custom != nil:
		return "a saved custom preset"
	case goal.PresetID == "":
		return "per-file suggested presets"
	case goal.TargetMB > 0:
		return fmt.Sprintf("%s (%.0f MB)", goal.PresetID, goal.TargetMB)
	case goal.Percent > 0:
		return fmt.Sprintf("%s (%.0f%% of source)", goal.PresetID, goal.Percent)
	default:
		return goal.PresetID
	}
}

func renderBatchSummary(s batch.Summary) string {
	headers := []string{"File", "Preset", "Status", "Output", "Saved", "Time", "WhatsApp"}
	rows := make([][]string, 0, len(s.Reports))
	for _, rep := range s.Reports {
		preset := rep.PresetID
		if preset == "" {
			preset = "-"
		}
		row := []string{
			filepath.Base(rep.Input),
			preset,
			string(rep.Status),
			"-",
			"-",
			formatSeconds(rep.Seconds),
			"-",
		}
		if rep.Status == encode.StatusSuccess {
			row[3] = formatBytes(rep.OutputBytes)
			row[4] = formatPercent(rep.SavedPercent)
			row[6] = yesNo(rep.WhatsAppOK)
		}
		rows = append(rows, row)
	}
	return renderTable(headers, rows, 3, 4, 5)
}
