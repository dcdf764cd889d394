package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"fftoolbox/internal/fileutil"
	"fftoolbox/internal/plan"
	"fftoolbox/internal/textutil"
)

func newPresetsCommand(cmdCtx *commandContext) *cobra.Command {
	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "List and manage encode presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPresetsList(cmd, cmdCtx)
		},
	}

	presetsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Show the built-in catalog plus saved presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPresetsList(cmd, cmdCtx)
		},
	})
	presetsCmd.AddCommand(newPresetsShowCommand(cmdCtx))
	presetsCmd.AddCommand(newPresetsSaveCommand(cmdCtx))
	presetsCmd.AddCommand(newPresetsImportCommand(cmdCtx))
	presetsCmd.AddCommand(newPresetsExportCommand(cmdCtx))
	presetsCmd.AddCommand(newPresetsDeleteCommand(cmdCtx))

	return presetsCmd
}

func runPresetsList(cmd *cobra.Command, cmdCtx *commandContext) error {
	cfg, err := cmdCtx.ensureConfig()
	if err != nil {
		return err
	}

	headers := []string{"ID", "Name", "Group", "Quality", "Speed", "Audio", "Cap", "Passes"}
	var rows [][]string
	for _, p := range plan.Catalog() {
		rows = append(rows, []string{
			p.ID,
			p.Name,
			p.Group,
			describeRateControl(p),
			orDash(p.Speed),
			describeAudio(p.AudioCodec, p.AudioKbps),
			describeResolutionCap(p.MaxWidth, p.MaxHeight),
			textutil.Ternary(p.IsTwoPass(), "2", "1"),
		})
	}

	saved, err := plan.ListSaved(cfg.Paths.PresetDir)
	if err != nil {
		return err
	}
	for _, sp := range saved {
		rows = append(rows, savedPresetRow(sp))
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows))
	return nil
}

func savedPresetRow(sp plan.SavedPreset) []string {
	spec := sp.Spec
	quality := "video copy"
	if spec.VideoCodec != "copy" {
		switch spec.Mode {
		case plan.CustomModeCRF:
			quality = fmt.Sprintf("crf %d", spec.CRF)
		case plan.CustomModeSize:
			quality = fmt.Sprintf("target %.0f MB", spec.TargetMB)
		case plan.CustomModePercent:
			quality = fmt.Sprintf("target %.0f%%", spec.Percent)
		}
	}
	twoPass := spec.VideoCodec != "copy" &&
		(spec.Mode == plan.CustomModeSize || spec.Mode == plan.CustomModePercent)
	return []string{
		sp.Name,
		textutil.DisplayTitle(sp.Name),
		"Saved",
		quality,
		orDash(spec.Speed),
		describeAudio(spec.AudioCodec, spec.AudioKbps),
		describeResolutionCap(spec.MaxWidth, spec.MaxHeight),
		textutil.Ternary(twoPass, "2", "1"),
	}
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}

func newPresetsShowCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show NAME",
		Short: "Show one preset in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			name := args[0]
			out := cmd.OutOrStdout()

			if p, err := plan.Lookup(name); err == nil {
				fmt.Fprintf(out, "Name:        %s (%s)\n", p.Name, p.ID)
				fmt.Fprintf(out, "Group:       %s\n", p.Group)
				fmt.Fprintf(out, "Description: %s\n", p.Description)
				fmt.Fprintf(out, "Video:       %s\n", orDash(p.VideoCodec))
				fmt.Fprintf(out, "Quality:     %s\n", describeRateControl(p))
				fmt.Fprintf(out, "Speed:       %s\n", orDash(p.Speed))
				fmt.Fprintf(out, "Audio:       %s\n", describeAudio(p.AudioCodec, p.AudioKbps))
				fmt.Fprintf(out, "Cap:         %s\n", describeResolutionCap(p.MaxWidth, p.MaxHeight))
				fmt.Fprintf(out, "Passes:      %s\n", textutil.Ternary(p.IsTwoPass(), "2", "1"))
				return nil
			}

			saved, err := plan.LoadSaved(cfg.Paths.PresetDir, name)
			if err != nil {
				return err
			}
			return writeJSON(cmd, saved)
		},
	}
}

func newPresetsSaveCommand(cmdCtx *commandContext) *cobra.Command {
	var spec plan.CustomSpec
	var mode string

	cmd := &cobra.Command{
		Use:   "save NAME",
		Short: "Save a custom parameter set as a reusable preset",
		Long: `Save builds a custom preset from flags and stores it under the preset
directory. Use it afterwards like any built-in: fftoolbox encode --preset NAME.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			name := args[0]
			if _, err := plan.Lookup(name); err == nil {
				return fmt.Errorf("%q is a built-in preset ID; pick another name", name)
			}
			spec.Mode = plan.CustomMode(mode)
			path, err := plan.SavePreset(cfg.Paths.PresetDir, name, spec)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved preset %q to %s\n", name, path)
			return nil
		},
	}

	cmd.Flags().StringVar(&spec.VideoCodec, "codec", "libx264", "Video codec (libx264, libx265, copy)")
	cmd.Flags().StringVar(&mode, "mode", "crf", "Quality mode: crf, size, or percent")
	cmd.Flags().IntVar(&spec.CRF, "crf", 23, "CRF value for crf mode")
	cmd.Flags().Float64Var(&spec.TargetMB, "target-mb", 0, "Target size in MB for size mode")
	cmd.Flags().Float64Var(&spec.Percent, "percent", 0, "Target percent of source for percent mode")
	cmd.Flags().StringVar(&spec.Speed, "speed", "medium", "Encoder speed preset")
	cmd.Flags().IntVar(&spec.MaxWidth, "max-width", 0, "Resolution cap width (0 keeps source)")
	cmd.Flags().IntVar(&spec.MaxHeight, "max-height", 0, "Resolution cap height (0 keeps source)")
	cmd.Flags().StringVar(&spec.AudioCodec, "audio-codec", "aac", "Audio codec (aac, libopus, flac, copy)")
	cmd.Flags().IntVar(&spec.AudioKbps, "audio-kbps", 128, "Audio bitrate in kbps")
	cmd.Flags().BoolVar(&spec.Deinterlace, "deinterlace", false, "Always deinterlace with this preset")
	cmd.Flags().BoolVar(&spec.Denoise, "denoise", false, "Always denoise with this preset")

	return cmd
}

func newPresetsImportCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Import a preset file into the preset directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			saved, err := plan.LoadPresetFile(args[0])
			if err != nil {
				return err
			}
			if err := os.MkdirAll(cfg.Paths.PresetDir, 0o755); err != nil {
				return fmt.Errorf("create preset directory: %w", err)
			}
			dst := filepath.Join(cfg.Paths.PresetDir, textutil.SanitizeToken(saved.Name)+".json")
			if err := fileutil.CopyFile(args[0], dst); err != nil {
				return fmt.Errorf("copy preset: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported preset %q to %s\n", saved.Name, dst)
			return nil
		},
	}
}

func newPresetsExportCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "export NAME DEST",
		Short: "Copy a saved preset file out of the preset directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			name := args[0]
			saved, err := plan.LoadSaved(cfg.Paths.PresetDir, name)
			if err != nil {
				return err
			}
			src := filepath.Join(cfg.Paths.PresetDir, textutil.SanitizeToken(name)+".json")
			dest := args[1]
			if info, err := os.Stat(dest); err == nil && info.IsDir() {
				dest = filepath.Join(dest, filepath.Base(src))
			}
			if err := fileutil.CopyFile(src, dest); err != nil {
				return fmt.Errorf("copy preset: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported preset %q to %s\n", saved.Name, dest)
			return nil
		},
	}
}

func newPresetsDeleteCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a saved preset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			name := args[0]
			if _, err := plan.LoadSaved(cfg.Paths.PresetDir, name); err != nil {
				return err
			}
			path := filepath.Join(cfg.Paths.PresetDir, textutil.SanitizeToken(name)+".json")
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("delete preset: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted saved preset %q\n", name)
			return nil
		},
	}
}
