package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"fftoolbox/internal/logging"
	"fftoolbox/internal/media"
	"fftoolbox/internal/textutil"
)

func newProbeCommand(cmdCtx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "probe FILE...",
		Short: "Inspect sources and show the facts planning uses",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}

			prober := media.NewProber(cfg, logging.NewNop())
			profiles := make([]media.Profile, 0, len(args))
			var failures []string
			for _, arg := range args {
				profile, err := prober.Probe(cmd.Context(), arg)
				if err != nil {
					failures = append(failures, fmt.Sprintf("%s: %v", arg, err))
					continue
				}
				profiles = append(profiles, profile)
			}

			if asJSON {
				if err := writeJSON(cmd, profiles); err != nil {
					return err
				}
			} else if len(profiles) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), renderProfileTable(profiles))
			}

			for _, failure := range failures {
				fmt.Fprintf(cmd.ErrOrStderr(), "probe failed: %s\n", failure)
			}
			if len(profiles) == 0 {
				return fmt.Errorf("no readable sources among %d path(s)", len(args))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit probed facts as JSON")
	return cmd
}

func renderProfileTable(profiles []media.Profile) string {
	headers := []string{"File", "Title", "Codec", "Resolution", "Duration", "Bitrate", "Size", "Audio"}
	rows := make([][]string, 0, len(profiles))
	for _, p := range profiles {
		codec := p.VideoCodec
		if media.IsProfessionalCodec(codec) {
			codec += " (pro)"
		}
		bitrate := "-"
		if bps := p.EffectiveBitrateBps(); bps > 0 {
			bitrate = fmt.Sprintf("%d kbps", bps/1000)
		}
		rows = append(rows, []string{
			filepath.Base(p.Path),
			textutil.DisplayTitle(p.Path),
			codec,
			p.Resolution(),
			formatSeconds(p.DurationSeconds),
			bitrate,
			formatBytes(p.SizeBytes),
			describeAudioTracks(p),
		})
	}
	return renderTable(headers, rows, 4, 5, 6)
}

func describeAudioTracks(p media.Profile) string {
	if p.AudioTracks == 0 {
		return "none"
	}
	desc := fmt.Sprintf("%d x %s", p.AudioTracks, p.AudioCodec)
	if len(p.AudioLanguages) > 0 {
		desc += " (" + strings.Join(p.AudioLanguages, ", ") + ")"
	}
	return desc
}
